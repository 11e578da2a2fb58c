package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/papergpt/internal/settings"
)

const maxRequestBodySize = 1 << 20 // 1MB

type AppDeps struct {
	Settings *settings.Accessor
	Token    string
	Version  string
}

// NewAppHandler serves the settings API. Everything except /health requires
// the bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Route("/v1/settings", func(r chi.Router) {
			r.Get("/user", handleGetUserConfig(deps))
			r.Patch("/user", handlePatchUserConfig(deps))
			r.Get("/provider", handleGetProviderConfigs(deps))
			r.Put("/provider", handlePutProviderConfigs(deps))
			r.Get("/prompt", handleGetPrompt(deps))
		})
	})

	return r
}

func handleHealth(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok", "version": deps.Version})
	}
}

func handleGetUserConfig(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := deps.Settings.GetUserConfig(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get user config: %v", err)
			return
		}
		writeJSON(w, cfg)
	}
}

func handlePatchUserConfig(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var u settings.UserConfigUpdate
		if !decodeBody(w, r, &u) {
			return
		}

		if err := deps.Settings.UpdateUserConfig(r.Context(), u); err != nil {
			settingsError(w, "failed to update user config", err)
			return
		}

		cfg, err := deps.Settings.GetUserConfig(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get user config: %v", err)
			return
		}
		writeJSON(w, cfg)
	}
}

func handleGetProviderConfigs(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pc, err := deps.Settings.GetProviderConfigs(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get provider configs: %v", err)
			return
		}

		reveal, _ := strconv.ParseBool(r.URL.Query().Get("reveal"))
		if !reveal {
			pc.Configs = pc.Configs.Masked()
		}
		writeJSON(w, pc)
	}
}

func handlePutProviderConfigs(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var pc settings.ProviderConfigs
		if !decodeBody(w, r, &pc) {
			return
		}
		// GET masks keys by default; writing one back would destroy the stored key.
		for _, p := range []settings.ProviderType{settings.ProviderGPT3, settings.ProviderLlama} {
			if cred := pc.Configs.For(p); cred != nil && settings.LooksMasked(cred.APIKey) {
				httpError(w, http.StatusBadRequest, "invalid_request_error",
					"apiKey for %s is masked; read with ?reveal=true before writing it back", p)
				return
			}
		}

		if err := deps.Settings.SaveProviderConfigs(r.Context(), pc.Provider, pc.Configs); err != nil {
			settingsError(w, "failed to save provider configs", err)
			return
		}

		slog.InfoContext(r.Context(), "provider configs saved", "provider", pc.Provider)
		pc.Configs = pc.Configs.Masked()
		writeJSON(w, pc)
	}
}

func handleGetPrompt(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		site := r.URL.Query().Get("site")

		cfg, err := deps.Settings.GetUserConfig(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get user config: %v", err)
			return
		}
		writeJSON(w, map[string]string{
			"site":   site,
			"prompt": cfg.PromptFor(site),
		})
	}
}

// decodeBody reads a JSON body into dst, rejecting unknown fields. It writes
// the error response itself and reports whether decoding succeeded.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func settingsError(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, settings.ErrInvalidValue) {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s: %v", msg, err)
		return
	}
	httpError(w, http.StatusInternalServerError, "api_error", "%s: %v", msg, err)
}
