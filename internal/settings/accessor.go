package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Store is the key-value facility settings are persisted in.
//
// Get returns only the keys that are present. Set updates exactly the keys
// it is given in a single write; a nil value removes the key. Keys not named
// in a Set call must be left untouched.
type Store interface {
	Get(ctx context.Context, keys ...string) (map[string][]byte, error)
	Set(ctx context.Context, values map[string][]byte) error
}

// Accessor reads and writes typed settings over a Store. It keeps no state
// besides its defaults: every read goes to the store.
type Accessor struct {
	store    Store
	defaults UserConfig
	logger   *slog.Logger
}

type Option func(*Accessor)

func WithLogger(l *slog.Logger) Option {
	return func(a *Accessor) { a.logger = l }
}

// NewAccessor returns an Accessor that fills absent user keys from defaults.
func NewAccessor(store Store, defaults UserConfig, opts ...Option) *Accessor {
	a := &Accessor{
		store:    store,
		defaults: defaults.clone(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GetUserConfig returns the stored user configuration with defaults merged
// in for every absent key. The store is not written.
func (a *Accessor) GetUserConfig(ctx context.Context) (UserConfig, error) {
	raw, err := a.store.Get(ctx, UserConfigKeys...)
	if err != nil {
		return UserConfig{}, fmt.Errorf("reading user config: %w", err)
	}

	cfg := a.defaults.clone()
	if _, ok := raw[KeyPromptOverrides]; ok {
		// Decode into a fresh slice, not over the default entries.
		cfg.PromptOverrides = nil
	}
	fields := []struct {
		key string
		dst any
	}{
		{KeyTriggerMode, &cfg.TriggerMode},
		{KeyTheme, &cfg.Theme},
		{KeyLanguage, &cfg.Language},
		{KeyPrompt, &cfg.Prompt},
		{KeyPromptOverrides, &cfg.PromptOverrides},
	}
	for _, f := range fields {
		if err := decodeKey(raw, f.key, f.dst); err != nil {
			return UserConfig{}, err
		}
	}
	if cfg.PromptOverrides == nil {
		cfg.PromptOverrides = []SitePrompt{}
	}
	return cfg, nil
}

// UpdateUserConfig persists the supplied fields of u and nothing else.
func (a *Accessor) UpdateUserConfig(ctx context.Context, u UserConfigUpdate) error {
	if err := u.validate(); err != nil {
		return err
	}

	a.logger.DebugContext(ctx, "update configs", "updates", u)

	values := make(map[string][]byte)
	supplied := []struct {
		key string
		set bool
		v   any
	}{
		{KeyTriggerMode, u.TriggerMode != nil, u.TriggerMode},
		{KeyTheme, u.Theme != nil, u.Theme},
		{KeyLanguage, u.Language != nil, u.Language},
		{KeyPrompt, u.Prompt != nil, u.Prompt},
		{KeyPromptOverrides, u.PromptOverrides != nil, u.PromptOverrides},
	}
	for _, s := range supplied {
		if !s.set {
			continue
		}
		b, err := json.Marshal(s.v)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", s.key, err)
		}
		values[s.key] = b
	}

	if err := a.store.Set(ctx, values); err != nil {
		return fmt.Errorf("writing user config: %w", err)
	}
	return nil
}

// GetProviderConfigs returns the selected provider and both credential
// slots. The three keys are fetched one after another; the first failure
// ends the read.
func (a *Accessor) GetProviderConfigs(ctx context.Context) (ProviderConfigs, error) {
	out := ProviderConfigs{Provider: DefaultProvider}

	raw, err := a.store.Get(ctx, KeyProvider)
	if err != nil {
		return ProviderConfigs{}, fmt.Errorf("reading provider: %w", err)
	}
	if err := decodeKey(raw, KeyProvider, &out.Provider); err != nil {
		return ProviderConfigs{}, err
	}

	gpt3, err := a.getCredential(ctx, ProviderGPT3)
	if err != nil {
		return ProviderConfigs{}, err
	}
	llama, err := a.getCredential(ctx, ProviderLlama)
	if err != nil {
		return ProviderConfigs{}, err
	}
	out.Configs = Credentials{GPT3: gpt3, Llama: llama}
	return out, nil
}

func (a *Accessor) getCredential(ctx context.Context, p ProviderType) (*ProviderCredential, error) {
	key := ProviderKey(p)
	raw, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	var cred *ProviderCredential
	if err := decodeKey(raw, key, &cred); err != nil {
		return nil, err
	}
	return cred, nil
}

// SaveProviderConfigs selects provider and overwrites both credential slots
// in one write. A nil slot clears the stored credential.
func (a *Accessor) SaveProviderConfigs(ctx context.Context, provider ProviderType, configs Credentials) error {
	if !isValid(provider, ProviderTypes) {
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidValue, provider)
	}

	values := make(map[string][]byte, 3)
	b, err := json.Marshal(provider)
	if err != nil {
		return fmt.Errorf("encoding provider: %w", err)
	}
	values[KeyProvider] = b

	for _, slot := range []struct {
		p    ProviderType
		cred *ProviderCredential
	}{
		{ProviderGPT3, configs.GPT3},
		{ProviderLlama, configs.Llama},
	} {
		key := ProviderKey(slot.p)
		if slot.cred == nil {
			values[key] = nil
			continue
		}
		b, err := json.Marshal(slot.cred)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", key, err)
		}
		values[key] = b
	}

	a.logger.DebugContext(ctx, "save provider configs", "provider", provider, "configs", configs)

	if err := a.store.Set(ctx, values); err != nil {
		return fmt.Errorf("writing provider configs: %w", err)
	}
	return nil
}

// decodeKey unmarshals raw[key] into dst when the key is present.
func decodeKey(raw map[string][]byte, key string, dst any) error {
	b, ok := raw[key]
	if !ok || b == nil {
		return nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}
