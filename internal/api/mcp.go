package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/papergpt/internal/settings"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Settings *settings.Accessor
	Version  string
}

// NewMCPServer creates an MCP server with the papergpt settings tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"papergpt",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("papergpt settings: how and when paper summaries are requested, in which language, and with which AI provider."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("get_user_config",
			mcp.WithDescription("Return the user configuration with defaults filled in for unset fields."),
			mcp.WithString("site", mcp.Description("Optional site; when set, only the effective prompt for it is returned")),
		),
		mcpGetUserConfig(deps),
	)

	s.AddTool(
		mcp.NewTool("update_user_config",
			mcp.WithDescription("Update some user configuration fields. Omitted fields are left unchanged."),
			mcp.WithString("triggerMode", mcp.Description(triggerModeDescription()), mcp.Enum(enumStrings(settings.TriggerModes)...)),
			mcp.WithString("theme", mcp.Description("UI theme"), mcp.Enum(enumStrings(settings.Themes)...)),
			mcp.WithString("language", mcp.Description("Answer language"), mcp.Enum(enumStrings(settings.Languages)...)),
			mcp.WithString("prompt", mcp.Description("Global prompt")),
			mcp.WithArray("promptOverrides",
				mcp.Description("Per-site prompts; replaces the whole list"),
				mcp.Items(map[string]any{
					"type": "object",
					"properties": map[string]any{
						"site":   map[string]any{"type": "string"},
						"prompt": map[string]any{"type": "string"},
					},
					"required": []string{"site", "prompt"},
				}),
			),
		),
		mcpUpdateUserConfig(deps),
	)

	s.AddTool(
		mcp.NewTool("get_provider_config",
			mcp.WithDescription("Return the selected AI provider and the stored credentials. API keys are masked unless reveal is true."),
			mcp.WithBoolean("reveal", mcp.Description("Return API keys in clear text")),
		),
		mcpGetProviderConfig(deps),
	)

	s.AddTool(
		mcp.NewTool("set_provider",
			mcp.WithDescription("Select the AI provider, optionally storing its model and API key."),
			mcp.WithString("provider", mcp.Description("Provider to select"), mcp.Required(), mcp.Enum(enumStrings(settings.ProviderTypes)...)),
			mcp.WithString("model", mcp.Description("Model name for gpt3 or llama")),
			mcp.WithString("apiKey", mcp.Description("API key for gpt3 or llama")),
		),
		mcpSetProvider(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"settings://user",
			"User Config",
			mcp.WithResourceDescription("Current user configuration as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceUserConfig(deps),
	)

	return s
}

func mcpGetUserConfig(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cfg, err := deps.Settings.GetUserConfig(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get user config: %v", err)), nil
		}

		if site := req.GetString("site", ""); site != "" {
			return mcpText(cfg.PromptFor(site)), nil
		}

		b, err := json.Marshal(cfg)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal user config: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpUpdateUserConfig(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var u settings.UserConfigUpdate
		if err := req.BindArguments(&u); err != nil {
			return mcpError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		if u.IsEmpty() {
			return mcpError("no fields to update"), nil
		}

		if err := deps.Settings.UpdateUserConfig(ctx, u); err != nil {
			return mcpError(fmt.Sprintf("failed to update user config: %v", err)), nil
		}
		return mcpText("User config updated"), nil
	}
}

func mcpGetProviderConfig(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pc, err := deps.Settings.GetProviderConfigs(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get provider config: %v", err)), nil
		}
		if !req.GetBool("reveal", false) {
			pc.Configs = pc.Configs.Masked()
		}

		b, err := json.Marshal(pc)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal provider config: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSetProvider(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("provider")
		if err != nil {
			return mcpError("provider is required"), nil
		}
		provider, err := settings.ParseProviderType(raw)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		current, err := deps.Settings.GetProviderConfigs(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get provider config: %v", err)), nil
		}

		configs := current.Configs
		model := req.GetString("model", "")
		apiKey := req.GetString("apiKey", "")
		if model != "" || apiKey != "" {
			cred := settings.ProviderCredential{Model: model, APIKey: apiKey}
			if prev := configs.For(provider); prev != nil {
				if cred.Model == "" {
					cred.Model = prev.Model
				}
				if cred.APIKey == "" {
					cred.APIKey = prev.APIKey
				}
			}
			if configs, err = configs.With(provider, &cred); err != nil {
				return mcpError(err.Error()), nil
			}
		}

		if err := deps.Settings.SaveProviderConfigs(ctx, provider, configs); err != nil {
			return mcpError(fmt.Sprintf("failed to save provider config: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Provider set to %s", provider)), nil
	}
}

func mcpResourceUserConfig(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		cfg, err := deps.Settings.GetUserConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get user config: %w", err)
		}

		b, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal user config: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func triggerModeDescription() string {
	parts := make([]string, len(settings.TriggerModes))
	for i, m := range settings.TriggerModes {
		parts[i] = fmt.Sprintf("%s (%s)", m, m.Text().Desc)
	}
	return "When summaries are requested: " + strings.Join(parts, ", ")
}

func enumStrings[T ~string](vals []T) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = string(v)
	}
	return out
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
