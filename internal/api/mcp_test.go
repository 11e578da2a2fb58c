package api

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/papergpt/internal/settings"
	"github.com/kalambet/papergpt/internal/storage"
)

func newTestMCPDeps(t *testing.T) (MCPDeps, *settings.Accessor) {
	t.Helper()
	acc := settings.NewAccessor(storage.NewMemoryStore(), settings.DefaultUserConfig())
	return MCPDeps{Settings: acc, Version: "test"}, acc
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func callTool(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), req mcp.CallToolRequest) *mcp.CallToolResult {
	t.Helper()
	result, err := h(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

// --- tests ---

func TestMCPTool_GetUserConfig(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	result := callTool(t, mcpGetUserConfig(deps), makeCallToolRequest("get_user_config", nil))
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var got settings.UserConfig
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if diff := cmp.Diff(settings.DefaultUserConfig(), got); diff != "" {
		t.Errorf("user config mismatch (-want +got):\n%s", diff)
	}
}

func TestMCPTool_GetUserConfig_SitePrompt(t *testing.T) {
	deps, acc := newTestMCPDeps(t)

	overrides := []settings.SitePrompt{{Site: "arxiv.org", Prompt: "arxiv prompt"}}
	if err := acc.UpdateUserConfig(context.Background(), settings.UserConfigUpdate{PromptOverrides: &overrides}); err != nil {
		t.Fatal(err)
	}

	result := callTool(t, mcpGetUserConfig(deps), makeCallToolRequest("get_user_config", map[string]any{"site": "arxiv.org"}))
	if got := toolText(t, result); got != "arxiv prompt" {
		t.Errorf("prompt = %q, want %q", got, "arxiv prompt")
	}
}

func TestMCPTool_UpdateUserConfig(t *testing.T) {
	deps, acc := newTestMCPDeps(t)

	req := makeCallToolRequest("update_user_config", map[string]any{
		"language": "french",
		"promptOverrides": []any{
			map[string]any{"site": "openreview.net", "prompt": "review it"},
		},
	})
	result := callTool(t, mcpUpdateUserConfig(deps), req)
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	cfg, err := acc.GetUserConfig(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := settings.DefaultUserConfig()
	want.Language = settings.LanguageFrench
	want.PromptOverrides = []settings.SitePrompt{{Site: "openreview.net", Prompt: "review it"}}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("user config mismatch (-want +got):\n%s", diff)
	}
}

func TestMCPTool_UpdateUserConfig_Rejects(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	for _, args := range []map[string]any{
		nil,
		{"theme": "neon"},
	} {
		result := callTool(t, mcpUpdateUserConfig(deps), makeCallToolRequest("update_user_config", args))
		if !result.IsError {
			t.Errorf("args %v: expected error result", args)
		}
	}
}

func TestMCPTool_SetProvider(t *testing.T) {
	deps, acc := newTestMCPDeps(t)
	ctx := context.Background()

	result := callTool(t, mcpSetProvider(deps), makeCallToolRequest("set_provider", map[string]any{
		"provider": "llama",
		"model":    "llama-2-70b",
		"apiKey":   "key-00001111",
	}))
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	// Changing only the key keeps the stored model.
	result = callTool(t, mcpSetProvider(deps), makeCallToolRequest("set_provider", map[string]any{
		"provider": "llama",
		"apiKey":   "key-22223333",
	}))
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	pc, err := acc.GetProviderConfigs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := settings.ProviderConfigs{
		Provider: settings.ProviderLlama,
		Configs: settings.Credentials{
			Llama: &settings.ProviderCredential{Model: "llama-2-70b", APIKey: "key-22223333"},
		},
	}
	if diff := cmp.Diff(want, pc); diff != "" {
		t.Errorf("provider configs mismatch (-want +got):\n%s", diff)
	}

	// Selecting chatgpt keeps stored credentials.
	result = callTool(t, mcpSetProvider(deps), makeCallToolRequest("set_provider", map[string]any{"provider": "chatgpt"}))
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	pc, err = acc.GetProviderConfigs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if pc.Provider != settings.ProviderChatGPT || pc.Configs.Llama == nil {
		t.Errorf("after selecting chatgpt: %+v", pc)
	}
}

func TestMCPTool_SetProvider_Errors(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	for _, args := range []map[string]any{
		{},
		{"provider": "bard"},
		{"provider": "chatgpt", "apiKey": "sk-1"},
	} {
		result := callTool(t, mcpSetProvider(deps), makeCallToolRequest("set_provider", args))
		if !result.IsError {
			t.Errorf("args %v: expected error result", args)
		}
	}
}

func TestMCPTool_GetProviderConfig_Masks(t *testing.T) {
	deps, acc := newTestMCPDeps(t)

	cred := &settings.ProviderCredential{Model: "text-davinci-003", APIKey: "sk-secretvalue"}
	if err := acc.SaveProviderConfigs(context.Background(), settings.ProviderGPT3, settings.Credentials{GPT3: cred}); err != nil {
		t.Fatal(err)
	}

	for reveal, wantKey := range map[bool]string{
		false: settings.MaskKey("sk-secretvalue"),
		true:  "sk-secretvalue",
	} {
		result := callTool(t, mcpGetProviderConfig(deps), makeCallToolRequest("get_provider_config", map[string]any{"reveal": reveal}))
		var pc settings.ProviderConfigs
		if err := json.Unmarshal([]byte(toolText(t, result)), &pc); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if pc.Configs.GPT3 == nil || pc.Configs.GPT3.APIKey != wantKey {
			t.Errorf("reveal=%v: gpt3 = %+v, want apiKey %q", reveal, pc.Configs.GPT3, wantKey)
		}
	}
}

func TestMCPResource_UserConfig(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	contents, err := mcpResourceUserConfig(deps)(context.Background(), makeReadResourceRequest("settings://user"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 resource content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.URI != "settings://user" || tc.MIMEType != "application/json" {
		t.Errorf("unexpected resource metadata: %s %s", tc.URI, tc.MIMEType)
	}
	var cfg settings.UserConfig
	if err := json.Unmarshal([]byte(tc.Text), &cfg); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
}

func TestMCPServer_ConcurrentCalls(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	_ = NewMCPServer(deps)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			result, err := mcpUpdateUserConfig(deps)(context.Background(), makeCallToolRequest("update_user_config", map[string]any{"theme": "dark"}))
			if err != nil || result.IsError {
				t.Errorf("update failed: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			result, err := mcpGetUserConfig(deps)(context.Background(), makeCallToolRequest("get_user_config", nil))
			if err != nil || result.IsError {
				t.Errorf("get failed: %v", err)
			}
		}()
	}
	wg.Wait()
}
