package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/papergpt/internal/settings"
)

// backendsUnderTest returns a fresh instance of every backend that can run
// here. Redis is included only when PAPERGPT_TEST_REDIS_URL is set.
func backendsUnderTest(t *testing.T) map[string]Backend {
	t.Helper()
	out := map[string]Backend{
		BackendMemory: NewMemoryStore(),
		BackendFile:   NewFileStore(filepath.Join(t.TempDir(), "settings.json")),
	}

	sq, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	out[BackendSQLite] = sq

	if url := os.Getenv("PAPERGPT_TEST_REDIS_URL"); url != "" {
		out[BackendRedis] = NewRedisStore(url, fmt.Sprintf("papergpt-test:%d:", time.Now().UnixNano()))
	}

	for _, b := range out {
		t.Cleanup(func() { b.Close() })
	}
	return out
}

func TestBackends_GetReturnsOnlyPresentKeys(t *testing.T) {
	ctx := context.Background()
	for name, b := range backendsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			if err := b.Set(ctx, map[string][]byte{"theme": []byte(`"dark"`)}); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, err := b.Get(ctx, "theme", "language")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			want := map[string][]byte{"theme": []byte(`"dark"`)}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Get mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBackends_SetIsKeyLevel(t *testing.T) {
	ctx := context.Background()
	for name, b := range backendsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			if err := b.Set(ctx, map[string][]byte{
				"theme":    []byte(`"dark"`),
				"language": []byte(`"german"`),
			}); err != nil {
				t.Fatal(err)
			}
			if err := b.Set(ctx, map[string][]byte{"theme": []byte(`"light"`)}); err != nil {
				t.Fatal(err)
			}

			got, err := b.Get(ctx, "theme", "language")
			if err != nil {
				t.Fatal(err)
			}
			if string(got["theme"]) != `"light"` {
				t.Errorf("theme = %s, want \"light\"", got["theme"])
			}
			if string(got["language"]) != `"german"` {
				t.Errorf("language = %s, want untouched \"german\"", got["language"])
			}
		})
	}
}

func TestBackends_NilValueDeletes(t *testing.T) {
	ctx := context.Background()
	for name, b := range backendsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			if err := b.Set(ctx, map[string][]byte{"provider:llama": []byte(`{"model":"m","apiKey":"k"}`)}); err != nil {
				t.Fatal(err)
			}
			if err := b.Set(ctx, map[string][]byte{"provider:llama": nil}); err != nil {
				t.Fatal(err)
			}
			got, err := b.Get(ctx, "provider:llama")
			if err != nil {
				t.Fatal(err)
			}
			if _, ok := got["provider:llama"]; ok {
				t.Errorf("provider:llama still present: %s", got["provider:llama"])
			}

			// Deleting an absent key is not an error.
			if err := b.Set(ctx, map[string][]byte{"provider:gpt3": nil}); err != nil {
				t.Errorf("deleting absent key: %v", err)
			}
		})
	}
}

// TestBackends_AccessorProperties runs the accessor read/write properties
// against each real backend.
func TestBackends_AccessorProperties(t *testing.T) {
	ctx := context.Background()
	for name, b := range backendsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			a := settings.NewAccessor(b, settings.DefaultUserConfig())

			pc, err := a.GetProviderConfigs(ctx)
			if err != nil {
				t.Fatalf("GetProviderConfigs: %v", err)
			}
			if diff := cmp.Diff(settings.ProviderConfigs{Provider: settings.ProviderChatGPT}, pc); diff != "" {
				t.Errorf("empty provider configs mismatch (-want +got):\n%s", diff)
			}

			lang := settings.LanguageJapanese
			if err := a.UpdateUserConfig(ctx, settings.UserConfigUpdate{Language: &lang}); err != nil {
				t.Fatalf("UpdateUserConfig: %v", err)
			}
			cfg, err := a.GetUserConfig(ctx)
			if err != nil {
				t.Fatalf("GetUserConfig: %v", err)
			}
			want := settings.DefaultUserConfig()
			want.Language = lang
			if diff := cmp.Diff(want, cfg); diff != "" {
				t.Errorf("user config mismatch (-want +got):\n%s", diff)
			}

			creds := settings.Credentials{
				GPT3:  &settings.ProviderCredential{Model: "gpt-3.5", APIKey: "k1"},
				Llama: &settings.ProviderCredential{Model: "llama-2", APIKey: "k2"},
			}
			if err := a.SaveProviderConfigs(ctx, settings.ProviderLlama, creds); err != nil {
				t.Fatal(err)
			}
			if err := a.SaveProviderConfigs(ctx, settings.ProviderGPT3, settings.Credentials{GPT3: creds.GPT3}); err != nil {
				t.Fatal(err)
			}
			pc, err = a.GetProviderConfigs(ctx)
			if err != nil {
				t.Fatal(err)
			}
			wantPC := settings.ProviderConfigs{
				Provider: settings.ProviderGPT3,
				Configs:  settings.Credentials{GPT3: creds.GPT3},
			}
			if diff := cmp.Diff(wantPC, pc); diff != "" {
				t.Errorf("provider configs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFileStore_CorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	s := NewFileStore(path)
	if _, err := s.Get(context.Background(), "theme"); err == nil {
		t.Fatal("expected error for corrupt settings file")
	}
}

func TestFileStore_NullFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("null"), 0o600); err != nil {
		t.Fatal(err)
	}
	s := NewFileStore(path)
	ctx := context.Background()

	got, err := s.Get(ctx, "theme")
	if err != nil || len(got) != 0 {
		t.Fatalf("Get = %v, %v; want empty", got, err)
	}
	if err := s.Set(ctx, map[string][]byte{"theme": []byte(`"dark"`)}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err = s.Get(ctx, "theme")
	if err != nil || string(got["theme"]) != `"dark"` {
		t.Errorf("Get after Set = %q, %v; want \"dark\"", got["theme"], err)
	}
}

func TestFileStore_WritesPrivateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	s := NewFileStore(path)
	if err := s.Set(context.Background(), map[string][]byte{"theme": []byte(`"dark"`)}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}
}

func TestFileStore_RejectsNonJSON(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "settings.json"))
	if err := s.Set(context.Background(), map[string][]byte{"theme": []byte("dark")}); err == nil {
		t.Fatal("expected error for non-JSON value")
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{BackendMemory, BackendFile, BackendSQLite} {
		b, err := Open(Config{Backend: name, DataDir: dir})
		if err != nil {
			t.Errorf("Open(%s): %v", name, err)
			continue
		}
		b.Close()
	}

	if _, err := Open(Config{Backend: "etcd"}); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Open(etcd) err = %v, want ErrUnknownBackend", err)
	}
	if _, err := Open(Config{Backend: BackendRedis}); err == nil {
		t.Error("Open(redis) without URL: expected error")
	}
}

func TestOpenFileUsesLocation(t *testing.T) {
	cfg := Config{Backend: BackendFile, DataDir: t.TempDir()}
	b, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if err := b.Set(context.Background(), map[string][]byte{"theme": []byte(`"dark"`)}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(Location(cfg)); err != nil {
		t.Errorf("settings not written to Location(cfg) = %s: %v", Location(cfg), err)
	}
	if got := Location(Config{Backend: BackendMemory}); got != "" {
		t.Errorf("Location(memory) = %q, want empty", got)
	}
}
