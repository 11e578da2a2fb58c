package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/papergpt/internal/config"
	"github.com/kalambet/papergpt/internal/settings"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- user ---

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Show or change the user configuration",
}

var userShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the user configuration as JSON, defaults included",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSettings(func(acc *settings.Accessor) error {
			cfg, err := acc.GetUserConfig(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cfg)
		})
	},
}

var userSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one user configuration field",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := parseUserField(args[0], args[1])
		if err != nil {
			return err
		}
		return withSettings(func(acc *settings.Accessor) error {
			if err := acc.UpdateUserConfig(cmd.Context(), u); err != nil {
				return err
			}
			printSuccess("Set %s", args[0])
			return nil
		})
	},
}

func userSetHelp() string {
	var b strings.Builder
	b.WriteString("Set one user configuration field.\n\nKeys:\n")
	fmt.Fprintf(&b, "  %-12s %s\n", settings.KeyTriggerMode, joinValues(settings.TriggerModes))
	for _, m := range settings.TriggerModes {
		txt := m.Text()
		fmt.Fprintf(&b, "  %-12s   %s: %s\n", "", txt.Title, txt.Desc)
	}
	fmt.Fprintf(&b, "  %-12s %s\n", settings.KeyTheme, joinValues(settings.Themes))
	fmt.Fprintf(&b, "  %-12s %s\n", settings.KeyLanguage, joinValues(settings.Languages))
	fmt.Fprintf(&b, "  %-12s free text", settings.KeyPrompt)
	return b.String()
}

func joinValues[T ~string](vals []T) string {
	s := make([]string, len(vals))
	for i, v := range vals {
		s[i] = string(v)
	}
	return strings.Join(s, " | ")
}

func parseUserField(key, value string) (settings.UserConfigUpdate, error) {
	var u settings.UserConfigUpdate
	switch key {
	case settings.KeyTriggerMode:
		m, err := settings.ParseTriggerMode(value)
		if err != nil {
			return u, err
		}
		u.TriggerMode = &m
	case settings.KeyTheme:
		t, err := settings.ParseTheme(value)
		if err != nil {
			return u, err
		}
		u.Theme = &t
	case settings.KeyLanguage:
		l, err := settings.ParseLanguage(value)
		if err != nil {
			return u, err
		}
		u.Language = &l
	case settings.KeyPrompt:
		u.Prompt = &value
	default:
		return u, fmt.Errorf("unknown user config key %q (valid: %s, %s, %s, %s)",
			key, settings.KeyTriggerMode, settings.KeyTheme, settings.KeyLanguage, settings.KeyPrompt)
	}
	return u, nil
}

var userPromptCmd = &cobra.Command{
	Use:   "prompt [site]",
	Short: "Print the prompt used on a site",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var site string
		if len(args) == 1 {
			site = args[0]
		}
		return withSettings(func(acc *settings.Accessor) error {
			cfg, err := acc.GetUserConfig(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.PromptFor(site))
			return nil
		})
	},
}

var userOverrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Manage per-site prompts",
}

var userOverrideAddCmd = &cobra.Command{
	Use:   "add <site> <prompt>",
	Short: "Add or replace the prompt for a site",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		site, prompt := args[0], args[1]
		return withSettings(func(acc *settings.Accessor) error {
			cfg, err := acc.GetUserConfig(cmd.Context())
			if err != nil {
				return err
			}
			overrides := setOverride(cfg.PromptOverrides, site, prompt)
			if err := acc.UpdateUserConfig(cmd.Context(), settings.UserConfigUpdate{PromptOverrides: &overrides}); err != nil {
				return err
			}
			printSuccess("Prompt override set for %s", site)
			return nil
		})
	},
}

var userOverrideRmCmd = &cobra.Command{
	Use:     "rm <site>",
	Aliases: []string{"remove"},
	Short:   "Remove the prompt override for a site",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		site := args[0]
		return withSettings(func(acc *settings.Accessor) error {
			cfg, err := acc.GetUserConfig(cmd.Context())
			if err != nil {
				return err
			}
			overrides, removed := removeOverride(cfg.PromptOverrides, site)
			if !removed {
				printWarning("No prompt override for %s", site)
				return nil
			}
			if err := acc.UpdateUserConfig(cmd.Context(), settings.UserConfigUpdate{PromptOverrides: &overrides}); err != nil {
				return err
			}
			printSuccess("Prompt override removed for %s", site)
			return nil
		})
	},
}

// setOverride replaces the prompt of an existing entry for site, or appends one.
// Sites match the way UserConfig.PromptFor matches them.
func setOverride(overrides []settings.SitePrompt, site, prompt string) []settings.SitePrompt {
	site = strings.TrimSpace(site)
	out := append([]settings.SitePrompt{}, overrides...)
	for i := range out {
		if settings.SameSite(out[i].Site, site) {
			out[i].Prompt = prompt
			return out
		}
	}
	return append(out, settings.SitePrompt{Site: site, Prompt: prompt})
}

func removeOverride(overrides []settings.SitePrompt, site string) ([]settings.SitePrompt, bool) {
	out := make([]settings.SitePrompt, 0, len(overrides))
	removed := false
	for _, o := range overrides {
		if settings.SameSite(o.Site, site) {
			removed = true
			continue
		}
		out = append(out, o)
	}
	return out, removed
}

func init() {
	userSetCmd.Long = userSetHelp()

	userOverrideCmd.AddCommand(userOverrideAddCmd)
	userOverrideCmd.AddCommand(userOverrideRmCmd)

	userCmd.AddCommand(userShowCmd)
	userCmd.AddCommand(userSetCmd)
	userCmd.AddCommand(userPromptCmd)
	userCmd.AddCommand(userOverrideCmd)
}

// --- provider ---

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Select the AI provider and manage its credentials",
}

var providerShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the selected provider and stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		reveal, _ := cmd.Flags().GetBool("reveal")
		return withSettings(func(acc *settings.Accessor) error {
			pc, err := acc.GetProviderConfigs(cmd.Context())
			if err != nil {
				return err
			}
			if !reveal {
				pc.Configs = pc.Configs.Masked()
			}
			return printJSON(cmd.OutOrStdout(), pc)
		})
	},
}

var providerUseCmd = &cobra.Command{
	Use:   "use <provider>",
	Short: "Select the provider (chatgpt, gpt3 or llama)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := settings.ParseProviderType(args[0])
		if err != nil {
			return err
		}
		return withSettings(func(acc *settings.Accessor) error {
			pc, err := acc.GetProviderConfigs(cmd.Context())
			if err != nil {
				return err
			}
			if err := acc.SaveProviderConfigs(cmd.Context(), p, pc.Configs); err != nil {
				return err
			}
			if p != settings.ProviderChatGPT && pc.Configs.For(p) == nil {
				printWarning("No credential stored for %s; run `papergpt provider set %s --model ... --api-key ...`", p, p)
			}
			printSuccess("Provider set to %s", p)
			return nil
		})
	},
}

var providerSetCmd = &cobra.Command{
	Use:   "set <provider>",
	Short: "Store the model and API key of gpt3 or llama",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := settings.ParseProviderType(args[0])
		if err != nil {
			return err
		}
		model, _ := cmd.Flags().GetString("model")
		apiKey, _ := cmd.Flags().GetString("api-key")
		activate, _ := cmd.Flags().GetBool("use")
		if model == "" && apiKey == "" {
			return fmt.Errorf("one of --model or --api-key is required")
		}

		return withSettings(func(acc *settings.Accessor) error {
			pc, err := acc.GetProviderConfigs(cmd.Context())
			if err != nil {
				return err
			}
			cred := settings.ProviderCredential{Model: model, APIKey: apiKey}
			if prev := pc.Configs.For(p); prev != nil {
				if cred.Model == "" {
					cred.Model = prev.Model
				}
				if cred.APIKey == "" {
					cred.APIKey = prev.APIKey
				}
			}
			configs, err := pc.Configs.With(p, &cred)
			if err != nil {
				return err
			}
			selected := pc.Provider
			if activate {
				selected = p
			}
			if err := acc.SaveProviderConfigs(cmd.Context(), selected, configs); err != nil {
				return err
			}
			printSuccess("Stored %s credential (model %s, key %s)", p, cred.Model, settings.MaskKey(cred.APIKey))
			return nil
		})
	},
}

var providerClearCmd = &cobra.Command{
	Use:   "clear <provider>",
	Short: "Remove the stored credential of gpt3 or llama",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := settings.ParseProviderType(args[0])
		if err != nil {
			return err
		}
		return withSettings(func(acc *settings.Accessor) error {
			pc, err := acc.GetProviderConfigs(cmd.Context())
			if err != nil {
				return err
			}
			configs, err := pc.Configs.With(p, nil)
			if err != nil {
				return err
			}
			if err := acc.SaveProviderConfigs(cmd.Context(), pc.Provider, configs); err != nil {
				return err
			}
			printSuccess("Cleared %s credential", p)
			if pc.Provider == p {
				printWarning("%s is still the selected provider", p)
			}
			return nil
		})
	},
}

func init() {
	providerShowCmd.Flags().Bool("reveal", false, "print API keys in clear text")
	providerSetCmd.Flags().String("model", "", "model name")
	providerSetCmd.Flags().String("api-key", "", "API key")
	providerSetCmd.Flags().Bool("use", false, "also select this provider")

	providerCmd.AddCommand(providerShowCmd)
	providerCmd.AddCommand(providerUseCmd)
	providerCmd.AddCommand(providerSetCmd)
	providerCmd.AddCommand(providerClearCmd)
}

// --- settings ---

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Export or import all settings as YAML",
}

var settingsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write user and provider settings as YAML (API keys included)",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		return withSettings(func(acc *settings.Accessor) error {
			snap, err := acc.Export(cmd.Context())
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				return settings.WriteSnapshot(cmd.OutOrStdout(), snap)
			}

			f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}
			if err := settings.WriteSnapshot(f, snap); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			printSuccess("Exported settings to %s", output)
			return nil
		})
	},
}

var settingsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Apply a YAML settings file; fields it leaves out are unchanged",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()
			r = f
		}

		patch, err := settings.ReadSnapshot(r)
		if err != nil {
			return err
		}
		return withSettings(func(acc *settings.Accessor) error {
			if err := acc.Import(cmd.Context(), patch); err != nil {
				return err
			}
			printSuccess("Imported settings from %s", args[0])
			return nil
		})
	},
}

func init() {
	settingsExportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")

	settingsCmd.AddCommand(settingsExportCmd)
	settingsCmd.AddCommand(settingsImportCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s  (%s)\n", colorize(colorBold, k.Key), k.Value, k.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value so its default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configSetCmd.Long = "Set a configuration value.\n\nKeys: " + strings.Join(config.ValidKeys(), ", ")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}
