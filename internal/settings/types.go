package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrInvalidValue is returned when a value is outside its closed set.
var ErrInvalidValue = errors.New("invalid value")

type TriggerMode string

const (
	TriggerAlways   TriggerMode = "always"
	TriggerManually TriggerMode = "manually"
)

// TriggerModes lists every trigger mode in display order.
var TriggerModes = []TriggerMode{TriggerAlways, TriggerManually}

// TriggerModeText is the title/description pair shown for a trigger mode.
type TriggerModeText struct {
	Title string
	Desc  string
}

var triggerModeText = map[TriggerMode]TriggerModeText{
	TriggerAlways:   {Title: "Always", Desc: "ArxivGPT is queried on every search"},
	TriggerManually: {Title: "Manually", Desc: "ArxivGPT is queried when you manually click a button"},
}

// Text returns the display title and description for m.
func (m TriggerMode) Text() TriggerModeText {
	return triggerModeText[m]
}

func ParseTriggerMode(s string) (TriggerMode, error) {
	return parseEnum(s, "trigger mode", TriggerModes)
}

type Theme string

const (
	ThemeAuto  Theme = "auto"
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

var Themes = []Theme{ThemeAuto, ThemeLight, ThemeDark}

func ParseTheme(s string) (Theme, error) {
	return parseEnum(s, "theme", Themes)
}

type Language string

const (
	LanguageAuto       Language = "auto"
	LanguageEnglish    Language = "english"
	LanguageChinese    Language = "chinese"
	LanguageSpanish    Language = "spanish"
	LanguageFrench     Language = "french"
	LanguageKorean     Language = "korean"
	LanguageJapanese   Language = "japanese"
	LanguageGerman     Language = "german"
	LanguagePortuguese Language = "portuguese"
)

var Languages = []Language{
	LanguageAuto,
	LanguageEnglish,
	LanguageChinese,
	LanguageSpanish,
	LanguageFrench,
	LanguageKorean,
	LanguageJapanese,
	LanguageGerman,
	LanguagePortuguese,
}

func ParseLanguage(s string) (Language, error) {
	return parseEnum(s, "language", Languages)
}

type ProviderType string

const (
	ProviderChatGPT ProviderType = "chatgpt"
	ProviderGPT3    ProviderType = "gpt3"
	ProviderLlama   ProviderType = "llama"
)

var ProviderTypes = []ProviderType{ProviderChatGPT, ProviderGPT3, ProviderLlama}

func ParseProviderType(s string) (ProviderType, error) {
	return parseEnum(s, "provider", ProviderTypes)
}

func parseEnum[T ~string](s, what string, valid []T) (T, error) {
	v := T(strings.ToLower(strings.TrimSpace(s)))
	if !isValid(v, valid) {
		return "", fmt.Errorf("%w: unknown %s %q", ErrInvalidValue, what, s)
	}
	return v, nil
}

func isValid[T ~string](v T, valid []T) bool {
	for _, x := range valid {
		if x == v {
			return true
		}
	}
	return false
}

// SitePrompt associates a website with a custom prompt.
type SitePrompt struct {
	Site   string `json:"site" yaml:"site"`
	Prompt string `json:"prompt" yaml:"prompt"`
}

// UserConfig is the user-facing configuration. After a read every field is
// populated, either from the store or from the defaults.
type UserConfig struct {
	TriggerMode     TriggerMode  `json:"triggerMode" yaml:"triggerMode"`
	Theme           Theme        `json:"theme" yaml:"theme"`
	Language        Language     `json:"language" yaml:"language"`
	Prompt          string       `json:"prompt" yaml:"prompt"`
	PromptOverrides []SitePrompt `json:"promptOverrides" yaml:"promptOverrides"`
}

// PromptFor returns the prompt to use on site. Overrides are checked in
// order and the first match wins; otherwise the global prompt applies.
func (c UserConfig) PromptFor(site string) string {
	if strings.TrimSpace(site) != "" {
		for _, o := range c.PromptOverrides {
			if SameSite(o.Site, site) {
				return o.Prompt
			}
		}
	}
	return c.Prompt
}

// SameSite reports whether a and b name the same site: case is ignored and
// surrounding spaces are trimmed.
func SameSite(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func (c UserConfig) clone() UserConfig {
	out := c
	out.PromptOverrides = append([]SitePrompt{}, c.PromptOverrides...)
	return out
}

// UserConfigUpdate is a partial UserConfig. Nil fields are left untouched.
type UserConfigUpdate struct {
	TriggerMode     *TriggerMode  `json:"triggerMode,omitempty" yaml:"triggerMode,omitempty"`
	Theme           *Theme        `json:"theme,omitempty" yaml:"theme,omitempty"`
	Language        *Language     `json:"language,omitempty" yaml:"language,omitempty"`
	Prompt          *string       `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	PromptOverrides *[]SitePrompt `json:"promptOverrides,omitempty" yaml:"promptOverrides,omitempty"`
}

// IsEmpty reports whether no field is supplied.
func (u UserConfigUpdate) IsEmpty() bool {
	return u.TriggerMode == nil && u.Theme == nil && u.Language == nil &&
		u.Prompt == nil && u.PromptOverrides == nil
}

// LogValue lists the supplied fields. Prompt text is logged by length only.
func (u UserConfigUpdate) LogValue() slog.Value {
	var attrs []slog.Attr
	if u.TriggerMode != nil {
		attrs = append(attrs, slog.String(KeyTriggerMode, string(*u.TriggerMode)))
	}
	if u.Theme != nil {
		attrs = append(attrs, slog.String(KeyTheme, string(*u.Theme)))
	}
	if u.Language != nil {
		attrs = append(attrs, slog.String(KeyLanguage, string(*u.Language)))
	}
	if u.Prompt != nil {
		attrs = append(attrs, slog.Int(KeyPrompt+"_len", len(*u.Prompt)))
	}
	if u.PromptOverrides != nil {
		attrs = append(attrs, slog.Int(KeyPromptOverrides, len(*u.PromptOverrides)))
	}
	return slog.GroupValue(attrs...)
}

func (u UserConfigUpdate) validate() error {
	if u.TriggerMode != nil && !isValid(*u.TriggerMode, TriggerModes) {
		return fmt.Errorf("%w: unknown trigger mode %q", ErrInvalidValue, *u.TriggerMode)
	}
	if u.Theme != nil && !isValid(*u.Theme, Themes) {
		return fmt.Errorf("%w: unknown theme %q", ErrInvalidValue, *u.Theme)
	}
	if u.Language != nil && !isValid(*u.Language, Languages) {
		return fmt.Errorf("%w: unknown language %q", ErrInvalidValue, *u.Language)
	}
	return nil
}

// ProviderCredential is the model/API key pair of a self-configured provider.
type ProviderCredential struct {
	Model  string `json:"model" yaml:"model"`
	APIKey string `json:"apiKey" yaml:"apiKey"`
}

// Masked returns a copy of c with all but the last four characters of the
// API key replaced.
func (c ProviderCredential) Masked() ProviderCredential {
	c.APIKey = MaskKey(c.APIKey)
	return c
}

// MaskKey replaces all but the last four characters of key with '*'.
func MaskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

// Credentials holds one slot per credentialed provider. A nil slot means no
// credential is stored for that provider.
type Credentials struct {
	GPT3  *ProviderCredential `json:"gpt3" yaml:"gpt3"`
	Llama *ProviderCredential `json:"llama" yaml:"llama"`
}

// LooksMasked reports whether key is the output of MaskKey rather than a
// real API key.
func LooksMasked(key string) bool {
	return strings.HasPrefix(key, "*")
}

// For returns the slot for p; chatgpt has none.
func (c Credentials) For(p ProviderType) *ProviderCredential {
	switch p {
	case ProviderGPT3:
		return c.GPT3
	case ProviderLlama:
		return c.Llama
	}
	return nil
}

// With returns a copy of c with the slot for p replaced by cred.
func (c Credentials) With(p ProviderType, cred *ProviderCredential) (Credentials, error) {
	switch p {
	case ProviderGPT3:
		c.GPT3 = cred
	case ProviderLlama:
		c.Llama = cred
	default:
		return c, fmt.Errorf("%w: provider %q takes no credential", ErrInvalidValue, p)
	}
	return c, nil
}

func (c Credentials) Masked() Credentials {
	var out Credentials
	if c.GPT3 != nil {
		m := c.GPT3.Masked()
		out.GPT3 = &m
	}
	if c.Llama != nil {
		m := c.Llama.Masked()
		out.Llama = &m
	}
	return out
}

// LogValue never includes API keys.
func (c Credentials) LogValue() slog.Value {
	slot := func(cred *ProviderCredential) string {
		if cred == nil {
			return "<none>"
		}
		return cred.Model
	}
	return slog.GroupValue(
		slog.String(string(ProviderGPT3), slot(c.GPT3)),
		slog.String(string(ProviderLlama), slot(c.Llama)),
	)
}

type ProviderConfigs struct {
	Provider ProviderType `json:"provider" yaml:"provider"`
	Configs  Credentials  `json:"configs" yaml:"configs"`
}

// Active returns the credential of the selected provider, or nil.
func (p ProviderConfigs) Active() *ProviderCredential {
	return p.Configs.For(p.Provider)
}
