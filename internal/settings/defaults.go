package settings

// DefaultPrompt is the instruction used when no prompt has been stored. It
// must match the extension's default byte for byte, spacing included.
const DefaultPrompt = "Please summarize the paper by author(s) in one concise sentence.  " +
	"Then, list key insights and lessons learned from the paper. " +
	"Next, generate 3-5 questions that you would like to ask the authors about their work.  " +
	"Finally, provide 3-5 suggestions for related topics or future research directions  " +
	"based on the content of the paper.  " +
	"If applicable, list at least 5 relevant references from the field of study of the paper.  "

// DefaultProvider is selected until a provider has been saved.
const DefaultProvider = ProviderChatGPT

// DefaultUserConfig returns the record absent keys are filled from. Each call
// returns a fresh value.
func DefaultUserConfig() UserConfig {
	return UserConfig{
		TriggerMode:     TriggerAlways,
		Theme:           ThemeAuto,
		Language:        LanguageAuto,
		Prompt:          DefaultPrompt,
		PromptOverrides: []SitePrompt{},
	}
}

// Persisted keys. The layout matches what the browser extension writes to
// its local storage area.
const (
	KeyTriggerMode     = "triggerMode"
	KeyTheme           = "theme"
	KeyLanguage        = "language"
	KeyPrompt          = "prompt"
	KeyPromptOverrides = "promptOverrides"
	KeyProvider        = "provider"
)

// UserConfigKeys lists every key read by GetUserConfig.
var UserConfigKeys = []string{
	KeyTriggerMode,
	KeyTheme,
	KeyLanguage,
	KeyPrompt,
	KeyPromptOverrides,
}

// ProviderKey returns the namespaced key holding p's credential.
func ProviderKey(p ProviderType) string {
	return KeyProvider + ":" + string(p)
}
