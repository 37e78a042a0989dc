package translation

import "context"

// Provider translates free-form text into a target language.
type Provider interface {
	Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error)
	Name() string
	SupportedLanguages() []string
}

// TranslateRequest describes one translation call. Prompt is the
// already-substituted instruction from the user's template; APIKey is the
// credential resolved through the coordinator, blank for keyless providers.
type TranslateRequest struct {
	Text       string
	TargetLang string // ISO 639-1 (for example: "es", "ar")
	Prompt     string
	APIKey     string
}

// TranslateResponse contains translated text and provider metadata.
type TranslateResponse struct {
	Text         string
	TargetLang   string
	ProviderName string
	LatencyMs    int64
}
