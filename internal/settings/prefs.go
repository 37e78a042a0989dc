package settings

import (
	"context"
	"fmt"
	"strings"
)

// Display modes and text directions accepted by preference writes.
const (
	DisplayModeReplace = "replace"
	DisplayModeOverlay = "overlay"

	TextDirectionAuto = "auto"
	TextDirectionLTR  = "ltr"
	TextDirectionRTL  = "rtl"
)

// DefaultPromptTemplate is seeded at install time. The index-tag instruction
// matters: agents join text blocks with [n][/n] markers before one batch call.
const DefaultPromptTemplate = `You are a professional translator. Your task is to translate the provided text into {language}.
- Preserve the original meaning, context, and tone (formal/informal, technical, etc.).
- Do not translate names, brands, or technical terms unless there is a widely accepted equivalent in {language}.
- If the text contains idioms, metaphors, or cultural references, adapt them appropriately for a native {language} speaker.
- Maintain formatting, punctuation, and line breaks as in the original.
- Do not add explanations or extra commentary. Return only the translated text.
- Remember to keep all index tags like [0][/0], [1][/1] intact when translating multiple texts.`

// Preferences is the fully resolved preference record. Every field is
// non-empty after FromValues; the credential is deliberately not part of it.
type Preferences struct {
	TargetLanguage string
	PromptTemplate string
	DisplayMode    string
	TextDirection  string
}

// DefaultPreferences returns the hardcoded defaults used for install-time
// seeding and for resolving missing stored fields.
func DefaultPreferences() Preferences {
	return Preferences{
		TargetLanguage: "ar",
		PromptTemplate: DefaultPromptTemplate,
		DisplayMode:    DisplayModeReplace,
		TextDirection:  TextDirectionAuto,
	}
}

// FromValues resolves a partial stored record into full Preferences, filling
// every missing or blank field from the defaults.
func FromValues(values Values) Preferences {
	prefs := DefaultPreferences()
	if v := strings.TrimSpace(values[KeyTargetLanguage]); v != "" {
		prefs.TargetLanguage = v
	}
	if v := strings.TrimSpace(values[KeyPromptTemplate]); v != "" {
		prefs.PromptTemplate = values[KeyPromptTemplate]
	}
	if v := strings.TrimSpace(values[KeyDisplayMode]); v != "" {
		prefs.DisplayMode = v
	}
	if v := strings.TrimSpace(values[KeyTextDirection]); v != "" {
		prefs.TextDirection = v
	}
	return prefs
}

// ToValues flattens Preferences into a full store record.
func (p Preferences) ToValues() Values {
	return Values{
		KeyTargetLanguage: p.TargetLanguage,
		KeyPromptTemplate: p.PromptTemplate,
		KeyDisplayMode:    p.DisplayMode,
		KeyTextDirection:  p.TextDirection,
	}
}

// Validate rejects enum values the surfaces cannot render.
func (p Preferences) Validate() error {
	switch p.DisplayMode {
	case DisplayModeReplace, DisplayModeOverlay:
	default:
		return fmt.Errorf("display mode %q is not supported", p.DisplayMode)
	}
	switch p.TextDirection {
	case TextDirectionAuto, TextDirectionLTR, TextDirectionRTL:
	default:
		return fmt.Errorf("text direction %q is not supported", p.TextDirection)
	}
	if strings.TrimSpace(p.TargetLanguage) == "" {
		return fmt.Errorf("target language is required")
	}
	if strings.TrimSpace(p.PromptTemplate) == "" {
		return fmt.Errorf("prompt template is required")
	}
	return nil
}

// LoadPreferences reads the preference keys and resolves defaults.
func LoadPreferences(ctx context.Context, store Store) (Preferences, error) {
	if store == nil {
		return Preferences{}, fmt.Errorf("settings store is nil")
	}
	values, err := store.Get(ctx, PreferenceKeys()...)
	if err != nil {
		return Preferences{}, fmt.Errorf("read preferences: %w", err)
	}
	return FromValues(values), nil
}
