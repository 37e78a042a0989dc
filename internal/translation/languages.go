package translation

import (
	"sort"
	"strings"
)

// TemplatePlaceholder is replaced with the language display name when a
// prompt template is expanded.
const TemplatePlaceholder = "{language}"

type LanguageOption struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

var languageLabels = map[string]string{
	"ar": "Arabic",
	"de": "German",
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"id": "Indonesian",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"pl": "Polish",
	"pt": "Portuguese",
	"ru": "Russian",
	"th": "Thai",
	"tr": "Turkish",
	"vi": "Vietnamese",
	"zh": "Chinese",
}

// DisplayName resolves a language code to its English display name. Unknown
// codes fall back to the raw code so template expansion never produces an
// empty language.
func DisplayName(code string) string {
	normalized := NormalizeLangCode(code)
	if label, ok := languageLabels[normalized]; ok {
		return label
	}
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "English"
	}
	return trimmed
}

// ExpandTemplate substitutes the language display name into every
// {language} placeholder of a prompt template.
func ExpandTemplate(template, langCode string) string {
	return strings.ReplaceAll(template, TemplatePlaceholder, DisplayName(langCode))
}

// SupportedLanguageCodes lists every labeled language code, sorted.
func SupportedLanguageCodes() []string {
	codes := make([]string, 0, len(languageLabels))
	for code := range languageLabels {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// LanguageOptions builds the selector options rendered by the trigger
// surface, merging provider-reported languages into the labeled set.
func LanguageOptions(registry *Registry) []LanguageOption {
	supported := map[string]struct{}{}
	for code := range languageLabels {
		supported[code] = struct{}{}
	}

	if registry != nil {
		for _, provider := range registry.providers {
			for _, code := range provider.SupportedLanguages() {
				normalized := NormalizeLangCode(code)
				if normalized == "" {
					continue
				}
				supported[normalized] = struct{}{}
			}
		}
	}

	codes := make([]string, 0, len(supported))
	for code := range supported {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	options := make([]LanguageOption, 0, len(codes))
	for _, code := range codes {
		options = append(options, LanguageOption{
			Code:  code,
			Label: DisplayName(code),
		})
	}
	return options
}

// NormalizeLangCode returns the lowercase primary subtag (for example, "en"
// from "en-US"), or an empty string for blank or malformed values.
func NormalizeLangCode(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}
	trimmed = strings.ReplaceAll(trimmed, "_", "-")
	if dash := strings.IndexByte(trimmed, '-'); dash >= 0 {
		trimmed = trimmed[:dash]
	}
	for _, r := range trimmed {
		if r < 'a' || r > 'z' {
			return ""
		}
	}
	return trimmed
}
