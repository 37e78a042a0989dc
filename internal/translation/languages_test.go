package translation

import (
	"strings"
	"testing"
)

func TestExpandTemplate_SubstitutesDisplayName(t *testing.T) {
	t.Parallel()

	got := ExpandTemplate("Translate to {language}", "es")
	if got != "Translate to Spanish" {
		t.Fatalf("unexpected expansion: %q", got)
	}
	if strings.Contains(got, TemplatePlaceholder) {
		t.Fatalf("residual placeholder in %q", got)
	}
}

func TestExpandTemplate_ReplacesEveryPlaceholder(t *testing.T) {
	t.Parallel()

	got := ExpandTemplate("Into {language}. Keep {language} idioms.", "ja")
	if got != "Into Japanese. Keep Japanese idioms." {
		t.Fatalf("unexpected expansion: %q", got)
	}
}

func TestDisplayName_UnknownCodeFallsBack(t *testing.T) {
	t.Parallel()

	if got := DisplayName("xx"); got != "xx" {
		t.Fatalf("unknown code should pass through, got %q", got)
	}
	if got := DisplayName("en-US"); got != "English" {
		t.Fatalf("region subtag should normalize, got %q", got)
	}
}

func TestNormalizeLangCode(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"EN":    "en",
		"en-US": "en",
		"zh_CN": "zh",
		"  ":    "",
		"e2":    "",
	}
	for input, want := range cases {
		if got := NormalizeLangCode(input); got != want {
			t.Fatalf("NormalizeLangCode(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestRegistry_ResolvesDefaultAndNamed(t *testing.T) {
	t.Parallel()

	registry := NewRegistry("gemini")
	if err := registry.Register(NewGeminiProvider("", "")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(NewLocalProvider("", "")); err != nil {
		t.Fatalf("register: %v", err)
	}

	provider, err := registry.Provider("")
	if err != nil {
		t.Fatalf("resolve default: %v", err)
	}
	if provider.Name() != "gemini" {
		t.Fatalf("unexpected default provider: %s", provider.Name())
	}

	provider, err = registry.Provider("LOCAL")
	if err != nil {
		t.Fatalf("resolve named: %v", err)
	}
	if provider.Name() != "local" {
		t.Fatalf("unexpected named provider: %s", provider.Name())
	}

	if _, err := registry.Provider("deepl"); err == nil {
		t.Fatalf("expected unknown provider to fail")
	}
}

func TestLanguageOptions_SortedAndLabeled(t *testing.T) {
	t.Parallel()

	options := LanguageOptions(nil)
	if len(options) == 0 {
		t.Fatalf("expected language options")
	}
	for i := 1; i < len(options); i++ {
		if options[i-1].Code >= options[i].Code {
			t.Fatalf("options are not sorted: %q before %q", options[i-1].Code, options[i].Code)
		}
	}
	for _, option := range options {
		if option.Label == "" {
			t.Fatalf("option %q has no label", option.Code)
		}
	}
}
