package settings

import (
	"encoding/json"
	"testing"
)

func TestValidatePreferencesUpdate_Valid(t *testing.T) {
	t.Parallel()

	update, err := ValidatePreferencesUpdate(json.RawMessage(`{"targetLanguage":"es","displayMode":"overlay"}`))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if update.TargetLanguage == nil || *update.TargetLanguage != "es" {
		t.Fatalf("targetLanguage not decoded: %+v", update)
	}
	if update.PromptTemplate != nil {
		t.Fatalf("absent field must stay nil")
	}

	prefs := update.Apply(DefaultPreferences())
	if prefs.TargetLanguage != "es" || prefs.DisplayMode != DisplayModeOverlay {
		t.Fatalf("apply did not fold update: %+v", prefs)
	}
	if prefs.PromptTemplate != DefaultPromptTemplate {
		t.Fatalf("untouched field changed: %q", prefs.PromptTemplate)
	}
}

func TestValidatePreferencesUpdate_Rejections(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty object":     `{}`,
		"unknown key":      `{"apiKey":"secret"}`,
		"bad display mode": `{"displayMode":"sideways"}`,
		"bad direction":    `{"textDirection":"up"}`,
		"blank template":   `{"promptTemplate":"   "}`,
		"bad language":     `{"targetLanguage":"!!"}`,
		"trailing content": `{"displayMode":"replace"} {}`,
		"empty payload":    ``,
	}

	for name, payload := range cases {
		if _, err := ValidatePreferencesUpdate(json.RawMessage(payload)); err == nil {
			t.Errorf("%s: expected rejection for %q", name, payload)
		}
	}
}
