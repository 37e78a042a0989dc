package settings

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed preferences_update.schema.json
var preferencesUpdateSchemaJSON string

// PreferencesUpdate is a partial preference edit. Nil fields are untouched.
type PreferencesUpdate struct {
	TargetLanguage *string `json:"targetLanguage,omitempty"`
	PromptTemplate *string `json:"promptTemplate,omitempty"`
	DisplayMode    *string `json:"displayMode,omitempty"`
	TextDirection  *string `json:"textDirection,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidatePreferencesUpdate checks an update payload against the embedded
// schema and decodes it. Unknown keys and empty payloads are rejected.
func ValidatePreferencesUpdate(payload json.RawMessage) (*PreferencesUpdate, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var update PreferencesUpdate
	if err := json.Unmarshal(normalized, &update); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if update.PromptTemplate != nil && strings.TrimSpace(*update.PromptTemplate) == "" {
		return nil, fmt.Errorf("promptTemplate must not be blank")
	}

	return &update, nil
}

// Apply folds the update into a preference record.
func (u *PreferencesUpdate) Apply(prefs Preferences) Preferences {
	if u == nil {
		return prefs
	}
	if u.TargetLanguage != nil {
		prefs.TargetLanguage = strings.TrimSpace(*u.TargetLanguage)
	}
	if u.PromptTemplate != nil {
		prefs.PromptTemplate = *u.PromptTemplate
	}
	if u.DisplayMode != nil {
		prefs.DisplayMode = strings.TrimSpace(*u.DisplayMode)
	}
	if u.TextDirection != nil {
		prefs.TextDirection = strings.TrimSpace(*u.TextDirection)
	}
	return prefs
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("preferences_update.schema.json", strings.NewReader(preferencesUpdateSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("preferences_update.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}
