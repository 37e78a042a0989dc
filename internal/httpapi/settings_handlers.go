package httpapi

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/skim/internal/settings"
	"horse.fit/skim/internal/translation"
)

type preferencesResponse struct {
	TargetLanguage   string `json:"targetLanguage"`
	PromptTemplate   string `json:"promptTemplate"`
	DisplayMode      string `json:"displayMode"`
	TextDirection    string `json:"textDirection"`
	APIKeyConfigured bool   `json:"api_key_configured"`
}

func (s *Server) handleGetSettings(c echo.Context) error {
	ctx := c.Request().Context()

	prefs, err := settings.LoadPreferences(ctx, s.store)
	if err != nil {
		s.logger.Error().Err(err).Msg("load preferences failed")
		return internalError(c, "Failed to load settings")
	}

	keyValues, err := s.store.Get(ctx, settings.KeyAPIKey)
	if err != nil {
		s.logger.Error().Err(err).Msg("load api key failed")
		return internalError(c, "Failed to load settings")
	}

	// The key itself never leaves the store through this endpoint.
	return success(c, map[string]any{
		"settings": preferencesResponse{
			TargetLanguage:   prefs.TargetLanguage,
			PromptTemplate:   prefs.PromptTemplate,
			DisplayMode:      prefs.DisplayMode,
			TextDirection:    prefs.TextDirection,
			APIKeyConfigured: strings.TrimSpace(keyValues[settings.KeyAPIKey]) != "",
		},
	})
}

func (s *Server) handlePutSettings(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return failValidation(c, map[string]string{"body": "could not be read"})
	}

	update, err := settings.ValidatePreferencesUpdate(json.RawMessage(body))
	if err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	ctx := c.Request().Context()
	current, err := settings.LoadPreferences(ctx, s.store)
	if err != nil {
		s.logger.Error().Err(err).Msg("load preferences failed")
		return internalError(c, "Failed to update settings")
	}

	next := update.Apply(current)
	if update.TargetLanguage != nil {
		normalized := translation.NormalizeLangCode(next.TargetLanguage)
		if normalized == "" {
			return failValidation(c, map[string]string{"targetLanguage": "is not a valid language code"})
		}
		next.TargetLanguage = normalized
	}
	if err := next.Validate(); err != nil {
		return failValidation(c, map[string]string{"settings": err.Error()})
	}

	// Full-record write, matching the surface's write-through behavior.
	if err := s.store.Set(ctx, next.ToValues()); err != nil {
		s.logger.Error().Err(err).Msg("save preferences failed")
		return internalError(c, "Failed to update settings")
	}

	return success(c, map[string]any{
		"settings": preferencesResponse{
			TargetLanguage: next.TargetLanguage,
			PromptTemplate: next.PromptTemplate,
			DisplayMode:    next.DisplayMode,
			TextDirection:  next.TextDirection,
		},
	})
}

type apiKeyPayload struct {
	APIKey string `json:"apiKey"`
}

func (s *Server) handlePutAPIKey(c echo.Context) error {
	var payload apiKeyPayload
	if err := decodeJSONBody(c, &payload); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	key := strings.TrimSpace(payload.APIKey)
	if key == "" {
		return failValidation(c, map[string]string{"apiKey": "Please enter an API key"})
	}

	if err := s.store.Set(c.Request().Context(), settings.Values{settings.KeyAPIKey: key}); err != nil {
		s.logger.Error().Err(err).Msg("save api key failed")
		return internalError(c, "Failed to save API key")
	}

	return success(c, map[string]any{
		"api_key_configured": true,
	})
}

func (s *Server) handleLanguages(c echo.Context) error {
	return success(c, map[string]any{
		"items": translation.LanguageOptions(s.registry),
	})
}
