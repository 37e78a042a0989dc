package httpapi

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/skim/internal/bus"
	"horse.fit/skim/internal/coordinator"
	"horse.fit/skim/internal/trigger"
)

func (s *Server) handleSurfaceStatus(c echo.Context) error {
	prefs := s.surface.Preferences()
	return success(c, map[string]any{
		"status": s.surface.Status(),
		"preferences": preferencesResponse{
			TargetLanguage: prefs.TargetLanguage,
			PromptTemplate: prefs.PromptTemplate,
			DisplayMode:    prefs.DisplayMode,
			TextDirection:  prefs.TextDirection,
		},
	})
}

func (s *Server) handleSurfaceOpen(c echo.Context) error {
	if err := s.surface.Open(c.Request().Context()); err != nil {
		if strings.Contains(err.Error(), "already open") {
			return failConflict(c, "Trigger surface is already open")
		}
		s.logger.Error().Err(err).Msg("surface open failed")
		return internalError(c, "Failed to open the trigger surface")
	}
	return success(c, map[string]any{
		"status": s.surface.Status(),
	})
}

func (s *Server) handleSurfaceClose(c echo.Context) error {
	s.surface.Close()
	return success(c, map[string]any{
		"closed": true,
	})
}

type translatePayload struct {
	PageID string `json:"page_id"`
}

func (s *Server) handleSurfaceTranslate(c echo.Context) error {
	var payload translatePayload
	if err := decodeJSONBody(c, &payload); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	pageID := strings.TrimSpace(payload.PageID)
	if pageID == "" {
		return failValidation(c, map[string]string{"page_id": "is required"})
	}

	ack, err := s.surface.Translate(c.Request().Context(), pageID)
	switch {
	case errors.Is(err, trigger.ErrBusy):
		return failConflict(c, "A translation is already in progress")
	case errors.Is(err, trigger.ErrClosed):
		return failConflict(c, "The trigger surface is not open")
	case errors.Is(err, bus.ErrNoReceiver):
		return failNotFound(c, "No page agent is attached to that page")
	case err != nil:
		s.logger.Error().Err(err).Str("page_id", pageID).Msg("translate failed")
		return internalError(c, "Failed to start translation")
	}

	return success(c, map[string]any{
		"ack":    ack,
		"status": s.surface.Status(),
	})
}

type activatePayload struct {
	URL string `json:"url"`
}

func (s *Server) handleActivatePage(c echo.Context) error {
	pageID := strings.TrimSpace(c.Param("page_id"))
	if pageID == "" {
		return failValidation(c, map[string]string{"page_id": "is required"})
	}

	var payload activatePayload
	if err := decodeJSONBody(c, &payload); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	if strings.TrimSpace(payload.URL) == "" {
		return failValidation(c, map[string]string{"url": "is required"})
	}

	ack, err := s.coord.Activate(c.Request().Context(), coordinator.Page{ID: pageID, URL: payload.URL})
	switch {
	case errors.Is(err, coordinator.ErrRestrictedPage):
		return failValidation(c, map[string]string{"url": "pages on this scheme cannot be translated"})
	case err != nil:
		s.logger.Error().Err(err).Str("page_id", pageID).Msg("page activation failed")
		return internalError(c, "Failed to activate the page")
	}

	return success(c, map[string]any{
		"ack": ack,
	})
}

func (s *Server) handlePageResult(c echo.Context) error {
	pageID := strings.TrimSpace(c.Param("page_id"))
	if pageID == "" {
		return failValidation(c, map[string]string{"page_id": "is required"})
	}

	pageAgent, ok := s.pages.Lookup(pageID)
	if !ok {
		return failNotFound(c, "No page agent is attached to that page")
	}

	result, ok := pageAgent.LastResult()
	if !ok {
		return failNotFound(c, "The page has no finished translation")
	}

	return success(c, map[string]any{
		"busy":   pageAgent.Busy(),
		"result": result,
	})
}
