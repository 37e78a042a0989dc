package httpapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// JSend-style envelopes: "success" carries data, "fail" carries caller
// mistakes, "error" is ours.

func success(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "success",
		"data":   data,
	})
}

func fail(c echo.Context, status int, message string, errors map[string]string) error {
	payload := map[string]any{
		"status":  "fail",
		"message": message,
	}
	if len(errors) > 0 {
		payload["errors"] = errors
	}
	return c.JSON(status, payload)
}

func failValidation(c echo.Context, errors map[string]string) error {
	return fail(c, http.StatusBadRequest, "Validation failed", errors)
}

func failNotFound(c echo.Context, message string) error {
	return fail(c, http.StatusNotFound, message, nil)
}

func failConflict(c echo.Context, message string) error {
	return fail(c, http.StatusConflict, message, nil)
}

func internalError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, map[string]any{
		"status":  "error",
		"message": message,
	})
}

func decodeJSONBody(c echo.Context, target any) error {
	if err := c.Bind(target); err != nil {
		return fmt.Errorf("body must be valid JSON")
	}
	return nil
}
