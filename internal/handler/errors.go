package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tamilselvan8428/person-tracking/internal/apperr"
	"go.uber.org/zap"
)

// respondError translates an engine error into its HTTP response. Internal
// failures are logged with their cause but surface as an opaque 500.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	status := apperr.Status(err)
	if status == http.StatusInternalServerError {
		log.Error("Request failed", zap.Error(err))
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

// unixOrNil renders a nullable timestamp as epoch seconds.
func unixOrNil(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ts := t.Unix()
	return &ts
}
