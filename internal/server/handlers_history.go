package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hhoikoo/multiuser-webchat/internal/logging"
)

// handleHistory returns up to "limit" recent messages in chronological
// order. The limit is clamped to the configured history retention.
func (s *Server) handleHistory(c echo.Context) error {
	limit := int64(s.config.HistoryLimit)

	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			return c.String(http.StatusBadRequest, "limit must be a positive integer")
		}
		if parsed < limit {
			limit = parsed
		}
	}

	messages, err := s.history.Recent(c.Request().Context(), limit)
	if err != nil {
		logging.WithError(err).Error("Failed to read message history")
		return c.String(http.StatusInternalServerError, "failed to read history")
	}

	return c.JSON(http.StatusOK, messages)
}
