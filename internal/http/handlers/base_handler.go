// README: Base handler utilities (JSON helpers, error-kind mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"carpool/internal/modules/ride"
	"carpool/internal/modules/route"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeErrorKind(c *gin.Context, status int, kind, msg string) {
	writeJSON(c, status, errorResponse{Error: msg, Kind: kind})
}

// writeError maps service errors to status codes; unknown errors never leak their message.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ride.ErrBadRequest), errors.Is(err, route.ErrInvalidCoordinate):
		writeErrorKind(c, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, ride.ErrNotFound):
		writeErrorKind(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ride.ErrConflict):
		writeErrorKind(c, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, ride.ErrForbidden):
		writeErrorKind(c, http.StatusForbidden, "forbidden", err.Error())
	default:
		_ = c.Error(err)
		writeErrorKind(c, http.StatusInternalServerError, "internal", "internal error")
	}
}
