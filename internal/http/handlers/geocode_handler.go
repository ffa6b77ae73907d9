// README: Reverse geocoding endpoint backed by the cached estimator.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"carpool/internal/modules/route"
	"carpool/internal/types"
)

type GeocodeHandler struct {
	estimator *route.Estimator
}

func NewGeocodeHandler(est *route.Estimator) *GeocodeHandler {
	return &GeocodeHandler{estimator: est}
}

func (h *GeocodeHandler) Reverse(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		writeErrorKind(c, http.StatusBadRequest, "bad_request", "lat and lng query parameters are required")
		return
	}
	addr, err := h.estimator.ReverseGeocode(c.Request.Context(), types.Point{Lat: lat, Lng: lng})
	switch {
	case err == nil:
		writeJSON(c, http.StatusOK, gin.H{"address": addr, "latitude": lat, "longitude": lng})
	case errors.Is(err, route.ErrInvalidCoordinate):
		writeError(c, err)
	case errors.Is(err, route.ErrNoGeocoder):
		writeErrorKind(c, http.StatusServiceUnavailable, "unavailable", err.Error())
	default:
		_ = c.Error(err)
		writeErrorKind(c, http.StatusBadGateway, "upstream", "reverse geocoding failed")
	}
}
