// README: Rider and driver ride endpoints (request, pending, current, history, stats, fare summary).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carpool/internal/http/middleware"
	"carpool/internal/modules/matching"
	"carpool/internal/modules/ride"
)

type RideHandler struct {
	engine *matching.Engine
	rides  *ride.Service
}

func NewRideHandler(engine *matching.Engine, rides *ride.Service) *RideHandler {
	return &RideHandler{engine: engine, rides: rides}
}

type requestRideReq struct {
	Pickup matching.Endpoint `json:"pickupLocation"`
	Drop   matching.Endpoint `json:"dropLocation"`
}

func (h *RideHandler) Request(c *gin.Context) {
	var req requestRideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorKind(c, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	caller := middleware.Caller(c)
	res, err := h.engine.RequestRide(c.Request.Context(), matching.RequestCommand{
		RiderID: caller.ID,
		Role:    caller.Role,
		Pickup:  req.Pickup,
		Drop:    req.Drop,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusCreated
	if res.Matched {
		status = http.StatusOK
	}
	writeJSON(c, status, res)
}

func (h *RideHandler) Pending(c *gin.Context) {
	rides, err := h.rides.Pending(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, rides)
}

func (h *RideHandler) ForDrivers(c *gin.Context) {
	rides, err := h.rides.ForDrivers(c.Request.Context(), middleware.Caller(c))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, rides)
}

// Current responds with null when the rider has never requested a ride.
func (h *RideHandler) Current(c *gin.Context) {
	cur, err := h.rides.Current(c.Request.Context(), middleware.Caller(c))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cur)
}

func (h *RideHandler) History(c *gin.Context) {
	rides, err := h.rides.History(c.Request.Context(), middleware.Caller(c))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, rides)
}

func (h *RideHandler) Stats(c *gin.Context) {
	stats, err := h.rides.DriverStats(c.Request.Context(), middleware.Caller(c))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, stats)
}

func (h *RideHandler) FareSummary(c *gin.Context) {
	sum, err := h.rides.FareSummary(c.Request.Context(), middleware.Caller(c))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, sum)
}
