// README: HTTP router registration (gin) for the carpool API.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"carpool/internal/http/handlers"
	"carpool/internal/http/middleware"
	"carpool/internal/infra"
	"carpool/internal/modules/group"
	"carpool/internal/modules/matching"
	"carpool/internal/modules/ride"
	"carpool/internal/modules/route"
)

type RouterDeps struct {
	Engine    *matching.Engine
	Rides     *ride.Service
	Groups    *group.Service
	Estimator *route.Estimator
	Verifier  infra.TokenVerifier
	Log       logrus.FieldLogger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	rideHandler := handlers.NewRideHandler(deps.Engine, deps.Rides)
	rides := api.Group("/rides")
	rides.POST("/request", rideHandler.Request)
	rides.GET("/pending", rideHandler.Pending)
	rides.GET("/for-drivers", rideHandler.ForDrivers)
	rides.GET("/current", rideHandler.Current)
	rides.GET("/history", rideHandler.History)
	rides.GET("/stats", rideHandler.Stats)
	rides.GET("/fare-summary", rideHandler.FareSummary)

	groupHandler := handlers.NewGroupHandler(deps.Groups)
	groups := api.Group("/groups")
	groups.GET("/unassigned", groupHandler.Unassigned)
	groups.GET("/matched", groupHandler.Matched)
	groups.GET("/driver-history", groupHandler.DriverHistory)
	groups.POST("/:id/accept", groupHandler.Accept)
	groups.POST("/:id/complete", groupHandler.Complete)

	geocodeHandler := handlers.NewGeocodeHandler(deps.Estimator)
	api.GET("/geocode/reverse", geocodeHandler.Reverse)

	return r
}
