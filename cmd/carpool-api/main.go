// README: Entry point; loads config, wires stores and services, starts the HTTP server and the cache sweeper.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"carpool/internal/config"
	"carpool/internal/events"
	httptransport "carpool/internal/http"
	"carpool/internal/infra"
	"carpool/internal/logging"
	"carpool/internal/maps"
	"carpool/internal/modules/group"
	"carpool/internal/modules/matching"
	"carpool/internal/modules/pricing"
	"carpool/internal/modules/ride"
	"carpool/internal/modules/route"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("auth init")
	}

	var store ride.Store
	if cfg.DB.DSN != "" {
		pool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			log.WithError(err).Fatal("postgres connect")
		}
		defer pool.Close()
		store = ride.NewPGStore(pool)
	} else {
		log.Warn("CARPOOL_DB_DSN not set, using in-memory store")
		store = ride.NewMemoryStore()
	}

	locker, closeLocker, err := newLocker(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("match lock init")
	}
	defer closeLocker()

	var publisher events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kp.Close()
		publisher = kp
	}

	router, geocoder, err := newProviders(cfg.Routing)
	if err != nil {
		log.WithError(err).Fatal("routing provider init")
	}
	estimator := route.NewEstimator(router, geocoder, route.Options{
		Timeout:       cfg.Routing.Timeout,
		TTL:           cfg.Routing.CacheTTL,
		SweepInterval: cfg.Routing.SweepInterval,
		FallbackAge:   cfg.Routing.FallbackAge,
	}, log.WithField("component", "route"))

	fares := pricing.NewCalculator(pricing.FromConfig(cfg.Pricing))

	var matcher matching.Matcher = matching.AddressMatcher{}
	if cfg.Matching.Strategy == "proximity" {
		matcher = matching.ProximityMatcher{RadiusMeters: cfg.Matching.RadiusMeters, ScanLimit: cfg.Matching.ScanLimit}
	}
	engine := matching.NewEngine(store, estimator, fares, matcher, locker, publisher,
		log.WithField("component", "matching"), matching.Options{MaxAttempts: cfg.Matching.MaxAttempts})
	groups := group.NewService(store, fares, publisher, log.WithField("component", "group"))

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Engine:    engine,
		Rides:     ride.NewService(store),
		Groups:    groups,
		Estimator: estimator,
		Verifier:  verifier,
		Log:       log.WithField("component", "http"),
	})
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	go estimator.RunSweeper(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("http shutdown")
		}
	}()

	log.WithFields(logrus.Fields{
		"addr":     cfg.HTTP.Addr,
		"routing":  cfg.Routing.Provider,
		"matching": cfg.Matching.Strategy,
		"lock":     cfg.Matching.Lock,
	}).Info("carpool api listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("http server")
	}
}

// newVerifier prefers Firebase when a project is configured.
func newVerifier(ctx context.Context, cfg config.Config) (infra.TokenVerifier, error) {
	if cfg.Auth.FirebaseProjectID != "" {
		v, err := infra.NewFirebaseVerifier(ctx, cfg.Auth.FirebaseProjectID, cfg.Auth.FirebaseCredentialsFile)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("CARPOOL_AUTH_FIREBASE_PROJECT_ID or CARPOOL_AUTH_JWT_SECRET is required")
	}
	return infra.NewJWTVerifier(cfg.Auth.JWTSecret)
}

func newLocker(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (matching.Locker, func(), error) {
	if cfg.Matching.Lock != "redis" {
		return matching.NewLocalLocker(), func() {}, nil
	}
	client, err := infra.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	return matching.NewRedisLocker(client, cfg.Matching.LockTTL, log.WithField("component", "lock")),
		func() { _ = client.Close() }, nil
}

func newProviders(cfg config.RoutingConfig) (maps.Router, maps.Geocoder, error) {
	var (
		router   maps.Router
		geocoder maps.Geocoder
	)
	switch cfg.Provider {
	case "google":
		r, err := maps.NewGoogleRouter(cfg.GoogleAPIKey)
		if err != nil {
			return nil, nil, err
		}
		router = r
	default:
		router = maps.NewOSRMRouter(cfg.OSRMBaseURL, cfg.Timeout)
	}
	switch cfg.GeocoderProvider {
	case "google":
		g, err := maps.NewGoogleGeocoder(cfg.GoogleAPIKey)
		if err != nil {
			return nil, nil, err
		}
		geocoder = g
	default:
		geocoder = maps.NewNominatimGeocoder(cfg.NominatimBaseURL, cfg.UserAgent, cfg.Timeout)
	}
	return router, geocoder, nil
}
