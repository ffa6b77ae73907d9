// README: Config loader with env defaults for HTTP, DB, Redis, auth, routing, pricing, matching and events.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "CARPOOL"

type RoutingConfig struct {
	Provider         string // osrm | google
	OSRMBaseURL      string
	GoogleAPIKey     string
	GeocoderProvider string // nominatim | google
	NominatimBaseURL string
	UserAgent        string
	Timeout          time.Duration
	CacheTTL         time.Duration
	SweepInterval    time.Duration
	// FallbackAge is the fraction of CacheTTL a fallback estimate is considered to have aged at write time.
	FallbackAge float64
}

type PricingConfig struct {
	RatePerMeter   float64
	Currency       string
	RerollOnAccept bool
	RerollMin      int
	RerollMax      int
}

type MatchingConfig struct {
	Strategy     string // address | proximity
	RadiusMeters float64
	ScanLimit    int
	MaxAttempts  int
	Lock         string // local | redis
	LockTTL      time.Duration
}

type Config struct {
	HTTP struct {
		Addr string
	}
	DB struct {
		DSN string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Auth struct {
		JWTSecret               string
		FirebaseProjectID       string
		FirebaseCredentialsFile string
	}
	Routing  RoutingConfig
	Pricing  PricingConfig
	Matching MatchingConfig
	Kafka    struct {
		Brokers []string
		Topic   string
	}
	Log struct {
		Level  string
		Format string
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("db.dsn", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.firebase_project_id", "")
	v.SetDefault("auth.firebase_credentials_file", "")
	v.SetDefault("routing.provider", "osrm")
	v.SetDefault("routing.osrm_base_url", "https://router.project-osrm.org")
	v.SetDefault("routing.google_api_key", "")
	v.SetDefault("routing.geocoder", "nominatim")
	v.SetDefault("routing.nominatim_base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("routing.user_agent", "carpool/1.0")
	v.SetDefault("routing.timeout", 5*time.Second)
	v.SetDefault("routing.cache_ttl", 30*time.Minute)
	v.SetDefault("routing.sweep_interval", 15*time.Minute)
	v.SetDefault("routing.fallback_age", 0.8)
	v.SetDefault("pricing.rate_per_meter", 0.01)
	v.SetDefault("pricing.currency", "INR")
	v.SetDefault("pricing.reroll_on_accept", false)
	v.SetDefault("pricing.reroll_min", 80)
	v.SetDefault("pricing.reroll_max", 150)
	v.SetDefault("matching.strategy", "address")
	v.SetDefault("matching.radius_meters", 300.0)
	v.SetDefault("matching.scan_limit", 50)
	v.SetDefault("matching.max_attempts", 3)
	v.SetDefault("matching.lock", "local")
	v.SetDefault("matching.lock_ttl", 5*time.Second)
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "carpool.rides")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads CARPOOL_* environment variables (e.g. CARPOOL_DB_DSN, CARPOOL_ROUTING_TIMEOUT).
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	cfg.HTTP.Addr = v.GetString("http.addr")
	cfg.DB.DSN = v.GetString("db.dsn")
	cfg.Redis.Addr = v.GetString("redis.addr")
	cfg.Redis.Password = v.GetString("redis.password")
	cfg.Redis.DB = v.GetInt("redis.db")
	cfg.Auth.JWTSecret = v.GetString("auth.jwt_secret")
	cfg.Auth.FirebaseProjectID = v.GetString("auth.firebase_project_id")
	cfg.Auth.FirebaseCredentialsFile = v.GetString("auth.firebase_credentials_file")

	cfg.Routing = RoutingConfig{
		Provider:         strings.ToLower(v.GetString("routing.provider")),
		OSRMBaseURL:      strings.TrimRight(v.GetString("routing.osrm_base_url"), "/"),
		GoogleAPIKey:     v.GetString("routing.google_api_key"),
		GeocoderProvider: strings.ToLower(v.GetString("routing.geocoder")),
		NominatimBaseURL: strings.TrimRight(v.GetString("routing.nominatim_base_url"), "/"),
		UserAgent:        v.GetString("routing.user_agent"),
		Timeout:          v.GetDuration("routing.timeout"),
		CacheTTL:         v.GetDuration("routing.cache_ttl"),
		SweepInterval:    v.GetDuration("routing.sweep_interval"),
		FallbackAge:      v.GetFloat64("routing.fallback_age"),
	}
	cfg.Pricing = PricingConfig{
		RatePerMeter:   v.GetFloat64("pricing.rate_per_meter"),
		Currency:       v.GetString("pricing.currency"),
		RerollOnAccept: v.GetBool("pricing.reroll_on_accept"),
		RerollMin:      v.GetInt("pricing.reroll_min"),
		RerollMax:      v.GetInt("pricing.reroll_max"),
	}
	cfg.Matching = MatchingConfig{
		Strategy:     strings.ToLower(v.GetString("matching.strategy")),
		RadiusMeters: v.GetFloat64("matching.radius_meters"),
		ScanLimit:    v.GetInt("matching.scan_limit"),
		MaxAttempts:  v.GetInt("matching.max_attempts"),
		Lock:         strings.ToLower(v.GetString("matching.lock")),
		LockTTL:      v.GetDuration("matching.lock_ttl"),
	}
	cfg.Kafka.Brokers = splitList(v.GetString("kafka.brokers"))
	cfg.Kafka.Topic = v.GetString("kafka.topic")
	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Format = v.GetString("log.format")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	switch c.Routing.Provider {
	case "osrm":
	case "google":
		if c.Routing.GoogleAPIKey == "" {
			errs = append(errs, errors.New("routing.google_api_key is required for the google provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("routing.provider %q is not supported", c.Routing.Provider))
	}
	switch c.Routing.GeocoderProvider {
	case "nominatim":
	case "google":
		if c.Routing.GoogleAPIKey == "" {
			errs = append(errs, errors.New("routing.google_api_key is required for the google geocoder"))
		}
	default:
		errs = append(errs, fmt.Errorf("routing.geocoder %q is not supported", c.Routing.GeocoderProvider))
	}
	if c.Routing.Timeout <= 0 {
		errs = append(errs, errors.New("routing.timeout must be positive"))
	}
	if c.Routing.CacheTTL <= 0 {
		errs = append(errs, errors.New("routing.cache_ttl must be positive"))
	}
	if c.Routing.SweepInterval <= 0 {
		errs = append(errs, errors.New("routing.sweep_interval must be positive"))
	}
	if c.Routing.FallbackAge < 0 || c.Routing.FallbackAge >= 1 {
		errs = append(errs, errors.New("routing.fallback_age must be within [0,1)"))
	}
	if c.Pricing.RatePerMeter <= 0 {
		errs = append(errs, errors.New("pricing.rate_per_meter must be positive"))
	}
	if c.Pricing.RerollMin < 0 || c.Pricing.RerollMin > c.Pricing.RerollMax {
		errs = append(errs, errors.New("pricing.reroll_min must be between 0 and pricing.reroll_max"))
	}
	switch c.Matching.Strategy {
	case "address":
	case "proximity":
		if c.Matching.RadiusMeters <= 0 {
			errs = append(errs, errors.New("matching.radius_meters must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("matching.strategy %q is not supported", c.Matching.Strategy))
	}
	if c.Matching.MaxAttempts < 1 {
		errs = append(errs, errors.New("matching.max_attempts must be at least 1"))
	}
	switch c.Matching.Lock {
	case "local":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis match lock"))
		}
	default:
		errs = append(errs, fmt.Errorf("matching.lock %q is not supported", c.Matching.Lock))
	}
	if c.Matching.LockTTL <= 0 {
		errs = append(errs, errors.New("matching.lock_ttl must be positive"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
