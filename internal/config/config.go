// Package config loads application configuration from environment
// variables.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. Required variables are enforced by must();
// tunables of the coordination core (TTLs, sweep interval, seat price)
// have defaults so a bare dev environment only needs the service and
// database settings.
type Config struct {
	Env               string        // application environment (e.g. "dev", "prod")
	Port              string        // HTTP port to listen on
	DBUser            string        // database username
	DBPass            string        // database password (optional)
	DBHost            string        // database host address
	DBPort            string        // database port number
	DBName            string        // database name
	JWTSecret         string        // secret used to verify access tokens
	SeatLockTTL       time.Duration // how long a seat lock lives without renewal
	PendingBookingTTL time.Duration // how long a checkout may await payment
	SweepInterval     time.Duration // how often the sweeper scans for expired locks
	SeatPriceCents    uint32        // flat price per seat
	RateLimit         int           // requests per window on mutating endpoints; 0 disables
	RateWindow        time.Duration // rate limit window
}

// Load reads configuration from the environment. Missing required
// variables cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:               must("APP_ENV"),
		Port:              must("APP_PORT"),
		DBUser:            must("DB_USER"),
		DBPass:            os.Getenv("DB_PASS"),
		DBHost:            must("DB_HOST"),
		DBPort:            must("DB_PORT"),
		DBName:            must("DB_NAME"),
		JWTSecret:         must("JWT_SECRET"),
		SeatLockTTL:       duration("SEAT_LOCK_TTL", 5*time.Minute),
		PendingBookingTTL: duration("PENDING_BOOKING_TTL", 10*time.Minute),
		SweepInterval:     duration("SWEEP_INTERVAL", 5*time.Second),
		SeatPriceCents:    uint32(integer("SEAT_PRICE_CENTS", 50000)),
		RateLimit:         integer("RATE_LIMIT", 60),
		RateWindow:        duration("RATE_WINDOW", time.Minute),
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// integer reads an optional integer variable, falling back to def.
func integer(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// duration reads an optional duration variable ("30s", "5m"), falling back
// to def.
func duration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q", key, s)
	}
	return d
}
