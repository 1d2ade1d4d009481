package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Upstream EMR (Eka Care) API
	EkaBaseURL      string
	EkaClientID     string
	EkaClientSecret string
	EkaAccessToken  string
	EkaAPIKey       string
	UpstreamTimeout time.Duration

	// Availability resolution
	AvailabilityWindowDays       int
	AvailabilityLookbackDays     int
	AvailabilityFetchConcurrency int
	AlternateSlotCap             int
	PricingCurrency              string

	// Booking
	BookingUTCOffset string

	// Request deduplication
	DedupBackend  string
	DedupCapacity int

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	DatabaseURL   string

	// HTTP surface
	APIJWTSecret       string
	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		EkaBaseURL:      strings.TrimRight(getEnv("EKA_API_BASE_URL", "https://api.eka.care"), "/"),
		EkaClientID:     getEnv("EKA_CLIENT_ID", ""),
		EkaClientSecret: getEnv("EKA_CLIENT_SECRET", ""),
		EkaAccessToken:  getEnv("EKA_ACCESS_TOKEN", ""),
		EkaAPIKey:       getEnv("EKA_API_KEY", ""),
		UpstreamTimeout: getEnvAsDuration("UPSTREAM_TIMEOUT", 30*time.Second),

		AvailabilityWindowDays:       getEnvAsInt("AVAILABILITY_WINDOW_DAYS", 10),
		AvailabilityLookbackDays:     getEnvAsInt("AVAILABILITY_LOOKBACK_DAYS", 2),
		AvailabilityFetchConcurrency: getEnvAsInt("AVAILABILITY_FETCH_CONCURRENCY", 1),
		AlternateSlotCap:             getEnvAsInt("ALTERNATE_SLOT_CAP", 6),
		PricingCurrency:              getEnv("PRICING_CURRENCY", "INR"),

		BookingUTCOffset: getEnv("BOOKING_UTC_OFFSET", "+05:30"),

		DedupBackend:  strings.ToLower(strings.TrimSpace(getEnv("DEDUP_BACKEND", "memory"))),
		DedupCapacity: getEnvAsInt("DEDUP_CAPACITY", 20),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		APIJWTSecret:       getEnv("API_JWT_SECRET", ""),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
