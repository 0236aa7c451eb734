package config

import (
	"fmt"
	"os"
	"time"
)

type PostgresConfig struct {
	Host     string
	Port     string
	DB       string
	Username string
	Password string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

type RepositoriesConfig struct {
	Postgres PostgresConfig
}

// ProvidersConfig holds the travel data provider endpoints and credentials.
type ProvidersConfig struct {
	GeocoderBaseURL string
	RouterBaseURL   string
	RouterProfile   string
	FlightsBaseURL  string
	FlightsClientID string
	FlightsSecret   string
	HotelsBaseURL   string
	HotelsAPIKey    string
	RequestTimeout  time.Duration
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type AuthConfig struct {
	JWTSecret       string
	TokenExpiration time.Duration
}

type Config struct {
	Repositories RepositoriesConfig
	Providers    ProvidersConfig
	Gemini       GeminiConfig
	Auth         AuthConfig
	ServerPort   string
}

func Load() (*Config, error) {
	cfg := &Config{
		Repositories: RepositoriesConfig{
			Postgres: PostgresConfig{
				Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
				Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
				DB:       getEnvOrDefault("POSTGRES_DB", "tripweave"),
				Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
				Password: getEnvOrDefault("POSTGRES_PASSWORD", ""),
				SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
				MaxConns: 30,
				MinConns: 5,
			},
		},
		Providers: ProvidersConfig{
			GeocoderBaseURL: getEnvOrDefault("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org"),
			RouterBaseURL:   getEnvOrDefault("ROUTER_BASE_URL", "https://router.project-osrm.org"),
			RouterProfile:   getEnvOrDefault("ROUTER_PROFILE", "driving"),
			FlightsBaseURL:  getEnvOrDefault("FLIGHTS_BASE_URL", "https://test.api.amadeus.com"),
			FlightsClientID: getEnvOrDefault("FLIGHTS_CLIENT_ID", ""),
			FlightsSecret:   getEnvOrDefault("FLIGHTS_CLIENT_SECRET", ""),
			HotelsBaseURL:   getEnvOrDefault("HOTELS_BASE_URL", "https://test.api.amadeus.com"),
			HotelsAPIKey:    getEnvOrDefault("HOTELS_API_KEY", ""),
			RequestTimeout:  getEnvDuration("PROVIDER_REQUEST_TIMEOUT", 10*time.Second),
		},
		Gemini: GeminiConfig{
			APIKey: getEnvOrDefault("GEMINI_API_KEY", ""),
			Model:  getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		},
		Auth: AuthConfig{
			JWTSecret:       getEnvOrDefault("JWT_SECRET", ""),
			TokenExpiration: getEnvDuration("JWT_TOKEN_EXPIRATION", 24*time.Hour),
		},
		ServerPort: getEnvOrDefault("SERVER_PORT", "8091"),
	}

	if cfg.Repositories.Postgres.Password == "" {
		return nil, fmt.Errorf("POSTGRES_PASSWORD environment variable is required")
	}
	if cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
