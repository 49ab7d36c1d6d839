package config

import (
	"errors"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // zone database for minimal images
)

// Config holds all configuration for the application.
type Config struct {
	AppEnv    string
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	NewRelic  NewRelicConfig
	Token     TokenConfig
	Geofence  GeofenceConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	// TimeZone names the IANA zone that defines "today" for daily trips.
	TimeZone string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	DBName        string
	SSLMode       string
	MaxOpenConns  int
	MaxIdleConns  int
	RunMigrations bool
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	// OpTimeout bounds every read and write.
	OpTimeout time.Duration
	TripTTL   time.Duration
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// TokenConfig holds check-in token configuration.
type TokenConfig struct {
	// Pepper is the HMAC key used to hash tokens before storage.
	Pepper string
}

// GeofenceConfig holds the optional proximity check on check-in.
type GeofenceConfig struct {
	Enabled             bool
	DefaultRadiusMeters float64
}

// RateLimitConfig holds the per-user limit on check-in and check-out.
type RateLimitConfig struct {
	Requests int
	Interval time.Duration
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		AppEnv: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),
		},
		Database: DatabaseConfig{
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnv("DB_PORT", "5432"),
			User:          getEnv("DB_USER", "postgres"),
			Password:      getEnv("DB_PASSWORD", "postgres"),
			DBName:        getEnv("DB_NAME", "shuttle"),
			SSLMode:       getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:  getIntEnv("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:  getIntEnv("DB_MAX_IDLE_CONNS", 25),
			RunMigrations: getBoolEnv("DB_RUN_MIGRATIONS", true),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getIntEnv("REDIS_DB", 0),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 20),
			MinIdleConns: getIntEnv("REDIS_MIN_IDLE_CONNS", 4),
			OpTimeout:    getDurationEnv("REDIS_OP_TIMEOUT", 250*time.Millisecond),
			TripTTL:      getDurationEnv("REDIS_TRIP_CACHE_TTL", 30*time.Second),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "shuttle-service"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Token: TokenConfig{
			Pepper: getEnv("TOKEN_PEPPER", ""),
		},
		Geofence: GeofenceConfig{
			Enabled:             getBoolEnv("GEOFENCE_ENABLED", false),
			DefaultRadiusMeters: getFloatEnv("GEOFENCE_DEFAULT_RADIUS_METERS", 150),
		},
		RateLimit: RateLimitConfig{
			Requests: getIntEnv("RATE_LIMIT_REQUESTS", 10),
			Interval: getDurationEnv("RATE_LIMIT_INTERVAL", time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		TimeZone: getEnv("TZ_LOCATION", "America/Sao_Paulo"),
	}
}

// IsDevelopment reports whether the app runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Validate checks settings that have no safe default.
func (c *Config) Validate() error {
	var errs []error

	if c.Token.Pepper == "" && !c.IsDevelopment() {
		errs = append(errs, errors.New("TOKEN_PEPPER is required outside development"))
	}
	if c.Geofence.Enabled && c.Geofence.DefaultRadiusMeters <= 0 {
		errs = append(errs, errors.New("GEOFENCE_DEFAULT_RADIUS_METERS must be positive when the geofence is enabled"))
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Interval <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_INTERVAL must be positive"))
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		errs = append(errs, errors.New("TZ_LOCATION is not a valid time zone: "+c.TimeZone))
	}

	return errors.Join(errs...)
}

// Location returns the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
