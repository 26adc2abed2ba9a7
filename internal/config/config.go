package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Kafka    KafkaConfig
	AMQP     AMQPConfig
	Fare     FareConfig
	CORS     CORSConfig
	LogLevel string
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
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Migrate  bool
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	LockTTL        time.Duration
	IdempotencyTTL time.Duration
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// KafkaConfig holds the driver position stream settings. No brokers disables the stream.
type KafkaConfig struct {
	Brokers       []string
	LocationTopic string
}

// AMQPConfig holds the ride event exchange settings. An empty URL disables publishing.
type AMQPConfig struct {
	URL      string
	Exchange string
}

// FareConfig holds the fare schedule.
type FareConfig struct {
	Base      float64
	PerKm     float64
	PerMinute float64
	Minimum   float64
}

// CORSConfig holds the origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string
}

// ClientConfig holds configuration for the command-line client.
type ClientConfig struct {
	APIURL             string
	APITimeout         time.Duration
	GeolocationTimeout time.Duration
	LogLevel           string
	NewRelic           NewRelicConfig
}

// LoadDotEnv loads variables from the given files, or .env when none are
// given. Missing files are not an error; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load loads server configuration from environment variables. Malformed
// values are reported together rather than replaced by defaults.
func Load() (*Config, error) {
	env := &envReader{}

	cfg := &Config{
		Server: ServerConfig{
			Port:            env.getString("SERVER_PORT", "8080"),
			ReadTimeout:     env.getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    env.getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: env.getDuration("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),
		},
		Database: DatabaseConfig{
			Host:     env.getString("DB_HOST", "localhost"),
			Port:     env.getString("DB_PORT", "5432"),
			User:     env.getString("DB_USER", "postgres"),
			Password: env.getString("DB_PASSWORD", "postgres"),
			DBName:   env.getString("DB_NAME", "ride_hailing"),
			SSLMode:  env.getString("DB_SSLMODE", "disable"),
			Migrate:  env.getBool("DB_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:           env.getString("REDIS_ADDR", "localhost:6379"),
			Password:       env.getString("REDIS_PASSWORD", ""),
			DB:             env.getInt("REDIS_DB", 0),
			LockTTL:        env.getDuration("REDIS_LOCK_TTL", 5*time.Second),
			IdempotencyTTL: env.getDuration("REDIS_IDEMPOTENCY_TTL", 24*time.Hour),
		},
		NewRelic: loadNewRelic(env, "ride-hailing-service"),
		Kafka: KafkaConfig{
			Brokers:       env.getList("KAFKA_BROKERS"),
			LocationTopic: env.getString("KAFKA_LOCATION_TOPIC", "driver-locations"),
		},
		AMQP: AMQPConfig{
			URL:      env.getString("AMQP_URL", ""),
			Exchange: env.getString("AMQP_EXCHANGE", "ride.events"),
		},
		Fare: FareConfig{
			Base:      env.getFloat("FARE_BASE", 50),
			PerKm:     env.getFloat("FARE_PER_KM", 12),
			PerMinute: env.getFloat("FARE_PER_MINUTE", 1.5),
			Minimum:   env.getFloat("FARE_MINIMUM", 80),
		},
		CORS: CORSConfig{
			AllowedOrigins: env.getList("CORS_ALLOWED_ORIGINS"),
		},
		LogLevel: strings.ToLower(env.getString("LOG_LEVEL", "info")),
	}

	if cfg.Fare.Base < 0 || cfg.Fare.PerKm < 0 || cfg.Fare.PerMinute < 0 || cfg.Fare.Minimum < 0 {
		env.errs = append(env.errs, errors.New("fare schedule values must not be negative"))
	}
	if cfg.Server.Port == "" {
		env.errs = append(env.errs, errors.New("SERVER_PORT must not be empty"))
	}

	if err := errors.Join(env.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadClient loads command-line client configuration from environment variables.
func LoadClient() (*ClientConfig, error) {
	env := &envReader{}

	cfg := &ClientConfig{
		APIURL:             strings.TrimRight(env.getString("RIDE_API_URL", "http://localhost:8080"), "/"),
		APITimeout:         env.getDuration("RIDE_API_TIMEOUT", 15*time.Second),
		GeolocationTimeout: env.getDuration("GEOLOCATION_TIMEOUT", 10*time.Second),
		LogLevel:           strings.ToLower(env.getString("LOG_LEVEL", "warn")),
		NewRelic:           loadNewRelic(env, "ridectl"),
	}

	if cfg.APITimeout <= 0 {
		env.errs = append(env.errs, errors.New("RIDE_API_TIMEOUT must be positive"))
	}
	if cfg.GeolocationTimeout <= 0 {
		env.errs = append(env.errs, errors.New("GEOLOCATION_TIMEOUT must be positive"))
	}

	if err := errors.Join(env.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadNewRelic(env *envReader, defaultName string) NewRelicConfig {
	return NewRelicConfig{
		AppName:    env.getString("NEW_RELIC_APP_NAME", defaultName),
		LicenseKey: env.getString("NEW_RELIC_LICENSE_KEY", ""),
		Enabled:    env.getBool("NEW_RELIC_ENABLED", false),
	}
}

// envReader reads typed variables and collects parse errors.
type envReader struct {
	errs []error
}

func (r *envReader) getString(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func (r *envReader) getInt(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return intVal
}

func (r *envReader) getFloat(key string, defaultValue float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return floatVal
}

func (r *envReader) getBool(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return boolVal
}

func (r *envReader) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return duration
}

func (r *envReader) getList(key string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
