package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends for uploaded images
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL string
	Port        string
	GoEnv       string

	JWTSecret       string
	JWTExpiration   time.Duration
	JWTIssuer       string
	JWTAudience     string
	JWTCookieName   string
	JWTCookieSecure bool

	UploadDir          string
	StorageBackend     string
	AWSRegion          string
	AWSS3Bucket        string
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	AIServiceURL string
	AITimeout    time.Duration

	RedisURL          string
	AnalyticsCacheTTL time.Duration

	KafkaBrokers    []string
	KafkaOrderTopic string

	Timezone           string
	CORSAllowedOrigins []string

	AdminEmail    string
	AdminPassword string
}

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err != nil {
		if err := godotenv.Load(); err != nil {
			// Deployed environments set variables directly
			log.Printf("No .env file found, using system environment variables")
		}
	} else {
		log.Printf("Loaded configuration from %s", envFile)
	}

	config := &Config{
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		Port:               getEnv("PORT", "8080"),
		GoEnv:              getEnv("GO_ENV", "development"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTExpiration:      getDuration("JWT_EXPIRATION", 24*time.Hour),
		JWTIssuer:          getEnv("JWT_ISSUER", "gestion-ventes"),
		JWTAudience:        getEnv("JWT_AUDIENCE", "gestion-ventes-api"),
		JWTCookieName:      getEnv("JWT_COOKIE_NAME", "jwt"),
		JWTCookieSecure:    getBool("JWT_COOKIE_SECURE", false),
		UploadDir:          getEnv("UPLOAD_DIR", "./uploads"),
		StorageBackend:     getEnv("STORAGE_BACKEND", StorageLocal),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSS3Bucket:        getEnv("AWS_S3_BUCKET", ""),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AIServiceURL:       strings.TrimRight(getEnv("AI_SERVICE_URL", ""), "/"),
		AITimeout:          getDuration("AI_TIMEOUT", 5*time.Second),
		RedisURL:           getEnv("REDIS_URL", ""),
		AnalyticsCacheTTL:  getDuration("ANALYTICS_CACHE_TTL", 2*time.Minute),
		KafkaBrokers:       getList("KAFKA_BROKERS"),
		KafkaOrderTopic:    getEnv("KAFKA_ORDER_TOPIC", "orders.events"),
		Timezone:           getEnv("APP_TIMEZONE", "UTC"),
		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS"),
		AdminEmail:         getEnv("ADMIN_EMAIL", "admin@affiliate.com"),
		AdminPassword:      getEnv("ADMIN_PASSWORD", "admin123"),
	}
	if len(config.CORSAllowedOrigins) == 0 {
		config.CORSAllowedOrigins = []string{"http://localhost:3000"}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" && !c.IsTest() {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.StorageBackend {
	case StorageLocal:
	case StorageS3:
		if c.AWSS3Bucket == "" {
			return fmt.Errorf("AWS_S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the time zone used for date windows and trend buckets
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid duration for %s (%q), using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// getList splits a comma separated variable, dropping blanks
func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
