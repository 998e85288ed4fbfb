package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

var AppEnv Config

type Config struct {
	AppEnv      string
	Port        string
	StoreDriver string `validate:"oneof=mongo memory"`
	MongoURI    string `validate:"required_if=StoreDriver mongo"`
	DBName      string `validate:"required"`

	JWTSecret        string `validate:"required,min=16"`
	JWTRefreshSecret string `validate:"required,min=16,nefield=JWTSecret"`
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration

	BaseURL            string `validate:"required,url"`
	ResetURL           string
	DownloadExpiryDays int `validate:"gt=0"`
	DownloadMax        int `validate:"gt=0"`
	UploadDir          string
	S3Bucket           string
	S3Region           string
	S3Endpoint         string
	S3AccessKey        string
	S3SecretKey        string
	S3PresignTTL       time.Duration
	RedisAddr          string
	RedisPassword      string
	RedisPrefix        string
	CORSOrigins        []string
	RateLimitPerSecond int
	RateLimitBurst     int
	OAuthProviders     []string
	GoogleClientID     string
}

// Production reports whether cookies must be marked Secure.
func (c Config) Production() bool {
	return c.AppEnv == "production"
}

// S3Enabled reports whether remote files can be resolved.
func (c Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

// Load reads .env (when present) and the process environment into AppEnv.
func Load() error {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	cfg := fromEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}
	AppEnv = cfg
	return nil
}

func fromEnv() Config {
	port := getEnvOrDefault("PORT", "8080")
	return Config{
		AppEnv:             getEnvOrDefault("APP_ENV", "development"),
		Port:               port,
		StoreDriver:        getEnvOrDefault("STORE_DRIVER", DriverMongo),
		MongoURI:           getEnvOrDefault("MONGO_URI", ""),
		DBName:             getEnvOrDefault("DB_NAME", "filemart"),
		JWTSecret:          getEnvOrDefault("JWT_SECRET", ""),
		JWTRefreshSecret:   getEnvOrDefault("JWT_REFRESH_SECRET", ""),
		AccessTokenTTL:     getDurationEnv("ACCESS_TOKEN_TTL", 15, time.Minute),
		RefreshTokenTTL:    getDurationEnv("REFRESH_TOKEN_TTL", 7, 24*time.Hour),
		BaseURL:            strings.TrimRight(getEnvOrDefault("BASE_URL", "http://localhost:"+port), "/"),
		ResetURL:           getEnvOrDefault("RESET_URL", "http://localhost:3000/reset-password"),
		DownloadExpiryDays: getIntEnv("DOWNLOAD_EXPIRY_DAYS", 7),
		DownloadMax:        getIntEnv("DOWNLOAD_MAX", 3),
		UploadDir:          getEnvOrDefault("UPLOAD_DIR", "./uploads"),
		S3Bucket:           getEnvOrDefault("S3_BUCKET", ""),
		S3Region:           getEnvOrDefault("S3_REGION", "us-east-1"),
		S3Endpoint:         getEnvOrDefault("S3_ENDPOINT", ""),
		S3AccessKey:        getEnvOrDefault("S3_ACCESS_KEY", ""),
		S3SecretKey:        getEnvOrDefault("S3_SECRET_KEY", ""),
		S3PresignTTL:       getDurationEnv("S3_PRESIGN_TTL", 5, time.Minute),
		RedisAddr:          getEnvOrDefault("REDIS_ADDR", ""),
		RedisPassword:      getEnvOrDefault("REDIS_PASSWORD", ""),
		RedisPrefix:        getEnvOrDefault("REDIS_PREFIX", "filemart:"),
		CORSOrigins:        getListEnv("CORS_ORIGINS"),
		RateLimitPerSecond: getIntEnv("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getIntEnv("RATE_LIMIT_BURST", 10),
		OAuthProviders:     getListEnv("OAUTH_PROVIDERS"),
		GoogleClientID:     getEnvOrDefault("GOOGLE_CLIENT_ID", ""),
	}
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	return time.Duration(getIntEnv(key, defaultValue)) * unit
}

func getIntEnv(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
