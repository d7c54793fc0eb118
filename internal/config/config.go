package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-this-in-production"

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Config struct {
	Port                 string
	Environment          string
	LogLevel             string
	LogFile              string
	FrontendURL          string
	AllowedOrigins       []string
	DatabaseURL          string
	DBMaxOpenConns       int
	DBMaxIdleConns       int
	DBConnMaxLifetimeMin int
	RedisURL             string
	RedisPassword        string
	JWTSecret            string
	JWTExpiration        time.Duration
	CookieSecure         bool
	UploadBackend        string
	UploadDir            string
	PublicBaseURL        string
	MinIO                MinIOConfig
	PushQueueSize        int
	SessionRetentionDays int
}

func init() {
	viper.AutomaticEnv()

	viper.SetDefault("PORT", "5001")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("FRONTEND_URL", "http://localhost:5173")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 25)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("JWT_EXPIRATION_HOURS", 7*24)
	viper.SetDefault("COOKIE_SECURE", true)
	viper.SetDefault("UPLOAD_BACKEND", "disk")
	viper.SetDefault("UPLOAD_DIR", "./uploads")
	viper.SetDefault("MINIO_BUCKET", "chat-media")
	viper.SetDefault("PUSH_QUEUE_SIZE", 64)
	viper.SetDefault("SESSION_RETENTION_DAYS", 30)
}

func LoadConfig() (*Config, error) {
	port := GetEnv("PORT", "5001")

	// Frontend & CORS
	frontendURL := GetEnv("FRONTEND_URL", "http://localhost:5173")
	allowedOrigins := []string{frontendURL}
	for _, origin := range strings.Split(GetEnv("ALLOWED_ORIGINS", ""), ",") {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			allowedOrigins = append(allowedOrigins, trimmed)
		}
	}

	publicBaseURL := GetEnv("PUBLIC_BASE_URL", "http://localhost:"+port)

	cfg := &Config{
		Port:                 port,
		Environment:          GetEnv("ENVIRONMENT", "development"),
		LogLevel:             GetEnv("LOG_LEVEL", "info"),
		LogFile:              GetEnv("LOG_FILE", ""),
		FrontendURL:          frontendURL,
		AllowedOrigins:       allowedOrigins,
		DatabaseURL:          GetEnv("DATABASE_URL", GetEnv("DATABASE_URI", "")),
		DBMaxOpenConns:       GetEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:       GetEnvAsInt("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifetimeMin: GetEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 5),
		RedisURL:             GetEnv("REDIS_URL", "localhost:6379"),
		RedisPassword:        GetEnv("REDIS_PASSWORD", ""),
		JWTSecret:            GetEnv("JWT_SECRET", defaultJWTSecret),
		JWTExpiration:        time.Duration(GetEnvAsInt("JWT_EXPIRATION_HOURS", 7*24)) * time.Hour,
		CookieSecure:         viper.GetBool("COOKIE_SECURE"),
		UploadBackend:        strings.ToLower(GetEnv("UPLOAD_BACKEND", "disk")),
		UploadDir:            GetEnv("UPLOAD_DIR", "./uploads"),
		PublicBaseURL:        strings.TrimRight(publicBaseURL, "/"),
		MinIO: MinIOConfig{
			Endpoint:  GetEnv("MINIO_ENDPOINT", ""),
			AccessKey: GetEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: GetEnv("MINIO_SECRET_KEY", ""),
			Bucket:    GetEnv("MINIO_BUCKET", "chat-media"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
		},
		PushQueueSize:        GetEnvAsInt("PUSH_QUEUE_SIZE", 64),
		SessionRetentionDays: GetEnvAsInt("SESSION_RETENTION_DAYS", 30),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) Validate() error {
	if c.IsProduction() && c.JWTSecret == defaultJWTSecret {
		return errors.New("JWT_SECRET must be set in production")
	}
	if len(c.JWTSecret) < 16 {
		return errors.New("JWT_SECRET must be at least 16 characters")
	}
	if c.JWTExpiration <= 0 {
		return errors.New("JWT_EXPIRATION_HOURS must be positive")
	}
	if c.PushQueueSize <= 0 {
		return errors.New("PUSH_QUEUE_SIZE must be positive")
	}
	switch c.UploadBackend {
	case "disk":
	case "minio":
		if c.MinIO.Endpoint == "" {
			return errors.New("MINIO_ENDPOINT is required when UPLOAD_BACKEND=minio")
		}
	default:
		return errors.Errorf("unknown UPLOAD_BACKEND %q", c.UploadBackend)
	}
	if _, err := url.Parse(c.PublicBaseURL); err != nil {
		return errors.Wrap(err, "invalid PUBLIC_BASE_URL")
	}
	return nil
}

func GetEnv(key, defaultValue string) string {
	value := viper.GetString(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvAsInt(key string, defaultValue int) int {
	if viper.GetString(key) == "" {
		return defaultValue
	}
	value := viper.GetInt(key)
	if value == 0 && viper.GetString(key) != "0" {
		jww.WARN.Printf("Invalid integer value for %s: %s, using default: %d", key, viper.GetString(key), defaultValue)
		return defaultValue
	}
	return value
}
