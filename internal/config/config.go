package config

import (
	"os"
	"strconv"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
	AutoMigrate        bool
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// StorageConfig selects the blob store backend.
// Driver is "minio" or "local"; LocalRoot is used by the local backend only.
type StorageConfig struct {
	Driver    string
	LocalRoot string
}

// AuthConfig controls session token verification for mutating routes.
// An empty JWTSecret disables verification and the X-Actor header is trusted instead.
type AuthConfig struct {
	JWTSecret  string
	CookieName string
}

// LifecycleConfig bounds each blob and metadata call made by a transition.
// A ClaimTTLSec of zero lets the service derive the claim lifetime from the two timeouts.
type LifecycleConfig struct {
	BlobTimeoutSec     int
	MetadataTimeoutSec int
	ClaimTTLSec        int
}

func (l LifecycleConfig) BlobTimeout() time.Duration {
	return time.Duration(l.BlobTimeoutSec) * time.Second
}

func (l LifecycleConfig) MetadataTimeout() time.Duration {
	return time.Duration(l.MetadataTimeoutSec) * time.Second
}

func (l LifecycleConfig) ClaimTTL() time.Duration {
	return time.Duration(l.ClaimTTLSec) * time.Second
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost   string
	Port      string
	TimeZone  string
	Database  DatabaseConfig
	MinIO     MinIOConfig
	Storage   StorageConfig
	Auth      AuthConfig
	Lifecycle LifecycleConfig
}

// Location resolves TimeZone, falling back to UTC when it is unknown.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:  getEnv("APP_HOST", "localhost:8080"),
		Port:     getEnv("PORT", "8080"),
		TimeZone: getEnv("TZ", "UTC"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
			AutoMigrate:        getEnvBool("DB_AUTO_MIGRATE", true),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Storage: StorageConfig{
			Driver:    getEnv("STORAGE_DRIVER", "minio"),
			LocalRoot: getEnv("STORAGE_LOCAL_ROOT", "./data"),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("AUTH_JWT_SECRET", ""),
			CookieName: getEnv("AUTH_COOKIE_NAME", "token"),
		},
		Lifecycle: LifecycleConfig{
			BlobTimeoutSec:     getEnvInt("LIFECYCLE_BLOB_TIMEOUT_SEC", 30),
			MetadataTimeoutSec: getEnvInt("LIFECYCLE_METADATA_TIMEOUT_SEC", 5),
			ClaimTTLSec:        getEnvInt("LIFECYCLE_CLAIM_TTL_SEC", 0),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
