package config

import (
	"os"
	"strconv"
	"strings"
)

// DatabaseConfig holds database connection settings.
// Driver is "pgx" (PostgreSQL, default) or "sqlite".
type DatabaseConfig struct {
	Driver             string
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	SQLitePath         string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// UploadConfig holds settings for the resumable upload endpoint and the raw-bytes store.
type UploadConfig struct {
	// Dir is the storage root; finalized bytes live at Dir/<id>.
	Dir string
	// BasePath is the URL prefix the tus handler is mounted on. It ends with a slash.
	BasePath string
	// MaxSize is the largest accepted upload in bytes; 0 means unlimited.
	MaxSize int64
	// AllowOrigin is a regular expression matched against the Origin of upload requests.
	AllowOrigin string
	// BehindProxy makes the upload handler trust X-Forwarded-* headers when building URLs.
	BehindProxy bool
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppEnv      string
	AppHost     string
	Port        string
	BodyLimit   int
	CORSOrigins string
	SentryDSN   string
	ListMaxSize int
	// MaxImagePixels bounds width*height of images decoded for pixel-format extraction.
	MaxImagePixels int64
	Database       DatabaseConfig
	Upload         UploadConfig
}

// IsDevelopment reports whether APP_ENV selects the development profile.
func (c *AppConfig) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "dev"
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppEnv:         getEnv("APP_ENV", "production"),
		AppHost:        getEnv("APP_HOST", "localhost:8080"),
		Port:           getEnv("PORT", "8080"), // default only for non-sensitive value
		BodyLimit:      getEnvInt("HTTP_BODY_LIMIT", 64<<20),
		CORSOrigins:    getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173"),
		SentryDSN:      getEnv("SENTRY_DSN", ""),
		ListMaxSize:    getEnvInt("LIST_MAX_PAGE_SIZE", 100),
		MaxImagePixels: getEnvInt64("EXTRACT_MAX_PIXELS", 268402689),
		Database: DatabaseConfig{
			Driver:             getEnv("DB_DRIVER", "pgx"),
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			SQLitePath:         getEnv("DB_SQLITE_PATH", "data/filemeta.db"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		Upload: UploadConfig{
			Dir:         getEnv("UPLOAD_DIR", "uploads"),
			BasePath:    normalizeBasePath(getEnv("UPLOAD_BASE_PATH", defaultUploadBasePath)),
			MaxSize:     getEnvInt64("UPLOAD_MAX_SIZE", 0),
			AllowOrigin: getEnv("UPLOAD_ALLOW_ORIGIN", ".*"),
			BehindProxy: getEnvBool("UPLOAD_BEHIND_PROXY", false),
		},
	}
}

const defaultUploadBasePath = "/uploads/"

// normalizeBasePath yields "/<path>/". The root is reserved for the API, so an
// empty or root path falls back to defaultUploadBasePath.
func normalizeBasePath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return defaultUploadBasePath
	}
	return "/" + p + "/"
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

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}
