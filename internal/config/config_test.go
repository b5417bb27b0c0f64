package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Setenv("DB_HOST", "test-host")
	t.Setenv("DB_MAX_OPEN_CONNS", "20")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("UPLOAD_DIR", "/var/lib/filemeta")
	t.Setenv("UPLOAD_BASE_PATH", "files/tus")
	t.Setenv("UPLOAD_MAX_SIZE", "1073741824")
	t.Setenv("UPLOAD_BEHIND_PROXY", "true")
	t.Setenv("APP_ENV", "development")
	t.Setenv("EXTRACT_MAX_PIXELS", "1000000")

	cfg := Load()

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/var/lib/filemeta", cfg.Upload.Dir)
	assert.Equal(t, "/files/tus/", cfg.Upload.BasePath)
	assert.Equal(t, int64(1<<30), cfg.Upload.MaxSize)
	assert.True(t, cfg.Upload.BehindProxy)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, int64(1000000), cfg.MaxImagePixels)
}

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"DB_DRIVER", "UPLOAD_DIR", "UPLOAD_BASE_PATH", "LIST_MAX_PAGE_SIZE", "EXTRACT_MAX_PIXELS", "APP_ENV"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, "uploads", cfg.Upload.Dir)
	assert.Equal(t, "/uploads/", cfg.Upload.BasePath)
	assert.Equal(t, 100, cfg.ListMaxSize)
	assert.Equal(t, int64(268402689), cfg.MaxImagePixels)
	assert.False(t, cfg.IsDevelopment())
}

func TestNormalizeBasePath(t *testing.T) {
	assert.Equal(t, "/uploads/", normalizeBasePath("uploads"))
	assert.Equal(t, "/uploads/", normalizeBasePath("/uploads"))
	assert.Equal(t, "/a/b/", normalizeBasePath("/a/b/"))
	assert.Equal(t, "/uploads/", normalizeBasePath(""))
	assert.Equal(t, "/uploads/", normalizeBasePath("/"))
	assert.Equal(t, "/uploads/", normalizeBasePath("//"))
}

func TestLoad_RootUploadBasePath(t *testing.T) {
	t.Setenv("UPLOAD_BASE_PATH", "/")

	cfg := Load()

	assert.Equal(t, "/uploads/", cfg.Upload.BasePath)
}

func TestGetEnv(t *testing.T) {
	key := "TEST_ENV_VAR"
	t.Setenv(key, "value")

	assert.Equal(t, "value", getEnv(key, "default"))
	assert.Equal(t, "default", getEnv("NON_EXISTENT", "default"))
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_BOOL_VAR"

	t.Setenv(key, "true")
	assert.True(t, getEnvBool(key, false))

	t.Setenv(key, "false")
	assert.False(t, getEnvBool(key, true))

	t.Setenv(key, "invalid")
	assert.True(t, getEnvBool(key, true))

	t.Setenv(key, "")
	assert.True(t, getEnvBool(key, true))
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_INT_VAR"

	t.Setenv(key, "123")
	assert.Equal(t, 123, getEnvInt(key, 0))
	assert.Equal(t, int64(123), getEnvInt64(key, 0))

	t.Setenv(key, "invalid")
	assert.Equal(t, 10, getEnvInt(key, 10))
	assert.Equal(t, int64(10), getEnvInt64(key, 10))

	t.Setenv(key, "")
	assert.Equal(t, 10, getEnvInt(key, 10))
}
