package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FEEDAI_JWT_SECRET", "secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "admin@admin.com", cfg.Admin.Email)
	assert.Equal(t, "pt", cfg.NewsAPI.Language)
	assert.Equal(t, 30, cfg.NewsAPI.PageSize)
	assert.Equal(t, 15*time.Second, cfg.NewsAPI.Timeout)
	assert.Equal(t, int64(10<<20), cfg.Ingest.MaxUploadBytes)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestLoadFromEnvOnly(t *testing.T) {
	t.Setenv("FEEDAI_JWT_SECRET", "s3cret")
	t.Setenv("FEEDAI_ADMIN_PASSWORD", "admin-pw")
	t.Setenv("FEEDAI_NEWSAPI_API_KEY", "news-key")
	t.Setenv("FEEDAI_REDIS_PASSWORD", "redis-pw")
	t.Setenv("FEEDAI_MINIO_ENDPOINT", "minio:9000")
	t.Setenv("FEEDAI_MINIO_ACCESS_KEY_ID", "ak")
	t.Setenv("FEEDAI_MINIO_SECRET_ACCESS_KEY", "sk")
	t.Setenv("FEEDAI_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("FEEDAI_LOG_OUTPUT_PATH", "/var/log/feedai")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, "admin-pw", cfg.Admin.Password)
	assert.Equal(t, "news-key", cfg.NewsAPI.APIKey)
	assert.Equal(t, "redis-pw", cfg.Redis.Password)
	assert.Equal(t, "minio:9000", cfg.MinIO.Endpoint)
	assert.Equal(t, "ak", cfg.MinIO.AccessKeyID)
	assert.Equal(t, "sk", cfg.MinIO.SecretAccessKey)
	assert.Equal(t, "k1:9092,k2:9092", cfg.Kafka.Brokers)
	assert.Equal(t, "/var/log/feedai", cfg.Log.OutputPath)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
jwt:
  secret: "from-file"
newsapi:
  page_size: 500
admin:
  password: "from-file"
`)
	t.Setenv("FEEDAI_ADMIN_PASSWORD", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.Equal(t, "from-env", cfg.Admin.Password)
	assert.Equal(t, 30, cfg.NewsAPI.PageSize, "out of range page size falls back to 30")
}

func TestLoadValidation(t *testing.T) {
	_, err := Load(writeConfig(t, "server:\n  port: \"1\"\n"))
	assert.ErrorContains(t, err, "jwt.secret")

	_, err = Load(writeConfig(t, "jwt:\n  secret: x\ndatabase:\n  driver: postgres\n"))
	assert.ErrorContains(t, err, "postgres")

	_, err = Load(writeConfig(t, "jwt: [unterminated"))
	assert.Error(t, err)
}
