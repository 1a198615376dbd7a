package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivedocs/hivedocs/pkg/observability"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("HIVEDOCS_POSTGRES_URL", "postgres://localhost:5432/hivedocs")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 10000, cfg.Cache.L1Size)
	assert.Equal(t, "@every 15m", cfg.Reconciler.Schedule)
	assert.Equal(t, 0.3, cfg.Search.SimilarityThreshold)
	assert.Equal(t, 5, cfg.Search.PerDocumentCap)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("HIVEDOCS_POSTGRES_URL", "postgres://primary:5432/hivedocs")
	t.Setenv("HIVEDOCS_PORT", "9000")
	t.Setenv("HIVEDOCS_LOG_LEVEL", "debug")
	t.Setenv("HIVEDOCS_CACHE_TTL", "30s")
	t.Setenv("HIVEDOCS_SEARCH_SIMILARITY_THRESHOLD", "0.5")
	t.Setenv("HIVEDOCS_RECONCILER_ENABLED", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 0.5, cfg.Search.SimilarityThreshold)
	assert.False(t, cfg.Reconciler.Enabled)
}

func TestLoadConfigMissingPostgresURL(t *testing.T) {
	t.Setenv("HIVEDOCS_POSTGRES_URL", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres URL")
}

func TestValidatePortConflict(t *testing.T) {
	t.Setenv("HIVEDOCS_POSTGRES_URL", "postgres://localhost:5432/hivedocs")
	t.Setenv("HIVEDOCS_PORT", "8080")
	t.Setenv("HIVEDOCS_HEALTH_PORT", "8080")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be different")
}

func TestValidateSimilarityThresholdRange(t *testing.T) {
	t.Setenv("HIVEDOCS_POSTGRES_URL", "postgres://localhost:5432/hivedocs")
	t.Setenv("HIVEDOCS_SEARCH_SIMILARITY_THRESHOLD", "1.5")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "similarity threshold")
}

func TestReplicaURLList(t *testing.T) {
	cfg := StorageConfig{
		PostgresReplicaURLs: "postgres://r1:5432/db, postgres://r2:5432/db,",
	}
	urls := cfg.ReplicaURLList()
	require.Len(t, urls, 2)
	assert.Equal(t, "postgres://r1:5432/db", urls[0])
	assert.Equal(t, "postgres://r2:5432/db", urls[1])

	assert.Nil(t, StorageConfig{}.ReplicaURLList())
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, observability.DebugLevel, parseLogLevel("debug"))
	assert.Equal(t, observability.WarnLevel, parseLogLevel("WARNING"))
	assert.Equal(t, observability.ErrorLevel, parseLogLevel("error"))
	assert.Equal(t, observability.InfoLevel, parseLogLevel("bogus"))
}
