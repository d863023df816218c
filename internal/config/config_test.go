package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ffspoints/internal/weights"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	mode, err := cfg.Mode()
	require.NoError(t, err)
	assert.Equal(t, weights.ModeEnrich, mode)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
	assert.Len(t, cfg.StoreOptions(), 5)
	assert.Len(t, cfg.GhostStoreOptions(), 6)
}

func TestDecode_OverridesDefaults(t *testing.T) {
	cfg, err := Decode(strings.NewReader(`
database: /var/lib/ffs/points.db
ghost_database: /var/lib/ffs/ghost.db
retry_backoff: 200ms
flush_chunk_size: 500
weight_mode: renorm
log_level: debug
seed: 42
`))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/ffs/points.db", cfg.Database)
	assert.Equal(t, "/var/lib/ffs/ghost.db", cfg.GhostDatabase)
	assert.Equal(t, 200*time.Millisecond, cfg.RetryBackoff)
	assert.Equal(t, 500, cfg.FlushChunkSize)
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	// Untouched keys keep their defaults.
	assert.Equal(t, Default().MaxWriteAttempts, cfg.MaxWriteAttempts)
	assert.Equal(t, Default().CommitEvery, cfg.CommitEvery)

	mode, err := cfg.Mode()
	require.NoError(t, err)
	assert.Equal(t, weights.ModeRenorm, mode)
}

func TestDecode_EmptyDocument(t *testing.T) {
	cfg, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "databse: x.db\n"},
		{"chunk above sqlite bound", "flush_chunk_size: 20000\n"},
		{"zero attempts", "max_write_attempts: 0\n"},
		{"bad mode", "weight_mode: boost\n"},
		{"bad level", "log_level: loud\n"},
		{"empty database", "database: \"\"\n"},
		{"bad duration", "retry_backoff: soon\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Database = "points.db"
	cfg.CommitEvery = 25

	data, err := cfg.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "ffspoints.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
