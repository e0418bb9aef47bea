package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/perstore/internal/retry"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, Config{
		Store:  StoreConfig{Engine: EnginePebble, IDProperty: "id"},
		Retry:  RetryConfig{MaxAttempts: 10, InitialInterval: "10ms", MaxInterval: "1s", Multiplier: 2, Jitter: 0.25},
		Cursor: CursorConfig{ReadAhead: 16},
		Log:    LogConfig{Level: "info", Format: "console"},
	}, cfg)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "sqlite.cue"))
	require.NoError(t, err)

	assert.Equal(t, StoreConfig{Engine: EngineSQLite, Path: "records.db", Namespace: "users", IDProperty: "id"}, cfg.Store)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, "10ms", cfg.Retry.InitialInterval, "omitted fields keep defaults")
	assert.Equal(t, 4, cfg.Cursor.ReadAhead)
	assert.Equal(t, LogConfig{Level: "info", Format: "json"}, cfg.Log)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.cue"))
	assert.Error(t, err)
}

func TestLoadBytes_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "unknown engine", src: `store: engine: "bolt"`},
		{name: "unknown field", src: `store: colour: "red"`},
		{name: "unknown section", src: `cache: size: 1`},
		{name: "zero attempts", src: `retry: max_attempts: 0`},
		{name: "bad duration", src: `retry: initial_interval: "soon"`},
		{name: "shrinking multiplier", src: `retry: multiplier: 0.5`},
		{name: "jitter above one", src: `retry: jitter: 2`},
		{name: "empty id property", src: `store: id_property: ""`},
		{name: "bad level", src: `log: level: "loud"`},
		{name: "zero read ahead", src: `cursor: read_ahead: 0`},
		{name: "inverted intervals", src: `retry: {initial_interval: "2s", max_interval: "1s"}`},
		{name: "syntax", src: `store: {`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes("test.cue", []byte(tt.src))
			require.Error(t, err)
			var ce *ConfigError
			assert.ErrorAs(t, err, &ce)
		})
	}
}

func TestLoadBytes_Position(t *testing.T) {
	_, err := LoadBytes("bad.cue", []byte("store: engine: \"bolt\"\n"))
	require.Error(t, err)

	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Pos.IsValid())
	assert.Contains(t, err.Error(), "engine")
}

func TestRetryPolicy(t *testing.T) {
	cfg, err := LoadBytes("retry.cue", []byte(`retry: {max_attempts: 4, initial_interval: "5ms", max_interval: "250ms", multiplier: 1.5, jitter: 0}`))
	require.NoError(t, err)

	p, err := cfg.RetryPolicy()
	require.NoError(t, err)
	assert.Equal(t, retry.Policy{
		MaxAttempts:     4,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     250 * time.Millisecond,
		Multiplier:      1.5,
	}, p)
}
