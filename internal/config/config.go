// Package config loads perstore settings from CUE.
//
// A user file is unified with the embedded schema, so unknown fields are
// rejected and every omitted field takes its schema default:
//
//	store: engine: "sqlite"
//	store: path:   "records.db"
//	retry: max_attempts: 5
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/perstore/internal/retry"
)

//go:embed schema.cue
var schemaSource string

// Engine names.
const (
	EnginePebble = "pebble"
	EngineSQLite = "sqlite"
)

// Config is the decoded configuration.
type Config struct {
	Store  StoreConfig  `json:"store"`
	Retry  RetryConfig  `json:"retry"`
	Cursor CursorConfig `json:"cursor"`
	Log    LogConfig    `json:"log"`
}

type StoreConfig struct {
	Engine     string `json:"engine"`
	Path       string `json:"path"`
	Namespace  string `json:"namespace"`
	IDProperty string `json:"id_property"`
}

type RetryConfig struct {
	MaxAttempts     int     `json:"max_attempts"`
	InitialInterval string  `json:"initial_interval"`
	MaxInterval     string  `json:"max_interval"`
	Multiplier      float64 `json:"multiplier"`
	Jitter          float64 `json:"jitter"`
}

type CursorConfig struct {
	ReadAhead int `json:"read_ahead"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// ConfigError reports an invalid configuration with its source position
// when CUE provides one.
type ConfigError struct {
	Message string
	Pos     token.Pos
}

func (e *ConfigError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Default returns the schema defaults.
func Default() Config {
	cfg, err := LoadBytes("default.cue", nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema is invalid: %v", err))
	}
	return cfg
}

// Load reads and validates the CUE file at path. An empty path yields
// Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return LoadBytes(path, data)
}

// LoadBytes validates CUE source named filename.
func LoadBytes(filename string, data []byte) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, formatCUEError(err)
	}

	user := ctx.CompileBytes(data, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return Config{}, formatCUEError(err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, formatCUEError(err)
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return Config{}, formatCUEError(err)
	}
	if _, err := cfg.RetryPolicy(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RetryPolicy converts the retry section. Retryable is left for the caller.
func (c Config) RetryPolicy() (retry.Policy, error) {
	initial, err := time.ParseDuration(c.Retry.InitialInterval)
	if err != nil {
		return retry.Policy{}, &ConfigError{Message: fmt.Sprintf("retry.initial_interval: %v", err)}
	}
	maxInterval, err := time.ParseDuration(c.Retry.MaxInterval)
	if err != nil {
		return retry.Policy{}, &ConfigError{Message: fmt.Sprintf("retry.max_interval: %v", err)}
	}
	if maxInterval < initial {
		return retry.Policy{}, &ConfigError{Message: "retry.max_interval must not be below retry.initial_interval"}
	}
	return retry.Policy{
		MaxAttempts:     c.Retry.MaxAttempts,
		InitialInterval: initial,
		MaxInterval:     maxInterval,
		Multiplier:      c.Retry.Multiplier,
		Jitter:          c.Retry.Jitter,
	}, nil
}

// formatCUEError keeps the first error's position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &ConfigError{Message: err.Error()}
	}

	first := errs[0]
	ce := &ConfigError{Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
