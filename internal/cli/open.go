package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/roach88/perstore/internal/config"
	"github.com/roach88/perstore/internal/kv"
	"github.com/roach88/perstore/internal/log"
	"github.com/roach88/perstore/internal/store"
)

// session is an open store plus the database behind it.
type session struct {
	cfg   config.Config
	db    kv.Store
	store *store.Store
}

func (s *session) Close() error {
	return s.db.Close()
}

// loadConfig reads --config and applies the flag overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.DB != "" {
		cfg.Store.Path = opts.DB
	}
	if opts.Engine != "" {
		cfg.Store.Engine = opts.Engine
	}
	if opts.Namespace != "" {
		cfg.Store.Namespace = opts.Namespace
	}
	return cfg, nil
}

// initLogging configures the package loggers. --verbose forces debug.
func initLogging(opts *RootOptions, cfg config.Config) error {
	level, err := log.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid log level", err)
	}
	if opts.Verbose {
		level = zerolog.DebugLevel
	}
	typ, err := log.ParseLoggerType(cfg.Log.Format)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid log format", err)
	}
	log.Init(log.Options{LogLevel: level, Type: typ, Out: os.Stderr})
	return nil
}

// openKV opens the configured engine.
func openKV(cfg config.Config) (kv.Store, error) {
	if cfg.Store.Path == "" {
		return nil, NewExitError(ExitCommandError, "a database path is required (--db or store.path)")
	}

	var (
		db  kv.Store
		err error
	)
	switch cfg.Store.Engine {
	case config.EnginePebble:
		db, err = kv.OpenPebble(kv.PebbleOptions{Path: cfg.Store.Path})
	case config.EngineSQLite:
		db, err = kv.OpenSQLite(cfg.Store.Path)
	default:
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown engine %q: must be pebble or sqlite", cfg.Store.Engine))
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return db, nil
}

// openSession loads configuration, initializes logging and opens the store.
// The caller must Close the session.
func openSession(opts *RootOptions) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if err := initLogging(opts, cfg); err != nil {
		return nil, err
	}

	policy, err := cfg.RetryPolicy()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid retry settings", err)
	}

	db, err := openKV(cfg)
	if err != nil {
		return nil, err
	}

	st, err := store.New(db, store.Options{
		IDProperty: cfg.Store.IDProperty,
		Namespace:  cfg.Store.Namespace,
		Retry:      policy,
		ReadAhead:  cfg.Cursor.ReadAhead,
	})
	if err != nil {
		db.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}

	log.CLI.Debug().
		Str("engine", cfg.Store.Engine).
		Str("path", cfg.Store.Path).
		Str("namespace", cfg.Store.Namespace).
		Msg("store opened")

	return &session{cfg: cfg, db: db, store: st}, nil
}

// closeSession closes s, logging rather than returning the error so it never
// masks the command's own result.
func closeSession(s *session) {
	if err := s.Close(); err != nil {
		log.CLI.Error().Err(err).Msg("error closing database")
	}
}
