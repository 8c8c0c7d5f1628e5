package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/moon/internal/cipher"
	"github.com/roach88/moon/internal/config"
	"github.com/roach88/moon/internal/engine"
	"github.com/roach88/moon/internal/metrics"
	"github.com/roach88/moon/internal/store"
)

// runtime is everything a dispatch command needs, opened once per
// process and released by Close.
type runtime struct {
	cfg     *config.Config
	store   *store.Store
	engine  *engine.Engine
	metrics *metrics.Metrics // nil unless requested
	logger  *slog.Logger
}

// openRuntime loads configuration, opens the store and the cipher and
// builds the engine. With withMetrics the engine reports to a fresh
// Prometheus registry.
func openRuntime(cmd *cobra.Command, opts *RootOptions, withMetrics bool) (*runtime, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.Logging, opts.Verbose, cmd.ErrOrStderr())

	logger.Debug("opening database", "path", cfg.Store.Path)
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	public, private, err := cfg.KeyMaterial()
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to read keys", err)
	}
	box, err := cipher.LoadBox(public, private)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load keys", err)
	}

	rt := &runtime{cfg: cfg, store: st, logger: logger}
	engineOpts := []engine.EngineOption{engine.WithCipher(box), engine.WithLogger(logger)}
	if withMetrics {
		rt.metrics = metrics.New()
		engineOpts = append(engineOpts, engine.WithRecorder(rt.metrics))
	}
	rt.engine = engine.New(st, engineOpts...)
	return rt, nil
}

// Close releases the store.
func (rt *runtime) Close() error {
	if err := rt.store.Close(); err != nil {
		rt.logger.Error("error closing database", "error", err)
		return err
	}
	return nil
}

// loadConfig reads the config file, applies --db and validates.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Store.Path = opts.Database
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. --verbose forces debug level.
func newLogger(lc config.LoggingConfig, verbose bool, w io.Writer) *slog.Logger {
	level := lc.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// withRuntime opens the runtime, runs fn and closes the runtime.
func withRuntime(cmd *cobra.Command, opts *RootOptions, fn func(rt *runtime) error) (err error) {
	rt, err := openRuntime(cmd, opts, false)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close database: %w", cerr)
		}
	}()
	return fn(rt)
}

// isExitError reports whether err already carries an exit code.
func isExitError(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr)
}
