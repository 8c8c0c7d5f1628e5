package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/moon/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string // overrides server.addr from config

	// ready, when set, receives the server before Run starts. Tests use
	// it to reach the handler without binding a port.
	ready func(*server.Server)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dispatcher over HTTP",
		Long: `Serve match, exec, watch and collection writes as a JSON HTTP API.

Prometheus metrics are exposed on /metrics. Each client address is rate
limited by server.rate_limit_rps and server.rate_limit_burst.

Example:
  moon serve --db ./moon.db --addr 127.0.0.1:8787
  moon serve --config moon.yaml --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) (err error) {
	rt, err := openRuntime(cmd, opts.RootOptions, true)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close database: %w", cerr)
		}
	}()

	addr := rt.cfg.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	srv := server.New(addr, rt.engine,
		server.WithRateLimit(rt.cfg.Server.RateLimitRPS, rt.cfg.Server.RateLimitBurst),
		server.WithMetrics(rt.metrics.Handler()),
		server.WithLogger(rt.logger),
	)
	if opts.ready != nil {
		opts.ready(srv)
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt.logger.Info("serving", "addr", addr, "db", rt.cfg.Store.Path)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "server error", err)
	}
	rt.logger.Info("server stopped gracefully")
	return nil
}
