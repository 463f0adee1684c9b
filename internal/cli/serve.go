package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/gridsync/internal/remote/server"
	"github.com/roach88/gridsync/internal/store"
)

// ServeOptions holds flags for the serve command. Empty values fall back to
// the config file.
type ServeOptions struct {
	*RootOptions
	Database string
	Addr     string
	Secret   string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the listing store",
		Long: `Run the HTTP listing store that editing sessions save to.

The SQLite database is created on first use. Sessions authenticate with
bearer tokens signed by the shared secret.

Example:
  gridsync serve --db ./gridsync.db --addr :8787
  gridsync serve --config ./gridsync.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address")
	cmd.Flags().StringVar(&opts.Secret, "secret", "", "token signing secret")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.Database != "" {
		cfg.Server.Database = opts.Database
	}
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}
	if opts.Secret != "" {
		cfg.Auth.Secret = opts.Secret
	}

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	logger.Info("opening database", "path", cfg.Server.Database)
	st, err := store.Open(cfg.Server.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	ctx, stop := signalContext(cmd)
	defer stop()

	srv := server.New(st, cfg.Auth.Secret,
		server.WithLogger(logger),
		server.WithAllowedOrigins(cfg.Server.CORSOrigins...),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Listing store on %s. Press Ctrl-C to stop.\n", cfg.Server.Addr)

	if err := srv.Serve(ctx, cfg.Server.Addr); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "server error", err)
	}
	logger.Info("listing store stopped")
	return nil
}

// signalContext derives a context from the command's that is cancelled on
// SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
