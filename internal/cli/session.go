package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/user"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/gridsync/internal/config"
	"github.com/roach88/gridsync/internal/engine"
	"github.com/roach88/gridsync/internal/remote"
	"github.com/roach88/gridsync/internal/schema"
)

// SessionOptions holds flags for the session command.
type SessionOptions struct {
	*RootOptions
	Remote string
	User   string
}

// NewSessionCommand creates the session command.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Start an editing session",
		Long: `Load the active rows of every kind from the listing store and edit them
from standard input. Unsaved edits are flushed in the background; type
"help" for the command list.

Example:
  gridsync session --remote http://localhost:8787 --user kim
  echo 'add shop No.=A-1 Deposit=5,000' | gridsync session`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Remote, "remote", "", "listing store URL")
	cmd.Flags().StringVar(&opts.User, "user", "", "user name sent with every save")

	return cmd
}

func runSession(opts *SessionOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.Remote != "" {
		cfg.Remote.URL = opts.Remote
	}
	if opts.User != "" {
		cfg.Auth.User = opts.User
	}
	if cfg.Auth.User == "" {
		cfg.Auth.User = currentUser()
	}

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	reg, err := schema.Load(cfg.Session.SchemaDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load schema", err)
	}

	con := newConsole(cmd.OutOrStdout())
	sess := newSession(cfg, reg, con, logger)
	defer sess.Close()

	ctx, stop := signalContext(cmd)
	defer stop()

	if err := sess.Load(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to load rows", err)
	}
	con.printf("session %s ready (type help for commands)", sess.ID())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sess.Run(gctx) })
	g.Go(func() error { return sess.RunTicker(gctx) })
	g.Go(func() error { return con.serve(gctx, cmd.InOrStdin()) })

	err = g.Wait()
	if err != nil && !errors.Is(err, errQuit) && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "session error", err)
	}
	return nil
}

func newSession(cfg config.Config, reg *schema.Registry, con *console, logger *slog.Logger) *engine.Session {
	signer := remote.NewSigner(cfg.Auth.Secret, cfg.Auth.TokenTTL)

	var sess *engine.Session
	token := func() (string, error) {
		return signer.Sign(cfg.Auth.User, sess.ID())
	}
	client := remote.NewHTTPClient(cfg.Remote.URL, token,
		remote.WithHTTPClient(&http.Client{Timeout: cfg.Remote.Timeout}),
		remote.WithClientLogger(logger),
	)

	sess = engine.NewSession(reg, client,
		engine.WithLogger(logger),
		engine.WithUser(cfg.Auth.User),
		engine.WithInterval(cfg.Session.FlushInterval),
		engine.WithCooldown(cfg.Session.Cooldown),
		engine.WithCallTimeout(cfg.Session.CallTimeout),
		engine.WithRemapHook(con.onRemap),
	)
	con.sess = sess
	return sess
}

type reply struct {
	text string
	err  error
}

// serve reads command lines from in and runs each on the session owner,
// waiting for its reply. It returns errQuit on quit or end of input.
func (c *console) serve(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("read input: %w", err)
					}
				default:
				}
				return c.finish(ctx)
			}
			line = l
		}

		done := make(chan reply, 1)
		if !c.sess.Post(func() {
			text, err := c.exec(line)
			done <- reply{text: text, err: err}
		}) {
			return errQuit
		}

		var r reply
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r = <-done:
		}

		switch {
		case errors.Is(r.err, errQuit):
			return c.finish(ctx)
		case r.err != nil:
			c.printf("error: %v", r.err)
		case r.text != "":
			c.printf("%s", r.text)
		}
	}
}

// finish waits for an in-flight save to be applied, then ends the session.
// Unsaved edits are not flushed.
func (c *console) finish(ctx context.Context) error {
	t := time.NewTicker(20 * time.Millisecond)
	defer t.Stop()
	for c.sess.Guard().State() != engine.GuardIdle {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return errQuit
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "gridsync"
}
