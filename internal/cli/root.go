// Package cli is the humanfolio command line client. Every command mirrors
// the store, waits for the loading gate, does its work and stops.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/joshua-takyi/humanfolio/internal/config"
	"github.com/joshua-takyi/humanfolio/internal/connect"
	"github.com/joshua-takyi/humanfolio/internal/container"
	"github.com/joshua-takyi/humanfolio/internal/logging"
	"github.com/joshua-takyi/humanfolio/internal/models"
	"github.com/joshua-takyi/humanfolio/internal/reconciler"
)

var ErrSignedOut = errors.New("not signed in, run 'humanfolio login' first")

// Opener builds a container for one command run. The returned close
// function releases whatever the opener connected.
type Opener func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*container.Container, func(), error)

type rootFlags struct {
	configPath string
	logLevel   string
	timeout    time.Duration
}

// NewRootCommand assembles the command tree. A nil opener connects to the
// configured MongoDB and session backend.
func NewRootCommand(open Opener) *cobra.Command {
	if open == nil {
		open = OpenConfigured
	}
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "humanfolio",
		Short:         "Browse, publish and rate human-made projects",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "YAML file overriding environment settings")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (default from LOG_LEVEL)")
	root.PersistentFlags().DurationVar(&flags.timeout, "timeout", 0, "how long to wait for the first snapshots (default from READY_TIMEOUT)")

	s := &runner{open: open, flags: flags}
	root.AddCommand(
		newRegisterCmd(s),
		newLoginCmd(s),
		newLogoutCmd(s),
		newWhoamiCmd(s),
		newProjectsCmd(s),
		newShowCmd(s),
		newVoteCmd(s),
		newPublishCmd(s),
		newDeleteCmd(s),
		newWatchCmd(s),
	)
	return root
}

// Execute runs the command tree against os.Args.
func Execute(ctx context.Context) error {
	return NewRootCommand(nil).ExecuteContext(ctx)
}

// runner runs one command against a started reconciler.
type runner struct {
	open  Opener
	flags *rootFlags
}

func (s *runner) loadConfig() (*config.Config, error) {
	_ = godotenv.Load(".env.local")
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if s.flags.configPath != "" {
		if err := cfg.Overlay(s.flags.configPath); err != nil {
			return nil, err
		}
	}
	if s.flags.logLevel != "" {
		cfg.LogLevel = s.flags.logLevel
	}
	if s.flags.timeout > 0 {
		cfg.ReadyTimeout = s.flags.timeout
	}
	return cfg, nil
}

// run opens the container, starts the reconciler and waits until both
// collections are mirrored before calling fn. Queued writes are flushed by
// Stop before run returns.
func (s *runner) run(cmd *cobra.Command, fn func(ctx context.Context, c *container.Container) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(cmd.ErrOrStderr(), cfg.Environment, cfg.LogLevel)

	c, closeFn, err := s.open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	rec := c.Reconciler
	if err := rec.Start(ctx); err != nil {
		return err
	}
	done := make(chan struct{})
	go reportNotices(cmd.ErrOrStderr(), rec.Notices(), done)
	defer func() {
		rec.Stop()
		<-done
	}()

	readyCtx, cancel := context.WithTimeout(ctx, cfg.ReadyTimeout)
	defer cancel()
	if err := rec.WaitReady(readyCtx); err != nil {
		return fmt.Errorf("store did not answer in %s: %w", cfg.ReadyTimeout, err)
	}
	return fn(ctx, c)
}

// signedIn returns the session identity or ErrSignedOut.
func signedIn(rec *reconciler.Reconciler) (*models.User, error) {
	u := rec.Identity()
	if u == nil {
		return nil, ErrSignedOut
	}
	return u, nil
}

func reportNotices(w io.Writer, notices <-chan reconciler.Notice, done chan<- struct{}) {
	defer close(done)
	for n := range notices {
		fmt.Fprintf(w, "warning: %s\n", n)
	}
}

// OpenConfigured connects to MongoDB and the configured session backend.
func OpenConfigured(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*container.Container, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	mongoClient, err := connect.MongoDBConnect(ctx, cfg.MongoURI())
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){func() {
		if err := connect.MongoDBDisconnect(mongoClient); err != nil {
			logger.Warn("failed to disconnect MongoDB", "error", err)
		}
	}}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := container.Deps{Store: models.MongodbNewRepo(mongoClient, cfg.MongoDBDatabase, logger)}
	if cfg.SessionBackend == config.SessionRedis {
		rdb, err := connect.RedisConnect(ctx, cfg.RedisURL)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = rdb.Close() })
		deps.Session, err = container.OpenSession(cfg, rdb, logger)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
	} else {
		deps.Session, err = container.OpenSession(cfg, nil, logger)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
	}

	c, err := container.NewContainer(logger, cfg, deps)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return c, closeAll, nil
}
