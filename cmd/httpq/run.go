package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/adamwoolhether/httpq/client"
	"github.com/adamwoolhether/httpq/internal/batch"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "httpq",
		Short:         "Asynchronous HTTP request runner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd())

	return root
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit every request in a batch file and print the results",
		Long: `Run loads a YAML batch of requests, submits them all at once and prints one
JSON line per request to stdout as each completes. Logs go to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	initFlags(cmd.Flags())

	return cmd
}

// ErrFailures is returned when at least one request failed.
var ErrFailures = errors.New("requests failed")

func run(ctx context.Context, cfg *Config, stdout, stderr io.Writer) error {
	lvl, err := cfg.level()
	if err != nil {
		return err
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: lvl}))

	file, err := batch.Load(cfg.File)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	names := make(map[uuid.UUID]string, len(file.Requests))
	var failed int

	emit := func(r batch.Result) {
		if r.Error != "" {
			failed++
		}
		if err := enc.Encode(r); err != nil {
			log.Error("writing result", "error", err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handlers run on this goroutine, so names and failed are never
	// touched concurrently.
	var c *client.Client
	handle := func(ev *client.Event) {
		emit(batch.NewResult(names[ev.ID], ev))
		if c.Pending() == 0 {
			cancel()
		}
	}

	c, err = client.Build(append(clientOptions(cfg, log), client.WithHandler(handle))...)
	if err != nil {
		return fmt.Errorf("building client: %w", err)
	}

	for i, req := range file.Requests {
		name := req.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i+1)
		}

		desc, method, err := req.Descriptor()
		if err == nil {
			var id uuid.UUID
			if id, err = c.Submit(ctx, desc, method); err == nil {
				names[id] = name
			}
		}
		if err != nil {
			log.Warn("request rejected", "name", name, "error", err)
			emit(batch.Result{Name: name, Method: req.Method, URL: req.URL, Error: err.Error()})
		}
	}

	if c.Pending() > 0 {
		if err := c.Run(runCtx, cfg.Poll); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("dispatching: %w", err)
		}
	}

	drainCtx, drainCancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.DrainTimeout)
	defer drainCancel()
	if err := c.Close(drainCtx); err != nil {
		log.Error("closing client", "error", err)
	}

	if ctx.Err() != nil {
		return fmt.Errorf("interrupted with %d requests outstanding: %w", c.Pending(), ctx.Err())
	}

	log.Info("batch complete", "requests", len(file.Requests), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d %w", failed, len(file.Requests), ErrFailures)
	}

	return nil
}

// clientOptions translates cfg into client options.
func clientOptions(cfg *Config, log *slog.Logger) []client.Option {
	opts := []client.Option{
		client.WithLogger(log),
		client.WithOutputRoot(cfg.OutputRoot),
		client.WithMaxConcurrent(cfg.Concurrency),
		client.WithTimeout(cfg.Timeout),
		client.WithUserAgent(cfg.UserAgent),
	}

	if cfg.RPS > 0 {
		opts = append(opts, client.WithThrottle(cfg.RPS, cfg.Burst))
	}
	if cfg.ConnectTimeout > 0 {
		opts = append(opts, client.WithConnectTimeout(cfg.ConnectTimeout))
	}
	if cfg.Progress {
		opts = append(opts, client.WithProgress())
	}

	return opts
}
