// Package app wires CLI parsing, config, logging, transport, and the session controller.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/panelfront/internal/cli"
	"github.com/rbright/panelfront/internal/config"
	"github.com/rbright/panelfront/internal/doctor"
	"github.com/rbright/panelfront/internal/logging"
	"github.com/rbright/panelfront/internal/session"
	"github.com/rbright/panelfront/internal/transcript"
	"github.com/rbright/panelfront/internal/transport"
	"github.com/rbright/panelfront/internal/version"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitInterrupted = 130
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText())
		return ExitUsage
	}

	switch parsed.Command {
	case cli.CommandHelp:
		fmt.Fprint(r.Stdout, parsed.Help)
		return ExitOK
	case cli.CommandVersion:
		fmt.Fprintln(r.Stdout, version.String())
		return ExitOK
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath, parsed.Overrides)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return ExitFailure
	}

	logRuntime, err := logging.New(cfgLoaded.Config.Log.Level)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return ExitFailure
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	for _, w := range cfgLoaded.Warnings {
		fmt.Fprintf(r.Stderr, "warning: %s\n", w.Message)
		logger.Warn("config warning", "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return ExitOK
		}
		return ExitFailure
	case cli.CommandRun:
		return r.commandRun(ctx, cfgLoaded.Config, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return ExitUsage
	}
}

// commandRun joins the coordinator and runs one session until stop, failure, or signal.
func (r Runner) commandRun(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	sessionID := uuid.NewString()
	logger = logger.With("session_id", sessionID)

	addr := cfg.Coordinator.Address()
	conn, err := transport.Dial(ctx, addr, cfg.Coordinator.DialTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return ExitInterrupted
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("dial failed", "coordinator", addr, "error", err.Error())
		return ExitFailure
	}
	defer func() { _ = conn.Close() }()
	logger.Info("connected", "coordinator", addr, "module", cfg.Module)

	link := transport.NewLink(conn, logger, transport.Options{
		ReadChunkSize: cfg.Transport.ReadChunkSize,
		FlushTimeout:  cfg.Transport.FlushTimeout,
	})

	var renderer session.Renderer
	if cfg.Render.Enable {
		renderer = transcript.NewRenderer(r.Stdout, transcript.RenderOptions{
			Width: cfg.Render.Width,
			Plain: cfg.Render.Plain,
		})
	}
	controller := session.NewController(logger, link.Inbound(), link.Outbound(), renderer, session.Options{
		Module: cfg.Module,
	})

	var result session.Result
	runErr := link.Run(ctx, func(ctx context.Context) error {
		result = controller.Run(ctx)
		return result.Err
	})
	logSessionResult(logger, result, runErr)

	switch {
	case ctx.Err() != nil:
		fmt.Fprintln(r.Stderr, "interrupted")
		return ExitInterrupted
	case errors.Is(runErr, session.ErrInboxClosed):
		fmt.Fprintln(r.Stderr, "error: coordinator closed the connection before stop")
		return ExitFailure
	case runErr != nil:
		fmt.Fprintf(r.Stderr, "error: %v\n", runErr)
		return ExitFailure
	}
	return ExitOK
}

func logSessionResult(logger *slog.Logger, result session.Result, err error) {
	if logger == nil {
		return
	}
	fields := []any{
		"state", result.State,
		"started", result.Started,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"dispatched", result.Dispatched,
		"ignored", result.Ignored,
		"sentences_completed", result.Playback.Completed,
		"sentences_interrupted", result.Playback.Interrupted,
		"tokens_revealed", result.Playback.Revealed,
		"tokens_dropped", result.Playback.Dropped,
		"user_length", len(result.Transcript.User),
		"ai_length", len(result.Transcript.AI),
	}

	if err != nil {
		logger.Error("session failed", append(fields, "error", err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}
