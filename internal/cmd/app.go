package cmd

import (
	"context"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/reimburse/internal/config"
	"github.com/felixgeelhaar/reimburse/internal/credential"
	"github.com/felixgeelhaar/reimburse/internal/log"
	"github.com/felixgeelhaar/reimburse/internal/metrics"
	"github.com/felixgeelhaar/reimburse/internal/platform"
	"github.com/felixgeelhaar/reimburse/internal/session"
	"github.com/felixgeelhaar/reimburse/internal/telemetry"
	"github.com/felixgeelhaar/reimburse/internal/ux"
	"github.com/felixgeelhaar/reimburse/internal/version"
)

// App holds everything a command needs. It is built once per invocation in
// the root PersistentPreRunE and released by Execute.
type App struct {
	Config    *config.Config
	Logger    *log.Logger
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Telemetry *telemetry.Provider
	Store     credential.Store
	Session   *session.Manager

	flags   *CommandContext
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	command string
	started time.Time
	span    trace.Span
}

type appKey struct{}

// appSlot is placed on the context before execution so Execute can release
// whatever PersistentPreRunE built, even when the command fails.
type appSlot struct {
	app *App
}

func appFrom(cmd *cobra.Command) *App {
	slot, _ := cmd.Context().Value(appKey{}).(*appSlot)
	if slot == nil {
		return nil
	}
	return slot.app
}

func newApp(ctx context.Context, cmd *cobra.Command, flags *CommandContext) (*App, error) {
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return nil, err
	}
	if flags.APIURL != "" {
		cfg.APIURL = flags.APIURL
	}
	if flags.LogLevel != "" {
		cfg.Log.Level = flags.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	info := version.GetInfo()

	logger := log.New(log.Config{
		Level:          log.ParseLevel(cfg.Log.Level),
		Format:         log.ParseFormat(cfg.Log.Format),
		Output:         log.NewOutput(cmd.ErrOrStderr()),
		ServiceName:    "reimburse",
		ServiceVersion: info.Version,
	})

	registry, m := metrics.NewRegistry()

	provider, err := telemetry.InitProvider(ctx, telemetry.Config{
		ServiceName:    "reimburse",
		ServiceVersion: info.Version,
		Environment:    "cli",
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		logger.Warn("Failed to initialize telemetry", "error", err)
		provider = telemetry.NewProvider(nil)
	}

	store, err := credential.Open(ctx, cfg.Store)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, err
	}

	client := platform.NewClient(cfg.APIURL,
		platform.WithTimeout(cfg.Timeout),
		platform.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		platform.WithLogger(logger),
		platform.WithMetrics(m),
		platform.WithTracerProvider(provider.TracerProvider()),
		platform.WithUserAgent(info.UserAgent()),
	)

	manager := session.New(client, store, session.Options{
		Logger:        logger,
		Metrics:       m,
		Tracer:        provider.TracerProvider(),
		SingleFlight:  cfg.Session.SingleFlight,
		LogoutTimeout: cfg.LogoutTimeout,
	})

	app := &App{
		Config:    cfg,
		Logger:    logger,
		Registry:  registry,
		Metrics:   m,
		Telemetry: provider,
		Store:     store,
		Session:   manager,
		flags:     flags,
		stdin:     cmd.InOrStdin(),
		stdout:    cmd.OutOrStdout(),
		stderr:    cmd.ErrOrStderr(),
		command:   cmd.CommandPath(),
		started:   time.Now(),
	}

	manager.OnUnauthorized(func(error) {
		p := ux.NewPrinter(app.stderr, flags.NoColor)
		p.Warn("Your session has expired.")
		p.Hint("Run 'reimburse auth login' to sign in again.")
	})

	return app, nil
}

// API returns the backend client bound to the session.
func (a *App) API() *platform.Client {
	return a.Session.Client()
}

// Render writes v in the selected output format.
func (a *App) Render(v interface{}) error {
	f, err := ux.NewFormatter(a.flags.Output, &ux.FormatterOptions{
		Writer:  a.stdout,
		NoColor: a.flags.NoColor,
	})
	if err != nil {
		return err
	}
	return f.Format(v)
}

// Close ends the command span, records the command metric, flushes telemetry
// and writes the metrics textfile when one was requested.
func (a *App) Close(ctx context.Context, cmdErr error) error {
	a.Metrics.RecordCommand(a.command, cmdErr == nil, time.Since(a.started).Seconds())
	if a.span != nil {
		if cmdErr != nil {
			telemetry.RecordError(a.span, cmdErr)
		} else {
			telemetry.RecordSuccess(a.span)
		}
		a.span.End()
	}

	var firstErr error
	if err := a.Session.Close(); err != nil {
		firstErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.Telemetry.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn("Failed to flush telemetry", "error", err)
	}

	if a.flags.MetricsFile != "" {
		if err := metrics.WriteTextfile(a.flags.MetricsFile, a.Registry); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
