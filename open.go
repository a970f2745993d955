package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"github.com/fragmede/threadview/internal/auth"
	"github.com/fragmede/threadview/internal/config"
	"github.com/fragmede/threadview/internal/monitor"
	"github.com/fragmede/threadview/internal/thread"
	"github.com/fragmede/threadview/internal/ui"
	"github.com/fragmede/threadview/internal/ui/threadview"
)

func newOpenCmd(cfgPath *string) *cobra.Command {
	var order string
	cmd := &cobra.Command{
		Use:   "open <item-id>",
		Short: "Open a thread in the terminal UI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), *cfgPath, args[0], order)
		},
	}
	cmd.Flags().StringVarP(&order, "order", "o", "", "initial order: popular or newest")
	return cmd
}

// fileLogger logs to the configured file while the terminal belongs to the
// UI.
func fileLogger(cfg config.Config) (pslog.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log dir: %w", err)
	}
	f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	level := pslog.InfoLevel
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = pslog.DebugLevel
	case "error":
		level = pslog.ErrorLevel
	}
	logger := pslog.NewWithOptions(f, pslog.Options{
		Mode:     pslog.ModeStructured,
		NoColor:  true,
		MinLevel: level,
	})
	return logger, func() { _ = f.Close() }, nil
}

func runTUI(ctx context.Context, cfgPath, arg, order string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	logger, closeLog, err := fileLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	ctx = pslog.ContextWithLogger(ctx, logger)
	log.SetOutput(pslog.LogLogger(logger).Writer())

	e, err := newEnv(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	header, err := e.loadHeader(ctx, arg)
	if err != nil {
		return err
	}
	opts, err := e.threadOptions(header, order)
	if err != nil {
		return err
	}

	sched := threadview.NewScheduler(ctx)
	defer sched.Close()
	surface := threadview.NewSurface()
	session := auth.NewSession(cfg.API.SiteURL, logger)
	opts.Scheduler = sched
	opts.Surface = surface
	opts.Mutator = &auth.Mutator{Session: session, Items: e.client, Log: logger}
	th, err := thread.New(opts)
	if err != nil {
		return err
	}

	var app *ui.App
	appOpts := ui.Options{
		Thread:  threadview.New(th, sched, surface, header, ""),
		Session: session,
		Logger:  logger,
	}
	if e.db != nil {
		appOpts.Store = e.db
	}
	if cfg.Monitor.Enabled {
		mopts := monitor.Options{
			Source:   e.client,
			Interval: cfg.MonitorInterval(),
			Report:   func(u monitor.Update) { app.Report(u) },
			Logger:   logger,
		}
		if e.db != nil {
			mopts.Store = e.db
		}
		appOpts.Monitor = monitor.New(mopts)
	}
	app = ui.NewApp(ctx, appOpts)

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	app.SetProgram(p)
	logger.Info("thread opened", "target", string(opts.Target), "ordering", opts.Ordering.String(), "seed_total", opts.SeedTotal)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running ui: %w", err)
	}
	if appOpts.Monitor != nil {
		appOpts.Monitor.Stop()
	}
	return nil
}
