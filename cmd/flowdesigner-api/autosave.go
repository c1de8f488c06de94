package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// flusher saves every open flow with unsaved edits.
type flusher interface {
	FlushDirty(ctx context.Context) (int, error)
}

// Autosaver periodically flushes dirty designer sessions.
type Autosaver struct {
	logger  *slog.Logger
	flusher flusher
	cron    *cron.Cron
}

func NewAutosaver(logger *slog.Logger, f flusher) *Autosaver {
	return &Autosaver{
		logger:  logger.With("component", "autosave"),
		flusher: f,
	}
}

// Start schedules the flush on a standard cron expression or descriptor such
// as "@every 30s". An empty schedule disables autosave.
func (a *Autosaver) Start(schedule string) error {
	if schedule == "" {
		a.logger.Info("Autosave disabled")

		return nil
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid autosave schedule '%s': %w", schedule, err)
	}

	a.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	entryID, err := a.cron.AddFunc(schedule, a.run)
	if err != nil {
		return fmt.Errorf("failed to schedule autosave: %w", err)
	}

	a.cron.Start()

	a.logger.Info("Autosave scheduled", "schedule", schedule, "entry_id", entryID)

	return nil
}

// Stop waits for a running flush and then saves once more.
func (a *Autosaver) Stop(ctx context.Context) {
	if a.cron == nil {
		return
	}

	<-a.cron.Stop().Done()
	a.cron = nil

	a.flush(ctx)
}

func (a *Autosaver) run() {
	a.flush(context.Background())
}

func (a *Autosaver) flush(ctx context.Context) {
	saved, err := a.flusher.FlushDirty(ctx)
	if err != nil {
		a.logger.ErrorContext(ctx, "Autosave failed", "saved", saved, "error", err)

		return
	}

	if saved > 0 {
		a.logger.InfoContext(ctx, "Autosaved flows", "count", saved)
	}
}
