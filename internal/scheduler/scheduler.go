// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs the periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultPurgeSchedule runs the audit event purge once a day at midnight.
const DefaultPurgeSchedule = "@daily"

// purgeTimeout bounds a single purge run.
const purgeTimeout = time.Minute

// EventPurger deletes audit events older than a cutoff.
type EventPurger interface {
	DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Config holds scheduler configuration.
type Config struct {
	// Retention is how long audit events are kept.
	Retention time.Duration
	// Schedule is the cron spec of the purge job. Empty means
	// DefaultPurgeSchedule.
	Schedule string
}

// Scheduler handles scheduled tasks like purging old audit events.
type Scheduler struct {
	events    EventPurger
	cron      *cron.Cron
	logger    *slog.Logger
	retention time.Duration
	schedule  string
	entryID   cron.EntryID
}

// New creates a new scheduler instance.
func New(events EventPurger, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultPurgeSchedule
	}
	return &Scheduler{
		events:    events,
		cron:      cron.New(),
		logger:    logger,
		retention: cfg.Retention,
		schedule:  cfg.Schedule,
	}
}

// Start registers the purge job and starts the cron runner.
func (s *Scheduler) Start() error {
	if s.retention <= 0 {
		return fmt.Errorf("event retention must be positive, got %s", s.retention)
	}

	id, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
		defer cancel()
		if _, err := s.PurgeEvents(ctx); err != nil {
			s.logger.Error("failed to purge old events", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling event purge %q: %w", s.schedule, err)
	}
	s.entryID = id

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()), "purge_schedule", s.schedule, "retention", s.retention.String())
	return nil
}

// Stop gracefully stops the scheduler, waiting for a running job.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// NextPurge returns when the purge job runs next, or the zero time if the
// scheduler is not running.
func (s *Scheduler) NextPurge() time.Time {
	if s.entryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// PurgeEvents deletes events older than the retention window and returns
// how many were removed.
func (s *Scheduler) PurgeEvents(ctx context.Context) (int64, error) {
	n, err := s.events.DeleteOldEvents(ctx, s.retention)
	if err != nil {
		return 0, fmt.Errorf("deleting old events: %w", err)
	}
	if n > 0 {
		s.logger.Info("purged old events", "count", n, "retention", s.retention.String())
	}
	return n, nil
}
