// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service holds the login business logic: authentication, user
// management and the audit event log.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mileusna/useragent"

	"github.com/olegiv/gatekeeper-go/internal/model"
	"github.com/olegiv/gatekeeper-go/internal/store"
)

// RequestInfo describes the client behind an audited action.
type RequestInfo struct {
	IP        string
	UserAgent string
	AttemptID string // correlates the events of one login attempt
}

// EventService writes and prunes audit events.
type EventService struct {
	queries *store.Queries
	now     func() time.Time
}

// NewEventService creates a new EventService.
func NewEventService(db *sql.DB) *EventService {
	return &EventService{
		queries: store.New(db),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// LogEvent records an event. Metadata is stored as JSON; client details
// from req are merged in.
func (s *EventService) LogEvent(ctx context.Context, level, category, message string, userID *int64, req RequestInfo, metadata map[string]any) error {
	var nullUserID sql.NullInt64
	if userID != nil {
		nullUserID = sql.NullInt64{Int64: *userID, Valid: true}
	}

	meta := make(map[string]any, len(metadata)+5)
	for k, v := range metadata {
		meta[k] = v
	}
	if req.IP != "" {
		meta["ip"] = req.IP
	}
	if req.AttemptID != "" {
		meta["attempt_id"] = req.AttemptID
	}
	if req.UserAgent != "" {
		ua := useragent.Parse(req.UserAgent)
		meta["browser"] = valueOrUnknown(ua.Name)
		meta["os"] = valueOrUnknown(ua.OS)
		if ua.Bot {
			meta["bot"] = true
		}
	}

	metadataJSON := "{}"
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			metadataJSON = string(b)
		}
	}

	_, err := s.queries.CreateEvent(ctx, store.CreateEventParams{
		Level:     level,
		Category:  category,
		Message:   message,
		UserID:    nullUserID,
		Metadata:  metadataJSON,
		CreatedAt: s.now(),
	})
	if err != nil {
		slog.Error("failed to log event", "error", err, "message", message)
		return err
	}
	return nil
}

// LogAuthEvent records an authentication event.
func (s *EventService) LogAuthEvent(ctx context.Context, level, message string, userID *int64, req RequestInfo, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryAuth, message, userID, req, metadata)
}

// LogUserEvent records a user management event.
func (s *EventService) LogUserEvent(ctx context.Context, level, message string, userID *int64, req RequestInfo, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryUser, message, userID, req, metadata)
}

// Recent returns the newest events first.
func (s *EventService) Recent(ctx context.Context, limit int64) ([]store.Event, error) {
	return s.queries.ListEvents(ctx, limit)
}

// DeleteOldEvents removes events older than olderThan.
func (s *EventService) DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.queries.DeleteEventsBefore(ctx, s.now().Add(-olderThan))
}

func valueOrUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
