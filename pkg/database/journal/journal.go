// Periphctl
// Copyright (c) 2026 The Periphctl Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Periphctl.
//
// Periphctl is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Periphctl is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Periphctl.  If not, see <http://www.gnu.org/licenses/>.

// Package journal keeps a SQLite history of display notifications so past
// power transitions, deferrals and commits can be inspected after the fact.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	_ "github.com/mattn/go-sqlite3"
	"github.com/periphctl/periphctl/pkg/api/models"
	"github.com/rs/zerolog/log"
)

const (
	File             = "journal.db"
	sqliteConnParams = "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	pruneInterval    = time.Hour
)

var ErrClosed = errors.New("journal is not open")

// Event is one recorded notification. Display is nil for notifications
// that name no display.
type Event struct {
	Time    time.Time       `json:"time"`
	Display *uint32         `json:"display,omitempty"`
	ID      string          `json:"id"`
	BootID  string          `json:"bootId"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Query selects events, newest first. A zero Limit returns DefaultLimit
// events.
type Query struct {
	Display *uint32
	Since   time.Time
	Limit   int
}

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

type Journal struct {
	sql    *sql.DB
	clock  clockwork.Clock
	bootID string
}

// Open opens or creates the journal at path and applies its migrations.
func Open(ctx context.Context, path, bootID string, clock clockwork.Clock) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+sqliteConnParams)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	j, err := New(db, bootID, clock)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info().Str("path", path).Msg("opened event journal")
	return j, nil
}

// New wraps an open database and migrates it.
func New(db *sql.DB, bootID string, clock clockwork.Clock) (*Journal, error) {
	if err := sqlMigrateUp(db); err != nil {
		return nil, err
	}
	return Wrap(db, bootID, clock), nil
}

// Wrap uses db as is, without migrating it.
func Wrap(db *sql.DB, bootID string, clock clockwork.Clock) *Journal {
	return &Journal{sql: db, clock: clock, bootID: bootID}
}

func (j *Journal) Close() error {
	if j.sql == nil {
		return nil
	}
	err := j.sql.Close()
	j.sql = nil
	if err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	return nil
}

// Record stores a notification stamped with the journal clock.
func (j *Journal) Record(ctx context.Context, notif models.Notification) (Event, error) {
	if j.sql == nil {
		return Event{}, ErrClosed
	}
	ev := Event{
		Time:    j.clock.Now(),
		Display: displayOf(notif.Params),
		ID:      uuid.New().String(),
		BootID:  j.bootID,
		Method:  notif.Method,
		Params:  notif.Params,
	}
	if err := sqlInsertEvent(ctx, j.sql, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func (j *Journal) Events(ctx context.Context, q Query) ([]Event, error) {
	if j.sql == nil {
		return nil, ErrClosed
	}
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultLimit
	case q.Limit > MaxLimit:
		q.Limit = MaxLimit
	}
	return sqlQueryEvents(ctx, j.sql, q)
}

// Prune deletes events older than retention and returns how many went.
func (j *Journal) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if j.sql == nil {
		return 0, ErrClosed
	}
	return sqlDeleteBefore(ctx, j.sql, j.clock.Now().Add(-retention))
}

// Run records notifications until notifs closes or ctx is cancelled. When
// retention is positive old events are pruned hourly.
func (j *Journal) Run(ctx context.Context, notifs <-chan models.Notification, retention time.Duration) {
	ticker := j.clock.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case notif, ok := <-notifs:
			if !ok {
				return
			}
			if _, err := j.Record(ctx, notif); err != nil {
				log.Error().Err(err).Str("method", notif.Method).Msg("failed to record event")
			}
		case <-ticker.Chan():
			if retention <= 0 {
				continue
			}
			n, err := j.Prune(ctx, retention)
			if err != nil {
				log.Error().Err(err).Msg("failed to prune journal")
				continue
			}
			log.Debug().Int64("deleted", n).Msg("pruned journal")
		}
	}
}

// displayOf finds the display a notification is about. Display lifecycle
// payloads carry it as id, everything else as display.
func displayOf(params json.RawMessage) *uint32 {
	if len(params) == 0 {
		return nil
	}
	var p struct {
		Display *uint32 `json:"display"`
		ID      *uint32 `json:"id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil
	}
	if p.Display != nil {
		return p.Display
	}
	return p.ID
}
