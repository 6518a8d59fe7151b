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

package journal

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/periphctl/periphctl/pkg/database"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

func sqlMigrateUp(db *sql.DB) error {
	if err := database.MigrateUp(db, migrationFiles, "migrations"); err != nil {
		return fmt.Errorf("failed to run journal migrations: %w", err)
	}
	return nil
}

func sqlInsertEvent(ctx context.Context, db *sql.DB, ev *Event) error {
	var display any
	if ev.Display != nil {
		display = int64(*ev.Display)
	}
	_, err := db.ExecContext(ctx,
		`insert into Events (ID, BootID, Time, Method, Display, Params) values (?, ?, ?, ?, ?, ?);`,
		ev.ID, ev.BootID, ev.Time.UnixMilli(), ev.Method, display, string(ev.Params),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func sqlQueryEvents(ctx context.Context, db *sql.DB, q Query) ([]Event, error) {
	var (
		where []string
		args  []any
	)
	if q.Display != nil {
		where = append(where, "Display = ?")
		args = append(args, int64(*q.Display))
	}
	if !q.Since.IsZero() {
		where = append(where, "Time >= ?")
		args = append(args, q.Since.UnixMilli())
	}

	stmt := `select ID, BootID, Time, Method, Display, Params from Events`
	if len(where) > 0 {
		stmt += " where " + strings.Join(where, " and ")
	}
	stmt += " order by Time desc, rowid desc limit ?;"
	args = append(args, q.Limit)

	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close event rows")
		}
	}()

	var events []Event
	for rows.Next() {
		var (
			ev      Event
			ms      int64
			display sql.NullInt64
			params  string
		)
		if err := rows.Scan(&ev.ID, &ev.BootID, &ms, &ev.Method, &display, &params); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Time = time.UnixMilli(ms)
		if display.Valid {
			d := uint32(display.Int64) //nolint:gosec // written from a uint32
			ev.Display = &d
		}
		if params != "" {
			ev.Params = []byte(params)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return events, nil
}

func sqlDeleteBefore(ctx context.Context, db *sql.DB, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `delete from Events where Time < ?;`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned events: %w", err)
	}
	return n, nil
}
