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
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jonboulle/clockwork"
	"github.com/periphctl/periphctl/pkg/api/models"
	testsqlmock "github.com/periphctl/periphctl/pkg/testing/sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newMockJournal(t *testing.T) (*Journal, sqlmock.Sqlmock, *clockwork.FakeClock) {
	t.Helper()
	db, mock, err := testsqlmock.NewSQLMock()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	clock := clockwork.NewFakeClockAt(epoch)
	return Wrap(db, "boot-1", clock), mock, clock
}

func TestRecord(t *testing.T) {
	t.Parallel()

	j, mock, _ := newMockJournal(t)
	params := json.RawMessage(`{"display":2,"power":"on"}`)

	mock.ExpectExec(`insert into Events .* values`).
		WithArgs(sqlmock.AnyArg(), "boot-1", epoch.UnixMilli(), models.NotificationDisplayPower, int64(2), string(params)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	ev, err := j.Record(context.Background(), models.Notification{
		Method: models.NotificationDisplayPower,
		Params: params,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	require.NotNil(t, ev.Display)
	assert.Equal(t, uint32(2), *ev.Display)
	assert.True(t, ev.Time.Equal(epoch))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecord_NoDisplay(t *testing.T) {
	t.Parallel()

	j, mock, _ := newMockJournal(t)
	mock.ExpectExec(`insert into Events`).
		WithArgs(sqlmock.AnyArg(), "boot-1", epoch.UnixMilli(), "custom", nil, "").
		WillReturnResult(sqlmock.NewResult(1, 1))

	ev, err := j.Record(context.Background(), models.Notification{Method: "custom"})
	require.NoError(t, err)
	assert.Nil(t, ev.Display)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecord_InsertFails(t *testing.T) {
	t.Parallel()

	j, mock, _ := newMockJournal(t)
	mock.ExpectExec(`insert into Events`).WillReturnError(errors.New("disk full"))

	_, err := j.Record(context.Background(), models.Notification{Method: "custom"})
	require.ErrorContains(t, err, "failed to insert event")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEvents_Filters(t *testing.T) {
	t.Parallel()

	j, mock, _ := newMockJournal(t)
	display := uint32(1)
	since := epoch.Add(-time.Hour)

	rows := sqlmock.NewRows([]string{"ID", "BootID", "Time", "Method", "Display", "Params"}).
		AddRow("b", "boot-1", epoch.UnixMilli(), models.NotificationDisplayCommitted, int64(1), `{"display":1}`).
		AddRow("a", "boot-1", since.UnixMilli(), models.NotificationDisplayAdded, int64(1), "")
	mock.ExpectQuery(`select ID, BootID, Time, Method, Display, Params from Events where Display = \? and Time >= \? order by Time desc`).
		WithArgs(int64(1), since.UnixMilli(), int64(DefaultLimit)).
		WillReturnRows(rows)

	events, err := j.Events(context.Background(), Query{Display: &display, Since: since})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "b", events[0].ID)
	assert.True(t, events[0].Time.Equal(epoch))
	assert.JSONEq(t, `{"display":1}`, string(events[0].Params))
	assert.Nil(t, events[1].Params)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEvents_LimitClamped(t *testing.T) {
	t.Parallel()

	j, mock, _ := newMockJournal(t)
	rows := sqlmock.NewRows([]string{"ID", "BootID", "Time", "Method", "Display", "Params"}).
		AddRow("a", "boot-1", epoch.UnixMilli(), "custom", nil, "")
	mock.ExpectQuery(`select .* from Events order by`).
		WithArgs(int64(MaxLimit)).
		WillReturnRows(rows)

	events, err := j.Events(context.Background(), Query{Limit: 50000})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Nil(t, events[0].Display)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPrune(t *testing.T) {
	t.Parallel()

	j, mock, _ := newMockJournal(t)
	mock.ExpectExec(`delete from Events where Time < \?`).
		WithArgs(epoch.Add(-24 * time.Hour).UnixMilli()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := j.Prune(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClosedJournal(t *testing.T) {
	t.Parallel()

	j, mock, _ := newMockJournal(t)
	mock.ExpectClose()
	require.NoError(t, j.Close())
	require.NoError(t, j.Close(), "second close is a no-op")

	ctx := context.Background()
	_, err := j.Record(ctx, models.Notification{Method: "custom"})
	require.ErrorIs(t, err, ErrClosed)
	_, err = j.Events(ctx, Query{})
	require.ErrorIs(t, err, ErrClosed)
	_, err = j.Prune(ctx, time.Hour)
	require.ErrorIs(t, err, ErrClosed)
}

func TestDisplayOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		want   *uint32
		name   string
		params string
	}{
		{name: "display field", params: `{"display":3}`, want: ptr(3)},
		{name: "lifecycle id", params: `{"id":4,"name":"dsi"}`, want: ptr(4)},
		{name: "display wins over id", params: `{"id":4,"display":5}`, want: ptr(5)},
		{name: "display zero", params: `{"display":0}`, want: ptr(0)},
		{name: "neither", params: `{"state":"start"}`},
		{name: "empty", params: ``},
		{name: "not json", params: `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, displayOf(json.RawMessage(tt.params)))
		})
	}
}

func ptr(v uint32) *uint32 {
	return &v
}
