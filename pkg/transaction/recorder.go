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

package transaction

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/periphctl/periphctl/pkg/display"
	"github.com/periphctl/periphctl/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

// Kind of submission seen by a Recorder.
type Kind int

const (
	KindValidate Kind = iota
	KindCommit
	KindFlush
)

func (k Kind) String() string {
	switch k {
	case KindCommit:
		return "commit"
	case KindFlush:
		return "flush"
	default:
		return "validate"
	}
}

// Submission is one batch as received by a Recorder.
type Submission struct {
	At    time.Time
	Batch *Batch
	Err   error
	Kind  Kind
}

// Recorder is an in-memory Executor. It keeps every submission, can be told
// to reject upcoming submissions, and hands out release fences that signal
// one vsync period after the commit on its clock.
type Recorder struct {
	clock       clockwork.Clock
	failNext    map[Kind][]error
	submissions []Submission
	vsync       time.Duration
	mu          syncutil.Mutex
	fences      bool
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock sets the clock used for timestamps and fences.
func WithClock(clock clockwork.Clock) RecorderOption {
	return func(r *Recorder) {
		r.clock = clock
	}
}

// WithReleaseFences makes commits return a release fence that signals after
// the given vsync period.
func WithReleaseFences(vsync time.Duration) RecorderOption {
	return func(r *Recorder) {
		r.fences = true
		r.vsync = vsync
	}
}

func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{
		clock:    clockwork.NewRealClock(),
		failNext: make(map[Kind][]error),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FailNext queues err as the outcome of the next submission of the given kind.
func (r *Recorder) FailNext(kind Kind, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext[kind] = append(r.failNext[kind], err)
}

func (r *Recorder) record(kind Kind, b *Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if queued := r.failNext[kind]; len(queued) > 0 {
		err = queued[0]
		r.failNext[kind] = queued[1:]
	}

	r.submissions = append(r.submissions, Submission{
		At:    r.clock.Now(),
		Batch: b,
		Err:   err,
		Kind:  kind,
	})

	log.Debug().
		Uint32("display", b.Display).
		Str("batch", b.ID.String()).
		Str("kind", kind.String()).
		Int("writes", len(b.Writes)).
		Bool("sync", b.Synchronous).
		AnErr("outcome", err).
		Msg("transaction submitted")

	return err
}

func (r *Recorder) Validate(ctx context.Context, b *Batch) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	return r.record(KindValidate, b)
}

func (r *Recorder) Commit(ctx context.Context, b *Batch) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("commit: %w", err)
	}
	if err := r.record(KindCommit, b); err != nil {
		return Result{}, err
	}
	if !r.fences {
		return Result{}, nil
	}
	return Result{ReleaseFence: &recorderFence{
		clock:    r.clock,
		signalAt: r.clock.Now().Add(r.vsync),
		name:     "release:" + b.ID.String(),
	}}, nil
}

func (r *Recorder) Flush(ctx context.Context, b *Batch) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return r.record(KindFlush, b)
}

// Submissions returns a copy of everything submitted so far.
func (r *Recorder) Submissions() []Submission {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Submission, len(r.submissions))
	copy(out, r.submissions)
	return out
}

// Last returns the most recent submission of kind, if any.
func (r *Recorder) Last(kind Kind) (Submission, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.submissions) - 1; i >= 0; i-- {
		if r.submissions[i].Kind == kind {
			return r.submissions[i], true
		}
	}
	return Submission{}, false
}

// Count returns how many submissions of kind were seen, failed ones included.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.submissions {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

type recorderFence struct {
	clock    clockwork.Clock
	signalAt time.Time
	name     string
}

func (f *recorderFence) Wait(ctx context.Context) error {
	remaining := f.signalAt.Sub(f.clock.Now())
	if remaining <= 0 {
		return nil
	}
	select {
	case <-f.clock.After(remaining):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("fence %s: %w", f.name, ctx.Err())
	}
}

func (f *recorderFence) String() string {
	return f.name
}

var _ display.Fence = (*recorderFence)(nil)
