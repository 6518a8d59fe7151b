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

package peripheral_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/periphctl/periphctl/pkg/display"
	"github.com/periphctl/periphctl/pkg/peripheral"
	"github.com/periphctl/periphctl/pkg/scaler"
	"github.com/periphctl/periphctl/pkg/testing/mocks"
	"github.com/periphctl/periphctl/pkg/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func scaledFrame(width uint32) *display.FrameInfo {
	return &display.FrameInfo{DestScale: map[uint32]*display.DestScaleInfo{
		0: {
			MixerWidth:  width,
			MixerHeight: 2400,
			ScaleUpdate: true,
			Scale:       display.ScalerDescriptor{Enable: true, DstWidth: 1080, DstHeight: 2400},
		},
	}}
}

func TestCommit_SendsScalerConfigOnlyWhenChanged(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.p.Commit(ctx, scaledFrame(540)))
	assert.True(t, f.lastBatch(t, transaction.KindCommit).Has(transaction.OpCRTCSetDestScalerConfig))

	require.NoError(t, f.p.Commit(ctx, scaledFrame(540)))
	assert.False(t, f.lastBatch(t, transaction.KindCommit).Has(transaction.OpCRTCSetDestScalerConfig))

	require.NoError(t, f.p.Commit(ctx, scaledFrame(720)))
	cfg, ok := lastValue(t, f.lastBatch(t, transaction.KindCommit), transaction.OpCRTCSetDestScalerConfig).(scaler.Config)
	require.True(t, ok)
	assert.Equal(t, uint32(720), cfg.Blocks[0].MixerWidth)
	assert.Equal(t, scaler.FlagEnable|scaler.FlagScaleUpdate, cfg.Blocks[0].Flags)
}

func TestCommit_DualSplitPartialScalerRequest(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(cfg *peripheral.Config, _ *peripheral.Deps) {
		cfg.Split = display.SplitDual
	})
	ctx := context.Background()
	f.activate(t)

	require.NoError(t, f.p.Commit(ctx, scaledFrame(540)))
	cfg, ok := lastValue(t, f.lastBatch(t, transaction.KindCommit), transaction.OpCRTCSetDestScalerConfig).(scaler.Config)
	require.True(t, ok)
	require.Len(t, cfg.Blocks, 1)
	assert.Equal(t, uint32(0), cfg.Blocks[0].Index)
	assert.Equal(t, uint32(540), cfg.Blocks[0].MixerWidth)

	require.NoError(t, f.p.Commit(ctx, scaledFrame(540)))
	assert.False(t, f.lastBatch(t, transaction.KindCommit).Has(transaction.OpCRTCSetDestScalerConfig))

	both := scaledFrame(540)
	both.DestScale[1] = scaledFrame(1080).DestScale[0]
	require.NoError(t, f.p.Commit(ctx, both))
	cfg, ok = lastValue(t, f.lastBatch(t, transaction.KindCommit), transaction.OpCRTCSetDestScalerConfig).(scaler.Config)
	require.True(t, ok)
	require.Len(t, cfg.Blocks, 2)
	assert.Equal(t, uint32(1), cfg.Blocks[1].Index)
	assert.Equal(t, uint32(1080), cfg.Blocks[1].MixerWidth)

	// a power cycle resends and reconfirms both blocks
	require.NoError(t, f.p.PowerOff(ctx, false))
	require.NoError(t, f.p.PowerOn(ctx, display.QosData{}))
	cfg, ok = lastValue(t, f.lastBatch(t, transaction.KindCommit), transaction.OpCRTCSetDestScalerConfig).(scaler.Config)
	require.True(t, ok)
	assert.Len(t, cfg.Blocks, 2)

	require.NoError(t, f.p.Commit(ctx, both))
	assert.False(t, f.lastBatch(t, transaction.KindCommit).Has(transaction.OpCRTCSetDestScalerConfig))
}

func TestCommit_FailedCommitResendsScalerConfig(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.activate(t)

	f.rec.FailNext(transaction.KindCommit, errBoom)
	require.ErrorIs(t, f.p.Commit(ctx, scaledFrame(540)), display.ErrUndefined)

	require.NoError(t, f.p.Commit(ctx, scaledFrame(540)))
	assert.True(t, f.lastBatch(t, transaction.KindCommit).Has(transaction.OpCRTCSetDestScalerConfig))
}

func TestFlush_ForcesScalerResend(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.p.Commit(ctx, scaledFrame(540)))

	require.NoError(t, f.p.Flush(ctx))
	assert.True(t, f.lastBatch(t, transaction.KindFlush).Synchronous)

	require.NoError(t, f.p.Commit(ctx, scaledFrame(540)))
	assert.True(t, f.lastBatch(t, transaction.KindCommit).Has(transaction.OpCRTCSetDestScalerConfig))
}

func TestFlush_FailureKeepsCache(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.p.Commit(ctx, scaledFrame(540)))

	f.rec.FailNext(transaction.KindFlush, errBoom)
	require.Error(t, f.p.Flush(ctx))

	require.NoError(t, f.p.Commit(ctx, scaledFrame(540)))
	assert.False(t, f.lastBatch(t, transaction.KindCommit).Has(transaction.OpCRTCSetDestScalerConfig))
}

func TestValidate_DoesNotPromote(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.p.Validate(ctx, scaledFrame(540)))
	b := f.lastBatch(t, transaction.KindValidate)
	assert.True(t, b.Has(transaction.OpCRTCSetDestScalerConfig))
	assert.True(t, b.Has(transaction.OpConnectorSetTopologyControl))

	s := f.p.State()
	assert.True(t, s.FirstCycle)
	assert.False(t, s.Active)

	// staged writes survive validation and reach the commit
	f.activate(t)
	assert.True(t, f.lastBatch(t, transaction.KindCommit).Has(transaction.OpConnectorSetTopologyControl))
}

func TestValidate_PropagatesExecutorKind(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.rec.FailNext(transaction.KindValidate, display.ErrParameters)

	err := f.p.Validate(context.Background(), nil)
	assert.Equal(t, display.KindParameters, display.Kind(err))
}

func TestCommit_StagedWritesAreConsumed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.activate(t)
	ctx := context.Background()

	require.NoError(t, f.p.SetFrameTrigger(display.FrameTriggerSerialize))
	require.NoError(t, f.p.Commit(ctx, nil))
	assert.Equal(t, transaction.FrameDoneWaitSerialize,
		lastValue(t, f.lastBatch(t, transaction.KindCommit), transaction.OpConnectorSetFrameTrigger))

	require.NoError(t, f.p.Commit(ctx, nil))
	assert.False(t, f.lastBatch(t, transaction.KindCommit).Has(transaction.OpConnectorSetFrameTrigger))
}

func TestCommit_SelfRefreshCycle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		start   display.SelfRefreshState
		commits int
		writes  []transaction.Op
	}{
		{
			name:    "read alloc",
			start:   display.SelfRefreshReadAlloc,
			commits: 2,
			writes:  []transaction.Op{transaction.OpCRTCSetCacheState, transaction.OpCRTCSetCacheState},
		},
		{
			name:    "write alloc",
			start:   display.SelfRefreshWriteAlloc,
			commits: 1,
			writes:  []transaction.Op{transaction.OpConnectorSetCacheState},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.activate(t)
			f.p.EnableSelfRefresh(tt.start)

			for i := range tt.commits {
				require.NotEqual(t, display.SelfRefreshNone, f.p.SelfRefreshState())
				require.NoError(t, f.p.Commit(context.Background(), nil))
				assert.True(t, f.lastBatch(t, transaction.KindCommit).Has(tt.writes[i]))
			}
			assert.Equal(t, display.SelfRefreshNone, f.p.SelfRefreshState())

			require.NoError(t, f.p.Commit(context.Background(), nil))
			b := f.lastBatch(t, transaction.KindCommit)
			assert.False(t, b.Has(transaction.OpCRTCSetCacheState))
			assert.False(t, b.Has(transaction.OpConnectorSetCacheState))
		})
	}
}

func TestCommit_SelfRefreshReadAllocWrites(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.activate(t)
	ctx := context.Background()
	f.p.EnableSelfRefresh(display.SelfRefreshReadAlloc)

	require.NoError(t, f.p.Commit(ctx, nil))
	assert.Equal(t, transaction.CacheStateEnabled,
		lastValue(t, f.lastBatch(t, transaction.KindCommit), transaction.OpCRTCSetCacheState))

	require.NoError(t, f.p.Commit(ctx, nil))
	assert.Equal(t, transaction.CacheStateDisabled,
		lastValue(t, f.lastBatch(t, transaction.KindCommit), transaction.OpCRTCSetCacheState))
}

func TestEnableSelfRefresh_IgnoresNone(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.p.EnableSelfRefresh(display.SelfRefreshWriteAlloc)
	f.p.EnableSelfRefresh(display.SelfRefreshNone)
	assert.Equal(t, display.SelfRefreshWriteAlloc, f.p.SelfRefreshState())
}

func TestCommit_FailureKeepsSelfRefreshState(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.activate(t)
	f.p.EnableSelfRefresh(display.SelfRefreshWriteAlloc)

	f.rec.FailNext(transaction.KindCommit, errBoom)
	require.Error(t, f.p.Commit(context.Background(), nil))
	assert.Equal(t, display.SelfRefreshWriteAlloc, f.p.SelfRefreshState())
}

func TestCommit_AttachesReleaseFence(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	rec := transaction.NewRecorder(transaction.WithClock(clock), transaction.WithReleaseFences(16*time.Millisecond))
	f := newFixture(t, func(_ *peripheral.Config, deps *peripheral.Deps) {
		deps.Executor = rec
	})

	frame := &display.FrameInfo{OutputBuffer: &display.OutputBuffer{}}
	require.NoError(t, f.p.Commit(context.Background(), frame))
	require.NotNil(t, frame.OutputBuffer.ReleaseFence)

	done := make(chan error, 1)
	go func() {
		done <- frame.OutputBuffer.ReleaseFence.Wait(context.Background())
	}()
	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(16 * time.Millisecond)
	require.NoError(t, <-done)
}

func TestCommit_SynchronousAfterSecureDisplayEnd(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.activate(t)
	ctx := context.Background()
	assert.False(t, f.lastBatch(t, transaction.KindCommit).Synchronous)

	require.NoError(t, f.p.HandleSecureEvent(ctx, display.SecureDisplayStart, display.QosData{}))
	require.NoError(t, f.p.HandleSecureEvent(ctx, display.SecureDisplayEnd, display.QosData{}))
	assert.True(t, f.p.State().SynchronousCommit)

	require.NoError(t, f.p.Commit(ctx, nil))
	assert.True(t, f.lastBatch(t, transaction.KindCommit).Synchronous)

	require.NoError(t, f.p.Commit(ctx, nil))
	assert.False(t, f.lastBatch(t, transaction.KindCommit).Synchronous)
}

func TestCommit_WithMockExecutor(t *testing.T) {
	t.Parallel()

	exec := mocks.NewMockExecutor()
	f := newFixture(t, func(_ *peripheral.Config, deps *peripheral.Deps) {
		deps.Executor = exec
	})

	require.NoError(t, f.p.Commit(context.Background(), nil))
	exec.AssertCalled(t, "Commit", mock.Anything, mock.AnythingOfType("*transaction.Batch"))

	batches := exec.Batches("Commit")
	require.Len(t, batches, 1)
	assert.Equal(t, uint32(0), batches[0].Display)
	assert.True(t, batches[0].Has(transaction.OpConnectorSetPowerMode))
}
