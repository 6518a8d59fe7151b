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

	"github.com/periphctl/periphctl/pkg/display"
	"github.com/periphctl/periphctl/pkg/peripheral"
	"github.com/periphctl/periphctl/pkg/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrustedUI_VideoModeFlushesAroundSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.activate(t)
	ctx := context.Background()
	qos := display.QosData{Valid: true, CoreABBps: 1 << 30}

	require.NoError(t, f.p.HandleSecureEvent(ctx, display.TUITransitionPrepare, display.QosData{}))
	assert.Equal(t, display.TUIStateInProgress, f.p.TUIState())
	assert.Equal(t, 0, f.rec.Count(transaction.KindFlush))

	require.NoError(t, f.p.HandleSecureEvent(ctx, display.TUITransitionStart, qos))
	require.Equal(t, 1, f.rec.Count(transaction.KindFlush))
	b := f.lastBatch(t, transaction.KindFlush)
	assert.Equal(t, transaction.VMRequestRelease, lastValue(t, b, transaction.OpCRTCSetVMReqState))
	assert.Equal(t, transaction.IdlePCDisable, lastValue(t, b, transaction.OpCRTCSetIdlePCState))
	assert.Equal(t, qos, lastValue(t, b, transaction.OpCRTCSetQosData))
	assert.Equal(t, display.TUIStateStart, f.p.TUIState())
	assert.Equal(t, []display.TUIState{display.TUIStateStart}, f.handoffs)

	require.NoError(t, f.p.HandleSecureEvent(ctx, display.TUITransitionEnd, qos))
	require.Equal(t, 2, f.rec.Count(transaction.KindFlush))
	b = f.lastBatch(t, transaction.KindFlush)
	assert.True(t, b.Has(transaction.OpPlanesResetCache))
	assert.True(t, b.Has(transaction.OpCRTCResetCache))
	assert.Equal(t, transaction.VMRequestAcquire, lastValue(t, b, transaction.OpCRTCSetVMReqState))
	assert.Equal(t, transaction.IdlePCEnable, lastValue(t, b, transaction.OpCRTCSetIdlePCState))
	assert.Equal(t, display.TUIStateNone, f.p.TUIState())
	assert.Equal(t, []display.TUIState{display.TUIStateStart, display.TUIStateEnd}, f.handoffs)

	// back to normal: frames carry no handoff request
	require.NoError(t, f.p.Commit(ctx, nil))
	assert.Equal(t, transaction.VMRequestNone,
		lastValue(t, f.lastBatch(t, transaction.KindCommit), transaction.OpCRTCSetVMReqState))
}

func TestTrustedUI_CommandModeUsesNextCommit(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.activate(t)
	ctx := context.Background()
	require.NoError(t, f.p.Doze(ctx, display.QosData{}))
	require.Equal(t, display.PanelModeCommand, f.p.PanelMode())

	require.NoError(t, f.p.HandleSecureEvent(ctx, display.TUITransitionStart, display.QosData{}))
	assert.Equal(t, 0, f.rec.Count(transaction.KindFlush))
	assert.Equal(t, display.TUIStateStart, f.p.TUIState())
	assert.Empty(t, f.handoffs)

	require.NoError(t, f.p.Commit(ctx, nil))
	b := f.lastBatch(t, transaction.KindCommit)
	assert.Equal(t, transaction.VMRequestRelease, lastValue(t, b, transaction.OpCRTCSetVMReqState))
	assert.Equal(t, transaction.IdlePCDisable, lastValue(t, b, transaction.OpCRTCSetIdlePCState))
	assert.Equal(t, []display.TUIState{display.TUIStateStart}, f.handoffs)

	require.NoError(t, f.p.HandleSecureEvent(ctx, display.TUITransitionEnd, display.QosData{}))
	assert.Equal(t, 0, f.rec.Count(transaction.KindFlush))
	assert.Equal(t, display.TUIStateEnd, f.p.TUIState())

	require.NoError(t, f.p.Commit(ctx, nil))
	b = f.lastBatch(t, transaction.KindCommit)
	assert.Equal(t, transaction.VMRequestAcquire, lastValue(t, b, transaction.OpCRTCSetVMReqState))
	assert.True(t, b.Has(transaction.OpCRTCResetCache))
	assert.Equal(t, display.TUIStateNone, f.p.TUIState())
	assert.Equal(t, []display.TUIState{display.TUIStateStart, display.TUIStateEnd}, f.handoffs)
}

func TestTrustedUI_EndFlushesInCommandModeWhenPowerOffPending(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.activate(t)
	ctx := context.Background()
	require.NoError(t, f.p.Doze(ctx, display.QosData{}))
	require.NoError(t, f.p.HandleSecureEvent(ctx, display.TUITransitionStart, display.QosData{}))

	f.rec.FailNext(transaction.KindCommit, errBoom)
	require.Error(t, f.p.PowerOff(ctx, false))
	require.Equal(t, display.PowerOff, f.p.PendingPowerState())

	require.NoError(t, f.p.HandleSecureEvent(ctx, display.TUITransitionEnd, display.QosData{}))
	assert.Equal(t, 1, f.rec.Count(transaction.KindFlush))
	assert.Equal(t, display.TUIStateNone, f.p.TUIState())
}

func TestTrustedUI_StartFlushFailureKeepsState(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.activate(t)
	ctx := context.Background()
	require.NoError(t, f.p.HandleSecureEvent(ctx, display.TUITransitionPrepare, display.QosData{}))

	f.rec.FailNext(transaction.KindFlush, errBoom)
	err := f.p.HandleSecureEvent(ctx, display.TUITransitionStart, display.QosData{})
	require.ErrorIs(t, err, display.ErrUndefined)
	assert.Equal(t, display.TUIStateInProgress, f.p.TUIState())
	assert.Empty(t, f.handoffs)

	// idle power collapse is still enabled, so the retry disables it again
	require.NoError(t, f.p.HandleSecureEvent(ctx, display.TUITransitionStart, display.QosData{}))
	assert.Equal(t, transaction.IdlePCDisable,
		lastValue(t, f.lastBatch(t, transaction.KindFlush), transaction.OpCRTCSetIdlePCState))
}

func TestTrustedUI_PausesHistogramsDuringSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.activate(t)
	ctx := context.Background()
	require.NoError(t, f.p.SetDppsFeature(&peripheral.DppsPayload{
		FeatureID:  peripheral.FeatureLtmHistCtrl,
		ObjectType: peripheral.ObjectTypeCRTC,
		Value:      1,
	}))

	require.NoError(t, f.p.HandleSecureEvent(ctx, display.TUITransitionStart, display.QosData{}))
	b := f.lastBatch(t, transaction.KindFlush)
	dpps := b.Find(transaction.OpDppsCacheFeature)
	require.Len(t, dpps, 2, "staged enable plus the pause")
	assert.Equal(t, transaction.DppsFeature{FeatureID: peripheral.FeatureLtmHistCtrl}, dpps[1].Value)

	require.NoError(t, f.p.HandleSecureEvent(ctx, display.TUITransitionEnd, display.QosData{}))
	assert.Equal(t, transaction.DppsFeature{FeatureID: peripheral.FeatureLtmHistCtrl, Value: 1},
		lastValue(t, f.lastBatch(t, transaction.KindFlush), transaction.OpDppsCacheFeature))
}

func TestSecureDisplay_CommandModeSkipsFlush(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.activate(t)
	ctx := context.Background()
	require.NoError(t, f.p.Doze(ctx, display.QosData{}))

	require.NoError(t, f.p.HandleSecureEvent(ctx, display.SecureDisplayStart, display.QosData{}))
	assert.True(t, f.p.State().SecureDisplayActive)
	require.NoError(t, f.p.HandleSecureEvent(ctx, display.SecureDisplayEnd, display.QosData{}))
	assert.False(t, f.p.State().SecureDisplayActive)
	assert.Equal(t, 0, f.rec.Count(transaction.KindFlush))
}

func TestSecureDisplay_FlushFailureKeepsState(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.activate(t)

	f.rec.FailNext(transaction.KindFlush, errBoom)
	require.Error(t, f.p.HandleSecureEvent(context.Background(), display.SecureDisplayStart, display.QosData{}))
	assert.False(t, f.p.State().SecureDisplayActive)
}

func TestHandleSecureEvent_UnknownEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	err := f.p.HandleSecureEvent(context.Background(), display.SecureEvent(99), display.QosData{})
	require.ErrorIs(t, err, display.ErrNotSupported)
}

func TestControlIdlePowerCollapse_OneShotWrite(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.activate(t)
	ctx := context.Background()

	f.p.ControlIdlePowerCollapse(true)
	require.NoError(t, f.p.Commit(ctx, nil))
	assert.False(t, f.lastBatch(t, transaction.KindCommit).Has(transaction.OpCRTCSetIdlePCState))

	f.p.ControlIdlePowerCollapse(false)
	require.NoError(t, f.p.Commit(ctx, nil))
	assert.Equal(t, transaction.IdlePCDisable,
		lastValue(t, f.lastBatch(t, transaction.KindCommit), transaction.OpCRTCSetIdlePCState))

	require.NoError(t, f.p.Commit(ctx, nil))
	assert.False(t, f.lastBatch(t, transaction.KindCommit).Has(transaction.OpCRTCSetIdlePCState))

	// power on turns it back on
	require.NoError(t, f.p.PowerOn(ctx, display.QosData{}))
	assert.Equal(t, transaction.IdlePCEnable,
		lastValue(t, f.lastBatch(t, transaction.KindCommit), transaction.OpCRTCSetIdlePCState))
}
