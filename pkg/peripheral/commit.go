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

package peripheral

import (
	"context"

	"github.com/periphctl/periphctl/pkg/display"
	"github.com/periphctl/periphctl/pkg/modes"
	"github.com/periphctl/periphctl/pkg/scaler"
	"github.com/periphctl/periphctl/pkg/transaction"
)

// Validate checks a frame against the executor without applying anything.
func (p *Peripheral) Validate(ctx context.Context, frame *display.FrameInfo) error {
	b, _ := p.frameBatch(frame)
	if err := p.exec.Validate(ctx, b); err != nil {
		p.log.Debug().Err(err).Msg("frame validation failed")
		return wrapExecutor("validate", err)
	}
	return nil
}

// Commit submits a frame. On success the scaler configuration is confirmed,
// the self-refresh state steps down, a pending panel-mode switch is staged,
// queued clock and mode changes take effect and the display becomes active.
func (p *Peripheral) Commit(ctx context.Context, frame *display.FrameInfo) error {
	b, diff := p.frameBatch(frame)
	res, err := p.exec.Commit(ctx, b)
	if err != nil {
		p.log.Error().Err(err).Str("batch", b.ID.String()).Msg("frame commit failed")
		return wrapExecutor("commit", err)
	}

	if frame != nil && frame.OutputBuffer != nil && res.ReleaseFence != nil {
		frame.OutputBuffer.ReleaseFence = res.ReleaseFence
	}

	p.staged = nil
	if diff.Dirty {
		p.cache.CommitConfirmed(diff)
	}
	p.selfRefresh = p.selfRefresh.Next()
	p.idlePCState = transaction.IdlePCNone
	p.applyQueuedChanges()

	if p.firstCycle {
		p.firstCycle = false
		if p.power == display.PowerOff {
			p.setPower(display.PowerOn)
		}
	}
	if p.pomsPending {
		p.stage(p.panelModeWrite(display.PanelModeCommand))
		p.applyPanelMode(display.PanelModeCommand)
		p.pomsDone = true
		p.pomsPending = false
	}
	p.synchronousCommit = false
	p.active = true
	p.handoffAfterTransition()
	return nil
}

// Flush applies a null commit that drops every layer. The scaler cache is
// cleared on success since the hardware no longer holds its programming.
func (p *Peripheral) Flush(ctx context.Context) error {
	return p.flush(ctx, "flush")
}

// frameBatch assembles the transaction for a frame: staged writes, the
// scaler diff, and the arbiter's one-shot side effects.
func (p *Peripheral) frameBatch(frame *display.FrameInfo) (*transaction.Batch, scaler.Diff) {
	b := transaction.NewBatch(p.id)
	b.Frame = frame
	b.Synchronous = p.synchronousCommit
	b.Append(p.staged...)

	var requests map[uint32]*display.DestScaleInfo
	if frame != nil {
		requests = frame.DestScale
	}
	diff := p.cache.ComputeDiff(requests)
	if diff.Dirty {
		b.Perform(p.crtc, transaction.OpCRTCSetDestScalerConfig, diff.Config)
	}

	if p.idlePCState != transaction.IdlePCNone {
		b.Append(p.idlePCWrite(p.idlePCState))
	}
	b.Append(p.selfRefreshWrites()...)
	b.Append(p.vmRequestWrites(p.tuiState)...)
	b.Append(p.queuedChangeWrites()...)

	// the first frame also brings the panel up
	if p.firstCycle && p.power == display.PowerOff {
		b.Append(p.powerWrite(transaction.PowerModeOn))
	}
	return b, diff
}

func (p *Peripheral) selfRefreshWrites() []transaction.Write {
	switch p.selfRefresh {
	case display.SelfRefreshReadAlloc:
		return []transaction.Write{{Object: p.crtc, Op: transaction.OpCRTCSetCacheState, Value: transaction.CacheStateEnabled}}
	case display.SelfRefreshWriteAlloc:
		return []transaction.Write{{Object: p.conn, Op: transaction.OpConnectorSetCacheState, Value: transaction.CacheStateEnabled}}
	case display.SelfRefreshDisableReadAlloc:
		return []transaction.Write{{Object: p.crtc, Op: transaction.OpCRTCSetCacheState, Value: transaction.CacheStateDisabled}}
	default:
		return nil
	}
}

func (p *Peripheral) queuedChangeWrites() []transaction.Write {
	var ws []transaction.Write
	switch {
	case p.pendingAttrs:
		ws = append(ws, p.modeSetWrite(p.attrsMode))
	case p.pendingRefresh:
		ws = append(ws, p.modeSetWrite(p.refreshMode))
	}
	if p.bitClkRate != 0 {
		ws = append(ws, transaction.Write{Object: p.conn, Op: transaction.OpConnectorSetBitClock, Value: p.bitClkRate})
	}
	return ws
}

func (p *Peripheral) modeSetWrite(index uint32) transaction.Write {
	m := &p.connector.Modes[index]
	return p.modeSet(index, modes.PanelModeOf(m) == display.PanelModeCommand)
}

// modeSet selects mode index with the topology and compression of its
// active sub-mode.
func (p *Peripheral) modeSet(index uint32, command bool) transaction.Write {
	m := &p.connector.Modes[index]
	return transaction.Write{
		Object: p.crtc,
		Op:     transaction.OpCRTCSetMode,
		Value: transaction.ModeSet{
			Topology:     m.Topology(),
			Index:        index,
			SubModeIndex: m.CurSubMode,
			Compression:  m.CurCompression,
			Command:      command,
		},
	}
}

func (p *Peripheral) applyQueuedChanges() {
	switch {
	case p.pendingAttrs:
		p.setCurrentMode(p.attrsMode)
		p.panelMode = modes.PanelModeOf(p.mode())
		p.log.Info().Uint32("mode", p.attrsMode).Msg("display attributes applied")
	case p.pendingRefresh:
		p.setCurrentMode(p.refreshMode)
		p.log.Info().Uint32("vrefresh", p.mode().VRefresh).Msg("refresh rate applied")
	}
	if p.bitClkRate != 0 {
		p.mode().CurBitClkRate = p.bitClkRate
		p.log.Info().Uint64("bitclk", p.bitClkRate).Msg("bit clock applied")
	}
	p.pendingAttrs, p.pendingRefresh, p.bitClkRate = false, false, 0
}
