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
	"fmt"

	"github.com/periphctl/periphctl/pkg/display"
	"github.com/periphctl/periphctl/pkg/transaction"
)

// PowerOn drives the panel on. It is deferred during the first cycle, which
// powers the panel through its first commit, and while a trusted UI session
// has not resolved. A command-mode switch made for doze is reverted.
func (p *Peripheral) PowerOn(ctx context.Context, qos display.QosData) error {
	p.pendingPow = display.PowerOn
	if p.firstCycle || p.tuiState != display.TUIStateNone {
		p.log.Info().
			Bool("first_cycle", p.firstCycle).
			Str("tui", p.tuiState.String()).
			Msg("power on deferred")
		return fmt.Errorf("power on: %w", display.ErrDeferred)
	}

	writes := p.vmRequestWrites(p.tuiState)
	revert := p.switchModeValid && p.pomsDone && p.currentMode == p.cmdModeIndex
	if revert {
		writes = append(writes, p.panelModeWrite(display.PanelModeVideo))
	}
	if w, ok := p.idlePCTransition(true); ok {
		writes = append(writes, w)
	}
	diff, resend := p.cache.Resend()
	if resend {
		writes = append(writes, transaction.Write{Object: p.crtc, Op: transaction.OpCRTCSetDestScalerConfig, Value: diff.Config})
	}
	writes = append(writes, p.qosWrites(qos)...)
	writes = append(writes, p.powerWrite(transaction.PowerModeOn))

	if err := p.submit(ctx, "power on", writes...); err != nil {
		return err
	}

	if revert {
		p.applyPanelMode(display.PanelModeVideo)
		p.pomsDone = false
	}
	if resend {
		p.cache.CommitConfirmed(diff)
	}
	p.rememberQos(qos)
	p.idlePCEnabled = true
	p.idlePCState = transaction.IdlePCNone
	p.pomsPending = false
	p.active = true
	p.setPower(display.PowerOn)
	p.handoffAfterTransition()
	return nil
}

// PowerOff drives the panel off. An active secure display session is flushed
// out first.
func (p *Peripheral) PowerOff(ctx context.Context, teardown bool) error {
	p.pendingPow = display.PowerOff

	if !p.firstCycle {
		p.features.MarkForNullCommit(p.crtc, p.featureMap[FeatureDemuraInitCfg])
	}

	writes := p.vmRequestWrites(p.tuiState)
	if p.secureDisplayActive {
		if err := p.flush(ctx, "power off", writes...); err != nil {
			return err
		}
		writes = nil
	}
	writes = append(writes,
		transaction.Write{Object: p.conn, Op: transaction.OpConnectorSetQsyncMode, Value: transaction.QsyncNone},
		p.powerWrite(transaction.PowerModeOff),
	)

	if err := p.submit(ctx, "power off", writes...); err != nil {
		return err
	}

	p.pomsPending = false
	p.active = false
	p.cache.Reset()
	p.setPower(display.PowerOff)
	p.handoffAfterTransition()
	p.log.Debug().Bool("teardown", teardown).Msg("panel off")
	return nil
}

// Doze puts the panel into low-power doze. When the panel supports panel
// operating-mode switches and runs its video timing, it moves to command
// mode: right away when the display is active, otherwise at the next
// successful commit. A queued clock or mode change also postpones the switch
// to after the commit that applies it.
func (p *Peripheral) Doze(ctx context.Context, qos display.QosData) error {
	p.pendingPow = display.PowerDoze

	eligible := !p.firstCycle && p.pomsEligible()
	switchNow := eligible && p.active && !p.clockChangeQueued()
	markPending := eligible && !switchNow

	writes := p.vmRequestWrites(p.tuiState)
	if switchNow {
		writes = append(writes, p.panelModeWrite(display.PanelModeCommand))
	}
	writes = append(writes, p.qosWrites(qos)...)
	writes = append(writes, p.powerWrite(transaction.PowerModeDoze))

	if err := p.submit(ctx, "doze", writes...); err != nil {
		return err
	}

	if switchNow {
		p.applyPanelMode(display.PanelModeCommand)
		p.pomsDone = true
	}
	if markPending {
		p.pomsPending = true
	}
	p.rememberQos(qos)
	p.active = true
	p.setPower(display.PowerDoze)
	p.handoffAfterTransition()
	return nil
}

// DozeSuspend is Doze with the display pipeline suspended. The panel-mode
// switch happens as part of the transition regardless of activity; changes
// queued for the next commit are dropped since they cannot run suspended.
func (p *Peripheral) DozeSuspend(ctx context.Context, qos display.QosData) error {
	p.pendingPow = display.PowerDozeSuspend

	switchNow := p.switchModeValid && !p.pomsDone && p.currentMode == p.videoModeIndex

	writes := p.vmRequestWrites(p.tuiState)
	if switchNow {
		writes = append(writes, p.panelModeWrite(display.PanelModeCommand))
	}
	writes = append(writes, p.qosWrites(qos)...)
	writes = append(writes, p.powerWrite(transaction.PowerModeDozeSuspend))

	if err := p.submit(ctx, "doze suspend", writes...); err != nil {
		return err
	}

	if switchNow {
		if p.clockChangeQueued() {
			p.log.Info().Msg("dropping queued clock and mode changes for doze suspend")
			p.pendingRefresh, p.pendingAttrs, p.bitClkRate = false, false, 0
		}
		p.applyPanelMode(display.PanelModeCommand)
		p.pomsDone = true
		p.pomsPending = false
	}
	p.rememberQos(qos)
	p.active = true
	p.setPower(display.PowerDozeSuspend)
	p.handoffAfterTransition()
	return nil
}

func (p *Peripheral) pomsEligible() bool {
	return p.switchModeValid && !p.pomsDone && !p.pomsPending && p.currentMode == p.videoModeIndex
}

func (p *Peripheral) clockChangeQueued() bool {
	return p.pendingRefresh || p.pendingAttrs || p.bitClkRate != 0
}

func (p *Peripheral) setPower(state display.PowerState) {
	p.log.Debug().
		Str("from", p.power.String()).
		Str("to", state.String()).
		Str("panel_mode", p.panelMode.String()).
		Bool("poms_done", p.pomsDone).
		Bool("poms_pending", p.pomsPending).
		Msg("power state promoted")
	p.power = state
	p.pendingPow = display.PowerNone
}

func (p *Peripheral) powerWrite(mode transaction.PowerMode) transaction.Write {
	return transaction.Write{Object: p.conn, Op: transaction.OpConnectorSetPowerMode, Value: mode}
}

func (p *Peripheral) qosWrites(qos display.QosData) []transaction.Write {
	if !qos.Valid {
		return nil
	}
	return []transaction.Write{{Object: p.crtc, Op: transaction.OpCRTCSetQosData, Value: qos}}
}

func (p *Peripheral) rememberQos(qos display.QosData) {
	if qos.Valid {
		p.qos = qos
	}
}

// panelModeWrite selects the timing that drives the panel in mode. The
// state change itself is applyPanelMode, run once the write has landed.
func (p *Peripheral) panelModeWrite(mode display.PanelMode) transaction.Write {
	index := p.videoModeIndex
	if mode == display.PanelModeCommand {
		index = p.cmdModeIndex
	}
	return p.modeSet(index, mode == display.PanelModeCommand)
}

func (p *Peripheral) applyPanelMode(mode display.PanelMode) {
	index := p.videoModeIndex
	if mode == display.PanelModeCommand {
		index = p.cmdModeIndex
	}
	p.setCurrentMode(index)
	p.panelMode = mode
	p.log.Info().Str("panel_mode", mode.String()).Uint32("mode", index).Msg("panel mode switched")
}
