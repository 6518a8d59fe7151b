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
	"slices"

	"github.com/periphctl/periphctl/pkg/display"
	"github.com/periphctl/periphctl/pkg/transaction"
)

// HandleSecureEvent runs a trusted UI or secure display transition. Outside
// of command mode the display is flushed so the handoff is visible to the
// hardware before the call returns; in command mode the next commit carries
// the handoff writes instead.
func (p *Peripheral) HandleSecureEvent(ctx context.Context, ev display.SecureEvent, qos display.QosData) error {
	p.log.Info().Str("event", ev.String()).Str("panel_mode", p.panelMode.String()).Msg("secure event")

	switch ev {
	case display.TUITransitionPrepare, display.TUITransitionUnprepare:
		p.tuiState = display.TUIStateInProgress
		return nil
	case display.TUITransitionStart:
		return p.tuiStart(ctx, qos)
	case display.TUITransitionEnd:
		return p.tuiEnd(ctx, qos)
	case display.SecureDisplayStart:
		return p.secureDisplayStart(ctx)
	case display.SecureDisplayEnd:
		return p.secureDisplayEnd(ctx)
	default:
		return fmt.Errorf("secure event %s: %w", ev, display.ErrNotSupported)
	}
}

func (p *Peripheral) tuiStart(ctx context.Context, qos display.QosData) error {
	if p.panelMode == display.PanelModeCommand {
		p.ControlIdlePowerCollapse(false)
		p.tuiState = display.TUIStateStart
		return nil
	}

	extra := slices.Concat(p.qosWrites(qos), p.vmRequestWrites(display.TUIStateStart))
	if w, ok := p.idlePCTransition(false); ok {
		extra = append(extra, w)
	}
	if err := p.flush(ctx, "tui start", extra...); err != nil {
		return err
	}
	p.idlePCEnabled = false
	p.idlePCState = transaction.IdlePCNone
	p.rememberQos(qos)
	p.tuiState = display.TUIStateStart
	p.handoffAfterTransition()
	return nil
}

func (p *Peripheral) tuiEnd(ctx context.Context, qos display.QosData) error {
	reset := []transaction.Write{
		{Object: p.crtc, Op: transaction.OpPlanesResetCache},
		{Object: p.crtc, Op: transaction.OpCRTCResetCache},
	}

	if p.panelMode == display.PanelModeCommand && p.pendingPow != display.PowerOff {
		p.stage(reset...)
		p.ControlIdlePowerCollapse(true)
		p.tuiState = display.TUIStateEnd
		return nil
	}

	extra := slices.Concat(reset, p.qosWrites(qos), p.vmRequestWrites(display.TUIStateEnd))
	if w, ok := p.idlePCTransition(true); ok {
		extra = append(extra, w)
	}
	if err := p.flush(ctx, "tui end", extra...); err != nil {
		return err
	}
	p.idlePCEnabled = true
	p.idlePCState = transaction.IdlePCNone
	p.rememberQos(qos)
	p.tuiState = display.TUIStateEnd
	p.handoffAfterTransition()
	return nil
}

func (p *Peripheral) secureDisplayStart(ctx context.Context) error {
	if p.panelMode != display.PanelModeCommand {
		if err := p.flush(ctx, "secure display start"); err != nil {
			return err
		}
	}
	p.secureDisplayActive = true
	return nil
}

func (p *Peripheral) secureDisplayEnd(ctx context.Context) error {
	if p.panelMode != display.PanelModeCommand {
		if err := p.flush(ctx, "secure display end"); err != nil {
			return err
		}
	}
	p.secureDisplayActive = false
	p.synchronousCommit = true
	return nil
}

// handoffAfterTransition signals the VM handoff once the writes requesting
// it have landed. A finished session returns to TUIStateNone.
func (p *Peripheral) handoffAfterTransition() {
	switch p.tuiState {
	case display.TUIStateStart:
		if !p.tuiHandedOff {
			p.tuiHandedOff = true
			p.signalHandoff(display.TUIStateStart)
		}
	case display.TUIStateEnd:
		p.tuiHandedOff = false
		p.signalHandoff(display.TUIStateEnd)
		p.tuiState = display.TUIStateNone
	}
}

func (p *Peripheral) signalHandoff(state display.TUIState) {
	p.log.Info().Str("tui", state.String()).Msg("secure vm handoff")
	if p.onHandoff != nil {
		p.onHandoff(p.id, state)
	}
}

// vmRequestWrites describes the VM resource request for a session state.
// Histogram collection is paused while the secure VM owns the display.
func (p *Peripheral) vmRequestWrites(state display.TUIState) []transaction.Write {
	var ws []transaction.Write
	switch state {
	case display.TUIStateStart:
		ws = append(ws, p.histWrites(false)...)
		ws = append(ws, transaction.Write{Object: p.crtc, Op: transaction.OpCRTCSetVMReqState, Value: transaction.VMRequestRelease})
	case display.TUIStateEnd:
		ws = append(ws, transaction.Write{Object: p.crtc, Op: transaction.OpCRTCSetVMReqState, Value: transaction.VMRequestAcquire})
		ws = append(ws, p.histWrites(true)...)
	case display.TUIStateNone:
		ws = append(ws, transaction.Write{Object: p.crtc, Op: transaction.OpCRTCSetVMReqState, Value: transaction.VMRequestNone})
	}
	return ws
}

func (p *Peripheral) histWrites(enable bool) []transaction.Write {
	var ws []transaction.Write
	add := func(set bool, feature uint32, value uint64) {
		if !set {
			return
		}
		if !enable {
			value = 0
		}
		ws = append(ws, transaction.Write{
			Object: p.crtc,
			Op:     transaction.OpDppsCacheFeature,
			Value:  transaction.DppsFeature{FeatureID: feature, Value: value},
		})
	}
	add(p.ltmHistSet, FeatureLtmHistCtrl, p.ltmHistCtrl)
	add(p.abaHistSet, FeatureAbaHistCtrl, p.abaHistCtrl)
	return ws
}

// ControlIdlePowerCollapse records a one-shot idle power collapse write for
// the next transaction when the setting changes.
func (p *Peripheral) ControlIdlePowerCollapse(enable bool) {
	if enable == p.idlePCEnabled {
		return
	}
	if enable {
		p.idlePCState = transaction.IdlePCEnable
	} else {
		p.idlePCState = transaction.IdlePCDisable
	}
	p.idlePCEnabled = enable
}

// idlePCTransition returns the write that leaves idle power collapse in the
// wanted setting, if one is needed.
func (p *Peripheral) idlePCTransition(enable bool) (transaction.Write, bool) {
	switch {
	case enable != p.idlePCEnabled && enable:
		return p.idlePCWrite(transaction.IdlePCEnable), true
	case enable != p.idlePCEnabled:
		return p.idlePCWrite(transaction.IdlePCDisable), true
	case p.idlePCState != transaction.IdlePCNone:
		return p.idlePCWrite(p.idlePCState), true
	default:
		return transaction.Write{}, false
	}
}

func (p *Peripheral) idlePCWrite(state transaction.IdlePCState) transaction.Write {
	return transaction.Write{Object: p.crtc, Op: transaction.OpCRTCSetIdlePCState, Value: state}
}

// EnableSelfRefresh arms a display cache allocation policy. SelfRefreshNone
// is ignored; the state steps down by itself on each commit.
func (p *Peripheral) EnableSelfRefresh(state display.SelfRefreshState) {
	if state != display.SelfRefreshNone {
		p.selfRefresh = state
	}
}
