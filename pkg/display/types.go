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

// Package display holds the shared vocabulary of the display control plane:
// power and panel states, secure session events, per-frame inputs and the
// DisplayError taxonomy.
package display

import "fmt"

// PowerState is the drive state of a peripheral. PowerNone is only used as
// the pending state when no transition is outstanding.
type PowerState int

const (
	PowerNone PowerState = iota
	PowerOff
	PowerOn
	PowerDoze
	PowerDozeSuspend
)

func (s PowerState) String() string {
	switch s {
	case PowerNone:
		return "none"
	case PowerOff:
		return "off"
	case PowerOn:
		return "on"
	case PowerDoze:
		return "doze"
	case PowerDozeSuspend:
		return "doze_suspend"
	default:
		return fmt.Sprintf("power(%d)", int(s))
	}
}

// ParsePowerState converts the names produced by String back into a state.
func ParsePowerState(s string) (PowerState, error) {
	switch s {
	case "off":
		return PowerOff, nil
	case "on":
		return PowerOn, nil
	case "doze":
		return PowerDoze, nil
	case "doze_suspend":
		return PowerDozeSuspend, nil
	default:
		return PowerNone, fmt.Errorf("unknown power state %q: %w", s, ErrParameters)
	}
}

// PanelMode is how the panel is driven.
type PanelMode int

const (
	PanelModeVideo PanelMode = iota
	PanelModeCommand
)

func (m PanelMode) String() string {
	if m == PanelModeCommand {
		return "command"
	}
	return "video"
}

// SecureEvent is a trusted-UI or secure-display transition request.
type SecureEvent int

const (
	TUITransitionPrepare SecureEvent = iota
	TUITransitionUnprepare
	TUITransitionStart
	TUITransitionEnd
	SecureDisplayStart
	SecureDisplayEnd
)

func (e SecureEvent) String() string {
	switch e {
	case TUITransitionPrepare:
		return "tui_prepare"
	case TUITransitionUnprepare:
		return "tui_unprepare"
	case TUITransitionStart:
		return "tui_start"
	case TUITransitionEnd:
		return "tui_end"
	case SecureDisplayStart:
		return "secure_display_start"
	case SecureDisplayEnd:
		return "secure_display_end"
	default:
		return fmt.Sprintf("secure_event(%d)", int(e))
	}
}

// ParseSecureEvent converts the names produced by String back into an event.
func ParseSecureEvent(s string) (SecureEvent, error) {
	for e := TUITransitionPrepare; e <= SecureDisplayEnd; e++ {
		if e.String() == s {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown secure event %q: %w", s, ErrParameters)
}

// TUIState tracks the trusted-UI session handoff.
type TUIState int

const (
	TUIStateNone TUIState = iota
	TUIStateInProgress
	TUIStateStart
	TUIStateEnd
)

func (s TUIState) String() string {
	switch s {
	case TUIStateNone:
		return "none"
	case TUIStateInProgress:
		return "in_progress"
	case TUIStateStart:
		return "start"
	case TUIStateEnd:
		return "end"
	default:
		return fmt.Sprintf("tui(%d)", int(s))
	}
}

// SelfRefreshState is the display cache allocation policy. It steps down
// once per successful commit:
//
//	ReadAlloc -> DisableReadAlloc -> None
//	WriteAlloc -> None
type SelfRefreshState int

const (
	SelfRefreshNone SelfRefreshState = iota
	SelfRefreshReadAlloc
	SelfRefreshWriteAlloc
	SelfRefreshDisableReadAlloc
)

func (s SelfRefreshState) String() string {
	switch s {
	case SelfRefreshNone:
		return "none"
	case SelfRefreshReadAlloc:
		return "read_alloc"
	case SelfRefreshWriteAlloc:
		return "write_alloc"
	case SelfRefreshDisableReadAlloc:
		return "disable_read_alloc"
	default:
		return fmt.Sprintf("self_refresh(%d)", int(s))
	}
}

// Next returns the state after one successful commit.
func (s SelfRefreshState) Next() SelfRefreshState {
	switch s {
	case SelfRefreshReadAlloc:
		return SelfRefreshDisableReadAlloc
	case SelfRefreshDisableReadAlloc, SelfRefreshWriteAlloc:
		return SelfRefreshNone
	default:
		return SelfRefreshNone
	}
}

// SplitType is the layer-mixer split topology of a display.
type SplitType int

const (
	SplitSingle SplitType = iota
	SplitDual
	SplitQuad
)

// ParseSplitType accepts "single", "dual" and "quad".
func ParseSplitType(s string) (SplitType, error) {
	switch s {
	case "", "single":
		return SplitSingle, nil
	case "dual":
		return SplitDual, nil
	case "quad":
		return SplitQuad, nil
	default:
		return SplitSingle, fmt.Errorf("unknown split type %q: %w", s, ErrParameters)
	}
}

func (s SplitType) String() string {
	switch s {
	case SplitDual:
		return "dual"
	case SplitQuad:
		return "quad"
	default:
		return "single"
	}
}

// FrameTriggerMode selects how the driver waits for frame completion.
type FrameTriggerMode int

const (
	FrameTriggerDefault FrameTriggerMode = iota
	FrameTriggerSerialize
	FrameTriggerPostedStart
)

// QosData is the bandwidth and clock vote that accompanies power and secure
// session transitions.
type QosData struct {
	CoreABBps    uint64
	CoreIBBps    uint64
	LLCCABBps    uint64
	LLCCIBBps    uint64
	DRAMABBps    uint64
	DRAMIBBps    uint64
	RotPrefillBw uint64
	ClockHz      uint32
	Valid        bool
}
