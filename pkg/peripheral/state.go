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
	"fmt"

	"github.com/periphctl/periphctl/pkg/display"
)

// State is a snapshot of the arbiter for callers and notifications.
type State struct {
	Power               display.PowerState       `json:"power"`
	PendingPower        display.PowerState       `json:"pendingPower"`
	PanelMode           display.PanelMode        `json:"panelMode"`
	TUI                 display.TUIState         `json:"tui"`
	SelfRefresh         display.SelfRefreshState `json:"selfRefresh"`
	Qos                 display.QosData          `json:"qos"`
	ScalerBlocks        int                      `json:"scalerBlocks"`
	BitClockRate        uint64                   `json:"bitClockRate"`
	Mode                uint32                   `json:"mode"`
	Active              bool                     `json:"active"`
	FirstCycle          bool                     `json:"firstCycle"`
	PomsDone            bool                     `json:"pomsDone"`
	PomsPending         bool                     `json:"pomsPending"`
	SecureDisplayActive bool                     `json:"secureDisplayActive"`
	SynchronousCommit   bool                     `json:"synchronousCommit"`
}

// State returns a snapshot of the current arbiter state.
func (p *Peripheral) State() State {
	return State{
		Power:               p.power,
		PendingPower:        p.pendingPow,
		PanelMode:           p.panelMode,
		TUI:                 p.tuiState,
		SelfRefresh:         p.selfRefresh,
		Qos:                 p.qos,
		ScalerBlocks:        p.scalerBlocks,
		BitClockRate:        p.mode().CurBitClkRate,
		Mode:                p.currentMode,
		Active:              p.active,
		FirstCycle:          p.firstCycle,
		PomsDone:            p.pomsDone,
		PomsPending:         p.pomsPending,
		SecureDisplayActive: p.secureDisplayActive,
		SynchronousCommit:   p.synchronousCommit,
	}
}

func (p *Peripheral) ID() uint32                                 { return p.id }
func (p *Peripheral) Name() string                               { return p.name }
func (p *Peripheral) PowerState() display.PowerState             { return p.power }
func (p *Peripheral) PendingPowerState() display.PowerState      { return p.pendingPow }
func (p *Peripheral) PanelMode() display.PanelMode               { return p.panelMode }
func (p *Peripheral) TUIState() display.TUIState                 { return p.tuiState }
func (p *Peripheral) SelfRefreshState() display.SelfRefreshState { return p.selfRefresh }
func (p *Peripheral) ScalerBlocks() int                          { return p.scalerBlocks }
func (p *Peripheral) Active() bool                               { return p.active }
func (p *Peripheral) CurrentMode() uint32                        { return p.currentMode }

// SetPanelBrightness writes the backlight level. It is deferred while a
// power transition is outstanding and ignored while the display is inactive.
func (p *Peripheral) SetPanelBrightness(level int) error {
	if p.pendingPow != display.PowerNone {
		p.log.Info().Str("pending", p.pendingPow.String()).Msg("brightness deferred")
		return fmt.Errorf("panel brightness: power %s pending: %w", p.pendingPow, display.ErrDeferred)
	}
	if _, err := p.backlight.BasePath(); err != nil {
		return fmt.Errorf("panel brightness: %w", err)
	}
	if !p.active {
		p.log.Debug().Int("level", level).Msg("display inactive, brightness not written")
		return nil
	}
	if err := p.backlight.Set(level); err != nil {
		return fmt.Errorf("panel brightness: %w", err)
	}
	return nil
}

// PanelBrightness reads the backlight level.
func (p *Peripheral) PanelBrightness() (int, error) {
	level, err := p.backlight.Get()
	if err != nil {
		return 0, fmt.Errorf("panel brightness: %w", err)
	}
	return level, nil
}

// MaxBrightness is max_brightness as read at initialization.
func (p *Peripheral) MaxBrightness() float64 {
	return p.maxBrightness
}

// BrightnessBasePath returns the backlight directory of the panel.
func (p *Peripheral) BrightnessBasePath() (string, error) {
	return p.backlight.BasePath()
}
