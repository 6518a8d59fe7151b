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
	"slices"

	"github.com/periphctl/periphctl/pkg/display"
	"github.com/periphctl/periphctl/pkg/modes"
)

// clockChangeBlocked returns a Deferred error when a refresh-rate or bit-clock
// change cannot be queued now.
func (p *Peripheral) clockChangeBlocked(op string) error {
	var reason string
	switch {
	case p.pomsDone:
		reason = "panel mode switch applied"
	case p.pomsPending:
		reason = "panel mode switch pending"
	case p.power == display.PowerOff || p.power == display.PowerDozeSuspend:
		reason = "display " + p.power.String()
	case p.bitClkRate != 0:
		reason = "bit clock change queued"
	default:
		return nil
	}
	p.log.Info().Str("op", op).Str("reason", reason).Msg("request deferred")
	return fmt.Errorf("%s: %s: %w", op, reason, display.ErrDeferred)
}

// SetRefreshRate queues a switch to the mode of the same resolution and panel
// mode that runs at vrefresh. It is applied by the next successful commit.
func (p *Peripheral) SetRefreshRate(vrefresh uint32) error {
	if err := p.clockChangeBlocked("refresh rate"); err != nil {
		return err
	}
	if p.pendingAttrs {
		return fmt.Errorf("refresh rate: display attributes queued: %w", display.ErrDeferred)
	}

	index, ok := modes.FindRefreshMode(p.connector, p.currentMode, vrefresh)
	if !ok {
		p.log.Error().Uint32("vrefresh", vrefresh).Msg("no mode for refresh rate")
		return fmt.Errorf("refresh rate %dHz: %w", vrefresh, display.ErrNotSupported)
	}
	if index == p.currentMode {
		p.pendingRefresh = false
		return nil
	}
	p.refreshMode = index
	p.pendingRefresh = true
	p.log.Debug().Uint32("vrefresh", vrefresh).Uint32("mode", index).Msg("refresh rate queued")
	return nil
}

// SetDynamicDSIClock queues a bit-clock change. The rate is resolved to the
// nearest one offered by the current sub-mode; resolving to the active rate
// is a successful no-op.
func (p *Peripheral) SetDynamicDSIClock(rate uint64) error {
	if err := p.clockChangeBlocked("bit clock"); err != nil {
		return err
	}
	if p.pendingRefresh || p.pendingAttrs {
		return fmt.Errorf("bit clock: mode change queued: %w", display.ErrDeferred)
	}

	m := p.mode()
	supported := modes.SupportedBitClock(m, rate)
	if supported == m.CurBitClkRate {
		return nil
	}
	p.bitClkRate = supported
	p.log.Debug().Uint64("requested", rate).Uint64("bitclk", supported).Msg("bit clock queued")
	return nil
}

// DynamicDSIClock returns the bit-clock rate of the active mode.
func (p *Peripheral) DynamicDSIClock() uint64 {
	return p.mode().CurBitClkRate
}

// BitClockRates returns the candidate bit-clock rates for the current
// resolution. It is empty unless the panel supports dynamic bit clock.
func (p *Peripheral) BitClockRates() []uint64 {
	return slices.Clone(p.bitClkRates)
}

// SetDisplayAttributes queues a switch to another connector mode.
func (p *Peripheral) SetDisplayAttributes(index uint32) error {
	var reason string
	switch {
	case p.pomsDone:
		reason = "panel mode switch applied"
	case p.pomsPending:
		reason = "panel mode switch pending"
	case p.bitClkRate != 0:
		reason = "bit clock change queued"
	case p.pendingRefresh:
		reason = "refresh rate change queued"
	}
	if reason != "" {
		p.log.Info().Str("op", "display attributes").Str("reason", reason).Msg("request deferred")
		return fmt.Errorf("display attributes: %s: %w", reason, display.ErrDeferred)
	}

	if _, err := p.connector.Mode(index); err != nil {
		p.log.Error().Err(err).Msg("invalid display attributes")
		return fmt.Errorf("display attributes: %w", err)
	}
	if index == p.currentMode {
		p.pendingAttrs = false
		return nil
	}
	p.attrsMode = index
	p.pendingAttrs = true
	return nil
}

// SetAlternateDisplayConfig switches to a configuration with a different
// panel compression at the same refresh rate and returns the chosen mode
// index. The search itself has no side effects; the proposal is applied
// only once it is admitted.
func (p *Peripheral) SetAlternateDisplayConfig() (uint32, error) {
	prop, err := modes.FindAlternateConfig(p.connector, p.currentMode)
	if err != nil {
		return 0, fmt.Errorf("alternate display config: %w", err)
	}

	if !prop.SameMode {
		if err := p.SetDisplayAttributes(prop.ModeIndex); err != nil {
			return 0, err
		}
	}
	if err := p.connector.ApplySubMode(prop); err != nil {
		return 0, fmt.Errorf("alternate display config: %w", err)
	}
	if prop.SameMode {
		p.stage(p.modeSetWrite(prop.ModeIndex))
	}

	p.log.Info().
		Uint32("mode", prop.ModeIndex).
		Uint32("sub_mode", prop.SubModeIndex).
		Str("topology", prop.Topology).
		Uint32("compression", prop.Compression).
		Msg("alternate display config selected")
	return prop.ModeIndex, nil
}

// QsyncFPS returns the minimum qsync frame rate of the current mode.
func (p *Peripheral) QsyncFPS() (uint32, error) {
	fps := p.mode().QsyncMinFPS
	if fps == 0 {
		return 0, fmt.Errorf("qsync fps: %w", display.ErrNotSupported)
	}
	return fps, nil
}
