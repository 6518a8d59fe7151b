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

// Package modes describes the connector mode tables supplied by the device
// lifecycle base and the lookups the control plane runs over them.
package modes

import (
	"fmt"
	"slices"

	"github.com/periphctl/periphctl/pkg/display"
)

// PanelFlags is a bitmask of panel drive modes a timing supports.
type PanelFlags uint32

const (
	PanelFlagVideo PanelFlags = 1 << iota
	PanelFlagCommand
)

// SubMode is one variant of a timing, differing by compression, topology
// and the bit-clock rates it can run at.
type SubMode struct {
	Topology    string
	BitClkRates []uint64
	Compression uint32
}

// Mode is one connector timing.
type Mode struct {
	SubModes       []SubMode
	HDisplay       uint32
	VDisplay       uint32
	VRefresh       uint32
	PanelModes     PanelFlags
	CurPanelMode   PanelFlags
	CurSubMode     uint32
	CurCompression uint32
	CurBitClkRate  uint64
	QsyncMinFPS    uint32
}

// Topology is the pipeline topology of the active sub-mode.
func (m *Mode) Topology() string {
	if int(m.CurSubMode) >= len(m.SubModes) {
		return ""
	}
	return m.SubModes[m.CurSubMode].Topology
}

// SameResolution reports whether two modes share active dimensions.
func (m *Mode) SameResolution(o *Mode) bool {
	return m.HDisplay == o.HDisplay && m.VDisplay == o.VDisplay
}

// ConnectorInfo is the enumeration of a connector.
type ConnectorInfo struct {
	BacklightType string
	Modes         []Mode
	TypeID        uint32
}

// Mode returns the mode at index or an ErrParameters error.
func (c *ConnectorInfo) Mode(index uint32) (*Mode, error) {
	if int(index) >= len(c.Modes) {
		return nil, fmt.Errorf("mode index %d of %d: %w", index, len(c.Modes), display.ErrParameters)
	}
	return &c.Modes[index], nil
}

// BitClockCandidates collects, in first-seen order without duplicates, every
// bit-clock rate offered by any sub-mode of any mode with the same resolution
// as the mode at current.
func BitClockCandidates(info *ConnectorInfo, current uint32) []uint64 {
	cur, err := info.Mode(current)
	if err != nil {
		return nil
	}

	var rates []uint64
	for i := range info.Modes {
		m := &info.Modes[i]
		if !m.SameResolution(cur) {
			continue
		}
		for _, sub := range m.SubModes {
			for _, rate := range sub.BitClkRates {
				if !slices.Contains(rates, rate) {
					rates = append(rates, rate)
				}
			}
		}
	}
	return rates
}

// SupportedBitClock resolves a requested rate to the nearest rate offered by
// the mode's current sub-mode. Ties go to the lower rate. When the sub-mode
// offers no list the mode's current rate is returned.
func SupportedBitClock(m *Mode, requested uint64) uint64 {
	if int(m.CurSubMode) >= len(m.SubModes) {
		return m.CurBitClkRate
	}
	rates := m.SubModes[m.CurSubMode].BitClkRates
	if len(rates) == 0 {
		return m.CurBitClkRate
	}

	best := rates[0]
	bestDelta := absDiff(best, requested)
	for _, rate := range rates[1:] {
		delta := absDiff(rate, requested)
		if delta < bestDelta || (delta == bestDelta && rate < best) {
			best, bestDelta = rate, delta
		}
	}
	return best
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// FindRefreshMode returns the index of a mode with the same resolution and
// panel mode as current that runs at vrefresh.
func FindRefreshMode(info *ConnectorInfo, current, vrefresh uint32) (uint32, bool) {
	cur, err := info.Mode(current)
	if err != nil {
		return 0, false
	}
	if cur.VRefresh == vrefresh {
		return current, true
	}
	for i := range info.Modes {
		m := &info.Modes[i]
		if m.SameResolution(cur) && m.VRefresh == vrefresh && m.PanelModes&cur.CurPanelMode != 0 {
			return uint32(i), true
		}
	}
	return 0, false
}

// PanelModeOf reports the drive mode a mode currently runs in.
func PanelModeOf(m *Mode) display.PanelMode {
	if m.CurPanelMode&PanelFlagCommand != 0 {
		return display.PanelModeCommand
	}
	return display.PanelModeVideo
}
