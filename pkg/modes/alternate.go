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

package modes

import (
	"fmt"

	"github.com/periphctl/periphctl/pkg/display"
)

// Proposal is a configuration with a different panel compression, found by
// FindAlternateConfig and applied separately.
type Proposal struct {
	Topology     string
	ModeIndex    uint32
	SubModeIndex uint32
	Compression  uint32
	// SameMode is true when only the sub-mode of the current mode changes.
	SameMode bool
}

// FindAlternateConfig looks for a configuration whose compression differs
// from the current one while keeping the vertical refresh rate. Sub-modes of
// the current mode are tried first since switching among them is cheapest.
// Otherwise modes are scanned in index order, restricted to the current
// refresh rate and panel drive mode, and the first matching sub-mode wins.
// The connector info is not modified.
func FindAlternateConfig(info *ConnectorInfo, current uint32) (Proposal, error) {
	cur, err := info.Mode(current)
	if err != nil {
		return Proposal{}, err
	}

	var panelFlag PanelFlags
	switch {
	case cur.CurPanelMode&PanelFlagCommand != 0:
		panelFlag = PanelFlagCommand
	case cur.CurPanelMode&PanelFlagVideo != 0:
		panelFlag = PanelFlagVideo
	}

	for i, sub := range cur.SubModes {
		if sub.Compression != cur.CurCompression {
			return Proposal{
				Topology:     sub.Topology,
				ModeIndex:    current,
				SubModeIndex: uint32(i),
				Compression:  sub.Compression,
				SameMode:     true,
			}, nil
		}
	}

	for mi := range info.Modes {
		m := &info.Modes[mi]
		if m.VRefresh != cur.VRefresh || m.CurPanelMode&panelFlag == 0 {
			continue
		}
		for si, sub := range m.SubModes {
			if sub.Compression != cur.CurCompression {
				return Proposal{
					Topology:     sub.Topology,
					ModeIndex:    uint32(mi),
					SubModeIndex: uint32(si),
					Compression:  sub.Compression,
				}, nil
			}
		}
	}

	return Proposal{}, fmt.Errorf("no alternate compression at %dHz: %w", cur.VRefresh, display.ErrNotSupported)
}

// ApplySubMode records the proposal's sub-mode, and with it the topology and
// compression, on its mode.
func (c *ConnectorInfo) ApplySubMode(p Proposal) error {
	m, err := c.Mode(p.ModeIndex)
	if err != nil {
		return err
	}
	if int(p.SubModeIndex) >= len(m.SubModes) {
		return fmt.Errorf("sub-mode %d of %d: %w", p.SubModeIndex, len(m.SubModes), display.ErrParameters)
	}
	if sub := m.SubModes[p.SubModeIndex]; sub.Topology != p.Topology || sub.Compression != p.Compression {
		return fmt.Errorf("proposal does not match sub-mode %d: %w", p.SubModeIndex, display.ErrParameters)
	}
	m.CurSubMode = p.SubModeIndex
	m.CurCompression = p.Compression
	return nil
}
