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

package config

import (
	"fmt"

	"github.com/periphctl/periphctl/pkg/display"
	"github.com/periphctl/periphctl/pkg/modes"
	"github.com/periphctl/periphctl/pkg/peripheral"
)

const DefaultBrightnessRoot = "/sys/class/backlight"

func panelFlag(name string) modes.PanelFlags {
	if name == "command" {
		return modes.PanelFlagCommand
	}
	return modes.PanelFlagVideo
}

// ModeInfo converts a configured timing into its connector mode entry.
func (m *Mode) ModeInfo() modes.Mode {
	out := modes.Mode{
		HDisplay:      m.HDisplay,
		VDisplay:      m.VDisplay,
		VRefresh:      m.VRefresh,
		QsyncMinFPS:   m.QsyncMinFPS,
		CurSubMode:    m.SubMode,
		CurBitClkRate: m.BitClkRate,
	}
	for _, pm := range m.PanelModes {
		out.PanelModes |= panelFlag(pm)
	}
	current := m.PanelMode
	if current == "" && len(m.PanelModes) > 0 {
		current = m.PanelModes[0]
	}
	out.CurPanelMode = panelFlag(current)

	for _, sub := range m.SubModes {
		out.SubModes = append(out.SubModes, modes.SubMode{
			Topology:    sub.Topology,
			BitClkRates: append([]uint64(nil), sub.BitClks...),
			Compression: sub.Compression,
		})
	}
	if int(m.SubMode) < len(out.SubModes) {
		out.CurCompression = out.SubModes[m.SubMode].Compression
	}
	return out
}

// PeripheralConfig builds the peripheral configuration for a display.
func (d *Display) PeripheralConfig() (peripheral.Config, error) {
	split, err := display.ParseSplitType(d.Split)
	if err != nil {
		return peripheral.Config{}, fmt.Errorf("display %d: %w", d.ID, err)
	}

	root := d.BrightnessRoot
	if root == "" {
		root = DefaultBrightnessRoot
	}

	connector := modes.ConnectorInfo{
		BacklightType: d.BacklightType,
		TypeID:        d.ConnectorTypeID,
		Modes:         make([]modes.Mode, 0, len(d.Modes)),
	}
	for i := range d.Modes {
		connector.Modes = append(connector.Modes, d.Modes[i].ModeInfo())
	}

	name := d.Name
	if name == "" {
		name = fmt.Sprintf("display-%d", d.ID)
	}

	return peripheral.Config{
		Connector:       connector,
		Name:            name,
		BrightnessRoot:  root,
		ID:              d.ID,
		CRTCID:          d.CRTCID,
		ConnectorID:     d.ConnectorID,
		CurrentMode:     d.CurrentMode,
		VideoModeIndex:  d.VideoModeIndex,
		CmdModeIndex:    d.CmdModeIndex,
		Split:           split,
		SwitchModeValid: d.SwitchModeValid,
		DynBitClk:       d.DynBitClk,
		PartialUpdate:   d.PartialUpdate,
	}, nil
}
