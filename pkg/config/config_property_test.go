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
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func modeGen() *rapid.Generator[Mode] {
	return rapid.Custom(func(t *rapid.T) Mode {
		return Mode{
			HDisplay:   rapid.Uint32Range(1, 4096).Draw(t, "hdisplay"),
			VDisplay:   rapid.Uint32Range(1, 4096).Draw(t, "vdisplay"),
			VRefresh:   rapid.SampledFrom([]uint32{30, 60, 90, 120}).Draw(t, "vrefresh"),
			PanelModes: []string{rapid.SampledFrom([]string{"video", "command"}).Draw(t, "panel_mode")},
		}
	})
}

// TestPropertyModeIndexValidation checks that a display validates exactly
// when every mode index it names exists in its table.
func TestPropertyModeIndexValidation(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		table := rapid.SliceOfN(modeGen(), 1, 6).Draw(t, "modes")
		n := uint32(len(table))
		d := Display{
			CRTCID:          1,
			ConnectorID:     2,
			Modes:           table,
			CurrentMode:     rapid.Uint32Range(0, n+2).Draw(t, "current"),
			VideoModeIndex:  rapid.Uint32Range(0, n+2).Draw(t, "video"),
			CmdModeIndex:    rapid.Uint32Range(0, n+2).Draw(t, "cmd"),
			SwitchModeValid: rapid.Bool().Draw(t, "switch"),
		}

		valid := d.CurrentMode < n
		if d.SwitchModeValid {
			valid = valid && d.VideoModeIndex < n && d.CmdModeIndex < n
		}

		err := Validate(&Values{ConfigSchema: SchemaVersion, Displays: []Display{d}})
		if valid {
			require.NoError(t, err)
			cfg, err := d.PeripheralConfig()
			require.NoError(t, err)
			require.Len(t, cfg.Connector.Modes, len(table))
		} else {
			require.Error(t, err)
		}
	})
}
