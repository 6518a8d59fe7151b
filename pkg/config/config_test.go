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

	"github.com/periphctl/periphctl/pkg/display"
	"github.com/periphctl/periphctl/pkg/modes"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
config_schema = 1
debug_logging = true

[scaler]
pool_capacity = 4

[telemetry]
enabled = false

[api]
listen = "0.0.0.0:7499"
allowed_ips = ["127.0.0.1", "192.168.0.0/16"]
rate_limit = 2.5

[journal]
enabled = true
retention_days = 7

[[displays]]
id = 0
name = "dsi-0"
split = "dual"
crtc_id = 131
connector_id = 32
connector_type_id = 1
switch_mode_valid = true
video_mode_index = 0
cmd_mode_index = 1
dyn_bitclk = true

[[displays.modes]]
hdisplay = 1080
vdisplay = 2400
vrefresh = 60
panel_modes = ["video", "command"]
qsync_min_fps = 48
bit_clk_rate = 1100

[[displays.modes.sub_modes]]
compression = 1
topology = "dsc_1lm"
bit_clks = [1100, 1150]

[[displays.modes]]
hdisplay = 1080
vdisplay = 2400
vrefresh = 60
panel_modes = ["command"]
bit_clk_rate = 900

[[displays]]
id = 1
crtc_id = 132
connector_id = 33

[[displays.modes]]
hdisplay = 1920
vdisplay = 1080
vrefresh = 60
panel_modes = ["video"]
`

func writeConfig(t *testing.T, fs afero.Fs, data string) string {
	t.Helper()
	path := "/etc/periphctl/" + CfgFile
	require.NoError(t, fs.MkdirAll("/etc/periphctl", 0o750))
	require.NoError(t, afero.WriteFile(fs, path, []byte(data), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	vals, err := Load(fs, writeConfig(t, fs, sampleConfig))
	require.NoError(t, err)

	assert.True(t, vals.DebugLogging)
	assert.Equal(t, 4, vals.Scaler.PoolCapacity)
	assert.Equal(t, "0.0.0.0:7499", vals.API.Listen)
	assert.Equal(t, []string{"127.0.0.1", "192.168.0.0/16"}, vals.API.AllowedIPs)
	assert.InDelta(t, 2.5, vals.API.RateLimit, 0.0001)
	assert.Equal(t, Journal{Enabled: true, RetentionDays: 7}, vals.Journal)
	require.Len(t, vals.Displays, 2)

	d := vals.Displays[0]
	assert.Equal(t, "dual", d.Split)
	assert.Equal(t, uint32(131), d.CRTCID)
	require.Len(t, d.Modes, 2)
	assert.Equal(t, []string{"video", "command"}, d.Modes[0].PanelModes)
	require.Len(t, d.Modes[0].SubModes, 1)
	assert.Equal(t, []uint64{1100, 1150}, d.Modes[0].SubModes[0].BitClks)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(afero.NewMemMapFs(), "/nope/periphctl.toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to stat config file")
}

func TestParse_SchemaMismatch(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("config_schema = 2\n"))
	require.ErrorIs(t, err, ErrSchemaMismatch)

	_, err = Parse([]byte("debug_logging = true\n"))
	require.NoError(t, err, "schema defaults to the current version")
}

func TestParse_InvalidTOML(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("config_schema = \n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal config")
}

func TestParse_ValidationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		message string
	}{
		{
			name: "unknown split",
			data: `
[[displays]]
id = 0
split = "triple"
crtc_id = 1
connector_id = 2
[[displays.modes]]
hdisplay = 1
vdisplay = 1
vrefresh = 60
panel_modes = ["video"]
`,
			message: "Split must be one of: single dual quad",
		},
		{
			name: "no modes",
			data: `
[[displays]]
id = 0
crtc_id = 1
connector_id = 2
`,
			message: "Modes is required",
		},
		{
			name: "current mode out of range",
			data: `
[[displays]]
id = 0
crtc_id = 1
connector_id = 2
current_mode = 3
[[displays.modes]]
hdisplay = 1
vdisplay = 1
vrefresh = 60
panel_modes = ["video"]
`,
			message: "CurrentMode 3 is out of range",
		},
		{
			name: "command mode out of range",
			data: `
[[displays]]
id = 0
crtc_id = 1
connector_id = 2
switch_mode_valid = true
cmd_mode_index = 1
[[displays.modes]]
hdisplay = 1
vdisplay = 1
vrefresh = 60
panel_modes = ["video"]
`,
			message: "CmdModeIndex 1 is out of range",
		},
		{
			name: "unknown panel mode",
			data: `
[[displays]]
id = 0
crtc_id = 1
connector_id = 2
[[displays.modes]]
hdisplay = 1
vdisplay = 1
vrefresh = 60
panel_modes = ["burst"]
`,
			message: "must be one of: video command",
		},
		{
			name: "current panel mode not offered",
			data: `
[[displays]]
id = 0
crtc_id = 1
connector_id = 2
[[displays.modes]]
hdisplay = 1
vdisplay = 1
vrefresh = 60
panel_mode = "command"
panel_modes = ["video"]
`,
			message: "is not one of the mode's panel modes",
		},
		{
			name: "duplicate ids",
			data: `
[[displays]]
id = 5
crtc_id = 1
connector_id = 2
[[displays.modes]]
hdisplay = 1
vdisplay = 1
vrefresh = 60
panel_modes = ["video"]
[[displays]]
id = 5
crtc_id = 3
connector_id = 4
[[displays.modes]]
hdisplay = 1
vdisplay = 1
vrefresh = 60
panel_modes = ["video"]
`,
			message: "is used by more than one display",
		},
		{
			name: "bad listen address",
			data: `
[api]
listen = "localhost"
`,
			message: "Listen",
		},
		{
			name: "bad allowed ip",
			data: `
[api]
allowed_ips = ["10.0.0.1", "lan"]
`,
			message: "AllowedIPs[1]",
		},
		{
			name: "missing crtc",
			data: `
[[displays]]
id = 0
connector_id = 2
[[displays.modes]]
hdisplay = 1
vdisplay = 1
vrefresh = 60
panel_modes = ["video"]
`,
			message: "CRTCID is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte("config_schema = 1\n" + tt.data))
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestSave_ThenLoad(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	vals, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	path := "/home/user/.config/periphctl/" + CfgFile
	require.NoError(t, Save(fs, path, vals))

	loaded, err := Load(fs, path)
	require.NoError(t, err)
	assert.Equal(t, vals, loaded)
}

func TestPath_Env(t *testing.T) {
	t.Setenv(CfgEnv, "/tmp/custom.toml")
	assert.Equal(t, "/tmp/custom.toml", Path("/etc/periphctl"))
}

func TestPath_Default(t *testing.T) {
	t.Setenv(CfgEnv, "")
	assert.Equal(t, "/etc/periphctl/"+CfgFile, Path("/etc/periphctl"))
}

func TestDisplay_PeripheralConfig(t *testing.T) {
	t.Parallel()

	vals, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	cfg, err := vals.Displays[0].PeripheralConfig()
	require.NoError(t, err)
	assert.Equal(t, "dsi-0", cfg.Name)
	assert.Equal(t, display.SplitDual, cfg.Split)
	assert.Equal(t, DefaultBrightnessRoot, cfg.BrightnessRoot)
	assert.True(t, cfg.SwitchModeValid)
	assert.Equal(t, uint32(1), cfg.CmdModeIndex)

	require.Len(t, cfg.Connector.Modes, 2)
	m := cfg.Connector.Modes[0]
	assert.Equal(t, modes.PanelFlagVideo|modes.PanelFlagCommand, m.PanelModes)
	assert.Equal(t, modes.PanelFlagVideo, m.CurPanelMode)
	assert.Equal(t, uint32(1), m.CurCompression)
	assert.Equal(t, uint64(1100), m.CurBitClkRate)
	assert.Equal(t, modes.PanelFlagCommand, cfg.Connector.Modes[1].CurPanelMode)

	other, err := vals.Displays[1].PeripheralConfig()
	require.NoError(t, err)
	assert.Equal(t, "display-1", other.Name)
	assert.Equal(t, display.SplitSingle, other.Split)
}

func TestDisplay_PeripheralConfigBadSplit(t *testing.T) {
	t.Parallel()

	d := Display{Split: "triple"}
	_, err := d.PeripheralConfig()
	require.ErrorIs(t, err, display.ErrParameters)
}

func TestExample_IsValid(t *testing.T) {
	t.Parallel()

	vals := Example()
	require.NoError(t, Validate(vals))

	fs := afero.NewMemMapFs()
	require.NoError(t, Save(fs, "/etc/periphctl/"+CfgFile, vals))
	loaded, err := Load(fs, "/etc/periphctl/"+CfgFile)
	require.NoError(t, err)
	assert.Equal(t, vals, loaded)
}
