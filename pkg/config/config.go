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

// Package config loads the periphctl TOML configuration: the scaler pool
// size, telemetry settings and the connector tables of every display.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	AppName       = "periphctl"
	SchemaVersion = 1
	CfgEnv        = "PERIPHCTL_CFG"
	CfgFile       = "periphctl.toml"
	LogFile       = "periphctl.log"
)

var ErrSchemaMismatch = errors.New("schema version mismatch")

type Values struct {
	Telemetry    Telemetry `toml:"telemetry"`
	API          API       `toml:"api"`
	Journal      Journal   `toml:"journal"`
	Displays     []Display `toml:"displays" validate:"dive"`
	Scaler       Scaler    `toml:"scaler"`
	ConfigSchema int       `toml:"config_schema"`
	DebugLogging bool      `toml:"debug_logging"`
}

// Journal configures the SQLite notification history kept by serve.
type Journal struct {
	// Path defaults to journal.db in the data directory.
	Path          string `toml:"path,omitempty"`
	RetentionDays int    `toml:"retention_days,omitempty" validate:"min=0"`
	Enabled       bool   `toml:"enabled"`
}

// API configures the status server started by the serve command.
type API struct {
	Listen     string   `toml:"listen,omitempty" validate:"omitempty,hostname_port"`
	AllowedIPs []string `toml:"allowed_ips,omitempty" validate:"omitempty,dive,cidr|ip"`
	// RateLimit is requests per second per client; zero uses the default.
	RateLimit float64 `toml:"rate_limit,omitempty" validate:"min=0"`
	RateBurst int     `toml:"rate_burst,omitempty" validate:"min=0"`
}

type Scaler struct {
	// PoolCapacity is the number of destination scaler blocks the hardware
	// reports. Zero disables destination scaling for every display.
	PoolCapacity int `toml:"pool_capacity" validate:"min=0"`
}

type Telemetry struct {
	DSN     string `toml:"dsn,omitempty" validate:"omitempty,url"`
	Enabled bool   `toml:"enabled"`
}

type Display struct {
	Name            string `toml:"name,omitempty"`
	Split           string `toml:"split,omitempty" validate:"omitempty,oneof=single dual quad"`
	BacklightType   string `toml:"backlight_type,omitempty"`
	BrightnessRoot  string `toml:"brightness_root,omitempty"`
	Modes           []Mode `toml:"modes" validate:"required,min=1,dive"`
	ID              uint32 `toml:"id"`
	CRTCID          uint32 `toml:"crtc_id" validate:"required"`
	ConnectorID     uint32 `toml:"connector_id" validate:"required"`
	ConnectorTypeID uint32 `toml:"connector_type_id"`
	CurrentMode     uint32 `toml:"current_mode"`
	VideoModeIndex  uint32 `toml:"video_mode_index"`
	CmdModeIndex    uint32 `toml:"cmd_mode_index"`
	SwitchModeValid bool   `toml:"switch_mode_valid"`
	DynBitClk       bool   `toml:"dyn_bitclk"`
	PartialUpdate   bool   `toml:"partial_update"`
}

type Mode struct {
	// PanelMode is the drive mode the timing starts in. Defaults to the
	// first entry of PanelModes.
	PanelMode   string    `toml:"panel_mode,omitempty" validate:"omitempty,oneof=video command"`
	PanelModes  []string  `toml:"panel_modes" validate:"required,min=1,dive,oneof=video command"`
	SubModes    []SubMode `toml:"sub_modes,omitempty" validate:"dive"`
	BitClkRate  uint64    `toml:"bit_clk_rate"`
	HDisplay    uint32    `toml:"hdisplay" validate:"required"`
	VDisplay    uint32    `toml:"vdisplay" validate:"required"`
	VRefresh    uint32    `toml:"vrefresh" validate:"required"`
	QsyncMinFPS uint32    `toml:"qsync_min_fps"`
	SubMode     uint32    `toml:"sub_mode"`
}

type SubMode struct {
	Topology    string   `toml:"topology,omitempty"`
	BitClks     []uint64 `toml:"bit_clks,omitempty"`
	Compression uint32   `toml:"compression"`
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
}

// Path resolves the configuration file location, preferring the
// PERIPHCTL_CFG environment variable over configDir.
func Path(configDir string) string {
	if p := os.Getenv(CfgEnv); p != "" {
		return p
	}
	return filepath.Join(configDir, CfgFile)
}

// Load reads and validates the configuration at path on fs.
func Load(fs afero.Fs, path string) (*Values, error) {
	if _, err := fs.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	vals, err := Parse(data)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("path", path).
		Int("displays", len(vals.Displays)).
		Int("pool_capacity", vals.Scaler.PoolCapacity).
		Msg("loaded config")
	return vals, nil
}

// Parse decodes and validates a TOML document. Fields missing from data
// keep their BaseDefaults value.
func Parse(data []byte) (*Values, error) {
	vals := BaseDefaults
	if err := toml.Unmarshal(data, &vals); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if vals.ConfigSchema != SchemaVersion {
		log.Error().Msgf(
			"schema version mismatch: got %d, expecting %d",
			vals.ConfigSchema,
			SchemaVersion,
		)
		return nil, ErrSchemaMismatch
	}

	if err := Validate(&vals); err != nil {
		return nil, err
	}
	return &vals, nil
}

// Save writes vals to path on fs, creating the parent directory.
func Save(fs afero.Fs, path string, vals *Values) error {
	vals.ConfigSchema = SchemaVersion

	data, err := toml.Marshal(vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := afero.WriteFile(fs, path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Example is a single video-mode panel configuration, written by the init
// command as a starting point.
func Example() *Values {
	return &Values{
		ConfigSchema: SchemaVersion,
		Scaler:       Scaler{PoolCapacity: 4},
		Displays: []Display{{
			Name:            "dsi-0",
			Split:           "single",
			CRTCID:          1,
			ConnectorID:     2,
			ConnectorTypeID: 1,
			Modes: []Mode{
				{HDisplay: 1080, VDisplay: 2400, VRefresh: 60, PanelModes: []string{"video"}},
				{HDisplay: 1080, VDisplay: 2400, VRefresh: 90, PanelModes: []string{"video"}},
			},
		}},
	}
}
