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

// Package cli replays compositor request scripts against a display manager.
// A script lists, per display, the ordered requests a compositor would make;
// displays are driven concurrently and requests for one display in order.
package cli

import (
	"errors"
	"fmt"

	"github.com/periphctl/periphctl/pkg/display"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Request operations understood by Replay.
const (
	OpPower             = "power"
	OpValidate          = "validate"
	OpCommit            = "commit"
	OpFlush             = "flush"
	OpSecureEvent       = "secure_event"
	OpRefreshRate       = "refresh_rate"
	OpBitClock          = "bit_clock"
	OpDisplayAttributes = "display_attributes"
	OpAlternateConfig   = "alternate_config"
	OpBrightness        = "brightness"
	OpIdlePowerCollapse = "idle_power_collapse"
	OpFrameTrigger      = "frame_trigger"
)

var ErrInvalidScript = errors.New("invalid script")

// Scaler is the destination scaler programming of one block in a frame.
type Scaler struct {
	Block       uint32 `yaml:"block"`
	MixerWidth  uint32 `yaml:"mixer_width"`
	MixerHeight uint32 `yaml:"mixer_height"`
	DstWidth    uint32 `yaml:"dst_width"`
	DstHeight   uint32 `yaml:"dst_height"`
	Enable      bool   `yaml:"enable"`
	Update      bool   `yaml:"update"`
}

// Request is one compositor call. Which fields are read depends on Op.
type Request struct {
	Op      string   `yaml:"op"`
	State   string   `yaml:"state,omitempty"`
	Event   string   `yaml:"event,omitempty"`
	Scalers []Scaler `yaml:"scalers,omitempty"`
	Value   uint64   `yaml:"value,omitempty"`
	Enable  bool     `yaml:"enable,omitempty"`
}

// DisplayScript is the request sequence for one display.
type DisplayScript struct {
	Requests []Request `yaml:"requests"`
	ID       uint32    `yaml:"id"`
}

type Script struct {
	Displays []DisplayScript `yaml:"displays"`
}

// ParseScript decodes and checks a YAML script. State and event names are
// resolved here so a bad script fails before any display is touched.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal script: %w", err)
	}
	if err := s.check(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadScript reads and parses a script file.
func LoadScript(fs afero.Fs, path string) (*Script, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return ParseScript(data)
}

func (s *Script) check() error {
	seen := make(map[uint32]bool, len(s.Displays))
	for _, d := range s.Displays {
		if seen[d.ID] {
			return fmt.Errorf("%w: display %d listed twice", ErrInvalidScript, d.ID)
		}
		seen[d.ID] = true
		for i, req := range d.Requests {
			if err := req.check(); err != nil {
				return fmt.Errorf("%w: display %d request %d: %w", ErrInvalidScript, d.ID, i, err)
			}
		}
	}
	return nil
}

func (r *Request) check() error {
	switch r.Op {
	case OpPower:
		_, err := display.ParsePowerState(r.State)
		return err
	case OpSecureEvent:
		_, err := display.ParseSecureEvent(r.Event)
		return err
	case OpValidate, OpCommit:
		blocks := make(map[uint32]bool, len(r.Scalers))
		for _, sc := range r.Scalers {
			if blocks[sc.Block] {
				return fmt.Errorf("scaler block %d listed twice", sc.Block)
			}
			blocks[sc.Block] = true
		}
		return nil
	case OpFlush, OpRefreshRate, OpBitClock, OpDisplayAttributes,
		OpAlternateConfig, OpBrightness, OpIdlePowerCollapse, OpFrameTrigger:
		return nil
	default:
		return fmt.Errorf("unknown op %q", r.Op)
	}
}

// Frame builds the frame a validate or commit request describes. A request
// without scalers yields a nil frame.
func (r *Request) Frame() *display.FrameInfo {
	if len(r.Scalers) == 0 {
		return nil
	}
	frame := &display.FrameInfo{
		DestScale: make(map[uint32]*display.DestScaleInfo, len(r.Scalers)),
	}
	for _, sc := range r.Scalers {
		frame.DestScale[sc.Block] = &display.DestScaleInfo{
			Scale: display.ScalerDescriptor{
				DstWidth:  sc.DstWidth,
				DstHeight: sc.DstHeight,
				Enable:    sc.Enable,
			},
			MixerWidth:  sc.MixerWidth,
			MixerHeight: sc.MixerHeight,
			ScaleUpdate: sc.Update,
		}
	}
	return frame
}
