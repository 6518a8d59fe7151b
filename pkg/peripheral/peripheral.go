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

// Package peripheral drives one built-in display panel. It arbitrates power,
// panel-mode, clock and secure-session transitions, and assembles the atomic
// transactions that carry each frame to the executor.
//
// A Peripheral is not safe for concurrent use. Each display is driven by a
// single control goroutine; only the scaler pool is shared between displays.
package peripheral

import (
	"context"
	"errors"
	"fmt"

	"github.com/periphctl/periphctl/pkg/brightness"
	"github.com/periphctl/periphctl/pkg/display"
	"github.com/periphctl/periphctl/pkg/modes"
	"github.com/periphctl/periphctl/pkg/scaler"
	"github.com/periphctl/periphctl/pkg/transaction"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// Config describes the panel behind one display pipeline, as enumerated by
// the device lifecycle base.
type Config struct {
	Connector       modes.ConnectorInfo
	Name            string
	BrightnessRoot  string
	ID              uint32
	CRTCID          uint32
	ConnectorID     uint32
	CurrentMode     uint32
	VideoModeIndex  uint32
	CmdModeIndex    uint32
	Split           display.SplitType
	SwitchModeValid bool
	DynBitClk       bool
	PartialUpdate   bool
}

// HandoffFunc is told when display resources are handed to or taken back
// from the secure VM. state is TUIStateStart or TUIStateEnd.
type HandoffFunc func(displayID uint32, state display.TUIState)

// Deps are the collaborators a Peripheral uses but does not own.
type Deps struct {
	Executor transaction.Executor
	Pool     *scaler.Pool
	// Features is optional; without it panel feature access is unsupported.
	Features FeatureManager
	// Fs is where backlight nodes are read. Defaults to the OS filesystem.
	Fs        afero.Fs
	OnHandoff HandoffFunc
}

// Peripheral is the control plane of one display.
type Peripheral struct {
	exec        transaction.Executor
	features    FeatureManager
	pool        *scaler.Pool
	cache       *scaler.Cache
	backlight   *brightness.Node
	onHandoff   HandoffFunc
	connector   *modes.ConnectorInfo
	featureMap  map[PanelFeature]uint32
	log         zerolog.Logger
	name        string
	staged      []transaction.Write
	bitClkRates []uint64
	qos         display.QosData

	crtc transaction.Object
	conn transaction.Object

	id             uint32
	currentMode    uint32
	videoModeIndex uint32
	cmdModeIndex   uint32
	scalerBlocks   int
	maxBrightness  float64

	// changes queued for the next commit
	refreshMode uint32
	attrsMode   uint32
	bitClkRate  uint64

	ltmHistCtrl uint64
	abaHistCtrl uint64

	power       display.PowerState
	pendingPow  display.PowerState
	panelMode   display.PanelMode
	tuiState    display.TUIState
	selfRefresh display.SelfRefreshState
	idlePCState transaction.IdlePCState

	pendingRefresh      bool
	pendingAttrs        bool
	firstCycle          bool
	active              bool
	pomsDone            bool
	pomsPending         bool
	switchModeValid     bool
	dynBitClk           bool
	secureDisplayActive bool
	synchronousCommit   bool
	idlePCEnabled       bool
	tuiHandedOff        bool
	ltmHistSet          bool
	abaHistSet          bool
	closed              bool
}

// New initializes a peripheral: scaler blocks are requested from the shared
// pool according to the split topology, the bit-clock candidate set is built
// when the panel supports dynamic bit clock, and the panel feature map is
// created.
func New(cfg Config, deps Deps) (*Peripheral, error) {
	if deps.Executor == nil {
		return nil, fmt.Errorf("display %d: no executor: %w", cfg.ID, display.ErrParameters)
	}
	if deps.Pool == nil {
		return nil, fmt.Errorf("display %d: no scaler pool: %w", cfg.ID, display.ErrParameters)
	}
	if len(cfg.Connector.Modes) == 0 {
		return nil, fmt.Errorf("display %d: connector has no modes: %w", cfg.ID, display.ErrParameters)
	}
	connector := cfg.Connector
	connector.Modes = append([]modes.Mode(nil), cfg.Connector.Modes...)
	cur, err := connector.Mode(cfg.CurrentMode)
	if err != nil {
		return nil, fmt.Errorf("display %d: current mode: %w", cfg.ID, err)
	}
	if cfg.SwitchModeValid {
		if _, err := connector.Mode(cfg.VideoModeIndex); err != nil {
			return nil, fmt.Errorf("display %d: video mode: %w", cfg.ID, err)
		}
		if _, err := connector.Mode(cfg.CmdModeIndex); err != nil {
			return nil, fmt.Errorf("display %d: command mode: %w", cfg.ID, err)
		}
	}

	fs := deps.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	features := deps.Features
	if features == nil {
		features = unsupportedFeatures{}
	}

	p := &Peripheral{
		exec:            deps.Executor,
		features:        features,
		pool:            deps.Pool,
		onHandoff:       deps.OnHandoff,
		connector:       &connector,
		featureMap:      newFeatureMap(),
		name:            cfg.Name,
		crtc:            transaction.Object{Type: transaction.ObjectCRTC, ID: cfg.CRTCID},
		conn:            transaction.Object{Type: transaction.ObjectConnector, ID: cfg.ConnectorID},
		id:              cfg.ID,
		currentMode:     cfg.CurrentMode,
		videoModeIndex:  cfg.VideoModeIndex,
		cmdModeIndex:    cfg.CmdModeIndex,
		power:           display.PowerOff,
		panelMode:       modes.PanelModeOf(cur),
		switchModeValid: cfg.SwitchModeValid,
		dynBitClk:       cfg.DynBitClk,
		firstCycle:      true,
		idlePCEnabled:   true,
	}
	p.log = log.With().Uint32("display", cfg.ID).Str("name", cfg.Name).Logger()

	p.initScaler(cfg.Split, cfg.PartialUpdate)
	p.refreshBitClockRates()

	base := ""
	if connector.TypeID > 0 {
		base = brightness.BasePath(cfg.BrightnessRoot, connector.TypeID)
	}
	p.backlight = brightness.NewNode(fs, base)
	p.maxBrightness = p.backlight.Max()

	p.log.Info().
		Int("scaler_blocks", p.scalerBlocks).
		Str("panel_mode", p.panelMode.String()).
		Uint32("mode", p.currentMode).
		Int("bitclk_candidates", len(p.bitClkRates)).
		Msg("display peripheral initialized")
	return p, nil
}

func (p *Peripheral) initScaler(split display.SplitType, partialUpdate bool) {
	topology := transaction.TopologyDSPP
	if p.pool.Capacity() > 0 {
		p.scalerBlocks = p.pool.TryAllocate(scaler.BlocksForSplit(split))
	}
	if p.scalerBlocks > 0 {
		topology |= transaction.TopologyDestScaler
	}
	p.cache = scaler.NewCache(p.scalerBlocks, partialUpdate)
	p.stage(transaction.Write{Object: p.conn, Op: transaction.OpConnectorSetTopologyControl, Value: topology})
}

// Close returns the display's scaler blocks to the shared pool. Calling it
// more than once is harmless.
func (p *Peripheral) Close() {
	if p.closed {
		return
	}
	p.closed = true
	if p.scalerBlocks > 0 {
		p.pool.Release(p.scalerBlocks)
	}
	p.log.Info().Int("released_blocks", p.scalerBlocks).Msg("display peripheral closed")
}

func (p *Peripheral) stage(ws ...transaction.Write) {
	p.staged = append(p.staged, ws...)
}

func (p *Peripheral) mode() *modes.Mode {
	return &p.connector.Modes[p.currentMode]
}

func (p *Peripheral) setCurrentMode(index uint32) {
	p.currentMode = index
	p.refreshBitClockRates()
}

func (p *Peripheral) refreshBitClockRates() {
	if p.dynBitClk {
		p.bitClkRates = modes.BitClockCandidates(p.connector, p.currentMode)
	}
}

// submit commits writes synchronously outside of the frame path. Staged
// writes ride along and are consumed on success.
func (p *Peripheral) submit(ctx context.Context, op string, writes ...transaction.Write) error {
	b := transaction.NewBatch(p.id)
	b.Synchronous = true
	b.Append(p.staged...)
	b.Append(writes...)
	if _, err := p.exec.Commit(ctx, b); err != nil {
		p.log.Error().Err(err).Str("op", op).Msg("transaction failed")
		return wrapExecutor(op, err)
	}
	p.staged = nil
	return nil
}

// flush runs a null commit carrying staged writes and extra. The hardware
// loses its scaler programming, so the cache is reset on success.
func (p *Peripheral) flush(ctx context.Context, op string, extra ...transaction.Write) error {
	b := transaction.NewBatch(p.id)
	b.Synchronous = true
	b.Append(p.staged...)
	b.Append(extra...)
	if err := p.exec.Flush(ctx, b); err != nil {
		p.log.Error().Err(err).Str("op", op).Msg("flush failed")
		return wrapExecutor(op, err)
	}
	p.staged = nil
	p.cache.Reset()
	p.log.Debug().Str("op", op).Msg("display flushed")
	return nil
}

// wrapExecutor keeps the kind of errors that already carry one and reports
// everything else as a transaction-level failure.
func wrapExecutor(op string, err error) error {
	if display.Kind(err) != display.KindUndefined || errors.Is(err, display.ErrUndefined) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, display.ErrUndefined, err)
}
