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

package scaler

import (
	"github.com/periphctl/periphctl/pkg/display"
)

// Flags are the per-block update flags sent with a destination scaler
// configuration.
type Flags uint32

const (
	FlagEnable Flags = 1 << iota
	FlagEnhancerUpdate
	FlagScaleUpdate
	FlagPartialUpdate
)

// BlockConfig is the full programming of one destination scaler block.
type BlockConfig struct {
	Scale       display.ScalerDescriptor
	Index       uint32
	MixerWidth  uint32
	MixerHeight uint32
	Flags       Flags
}

// Config is the destination scaler payload of a transaction. It covers every
// block requested so far, in block order; blocks never requested are left out.
type Config struct {
	Blocks []BlockConfig
}

// Diff is the outcome of comparing a frame's request against the cache.
type Diff struct {
	Config Config
	Dirty  bool
}

type cacheEntry struct {
	block BlockConfig
	valid bool
}

// Cache holds the last hardware-confirmed scaler configuration of one display
// and the configuration requested for the next transaction.
//
// The dirty flag is sticky: once a difference is seen it stays set until a
// transaction carrying the configuration is confirmed, so a failed commit is
// resent on the next frame.
type Cache struct {
	pending       []BlockConfig
	pendingSet    []bool
	confirmed     []cacheEntry
	partialUpdate bool
	dirty         bool
	requested     bool
}

// NewCache sizes a cache for the blocks granted by the pool. A zero-block
// cache never reports a difference.
func NewCache(blocks int, partialUpdate bool) *Cache {
	if blocks < 0 {
		blocks = 0
	}
	return &Cache{
		pending:       make([]BlockConfig, blocks),
		pendingSet:    make([]bool, blocks),
		confirmed:     make([]cacheEntry, blocks),
		partialUpdate: partialUpdate,
	}
}

// Blocks returns the number of blocks tracked.
func (c *Cache) Blocks() int {
	return len(c.pending)
}

// Dirty reports whether the next transaction must carry the configuration.
func (c *Cache) Dirty() bool {
	return c.dirty
}

func (c *Cache) flagsFor(info *display.DestScaleInfo) Flags {
	var f Flags
	if info.Scale.Enable {
		f |= FlagEnable
	}
	if info.Scale.DetailEnh.Enable {
		f |= FlagEnhancerUpdate
	}
	if info.ScaleUpdate {
		f |= FlagScaleUpdate
	}
	if c.partialUpdate {
		f |= FlagPartialUpdate
	}
	return f
}

// ComputeDiff folds the frame's per-block requests into the pending
// configuration and compares each requested block against the confirmed one.
// Blocks the frame does not mention keep their previous request.
func (c *Cache) ComputeDiff(requests map[uint32]*display.DestScaleInfo) Diff {
	if len(c.pending) == 0 {
		return Diff{}
	}

	for i := range c.pending {
		info, ok := requests[uint32(i)]
		if !ok || info == nil {
			continue
		}

		block := BlockConfig{
			Scale:       info.Scale,
			Index:       uint32(i),
			MixerWidth:  info.MixerWidth,
			MixerHeight: info.MixerHeight,
			Flags:       c.flagsFor(info),
		}
		c.pending[i] = block
		c.pendingSet[i] = true
		c.requested = true

		entry := c.confirmed[i]
		if !entry.valid || entry.block != block {
			c.dirty = true
		}
	}

	if !c.dirty {
		return Diff{}
	}
	return Diff{Dirty: true, Config: c.snapshot()}
}

// Resend marks the whole pending configuration for retransmission, used when
// the display powers on and the hardware lost its programming. It returns
// false when nothing was ever requested.
func (c *Cache) Resend() (Diff, bool) {
	if len(c.pending) == 0 || !c.requested {
		return Diff{}, false
	}
	c.dirty = true
	return Diff{Dirty: true, Config: c.snapshot()}, true
}

// CommitConfirmed records a successfully applied configuration as the
// hardware state and clears the dirty flag.
func (c *Cache) CommitConfirmed(applied Diff) {
	if !applied.Dirty {
		return
	}
	for _, block := range applied.Config.Blocks {
		if int(block.Index) >= len(c.confirmed) {
			continue
		}
		c.confirmed[block.Index] = cacheEntry{block: block, valid: true}
	}
	c.dirty = false
}

// Reset forgets the confirmed configuration so the next requested block is
// always reported as changed.
func (c *Cache) Reset() {
	for i := range c.confirmed {
		c.confirmed[i] = cacheEntry{}
	}
}

func (c *Cache) snapshot() Config {
	blocks := make([]BlockConfig, 0, len(c.pending))
	for i, block := range c.pending {
		if c.pendingSet[i] {
			blocks = append(blocks, block)
		}
	}
	return Config{Blocks: blocks}
}
