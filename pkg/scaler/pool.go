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

// Package scaler manages destination scaler blocks: the process-wide pool
// shared by every display and the per-display cache of the last programmed
// configuration.
package scaler

import (
	"github.com/periphctl/periphctl/pkg/display"
	"github.com/periphctl/periphctl/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

// BlocksForSplit returns how many scaler blocks a display with the given
// split topology needs: one per layer mixer.
func BlocksForSplit(split display.SplitType) int {
	switch split {
	case display.SplitQuad:
		return 4
	case display.SplitDual:
		return 2
	default:
		return 1
	}
}

// Pool is the shared counter of destination scaler blocks. One Pool is owned
// by the process-wide manager and referenced by every display instance, each
// of which may run on its own goroutine.
type Pool struct {
	capacity int
	used     int
	mu       syncutil.Mutex
}

// NewPool creates a pool with the hardware-reported number of blocks.
// A negative capacity is treated as zero.
func NewPool(capacity int) *Pool {
	if capacity < 0 {
		capacity = 0
	}
	return &Pool{capacity: capacity}
}

// TryAllocate grants all requested blocks or none. A denial is not an error:
// the caller runs with the feature disabled.
func (p *Pool) TryAllocate(requested int) int {
	if requested <= 0 {
		return 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.used+requested > p.capacity {
		log.Info().
			Int("requested", requested).
			Int("used", p.used).
			Int("capacity", p.capacity).
			Msg("scaler pool exhausted, destination scaler disabled")
		return 0
	}

	p.used += requested
	log.Debug().
		Int("granted", requested).
		Int("used", p.used).
		Int("capacity", p.capacity).
		Msg("scaler blocks allocated")
	return requested
}

// Release returns previously granted blocks. Releasing more than is in use
// clamps the counter at zero.
func (p *Pool) Release(blocks int) {
	if blocks <= 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if blocks > p.used {
		log.Warn().
			Int("release", blocks).
			Int("used", p.used).
			Msg("releasing more scaler blocks than allocated")
		blocks = p.used
	}
	p.used -= blocks
}

// Used returns the number of blocks currently granted.
func (p *Pool) Used() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.used
}

// Capacity returns the total number of blocks.
func (p *Pool) Capacity() int {
	return p.capacity
}

// Available returns the number of blocks that can still be granted.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity - p.used
}
