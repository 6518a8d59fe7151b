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

// Package transaction models the atomic property batches handed to the
// external executor. A batch either lands as a whole or the submission
// fails; partial application is never modeled.
package transaction

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/periphctl/periphctl/pkg/display"
)

// ObjectType is the kind of hardware object a property belongs to.
type ObjectType int

const (
	ObjectCRTC ObjectType = iota
	ObjectConnector
)

func (t ObjectType) String() string {
	if t == ObjectConnector {
		return "connector"
	}
	return "crtc"
}

// Object identifies a CRTC or connector.
type Object struct {
	Type ObjectType
	ID   uint32
}

func (o Object) String() string {
	return fmt.Sprintf("%s:%d", o.Type, o.ID)
}

// Op is a keyed property operation.
type Op int

const (
	OpCRTCSetDestScalerConfig Op = iota
	OpCRTCSetCacheState
	OpConnectorSetCacheState
	OpCRTCSetIdlePCState
	OpCRTCSetVMReqState
	OpCRTCSetQosData
	OpCRTCSetMode
	OpCRTCResetCache
	OpPlanesResetCache
	OpDppsCacheFeature
	OpConnectorSetQsyncMode
	OpConnectorSetFrameTrigger
	OpConnectorSetPowerMode
	OpConnectorSetBitClock
	OpConnectorSetTopologyControl
)

var opNames = map[Op]string{
	OpCRTCSetDestScalerConfig:     "crtc_set_dest_scaler_config",
	OpCRTCSetCacheState:           "crtc_set_cache_state",
	OpConnectorSetCacheState:      "connector_set_cache_state",
	OpCRTCSetIdlePCState:          "crtc_set_idle_pc_state",
	OpCRTCSetVMReqState:           "crtc_set_vm_req_state",
	OpCRTCSetQosData:              "crtc_set_qos_data",
	OpCRTCSetMode:                 "crtc_set_mode",
	OpCRTCResetCache:              "crtc_reset_cache",
	OpPlanesResetCache:            "planes_reset_cache",
	OpDppsCacheFeature:            "dpps_cache_feature",
	OpConnectorSetQsyncMode:       "connector_set_qsync_mode",
	OpConnectorSetFrameTrigger:    "connector_set_frame_trigger",
	OpConnectorSetPowerMode:       "connector_set_power_mode",
	OpConnectorSetBitClock:        "connector_set_bit_clock",
	OpConnectorSetTopologyControl: "connector_set_topology_control",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Write is one keyed property write.
type Write struct {
	Value  any
	Object Object
	Op     Op
}

// Batch is the unit submitted to an Executor.
type Batch struct {
	Frame       *display.FrameInfo
	Writes      []Write
	ID          uuid.UUID
	Display     uint32
	Synchronous bool
}

// NewBatch starts an empty batch for a display.
func NewBatch(displayID uint32) *Batch {
	return &Batch{
		ID:      uuid.New(),
		Display: displayID,
	}
}

// Perform appends a property write to the batch.
func (b *Batch) Perform(obj Object, op Op, value any) {
	b.Writes = append(b.Writes, Write{Object: obj, Op: op, Value: value})
}

// Append adds already-built writes in order.
func (b *Batch) Append(ws ...Write) {
	b.Writes = append(b.Writes, ws...)
}

// Find returns every write for op, in submission order.
func (b *Batch) Find(op Op) []Write {
	var out []Write
	for _, w := range b.Writes {
		if w.Op == op {
			out = append(out, w)
		}
	}
	return out
}

// Last returns the final write for op, which is the one the hardware keeps.
func (b *Batch) Last(op Op) (Write, bool) {
	for i := len(b.Writes) - 1; i >= 0; i-- {
		if b.Writes[i].Op == op {
			return b.Writes[i], true
		}
	}
	return Write{}, false
}

// Has reports whether the batch contains a write for op.
func (b *Batch) Has(op Op) bool {
	_, ok := b.Last(op)
	return ok
}

// Result is what a successful commit hands back.
type Result struct {
	// ReleaseFence is set on writeback-capable paths.
	ReleaseFence display.Fence
}

// Executor applies batches to hardware. Commit and Flush may block until the
// hardware reports completion; timeouts are the executor's own concern.
type Executor interface {
	// Validate checks the batch without applying it.
	Validate(ctx context.Context, b *Batch) error
	// Commit applies the batch atomically.
	Commit(ctx context.Context, b *Batch) (Result, error)
	// Flush applies the batch with all layers dropped, waiting for completion.
	Flush(ctx context.Context, b *Batch) error
}
