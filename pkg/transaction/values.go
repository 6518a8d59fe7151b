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

package transaction

// Property values carried by writes. They mirror the enumerations the
// display driver accepts for the matching Op.

type CacheState int

const (
	CacheStateDisabled CacheState = iota
	CacheStateEnabled
)

type IdlePCState int

const (
	IdlePCNone IdlePCState = iota
	IdlePCEnable
	IdlePCDisable
)

type VMRequestState int

const (
	VMRequestNone VMRequestState = iota
	VMRequestRelease
	VMRequestAcquire
)

type QsyncMode int

const (
	QsyncNone QsyncMode = iota
	QsyncContinuous
	QsyncOneShot
)

type FrameTrigger int

const (
	FrameDoneWaitDefault FrameTrigger = iota
	FrameDoneWaitSerialize
	FrameDoneWaitPostedStart
)

type PowerMode int

const (
	PowerModeOff PowerMode = iota
	PowerModeOn
	PowerModeDoze
	PowerModeDozeSuspend
)

// TopologyControl bits.
const (
	TopologyDSPP       uint32 = 1 << 1
	TopologyDestScaler uint32 = 1 << 3
)

// ModeSet selects a connector mode for the next commit.
type ModeSet struct {
	Topology     string
	Index        uint32
	SubModeIndex uint32
	Compression  uint32
	Command      bool
}

// DppsFeature is a cached post-processing feature write.
type DppsFeature struct {
	// Data carries structured payloads such as a region of interest.
	Data      any
	Value     uint64
	FeatureID uint32
}
