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

package display

import "context"

// DetailEnhancer is the sharpening stage of a destination scaler.
type DetailEnhancer struct {
	AdjustA       [6]int16
	AdjustB       [6]int16
	AdjustC       [6]int16
	ThrQuiet      uint16
	ThrDieout     uint16
	ThrLow        uint16
	ThrHigh       uint16
	SharpenLevel1 int16
	SharpenLevel2 int16
	Clip          uint8
	LimitLevel    uint8
	Enable        bool
}

// ScalerDescriptor is the hardware scaling programming of one destination
// scaler block. It only contains fixed-size fields so two descriptors can be
// compared with == for an exact, field-for-field match.
type ScalerDescriptor struct {
	InitPhaseX [4]int32
	InitPhaseY [4]int32
	PhaseStepX [4]uint32
	PhaseStepY [4]uint32
	SrcWidth   [4]uint32
	SrcHeight  [4]uint32
	DetailEnh  DetailEnhancer
	DstWidth   uint32
	DstHeight  uint32
	LUTFlag    uint32
	FilterY    uint8
	FilterUV   uint8
	BlendCfg   uint8
	Enable     bool
	DirEnable  bool
}

// DestScaleInfo is the per-block destination scaler request for one frame.
type DestScaleInfo struct {
	Scale       ScalerDescriptor
	MixerWidth  uint32
	MixerHeight uint32
	ScaleUpdate bool
}

// Fence is a completion handle returned by the transaction executor.
type Fence interface {
	Wait(ctx context.Context) error
	String() string
}

// OutputBuffer is the writeback target of a frame, if any.
type OutputBuffer struct {
	ReleaseFence Fence
}

// FrameInfo is everything a Validate or Commit call needs about one frame.
// DestScale is keyed by destination scaler block index.
type FrameInfo struct {
	DestScale    map[uint32]*DestScaleInfo
	OutputBuffer *OutputBuffer
}
