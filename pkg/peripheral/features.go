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

package peripheral

import (
	"fmt"

	"github.com/periphctl/periphctl/pkg/display"
	"github.com/periphctl/periphctl/pkg/transaction"
)

// PanelFeature identifies an opaque panel feature blob.
type PanelFeature int

const (
	FeatureSPRInitCfg PanelFeature = iota
	FeatureSPRPackType
	FeatureDemuraInitCfg
	FeatureDsppIndex
	FeatureDsppSPRInfo
	FeatureDsppRCInfo
	FeatureDsppDemuraInfo
	FeatureRCInitCfg
	FeatureDemuraPanelID
)

func (f PanelFeature) String() string {
	switch f {
	case FeatureSPRInitCfg:
		return "spr_init_cfg"
	case FeatureSPRPackType:
		return "spr_pack_type"
	case FeatureDemuraInitCfg:
		return "demura_init_cfg"
	case FeatureDsppIndex:
		return "dspp_index"
	case FeatureDsppSPRInfo:
		return "dspp_spr_info"
	case FeatureDsppRCInfo:
		return "dspp_rc_info"
	case FeatureDsppDemuraInfo:
		return "dspp_demura_info"
	case FeatureRCInitCfg:
		return "rc_init_cfg"
	case FeatureDemuraPanelID:
		return "demura_panel_id"
	default:
		return fmt.Sprintf("panel_feature(%d)", int(f))
	}
}

// Hardware property ids of the panel features.
const (
	PropSPRInitCfg uint32 = iota + 1
	PropSPRPackType
	PropDemuraInitCfg
	PropDsppIndex
	PropDsppSPRInfo
	PropDsppRCInfo
	PropDsppDemuraInfo
	PropRCInitCfg
	PropDemuraPanelID
)

func newFeatureMap() map[PanelFeature]uint32 {
	return map[PanelFeature]uint32{
		FeatureSPRInitCfg:     PropSPRInitCfg,
		FeatureSPRPackType:    PropSPRPackType,
		FeatureDemuraInitCfg:  PropDemuraInitCfg,
		FeatureDsppIndex:      PropDsppIndex,
		FeatureDsppSPRInfo:    PropDsppSPRInfo,
		FeatureDsppRCInfo:     PropDsppRCInfo,
		FeatureDsppDemuraInfo: PropDsppDemuraInfo,
		FeatureRCInitCfg:      PropRCInitCfg,
		FeatureDemuraPanelID:  PropDemuraPanelID,
	}
}

// PanelFeatureInfo carries a panel feature blob in either direction.
type PanelFeatureInfo struct {
	Data    []byte
	Feature PanelFeature
	Version uint32
}

// FeatureRequest is a panel feature access resolved to a hardware object.
type FeatureRequest struct {
	Data    []byte
	Object  transaction.Object
	PropID  uint32
	Version uint32
}

// DppsFeatureInfo is the display post-processing capability report.
type DppsFeatureInfo struct {
	Features []uint32
	ObjectID uint32
}

// FeatureManager is the panel feature registry of the display driver.
type FeatureManager interface {
	// GetPanelFeature fills req.Data and req.Version.
	GetPanelFeature(req *FeatureRequest) error
	SetPanelFeature(req FeatureRequest) error
	// MarkForNullCommit queues a feature to be cleared by the next null commit.
	MarkForNullCommit(obj transaction.Object, propID uint32)
	GetDppsFeatureInfo(info *DppsFeatureInfo) error
}

type unsupportedFeatures struct{}

func (unsupportedFeatures) GetPanelFeature(*FeatureRequest) error {
	return fmt.Errorf("panel features: %w", display.ErrNotSupported)
}

func (unsupportedFeatures) SetPanelFeature(FeatureRequest) error {
	return fmt.Errorf("panel features: %w", display.ErrNotSupported)
}

func (unsupportedFeatures) MarkForNullCommit(transaction.Object, uint32) {}

func (unsupportedFeatures) GetDppsFeatureInfo(*DppsFeatureInfo) error {
	return fmt.Errorf("dpps features: %w", display.ErrNotSupported)
}

func (p *Peripheral) featureRequest(info *PanelFeatureInfo, forSet bool) (FeatureRequest, error) {
	if info == nil {
		return FeatureRequest{}, fmt.Errorf("panel feature: nil info: %w", display.ErrParameters)
	}
	prop, ok := p.featureMap[info.Feature]
	if !ok {
		return FeatureRequest{}, fmt.Errorf("panel feature %s: unmapped: %w", info.Feature, display.ErrParameters)
	}

	var obj transaction.Object
	switch info.Feature {
	case FeatureSPRInitCfg, FeatureDemuraInitCfg, FeatureRCInitCfg:
		obj = p.crtc
	case FeatureDsppIndex, FeatureDsppSPRInfo, FeatureDsppDemuraInfo, FeatureDsppRCInfo:
		if forSet {
			return FeatureRequest{}, fmt.Errorf("panel feature %s: read only: %w", info.Feature, display.ErrParameters)
		}
		obj = p.crtc
	case FeatureSPRPackType:
		obj = p.conn
	case FeatureDemuraPanelID:
		if forSet {
			return FeatureRequest{}, fmt.Errorf("panel feature %s: read only: %w", info.Feature, display.ErrParameters)
		}
		obj = p.conn
	default:
		return FeatureRequest{}, fmt.Errorf("panel feature %s: %w", info.Feature, display.ErrParameters)
	}

	return FeatureRequest{Object: obj, PropID: prop, Data: info.Data, Version: info.Version}, nil
}

// GetPanelFeature reads a panel feature blob into info.
func (p *Peripheral) GetPanelFeature(info *PanelFeatureInfo) error {
	req, err := p.featureRequest(info, false)
	if err != nil {
		p.log.Error().Err(err).Msg("get panel feature")
		return err
	}
	if err := p.features.GetPanelFeature(&req); err != nil {
		return fmt.Errorf("get panel feature %s: %w", info.Feature, err)
	}
	info.Data = req.Data
	info.Version = req.Version
	return nil
}

// SetPanelFeature writes a panel feature blob.
func (p *Peripheral) SetPanelFeature(info PanelFeatureInfo) error {
	req, err := p.featureRequest(&info, true)
	if err != nil {
		p.log.Error().Err(err).Msg("set panel feature")
		return err
	}
	if err := p.features.SetPanelFeature(req); err != nil {
		return fmt.Errorf("set panel feature %s: %w", info.Feature, err)
	}
	return nil
}

// Display post-processing feature ids.
const (
	FeatureAd4Roi uint32 = iota + 1
	FeatureLtmHistCtrl
	FeatureAbaHistCtrl
	FeatureSvBlScale
)

// Object type codes of DPPS payloads.
const (
	ObjectTypeCRTC      uint32 = 0xcccccccc
	ObjectTypeConnector uint32 = 0xc0c0c0c0
)

// Ad4Roi is a region of interest for adaptive display.
type Ad4Roi struct {
	HStart    uint32
	HEnd      uint32
	VStart    uint32
	VEnd      uint32
	FactorIn  uint32
	FactorOut uint32
}

// DppsPayload is a post-processing feature request.
type DppsPayload struct {
	ROI        *Ad4Roi
	Value      uint64
	FeatureID  uint32
	ObjectType uint32
}

// SetDppsFeature caches a post-processing feature for the next transaction.
func (p *Peripheral) SetDppsFeature(payload *DppsPayload) error {
	if payload == nil {
		return fmt.Errorf("dpps feature: nil payload: %w", display.ErrParameters)
	}

	var obj transaction.Object
	switch payload.ObjectType {
	case ObjectTypeCRTC:
		obj = p.crtc
	case ObjectTypeConnector:
		obj = p.conn
	default:
		p.log.Error().Uint32("object_type", payload.ObjectType).Msg("invalid dpps object type")
		return fmt.Errorf("dpps feature %d: object type %#x: %w", payload.FeatureID, payload.ObjectType, display.ErrUndefined)
	}

	var data any
	switch payload.FeatureID {
	case FeatureAd4Roi:
		if payload.ROI == nil {
			return fmt.Errorf("dpps ad4 roi: no region: %w", display.ErrNotSupported)
		}
		data = *payload.ROI
	case FeatureLtmHistCtrl:
		p.ltmHistCtrl, p.ltmHistSet = payload.Value, true
	case FeatureAbaHistCtrl:
		p.abaHistCtrl, p.abaHistSet = payload.Value, true
	}

	p.stage(transaction.Write{
		Object: obj,
		Op:     transaction.OpDppsCacheFeature,
		Value:  transaction.DppsFeature{FeatureID: payload.FeatureID, Value: payload.Value, Data: data},
	})
	return nil
}

// DppsFeatureInfo reports the post-processing features of the CRTC.
func (p *Peripheral) DppsFeatureInfo(info *DppsFeatureInfo) error {
	if info == nil {
		return fmt.Errorf("dpps feature info: nil info: %w", display.ErrParameters)
	}
	info.ObjectID = p.crtc.ID
	if err := p.features.GetDppsFeatureInfo(info); err != nil {
		return fmt.Errorf("dpps feature info: %w", err)
	}
	return nil
}

// SetBLScale stages the backlight scale level.
func (p *Peripheral) SetBLScale(level uint32) {
	p.stage(transaction.Write{
		Object: p.conn,
		Op:     transaction.OpDppsCacheFeature,
		Value:  transaction.DppsFeature{FeatureID: FeatureSvBlScale, Value: uint64(level)},
	})
}

// SetFrameTrigger selects how the connector waits for frame completion.
func (p *Peripheral) SetFrameTrigger(mode display.FrameTriggerMode) error {
	var trigger transaction.FrameTrigger
	switch mode {
	case display.FrameTriggerDefault:
		trigger = transaction.FrameDoneWaitDefault
	case display.FrameTriggerSerialize:
		trigger = transaction.FrameDoneWaitSerialize
	case display.FrameTriggerPostedStart:
		trigger = transaction.FrameDoneWaitPostedStart
	default:
		return fmt.Errorf("frame trigger %d: %w", int(mode), display.ErrParameters)
	}
	p.stage(transaction.Write{Object: p.conn, Op: transaction.OpConnectorSetFrameTrigger, Value: trigger})
	return nil
}
