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

package models

import (
	"encoding/json"
	"time"
)

const (
	NotificationDisplayAdded     = "display.added"
	NotificationDisplayRemoved   = "display.removed"
	NotificationDisplayPower     = "display.power"
	NotificationDisplayDeferred  = "display.deferred"
	NotificationDisplayCommitted = "display.committed"
	NotificationDisplaySecure    = "display.secure"
	NotificationDisplayHandoff   = "display.handoff"
)

type Notification struct {
	Method string
	Params json.RawMessage
}

type DisplayParams struct {
	Name         string `json:"name,omitempty"`
	ID           uint32 `json:"id"`
	ScalerBlocks int    `json:"scalerBlocks"`
}

type PowerParams struct {
	At        time.Time `json:"at"`
	Power     string    `json:"power"`
	PanelMode string    `json:"panelMode"`
	Display   uint32    `json:"display"`
}

// DeferredParams reports a request the display declined for now. The caller
// is expected to retry it later; nothing is queued on its behalf.
type DeferredParams struct {
	At      time.Time `json:"at"`
	Request string    `json:"request"`
	Reason  string    `json:"reason"`
	Display uint32    `json:"display"`
}

type CommittedParams struct {
	At      time.Time `json:"at"`
	Power   string    `json:"power"`
	Display uint32    `json:"display"`
	Frame   uint64    `json:"frame"`
	Mode    uint32    `json:"mode"`
}

type SecureParams struct {
	At      time.Time `json:"at"`
	Event   string    `json:"event"`
	TUI     string    `json:"tui"`
	Display uint32    `json:"display"`
}

type HandoffParams struct {
	State   string `json:"state"`
	Display uint32 `json:"display"`
}

// DisplayStatus is the API view of one display.
type DisplayStatus struct {
	Name         string `json:"name"`
	Power        string `json:"power"`
	PendingPower string `json:"pendingPower"`
	PanelMode    string `json:"panelMode"`
	TUI          string `json:"tui"`
	SelfRefresh  string `json:"selfRefresh"`
	ScalerBlocks int    `json:"scalerBlocks"`
	BitClockRate uint64 `json:"bitClockRate"`
	Frames       uint64 `json:"frames"`
	ID           uint32 `json:"id"`
	Mode         uint32 `json:"mode"`
	Active       bool   `json:"active"`
	FirstCycle   bool   `json:"firstCycle"`
	PomsPending  bool   `json:"pomsPending"`
}

type PoolStatus struct {
	BootID    string `json:"bootId"`
	Capacity  int    `json:"capacity"`
	Used      int    `json:"used"`
	Available int    `json:"available"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}
