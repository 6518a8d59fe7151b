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

package notifications

import (
	"encoding/json"

	"github.com/periphctl/periphctl/pkg/api/models"
	"github.com/rs/zerolog/log"
)

// sendNotification marshals the payload and hands it to ns without
// blocking. When the channel is full the notification is dropped, the
// control path must never wait on a slow consumer.
func sendNotification(ns chan<- models.Notification, method string, payload any) {
	var params json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			log.Error().Err(err).Str("method", method).Msg("error marshalling notification params")
			return
		}
		params = b
	}

	select {
	case ns <- models.Notification{Method: method, Params: params}:
	default:
		log.Warn().Str("method", method).Msg("notification channel full, dropping notification")
	}
}

func DisplayAdded(ns chan<- models.Notification, payload models.DisplayParams) {
	sendNotification(ns, models.NotificationDisplayAdded, payload)
}

func DisplayRemoved(ns chan<- models.Notification, payload models.DisplayParams) {
	sendNotification(ns, models.NotificationDisplayRemoved, payload)
}

func PowerChanged(ns chan<- models.Notification, payload models.PowerParams) {
	sendNotification(ns, models.NotificationDisplayPower, payload)
}

func RequestDeferred(ns chan<- models.Notification, payload models.DeferredParams) {
	sendNotification(ns, models.NotificationDisplayDeferred, payload)
}

func FrameCommitted(ns chan<- models.Notification, payload models.CommittedParams) {
	sendNotification(ns, models.NotificationDisplayCommitted, payload)
}

func SecureEvent(ns chan<- models.Notification, payload models.SecureParams) {
	sendNotification(ns, models.NotificationDisplaySecure, payload)
}

func Handoff(ns chan<- models.Notification, payload models.HandoffParams) {
	sendNotification(ns, models.NotificationDisplayHandoff, payload)
}
