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

// Package lifecycle drives display devices through their power, frame and
// secure-session requests on behalf of the compositor. A Controller owns
// the serialization of one device and reports every outcome as a
// notification; it never retries a deferred request.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/periphctl/periphctl/pkg/api/models"
	"github.com/periphctl/periphctl/pkg/api/notifications"
	"github.com/periphctl/periphctl/pkg/display"
	"github.com/periphctl/periphctl/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

// Device is the capability set a controller needs from a display. The
// built-in panel peripheral is one implementation.
type Device interface {
	Validate(ctx context.Context, frame *display.FrameInfo) error
	Commit(ctx context.Context, frame *display.FrameInfo) error
	Flush(ctx context.Context) error
	PowerOn(ctx context.Context, qos display.QosData) error
	PowerOff(ctx context.Context, teardown bool) error
	Doze(ctx context.Context, qos display.QosData) error
	DozeSuspend(ctx context.Context, qos display.QosData) error
	HandleSecureEvent(ctx context.Context, ev display.SecureEvent, qos display.QosData) error
	ID() uint32
	PowerState() display.PowerState
	PanelMode() display.PanelMode
	TUIState() display.TUIState
	CurrentMode() uint32
}

type Controller struct {
	dev    Device
	clock  clockwork.Clock
	ns     chan<- models.Notification
	mu     syncutil.Mutex
	frames uint64
}

type Option func(*Controller)

func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithNotifications makes the controller publish outcomes on ns. Sends
// never block; a full channel drops the notification.
func WithNotifications(ns chan<- models.Notification) Option {
	return func(c *Controller) {
		c.ns = ns
	}
}

func NewController(dev Device, opts ...Option) *Controller {
	c := &Controller{
		dev:   dev,
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Device() Device {
	return c.dev
}

// Frames is the number of frames committed through this controller.
func (c *Controller) Frames() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// SetPowerState routes a compositor power request to the matching device
// transition.
func (c *Controller) SetPowerState(
	ctx context.Context,
	target display.PowerState,
	qos display.QosData,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	switch target {
	case display.PowerOn:
		err = c.dev.PowerOn(ctx, qos)
	case display.PowerOff:
		err = c.dev.PowerOff(ctx, false)
	case display.PowerDoze:
		err = c.dev.Doze(ctx, qos)
	case display.PowerDozeSuspend:
		err = c.dev.DozeSuspend(ctx, qos)
	default:
		err = fmt.Errorf("set power state %s: %w", target, display.ErrParameters)
	}

	request := "power_" + target.String()
	if err != nil {
		c.report(request, err)
		return err
	}

	log.Debug().
		Uint32("display", c.dev.ID()).
		Stringer("power", c.dev.PowerState()).
		Stringer("panel_mode", c.dev.PanelMode()).
		Msg("power state applied")
	c.notifyPower()
	return nil
}

func (c *Controller) Validate(ctx context.Context, frame *display.FrameInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.dev.Validate(ctx, frame)
	if err != nil {
		c.report("validate", err)
	}
	return err
}

func (c *Controller) Commit(ctx context.Context, frame *display.FrameInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := c.dev.PowerState()
	err := c.dev.Commit(ctx, frame)
	if err != nil {
		c.report("commit", err)
		return err
	}

	c.frames++
	if c.ns != nil {
		notifications.FrameCommitted(c.ns, models.CommittedParams{
			At:      c.clock.Now(),
			Power:   c.dev.PowerState().String(),
			Display: c.dev.ID(),
			Frame:   c.frames,
			Mode:    c.dev.CurrentMode(),
		})
	}
	// the first frame or a queued panel switch can move the power state
	if c.dev.PowerState() != before {
		c.notifyPower()
	}
	return nil
}

func (c *Controller) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.dev.Flush(ctx)
	if err != nil {
		c.report("flush", err)
	}
	return err
}

func (c *Controller) HandleSecureEvent(
	ctx context.Context,
	ev display.SecureEvent,
	qos display.QosData,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.dev.HandleSecureEvent(ctx, ev, qos)
	if err != nil {
		c.report(ev.String(), err)
		return err
	}

	log.Info().
		Uint32("display", c.dev.ID()).
		Stringer("event", ev).
		Stringer("tui", c.dev.TUIState()).
		Msg("secure event handled")
	if c.ns != nil {
		notifications.SecureEvent(c.ns, models.SecureParams{
			At:      c.clock.Now(),
			Event:   ev.String(),
			TUI:     c.dev.TUIState().String(),
			Display: c.dev.ID(),
		})
	}
	return nil
}

// Run executes a device request that has no dedicated controller method,
// under the controller's lock, and reports its outcome like any other.
func (c *Controller) Run(request string, fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := fn()
	if err != nil {
		c.report(request, err)
	}
	return err
}

func (c *Controller) notifyPower() {
	if c.ns == nil {
		return
	}
	notifications.PowerChanged(c.ns, models.PowerParams{
		At:        c.clock.Now(),
		Power:     c.dev.PowerState().String(),
		PanelMode: c.dev.PanelMode().String(),
		Display:   c.dev.ID(),
	})
}

func (c *Controller) report(request string, err error) {
	kind := display.Kind(err)
	if kind == display.KindDeferred {
		log.Info().
			Uint32("display", c.dev.ID()).
			Str("request", request).
			Err(err).
			Msg("request deferred")
		if c.ns != nil {
			notifications.RequestDeferred(c.ns, models.DeferredParams{
				At:      c.clock.Now(),
				Request: request,
				Reason:  err.Error(),
				Display: c.dev.ID(),
			})
		}
		return
	}

	log.Error().
		Uint32("display", c.dev.ID()).
		Str("request", request).
		Stringer("kind", kind).
		Err(err).
		Msg("request failed")
}
