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

// Package manager owns the process-wide state shared by every display: the
// destination scaler pool and the set of live display instances. Creating
// a display allocates its scaler blocks; removing it returns them.
package manager

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/periphctl/periphctl/pkg/api/models"
	"github.com/periphctl/periphctl/pkg/api/notifications"
	"github.com/periphctl/periphctl/pkg/config"
	"github.com/periphctl/periphctl/pkg/display"
	"github.com/periphctl/periphctl/pkg/helpers/syncutil"
	"github.com/periphctl/periphctl/pkg/lifecycle"
	"github.com/periphctl/periphctl/pkg/peripheral"
	"github.com/periphctl/periphctl/pkg/scaler"
	"github.com/periphctl/periphctl/pkg/transaction"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

type instance struct {
	periph *peripheral.Peripheral
	ctrl   *lifecycle.Controller
}

type Manager struct {
	exec     transaction.Executor
	features peripheral.FeatureManager
	fs       afero.Fs
	clock    clockwork.Clock
	pool     *scaler.Pool
	ns       chan<- models.Notification
	displays map[uint32]*instance
	mu       syncutil.Mutex
	bootID   uuid.UUID
	closed   bool
}

type Option func(*Manager)

// WithFs sets where backlight nodes are read. Defaults to the OS
// filesystem.
func WithFs(fs afero.Fs) Option {
	return func(m *Manager) {
		m.fs = fs
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

func WithNotifications(ns chan<- models.Notification) Option {
	return func(m *Manager) {
		m.ns = ns
	}
}

func WithFeatures(features peripheral.FeatureManager) Option {
	return func(m *Manager) {
		m.features = features
	}
}

// New creates a manager with a scaler pool of poolCapacity blocks. Every
// display it creates submits through exec.
func New(poolCapacity int, exec transaction.Executor, opts ...Option) *Manager {
	m := &Manager{
		exec:     exec,
		fs:       afero.NewOsFs(),
		clock:    clockwork.NewRealClock(),
		pool:     scaler.NewPool(poolCapacity),
		displays: make(map[uint32]*instance),
		bootID:   uuid.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	log.Info().
		Str("boot_id", m.bootID.String()).
		Int("pool_capacity", poolCapacity).
		Msg("display manager started")
	return m
}

// FromConfig builds a manager and one display per configured entry. When
// any display fails to initialize the ones already created are closed.
func FromConfig(vals *config.Values, exec transaction.Executor, opts ...Option) (*Manager, error) {
	m := New(vals.Scaler.PoolCapacity, exec, opts...)
	for i := range vals.Displays {
		cfg, err := vals.Displays[i].PeripheralConfig()
		if err == nil {
			_, err = m.Add(cfg)
		}
		if err != nil {
			m.Close()
			return nil, err
		}
	}
	return m, nil
}

func (m *Manager) BootID() uuid.UUID {
	return m.bootID
}

func (m *Manager) Pool() *scaler.Pool {
	return m.pool
}

// Add creates a display from cfg and returns its controller.
func (m *Manager) Add(cfg peripheral.Config) (*lifecycle.Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("add display %d: manager closed: %w", cfg.ID, display.ErrNotSupported)
	}
	if _, ok := m.displays[cfg.ID]; ok {
		return nil, fmt.Errorf("add display %d: already exists: %w", cfg.ID, display.ErrParameters)
	}

	p, err := peripheral.New(cfg, peripheral.Deps{
		Executor:  m.exec,
		Pool:      m.pool,
		Features:  m.features,
		Fs:        m.fs,
		OnHandoff: m.handoff,
	})
	if err != nil {
		return nil, fmt.Errorf("add display %d: %w", cfg.ID, err)
	}

	opts := []lifecycle.Option{lifecycle.WithClock(m.clock)}
	if m.ns != nil {
		opts = append(opts, lifecycle.WithNotifications(m.ns))
	}
	inst := &instance{periph: p, ctrl: lifecycle.NewController(p, opts...)}
	m.displays[cfg.ID] = inst

	m.notify(notifications.DisplayAdded, p)
	return inst.ctrl, nil
}

// Controller returns the controller of a live display.
func (m *Manager) Controller(id uint32) (*lifecycle.Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.displays[id]
	if !ok {
		return nil, false
	}
	return inst.ctrl, true
}

// Peripheral returns the peripheral of a live display. Calls on it must go
// through Controller.Run when other goroutines drive the same display.
func (m *Manager) Peripheral(id uint32) (*peripheral.Peripheral, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.displays[id]
	if !ok {
		return nil, false
	}
	return inst.periph, true
}

// IDs returns the ids of the live displays in ascending order.
func (m *Manager) IDs() []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.displays))
}

// Remove destroys a display and returns its scaler blocks to the pool.
func (m *Manager) Remove(id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.displays[id]
	if !ok {
		return fmt.Errorf("remove display %d: %w", id, display.ErrParameters)
	}
	m.closeInstance(id, inst)
	return nil
}

// Close destroys every display. The manager accepts no new displays
// afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range slices.Sorted(maps.Keys(m.displays)) {
		m.closeInstance(id, m.displays[id])
	}
	m.closed = true
}

func (m *Manager) closeInstance(id uint32, inst *instance) {
	// the controller lock keeps teardown from racing a request in flight
	err := inst.ctrl.Run("close", func() error {
		inst.periph.Close()
		return nil
	})
	if err != nil {
		log.Error().Err(err).Uint32("display", id).Msg("error closing display")
	}
	delete(m.displays, id)
	m.notify(notifications.DisplayRemoved, inst.periph)
}

func (m *Manager) notify(
	send func(chan<- models.Notification, models.DisplayParams),
	p *peripheral.Peripheral,
) {
	if m.ns == nil {
		return
	}
	send(m.ns, models.DisplayParams{
		Name:         p.Name(),
		ID:           p.ID(),
		ScalerBlocks: p.ScalerBlocks(),
	})
}

func (m *Manager) handoff(displayID uint32, state display.TUIState) {
	if m.ns == nil {
		return
	}
	notifications.Handoff(m.ns, models.HandoffParams{
		State:   state.String(),
		Display: displayID,
	})
}

var errNoDisplays = errors.New("no displays configured")

// Allocation is the scaler-block grant a display would receive.
type Allocation struct {
	Name      string
	Split     display.SplitType
	ID        uint32
	Requested int
	Granted   int
}

// PlanAllocations replays scaler allocation for the configured displays, in
// configuration order, against a scratch pool of the configured capacity.
func PlanAllocations(vals *config.Values) ([]Allocation, error) {
	if len(vals.Displays) == 0 {
		return nil, errNoDisplays
	}
	pool := scaler.NewPool(vals.Scaler.PoolCapacity)
	out := make([]Allocation, 0, len(vals.Displays))
	for i := range vals.Displays {
		cfg, err := vals.Displays[i].PeripheralConfig()
		if err != nil {
			return nil, err
		}
		requested := scaler.BlocksForSplit(cfg.Split)
		granted := 0
		if pool.Capacity() > 0 {
			granted = pool.TryAllocate(requested)
		}
		out = append(out, Allocation{
			Name:      cfg.Name,
			Split:     cfg.Split,
			ID:        cfg.ID,
			Requested: requested,
			Granted:   granted,
		})
	}
	return out, nil
}
