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

package mocks

import (
	"context"
	"fmt"

	"github.com/periphctl/periphctl/pkg/display"
	"github.com/periphctl/periphctl/pkg/lifecycle"
	"github.com/stretchr/testify/mock"
)

// MockDevice is a mock implementation of lifecycle.Device. Transitions go
// through testify/mock; state accessors read the exported fields so tests
// can move them from a Run callback.
type MockDevice struct {
	mock.Mock
	Power     display.PowerState
	Panel     display.PanelMode
	TUI       display.TUIState
	Mode      uint32
	DisplayID uint32
}

func (m *MockDevice) called(args ...any) error {
	ret := m.Called(args...)
	if err := ret.Error(0); err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}

func (m *MockDevice) Validate(ctx context.Context, frame *display.FrameInfo) error {
	return m.called(ctx, frame)
}

func (m *MockDevice) Commit(ctx context.Context, frame *display.FrameInfo) error {
	return m.called(ctx, frame)
}

func (m *MockDevice) Flush(ctx context.Context) error {
	return m.called(ctx)
}

func (m *MockDevice) PowerOn(ctx context.Context, qos display.QosData) error {
	return m.called(ctx, qos)
}

func (m *MockDevice) PowerOff(ctx context.Context, teardown bool) error {
	return m.called(ctx, teardown)
}

func (m *MockDevice) Doze(ctx context.Context, qos display.QosData) error {
	return m.called(ctx, qos)
}

func (m *MockDevice) DozeSuspend(ctx context.Context, qos display.QosData) error {
	return m.called(ctx, qos)
}

func (m *MockDevice) HandleSecureEvent(ctx context.Context, ev display.SecureEvent, qos display.QosData) error {
	return m.called(ctx, ev, qos)
}

func (m *MockDevice) ID() uint32                     { return m.DisplayID }
func (m *MockDevice) PowerState() display.PowerState { return m.Power }
func (m *MockDevice) PanelMode() display.PanelMode   { return m.Panel }
func (m *MockDevice) TUIState() display.TUIState     { return m.TUI }
func (m *MockDevice) CurrentMode() uint32            { return m.Mode }

var _ lifecycle.Device = (*MockDevice)(nil)
