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
	"fmt"

	"github.com/periphctl/periphctl/pkg/peripheral"
	"github.com/periphctl/periphctl/pkg/transaction"
	"github.com/stretchr/testify/mock"
)

// MockFeatureManager is a mock implementation of peripheral.FeatureManager.
type MockFeatureManager struct {
	mock.Mock
}

func (m *MockFeatureManager) GetPanelFeature(req *peripheral.FeatureRequest) error {
	args := m.Called(req)
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}

func (m *MockFeatureManager) SetPanelFeature(req peripheral.FeatureRequest) error {
	args := m.Called(req)
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}

func (m *MockFeatureManager) MarkForNullCommit(obj transaction.Object, propID uint32) {
	m.Called(obj, propID)
}

func (m *MockFeatureManager) GetDppsFeatureInfo(info *peripheral.DppsFeatureInfo) error {
	args := m.Called(info)
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}

var _ peripheral.FeatureManager = (*MockFeatureManager)(nil)
