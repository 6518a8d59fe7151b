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

	"github.com/periphctl/periphctl/pkg/transaction"
	"github.com/stretchr/testify/mock"
)

// MockExecutor is a mock implementation of transaction.Executor using
// testify/mock.
type MockExecutor struct {
	mock.Mock
}

// NewMockExecutor returns an executor that accepts every batch.
func NewMockExecutor() *MockExecutor {
	m := &MockExecutor{}
	m.On("Validate", mock.Anything, mock.AnythingOfType("*transaction.Batch")).Return(nil).Maybe()
	m.On("Commit", mock.Anything, mock.AnythingOfType("*transaction.Batch")).
		Return(transaction.Result{}, nil).Maybe()
	m.On("Flush", mock.Anything, mock.AnythingOfType("*transaction.Batch")).Return(nil).Maybe()
	return m
}

func (m *MockExecutor) Validate(ctx context.Context, b *transaction.Batch) error {
	args := m.Called(ctx, b)
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}

func (m *MockExecutor) Commit(ctx context.Context, b *transaction.Batch) (transaction.Result, error) {
	args := m.Called(ctx, b)
	res, _ := args.Get(0).(transaction.Result)
	if err := args.Error(1); err != nil {
		return res, fmt.Errorf("mock operation failed: %w", err)
	}
	return res, nil
}

func (m *MockExecutor) Flush(ctx context.Context, b *transaction.Batch) error {
	args := m.Called(ctx, b)
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}

// Batches returns the batches passed to method, in call order.
func (m *MockExecutor) Batches(method string) []*transaction.Batch {
	var out []*transaction.Batch
	for _, call := range m.Calls {
		if call.Method != method {
			continue
		}
		if b, ok := call.Arguments.Get(1).(*transaction.Batch); ok {
			out = append(out, b)
		}
	}
	return out
}

var _ transaction.Executor = (*MockExecutor)(nil)
