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

package helpers

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/periphctl/periphctl/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// InitLogging replaces the global logger, so this test is not parallel.
func TestInitLogging(t *testing.T) {
	prevLogger := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	dir := filepath.Join(t.TempDir(), "logs", "nested")
	var extra bytes.Buffer
	require.NoError(t, InitLogging(dir, true, &extra))

	log.Debug().Uint32("display", 3).Msg("display peripheral initialized")

	assert.Contains(t, extra.String(), `"display":3`)
	assert.Contains(t, extra.String(), `"caller"`)

	data, err := os.ReadFile(filepath.Join(dir, config.LogFile))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "display peripheral initialized"))

	_, err = LogWriter().Write([]byte("{}\n"))
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestInitLogging_BadDirectory(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	err := InitLogging(filepath.Join(file, "logs"), false)
	require.Error(t, err)
}
