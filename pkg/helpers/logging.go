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

// Package helpers holds process-wide plumbing shared by the periphctl
// binaries.
package helpers

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/periphctl/periphctl/pkg/config"
	"github.com/periphctl/periphctl/pkg/helpers/syncutil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

var (
	logMu     syncutil.Mutex
	logWriter io.Writer = os.Stderr
)

// InitLogging points the global logger at a rotating file in logDir plus
// any extra writers, such as stderr in verbose mode.
func InitLogging(logDir string, debug bool, writers ...io.Writer) error {
	err := os.MkdirAll(logDir, 0o750)
	if err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logWriters := []io.Writer{&lumberjack.Logger{
		Filename:   filepath.Join(logDir, config.LogFile),
		MaxSize:    1,
		MaxBackups: 2,
	}}
	logWriters = append(logWriters, writers...)

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	w := io.MultiWriter(logWriters...)
	logMu.Lock()
	logWriter = w
	logMu.Unlock()

	log.Logger = log.Output(w).With().Timestamp().Caller().Logger()
	return nil
}

// LogWriter returns the writer InitLogging installed, so other sinks can
// be layered next to it.
func LogWriter() io.Writer {
	logMu.Lock()
	defer logMu.Unlock()
	return logWriter
}
