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

package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/periphctl/periphctl/pkg/config"
	"github.com/periphctl/periphctl/pkg/helpers"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// version is set at build time.
var version = "DEVELOPMENT"

var (
	cfgPath string
	logDir  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "periphctl",
	Short: "Display peripheral control plane.",
	Long: `periphctl drives built-in display panels through power, frame, ` +
		`refresh and secure session requests, sharing one destination ` +
		`scaler pool between every configured display.`,
	Version:       version,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "",
		"config file (default "+config.Path(defaultConfigDir())+")")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", filepath.Join(xdg.StateHome, config.AppName),
		"directory for the rotating log file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"log to stderr at debug level")
}

func defaultConfigDir() string {
	return filepath.Join(xdg.ConfigHome, config.AppName)
}

func configPath() string {
	if cfgPath != "" {
		return cfgPath
	}
	return config.Path(defaultConfigDir())
}

// loadConfig reads the config and starts logging with its debug setting.
func loadConfig(fs afero.Fs) (*config.Values, error) {
	vals, err := config.Load(fs, configPath())
	if err != nil {
		return nil, err
	}

	var writers []io.Writer
	if verbose {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if err := helpers.InitLogging(logDir, vals.DebugLogging || verbose, writers...); err != nil {
		return nil, err
	}
	return vals, nil
}
