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
	"fmt"

	"github.com/periphctl/periphctl/pkg/config"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var force bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		fs := afero.NewOsFs()
		path := configPath()
		if _, err := fs.Stat(path); err == nil && !force {
			return fmt.Errorf("config file %s already exists, use --force to overwrite", path)
		}
		if err := config.Save(fs, path, config.Example()); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}
