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
	"os"

	"github.com/periphctl/periphctl/pkg/cli"
	"github.com/periphctl/periphctl/pkg/manager"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Show the scaler blocks each configured display would receive",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		vals, err := loadConfig(afero.NewOsFs())
		if err != nil {
			return err
		}
		plan, err := manager.PlanAllocations(vals)
		if err != nil {
			return err
		}
		return cli.PrintAllocations(os.Stdout, plan)
	},
}

func init() {
	rootCmd.AddCommand(poolCmd)
}
