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
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/periphctl/periphctl/internal/telemetry"
	"github.com/periphctl/periphctl/pkg/api/models"
	"github.com/periphctl/periphctl/pkg/cli"
	"github.com/periphctl/periphctl/pkg/config"
	"github.com/periphctl/periphctl/pkg/manager"
	"github.com/periphctl/periphctl/pkg/service/broker"
	"github.com/periphctl/periphctl/pkg/transaction"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const defaultVsync = 16 * time.Millisecond

var (
	scriptPath string
	vsync      time.Duration
	watch      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a request script against the configured displays",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runScript(ctx, afero.NewOsFs())
	},
}

func init() {
	runCmd.Flags().StringVarP(&scriptPath, "script", "s", "", "YAML request script")
	runCmd.Flags().DurationVar(&vsync, "vsync", defaultVsync,
		"vsync period used to signal release fences")
	runCmd.Flags().BoolVarP(&watch, "watch", "w", false, "print notifications as they are published")
	_ = runCmd.MarkFlagRequired("script")
	rootCmd.AddCommand(runCmd)
}

func runScript(ctx context.Context, fs afero.Fs) error {
	vals, err := loadConfig(fs)
	if err != nil {
		return err
	}

	script, err := cli.LoadScript(fs, scriptPath)
	if err != nil {
		return err
	}

	source := make(chan models.Notification, 64)
	bctx, cancelBroker := context.WithCancel(ctx)
	b := broker.NewBroker(bctx, source)
	b.Start()
	if watch {
		notifs, _ := b.Subscribe(64)
		go printNotifications(notifs)
	}
	defer func() {
		cancelBroker()
		<-b.Done()
	}()

	rec := transaction.NewRecorder(transaction.WithReleaseFences(vsync))
	m, err := manager.FromConfig(vals, rec,
		manager.WithFs(fs),
		manager.WithNotifications(source),
	)
	if err != nil {
		return fmt.Errorf("failed to create displays: %w", err)
	}
	defer m.Close()

	startTelemetry(vals, m)
	defer telemetry.Close()

	results, err := cli.Replay(ctx, m, script)
	if err != nil {
		return err
	}
	log.Info().
		Int("requests", len(results)).
		Int("submissions", len(rec.Submissions())).
		Msg("script finished")
	return cli.PrintResults(os.Stdout, results)
}

func printNotifications(notifs <-chan models.Notification) {
	for n := range notifs {
		_, _ = fmt.Fprintf(os.Stderr, "%s %s\n", n.Method, n.Params)
	}
}

func startTelemetry(vals *config.Values, m *manager.Manager) {
	err := telemetry.Init(vals.Telemetry.Enabled, vals.Telemetry.DSN, m.BootID().String(), version)
	switch {
	case errors.Is(err, telemetry.ErrNoDSN):
		log.Warn().Msg("telemetry enabled without a DSN, error reporting disabled")
	case err != nil:
		log.Error().Err(err).Msg("failed to start error reporting")
	}
}
