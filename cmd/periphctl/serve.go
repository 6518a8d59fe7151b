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
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/adrg/xdg"
	"github.com/jonboulle/clockwork"
	"github.com/periphctl/periphctl/internal/telemetry"
	"github.com/periphctl/periphctl/pkg/api"
	"github.com/periphctl/periphctl/pkg/api/middleware"
	"github.com/periphctl/periphctl/pkg/api/models"
	"github.com/periphctl/periphctl/pkg/cli"
	"github.com/periphctl/periphctl/pkg/config"
	"github.com/periphctl/periphctl/pkg/database/journal"
	"github.com/periphctl/periphctl/pkg/manager"
	"github.com/periphctl/periphctl/pkg/service/broker"
	"github.com/periphctl/periphctl/pkg/transaction"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve display status and stream notifications over HTTP",
	Long: `serve creates the configured displays and exposes their state on ` +
		`/api/displays and /api/pool, streaming every notification on the ` +
		`/api/ws websocket. When the journal is enabled notifications are ` +
		`recorded and served on /api/events. With --script the requests are ` +
		`replayed once the server is up.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, afero.NewOsFs())
	},
}

func init() {
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "",
		"listen address (default from config, then "+api.DefaultListen+")")
	serveCmd.Flags().StringVarP(&scriptPath, "script", "s", "", "YAML request script to replay")
	serveCmd.Flags().DurationVar(&vsync, "vsync", defaultVsync,
		"vsync period used to signal release fences")
	rootCmd.AddCommand(serveCmd)
}

func listenAddress(vals *config.Values) string {
	switch {
	case listenAddr != "":
		return listenAddr
	case vals.API.Listen != "":
		return vals.API.Listen
	default:
		return api.DefaultListen
	}
}

func serve(ctx context.Context, fs afero.Fs) error {
	vals, err := loadConfig(fs)
	if err != nil {
		return err
	}

	var script *cli.Script
	if scriptPath != "" {
		script, err = cli.LoadScript(fs, scriptPath)
		if err != nil {
			return err
		}
	}

	source := make(chan models.Notification, 256)
	bctx, cancelBroker := context.WithCancel(ctx)
	b := broker.NewBroker(bctx, source)
	b.Start()
	defer func() {
		cancelBroker()
		<-b.Done()
	}()

	m, err := manager.FromConfig(vals, transaction.NewRecorder(transaction.WithReleaseFences(vsync)),
		manager.WithFs(fs),
		manager.WithNotifications(source),
	)
	if err != nil {
		return fmt.Errorf("failed to create displays: %w", err)
	}
	defer m.Close()
	startTelemetry(vals, m)
	defer telemetry.Close()

	opts := api.Options{
		AllowedIPs: vals.API.AllowedIPs,
		Limits: middleware.Limits{
			PerSecond: vals.API.RateLimit,
			Burst:     vals.API.RateBurst,
		},
	}
	if vals.Journal.Enabled {
		j, stopJournal, err := startJournal(ctx, vals, m, b)
		if err != nil {
			return err
		}
		defer stopJournal()
		opts.Events = j
	}

	srv, err := api.NewServer(m, opts)
	if err != nil {
		return err
	}
	notifs, _ := b.Subscribe(256)
	go srv.Broadcast(ctx, notifs)

	if script != nil {
		go func() {
			results, err := cli.Replay(ctx, m, script)
			if err != nil {
				log.Error().Err(err).Msg("script replay failed")
				return
			}
			log.Info().Int("requests", len(results)).Msg("script replayed")
		}()
	}

	return srv.Serve(ctx, listenAddress(vals))
}

func journalPath(vals *config.Values) string {
	if vals.Journal.Path != "" {
		return vals.Journal.Path
	}
	return filepath.Join(xdg.DataHome, config.AppName, journal.File)
}

// startJournal records every broker notification until the returned stop
// func is called, which also closes the database.
func startJournal(
	ctx context.Context,
	vals *config.Values,
	m *manager.Manager,
	b *broker.Broker,
) (*journal.Journal, func(), error) {
	j, err := journal.Open(ctx, journalPath(vals), m.BootID().String(), clockwork.NewRealClock())
	if err != nil {
		return nil, nil, err
	}
	notifs, _ := b.Subscribe(256)
	retention := time.Duration(vals.Journal.RetentionDays) * 24 * time.Hour

	jctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		j.Run(jctx, notifs, retention)
	}()

	return j, func() {
		cancel()
		<-done
		if err := j.Close(); err != nil {
			log.Warn().Err(err).Msg("closing event journal")
		}
	}, nil
}
