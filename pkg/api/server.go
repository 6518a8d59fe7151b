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

// Package api serves read-only display status over HTTP and streams every
// display notification to websocket clients.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"
	"github.com/olahol/melody"
	"github.com/periphctl/periphctl/pkg/api/middleware"
	"github.com/periphctl/periphctl/pkg/api/models"
	"github.com/periphctl/periphctl/pkg/database/journal"
	"github.com/periphctl/periphctl/pkg/manager"
	"github.com/rs/zerolog/log"
)

const (
	DefaultListen  = "127.0.0.1:7499"
	requestTimeout = 10 * time.Second
	shutdownGrace  = 5 * time.Second
	pruneInterval  = 5 * time.Minute
	pruneAge       = 10 * time.Minute
)

// EventSource is the notification history served on /api/events.
type EventSource interface {
	Events(ctx context.Context, q journal.Query) ([]journal.Event, error)
}

type Options struct {
	Clock      clockwork.Clock
	Events     EventSource
	AllowedIPs []string
	Limits     middleware.Limits
}

type Server struct {
	mgr     *manager.Manager
	events  EventSource
	ws      *melody.Melody
	router  chi.Router
	limiter *middleware.RateLimiter
}

func NewServer(mgr *manager.Manager, opts Options) (*Server, error) {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	allow, err := middleware.NewAllowList(opts.AllowedIPs)
	if err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}

	s := &Server{
		mgr:     mgr,
		events:  opts.Events,
		ws:      melody.New(),
		limiter: middleware.NewRateLimiter(opts.Limits, opts.Clock),
	}
	s.ws.Upgrader.CheckOrigin = func(*http.Request) bool { return true }
	s.ws.HandleMessage(middleware.RateLimitMessages(s.limiter, handleWSMessage))

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.NoCache)
	r.Use(middleware.AllowListHandler(allow))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"Accept"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitHandler(s.limiter))
			r.Use(chimiddleware.Timeout(requestTimeout))
			r.Get("/displays", s.handleDisplays)
			r.Get("/displays/{id}", s.handleDisplay)
			r.Get("/pool", s.handlePool)
			r.Get("/events", s.handleEvents)
		})
		r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
			if err := s.ws.HandleRequest(w, r); err != nil {
				log.Error().Err(err).Msg("handling websocket request")
			}
		})
	})
	s.router = r
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Broadcast forwards notifications to every websocket client until ctx is
// cancelled or notifs is closed.
func (s *Server) Broadcast(ctx context.Context, notifs <-chan models.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case notif, ok := <-notifs:
			if !ok {
				return
			}
			data, err := json.Marshal(struct {
				Method string          `json:"method"`
				Params json.RawMessage `json:"params,omitempty"`
			}{notif.Method, notif.Params})
			if err != nil {
				log.Error().Err(err).Msg("marshalling notification")
				continue
			}
			if err := s.ws.Broadcast(data); err != nil {
				log.Error().Err(err).Msg("broadcasting notification")
			}
		}
	}
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: requestTimeout,
	}

	pctx, stopPruner := context.WithCancel(ctx)
	defer stopPruner()
	go s.limiter.RunPruner(pctx, pruneInterval, pruneAge)

	errs := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("api server listening")
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := s.ws.Close(); err != nil {
		log.Warn().Err(err).Msg("closing websocket sessions")
	}
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	log.Info().Msg("api server stopped")
	return nil
}

func handleWSMessage(session *melody.Session, msg []byte) {
	// heartbeat only, the stream is one-way
	if string(msg) == "ping" {
		if err := session.Write([]byte("pong")); err != nil {
			log.Error().Err(err).Msg("sending pong")
		}
		return
	}
	log.Debug().Int("msg_size", len(msg)).Msg("ignoring websocket message")
}

func (s *Server) handleDisplays(w http.ResponseWriter, _ *http.Request) {
	ids := s.mgr.IDs()
	out := make([]models.DisplayStatus, 0, len(ids))
	for _, id := range ids {
		// removed between IDs and Status
		if st, ok := s.status(id); ok {
			out = append(out, st)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid display id"})
		return
	}
	st, ok := s.status(uint32(id))
	if !ok {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "display not found"})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePool(w http.ResponseWriter, _ *http.Request) {
	pool := s.mgr.Pool()
	writeJSON(w, http.StatusOK, models.PoolStatus{
		BootID:    s.mgr.BootID().String(),
		Capacity:  pool.Capacity(),
		Used:      pool.Used(),
		Available: pool.Available(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "event journal disabled"})
		return
	}

	var q journal.Query
	params := r.URL.Query()
	if v := params.Get("display"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid display id"})
			return
		}
		display := uint32(id)
		q.Display = &display
	}
	if v := params.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid limit"})
			return
		}
		q.Limit = limit
	}
	if v := params.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid since, expecting RFC 3339"})
			return
		}
		q.Since = since
	}

	events, err := s.events.Events(r.Context(), q)
	if err != nil {
		log.Error().Err(err).Msg("reading event journal")
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "failed to read events"})
		return
	}
	if events == nil {
		events = []journal.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) status(id uint32) (models.DisplayStatus, bool) {
	ctrl, ok := s.mgr.Controller(id)
	if !ok {
		return models.DisplayStatus{}, false
	}
	p, ok := s.mgr.Peripheral(id)
	if !ok {
		return models.DisplayStatus{}, false
	}

	var out models.DisplayStatus
	// the controller lock keeps the snapshot consistent with requests in flight
	_ = ctrl.Run("status", func() error {
		st := p.State()
		out = models.DisplayStatus{
			Name:         p.Name(),
			Power:        st.Power.String(),
			PendingPower: st.PendingPower.String(),
			PanelMode:    st.PanelMode.String(),
			TUI:          st.TUI.String(),
			SelfRefresh:  st.SelfRefresh.String(),
			ScalerBlocks: st.ScalerBlocks,
			BitClockRate: st.BitClockRate,
			ID:           id,
			Mode:         st.Mode,
			Active:       st.Active,
			FirstCycle:   st.FirstCycle,
			PomsPending:  st.PomsPending,
		}
		return nil
	})
	out.Frames = ctrl.Frames()
	return out, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("writing response")
	}
}
