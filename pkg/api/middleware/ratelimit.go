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

package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/olahol/melody"
	"github.com/periphctl/periphctl/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	DefaultPerSecond = 5
	DefaultBurst     = 20
)

// Limits is the token bucket given to each client address.
type Limits struct {
	PerSecond float64
	Burst     int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client address. Buckets are
// refilled on its clock, so tests can drive it with a fake one.
type RateLimiter struct {
	clock    clockwork.Clock
	limiters map[string]*limiterEntry
	limits   Limits
	mu       syncutil.Mutex
}

// NewRateLimiter creates a limiter. Zero limits fall back to the defaults.
func NewRateLimiter(limits Limits, clock clockwork.Clock) *RateLimiter {
	if limits.PerSecond <= 0 {
		limits.PerSecond = DefaultPerSecond
	}
	if limits.Burst <= 0 {
		limits.Burst = DefaultBurst
	}
	return &RateLimiter{
		clock:    clock,
		limiters: make(map[string]*limiterEntry),
		limits:   limits,
	}
}

// Allow takes one token from the bucket of addr.
func (rl *RateLimiter) Allow(addr string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	entry, ok := rl.limiters[addr]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(rl.limits.PerSecond), rl.limits.Burst)}
		rl.limiters[addr] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Prune forgets clients not seen for maxAge.
func (rl *RateLimiter) Prune(maxAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	for addr, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > maxAge {
			delete(rl.limiters, addr)
			log.Debug().Str("addr", addr).Msg("removed stale rate limiter")
		}
	}
}

// Clients is the number of addresses with a bucket.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// RunPruner prunes every interval until ctx is cancelled.
func (rl *RateLimiter) RunPruner(ctx context.Context, interval, maxAge time.Duration) {
	ticker := rl.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.Chan():
			rl.Prune(maxAge)
		case <-ctx.Done():
			return
		}
	}
}

func RateLimitHandler(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := RemoteIP(r.RemoteAddr).String()
			if !rl.Allow(addr) {
				log.Warn().
					Str("addr", addr).
					Str("path", r.URL.Path).
					Msg("http rate limit exceeded")
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMessages drops websocket messages from clients over their limit.
func RateLimitMessages(
	rl *RateLimiter,
	handler func(*melody.Session, []byte),
) func(*melody.Session, []byte) {
	return func(session *melody.Session, msg []byte) {
		addr := RemoteIP(session.Request.RemoteAddr).String()
		if !rl.Allow(addr) {
			log.Warn().
				Str("addr", addr).
				Int("msg_size", len(msg)).
				Msg("websocket rate limit exceeded")
			return
		}
		handler(session, msg)
	}
}
