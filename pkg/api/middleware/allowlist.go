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
	"fmt"
	"net"
	"net/http"

	"github.com/rs/zerolog/log"
)

// RemoteIP extracts the IP of a RemoteAddr, with or without a port. It
// returns nil when the address cannot be parsed.
func RemoteIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return net.ParseIP(host)
}

// AllowList admits clients by address or network. An empty list admits
// every client.
type AllowList struct {
	nets  []*net.IPNet
	addrs []net.IP
}

// NewAllowList parses entries as IPs or CIDR networks.
func NewAllowList(entries []string) (*AllowList, error) {
	a := &AllowList{}
	for _, entry := range entries {
		if _, network, err := net.ParseCIDR(entry); err == nil {
			a.nets = append(a.nets, network)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			return nil, fmt.Errorf("invalid allowed address %q", entry)
		}
		a.addrs = append(a.addrs, ip)
	}
	return a, nil
}

func (a *AllowList) Allows(remoteAddr string) bool {
	if len(a.nets) == 0 && len(a.addrs) == 0 {
		return true
	}

	ip := RemoteIP(remoteAddr)
	if ip == nil {
		log.Warn().Str("addr", remoteAddr).Msg("failed to parse client address")
		return false
	}
	for _, allowed := range a.addrs {
		if ip.Equal(allowed) {
			return true
		}
	}
	for _, network := range a.nets {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// AllowListHandler rejects requests, websocket upgrades included, from
// clients the list does not admit.
func AllowListHandler(a *AllowList) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.Allows(r.RemoteAddr) {
				log.Debug().
					Str("addr", r.RemoteAddr).
					Str("path", r.URL.Path).
					Msg("request from blocked address")
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
