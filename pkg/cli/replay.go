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

package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/periphctl/periphctl/pkg/display"
	"github.com/periphctl/periphctl/pkg/lifecycle"
	"github.com/periphctl/periphctl/pkg/manager"
	"github.com/periphctl/periphctl/pkg/peripheral"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one replayed request. Value carries the mode
// index chosen by an alternate_config request.
type Result struct {
	Err     error
	Op      string
	Value   uint64
	Index   int
	Display uint32
	Kind    display.ErrorKind
}

type target struct {
	ctrl   *lifecycle.Controller
	periph *peripheral.Peripheral
}

// Replay runs every display's requests against m. Request failures are
// results, not errors; Replay only fails when a display is unknown or ctx
// is cancelled. Results are in script order.
func Replay(ctx context.Context, m *manager.Manager, s *Script) ([]Result, error) {
	targets := make([]target, len(s.Displays))
	for i, d := range s.Displays {
		ctrl, ok := m.Controller(d.ID)
		periph, pok := m.Peripheral(d.ID)
		if !ok || !pok {
			return nil, fmt.Errorf("%w: display %d is not configured", ErrInvalidScript, d.ID)
		}
		targets[i] = target{ctrl: ctrl, periph: periph}
	}

	perDisplay := make([][]Result, len(s.Displays))
	g, gctx := errgroup.WithContext(ctx)
	for i := range s.Displays {
		g.Go(func() error {
			d := s.Displays[i]
			out := make([]Result, 0, len(d.Requests))
			for j := range d.Requests {
				if err := gctx.Err(); err != nil {
					return fmt.Errorf("display %d: %w", d.ID, err)
				}
				req := &d.Requests[j]
				value, err := targets[i].apply(gctx, req)
				out = append(out, Result{
					Err:     err,
					Op:      req.Op,
					Value:   value,
					Index:   j,
					Display: d.ID,
					Kind:    display.Kind(err),
				})
			}
			perDisplay[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	var results []Result
	for _, out := range perDisplay {
		results = append(results, out...)
	}
	log.Debug().Int("requests", len(results)).Msg("script replayed")
	return results, nil
}

func (t target) apply(ctx context.Context, req *Request) (uint64, error) {
	switch req.Op {
	case OpPower:
		state, err := display.ParsePowerState(req.State)
		if err != nil {
			return 0, err
		}
		return 0, t.ctrl.SetPowerState(ctx, state, display.QosData{})
	case OpValidate:
		return 0, t.ctrl.Validate(ctx, req.Frame())
	case OpCommit:
		return 0, t.ctrl.Commit(ctx, req.Frame())
	case OpFlush:
		return 0, t.ctrl.Flush(ctx)
	case OpSecureEvent:
		ev, err := display.ParseSecureEvent(req.Event)
		if err != nil {
			return 0, err
		}
		return 0, t.ctrl.HandleSecureEvent(ctx, ev, display.QosData{})
	case OpRefreshRate:
		return 0, t.ctrl.Run(req.Op, func() error {
			return t.periph.SetRefreshRate(uint32(req.Value))
		})
	case OpBitClock:
		return 0, t.ctrl.Run(req.Op, func() error {
			return t.periph.SetDynamicDSIClock(req.Value)
		})
	case OpDisplayAttributes:
		return 0, t.ctrl.Run(req.Op, func() error {
			return t.periph.SetDisplayAttributes(uint32(req.Value))
		})
	case OpAlternateConfig:
		var index uint32
		err := t.ctrl.Run(req.Op, func() error {
			var err error
			index, err = t.periph.SetAlternateDisplayConfig()
			return err
		})
		return uint64(index), err
	case OpBrightness:
		return 0, t.ctrl.Run(req.Op, func() error {
			return t.periph.SetPanelBrightness(int(req.Value))
		})
	case OpIdlePowerCollapse:
		return 0, t.ctrl.Run(req.Op, func() error {
			t.periph.ControlIdlePowerCollapse(req.Enable)
			return nil
		})
	case OpFrameTrigger:
		return 0, t.ctrl.Run(req.Op, func() error {
			return t.periph.SetFrameTrigger(display.FrameTriggerMode(req.Value))
		})
	default:
		return 0, fmt.Errorf("unknown op %q: %w", req.Op, display.ErrParameters)
	}
}

// PrintResults writes one row per result.
func PrintResults(w io.Writer, results []Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "DISPLAY\t#\tOP\tOUTCOME\tDETAIL")
	for _, r := range results {
		detail := ""
		switch {
		case r.Err != nil:
			detail = r.Err.Error()
		case r.Op == OpAlternateConfig:
			detail = fmt.Sprintf("mode %d", r.Value)
		}
		_, _ = fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", r.Display, r.Index, r.Op, r.Kind, detail)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

// PrintAllocations writes the scaler plan of a configuration.
func PrintAllocations(w io.Writer, plan []manager.Allocation) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "DISPLAY\tNAME\tSPLIT\tREQUESTED\tGRANTED")
	for _, a := range plan {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\n", a.ID, a.Name, a.Split, a.Requested, a.Granted)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write allocations: %w", err)
	}
	return nil
}
