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

package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

type FieldError struct {
	Value   any
	Field   string
	Tag     string
	Message string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid config"
	}
	msgs := make([]string, len(e.Fields))
	for i, fe := range e.Fields {
		msgs[i] = fe.Message
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateValues, Values{})
	v.RegisterStructValidation(validateDisplay, Display{})
	v.RegisterStructValidation(validateMode, Mode{})
	return v
}

// Validate checks vals against the field tags and the cross-field rules the
// tags cannot express: unique display ids and in-range mode indices.
func Validate(vals *Values) error {
	err := validate.Struct(vals)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validation failed: %w", err)
	}
	ve := &ValidationError{Fields: make([]FieldError, len(verrs))}
	for i, fe := range verrs {
		ve.Fields[i] = FieldError{
			Field:   fe.Namespace(),
			Tag:     fe.Tag(),
			Value:   fe.Value(),
			Message: formatFieldError(fe),
		}
	}
	return ve
}

func validateValues(sl validator.StructLevel) {
	vals, ok := sl.Current().Interface().(Values)
	if !ok {
		return
	}
	seen := make(map[uint32]bool, len(vals.Displays))
	for i, d := range vals.Displays {
		if seen[d.ID] {
			name := fmt.Sprintf("Displays[%d].ID", i)
			sl.ReportError(d.ID, name, name, "unique_id", "")
		}
		seen[d.ID] = true
	}
}

func validateDisplay(sl validator.StructLevel) {
	d, ok := sl.Current().Interface().(Display)
	if !ok {
		return
	}
	n := uint32(len(d.Modes)) //nolint:gosec // mode tables are tiny
	if n == 0 {
		return
	}
	if d.CurrentMode >= n {
		sl.ReportError(d.CurrentMode, "CurrentMode", "CurrentMode", "mode_index", "")
	}
	if !d.SwitchModeValid {
		return
	}
	if d.VideoModeIndex >= n {
		sl.ReportError(d.VideoModeIndex, "VideoModeIndex", "VideoModeIndex", "mode_index", "")
	}
	if d.CmdModeIndex >= n {
		sl.ReportError(d.CmdModeIndex, "CmdModeIndex", "CmdModeIndex", "mode_index", "")
	}
}

func validateMode(sl validator.StructLevel) {
	m, ok := sl.Current().Interface().(Mode)
	if !ok {
		return
	}
	if len(m.SubModes) > 0 && int(m.SubMode) >= len(m.SubModes) {
		sl.ReportError(m.SubMode, "SubMode", "SubMode", "mode_index", "")
	}
	if m.PanelMode != "" && !slices.Contains(m.PanelModes, m.PanelMode) {
		sl.ReportError(m.PanelMode, "PanelMode", "PanelMode", "panel_mode", "")
	}
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "url":
		return field + " must be a valid URL"
	case "hostname_port":
		return field + " must be a host:port address"
	case "cidr|ip":
		return fmt.Sprintf("%s %q must be an IP address or CIDR network", field, fe.Value())
	case "unique_id":
		return fmt.Sprintf("%s %v is used by more than one display", field, fe.Value())
	case "mode_index":
		return fmt.Sprintf("%s %v is out of range", field, fe.Value())
	case "panel_mode":
		return fmt.Sprintf("%s %q is not one of the mode's panel modes", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
