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

// Package brightness reads and writes a panel's backlight nodes. The nodes
// follow the sysfs layout <base>/brightness and <base>/max_brightness.
package brightness

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/periphctl/periphctl/pkg/display"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	// DefaultMaxBrightness is used when max_brightness cannot be read.
	DefaultMaxBrightness = 255.0
	// DefaultRoot is where backlight class devices live.
	DefaultRoot = "/sys/class/backlight"

	brightnessNode    = "brightness"
	maxBrightnessNode = "max_brightness"
	maxNodeLength     = 64
)

// BasePath returns the backlight directory of the panel behind a connector.
// Panel nodes are probed in connector order, so connector type id N maps to
// panel N-1.
func BasePath(root string, connectorTypeID uint32) string {
	if root == "" {
		root = DefaultRoot
	}
	panel := int64(connectorTypeID) - 1
	return path.Join(root, fmt.Sprintf("panel%d-backlight", panel)) + "/"
}

// Node accesses the backlight nodes of one panel.
type Node struct {
	fs   afero.Fs
	base string
}

// NewNode binds a base path on fs. An empty base path is allowed; every
// access then fails with display.ErrHardware.
func NewNode(fs afero.Fs, base string) *Node {
	return &Node{fs: fs, base: base}
}

// BasePath returns the base path or display.ErrHardware when none is known.
func (n *Node) BasePath() (string, error) {
	if n.base == "" {
		return "", fmt.Errorf("brightness base path empty: %w", display.ErrHardware)
	}
	return n.base, nil
}

// Set writes level to the brightness node.
func (n *Node) Set(level int) error {
	base, err := n.BasePath()
	if err != nil {
		return err
	}

	p := base + brightnessNode
	f, err := n.fs.OpenFile(p, os.O_RDWR, 0)
	if err != nil {
		log.Error().Err(err).Str("node", p).Msg("failed to open brightness node")
		return fmt.Errorf("open %s: %w", p, display.ErrFileDescriptor)
	}
	defer func() {
		_ = f.Close()
	}()

	written, err := f.WriteAt([]byte(strconv.Itoa(level)+"\n"), 0)
	if err != nil || written <= 0 {
		log.Error().Err(err).Str("node", p).Msg("failed to write brightness node")
		return fmt.Errorf("write %s: %w", p, display.ErrHardware)
	}
	return nil
}

// Get reads the brightness node.
func (n *Node) Get() (int, error) {
	base, err := n.BasePath()
	if err != nil {
		return 0, err
	}

	raw, err := n.read(base + brightnessNode)
	if err != nil {
		return 0, err
	}
	// atoi semantics: anything unparsable reads as zero
	level, _ := strconv.Atoi(raw)
	return level, nil
}

// Max reads max_brightness, falling back to DefaultMaxBrightness.
func (n *Node) Max() float64 {
	base, err := n.BasePath()
	if err != nil {
		return DefaultMaxBrightness
	}

	raw, err := n.read(base + maxBrightnessNode)
	if err != nil {
		return DefaultMaxBrightness
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Warn().Str("value", raw).Msg("unparsable max brightness")
		return DefaultMaxBrightness
	}
	log.Debug().Float64("max", v).Msg("max brightness")
	return v
}

func (n *Node) read(p string) (string, error) {
	f, err := n.fs.Open(p)
	if err != nil {
		log.Error().Err(err).Str("node", p).Msg("failed to open brightness node")
		return "", fmt.Errorf("open %s: %w", p, display.ErrFileDescriptor)
	}
	defer func() {
		_ = f.Close()
	}()

	buf := make([]byte, maxNodeLength)
	read, err := f.ReadAt(buf, 0)
	if read <= 0 || (err != nil && !errors.Is(err, io.EOF)) {
		log.Error().Err(err).Str("node", p).Msg("failed to read brightness node")
		return "", fmt.Errorf("read %s: %w", p, display.ErrHardware)
	}
	return strings.TrimSpace(string(buf[:read])), nil
}
