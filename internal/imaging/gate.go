// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package imaging

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

// GateParams holds the green-dominance thresholds.
type GateParams struct {
	// SampleSize is how many leading pixels are inspected.
	SampleSize int
	// GreenThreshold is the count of green-dominant pixels that must be exceeded.
	GreenThreshold int
	// MinPixels rejects images with fewer total pixels.
	MinPixels int
}

// DefaultGateParams returns K=1000, T=200, M=100.
func DefaultGateParams() GateParams {
	return GateParams{SampleSize: 1000, GreenThreshold: 200, MinPixels: 100}
}

// Gate rejects images that are clearly not plant material.
type Gate struct {
	params GateParams
	logger *log.Logger
}

// NewGate creates a gate. A nil logger is replaced with a discarding one.
func NewGate(params GateParams, logger *log.Logger) *Gate {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Gate{params: params, logger: logger}
}

// Params returns the thresholds in use.
func (g *Gate) Params() GateParams { return g.params }

// Admit reports whether buf should be classified. Any fault inside the check
// admits the image.
func (g *Gate) Admit(buf *Buffer) (admit bool) {
	defer func() {
		if r := recover(); r != nil {
			g.fault(fmt.Sprint(r))
			admit = true
		}
	}()

	if buf == nil {
		g.fault("nil buffer")
		return true
	}
	total := buf.Len()
	if total < 0 || len(buf.Pix) < total*3 {
		g.fault(fmt.Sprintf("pixel data shorter than %dx%d", buf.Width, buf.Height))
		return true
	}
	if total < g.params.MinPixels {
		return false
	}

	return g.CountGreen(buf) > g.params.GreenThreshold
}

// CountGreen counts pixels among the first SampleSize whose green channel
// strictly exceeds red and blue.
func (g *Gate) CountGreen(buf *Buffer) int {
	n := buf.Len()
	if g.params.SampleSize < n {
		n = g.params.SampleSize
	}
	count := 0
	for i := 0; i < n; i++ {
		r, gr, b := buf.At(i)
		if gr > r && gr > b {
			count++
		}
	}
	return count
}

func (g *Gate) fault(reason string) {
	g.logger.Warn("GATE_FAULT", "reason", reason, "action", "admit")
}
