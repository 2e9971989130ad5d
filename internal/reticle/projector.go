// Package reticle projects angular aim corrections onto a fixed-size circular
// reticle and formats the corrections for display.
//
// Screen space has its origin at the reticle center with +x to the right and
// +y down. The correction marker is placed opposite the hold: aligning the
// marker with the target moves the point of impact onto it.
package reticle

import (
	"fmt"
	"math"

	"github.com/shottracker/shottracker/internal/util"
	"github.com/shottracker/shottracker/pkg/core"
)

// MOAPerMil is the exact number of minutes of angle in one milliradian.
const MOAPerMil = 3.437746770784928

// Config holds the reticle geometry.
type Config struct {
	Diameter      float64 // visual diameter in pixels
	PixelsPerMOA  float64
	ClampFraction float64 // marker offsets are limited to ±ClampFraction*Diameter
	LineThreshold float64 // pixels; shorter indicator lines are hidden
	DriftEpsilon  float64 // MOA; smaller drift is reported as none
}

// DefaultConfig returns the stock reticle geometry.
func DefaultConfig() Config {
	return Config{
		Diameter:      300,
		PixelsPerMOA:  5,
		ClampFraction: 0.35,
		LineThreshold: 1.5,
		DriftEpsilon:  0.05,
	}
}

func (c Config) valid() bool {
	return c.Diameter > 0 && c.PixelsPerMOA > 0 && c.ClampFraction > 0 && c.ClampFraction <= 0.5 &&
		c.LineThreshold >= 0 && c.DriftEpsilon >= 0
}

// Layout is the render description of one correction. Offsets are pixels from
// the reticle center.
type Layout struct {
	Diameter     float64 `json:"diameter"`
	PixelsPerMil float64 `json:"pixels_per_mil"`
	MaxOffset    float64 `json:"max_offset"`

	RawX    float64 `json:"raw_x"`
	RawY    float64 `json:"raw_y"`
	MarkerX float64 `json:"marker_x"`
	MarkerY float64 `json:"marker_y"`
	Clamped bool    `json:"clamped"`

	ShowVerticalLine   bool `json:"show_vertical_line"`
	ShowHorizontalLine bool `json:"show_horizontal_line"`

	DropLabel      string `json:"drop_label"`
	DriftLabel     string `json:"drift_label,omitempty"`
	ShowDriftLabel bool   `json:"show_drift_label"`

	HashMarks []HashMark `json:"hash_marks"`
}

// Projector lays out corrections on a reticle. The zero value is not usable;
// construct with New.
type Projector struct {
	cfg Config
}

// New creates a Projector. An invalid config falls back to DefaultConfig.
func New(cfg Config) *Projector {
	if !cfg.valid() {
		cfg = DefaultConfig()
	}
	return &Projector{cfg: cfg}
}

// Config returns the geometry the projector uses.
func (p *Projector) Config() Config {
	return p.cfg
}

// PixelsPerMil is the mil hash-mark spacing in the same pixel space as the
// MOA offsets.
func (p *Projector) PixelsPerMil() float64 {
	return p.cfg.PixelsPerMOA * MOAPerMil
}

// MaxOffset is the largest marker offset on either axis.
func (p *Projector) MaxOffset() float64 {
	return p.cfg.ClampFraction * p.cfg.Diameter
}

// Offsets returns the unclamped marker offsets for a drop and drift in MOA.
// A bullet that fell more puts the marker below center (+y); a bullet that
// drifted right puts it left of center (-x).
func (p *Projector) Offsets(dropMOA, driftMOA float64) (x, y float64) {
	y = dropMOA * p.cfg.PixelsPerMOA
	x = -driftMOA * p.cfg.PixelsPerMOA
	return x, y
}

// Project lays out a drop and drift correction.
func (p *Projector) Project(drop, drift core.Correction) Layout {
	rawX, rawY := p.Offsets(drop.MOA, drift.MOA)
	limit := p.MaxOffset()
	x := util.Clamp(rawX, limit)
	y := util.Clamp(rawY, limit)

	l := Layout{
		Diameter:     p.cfg.Diameter,
		PixelsPerMil: p.PixelsPerMil(),
		MaxOffset:    limit,
		RawX:         rawX,
		RawY:         rawY,
		MarkerX:      x,
		MarkerY:      y,
		Clamped:      x != rawX || y != rawY,

		ShowVerticalLine:   math.Abs(y) > p.cfg.LineThreshold,
		ShowHorizontalLine: math.Abs(x) > p.cfg.LineThreshold,

		DropLabel: DropLabel(drop),
		HashMarks: p.HashMarks(),
	}

	if math.Abs(util.Finite(drift.MOA)) > p.cfg.DriftEpsilon {
		l.ShowDriftLabel = true
		l.DriftLabel = DriftLabel(drift)
	}

	return l
}

// DropLabel describes the vertical hold, e.g. `UP 2.5 MOA (13")`.
func DropLabel(drop core.Correction) string {
	moa := util.Finite(drop.MOA)
	dir := "UP"
	if moa < 0 {
		dir = "DOWN"
	}
	return fmt.Sprintf("%s %.1f MOA (%s)", dir, math.Abs(moa), FormatLinear(math.Abs(drop.Inches)))
}

// DriftLabel describes the horizontal hold. Rightward drift is held left.
func DriftLabel(drift core.Correction) string {
	moa := util.Finite(drift.MOA)
	dir := "LEFT"
	if moa < 0 {
		dir = "RIGHT"
	}
	return fmt.Sprintf("%s %.1f MOA (%s)", dir, math.Abs(moa), FormatLinear(math.Abs(drift.Inches)))
}
