// Package aim turns shooting conditions into a rendered aim correction: it
// resolves the wind angle, asks a Calculator for drop and drift and projects
// the result onto the reticle.
package aim

import (
	"context"
	"errors"
	"fmt"

	"github.com/shottracker/shottracker/internal/ballistics"
	"github.com/shottracker/shottracker/internal/reticle"
	"github.com/shottracker/shottracker/internal/windangle"
	"github.com/shottracker/shottracker/pkg/core"
)

// ErrNoWindAngle is returned when neither a manual angle nor both bearings
// are known.
var ErrNoWindAngle = errors.New("no wind angle: need a manual angle or both shooting and wind bearings")

// Calculator computes drop and drift for a request.
type Calculator interface {
	Calculate(ctx context.Context, req core.ShotRequest) (core.ShotResult, error)
}

// CalculatorFunc adapts a function to Calculator.
type CalculatorFunc func(ctx context.Context, req core.ShotRequest) (core.ShotResult, error)

func (f CalculatorFunc) Calculate(ctx context.Context, req core.ShotRequest) (core.ShotResult, error) {
	return f(ctx, req)
}

// Local runs the ballistics model in process.
func Local() Calculator {
	return CalculatorFunc(func(_ context.Context, req core.ShotRequest) (core.ShotResult, error) {
		return ballistics.Calculate(req)
	})
}

// Conditions is everything known about the next shot. Bearings and the manual
// angle are optional; a manual angle wins over the bearings.
type Conditions struct {
	Rifle         core.RifleProfile `json:"rifle"`
	DistanceYards float64           `json:"distance_yards"`
	WindSpeedMPH  float64           `json:"wind_speed_mph"`
	Shooting      *core.Bearing     `json:"shooting_bearing,omitempty"`
	Wind          *core.Bearing     `json:"wind_bearing,omitempty"`
	ManualAngle   *float64          `json:"manual_angle,omitempty"`
}

// WindAngle resolves the wind angle in whole degrees within [0,180]. A manual
// angle is folded into the same range.
func (c Conditions) WindAngle() (float64, error) {
	if c.ManualAngle != nil {
		return windangle.Resolve(0, core.Bearing(*c.ManualAngle)), nil
	}
	if c.Shooting != nil && c.Wind != nil {
		return windangle.Resolve(*c.Shooting, *c.Wind), nil
	}
	return 0, ErrNoWindAngle
}

// Missing lists what still has to be set before Solve can succeed.
func (c Conditions) Missing() []string {
	var missing []string
	if c.Rifle.MuzzleVelocityFPS <= 0 {
		missing = append(missing, "rifle")
	}
	if c.DistanceYards <= 0 {
		missing = append(missing, "distance")
	}
	if c.ManualAngle == nil {
		if c.Shooting == nil {
			missing = append(missing, "heading")
		}
		if c.Wind == nil {
			missing = append(missing, "wind")
		}
	}
	return missing
}

// Solution is a solved shot ready to render.
type Solution struct {
	WindAngle    float64            `json:"wind_angle"`
	WindCategory windangle.Category `json:"wind_category"`
	Result       core.ShotResult    `json:"result"`
	Layout       reticle.Layout     `json:"layout"`
	DropText     string             `json:"drop_text"`
	DriftText    string             `json:"drift_text,omitempty"`
}

// Solver wires a Calculator to a reticle Projector.
type Solver struct {
	calc      Calculator
	projector *reticle.Projector
}

// NewSolver creates a Solver. A nil calculator runs locally and a nil
// projector uses the default reticle.
func NewSolver(calc Calculator, projector *reticle.Projector) *Solver {
	if calc == nil {
		calc = Local()
	}
	if projector == nil {
		projector = reticle.New(reticle.DefaultConfig())
	}
	return &Solver{calc: calc, projector: projector}
}

// Projector returns the projector used for layouts.
func (s *Solver) Projector() *reticle.Projector {
	return s.projector
}

// Solve resolves the wind angle, calculates the shot and lays it out.
func (s *Solver) Solve(ctx context.Context, c Conditions) (Solution, error) {
	angle, err := c.WindAngle()
	if err != nil {
		return Solution{}, err
	}

	res, err := s.calc.Calculate(ctx, core.ShotRequest{
		DistanceYards: c.DistanceYards,
		WindSpeedMPH:  c.WindSpeedMPH,
		WindAngleDeg:  angle,
		Rifle:         c.Rifle,
	})
	if err != nil {
		return Solution{}, fmt.Errorf("calculate: %w", err)
	}

	layout := s.projector.Project(res.Drop(), res.Drift())
	return Solution{
		WindAngle:    angle,
		WindCategory: windangle.Classify(angle),
		Result:       res,
		Layout:       layout,
		DropText:     layout.DropLabel,
		DriftText:    layout.DriftLabel,
	}, nil
}
