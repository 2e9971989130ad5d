// Package ballistics implements the flat-fire drop and wind-drift model served
// by the calculation endpoint.
package ballistics

import (
	"errors"
	"fmt"
	"math"

	"github.com/shottracker/shottracker/internal/util"
	"github.com/shottracker/shottracker/pkg/core"
)

const (
	gravity        = 9.81 // m/s^2
	yardsToMeters  = 0.9144
	fpsToMPS       = 0.3048
	inchesPerMeter = 39.3701

	// InchesPerMOAAt100 is the linear size of one MOA at 100 yards.
	InchesPerMOAAt100 = 1.047

	// drift calibration: ~15" for 10 mph full crosswind at 300 yd, 2700 fps
	driftConstant     = 0.167
	referenceVelocity = 2700.0
	velocityExponent  = 0.8
)

var (
	ErrInvalidVelocity = errors.New("muzzle velocity must be > 0")
	ErrInvalidDistance = errors.New("distance must be > 0")
	ErrOutOfRange      = errors.New("result is out of numeric range")
)

// TimeOfFlight approximates the flight time in seconds, ignoring drag.
func TimeOfFlight(distanceYards, muzzleVelocityFPS float64) (float64, error) {
	v := muzzleVelocityFPS * fpsToMPS
	if !(v > 0) {
		return 0, ErrInvalidVelocity
	}
	return distanceYards * yardsToMeters / v, nil
}

// InchesToMOA converts a linear offset at the given distance to MOA.
func InchesToMOA(inches, distanceYards float64) float64 {
	return inches / InchesPerMOAAt100 / (distanceYards / 100)
}

// Drop returns the bullet drop at distanceYards relative to the zero range.
// Beyond zero the drop is positive; inside zero it is negative.
func Drop(distanceYards, muzzleVelocityFPS, zeroYards float64) (core.Correction, error) {
	if !(distanceYards > 0) {
		return core.Correction{}, ErrInvalidDistance
	}
	tZero, err := TimeOfFlight(zeroYards, muzzleVelocityFPS)
	if err != nil {
		return core.Correction{}, err
	}
	tTarget, err := TimeOfFlight(distanceYards, muzzleVelocityFPS)
	if err != nil {
		return core.Correction{}, err
	}

	dropZero := 0.5 * gravity * tZero * tZero
	dropTarget := 0.5 * gravity * tTarget * tTarget
	inches := (dropTarget - dropZero) * inchesPerMeter

	return core.Correction{
		MOA:    InchesToMOA(inches, distanceYards),
		Inches: inches,
	}, nil
}

// WindDrift returns the horizontal drift for a wind at windAngleDeg relative
// to the line of fire. Positive drift is to the right.
func WindDrift(distanceYards, muzzleVelocityFPS, windSpeedMPH, windAngleDeg float64) (core.Correction, error) {
	if !(distanceYards > 0) {
		return core.Correction{}, ErrInvalidDistance
	}
	if !(muzzleVelocityFPS > 0) {
		return core.Correction{}, ErrInvalidVelocity
	}

	s := math.Sin(windAngleDeg * math.Pi / 180)
	direction := util.Sign(s)

	hundreds := distanceYards / 100
	velocityFactor := math.Pow(muzzleVelocityFPS/referenceVelocity, velocityExponent)
	inches := windSpeedMPH * hundreds * hundreds * math.Abs(s) * driftConstant / velocityFactor * direction

	return core.Correction{
		MOA:    InchesToMOA(inches, distanceYards),
		Inches: inches,
	}, nil
}

// Calculate runs the drop and drift model for a request.
func Calculate(req core.ShotRequest) (core.ShotResult, error) {
	drop, err := Drop(req.DistanceYards, req.Rifle.MuzzleVelocityFPS, req.Rifle.ZeroYards)
	if err != nil {
		return core.ShotResult{}, fmt.Errorf("drop: %w", err)
	}
	drift, err := WindDrift(req.DistanceYards, req.Rifle.MuzzleVelocityFPS, req.WindSpeedMPH, req.WindAngleDeg)
	if err != nil {
		return core.ShotResult{}, fmt.Errorf("drift: %w", err)
	}

	for _, v := range []float64{drop.Inches, drop.MOA, drift.Inches, drift.MOA} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return core.ShotResult{}, ErrOutOfRange
		}
	}

	return core.ShotResult{
		DistanceYards: req.DistanceYards,
		WindSpeedMPH:  req.WindSpeedMPH,
		WindAngleDeg:  req.WindAngleDeg,
		DropInches:    drop.Inches,
		DropMOA:       drop.MOA,
		DriftInches:   drift.Inches,
		DriftMOA:      drift.MOA,
	}, nil
}
