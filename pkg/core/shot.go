package core

import "time"

// Bearing is a compass heading in degrees. 0 is north, increasing clockwise.
// Values outside [0,360) are allowed; consumers normalize as needed.
type Bearing float64

// Correction is one axis (drop or drift) of required aim correction.
//
// Drop: positive MOA means the bullet fell more and the shooter holds higher.
// Drift: positive MOA means the bullet drifted right and the shooter holds left.
type Correction struct {
	MOA    float64 `json:"moa"`
	Inches float64 `json:"inches"`
}

// ShotRequest carries the conditions of a single calculation.
type ShotRequest struct {
	DistanceYards float64      `json:"distance_yards"`
	WindSpeedMPH  float64      `json:"wind_speed_mph"`
	WindAngleDeg  float64      `json:"wind_angle_deg"` // 0 = head/tail, 90 = full crosswind
	Rifle         RifleProfile `json:"rifle"`
}

// ShotResult is the calculation response. The four correction fields are
// signed following the Correction conventions.
type ShotResult struct {
	DistanceYards float64 `json:"distance_yards"`
	WindSpeedMPH  float64 `json:"wind_speed_mph"`
	WindAngleDeg  float64 `json:"wind_angle_deg"`

	DropInches  float64 `json:"drop_inches"`
	DropMOA     float64 `json:"drop_moa"`
	DriftInches float64 `json:"drift_inches"`
	DriftMOA    float64 `json:"drift_moa"`
}

// Drop returns the vertical correction of the result.
func (r ShotResult) Drop() Correction {
	return Correction{MOA: r.DropMOA, Inches: r.DropInches}
}

// Drift returns the horizontal correction of the result.
func (r ShotResult) Drift() Correction {
	return Correction{MOA: r.DriftMOA, Inches: r.DriftInches}
}

// ShotRecord is a calculated shot as kept by storage backends.
type ShotRecord struct {
	ID      uint        `json:"id"`
	Time    time.Time   `json:"time"`
	RifleID string      `json:"rifle_id,omitempty"` // empty when the profile was sent inline
	Request ShotRequest `json:"request"`
	Result  ShotResult  `json:"result"`
	Clamped bool        `json:"clamped"` // reticle marker hit the clamp on either axis
	Source  string      `json:"source"`
}
