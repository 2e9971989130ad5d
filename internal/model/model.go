package model

import (
	"time"

	"github.com/shottracker/shottracker/pkg/core"
	"gorm.io/datatypes"
)

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Rifle{},
	&Shot{},
}

////////////////////////
// RIFLE MODELS
////////////////////////

// Rifle is a stored rifle profile keyed by a UUID string
type Rifle struct {
	ID                string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt         time.Time `json:"createdAt" gorm:"index:idx_rifle_created_at"`
	Name              string    `json:"name" gorm:"size:127"`
	ZeroYards         float64   `json:"zeroYards"`
	MuzzleVelocityFPS float64   `json:"muzzleVelocityFps"`
}

func (*Rifle) TableName() string {
	return "rifles"
}

// Core converts the row to the domain rifle.
func (r Rifle) Core() core.Rifle {
	return core.Rifle{
		ID: r.ID,
		RifleProfile: core.RifleProfile{
			Name:              r.Name,
			ZeroYards:         r.ZeroYards,
			MuzzleVelocityFPS: r.MuzzleVelocityFPS,
		},
	}
}

// RifleFromCore converts a domain rifle to its row.
func RifleFromCore(r core.Rifle) Rifle {
	return Rifle{
		ID:                r.ID,
		Name:              r.Name,
		ZeroYards:         r.ZeroYards,
		MuzzleVelocityFPS: r.MuzzleVelocityFPS,
	}
}

////////////////////////
// SHOT MODELS
////////////////////////

// Shot is one computed firing solution. The result columns are flattened for
// querying; the request is kept as a JSON snapshot.
type Shot struct {
	ID            uint                                 `json:"id" gorm:"primarykey;autoIncrement"`
	Time          time.Time                            `json:"time" gorm:"index:idx_shot_time"`
	RifleID       string                               `json:"rifleId" gorm:"size:36;index:idx_shot_rifle_id"`
	Source        string                               `json:"source" gorm:"size:32"`
	DistanceYards float64                              `json:"distanceYards"`
	WindSpeedMPH  float64                              `json:"windSpeedMph"`
	WindAngleDeg  float64                              `json:"windAngleDeg"`
	DropInches    float64                              `json:"dropInches"`
	DropMOA       float64                              `json:"dropMoa"`
	DriftInches   float64                              `json:"driftInches"`
	DriftMOA      float64                              `json:"driftMoa"`
	Clamped       bool                                 `json:"clamped"`
	Request       datatypes.JSONType[core.ShotRequest] `json:"request"`
}

func (*Shot) TableName() string {
	return "shots"
}

// Core converts the row to the domain shot record.
func (s Shot) Core() core.ShotRecord {
	return core.ShotRecord{
		ID:      s.ID,
		Time:    s.Time,
		RifleID: s.RifleID,
		Source:  s.Source,
		Clamped: s.Clamped,
		Request: s.Request.Data(),
		Result: core.ShotResult{
			DistanceYards: s.DistanceYards,
			WindSpeedMPH:  s.WindSpeedMPH,
			WindAngleDeg:  s.WindAngleDeg,
			DropInches:    s.DropInches,
			DropMOA:       s.DropMOA,
			DriftInches:   s.DriftInches,
			DriftMOA:      s.DriftMOA,
		},
	}
}

// ShotFromCore converts a domain shot record to its row. The ID is left for
// the database to assign.
func ShotFromCore(r core.ShotRecord) Shot {
	return Shot{
		Time:          r.Time,
		RifleID:       r.RifleID,
		Source:        r.Source,
		DistanceYards: r.Result.DistanceYards,
		WindSpeedMPH:  r.Result.WindSpeedMPH,
		WindAngleDeg:  r.Result.WindAngleDeg,
		DropInches:    r.Result.DropInches,
		DropMOA:       r.Result.DropMOA,
		DriftInches:   r.Result.DriftInches,
		DriftMOA:      r.Result.DriftMOA,
		Clamped:       r.Clamped,
		Request:       datatypes.NewJSONType(r.Request),
	}
}
