package model

import (
	"testing"
	"time"

	"github.com/shottracker/shottracker/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"Rifle", &Rifle{}, "rifles"},
		{"Shot", &Shot{}, "shots"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestRifleConversion(t *testing.T) {
	r := core.Rifle{
		ID: "6f1c2a52-6c1e-4b7e-9a53-2f0b1f3f9c11",
		RifleProfile: core.RifleProfile{
			Name:              "Tikka T3x 6.5 CM",
			ZeroYards:         100,
			MuzzleVelocityFPS: 2710,
		},
	}

	row := RifleFromCore(r)
	assert.Equal(t, r.ID, row.ID)
	assert.Equal(t, "Tikka T3x 6.5 CM", row.Name)
	assert.Equal(t, r, row.Core())
}

func TestShotConversion(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := core.ShotRecord{
		Time:    now,
		RifleID: "abc",
		Source:  "http",
		Clamped: true,
		Request: core.ShotRequest{
			DistanceYards: 600,
			WindSpeedMPH:  10,
			WindAngleDeg:  90,
			Rifle:         core.RifleProfile{Name: "308", ZeroYards: 100, MuzzleVelocityFPS: 2650},
		},
		Result: core.ShotResult{
			DistanceYards: 600,
			WindSpeedMPH:  10,
			WindAngleDeg:  90,
			DropInches:    120.5,
			DropMOA:       19.18,
			DriftInches:   61.2,
			DriftMOA:      9.74,
		},
	}

	row := ShotFromCore(rec)
	assert.Zero(t, row.ID)
	assert.Equal(t, 120.5, row.DropInches)
	assert.Equal(t, "308", row.Request.Data().Rifle.Name)

	row.ID = 7
	back := row.Core()
	rec.ID = 7
	assert.Equal(t, rec, back)
}
