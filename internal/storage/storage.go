package storage

import (
	"context"
	"errors"

	"github.com/shottracker/shottracker/pkg/core"
)

// ErrRifleNotFound is returned when no rifle has the requested ID.
var ErrRifleNotFound = errors.New("rifle not found")

// DefaultShotLimit caps RecentShots when the caller passes a non-positive limit.
const DefaultShotLimit = 50

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Rifle profiles (AddRifle assigns the ID)
	AddRifle(ctx context.Context, p core.RifleProfile) (core.Rifle, error)
	GetRifle(ctx context.Context, id string) (core.Rifle, error)
	ListRifles(ctx context.Context) ([]core.Rifle, error)

	// Shot history
	RecordShots(ctx context.Context, shots []core.ShotRecord) error
	RecentShots(ctx context.Context, limit int) ([]core.ShotRecord, error)
}

// NormalizeLimit maps a requested shot limit onto (0, DefaultShotLimit*20].
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultShotLimit
	}
	if limit > DefaultShotLimit*20 {
		return DefaultShotLimit * 20
	}
	return limit
}
