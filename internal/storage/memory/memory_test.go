// internal/storage/memory/memory_test.go
package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shottracker/shottracker/internal/config"
	"github.com/shottracker/shottracker/internal/storage"
	"github.com/shottracker/shottracker/pkg/core"
)

// Verify Backend implements storage.Backend interface
var _ storage.Backend = (*Backend)(nil)

var profile308 = core.RifleProfile{Name: "308 Win", ZeroYards: 100, MuzzleVelocityFPS: 2650}

func shotAt(distance float64) core.ShotRecord {
	return core.ShotRecord{
		Time:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Request: core.ShotRequest{DistanceYards: distance, Rifle: profile308},
		Result:  core.ShotResult{DistanceYards: distance, DropMOA: distance / 100},
		Source:  "test",
	}
}

func TestNew(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: "/tmp/test", CompressOutput: true})

	if b == nil {
		t.Fatal("New returned nil")
	}
	if b.cfg.OutputDir != "/tmp/test" {
		t.Errorf("expected OutputDir=/tmp/test, got %s", b.cfg.OutputDir)
	}
	if b.rifles == nil {
		t.Error("rifles map not initialized")
	}
}

func TestInitAndClose(t *testing.T) {
	b := New(config.MemoryConfig{})

	if err := b.Init(); err != nil {
		t.Errorf("Init failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if b.GetExportedFilePath() != "" {
		t.Error("expected no export without an output directory")
	}
}

func TestAddAndGetRifle(t *testing.T) {
	b := New(config.MemoryConfig{})
	ctx := context.Background()

	r, err := b.AddRifle(ctx, profile308)
	if err != nil {
		t.Fatalf("AddRifle failed: %v", err)
	}
	if len(r.ID) != 36 {
		t.Errorf("expected a UUID id, got %q", r.ID)
	}
	if r.Name != "308 Win" {
		t.Errorf("expected name to be kept, got %q", r.Name)
	}

	got, err := b.GetRifle(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRifle failed: %v", err)
	}
	if got != r {
		t.Errorf("expected %+v, got %+v", r, got)
	}
}

func TestGetRifle_NotFound(t *testing.T) {
	b := New(config.MemoryConfig{})

	_, err := b.GetRifle(context.Background(), "nope")
	if !errors.Is(err, storage.ErrRifleNotFound) {
		t.Errorf("expected ErrRifleNotFound, got %v", err)
	}
}

func TestListRifles_InsertionOrder(t *testing.T) {
	b := New(config.MemoryConfig{})
	ctx := context.Background()

	names := []string{"a", "b", "c"}
	for _, n := range names {
		if _, err := b.AddRifle(ctx, core.RifleProfile{Name: n, MuzzleVelocityFPS: 2700}); err != nil {
			t.Fatal(err)
		}
	}

	rifles, err := b.ListRifles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rifles) != 3 {
		t.Fatalf("expected 3 rifles, got %d", len(rifles))
	}
	for i, n := range names {
		if rifles[i].Name != n {
			t.Errorf("rifle %d: expected %s, got %s", i, n, rifles[i].Name)
		}
	}
}

func TestListRifles_EmptyIsNotNil(t *testing.T) {
	b := New(config.MemoryConfig{})
	rifles, err := b.ListRifles(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rifles == nil {
		t.Error("expected empty slice, got nil")
	}
}

func TestRecordShots_AssignsIDs(t *testing.T) {
	b := New(config.MemoryConfig{})
	ctx := context.Background()

	if err := b.RecordShots(ctx, []core.ShotRecord{shotAt(100), shotAt(200)}); err != nil {
		t.Fatal(err)
	}
	if err := b.RecordShots(ctx, []core.ShotRecord{shotAt(300)}); err != nil {
		t.Fatal(err)
	}

	shots, err := b.RecentShots(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(shots) != 3 {
		t.Fatalf("expected 3 shots, got %d", len(shots))
	}
	// newest first
	if shots[0].ID != 3 || shots[0].Request.DistanceYards != 300 {
		t.Errorf("unexpected newest shot: %+v", shots[0])
	}
	if shots[2].ID != 1 {
		t.Errorf("expected oldest ID 1, got %d", shots[2].ID)
	}
}

func TestRecentShots_Limit(t *testing.T) {
	b := New(config.MemoryConfig{})
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_ = b.RecordShots(ctx, []core.ShotRecord{shotAt(float64(i * 100))})
	}

	shots, _ := b.RecentShots(ctx, 2)
	if len(shots) != 2 {
		t.Fatalf("expected 2 shots, got %d", len(shots))
	}
	if shots[0].Request.DistanceYards != 500 || shots[1].Request.DistanceYards != 400 {
		t.Errorf("expected the two newest shots, got %+v", shots)
	}

	all, _ := b.RecentShots(ctx, 0)
	if len(all) != 5 {
		t.Errorf("expected default limit to return all 5, got %d", len(all))
	}
}

func TestRecordShots_ShotLimitDiscardsOldest(t *testing.T) {
	b := New(config.MemoryConfig{ShotLimit: 3})
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_ = b.RecordShots(ctx, []core.ShotRecord{shotAt(float64(i))})
	}

	shots, _ := b.RecentShots(ctx, 10)
	if len(shots) != 3 {
		t.Fatalf("expected 3 shots, got %d", len(shots))
	}
	if shots[2].ID != 3 {
		t.Errorf("expected oldest kept ID 3, got %d", shots[2].ID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	b := New(config.MemoryConfig{})
	ctx := context.Background()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = b.AddRifle(ctx, profile308)
		}()
		go func(i int) {
			defer wg.Done()
			_ = b.RecordShots(ctx, []core.ShotRecord{shotAt(float64(i))})
			_, _ = b.RecentShots(ctx, 5)
		}(i)
	}
	wg.Wait()

	rifles, _ := b.ListRifles(ctx)
	shots, _ := b.RecentShots(ctx, 100)
	if len(rifles) != 20 || len(shots) != 20 {
		t.Errorf("expected 20 rifles and 20 shots, got %d and %d", len(rifles), len(shots))
	}
}
