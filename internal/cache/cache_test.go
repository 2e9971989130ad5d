package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shottracker/shottracker/pkg/core"
)

func testRifle(id string) core.Rifle {
	return core.Rifle{
		ID: id,
		RifleProfile: core.RifleProfile{
			Name:              "Rifle " + id,
			ZeroYards:         100,
			MuzzleVelocityFPS: 2700,
		},
	}
}

func TestRifleCache_New(t *testing.T) {
	c := NewRifleCache()
	require.NotNil(t, c)
	assert.Equal(t, 0, c.Len())
}

func TestRifleCache_SetAndGet(t *testing.T) {
	c := NewRifleCache()
	c.Set(testRifle("a"))

	got, ok := c.Get("a")
	require.True(t, ok, "expected to find rifle a")
	assert.Equal(t, "Rifle a", got.Name)
	assert.Equal(t, 2700.0, got.MuzzleVelocityFPS)
}

func TestRifleCache_Get_NotFound(t *testing.T) {
	c := NewRifleCache()

	got, ok := c.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, core.Rifle{}, got)
}

func TestRifleCache_SetOverwrites(t *testing.T) {
	c := NewRifleCache()
	c.Set(testRifle("a"))

	updated := testRifle("a")
	updated.Name = "renamed"
	c.Set(updated)

	got, _ := c.Get("a")
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, 1, c.Len())
}

func TestRifleCache_SetAllReplaces(t *testing.T) {
	c := NewRifleCache()
	c.Set(testRifle("old"))

	c.SetAll([]core.Rifle{testRifle("a"), testRifle("b")})

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("old")
	assert.False(t, ok)
}

func TestRifleCache_DeleteAndReset(t *testing.T) {
	c := NewRifleCache()
	c.Set(testRifle("a"))
	c.Set(testRifle("b"))

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Reset()
	assert.Equal(t, 0, c.Len())
}

func TestRifleCache_ConcurrentAccess(t *testing.T) {
	c := NewRifleCache()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("r%d", i)
			c.Set(testRifle(id))
			_, _ = c.Get(id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, c.Len())
}

func TestSafeCounter(t *testing.T) {
	var c SafeCounter
	c.Inc()
	c.Add(4)
	assert.Equal(t, 5, c.Value())

	c.Set(2)
	assert.Equal(t, 2, c.Value())

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc()
		}()
	}
	wg.Wait()
	assert.Equal(t, 102, c.Value())
}
