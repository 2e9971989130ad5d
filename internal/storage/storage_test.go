package storage_test

import (
	"testing"

	"github.com/shottracker/shottracker/internal/storage"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, storage.DefaultShotLimit},
		{-3, storage.DefaultShotLimit},
		{1, 1},
		{250, 250},
		{1000, 1000},
		{5000, 1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, storage.NormalizeLimit(tt.in), "limit %d", tt.in)
	}
}
