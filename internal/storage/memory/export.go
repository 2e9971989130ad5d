package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shottracker/shottracker/pkg/core"
)

// ExportVersion is written into every export file.
const ExportVersion = 1

// Export is the root JSON structure written on Close
type Export struct {
	Version    int               `json:"version"`
	ExportedAt time.Time         `json:"exportedAt"`
	Rifles     []core.Rifle      `json:"rifles"`
	Shots      []core.ShotRecord `json:"shots"`
	Summary    Summary           `json:"summary"`
}

// Summary aggregates the exported shots
type Summary struct {
	Shots         int     `json:"shots"`
	ClampedShots  int     `json:"clampedShots"`
	MaxDistance   float64 `json:"maxDistanceYards"`
	MaxAbsDropMOA float64 `json:"maxAbsDropMoa"`
}

// GetExportedFilePath returns the path of the last export, empty if none
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// exportJSON writes rifles and shots to a (optionally gzipped) JSON file.
// Callers hold b.mu.
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	filename := fmt.Sprintf("shottracker_%s.json", export.ExportedAt.Format("20060102_150405"))
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() Export {
	rifles, shots := b.snapshot()
	export := Export{
		Version:    ExportVersion,
		ExportedAt: b.now().UTC(),
		Rifles:     rifles,
		Shots:      shots,
	}

	for _, s := range shots {
		export.Summary.Shots++
		if s.Clamped {
			export.Summary.ClampedShots++
		}
		export.Summary.MaxDistance = max(export.Summary.MaxDistance, s.Result.DistanceYards)
		drop := s.Result.DropMOA
		if drop < 0 {
			drop = -drop
		}
		export.Summary.MaxAbsDropMOA = max(export.Summary.MaxAbsDropMOA, drop)
	}
	return export
}

func writeJSON(path string, data Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}
