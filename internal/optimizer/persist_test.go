package optimizer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dragunovdenis/checkerstrainer/internal/trainerr"
)

func TestSaveLoadDumpRoundTrip(t *testing.T) {
	dims := []Dimension{Exploration, Rate}
	r := &Result{X: []float64{0.05, 0.3}, Score: 0.42, Iterations: 7}

	path := filepath.Join(t.TempDir(), "deadbeef.amoeba")
	if err := r.Save(path, dims); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadDump(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.X) != 2 || loaded.X[0] != 0.05 || loaded.X[1] != 0.3 {
		t.Fatalf("unexpected X: %v", loaded.X)
	}
	if loaded.Score != 0.42 || loaded.Iterations != 7 {
		t.Fatalf("unexpected score/iterations: %+v", loaded)
	}
	if len(loaded.DimNames) != 2 || loaded.DimNames[0] != "exploration" || loaded.DimNames[1] != "rate" {
		t.Fatalf("unexpected dim names: %v", loaded.DimNames)
	}
}

func TestLoadDumpRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.amoeba")
	if err := os.WriteFile(path, []byte("not-an-amoeba-dump"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := LoadDump(path)
	if !errors.Is(err, trainerr.CheckpointCorrupt) {
		t.Fatalf("expected CheckpointCorrupt, got %v", err)
	}
}
