package optimizer

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"

	"github.com/dragunovdenis/checkerstrainer/internal/atomicfile"
	"github.com/dragunovdenis/checkerstrainer/internal/trainerr"
)

// magic and version identify an ".amoeba" optimizer dump, named for
// Nelder-Mead's colloquial "amoeba method" and kept distinct
// from trainstate's ".sdmp" magic so the two blobs are never confused
// for one another on disk.
var magic = [4]byte{'T', 'C', 'A', 'M'}

const version = 1

// Dump is the on-disk shape of an in-progress search: the dimension
// names (so a resumed run can validate it against the same flags),
// the best vertex and score found so far, and the iteration count.
type Dump struct {
	Version    int
	DimNames   []string
	X          []float64
	Score      float64
	Iterations int
}

// Save atomically writes the search's current best vertex to path.
func (r *Result) Save(path string, dims []Dimension) error {
	names := make([]string, len(dims))
	for i, d := range dims {
		names[i] = d.Name
	}
	d := Dump{Version: version, DimNames: names, X: r.X, Score: r.Score, Iterations: r.Iterations}

	var buf bytes.Buffer
	buf.Write(magic[:])
	if err := gob.NewEncoder(&buf).Encode(d); err != nil {
		return fmt.Errorf("optimizer: encode: %w", err)
	}
	return atomicfile.Write(path, buf.Bytes())
}

// LoadDump reads a dump previously written by Result.Save, for
// resuming a search with identical arguments (internal/arghash names
// the file so re-running with the same args finds it).
func LoadDump(path string) (*Dump, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("optimizer: open %s: %w", path, trainerr.IoError)
	}
	if len(data) < 4 || !bytes.Equal(data[:4], magic[:]) {
		return nil, fmt.Errorf("optimizer: %s: bad magic prefix: %w", path, trainerr.CheckpointCorrupt)
	}

	var d Dump
	if err := gob.NewDecoder(bytes.NewReader(data[4:])).Decode(&d); err != nil {
		return nil, fmt.Errorf("optimizer: %s: %w: %v", path, trainerr.CheckpointCorrupt, err)
	}
	if d.Version != version {
		return nil, fmt.Errorf("optimizer: %s: unsupported dump version %d: %w", path, d.Version, trainerr.CheckpointCorrupt)
	}
	return &d, nil
}
