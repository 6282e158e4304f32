package trainstate

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"

	"github.com/dragunovdenis/checkerstrainer/internal/atomicfile"
	"github.com/dragunovdenis/checkerstrainer/internal/tdagent"
	"github.com/dragunovdenis/checkerstrainer/internal/trainerr"
	"github.com/dragunovdenis/checkerstrainer/internal/valuenet"
)

// magic and version identify a ".sdmp" training-state dump. version
// lets a future format change be detected at load time, with the byte
// layout documented here rather than left implicit in the gob stream.
var magic = [4]byte{'T', 'C', 'S', 'T'}

const version = 1

type dumpAgent struct {
	Name                          string
	ID                            string
	Epsilon, Gamma, Lambda, Alpha float64
	Net                           *valuenet.DenseNet
}

type dumpFile struct {
	Version      int
	RoundID      int
	Agents       []dumpAgent
	BestAgents   []dumpAgent
	BestPerf     []PerformanceRec
	Performances []PerformanceRec
}

func toDumpAgent(a *tdagent.Agent) (dumpAgent, error) {
	net, ok := a.Net().(*valuenet.DenseNet)
	if !ok {
		return dumpAgent{}, fmt.Errorf("trainstate: agent %s's net is not a *valuenet.DenseNet: %w", a.ID(), trainerr.IoError)
	}
	epsilon, gamma, lambda, alpha := a.Hyperparameters()
	return dumpAgent{
		Name: a.Name(), ID: a.ID(),
		Epsilon: epsilon, Gamma: gamma, Lambda: lambda, Alpha: alpha,
		Net: net,
	}, nil
}

func fromDumpAgent(d dumpAgent, training bool) (*tdagent.Agent, error) {
	a, err := tdagent.Restore(d.Name, d.ID, d.Net, d.Epsilon, d.Gamma, d.Lambda, d.Alpha)
	if err != nil {
		return nil, err
	}
	a.SetTraining(training)
	return a, nil
}

// Save atomically writes ts to path as a magic-prefixed, versioned gob
// blob via a write-then-rename so a crash mid-write never leaves a
// truncated checkpoint in place.
func (ts *TrainingState) Save(path string) error {
	file := dumpFile{
		Version:      version,
		RoundID:      ts.roundID,
		BestPerf:     ts.bestPerf,
		Performances: ts.performances,
	}
	for _, a := range ts.agents {
		d, err := toDumpAgent(a)
		if err != nil {
			return err
		}
		file.Agents = append(file.Agents, d)
	}
	for _, a := range ts.bestAgents {
		d, err := toDumpAgent(a)
		if err != nil {
			return err
		}
		file.BestAgents = append(file.BestAgents, d)
	}

	var buf bytes.Buffer
	buf.Write(magic[:])
	if err := gob.NewEncoder(&buf).Encode(file); err != nil {
		return fmt.Errorf("trainstate: encode: %w", err)
	}
	return atomicfile.Write(path, buf.Bytes())
}

// Load reads a dump previously written by Save. Restored agents have
// training disabled; the caller (TrainingEngine) re-enables it before
// resuming a round, since a dump does not record which agents were
// mid-training versus suspended by smart_training.
//
// Checkpoint corruption at load time is non-fatal to the caller: Load
// returns a CheckpointCorrupt-wrapped error so the
// engine can fall back to reconstructing from source, rather than
// treating it as the fatal InconsistentState case.
func Load(path string) (*TrainingState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("trainstate: open %s: %w", path, trainerr.IoError)
	}
	if len(data) < 4 || !bytes.Equal(data[:4], magic[:]) {
		return nil, fmt.Errorf("trainstate: %s: bad magic prefix: %w", path, trainerr.CheckpointCorrupt)
	}

	var file dumpFile
	if err := gob.NewDecoder(bytes.NewReader(data[4:])).Decode(&file); err != nil {
		return nil, fmt.Errorf("trainstate: %s: %w: %v", path, trainerr.CheckpointCorrupt, err)
	}
	if file.Version != version {
		return nil, fmt.Errorf("trainstate: %s: unsupported dump version %d: %w", path, file.Version, trainerr.CheckpointCorrupt)
	}
	if len(file.Agents) != len(file.BestAgents) {
		return nil, fmt.Errorf("trainstate: %s: agents/best_agents length mismatch: %w", path, trainerr.CheckpointCorrupt)
	}

	ts := &TrainingState{
		roundID:      file.RoundID,
		bestPerf:     file.BestPerf,
		performances: file.Performances,
	}
	for _, d := range file.Agents {
		a, err := fromDumpAgent(d, false)
		if err != nil {
			return nil, fmt.Errorf("trainstate: %s: restoring agent %s: %w", path, d.ID, err)
		}
		ts.agents = append(ts.agents, a)
	}
	for _, d := range file.BestAgents {
		a, err := fromDumpAgent(d, false)
		if err != nil {
			return nil, fmt.Errorf("trainstate: %s: restoring best-agent %s: %w", path, d.ID, err)
		}
		ts.bestAgents = append(ts.bestAgents, a)
	}
	return ts, nil
}
