package ensemble

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

// magic is a recognizable binary prefix for saved ensemble files,
// mirroring agents/rlagent.go's versioned-gob-blob style but with an
// explicit magic header gob alone doesn't provide.
var magic = [4]byte{'T', 'C', 'E', 'N'}

type frozenMember struct {
	Name                          string
	ID                            string
	Epsilon, Gamma, Lambda, Alpha float64
	Net                           *valuenet.DenseNet
}

type ensembleFile struct {
	SingleAgent bool
	Members     []frozenMember
}

// SaveToFile writes e to path as a magic-prefixed gob blob. Only
// *tdagent.Agent members whose value net is a *valuenet.DenseNet can be
// persisted; any other member fails the save.
func (e *Ensemble) SaveToFile(path string) error {
	file := ensembleFile{SingleAgent: e.singleAgent}
	for _, m := range e.members {
		agent, ok := m.(*tdagent.Agent)
		if !ok {
			return fmt.Errorf("ensemble: member %s is not a persistable tdagent.Agent: %w", m.ID(), trainerr.IoError)
		}
		net, ok := agent.Net().(*valuenet.DenseNet)
		if !ok {
			return fmt.Errorf("ensemble: member %s's value net is not a *valuenet.DenseNet: %w", m.ID(), trainerr.IoError)
		}
		eps, gamma, lambda, alpha := agent.Hyperparameters()
		file.Members = append(file.Members, frozenMember{
			Name: agent.Name(), ID: agent.ID(),
			Epsilon: eps, Gamma: gamma, Lambda: lambda, Alpha: alpha,
			Net: net,
		})
	}

	var buf bytes.Buffer
	buf.Write(magic[:])
	if err := gob.NewEncoder(&buf).Encode(file); err != nil {
		return fmt.Errorf("ensemble: encode: %w", err)
	}

	return atomicfile.Write(path, buf.Bytes())
}

// LoadFromFile reads an ensemble snapshot previously written by
// SaveToFile, returning a frozen Ensemble: every member has training
// disabled and epsilon forced to 0.
func LoadFromFile(path string) (*Ensemble, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ensemble: open %s: %w", path, trainerr.IoError)
	}
	if len(data) < 4 || !bytes.Equal(data[:4], magic[:]) {
		return nil, fmt.Errorf("ensemble: %s: bad magic prefix: %w", path, trainerr.CheckpointCorrupt)
	}

	var file ensembleFile
	if err := gob.NewDecoder(bytes.NewReader(data[4:])).Decode(&file); err != nil {
		return nil, fmt.Errorf("ensemble: %s: %w: %v", path, trainerr.CheckpointCorrupt, err)
	}

	members := make([]Member, len(file.Members))
	for i, fm := range file.Members {
		agent, err := tdagent.Restore(fm.Name, fm.ID, fm.Net, 0, fm.Gamma, fm.Lambda, fm.Alpha)
		if err != nil {
			return nil, fmt.Errorf("ensemble: restoring member %s: %w", fm.ID, err)
		}
		agent.SetTraining(false)
		members[i] = agent
	}

	return New(members, file.SingleAgent, nil)
}
