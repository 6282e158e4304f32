// Package ensemble implements a frozen committee of TD(λ) agents that
// votes on moves.
//
// Fardinak-mnkagent has no committee concept; this is grounded on
// common/agent_interface.go's EnhancedAgent capability pattern
// (frozen, non-learning agents exposing the same move interface as a
// learning one) generalized to a population vote.
package ensemble

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/dragunovdenis/checkerstrainer/internal/checkers"
	"github.com/dragunovdenis/checkerstrainer/internal/tdagent"
	"github.com/dragunovdenis/checkerstrainer/internal/trainerr"
)

// Member is a frozen (non-learning) agent inside an ensemble: just
// enough surface to be polled for a move.
type Member interface {
	ID() string
	Move(state checkers.GameState, legal []checkers.Move) (checkers.Move, error)
}

// Ensemble is the C4 EnsembleAgent. It ignores training callbacks
// entirely: GameOver is a no-op, since members are frozen snapshots,
// not live learners. ResetEpisode only picks the member for the next
// episode in single-agent mode.
type Ensemble struct {
	members        []Member
	singleAgent    bool
	chosenForGame  int
	rng            *rand.Rand
}

// New builds an Ensemble over frozen members. singleAgentMode, when
// true, makes the ensemble pick one member per episode and play the
// whole game through it; otherwise every ply is decided by plurality
// vote across all members.
func New(members []Member, singleAgentMode bool, rng *rand.Rand) (*Ensemble, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("ensemble: no members: %w", trainerr.AgentMisconfigured)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Ensemble{members: members, singleAgent: singleAgentMode, rng: rng}, nil
}

// FromAgents is a convenience constructor wrapping a slice of frozen
// *tdagent.Agent as ensemble members.
func FromAgents(agents []*tdagent.Agent, singleAgentMode bool, rng *rand.Rand) (*Ensemble, error) {
	members := make([]Member, len(agents))
	for i, a := range agents {
		members[i] = a
	}
	return New(members, singleAgentMode, rng)
}

// ID identifies the ensemble as a board.Player by its member ids, so a
// reference ensemble used as a fixed evaluation opponent still shows
// up meaningfully in GameOver/opponentID reporting.
func (e *Ensemble) ID() string {
	ids := make([]string, len(e.members))
	for i, m := range e.members {
		ids[i] = m.ID()
	}
	return "ensemble(" + strings.Join(ids, ",") + ")"
}

// ResetEpisode picks a fresh single-agent member (if in single-agent
// mode) for the upcoming episode, chosen uniformly at the start of
// each episode.
func (e *Ensemble) ResetEpisode() {
	if e.singleAgent {
		e.chosenForGame = e.rng.Intn(len(e.members))
	}
}

// Move selects a move either from the episode's chosen single member,
// or by plurality vote across all members, ties broken by lowest
// legal-move index.
func (e *Ensemble) Move(state checkers.GameState, legal []checkers.Move) (checkers.Move, error) {
	if len(legal) == 0 {
		return checkers.Move{}, fmt.Errorf("ensemble: %w", trainerr.InvalidMoveSet)
	}

	if e.singleAgent {
		return e.members[e.chosenForGame].Move(state, legal)
	}

	votes := make([]int, len(legal))
	for _, m := range e.members {
		chosen, err := m.Move(state, legal)
		if err != nil {
			continue
		}
		idx := indexOf(legal, chosen)
		if idx >= 0 {
			votes[idx]++
		}
	}

	best := 0
	for i, v := range votes {
		if v > votes[best] {
			best = i
		}
	}
	return legal[best], nil
}

func indexOf(legal []checkers.Move, m checkers.Move) int {
	for i, cand := range legal {
		if cand.Equal(m) {
			return i
		}
	}
	return -1
}

// GameOver is a no-op: ensembles ignore training callbacks entirely.
func (e *Ensemble) GameOver(round int, opponentID string, result tdagent.Result) {}

// Members returns the frozen member set.
func (e *Ensemble) Members() []Member { return e.members }

// SingleAgentMode reports whether the ensemble plays one member per
// episode rather than voting every ply.
func (e *Ensemble) SingleAgentMode() bool { return e.singleAgent }
