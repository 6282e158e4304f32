// Package trainstate implements the mutable population a TrainingEngine
// round operates over, its performance history, and its versioned
// on-disk representation.
//
// Grounded on agents/rlagent.go's RLAgentKnowledge.SaveToFile/LoadFromFile
// (a single gob blob written wholesale, reloaded wholesale) generalized
// from one agent's knowledge table to a population of TD(λ) agents plus
// their best-score snapshots and performance history.
package trainstate

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/dragunovdenis/checkerstrainer/internal/tdagent"
	"github.com/dragunovdenis/checkerstrainer/internal/trainerr"
)

// DefaultDrawWeight is the open-question decision for the draw weight w
// in PerformanceRec.Score: a draw counts as half a win for each side.
const DefaultDrawWeight = 0.5

// PerformanceRec is one agent's (or one round's averaged) evaluation
// outcome.
type PerformanceRec struct {
	Round     int
	PerfWhite float64
	PerfBlack float64
	Draws     float64
	Score     float64
}

// NewPerformanceRec computes Score from perfWhite/perfBlack/draws using
// DefaultDrawWeight: `score = (perf_white + perf_black)/2 + draws·w`.
// perfWhite/perfBlack already count wins only, so a draw contributes
// nothing on its own; adding draws·w is what makes a draw worth half a
// win rather than worth the same as a loss.
func NewPerformanceRec(round int, perfWhite, perfBlack, draws float64) PerformanceRec {
	return PerformanceRec{
		Round:     round,
		PerfWhite: perfWhite,
		PerfBlack: perfBlack,
		Draws:     draws,
		Score:     (perfWhite+perfBlack)/2 + draws*DefaultDrawWeight,
	}
}

// TrainingState is the C7 population container.
type TrainingState struct {
	roundID int

	agents     []*tdagent.Agent
	bestAgents []*tdagent.Agent
	bestPerf   []PerformanceRec

	// performances holds one averaged PerformanceRec per round, the
	// source of Performance_report.txt's rows.
	performances []PerformanceRec
}

// New builds a TrainingState over agents, starting at round 0 with no
// performance history. Every agent's best-snapshot starts as a frozen
// clone of itself, with score −∞ so the first registered performance
// always supersedes it.
func New(agents []*tdagent.Agent) (*TrainingState, error) {
	if len(agents) < 2 {
		return nil, fmt.Errorf("trainstate: agents_count %d < 2: %w", len(agents), trainerr.AgentMisconfigured)
	}

	ts := &TrainingState{
		agents:     agents,
		bestAgents: make([]*tdagent.Agent, len(agents)),
		bestPerf:   make([]PerformanceRec, len(agents)),
	}
	for i, a := range agents {
		snap, err := Snapshot(a)
		if err != nil {
			return nil, err
		}
		ts.bestAgents[i] = snap
		ts.bestPerf[i] = PerformanceRec{Score: negInf}
	}
	return ts, nil
}

const negInf = -1e308

// Agent returns the i'th agent of the population.
func (ts *TrainingState) Agent(i int) *tdagent.Agent { return ts.agents[i] }

// Agents returns the live population slice, not a copy: callers must
// not retain it past a round boundary mutation.
func (ts *TrainingState) Agents() []*tdagent.Agent { return ts.agents }

// AgentsCount returns the population size.
func (ts *TrainingState) AgentsCount() int { return len(ts.agents) }

// RoundID returns the current round counter.
func (ts *TrainingState) RoundID() int { return ts.roundID }

// IncrementRound advances and returns the round counter. round_id is
// monotonically non-decreasing.
func (ts *TrainingState) IncrementRound() int {
	ts.roundID++
	return ts.roundID
}

// BestPerf returns the best-score snapshot record per agent.
func (ts *TrainingState) BestPerf() []PerformanceRec {
	return append([]PerformanceRec(nil), ts.bestPerf...)
}

// BestAgent returns the frozen best-score snapshot of agent i, used as
// the replacement source when an outlier agent is dropped and rebuilt
// from the top-score agent.
func (ts *TrainingState) BestAgent(i int) *tdagent.Agent { return ts.bestAgents[i] }

// RankedIndices returns every agent index ordered by descending
// best-score, ties broken by index. Used to walk the population in
// score order when dumping best-score ensemble snapshots.
func (ts *TrainingState) RankedIndices() []int {
	idx := make([]int, len(ts.agents))
	for i := range idx {
		idx[i] = i
	}
	slices.SortFunc(idx, func(a, b int) int {
		switch {
		case ts.bestPerf[a].Score > ts.bestPerf[b].Score:
			return -1
		case ts.bestPerf[a].Score < ts.bestPerf[b].Score:
			return 1
		default:
			return a - b
		}
	})
	return idx
}

// Performances returns the round-by-round averaged history, the source
// of Performance_report.txt.
func (ts *TrainingState) Performances() []PerformanceRec {
	return append([]PerformanceRec(nil), ts.performances...)
}

// AddPerformanceRecord takes one PerformanceRec per agent (as produced
// by a TrainingEngine evaluation phase), appends their average to the
// round history, and registers each agent's own record against its
// best snapshot. len(perf) must equal AgentsCount().
func (ts *TrainingState) AddPerformanceRecord(perf []PerformanceRec) error {
	if len(perf) != len(ts.agents) {
		return fmt.Errorf("trainstate: %d performance records for %d agents: %w",
			len(perf), len(ts.agents), trainerr.InconsistentState)
	}

	var sumWhite, sumBlack, sumDraws float64
	for _, p := range perf {
		sumWhite += p.PerfWhite
		sumBlack += p.PerfBlack
		sumDraws += p.Draws
	}
	n := float64(len(perf))
	ts.performances = append(ts.performances,
		NewPerformanceRec(ts.roundID, sumWhite/n, sumBlack/n, sumDraws/n))

	for i, p := range perf {
		if err := ts.registerPerformance(i, p); err != nil {
			return err
		}
	}
	return nil
}

// registerPerformance updates agent i's best snapshot element-wise when
// p.Score is greater than or equal to the stored best, preferring the
// later one in time, matching
// original_source/TrainingEngineConsole/TrainingState.cpp.
func (ts *TrainingState) registerPerformance(i int, p PerformanceRec) error {
	if p.Score >= ts.bestPerf[i].Score {
		snap, err := Snapshot(ts.agents[i])
		if err != nil {
			return err
		}
		ts.bestPerf[i] = p
		ts.bestAgents[i] = snap
	}
	return nil
}

// ReplaceWithBest overwrites agent i's parameters with agent j's
// best-score snapshot, preserving agent i's own id, used to replace a
// dropped outlier agent with a copy of the top-score agent.
func (ts *TrainingState) ReplaceWithBest(i, j int) error {
	name, id := ts.agents[i].Name(), ts.agents[i].ID()
	epsilon, gamma, lambda, alpha := ts.agents[i].Hyperparameters()
	net := ts.bestAgents[j].Net().Clone()

	restored, err := tdagent.Restore(name, id, net, epsilon, gamma, lambda, alpha)
	if err != nil {
		return err
	}
	restored.SetTraining(ts.agents[i].Training())
	ts.agents[i] = restored
	return nil
}

// SetGamma, SetLambda, SetAlpha and SetEpsilon are the mass
// hyperparameter mutators: they overwrite one hyperparameter across
// every agent in the population, leaving the others untouched.
func (ts *TrainingState) SetGamma(v float64) { ts.mutate(func(e, g, l, a float64) (float64, float64, float64, float64) { return e, v, l, a }) }
func (ts *TrainingState) SetLambda(v float64) {
	ts.mutate(func(e, g, l, a float64) (float64, float64, float64, float64) { return e, g, v, a })
}
func (ts *TrainingState) SetAlpha(v float64) {
	ts.mutate(func(e, g, l, a float64) (float64, float64, float64, float64) { return e, g, l, v })
}
func (ts *TrainingState) SetEpsilon(v float64) {
	ts.mutate(func(e, g, l, a float64) (float64, float64, float64, float64) { return v, g, l, a })
}

func (ts *TrainingState) mutate(f func(epsilon, gamma, lambda, alpha float64) (float64, float64, float64, float64)) {
	for _, agent := range ts.agents {
		e, g, l, a := agent.Hyperparameters()
		agent.SetHyperparameters(f(e, g, l, a))
	}
}

// Snapshot builds an independent, training-disabled, greedy (epsilon
// forced to 0) clone of a: same id, gamma/lambda/alpha, a deep copy of
// its value net. Used both for best-score snapshots here and for
// frozen evaluation/self-play opponents in trainengine, matching
// ensemble.LoadFromFile's same epsilon-to-0 treatment of a restored,
// frozen agent.
func Snapshot(a *tdagent.Agent) (*tdagent.Agent, error) {
	_, gamma, lambda, alpha := a.Hyperparameters()
	snap, err := tdagent.Restore(a.Name(), a.ID(), a.Net().Clone(), 0, gamma, lambda, alpha)
	if err != nil {
		return nil, err
	}
	snap.SetTraining(false)
	return snap, nil
}
