// Package tdagent implements the TD(λ) learning agent.
//
// Grounded on agents/rlagent.go (exploration-vs-exploitation branch in
// FetchMove, the learn/lookup/value update triangle, GameOver's
// terminal update) and agents/enhanced_rlagent.go (AgentOptions/Stats
// surface), generalized from tabular Q-values keyed by a marshalled
// state string to an eligibility-trace TD(λ) rule over a
// valuenet.ValueNet.
package tdagent

import (
	"fmt"
	"math/rand"

	"github.com/dragunovdenis/checkerstrainer/internal/agentid"
	"github.com/dragunovdenis/checkerstrainer/internal/checkers"
	"github.com/dragunovdenis/checkerstrainer/internal/trainerr"
	"github.com/dragunovdenis/checkerstrainer/internal/valuenet"
)

// TrainingRecord is one line of an agent's training history: the round
// it was produced in, the opponent it played, and the game result from
// this agent's point of view.
type TrainingRecord struct {
	Round      int
	OpponentID string
	Result     float64
}

// Agent is the C3 TD(λ) agent. Zero value is not usable; build one
// with New.
type Agent struct {
	name string
	id   string

	net valuenet.ValueNet

	epsilon, gamma, lambda, alpha float64

	training   bool
	searchMode bool

	prevAfterState *checkers.GameState

	records []TrainingRecord

	rng *rand.Rand
}

// Options configures a new Agent. A nil Rng means a fresh source
// seeded from the package-level math/rand generator.
type Options struct {
	Name    string
	Net     valuenet.ValueNet
	Epsilon float64
	Gamma   float64
	Lambda  float64
	Alpha   float64
	Rng     *rand.Rand
}

// New constructs a TD(λ) agent, validating hyperparameters against the
// allowed ranges: alpha in (0, 2], gamma/lambda/epsilon in [0, 1].
// Out-of-range values fail fast with AgentMisconfigured
// rather than silently clamping, since a typo in an agent script
// should not train silently on the wrong parameter.
func New(opts Options) (*Agent, error) {
	if err := validate(opts.Alpha, opts.Gamma, opts.Lambda, opts.Epsilon); err != nil {
		return nil, err
	}
	if opts.Net == nil {
		return nil, fmt.Errorf("tdagent: nil value net: %w", trainerr.AgentMisconfigured)
	}
	rng := opts.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Agent{
		name:    opts.Name,
		id:      agentid.New(),
		net:     opts.Net,
		epsilon: opts.Epsilon,
		gamma:   opts.Gamma,
		lambda:  opts.Lambda,
		alpha:   opts.Alpha,
		rng:     rng,
	}, nil
}

// Restore rebuilds an agent with an explicit, previously-issued id,
// used when loading a checkpoint or ensemble snapshot: the id must
// stay immutable across saves, so reloading must not mint a fresh one
// via New.
func Restore(name, id string, net valuenet.ValueNet, epsilon, gamma, lambda, alpha float64) (*Agent, error) {
	if err := validate(alpha, gamma, lambda, epsilon); err != nil {
		return nil, err
	}
	if net == nil {
		return nil, fmt.Errorf("tdagent: nil value net: %w", trainerr.AgentMisconfigured)
	}
	return &Agent{
		name:    name,
		id:      id,
		net:     net,
		epsilon: epsilon,
		gamma:   gamma,
		lambda:  lambda,
		alpha:   alpha,
		rng:     rand.New(rand.NewSource(rand.Int63())),
	}, nil
}

func validate(alpha, gamma, lambda, epsilon float64) error {
	switch {
	case alpha <= 0 || alpha > 2:
		return fmt.Errorf("tdagent: alpha %v out of (0,2]: %w", alpha, trainerr.AgentMisconfigured)
	case gamma < 0 || gamma > 1:
		return fmt.Errorf("tdagent: gamma %v out of [0,1]: %w", gamma, trainerr.AgentMisconfigured)
	case lambda < 0 || lambda > 1:
		return fmt.Errorf("tdagent: lambda %v out of [0,1]: %w", lambda, trainerr.AgentMisconfigured)
	case epsilon < 0 || epsilon > 1:
		return fmt.Errorf("tdagent: epsilon %v out of [0,1]: %w", epsilon, trainerr.AgentMisconfigured)
	}
	return nil
}

// ID returns the agent's stable, save-invariant identifier.
func (a *Agent) ID() string { return a.id }

// Name returns the agent's display name.
func (a *Agent) Name() string { return a.name }

// SetName renames the agent (used when cloning per an agent-script
// repetition block).
func (a *Agent) SetName(name string) { a.name = name }

// Net exposes the underlying value network, e.g. for checkpointing or
// for building a frozen ensemble member from this agent's parameters.
func (a *Agent) Net() valuenet.ValueNet { return a.net }

// SetTraining toggles learning. Training and search mode are mutually
// exclusive: enabling training disables search mode.
func (a *Agent) SetTraining(v bool) {
	a.training = v
	if v {
		a.searchMode = false
	}
}

// Training reports whether the agent currently applies TD updates.
func (a *Agent) Training() bool { return a.training }

// SetSearchMode sets the single-agent search-mode flag. The flag does
// not change this agent's own move selection; it exists to be read by
// an EnsembleAgent built from this member. Enabling it while training
// is on is a no-op, since the two are mutually exclusive.
func (a *Agent) SetSearchMode(v bool) {
	if a.training {
		return
	}
	a.searchMode = v
}

// SearchMode reports the single-agent search-mode flag.
func (a *Agent) SearchMode() bool { return a.searchMode }

// Hyperparameters returns the current (epsilon, gamma, lambda, alpha).
func (a *Agent) Hyperparameters() (epsilon, gamma, lambda, alpha float64) {
	return a.epsilon, a.gamma, a.lambda, a.alpha
}

// SetHyperparameters applies mass-mutator style updates to an existing
// agent. Unlike New, out-of-range values are clamped to the nearest
// boundary rather than rejected: a script typo during a long training
// run should not abort it.
func (a *Agent) SetHyperparameters(epsilon, gamma, lambda, alpha float64) {
	a.epsilon = clamp(epsilon, 0, 1)
	a.gamma = clamp(gamma, 0, 1)
	a.lambda = clamp(lambda, 0, 1)
	a.alpha = clamp(alpha, 1e-9, 2)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ResetEpisode clears per-episode state (the stored previous
// after-state) without touching learned parameters. Board calls this
// before the first ply of every new episode.
func (a *Agent) ResetEpisode() {
	a.prevAfterState = nil
	a.net.ResetTrace()
}

// Move selects and, if training, learns from a move given the current
// state and its legal moves: move selection and the per-move TD
// update are combined in one call, the way FetchMove does in the
// agent it is grounded on.
func (a *Agent) Move(state checkers.GameState, legal []checkers.Move) (checkers.Move, error) {
	if len(legal) == 0 {
		return checkers.Move{}, fmt.Errorf("tdagent: %s: %w", a.name, trainerr.InvalidMoveSet)
	}

	idx := a.selectIndex(state, legal)
	chosen := legal[idx]

	afterState, err := state.MakeMove(chosen)
	if err != nil {
		return checkers.Move{}, err
	}

	if a.training {
		a.tdUpdate(afterState)
	} else {
		a.prevAfterState = &afterState
	}

	return chosen, nil
}

// selectIndex is epsilon-greedy over after-state values, ties broken
// by lowest index.
func (a *Agent) selectIndex(state checkers.GameState, legal []checkers.Move) int {
	if a.rng.Float64() < a.epsilon {
		return a.rng.Intn(len(legal))
	}

	best := 0
	bestVal := 0.0
	first := true
	for i, m := range legal {
		after, err := state.MakeMove(m)
		if err != nil {
			continue
		}
		v := a.net.Eval(after)
		if first || v > bestVal {
			bestVal = v
			best = i
			first = false
		}
	}
	return best
}

// tdUpdate applies the per-move TD(λ) correction between the previous
// and current after-states.
func (a *Agent) tdUpdate(afterState checkers.GameState) {
	if a.prevAfterState == nil {
		a.prevAfterState = &afterState
		return
	}

	const nonTerminalReward = 0
	delta := nonTerminalReward + a.gamma*a.net.Eval(afterState) - a.net.Eval(*a.prevAfterState)

	a.net.EligibilityUpdate(*a.prevAfterState, a.lambda*a.gamma)
	a.net.ApplyTD(delta, a.alpha)

	a.prevAfterState = &afterState
}

// Result is the terminal reward convention used by GameOver.
type Result float64

const (
	Victory Result = 1
	Loss    Result = -1
	Draw    Result = 0
)

// GameOver applies the terminal update: a final TD correction toward
// the terminal reward, resets the trace, clears the stored
// after-state, and appends a training record.
func (a *Agent) GameOver(round int, opponentID string, result Result) {
	if a.training && a.prevAfterState != nil {
		delta := float64(result) - a.net.Eval(*a.prevAfterState)
		a.net.ApplyTD(delta, a.alpha)
	}
	a.net.ResetTrace()
	a.prevAfterState = nil
	a.records = append(a.records, TrainingRecord{Round: round, OpponentID: opponentID, Result: float64(result)})
}

// Records returns the agent's training history.
func (a *Agent) Records() []TrainingRecord {
	return append([]TrainingRecord(nil), a.records...)
}
