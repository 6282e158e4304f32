// Package trainengine implements the round scheduler that pairs
// agents, runs their episodes in parallel, evaluates the resulting
// population, and reports performance.
//
// This is a new orchestration layer with no precedent in
// Fardinak-mnkagent; its concurrency shape is grounded on
// niceyeti-tabular/reinforcement/learning.go's worker-per-task,
// channerics.Merge fan-in pipeline, combined with
// golang.org/x/sync/errgroup for first-error propagation the way
// niceyeti-tabular/tabular's richer revision of the same package uses it.
package trainengine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	channerics "github.com/niceyeti/channerics/channels"

	"github.com/dragunovdenis/checkerstrainer/internal/board"
	"github.com/dragunovdenis/checkerstrainer/internal/checkers"
	"github.com/dragunovdenis/checkerstrainer/internal/tdagent"
	"github.com/dragunovdenis/checkerstrainer/internal/tlog"
	"github.com/dragunovdenis/checkerstrainer/internal/trainerr"
	"github.com/dragunovdenis/checkerstrainer/internal/trainstate"
)

// DefaultOutlierK is the open-question decision for remove_outliers'
// threshold: an agent is dropped when its round score falls more than
// k standard deviations below the round mean.
const DefaultOutlierK = 1.5

// DefaultSmartTrainingMargin is the smart_training high-water margin
// m: an agent whose score this round exceeds the round's mean score by
// more than m has its training suspended until the rest catch up.
const DefaultSmartTrainingMargin = 0.2

// Reporter is called once per round with its wall-clock duration and
// one PerformanceRec per agent.
type Reporter func(roundMs int64, perf []trainstate.PerformanceRec)

// Options configures an Engine. EpisodesPerRound, EvalEpisodes,
// FixedPairs, SmartTraining and RemoveOutliers correspond directly to
// the training run's tunable knobs; bundling them into a struct at
// construction, rather than threading eight positional parameters
// through every Run call, is the idiomatic Go shape for this.
type Options struct {
	EpisodesPerRound       int
	EvalEpisodes           int
	FixedPairs             bool
	SmartTraining          bool
	RemoveOutliers         bool
	AutoTraining           bool // run_auto: self-play against a frozen copy
	MaxMovesWithoutCapture int
	OutlierK               float64 // 0 means DefaultOutlierK
	SmartTrainingMargin    float64 // 0 means DefaultSmartTrainingMargin
	Seed                   checkers.GameState
	Rng                    *rand.Rand

	// ReferenceEnsemble, if non-nil, is the evaluation-phase opponent
	// pool (a fixed reference ensemble). If nil, the previous round's
	// frozen population snapshot is used instead.
	ReferenceEnsemble board.Player
}

func (o Options) outlierK() float64 {
	if o.OutlierK == 0 {
		return DefaultOutlierK
	}
	return o.OutlierK
}

func (o Options) smartTrainingMargin() float64 {
	if o.SmartTrainingMargin == 0 {
		return DefaultSmartTrainingMargin
	}
	return o.SmartTrainingMargin
}

// Engine is the C6 TrainingEngine.
type Engine struct {
	state *trainstate.TrainingState
	opts  Options
	log   *tlog.Logger

	suspended []bool // per-agent smart_training suspension flag

	prevSnapshot []*tdagent.Agent // previous round's frozen population, for evaluation
}

// New builds an Engine over state. log may be tlog.Discard().
func New(state *trainstate.TrainingState, opts Options, log *tlog.Logger) *Engine {
	if opts.Rng == nil {
		opts.Rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Engine{
		state:     state,
		opts:      opts,
		log:       log,
		suspended: make([]bool, state.AgentsCount()),
	}
}

// Run executes rounds RoundID()+1..maxRound inclusive, calling reporter
// after each round. cancel is polled before every ply (threaded
// through to Board.Play) and, at round boundaries, stops the
// loop entirely: cancel returning true causes the current episode to
// terminate as a draw, the current round to complete normally, and
// then Run to return at the next round boundary.
func (e *Engine) Run(ctx context.Context, maxRound int, reporter Reporter, cancel func() bool) error {
	if e.state.AgentsCount() < 2 {
		return fmt.Errorf("trainengine: agents_count %d < 2: %w", e.state.AgentsCount(), trainerr.AgentMisconfigured)
	}

	for e.state.RoundID() < maxRound {
		start := time.Now()
		round := e.state.IncrementRound()

		if err := e.runTrainingPhase(ctx, cancel); err != nil {
			return fmt.Errorf("trainengine: round %d training phase: %w", round, err)
		}

		perf, err := e.runEvaluationPhase(ctx, cancel)
		if err != nil {
			return fmt.Errorf("trainengine: round %d evaluation phase: %w", round, err)
		}

		if err := e.state.AddPerformanceRecord(perf); err != nil {
			return fmt.Errorf("trainengine: round %d: %w", round, err)
		}

		if e.opts.RemoveOutliers {
			e.removeOutliers(perf)
		}
		if e.opts.SmartTraining {
			e.applySmartTraining(perf)
		}

		if reporter != nil {
			reporter(time.Since(start).Milliseconds(), e.state.BestPerf())
		}

		if cancel != nil && cancel() {
			return nil
		}
	}
	return nil
}

func (e *Engine) seed() checkers.GameState {
	if e.opts.Seed.Equal(checkers.GameState{}) {
		return checkers.NewStart()
	}
	return e.opts.Seed
}

// runTrainingPhase pairs agents and plays EpisodesPerRound episodes
// per pair concurrently, via a
// worker-per-pair fan-out and a channerics.Merge fan-in mirroring
// niceyeti-tabular's agent_worker/estimator split: here the "workers"
// are episode-playing goroutines and the "estimator" role is absorbed
// into Board.Play's own sequential per-episode TD updates, since
// — unlike niceyeti-tabular's shared state-value table — each pair
// owns disjoint agent parameters and needs no separate serializing
// consumer.
func (e *Engine) runTrainingPhase(ctx context.Context, cancel func() bool) error {
	pairs := e.pairings()

	workers := make([]<-chan error, 0, len(pairs))
	for _, pr := range pairs {
		workers = append(workers, e.pairWorker(pr, cancel))
	}

	// Every value reaching this fan-in is already an InconsistentState
	// failure (pairWorker swallows anything less severe after
	// reporting it); the first one seen aborts the round for every
	// pair, not just the one that hit it.
	var firstErr error
	for err := range channerics.Merge(ctx.Done(), workers...) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// pairWorker runs one pair's episodes in its own goroutine, reporting
// its outcome on a buffered result channel so runTrainingPhase can fan
// them in with channerics.Merge, mirroring
// niceyeti-tabular/reinforcement/learning.go's agent_worker/Merge
// pipeline (there, per-agent episode generators; here, per-pair
// episode players).
//
// A per-pair failure is isolated here: it is reported through
// cb.Error and the pair simply stops playing out the round, but it
// never reaches the result channel unless it is InconsistentState, an
// invariant violation that leaves the whole population's bookkeeping
// untrustworthy and must abort the round for every pair.
func (e *Engine) pairWorker(pr [2]int, cancel func() bool) <-chan error {
	result := make(chan error, 1)
	go func() {
		defer close(result)

		a := e.state.Agent(pr[0])
		wasTrainingA := a.Training()
		if !e.suspended[pr[0]] {
			a.SetTraining(true)
		}
		defer a.SetTraining(wasTrainingA)

		var opponent board.Player
		if pr[0] == pr[1] {
			// Self-play: a's opponent is a frozen, greedy snapshot of
			// itself rather than a itself, so the pair doesn't play a
			// live agent against its own in-flight mutations and
			// GameOver isn't reported twice onto the same agent for one
			// episode.
			snap, err := trainstate.Snapshot(a)
			if err != nil {
				e.log.With("pair", pr).Error("self-play snapshot error", "error", err)
				if errors.Is(err, trainerr.InconsistentState) {
					result <- err
				}
				return
			}
			opponent = snap
		} else {
			b := e.state.Agent(pr[1])
			wasTrainingB := b.Training()
			if !e.suspended[pr[1]] {
				b.SetTraining(true)
			}
			defer b.SetTraining(wasTrainingB)
			opponent = b
		}

		brd := board.New(a, opponent)
		err := brd.Play(e.opts.EpisodesPerRound, e.state.RoundID(), e.seed(), e.opts.MaxMovesWithoutCapture, board.Callbacks{
			Cancel: cancel,
			Error: func(err error) {
				e.log.With("pair", pr).Error("episode error", "error", err)
			},
		})
		if err != nil && errors.Is(err, trainerr.InconsistentState) {
			result <- err
		}
	}()
	return result
}

// runAutoTrainingPhase would be runTrainingPhase's self-play analog;
// AutoTraining instead reuses pairings() with self-pairs (see
// selfPairings), so no separate method is needed — self-play is
// otherwise identical to regular pairwise training.
func (e *Engine) pairings() [][2]int {
	if e.opts.AutoTraining {
		return e.selfPairings()
	}
	n := e.state.AgentsCount()
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	if !e.opts.FixedPairs {
		idx = e.derangedShuffle(idx)
	}
	pairs := make([][2]int, 0, n/2)
	for i := 0; i+1 < n; i += 2 {
		pairs = append(pairs, [2]int{idx[i], idx[i+1]})
	}
	return pairs
}

// selfPairings returns n pairs (i,i): run_auto plays every agent
// against a frozen copy of itself. Board.Play's second seat receives a
// Snapshot (frozen, non-learning), so the learning copy's parameters
// are the only ones mutated.
func (e *Engine) selfPairings() [][2]int {
	n := e.state.AgentsCount()
	pairs := make([][2]int, n)
	for i := range pairs {
		pairs[i] = [2]int{i, i}
	}
	return pairs
}

// derangedShuffle returns a random permutation of idx that, when
// possible, disagrees with idx at every position (a derangement),
// since a shuffle landing on the identity or fixed-pairs arrangement
// defeats the purpose of shuffling. Falls back to whatever the last
// shuffle attempt produced if no derangement is found within a few
// tries (e.g. n<=1).
func (e *Engine) derangedShuffle(idx []int) []int {
	out := append([]int(nil), idx...)
	if len(out) < 2 {
		return out
	}
	for attempt := 0; attempt < 8; attempt++ {
		e.opts.Rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		deranged := true
		for i := range out {
			if out[i] == idx[i] {
				deranged = false
				break
			}
		}
		if deranged {
			break
		}
	}
	return out
}

// runEvaluationPhase freezes exploration and plays each agent
// eval_episodes/2 games as white and black against the evaluation
// opponent pool, recording perf_white/perf_black/draws.
func (e *Engine) runEvaluationPhase(ctx context.Context, cancel func() bool) ([]trainstate.PerformanceRec, error) {
	n := e.state.AgentsCount()
	perf := make([]trainstate.PerformanceRec, n)

	opponents := make([]board.Player, n)
	for i := 0; i < n; i++ {
		opp, err := e.evaluationOpponent(i)
		if err != nil {
			return nil, err
		}
		opponents[i] = opp
	}

	g, _ := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			rec, err := e.evaluateAgent(i, opponents[i], cancel)
			if err != nil {
				return err
			}
			perf[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.prevSnapshot = make([]*tdagent.Agent, n)
	for i := 0; i < n; i++ {
		snap, err := trainstate.Snapshot(e.state.Agent(i))
		if err != nil {
			return nil, err
		}
		e.prevSnapshot[i] = snap
	}

	return perf, nil
}

func (e *Engine) evaluationOpponent(i int) (board.Player, error) {
	if e.opts.ReferenceEnsemble != nil {
		return e.opts.ReferenceEnsemble, nil
	}
	if e.prevSnapshot == nil {
		// First round: evaluate each agent against a frozen snapshot of
		// itself as it stands after this round's training, since no
		// prior-round population exists yet.
		return trainstate.Snapshot(e.state.Agent(i))
	}
	return e.prevSnapshot[i], nil
}

// evaluateAgent plays eval_episodes/2 games as white and as black
// against opponent, epsilon forced to 0 and training disabled.
func (e *Engine) evaluateAgent(i int, opponent board.Player, cancel func() bool) (trainstate.PerformanceRec, error) {
	agent := e.state.Agent(i)
	wasTraining := agent.Training()
	epsilon, gamma, lambda, alpha := agent.Hyperparameters()
	agent.SetTraining(false)
	agent.SetHyperparameters(0, gamma, lambda, alpha)
	defer func() {
		agent.SetTraining(wasTraining)
		agent.SetHyperparameters(epsilon, gamma, lambda, alpha)
	}()

	half := e.opts.EvalEpisodes / 2
	if half == 0 {
		return trainstate.NewPerformanceRec(e.state.RoundID(), 0, 0, 0), nil
	}

	asWhite := board.New(agent, opponent)
	if err := asWhite.Play(half, e.state.RoundID(), e.seed(), e.opts.MaxMovesWithoutCapture, board.Callbacks{Cancel: cancel}); err != nil {
		return trainstate.PerformanceRec{}, err
	}
	agentWinsWhite, opponentWinsAsBlack := asWhite.Wins()
	perfWhite := float64(agentWinsWhite) / float64(half)
	drawFrac := float64(half-agentWinsWhite-opponentWinsAsBlack) / float64(half)

	asBlack := board.New(opponent, agent)
	if err := asBlack.Play(half, e.state.RoundID(), e.seed(), e.opts.MaxMovesWithoutCapture, board.Callbacks{Cancel: cancel}); err != nil {
		return trainstate.PerformanceRec{}, err
	}
	opponentWinsWhite, agentWinsBlack := asBlack.Wins()
	perfBlack := float64(agentWinsBlack) / float64(half)
	drawFrac += float64(half-opponentWinsWhite-agentWinsBlack) / float64(half)
	drawFrac /= 2

	return trainstate.NewPerformanceRec(e.state.RoundID(), perfWhite, perfBlack, drawFrac), nil
}

// removeOutliers drops agents scoring below mean−k·stddev and
// replaces their parameters with the top-score agent's best snapshot,
// preserving id.
func (e *Engine) removeOutliers(perf []trainstate.PerformanceRec) {
	if len(perf) < 2 {
		return
	}
	scores := make([]float64, len(perf))
	for i, p := range perf {
		scores[i] = p.Score
	}
	mean, stddev := stat.MeanStdDev(scores, nil)
	threshold := mean - e.opts.outlierK()*stddev

	best := 0
	for i, s := range scores {
		if s > scores[best] {
			best = i
		}
	}

	for i, s := range scores {
		if i != best && s < threshold {
			if err := e.state.ReplaceWithBest(i, best); err != nil {
				e.log.With("agent_index", i).Error("remove_outliers replace failed", "error", err)
			}
		}
	}
}

// applySmartTraining suspends training for any agent whose round score
// exceeds the round's mean score by more than SmartTrainingMargin,
// resuming it once the margin closes.
func (e *Engine) applySmartTraining(perf []trainstate.PerformanceRec) {
	scores := make([]float64, len(perf))
	for i, p := range perf {
		scores[i] = p.Score
	}
	mean := stat.Mean(scores, nil)
	margin := e.opts.smartTrainingMargin()

	for i, p := range perf {
		e.suspended[i] = p.Score-mean > margin
	}
}
