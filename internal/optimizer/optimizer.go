// Package optimizer drives a Nelder-Mead search over a population's
// hyperparameters, replacing a per-enabled-dimension-count C++ template
// specialization (one instantiation per count from 1 to 4) with a
// single runtime-sized simplex over the dimensions the caller enables.
//
// Grounded on gonum.org/v1/gonum/optimize's NelderMead method, the same
// numerics dependency samuelfneumann-GoLearn builds on; Fardinak-mnkagent
// itself never searches hyperparameters, so this package's
// objective-function plumbing is new, wired around the existing
// internal/trainengine round loop rather than duplicating it.
package optimizer

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/dragunovdenis/checkerstrainer/internal/trainengine"
	"github.com/dragunovdenis/checkerstrainer/internal/trainerr"
	"github.com/dragunovdenis/checkerstrainer/internal/trainstate"
)

// Dimension is one searchable hyperparameter: Apply pushes a candidate
// value into every agent of the population, and Current reads the
// value back from the first agent (the population is kept homogeneous
// across a search, mirroring trainstate's mass Set* mutators).
type Dimension struct {
	Name    string
	Apply   func(ts *trainstate.TrainingState, v float64)
	Current func(ts *trainstate.TrainingState) float64
}

// Lambda, Discount, Rate and Exploration are the four searchable
// dimensions, toggled by --lambda_flag/--discount_flag/--rate_flag/
// --exploration_flag. Order here is the order a dimension vector's
// indices follow when more than one flag is enabled.
var (
	Lambda = Dimension{
		Name:    "lambda",
		Apply:   func(ts *trainstate.TrainingState, v float64) { ts.SetLambda(v) },
		Current: func(ts *trainstate.TrainingState) float64 { _, _, l, _ := ts.Agent(0).Hyperparameters(); return l },
	}
	Discount = Dimension{
		Name:    "discount",
		Apply:   func(ts *trainstate.TrainingState, v float64) { ts.SetGamma(v) },
		Current: func(ts *trainstate.TrainingState) float64 { _, g, _, _ := ts.Agent(0).Hyperparameters(); return g },
	}
	Rate = Dimension{
		Name:    "rate",
		Apply:   func(ts *trainstate.TrainingState, v float64) { ts.SetAlpha(v) },
		Current: func(ts *trainstate.TrainingState) float64 { _, _, _, a := ts.Agent(0).Hyperparameters(); return a },
	}
	Exploration = Dimension{
		Name:    "exploration",
		Apply:   func(ts *trainstate.TrainingState, v float64) { ts.SetEpsilon(v) },
		Current: func(ts *trainstate.TrainingState) float64 { e, _, _, _ := ts.Agent(0).Hyperparameters(); return e },
	}
)

// Dimensions builds the enabled-dimension slice for a flag combination,
// in the fixed Lambda/Discount/Rate/Exploration order.
func Dimensions(lambdaFlag, discountFlag, rateFlag, explorationFlag bool) []Dimension {
	var dims []Dimension
	if lambdaFlag {
		dims = append(dims, Lambda)
	}
	if discountFlag {
		dims = append(dims, Discount)
	}
	if rateFlag {
		dims = append(dims, Rate)
	}
	if explorationFlag {
		dims = append(dims, Exploration)
	}
	return dims
}

// Iteration reports one completed Nelder-Mead function evaluation.
type Iteration struct {
	X     []float64
	Score float64
}

// Reporter is called once per simplex evaluation.
type Reporter func(Iteration)

// Result is the search's final simplex vertex and its score.
type Result struct {
	X          []float64
	Score      float64
	Iterations int
}

// Optimizer searches dims over a population held by a TrainingState,
// scoring each candidate by running one trainengine round and
// averaging the resulting PerformanceRec.Score across agents — the
// same score trainengine.applySmartTraining and TrainingState.best_perf
// already use, so "better hyperparameters" means the same thing here
// as it does during ordinary training.
type Optimizer struct {
	state      *trainstate.TrainingState
	engine     *trainengine.Engine
	dims       []Dimension
	minSimplex float64
}

// New builds an Optimizer. engine must have been constructed over the
// same state so that each simplex evaluation advances state's
// round_id the way an ordinary training round would.
func New(state *trainstate.TrainingState, engine *trainengine.Engine, dims []Dimension, minSimplex float64) (*Optimizer, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("optimizer: at least one search dimension is required: %w", trainerr.AgentMisconfigured)
	}
	if minSimplex <= 0 {
		minSimplex = 0.001
	}
	return &Optimizer{state: state, engine: engine, dims: dims, minSimplex: minSimplex}, nil
}

// Run executes the search for up to maxIterations Nelder-Mead major
// iterations, reporting every function evaluation, and returns the
// best vertex found. Minimize
// internally minimizes its objective, so the returned Result.Score is
// negated back to the population's native (higher-is-better) scale.
func (o *Optimizer) Run(ctx context.Context, maxIterations int, reporter Reporter) (*Result, error) {
	x0 := make([]float64, len(o.dims))
	for i, d := range o.dims {
		x0[i] = d.Current(o.state)
	}

	evalCount := 0
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			evalCount++
			score, err := o.evaluate(ctx, x)
			if err != nil {
				// NelderMead has no error channel; a failed evaluation
				// is reported as maximally bad so the simplex steers
				// away from it, and the caller learns about the
				// failure via reporter's NaN score.
				if reporter != nil {
					reporter(Iteration{X: append([]float64(nil), x...), Score: math.NaN()})
				}
				return 1e308
			}
			if reporter != nil {
				reporter(Iteration{X: append([]float64(nil), x...), Score: score})
			}
			return -score
		},
	}

	settings := &optimize.Settings{
		MajorIterations: maxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   o.minSimplex,
			Iterations: 10,
		},
	}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("optimizer: nelder-mead: %w", err)
	}

	for i, d := range o.dims {
		d.Apply(o.state, result.X[i])
	}

	return &Result{X: result.X, Score: -result.F, Iterations: evalCount}, nil
}

// evaluate applies x, runs one training round, and returns the
// round-averaged score across the population.
func (o *Optimizer) evaluate(ctx context.Context, x []float64) (float64, error) {
	for i, d := range o.dims {
		d.Apply(o.state, x[i])
	}

	target := o.state.RoundID() + 1
	if err := o.engine.Run(ctx, target, nil, func() bool { return false }); err != nil {
		return 0, err
	}

	perfs := o.state.Performances()
	if len(perfs) == 0 {
		return 0, fmt.Errorf("optimizer: round produced no performance record: %w", trainerr.InconsistentState)
	}
	return perfs[len(perfs)-1].Score, nil
}
