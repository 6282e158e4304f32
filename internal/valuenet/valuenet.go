// Package valuenet implements a pluggable after-state value function
// with gradient hooks for TD(λ) learning.
//
// The contract mirrors agents/common/neural_network.go's feed-forward
// network (Predict/Train over [][]float64 weight matrices) generalized
// with an explicit eligibility trace and backed by
// gonum.org/v1/gonum/mat matrices instead of hand-rolled nested slices.
package valuenet

import "github.com/dragunovdenis/checkerstrainer/internal/checkers"

// ValueNet is an opaque parameter vector θ exposing eval,
// eligibility-trace accumulation, and a TD apply step. Implementations
// decide their own feature extraction and architecture; nothing
// outside this package inspects θ directly.
type ValueNet interface {
	// Eval returns v(afterstate) ∈ ℝ, the network's current estimate.
	Eval(afterstate checkers.GameState) float64

	// EligibilityUpdate performs z ← λγ·z + ∇θ v(afterstate).
	EligibilityUpdate(afterstate checkers.GameState, lambdaGamma float64)

	// ResetTrace performs z ← 0.
	ResetTrace()

	// ApplyTD performs θ ← θ + α·δ·z.
	ApplyTD(delta, alpha float64)

	// Clone returns a deep, independent copy of the network — its
	// parameters but not its eligibility trace (a fresh agent copy
	// always starts an episode with a reset trace). Used to freeze a
	// snapshot for the ensemble/evaluation pool and for the engine's
	// outlier-replacement step.
	Clone() ValueNet
}
