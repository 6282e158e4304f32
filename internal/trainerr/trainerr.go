// Package trainerr defines the error kinds shared across the training
// pipeline, following agents/rlagent.go's plain-error-with-%w-wrapping
// idiom (SaveToFile/LoadFromFile) rather than a framework of custom
// error types.
package trainerr

import "errors"

// Sentinel kinds. Use errors.Is against these after wrapping with %w.
var (
	// IoError marks a failure reading or writing a file on disk.
	IoError = errors.New("io error")
	// ScriptParseError marks a malformed agent-script block.
	ScriptParseError = errors.New("script parse error")
	// InvalidMoveSet marks a call to make a move with no legal moves available.
	InvalidMoveSet = errors.New("invalid move set")
	// AgentMisconfigured marks an out-of-range agent hyperparameter.
	AgentMisconfigured = errors.New("agent misconfigured")
	// InconsistentState marks an invariant violation such as the inverted
	// flag disagreeing with whose turn it is. Callers should treat this
	// as fatal.
	InconsistentState = errors.New("inconsistent state")
	// CheckpointCorrupt marks a checkpoint blob that failed to decode.
	CheckpointCorrupt = errors.New("checkpoint corrupt")
	// Cancelled marks cooperative cancellation; not treated as an error by
	// callers, but used so cancellation can still flow through an error
	// return when convenient.
	Cancelled = errors.New("cancelled")
)
