// Package arghash computes the stable hexadecimal digest used to name
// state-dump and optimizer-dump files: re-running with identical
// arguments resumes from the same dump.
//
// Grounded on original_source/TrainingEngineConsole/Arguments.cpp's
// calc_hash: the concatenation (not a tree of separately-hashed
// pieces) of source file bytes, adjustment file bytes (if present),
// decimal rounds/episodes/save_rounds/dump_rounds, the upper-cased
// output folder, the upper-cased opponent-ensemble path, and the
// fixed-pairs boolean as "true"/"false" — all fed through one hash
// function. The exact hash algorithm only needs to be documented and
// portable, not match any particular reference implementation; this
// uses xxhash.Sum64, already pulled into the module for
// internal/agentid, rather than adding a second hash dependency for
// the same concern.
package arghash

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// TrainingArgs mirrors calc_hash's field set for training mode.
type TrainingArgs struct {
	SourceBytes      []byte
	AdjustmentsBytes []byte // nil/empty if no --adjustments given
	Rounds           uint
	Episodes         uint
	SaveRounds       uint
	DumpRounds       uint
	OutputFolder     string
	OpponentEnsemble string
	FixedPairs       bool
}

// Training computes the argument hash for training mode, matching
// Arguments::calc_hash's field and concatenation order exactly.
func Training(a TrainingArgs) uint64 {
	var b strings.Builder
	b.Write(a.SourceBytes)
	b.Write(a.AdjustmentsBytes)
	b.WriteString(strconv.FormatUint(uint64(a.Rounds), 10))
	b.WriteString(strconv.FormatUint(uint64(a.Episodes), 10))
	b.WriteString(strconv.FormatUint(uint64(a.SaveRounds), 10))
	b.WriteString(strconv.FormatUint(uint64(a.DumpRounds), 10))
	b.WriteString(strings.ToUpper(a.OutputFolder))
	b.WriteString(strings.ToUpper(a.OpponentEnsemble))
	b.WriteString(strconv.FormatBool(a.FixedPairs))
	return xxhash.Sum64String(b.String())
}

// OptimizationArgs mirrors ArgumentsOptimization's analogous field set
// (no fixed_pairs/opponent-ensemble concept in optimization mode).
type OptimizationArgs struct {
	SourceBytes  []byte
	Episodes     uint
	DumpRounds   uint
	OutputFolder string
	MinSimplex   float64
}

// Optimization computes the argument hash for optimization mode.
func Optimization(a OptimizationArgs) uint64 {
	var b strings.Builder
	b.Write(a.SourceBytes)
	b.WriteString(strconv.FormatUint(uint64(a.Episodes), 10))
	b.WriteString(strconv.FormatUint(uint64(a.DumpRounds), 10))
	b.WriteString(strings.ToUpper(a.OutputFolder))
	b.WriteString(strconv.FormatFloat(a.MinSimplex, 'g', -1, 64))
	return xxhash.Sum64String(b.String())
}

// Hex renders a digest as the zero-padded 16-hex-digit string used in
// "<hash>.sdmp"/"<hash>.amoeba" filenames.
func Hex(digest uint64) string {
	return fmt.Sprintf("%016x", digest)
}
