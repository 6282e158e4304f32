// Package config parses the training- and optimization-mode CLI flag
// sets.
//
// Fardinak-mnkagent/config/config.go hand-parses 8 flags with the
// stdlib flag package; this module's CLI has materially more knobs
// (12+ training flags, 8+ optimizer flags) plus an env-var overlay
// requirement, so — per niceyeti-tabular/tabular's reinforcement/learning.go
// pattern of layering viper over flag registration — internal/config
// registers double-dash long flags with github.com/spf13/pflag and
// binds them through github.com/spf13/viper, which also picks up
// CHECKERSTRAINER_-prefixed environment overrides for free.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dragunovdenis/checkerstrainer/internal/trainerr"
)

const envPrefix = "CHECKERSTRAINER"

// TrainingConfig is the parsed training-mode flag set.
type TrainingConfig struct {
	Source           string
	Adjustments      string
	Opponent         string
	Rounds           uint
	Episodes         uint
	Output           string
	EvalEpisodes     uint
	FixedPairs       bool
	AutoTraining     bool
	DumpRounds       uint
	SaveRounds       uint
}

// ParseTrainingFlags parses args (excluding the program name) into a
// TrainingConfig, applying its defaults and required-flag checks.
func ParseTrainingFlags(args []string) (*TrainingConfig, error) {
	fs := pflag.NewFlagSet("trainer", pflag.ContinueOnError)
	fs.String("source", "", "path to agent-script or prior state dump")
	fs.String("adjustments", "", "path to an agent-script file adjusting source's agents")
	fs.String("opponent", "", "path to a fixed reference ensemble file (.ena) for the evaluation phase; if empty, the previous round's population is used instead")
	fs.Uint("rounds", 0, "number of training rounds")
	fs.Uint("episodes", 0, "number of episodes per round per pair")
	fs.String("output", "", "output directory")
	fs.Uint("eval_episodes", 1000, "evaluation-phase episode count")
	fs.Bool("fixed_pairs", false, "keep agent pairings fixed across rounds")
	fs.Bool("auto_training", false, "run_auto: self-play against a frozen copy")
	fs.Uint("dump_rounds", 0, "rounds between state dumps (0=never)")
	fs.Uint("save_rounds", 0, "rounds between ensemble saves (0=never)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("config: %w: %v", trainerr.IoError, err)
	}

	v := newViper(fs)

	cfg := &TrainingConfig{
		Source:       v.GetString("source"),
		Adjustments:  v.GetString("adjustments"),
		Opponent:     v.GetString("opponent"),
		Rounds:       v.GetUint("rounds"),
		Episodes:     v.GetUint("episodes"),
		Output:       v.GetString("output"),
		EvalEpisodes: v.GetUint("eval_episodes"),
		FixedPairs:   v.GetBool("fixed_pairs"),
		AutoTraining: v.GetBool("auto_training"),
		DumpRounds:   v.GetUint("dump_rounds"),
		SaveRounds:   v.GetUint("save_rounds"),
	}

	if err := requireNonEmpty(map[string]string{"source": cfg.Source, "output": cfg.Output}); err != nil {
		return nil, err
	}
	if cfg.Rounds == 0 {
		return nil, fmt.Errorf("config: --rounds is required and must be > 0: %w", trainerr.IoError)
	}
	if cfg.Episodes == 0 {
		return nil, fmt.Errorf("config: --episodes is required and must be > 0: %w", trainerr.IoError)
	}

	return cfg, nil
}

// OptimizationConfig is the parsed optimization-mode flag set.
type OptimizationConfig struct {
	Source          string
	Episodes        uint
	Output          string
	MinSimplex      float64
	EvalEpisodes    uint
	DumpRounds      uint
	LambdaFlag      bool
	DiscountFlag    bool
	RateFlag        bool
	ExplorationFlag bool
}

// ParseOptimizationFlags parses args into an OptimizationConfig.
func ParseOptimizationFlags(args []string) (*OptimizationConfig, error) {
	fs := pflag.NewFlagSet("optimizer", pflag.ContinueOnError)
	fs.String("source", "", "path to agent-script or prior optimizer dump")
	fs.Uint("episodes", 0, "number of episodes per simplex evaluation")
	fs.String("output", "", "output directory")
	fs.Float64("min_simplex", 0.001, "simplex-size convergence threshold")
	fs.Uint("eval_episodes", 1000, "evaluation-phase episode count")
	fs.Uint("dump_rounds", 0, "iterations between optimizer dumps (0=never)")
	fs.Bool("lambda_flag", false, "include trace-decay λ in the search")
	fs.Bool("discount_flag", false, "include discount γ in the search")
	fs.Bool("rate_flag", false, "include learning rate α in the search")
	fs.Bool("exploration_flag", false, "include exploration ε in the search")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("config: %w: %v", trainerr.IoError, err)
	}

	v := newViper(fs)

	cfg := &OptimizationConfig{
		Source:          v.GetString("source"),
		Episodes:        v.GetUint("episodes"),
		Output:          v.GetString("output"),
		MinSimplex:      v.GetFloat64("min_simplex"),
		EvalEpisodes:    v.GetUint("eval_episodes"),
		DumpRounds:      v.GetUint("dump_rounds"),
		LambdaFlag:      v.GetBool("lambda_flag"),
		DiscountFlag:    v.GetBool("discount_flag"),
		RateFlag:        v.GetBool("rate_flag"),
		ExplorationFlag: v.GetBool("exploration_flag"),
	}

	if err := requireNonEmpty(map[string]string{"source": cfg.Source, "output": cfg.Output}); err != nil {
		return nil, err
	}
	if cfg.Episodes == 0 {
		return nil, fmt.Errorf("config: --episodes is required and must be > 0: %w", trainerr.IoError)
	}
	if !cfg.LambdaFlag && !cfg.DiscountFlag && !cfg.RateFlag && !cfg.ExplorationFlag {
		return nil, fmt.Errorf("config: optimization mode requires at least one of "+
			"--lambda_flag/--discount_flag/--rate_flag/--exploration_flag: %w", trainerr.IoError)
	}

	return cfg, nil
}

func newViper(fs *pflag.FlagSet) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(fs)
	return v
}

func requireNonEmpty(fields map[string]string) error {
	for name, val := range fields {
		if val == "" {
			return fmt.Errorf("config: --%s is required: %w", name, trainerr.IoError)
		}
	}
	return nil
}
