// Command optimizer is the optimization-mode CLI entry point: it loads
// a population the same way the trainer does, then runs
// a Nelder-Mead search over the hyperparameter dimensions named by
// --lambda_flag/--discount_flag/--rate_flag/--exploration_flag,
// scoring each candidate vertex by one TrainingEngine round.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dragunovdenis/checkerstrainer/internal/arghash"
	"github.com/dragunovdenis/checkerstrainer/internal/atomicfile"
	"github.com/dragunovdenis/checkerstrainer/internal/config"
	"github.com/dragunovdenis/checkerstrainer/internal/optimizer"
	"github.com/dragunovdenis/checkerstrainer/internal/script"
	"github.com/dragunovdenis/checkerstrainer/internal/tdagent"
	"github.com/dragunovdenis/checkerstrainer/internal/tlog"
	"github.com/dragunovdenis/checkerstrainer/internal/trainengine"
	"github.com/dragunovdenis/checkerstrainer/internal/trainerr"
	"github.com/dragunovdenis/checkerstrainer/internal/trainstate"
	"github.com/dragunovdenis/checkerstrainer/internal/valuenet"
)

const defaultHiddenSize = 32
const defaultMaxMovesWithoutCapture = 150

// defaultMaxIterations caps a search that never converges below
// --min_simplex; FunctionConverge is expected to stop it long before
// this in practice.
const defaultMaxIterations = 200

func main() {
	log := tlog.Stderr()

	cfg, err := config.ParseOptimizationFlags(os.Args[1:])
	if err != nil {
		fatal(log, err)
	}

	if err := run(log, cfg); err != nil {
		fatal(log, err)
	}
}

func fatal(log *tlog.Logger, err error) {
	fmt.Fprintln(os.Stderr, "optimizer:", err)
	log.Error("fatal", "error", err)
	os.Exit(1)
}

func run(log *tlog.Logger, cfg *config.OptimizationConfig) error {
	sourceBytes, err := os.ReadFile(cfg.Source)
	if err != nil {
		return fmt.Errorf("optimizer: read --source %s: %w", cfg.Source, trainerr.IoError)
	}

	ts, err := loadOrBuildState(cfg.Source, sourceBytes)
	if err != nil {
		return err
	}

	digest := arghash.Hex(arghash.Optimization(arghash.OptimizationArgs{
		SourceBytes:  sourceBytes,
		Episodes:     cfg.Episodes,
		DumpRounds:   cfg.DumpRounds,
		OutputFolder: cfg.Output,
		MinSimplex:   cfg.MinSimplex,
	}))

	lock, err := atomicfile.AcquireDirLock(cfg.Output)
	if err != nil {
		return err
	}
	defer lock.Release()

	dims := optimizer.Dimensions(cfg.LambdaFlag, cfg.DiscountFlag, cfg.RateFlag, cfg.ExplorationFlag)

	eng := trainengine.New(ts, trainengine.Options{
		EpisodesPerRound:       int(cfg.Episodes),
		EvalEpisodes:           int(cfg.EvalEpisodes),
		FixedPairs:             true,
		MaxMovesWithoutCapture: defaultMaxMovesWithoutCapture,
	}, log)

	opt, err := optimizer.New(ts, eng, dims, cfg.MinSimplex)
	if err != nil {
		return err
	}

	amoebaPath := filepath.Join(cfg.Output, digest+".amoeba")
	if dump, loadErr := optimizer.LoadDump(amoebaPath); loadErr == nil {
		log.Info("resuming optimizer dump", "path", amoebaPath, "iterations", dump.Iterations)
		for i, d := range dims {
			if i < len(dump.X) {
				d.Apply(ts, dump.X[i])
			}
		}
	} else if !errors.Is(loadErr, trainerr.CheckpointCorrupt) {
		return loadErr
	}

	reporter := func(it optimizer.Iteration) {
		log.Info("simplex evaluation", "x", it.X, "score", it.Score)
		if cfg.DumpRounds > 0 && it.Score != 0 {
			// best-effort progress dump; final Save below is authoritative
			_ = (&optimizer.Result{X: it.X, Score: it.Score}).Save(amoebaPath, dims)
		}
	}

	result, err := opt.Run(context.Background(), defaultMaxIterations, reporter)
	if err != nil {
		return fmt.Errorf("optimizer: %w", err)
	}

	if err := result.Save(amoebaPath, dims); err != nil {
		log.Error("optimizer dump save failed", "error", err)
	}

	if err := writeFinalReport(filepath.Join(cfg.Output, digest+".txt"), dims, result); err != nil {
		log.Error("final parameter report write failed", "error", err)
	}

	return nil
}

func loadOrBuildState(sourcePath string, sourceBytes []byte) (*trainstate.TrainingState, error) {
	if ts, err := trainstate.Load(sourcePath); err == nil {
		return ts, nil
	} else if !errors.Is(err, trainerr.CheckpointCorrupt) {
		return nil, err
	}

	specs, err := script.Parse(string(sourceBytes))
	if err != nil {
		return nil, err
	}
	agents := make([]*tdagent.Agent, len(specs))
	for i, s := range specs {
		hidden := defaultHiddenSize
		if len(s.NetDimensions) > 0 {
			hidden = s.NetDimensions[0]
		}
		a, err := tdagent.New(tdagent.Options{
			Name:    s.Name,
			Net:     valuenet.NewDense(valuenet.FeatureSize, hidden),
			Epsilon: s.Exploration,
			Gamma:   s.Discount,
			Lambda:  s.Lambda,
			Alpha:   s.LearningRate,
		})
		if err != nil {
			return nil, err
		}
		agents[i] = a
	}
	return trainstate.New(agents)
}

func writeFinalReport(path string, dims []optimizer.Dimension, result *optimizer.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("optimizer: create %s: %w", path, trainerr.IoError)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "score=%.6f iterations=%d\n", result.Score, result.Iterations)
	for i, d := range dims {
		fmt.Fprintf(w, "%s=%.6f\n", d.Name, result.X[i])
	}
	return w.Flush()
}
