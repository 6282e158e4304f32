// Command trainer is the training-mode CLI entry point: it loads a
// population from an agent-script or a prior checkpoint,
// runs the TrainingEngine for the requested number of rounds, and
// writes Performance_report.txt plus periodic checkpoints under
// --output.
//
// Grounded on main.go's own flag-driven train()/play() split, adapted
// to the richer multi-flag training mode this CLI implements, and on
// original_source/TrainingEngineConsole/TrainingMode.cpp's
// source-load/adjust/run/save sequence.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dragunovdenis/checkerstrainer/internal/arghash"
	"github.com/dragunovdenis/checkerstrainer/internal/atomicfile"
	"github.com/dragunovdenis/checkerstrainer/internal/board"
	"github.com/dragunovdenis/checkerstrainer/internal/config"
	"github.com/dragunovdenis/checkerstrainer/internal/ensemble"
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

func main() {
	log := tlog.Stderr()

	cfg, err := config.ParseTrainingFlags(os.Args[1:])
	if err != nil {
		fatal(log, err)
	}

	if err := run(log, cfg); err != nil {
		fatal(log, err)
	}
}

func fatal(log *tlog.Logger, err error) {
	fmt.Fprintln(os.Stderr, "trainer:", err)
	log.Error("fatal", "error", err)
	os.Exit(1)
}

func run(log *tlog.Logger, cfg *config.TrainingConfig) error {
	sourceBytes, err := os.ReadFile(cfg.Source)
	if err != nil {
		return fmt.Errorf("trainer: read --source %s: %w", cfg.Source, trainerr.IoError)
	}

	ts, err := loadOrBuildState(cfg.Source, sourceBytes)
	if err != nil {
		return err
	}

	var adjustmentsBytes []byte
	if cfg.Adjustments != "" {
		adjustmentsBytes, err = os.ReadFile(cfg.Adjustments)
		if err != nil {
			return fmt.Errorf("trainer: read --adjustments %s: %w", cfg.Adjustments, trainerr.IoError)
		}
		if err := adjustHyperparameters(ts, string(adjustmentsBytes)); err != nil {
			return err
		}
	}

	var referenceEnsemble *ensemble.Ensemble
	if cfg.Opponent != "" {
		referenceEnsemble, err = ensemble.LoadFromFile(cfg.Opponent)
		if err != nil {
			return fmt.Errorf("trainer: read --opponent %s: %w", cfg.Opponent, err)
		}
	}

	digest := arghash.Hex(arghash.Training(arghash.TrainingArgs{
		SourceBytes:      sourceBytes,
		AdjustmentsBytes: adjustmentsBytes,
		Rounds:           cfg.Rounds,
		Episodes:         cfg.Episodes,
		SaveRounds:       cfg.SaveRounds,
		DumpRounds:       cfg.DumpRounds,
		OutputFolder:     cfg.Output,
		OpponentEnsemble: cfg.Opponent,
		FixedPairs:       cfg.FixedPairs,
	}))

	lock, err := atomicfile.AcquireDirLock(cfg.Output)
	if err != nil {
		return err
	}
	defer lock.Release()

	sdmpPath := filepath.Join(cfg.Output, digest+".sdmp")
	if resumed, loadErr := trainstate.Load(sdmpPath); loadErr == nil {
		log.Info("resuming from checkpoint", "path", sdmpPath, "round", resumed.RoundID())
		ts = resumed
	} else if !errors.Is(loadErr, trainerr.CheckpointCorrupt) {
		return loadErr
	}

	report, err := os.Create(filepath.Join(cfg.Output, "Performance_report.txt"))
	if err != nil {
		return fmt.Errorf("trainer: create performance report: %w", trainerr.IoError)
	}
	defer report.Close()
	writer := bufio.NewWriter(report)
	fmt.Fprintf(writer, "%-8s%-12s%-12s%-12s%-12s\n", "Round", "White", "Black", "Draws", "Score")
	writer.Flush()

	var referencePlayer board.Player
	if referenceEnsemble != nil {
		referencePlayer = referenceEnsemble
	}

	eng := trainengine.New(ts, trainengine.Options{
		EpisodesPerRound:       int(cfg.Episodes),
		EvalEpisodes:           int(cfg.EvalEpisodes),
		FixedPairs:             cfg.FixedPairs,
		AutoTraining:           cfg.AutoTraining,
		SmartTraining:          true,
		RemoveOutliers:         true,
		MaxMovesWithoutCapture: defaultMaxMovesWithoutCapture,
		ReferenceEnsemble:      referencePlayer,
	}, log)

	reporter := func(roundMs int64, _ []trainstate.PerformanceRec) {
		writeReportRow(writer, ts)
		writer.Flush()

		round := ts.RoundID()
		if cfg.DumpRounds > 0 && round%int(cfg.DumpRounds) == 0 {
			if err := ts.Save(sdmpPath); err != nil {
				log.Error("checkpoint save failed", "round", round, "error", err)
			}
		}
		if cfg.SaveRounds > 0 && round%int(cfg.SaveRounds) == 0 {
			dumpEnsembles(log, cfg.Output, ts, round)
			dumpBestEnsembles(log, cfg.Output, ts)
		}
		log.Info("round complete", "round", round, "round_ms", roundMs)
	}

	if err := eng.Run(context.Background(), int(cfg.Rounds), reporter, func() bool { return false }); err != nil {
		return fmt.Errorf("trainer: %w", err)
	}

	if err := ts.Save(sdmpPath); err != nil {
		log.Error("final checkpoint save failed", "error", err)
	}
	dumpBestEnsembles(log, cfg.Output, ts)
	return nil
}

// loadOrBuildState tries sourcePath as a prior checkpoint first; a bad
// magic prefix means it is an agent-script instead.
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
		a, err := buildAgent(s)
		if err != nil {
			return nil, err
		}
		agents[i] = a
	}
	return trainstate.New(agents)
}

func buildAgent(s script.AgentSpec) (*tdagent.Agent, error) {
	hidden := defaultHiddenSize
	if len(s.NetDimensions) > 0 {
		hidden = s.NetDimensions[0]
	}
	return tdagent.New(tdagent.Options{
		Name:    s.Name,
		Net:     valuenet.NewDense(valuenet.FeatureSize, hidden),
		Epsilon: s.Exploration,
		Gamma:   s.Discount,
		Lambda:  s.Lambda,
		Alpha:   s.LearningRate,
	})
}

// adjustHyperparameters applies one parsed block's hyperparameters per
// agent, positionally, matching
// original_source/TrainingEngineConsole/TrainingState.cpp's
// adjust_agent_hyper_parameters: every agent must be covered by the
// adjustments script exactly once.
func adjustHyperparameters(ts *trainstate.TrainingState, adjScript string) error {
	specs, err := script.Parse(adjScript)
	if err != nil {
		return err
	}
	if len(specs) != ts.AgentsCount() {
		return fmt.Errorf("trainer: adjustments cover %d agents, population has %d: %w",
			len(specs), ts.AgentsCount(), trainerr.ScriptParseError)
	}
	for i, s := range specs {
		ts.Agent(i).SetHyperparameters(s.Exploration, s.Discount, s.Lambda, s.LearningRate)
	}
	return nil
}

func writeReportRow(w *bufio.Writer, ts *trainstate.TrainingState) {
	perfs := ts.Performances()
	if len(perfs) == 0 {
		return
	}
	p := perfs[len(perfs)-1]
	fmt.Fprintf(w, "%-8d%-12.4f%-12.4f%-12.4f%-12.4f\n", p.Round, p.PerfWhite, p.PerfBlack, p.Draws, p.Score)
}

// dumpEnsembles snapshots every agent as a single-member ensemble
// tagged by round, named Ensemble_r_<round>_<tag>.ena.
func dumpEnsembles(log *tlog.Logger, outputDir string, ts *trainstate.TrainingState, round int) {
	for i := 0; i < ts.AgentsCount(); i++ {
		a := ts.Agent(i)
		ens, err := ensemble.FromAgents([]*tdagent.Agent{a}, true, nil)
		if err != nil {
			log.Error("ensemble dump build failed", "agent", a.Name(), "error", err)
			continue
		}
		path := filepath.Join(outputDir, fmt.Sprintf("Ensemble_r_%d_%s.ena", round, sanitizeTag(a.Name())))
		if err := ens.SaveToFile(path); err != nil {
			log.Error("ensemble dump save failed", "path", path, "error", err)
		}
	}
}

// dumpBestEnsembles snapshots every agent's best-score checkpoint as a
// single-member ensemble, walked in descending-score order via
// TrainingState.RankedIndices, named Ensemble_s_<score>_<tag>.ena.
func dumpBestEnsembles(log *tlog.Logger, outputDir string, ts *trainstate.TrainingState) {
	bestPerf := ts.BestPerf()
	for _, i := range ts.RankedIndices() {
		a := ts.BestAgent(i)
		ens, err := ensemble.FromAgents([]*tdagent.Agent{a}, true, nil)
		if err != nil {
			log.Error("best-score ensemble dump build failed", "agent", a.Name(), "error", err)
			continue
		}
		path := filepath.Join(outputDir, fmt.Sprintf("Ensemble_s_%.4f_%s.ena", bestPerf[i].Score, sanitizeTag(a.Name())))
		if err := ens.SaveToFile(path); err != nil {
			log.Error("best-score ensemble dump save failed", "path", path, "error", err)
		}
	}
}

func sanitizeTag(name string) string {
	return strings.NewReplacer("/", "_", " ", "_").Replace(name)
}
