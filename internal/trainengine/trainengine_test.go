package trainengine

import (
	"context"
	"errors"
	"testing"

	"github.com/dragunovdenis/checkerstrainer/internal/checkers"
	"github.com/dragunovdenis/checkerstrainer/internal/tdagent"
	"github.com/dragunovdenis/checkerstrainer/internal/tlog"
	"github.com/dragunovdenis/checkerstrainer/internal/trainerr"
	"github.com/dragunovdenis/checkerstrainer/internal/trainstate"
	"github.com/dragunovdenis/checkerstrainer/internal/valuenet"
)

func newAgent(t *testing.T, name string) *tdagent.Agent {
	t.Helper()
	a, err := tdagent.New(tdagent.Options{
		Name: name, Net: valuenet.NewDense(valuenet.FeatureSize, 4),
		Epsilon: 0.2, Gamma: 0.9, Lambda: 0.7, Alpha: 0.2,
	})
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	return a
}

func TestRunAdvancesRoundIDAndReports(t *testing.T) {
	agents := []*tdagent.Agent{newAgent(t, "a"), newAgent(t, "b"), newAgent(t, "c"), newAgent(t, "d")}
	ts, err := trainstate.New(agents)
	if err != nil {
		t.Fatalf("new trainstate: %v", err)
	}

	eng := New(ts, Options{
		EpisodesPerRound:       2,
		EvalEpisodes:           4,
		FixedPairs:             true,
		MaxMovesWithoutCapture: 40,
	}, tlog.Discard())

	var reports int
	reporter := func(roundMs int64, perf []trainstate.PerformanceRec) {
		reports++
		if len(perf) != len(agents) {
			t.Fatalf("reporter got %d perf records, want %d", len(perf), len(agents))
		}
	}

	if err := eng.Run(context.Background(), 2, reporter, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if ts.RoundID() != 2 {
		t.Fatalf("round id = %d, want 2", ts.RoundID())
	}
	if reports != 2 {
		t.Fatalf("reports = %d, want 2", reports)
	}
	if len(ts.Performances()) != 2 {
		t.Fatalf("performances length = %d, want 2", len(ts.Performances()))
	}
}

func TestAutoTrainingPairsEveryAgentWithItself(t *testing.T) {
	agents := []*tdagent.Agent{newAgent(t, "a"), newAgent(t, "b"), newAgent(t, "c")}
	ts, err := trainstate.New(agents)
	if err != nil {
		t.Fatalf("new trainstate: %v", err)
	}
	eng := New(ts, Options{AutoTraining: true}, tlog.Discard())

	pairs := eng.pairings()
	if len(pairs) != len(agents) {
		t.Fatalf("self-pairings count = %d, want %d", len(pairs), len(agents))
	}
	for i, pr := range pairs {
		if pr[0] != i || pr[1] != i {
			t.Fatalf("pair %d = %v, want {%d,%d}", i, pr, i, i)
		}
	}
}

func TestRemoveOutliersPreservesPopulationSize(t *testing.T) {
	agents := []*tdagent.Agent{newAgent(t, "a"), newAgent(t, "b"), newAgent(t, "c"), newAgent(t, "d")}
	ts, err := trainstate.New(agents)
	if err != nil {
		t.Fatalf("new trainstate: %v", err)
	}
	eng := New(ts, Options{
		EpisodesPerRound:       1,
		EvalEpisodes:           2,
		FixedPairs:             true,
		RemoveOutliers:         true,
		MaxMovesWithoutCapture: 40,
	}, tlog.Discard())

	if err := eng.Run(context.Background(), 1, nil, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if ts.AgentsCount() != len(agents) {
		t.Fatalf("agents_count = %d after remove_outliers, want %d (replace, not drop)", ts.AgentsCount(), len(agents))
	}
}

func TestSelfPlayPairWorkerUsesFrozenSnapshotNotLiveAgent(t *testing.T) {
	agents := []*tdagent.Agent{newAgent(t, "a"), newAgent(t, "b")}
	ts, err := trainstate.New(agents)
	if err != nil {
		t.Fatalf("new trainstate: %v", err)
	}
	eng := New(ts, Options{
		AutoTraining:           true,
		EpisodesPerRound:       3,
		MaxMovesWithoutCapture: 40,
	}, tlog.Discard())

	if err := <-eng.pairWorker([2]int{0, 0}, func() bool { return false }); err != nil {
		t.Fatalf("pairWorker: %v", err)
	}

	a := ts.Agent(0)
	if got, want := len(a.Records()), 3; got != want {
		t.Fatalf("agent 0 recorded %d episodes, want %d (one GameOver per episode, not two against itself)", got, want)
	}
}

func TestRunAbortsRoundOnInconsistentState(t *testing.T) {
	agents := []*tdagent.Agent{newAgent(t, "a"), newAgent(t, "b")}
	ts, err := trainstate.New(agents)
	if err != nil {
		t.Fatalf("new trainstate: %v", err)
	}

	// A seed already marked Inverted at toMove=0 is a perspective
	// desync from the first ply onward: every pair hits
	// trainerr.InconsistentState, which is the one error pairWorker
	// forwards to runTrainingPhase's fan-in, so Run must report it.
	eng := New(ts, Options{
		EpisodesPerRound:       1,
		EvalEpisodes:           2,
		FixedPairs:             true,
		MaxMovesWithoutCapture: 40,
		Seed:                   checkers.GameState{Inverted: true},
	}, tlog.Discard())

	err = eng.Run(context.Background(), 1, nil, nil)
	if err == nil {
		t.Fatal("expected an error from a perspective-desync seed, got nil")
	}
	if !errors.Is(err, trainerr.InconsistentState) {
		t.Fatalf("err = %v, want one wrapping trainerr.InconsistentState", err)
	}
}

func TestCancelStopsAtRoundBoundary(t *testing.T) {
	agents := []*tdagent.Agent{newAgent(t, "a"), newAgent(t, "b")}
	ts, err := trainstate.New(agents)
	if err != nil {
		t.Fatalf("new trainstate: %v", err)
	}
	eng := New(ts, Options{EpisodesPerRound: 1, EvalEpisodes: 2, FixedPairs: true, MaxMovesWithoutCapture: 40}, tlog.Discard())

	calls := 0
	cancel := func() bool {
		calls++
		return true
	}

	if err := eng.Run(context.Background(), 10, nil, cancel); err != nil {
		t.Fatalf("run: %v", err)
	}
	if ts.RoundID() != 1 {
		t.Fatalf("round id = %d, want exactly 1 round before cancellation took effect", ts.RoundID())
	}
}
