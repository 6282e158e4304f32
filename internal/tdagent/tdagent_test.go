package tdagent

import (
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/dragunovdenis/checkerstrainer/internal/checkers"
	"github.com/dragunovdenis/checkerstrainer/internal/valuenet"
)

func newNet() valuenet.ValueNet {
	return valuenet.NewDense(valuenet.FeatureSize, 4)
}

func oneManState() checkers.GameState {
	var s checkers.GameState
	s.AllyMen = 1 << 11 // square 12
	return s
}

func TestNewValidatesHyperparameters(t *testing.T) {
	Convey("Given out-of-range hyperparameters", t, func() {
		cases := []Options{
			{Name: "a", Net: newNet(), Alpha: 0, Gamma: 0.5, Lambda: 0.5, Epsilon: 0.1},
			{Name: "a", Net: newNet(), Alpha: 2.1, Gamma: 0.5, Lambda: 0.5, Epsilon: 0.1},
			{Name: "a", Net: newNet(), Alpha: 0.1, Gamma: 1.1, Lambda: 0.5, Epsilon: 0.1},
			{Name: "a", Net: newNet(), Alpha: 0.1, Gamma: 0.5, Lambda: -0.1, Epsilon: 0.1},
			{Name: "a", Net: newNet(), Alpha: 0.1, Gamma: 0.5, Lambda: 0.5, Epsilon: 1.1},
		}

		Convey("New rejects every one of them", func() {
			for _, opts := range cases {
				_, err := New(opts)
				So(err, ShouldNotBeNil)
			}
		})
	})

	Convey("Given a nil value net", t, func() {
		_, err := New(Options{Name: "a", Alpha: 0.1, Gamma: 0.5, Lambda: 0.5, Epsilon: 0.1})

		Convey("New rejects it", func() {
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given in-range hyperparameters", t, func() {
		a, err := New(Options{Name: "a", Net: newNet(), Alpha: 0.1, Gamma: 0.9, Lambda: 0.7, Epsilon: 0.2})

		Convey("New succeeds and assigns a non-empty id", func() {
			So(err, ShouldBeNil)
			So(a.ID(), ShouldNotBeEmpty)
		})
	})
}

func TestRestorePreservesExplicitID(t *testing.T) {
	Convey("Given an explicit id", t, func() {
		a, err := Restore("agent-7", "fixed-id-123", newNet(), 0.1, 0.9, 0.7, 0.2)

		Convey("Restore keeps it rather than minting a fresh one", func() {
			So(err, ShouldBeNil)
			So(a.ID(), ShouldEqual, "fixed-id-123")
			So(a.Name(), ShouldEqual, "agent-7")
		})
	})
}

func TestSetTrainingDisablesSearchMode(t *testing.T) {
	Convey("Given an agent with search mode enabled", t, func() {
		a, err := New(Options{Name: "a", Net: newNet(), Alpha: 0.1, Gamma: 0.9, Lambda: 0.7, Epsilon: 0.2})
		So(err, ShouldBeNil)
		a.SetSearchMode(true)
		So(a.SearchMode(), ShouldBeTrue)

		Convey("Enabling training turns search mode back off", func() {
			a.SetTraining(true)
			So(a.Training(), ShouldBeTrue)
			So(a.SearchMode(), ShouldBeFalse)
		})
	})

	Convey("Given an agent already training", t, func() {
		a, err := New(Options{Name: "a", Net: newNet(), Alpha: 0.1, Gamma: 0.9, Lambda: 0.7, Epsilon: 0.2})
		So(err, ShouldBeNil)
		a.SetTraining(true)

		Convey("SetSearchMode is a no-op while training", func() {
			a.SetSearchMode(true)
			So(a.SearchMode(), ShouldBeFalse)
		})
	})
}

func TestSetHyperparametersClampsRatherThanRejects(t *testing.T) {
	Convey("Given an existing agent", t, func() {
		a, err := New(Options{Name: "a", Net: newNet(), Alpha: 0.1, Gamma: 0.9, Lambda: 0.7, Epsilon: 0.2})
		So(err, ShouldBeNil)

		Convey("Out-of-range values are clamped, not rejected", func() {
			a.SetHyperparameters(-1, 5, -5, 10)
			epsilon, gamma, lambda, alpha := a.Hyperparameters()
			So(epsilon, ShouldEqual, 0)
			So(gamma, ShouldEqual, 1)
			So(lambda, ShouldEqual, 0)
			So(alpha, ShouldEqual, 2)
		})
	})
}

func TestMoveRejectsEmptyLegalSet(t *testing.T) {
	Convey("Given an agent and no legal moves", t, func() {
		a, err := New(Options{Name: "a", Net: newNet(), Alpha: 0.1, Gamma: 0.9, Lambda: 0.7, Epsilon: 0.2, Rng: rand.New(rand.NewSource(1))})
		So(err, ShouldBeNil)

		_, err = a.Move(oneManState(), nil)

		Convey("Move fails", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestMoveAlwaysExploresWhenEpsilonIsOne(t *testing.T) {
	Convey("Given epsilon 1", t, func() {
		a, err := New(Options{Name: "a", Net: newNet(), Alpha: 0.1, Gamma: 0.9, Lambda: 0.7, Epsilon: 1, Rng: rand.New(rand.NewSource(1))})
		So(err, ShouldBeNil)

		state := oneManState()
		legal := state.LegalMoves()
		So(len(legal), ShouldBeGreaterThan, 0)

		Convey("Move still returns one of the legal moves", func() {
			chosen, err := a.Move(state, legal)
			So(err, ShouldBeNil)
			found := false
			for _, m := range legal {
				if m.Equal(chosen) {
					found = true
				}
			}
			So(found, ShouldBeTrue)
		})
	})
}

func TestTrainingUpdatesDoNotPanicAcrossAnEpisode(t *testing.T) {
	Convey("Given a training agent playing several moves then GameOver", t, func() {
		a, err := New(Options{Name: "a", Net: newNet(), Alpha: 0.1, Gamma: 0.9, Lambda: 0.7, Epsilon: 0.5, Rng: rand.New(rand.NewSource(1))})
		So(err, ShouldBeNil)
		a.SetTraining(true)

		state := checkers.NewStart()

		Convey("Repeated Move + GameOver leaves the agent usable", func() {
			So(func() {
				for i := 0; i < 3; i++ {
					legal := state.LegalMoves()
					if len(legal) == 0 {
						break
					}
					chosen, err := a.Move(state, legal)
					So(err, ShouldBeNil)
					state, err = state.MakeMove(chosen)
					So(err, ShouldBeNil)
				}
				a.GameOver(1, "opponent", Victory)
			}, ShouldNotPanic)

			Convey("A training record was appended", func() {
				records := a.Records()
				So(len(records), ShouldEqual, 1)
				So(records[0].OpponentID, ShouldEqual, "opponent")
				So(records[0].Result, ShouldEqual, float64(Victory))
			})
		})
	})
}

func TestResetEpisodeClearsPreviousAfterState(t *testing.T) {
	Convey("Given an agent that has just moved", t, func() {
		a, err := New(Options{Name: "a", Net: newNet(), Alpha: 0.1, Gamma: 0.9, Lambda: 0.7, Epsilon: 0, Rng: rand.New(rand.NewSource(1))})
		So(err, ShouldBeNil)

		state := oneManState()
		legal := state.LegalMoves()
		_, err = a.Move(state, legal)
		So(err, ShouldBeNil)

		Convey("ResetEpisode does not panic on the next episode's first move", func() {
			a.ResetEpisode()
			So(a.prevAfterState, ShouldBeNil)
			So(func() {
				_, _ = a.Move(state, legal)
			}, ShouldNotPanic)
		})
	})
}
