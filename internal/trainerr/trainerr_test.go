package trainerr

import (
	"errors"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSentinelsSurviveWrapping(t *testing.T) {
	Convey("Given a sentinel wrapped with %w", t, func() {
		wrapped := fmt.Errorf("trainstate: load dump: %w", CheckpointCorrupt)

		Convey("errors.Is still recognizes the sentinel", func() {
			So(errors.Is(wrapped, CheckpointCorrupt), ShouldBeTrue)
		})

		Convey("It is not confused with an unrelated sentinel", func() {
			So(errors.Is(wrapped, IoError), ShouldBeFalse)
		})
	})
}

func TestSentinelsAreDistinct(t *testing.T) {
	Convey("Given every sentinel kind", t, func() {
		kinds := []error{
			IoError, ScriptParseError, InvalidMoveSet, AgentMisconfigured,
			InconsistentState, CheckpointCorrupt, Cancelled,
		}

		Convey("No two share the same identity or message", func() {
			for i, a := range kinds {
				for j, b := range kinds {
					if i == j {
						continue
					}
					So(errors.Is(a, b), ShouldBeFalse)
					So(a.Error(), ShouldNotEqual, b.Error())
				}
			}
		})
	})
}
