// Package board implements the two-agent episode driver, including
// termination and result propagation.
//
// Grounded on environment.go/mnkenvironment.go's Act/Evaluate
// interaction loop, generalized from a single shared-board Environment
// interacting with externally-driven turn order to a perspective-
// inverting two-agent driver.
package board

import (
	"fmt"

	"github.com/dragunovdenis/checkerstrainer/internal/checkers"
	"github.com/dragunovdenis/checkerstrainer/internal/tdagent"
	"github.com/dragunovdenis/checkerstrainer/internal/trainerr"
)

// Player is the capability set every agent kind (TD(λ) agent or
// ensemble) exposes to a Board, replacing IMinimalAgent
// pointer-polymorphism with a small Go interface.
type Player interface {
	ID() string
	Move(state checkers.GameState, legal []checkers.Move) (checkers.Move, error)
	GameOver(round int, opponentID string, result tdagent.Result)
	ResetEpisode()
}

// Callbacks is the external collaborator surface a Board reports
// through, modeled as a capability struct passed by reference rather
// than a function-pointer-plus-opaque-agent-pointer pair. Any field
// may be left nil.
type Callbacks struct {
	// PublishState is called after every ply (and once before the
	// first) with the current state, the move just played (zero Move
	// before the first ply), and the id of the agent now to move.
	PublishState func(state checkers.GameState, lastMove checkers.Move, toMoveID string)
	// PublishStats is called once per completed episode.
	PublishStats func(whiteWins, blackWins, episodeIdx int)
	// Cancel is polled before every ply; returning true ends the
	// current episode as a draw.
	Cancel func() bool
	// Error reports a non-fatal per-pair failure.
	Error func(err error)
}

// Board is the C5 episode driver: it owns a GameState for the
// episode's lifetime and holds the two competing agents.
type Board struct {
	agents    [2]Player
	state     checkers.GameState
	whiteWins int
	blackWins int
}

// New builds a Board for agentA (white/first-mover) vs agentB.
func New(agentA, agentB Player) *Board {
	return &Board{agents: [2]Player{agentA, agentB}}
}

// SwapAgents exchanges the two agents and resets win counters (the
// Checkers-specific variant this is grounded on also resets held
// state, which this Board always owns fresh per episode anyway).
func (b *Board) SwapAgents() {
	b.agents[0], b.agents[1] = b.agents[1], b.agents[0]
	b.whiteWins, b.blackWins = 0, 0
}

// Wins returns the accumulated win counts (white is agents[0], black
// is agents[1]).
func (b *Board) Wins() (white, black int) { return b.whiteWins, b.blackWins }

// Play runs episodes games from seed, calling cb at each step. round
// is threaded into each agent's GameOver call for training-record
// bookkeeping. maxMovesWithoutCapture is the draw bound: exceeding it
// — strictly, not merely reaching it — ends the episode as a draw.
//
// All caught errors are surfaced via cb.Error and stop the loop
// immediately: a per-pair failure aborts that pair's remaining
// episodes for the round but does not panic.
func (b *Board) Play(episodes, round int, seed checkers.GameState, maxMovesWithoutCapture int, cb Callbacks) error {
	for ep := 0; ep < episodes; ep++ {
		result, err := b.playEpisode(round, seed, maxMovesWithoutCapture, cb)
		if err != nil {
			if cb.Error != nil {
				cb.Error(err)
			}
			return err
		}

		switch result {
		case episodeWhiteWin:
			b.whiteWins++
		case episodeBlackWin:
			b.blackWins++
		}

		if cb.PublishStats != nil {
			cb.PublishStats(b.whiteWins, b.blackWins, ep+1)
		}
	}
	return nil
}

type episodeResult int

const (
	episodeDraw episodeResult = iota
	episodeWhiteWin
	episodeBlackWin
)

func (b *Board) playEpisode(round int, seed checkers.GameState, maxMovesWithoutCapture int, cb Callbacks) (episodeResult, error) {
	b.state = seed
	toMove := 0
	b.agents[0].ResetEpisode()
	b.agents[1].ResetEpisode()

	if cb.PublishState != nil {
		cb.PublishState(b.state, checkers.Move{}, b.agents[toMove].ID())
	}

	movesWithoutCapture := 0
	var result episodeResult
	var loserIdx = -1 // -1 means draw

	for {
		if cb.Cancel != nil && cb.Cancel() {
			result = episodeDraw
			break
		}

		if b.state.Inverted != (toMove == 1) {
			return 0, fmt.Errorf("board: perspective desync (toMove=%d, inverted=%v): %w", toMove, b.state.Inverted, trainerr.InconsistentState)
		}

		legal := b.state.LegalMoves()
		if len(legal) == 0 {
			loserIdx = toMove
			if toMove == 0 {
				result = episodeBlackWin
			} else {
				result = episodeWhiteWin
			}
			break
		}

		move, err := b.agents[toMove].Move(b.state, legal)
		if err != nil {
			return 0, err
		}

		next, err := b.state.MakeMove(move)
		if err != nil {
			return 0, err
		}

		if move.IsCapture() {
			movesWithoutCapture = 0
		} else {
			movesWithoutCapture++
		}

		b.state = next.Invert()
		toMove = 1 - toMove

		if cb.PublishState != nil {
			cb.PublishState(b.state, move, b.agents[toMove].ID())
		}

		if movesWithoutCapture > maxMovesWithoutCapture {
			result = episodeDraw
			break
		}
	}

	b.reportTerminal(round, result, loserIdx)
	return result, nil
}

func (b *Board) reportTerminal(round int, result episodeResult, loserIdx int) {
	opponentOf := func(i int) string { return b.agents[1-i].ID() }

	switch result {
	case episodeDraw:
		b.agents[0].GameOver(round, opponentOf(0), tdagent.Draw)
		b.agents[1].GameOver(round, opponentOf(1), tdagent.Draw)
	default:
		winnerIdx := 1 - loserIdx
		b.agents[winnerIdx].GameOver(round, opponentOf(winnerIdx), tdagent.Victory)
		b.agents[loserIdx].GameOver(round, opponentOf(loserIdx), tdagent.Loss)
	}
}
