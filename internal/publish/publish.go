// Package publish implements a websocket-backed external collaborator
// for the board's callback surface (PublishState/PublishStats/
// Cancel/Error), since rendering a GUI itself is out of scope here:
// this module never assumes a browser is attached, but when one is,
// Publisher broadcasts state/stat updates to it and relays a
// browser-side cancel request back into Board/Engine.
//
// Grounded on niceyeti-tabular/tabular/server/server.go's
// serveWebsocket/publishEleUpdates (upgrade, ping/pong keepalive,
// write-deadline-guarded JSON sends), generalized from that server's
// single-assumed-client broadcast (explicitly flagged there as a TODO:
// "managing multiple websockets... this currently assumes hit only
// once") to a connection set guarded by a mutex, since a training run
// publishing to zero-or-more attached observers is this module's
// actual requirement. Routing uses github.com/gorilla/mux instead of
// Fardinak-mnkagent's bare http.HandleFunc, following
// niceyeti-tabular's dependency on gorilla/mux.
package publish

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/dragunovdenis/checkerstrainer/internal/checkers"
	"github.com/dragunovdenis/checkerstrainer/internal/tlog"
)

const writeWait = time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StateMessage is the wire shape of a PublishState call.
type StateMessage struct {
	Ally      uint32 `json:"ally"`
	AllyKing  uint32 `json:"allyKing"`
	Opp       uint32 `json:"opp"`
	OppKing   uint32 `json:"oppKing"`
	Inverted  bool   `json:"inverted"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	ToMoveID  string `json:"toMoveId"`
}

// StatsMessage is the wire shape of a PublishStats call.
type StatsMessage struct {
	WhiteWins  int `json:"whiteWins"`
	BlackWins  int `json:"blackWins"`
	EpisodeIdx int `json:"episodeIdx"`
}

// Publisher serves a websocket endpoint and a cancel endpoint, and
// implements the board.Callbacks function shapes directly (its
// methods are assignable to board.Callbacks' fields without
// adaptation).
type Publisher struct {
	router *mux.Router
	log    *tlog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}

	cancelRequested atomic.Bool
}

// New builds a Publisher. log may be tlog.Discard().
func New(log *tlog.Logger) *Publisher {
	p := &Publisher{
		router: mux.NewRouter(),
		log:    log,
		conns:  make(map[*websocket.Conn]struct{}),
	}
	p.router.HandleFunc("/ws", p.serveWebsocket).Methods(http.MethodGet)
	p.router.HandleFunc("/cancel", p.serveCancel).Methods(http.MethodPost)
	return p
}

// Handler returns the Publisher's HTTP handler, for mounting on a
// *http.Server by the caller: command-line argument parsing, logging
// setup, and GUI wiring are all external collaborators to this package.
func (p *Publisher) Handler() http.Handler { return p.router }

func (p *Publisher) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.log.Error("websocket upgrade failed", "error", err)
		return
	}

	p.mu.Lock()
	p.conns[conn] = struct{}{}
	p.mu.Unlock()

	go p.readPump(conn)
}

// readPump drains client reads so control frames (close, ping/pong)
// are handled, and drops the connection from the broadcast set once
// the client goes away.
func (p *Publisher) readPump(conn *websocket.Conn) {
	defer func() {
		p.mu.Lock()
		delete(p.conns, conn)
		p.mu.Unlock()
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (p *Publisher) serveCancel(w http.ResponseWriter, r *http.Request) {
	p.cancelRequested.Store(true)
	w.WriteHeader(http.StatusNoContent)
}

// PublishState broadcasts the current state to every connected
// client, matching board.Callbacks.PublishState's signature.
func (p *Publisher) PublishState(state checkers.GameState, move checkers.Move, toMoveID string) {
	msg := StateMessage{
		Ally: state.AllyMen, AllyKing: state.AllyKings,
		Opp: state.OppMen, OppKing: state.OppKings,
		Inverted: state.Inverted, ToMoveID: toMoveID,
	}
	if len(move.Subs) > 0 {
		msg.Start = move.Start()
		msg.End = move.End()
	}
	p.broadcast(msg)
}

// PublishStats broadcasts the win counters and episode index, matching
// board.Callbacks.PublishStats's signature.
func (p *Publisher) PublishStats(whiteWins, blackWins, episodeIdx int) {
	p.broadcast(StatsMessage{WhiteWins: whiteWins, BlackWins: blackWins, EpisodeIdx: episodeIdx})
}

// Cancel reports whether a client has requested cancellation since
// the last call to Reset. It matches board.Callbacks.Cancel's and
// trainengine's cancel function signature, so a single Publisher can
// back both layers.
func (p *Publisher) Cancel() bool { return p.cancelRequested.Load() }

// Reset clears a prior cancel request, for reuse across runs.
func (p *Publisher) Reset() { p.cancelRequested.Store(false) }

// Error broadcasts a non-fatal error message, matching
// board.Callbacks.Error's signature.
func (p *Publisher) Error(err error) {
	p.log.Error("publish: reported error", "error", err)
	p.broadcast(struct {
		Error string `json:"error"`
	}{Error: err.Error()})
}

func (p *Publisher) broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		p.log.Error("publish: marshal failed", "error", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for conn := range p.conns {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			delete(p.conns, conn)
			conn.Close()
		}
	}
}
