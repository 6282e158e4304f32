package publish

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dragunovdenis/checkerstrainer/internal/checkers"
	"github.com/dragunovdenis/checkerstrainer/internal/tlog"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + srv.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPublishStateReachesConnectedClient(t *testing.T) {
	p := New(tlog.Discard())
	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	time.Sleep(20 * time.Millisecond) // let the server register the connection

	seed := checkers.NewStart()
	p.PublishState(seed, checkers.Move{}, "agent-a")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var msg StateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.ToMoveID != "agent-a" {
		t.Fatalf("toMoveId = %q, want agent-a", msg.ToMoveID)
	}
	if msg.Ally != seed.AllyMen || msg.Opp != seed.OppMen {
		t.Fatalf("board bits not forwarded: %+v", msg)
	}
}

func TestPublishStatsReachesConnectedClient(t *testing.T) {
	p := New(tlog.Discard())
	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	time.Sleep(20 * time.Millisecond)

	p.PublishStats(3, 2, 7)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg StatsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.WhiteWins != 3 || msg.BlackWins != 2 || msg.EpisodeIdx != 7 {
		t.Fatalf("unexpected stats message: %+v", msg)
	}
}

func TestCancelEndpointSetsCancelFlag(t *testing.T) {
	p := New(tlog.Discard())
	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	if p.Cancel() {
		t.Fatal("cancel should start false")
	}

	resp, err := srv.Client().Post(srv.URL+"/cancel", "application/octet-stream", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	if !p.Cancel() {
		t.Fatal("cancel should be true after /cancel")
	}

	p.Reset()
	if p.Cancel() {
		t.Fatal("cancel should be false after Reset")
	}
}

func TestBroadcastWithNoClientsDoesNotBlock(t *testing.T) {
	p := New(tlog.Discard())
	done := make(chan struct{})
	go func() {
		p.PublishStats(0, 0, 0)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast with no clients blocked")
	}
}
