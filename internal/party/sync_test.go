package party

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/cinesync/cinesync/internal/playerstate"
	"github.com/cinesync/cinesync/internal/syncchannel"
)

const frameTimeout = 2 * time.Second

func newSyncServer(t *testing.T, mock pgxmock.PgxPoolIface, store syncchannel.Store) *httptest.Server {
	t.Helper()
	h := NewHandler(mock, testJWTSecret, testBaseURL)
	h.SetSyncStore(store)
	srv := httptest.NewServer(newRouter(h))
	t.Cleanup(srv.Close)
	return srv
}

func expectJoin(mock pgxmock.PgxPoolIface, role string) {
	expectParty(mock, testPartyID, "")
	mock.ExpectExec(`INSERT INTO party_participants`).
		WithArgs(pgxmock.AnyArg(), testPartyID, role, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/parties/" + testPartyID + "/sync"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) syncchannel.Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(frameTimeout))
	var f syncchannel.Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func readWelcome(t *testing.T, conn *websocket.Conn) syncchannel.Welcome {
	t.Helper()
	f := readFrame(t, conn)
	if f.Type != syncchannel.FrameWelcome {
		t.Fatalf("first frame = %q, want welcome", f.Type)
	}
	var w syncchannel.Welcome
	if err := json.Unmarshal(f.Data, &w); err != nil {
		t.Fatal(err)
	}
	return w
}

func TestSync_HostWritesReachViewer(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()
	expectJoin(mock, roleHost)
	expectJoin(mock, roleViewer)

	store := syncchannel.NewMemoryStore()
	srv := newSyncServer(t, mock, store)

	host := dial(t, srv, hostToken(t, testPartyID))
	if w := readWelcome(t, host); w.Role != roleHost || w.ParticipantID == "" {
		t.Fatalf("host welcome = %+v", w)
	}
	viewer := dial(t, srv, "")
	if w := readWelcome(t, viewer); w.Role != roleViewer {
		t.Fatalf("viewer welcome = %+v", w)
	}

	doc := `{"isPlaying":true,"isMuted":false,"isFullscreen":false,"videoSrc":"/api/media/x","duration":7200,"currentTime":42,"videoTitle":"Inception"}`
	if err := host.WriteJSON(syncchannel.Frame{Type: syncchannel.FrameState, Data: json.RawMessage(doc)}); err != nil {
		t.Fatal(err)
	}

	f := readFrame(t, viewer)
	if f.Type != syncchannel.FrameState {
		t.Fatalf("viewer frame = %q, want state", f.Type)
	}
	record, err := playerstate.Decode(f.Data)
	if err != nil {
		t.Fatal(err)
	}
	got := record.State()
	if !got.IsPlaying || got.CurrentTime != 42 || got.Title != "Inception" {
		t.Errorf("viewer state = %+v", got)
	}

	if f := readFrame(t, host); f.Type != syncchannel.FrameState {
		t.Errorf("host echo frame = %q, want state", f.Type)
	}
	if _, ok := store.Document(testPartyID); !ok {
		t.Error("document was not stored")
	}
}

func TestSync_ViewerIsReadOnly(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()
	expectJoin(mock, roleViewer)

	store := syncchannel.NewMemoryStore()
	srv := newSyncServer(t, mock, store)

	viewer := dial(t, srv, "")
	readWelcome(t, viewer)

	if err := viewer.WriteJSON(syncchannel.Frame{Type: syncchannel.FrameState, Data: json.RawMessage(`{"isPlaying":true}`)}); err != nil {
		t.Fatal(err)
	}
	f := readFrame(t, viewer)
	if f.Type != syncchannel.FrameError {
		t.Fatalf("frame = %q, want error", f.Type)
	}
	var msg syncchannel.ErrorMessage
	_ = json.Unmarshal(f.Data, &msg)
	if msg.Message != "read-only participant" {
		t.Errorf("message = %q", msg.Message)
	}
	if _, ok := store.Document(testPartyID); ok {
		t.Error("viewer write must not be stored")
	}
}

func TestSync_LateJoinerGetsCurrentDocument(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()
	expectJoin(mock, roleViewer)

	store := syncchannel.NewMemoryStore()
	_ = store.Put(context.Background(), testPartyID, []byte(`{"isPlaying":false,"videoSrc":null,"videoTitle":"Alien","currentTime":12}`))
	srv := newSyncServer(t, mock, store)

	viewer := dial(t, srv, "")
	readWelcome(t, viewer)

	f := readFrame(t, viewer)
	record, err := playerstate.Decode(f.Data)
	if err != nil {
		t.Fatal(err)
	}
	if s := record.State(); s.Title != "Alien" || s.CurrentTime != 12 {
		t.Errorf("initial state = %+v", s)
	}
}

func TestSync_PingAndMalformedFrames(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()
	expectJoin(mock, roleHost)

	srv := newSyncServer(t, mock, syncchannel.NewMemoryStore())
	host := dial(t, srv, hostToken(t, testPartyID))
	readWelcome(t, host)

	_ = host.WriteJSON(syncchannel.Frame{Type: syncchannel.FramePing})
	if f := readFrame(t, host); f.Type != syncchannel.FramePong {
		t.Errorf("ping reply = %q, want pong", f.Type)
	}

	_ = host.WriteJSON(syncchannel.Frame{Type: syncchannel.FrameState, Data: json.RawMessage(`null`)})
	if f := readFrame(t, host); f.Type != syncchannel.FrameError {
		t.Errorf("null document reply = %q, want error", f.Type)
	}

	_ = host.WriteJSON(syncchannel.Frame{Type: "seek"})
	if f := readFrame(t, host); f.Type != syncchannel.FrameError {
		t.Errorf("unknown frame reply = %q, want error", f.Type)
	}
}

func TestSync_Disabled(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	h := NewHandler(mock, testJWTSecret, testBaseURL)
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/parties/"+testPartyID+"/sync", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestSync_UnknownParty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()
	mock.ExpectQuery(`FROM parties WHERE id = \$1`).
		WithArgs(testPartyID).
		WillReturnError(pgx.ErrNoRows)

	h := NewHandler(mock, testJWTSecret, testBaseURL)
	h.SetSyncStore(syncchannel.NewMemoryStore())
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/parties/"+testPartyID+"/sync", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSync_RemoteStoreRoundTrip(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()
	mock.MatchExpectationsInOrder(false)
	expectJoin(mock, roleHost)
	expectJoin(mock, roleViewer)

	srv := newSyncServer(t, mock, syncchannel.NewMemoryStore())

	hostStore := syncchannel.NewRemoteStore(srv.URL, hostToken(t, testPartyID))
	defer hostStore.Close()
	viewerStore := syncchannel.NewRemoteStore(srv.URL, "")
	defer viewerStore.Close()

	host := syncchannel.New(hostStore)
	defer host.Close()
	viewer := syncchannel.New(viewerStore)
	defer viewer.Close()

	states := make(chan playerstate.PlayerState, 16)
	viewer.Subscribe(func(s playerstate.PlayerState) { states <- s })
	if err := viewer.Initialize(testPartyID); err != nil {
		t.Fatal(err)
	}
	if err := host.Initialize(testPartyID); err != nil {
		t.Fatal(err)
	}

	host.Publish(playerstate.PlayerState{IsPlaying: true, Title: "Heat", CurrentTime: 3})

	deadline := time.After(frameTimeout)
	for {
		select {
		case s := <-states:
			if s.Title == "Heat" && s.IsPlaying {
				return
			}
		case <-deadline:
			t.Fatal("viewer never received the host's state")
		}
	}
}
