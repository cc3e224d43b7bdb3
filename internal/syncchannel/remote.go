package syncchannel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const remoteWriteWait = 10 * time.Second

// PasscodeHeader carries the passcode of a protected party.
const PasscodeHeader = "X-Party-Passcode"

// RemoteStore is the client side of the server's party websocket. A
// connection is opened per party on first use and shared by Put and Watch.
// Dropped connections are not re-established.
type RemoteStore struct {
	baseURL  string
	token    string
	passcode string
	dialer   *websocket.Dialer

	mu    sync.Mutex
	conns map[string]*remoteConn
	peers *fanout
}

type remoteConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	last    []byte
	welcome *Welcome
}

// NewRemoteStore connects to baseURL (http, https, ws or wss). token is the
// host token; viewers pass "".
func NewRemoteStore(baseURL, token string) *RemoteStore {
	return &RemoteStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		dialer:  websocket.DefaultDialer,
		conns:   make(map[string]*remoteConn),
		peers:   newFanout(),
	}
}

// SetPasscode is sent on every new connection to open protected parties.
func (s *RemoteStore) SetPasscode(passcode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passcode = passcode
}

func (s *RemoteStore) Put(ctx context.Context, partyID string, doc []byte) error {
	rc, err := s.connect(ctx, partyID)
	if err != nil {
		return err
	}

	rc.writeMu.Lock()
	defer rc.writeMu.Unlock()
	deadline := time.Now().Add(remoteWriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := rc.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := rc.conn.WriteJSON(Frame{Type: FrameState, Data: json.RawMessage(doc)}); err != nil {
		return fmt.Errorf("send state: %w", err)
	}
	return nil
}

func (s *RemoteStore) Watch(ctx context.Context, partyID string, fn func([]byte)) (func(), error) {
	rc, err := s.connect(ctx, partyID)
	if err != nil {
		return nil, err
	}

	rc.mu.Lock()
	stop := s.peers.add(partyID, fn, rc.last)
	rc.mu.Unlock()
	return stopOnDone(ctx, stop), nil
}

// Role returns the role the server granted for partyID, once welcomed.
func (s *RemoteStore) Role(partyID string) string {
	s.mu.Lock()
	rc := s.conns[partyID]
	s.mu.Unlock()
	if rc == nil {
		return ""
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.welcome == nil {
		return ""
	}
	return rc.welcome.Role
}

func (s *RemoteStore) Close() error {
	s.mu.Lock()
	conns := s.conns
	s.conns = make(map[string]*remoteConn)
	s.mu.Unlock()

	for _, rc := range conns {
		_ = rc.conn.Close()
	}
	s.peers.closeAll()
	return nil
}

func (s *RemoteStore) connect(ctx context.Context, partyID string) (*remoteConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rc, ok := s.conns[partyID]; ok {
		return rc, nil
	}

	endpoint, err := s.endpoint(partyID)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}
	if s.passcode != "" {
		header.Set(PasscodeHeader, s.passcode)
	}

	conn, _, err := s.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("dial party %s: %w", partyID, err)
	}

	rc := &remoteConn{conn: conn}
	s.conns[partyID] = rc
	go s.readLoop(partyID, rc)
	return rc, nil
}

func (s *RemoteStore) endpoint(partyID string) (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/parties/" + url.PathEscape(partyID) + "/sync"
	return u.String(), nil
}

func (s *RemoteStore) readLoop(partyID string, rc *remoteConn) {
	defer func() {
		s.mu.Lock()
		if s.conns[partyID] == rc {
			delete(s.conns, partyID)
		}
		s.mu.Unlock()
		_ = rc.conn.Close()
	}()

	for {
		var frame Frame
		if err := rc.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("remote store: connection closed", "party_id", partyID, "error", err)
			}
			return
		}

		switch frame.Type {
		case FrameState:
			rc.mu.Lock()
			rc.last = append([]byte(nil), frame.Data...)
			s.peers.broadcast(partyID, frame.Data)
			rc.mu.Unlock()
		case FrameWelcome:
			var w Welcome
			if err := json.Unmarshal(frame.Data, &w); err == nil {
				rc.mu.Lock()
				rc.welcome = &w
				rc.mu.Unlock()
				slog.Info("remote store: joined party", "party_id", partyID, "role", w.Role)
			}
		case FrameError:
			var e ErrorMessage
			_ = json.Unmarshal(frame.Data, &e)
			slog.Warn("remote store: server rejected frame", "party_id", partyID, "message", e.Message)
		case FramePing:
			rc.writeMu.Lock()
			_ = rc.conn.SetWriteDeadline(time.Now().Add(remoteWriteWait))
			_ = rc.conn.WriteJSON(Frame{Type: FramePong})
			rc.writeMu.Unlock()
		}
	}
}
