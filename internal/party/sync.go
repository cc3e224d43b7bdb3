package party

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/cinesync/cinesync/internal/auth"
	"github.com/cinesync/cinesync/internal/httputil"
	"github.com/cinesync/cinesync/internal/metrics"
	"github.com/cinesync/cinesync/internal/playerstate"
	"github.com/cinesync/cinesync/internal/syncchannel"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendQueueSize  = 64
)

const (
	roleHost   = "host"
	roleViewer = "viewer"
)

// SetAllowedOrigins restricts which browser origins may open the sync
// websocket. Requests without an Origin header are always accepted.
func (h *Handler) SetAllowedOrigins(origins []string) {
	h.allowedOrigins = origins
}

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      h.checkOrigin,
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(h.allowedOrigins) == 0 {
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Sync upgrades to the party websocket. Every participant receives the
// current document and each later write; only the host may write.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	if h.syncStore == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "sync is not enabled")
		return
	}
	if _, ok := h.authorizedParty(w, r); !ok {
		return
	}
	partyID := chi.URLParam(r, "id")

	role := roleViewer
	if auth.IsHostOf(h.jwtSecret, auth.TokenFromRequest(r), partyID) {
		role = roleHost
	}

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("party sync: upgrade failed", "party_id", partyID, "error", err)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	participantID := h.recordJoin(ctx, partyID, role, r)
	h.metrics.SyncConnected(role)
	slog.Info("party sync: joined", "party_id", partyID, "role", role, "participant_id", participantID)
	defer func() {
		h.recordLeave(ctx, participantID)
		h.metrics.SyncDisconnected(role)
		slog.Info("party sync: left", "party_id", partyID, "role", role, "participant_id", participantID)
	}()

	ch := syncchannel.New(observedStore{Store: h.syncStore, metrics: h.metrics})
	defer ch.Close()

	c := newSyncClient(conn, partyID, role, ch, h.metrics)
	c.sendJSON(syncchannel.FrameWelcome, syncchannel.Welcome{Role: role, ParticipantID: participantID})

	unsub := ch.Subscribe(c.sendState)
	defer unsub()
	if err := ch.Initialize(partyID); err != nil {
		slog.Error("party sync: watch failed", "party_id", partyID, "error", err)
		c.sendJSON(syncchannel.FrameError, syncchannel.ErrorMessage{Message: "sync unavailable"})
		c.close()
		c.writePump()
		return
	}

	go c.writePump()
	c.readPump()
}

// observedStore counts every write that reaches the backing store.
type observedStore struct {
	syncchannel.Store
	metrics *metrics.Metrics
}

func (s observedStore) Put(ctx context.Context, partyID string, doc []byte) error {
	err := s.Store.Put(ctx, partyID, doc)
	s.metrics.StateWrite(err)
	return err
}

type syncClient struct {
	conn    *websocket.Conn
	partyID string
	role    string
	channel *syncchannel.Channel
	metrics *metrics.Metrics

	send      chan syncchannel.Frame
	done      chan struct{}
	closeOnce sync.Once
}

func newSyncClient(conn *websocket.Conn, partyID, role string, ch *syncchannel.Channel, m *metrics.Metrics) *syncClient {
	return &syncClient{
		conn:    conn,
		partyID: partyID,
		role:    role,
		channel: ch,
		metrics: m,
		send:    make(chan syncchannel.Frame, sendQueueSize),
		done:    make(chan struct{}),
	}
}

func (c *syncClient) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *syncClient) sendState(state playerstate.PlayerState) {
	doc, err := playerstate.Serialize(state).Encode()
	if err != nil {
		slog.Error("party sync: encode state failed", "party_id", c.partyID, "error", err)
		return
	}
	c.enqueue(syncchannel.Frame{Type: syncchannel.FrameState, Data: doc})
}

func (c *syncClient) sendJSON(frameType string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("party sync: encode frame failed", "type", frameType, "error", err)
		return
	}
	c.enqueue(syncchannel.Frame{Type: frameType, Data: data})
}

// enqueue never blocks. A participant that cannot keep up is disconnected
// and must rejoin to get the current document.
func (c *syncClient) enqueue(f syncchannel.Frame) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- f:
	default:
		slog.Warn("party sync: send queue full, disconnecting", "party_id", c.partyID, "role", c.role)
		c.close()
	}
}

func (c *syncClient) readPump() {
	defer func() {
		c.close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame syncchannel.Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Warn("party sync: unexpected close", "party_id", c.partyID, "error", err)
			}
			return
		}
		c.handle(frame)
	}
}

func (c *syncClient) handle(frame syncchannel.Frame) {
	switch frame.Type {
	case syncchannel.FrameState:
		if c.role != roleHost {
			c.metrics.StateWriteRejected()
			c.sendJSON(syncchannel.FrameError, syncchannel.ErrorMessage{Message: "read-only participant"})
			return
		}
		record, err := playerstate.Decode(frame.Data)
		if err != nil {
			c.sendJSON(syncchannel.FrameError, syncchannel.ErrorMessage{Message: "invalid state document"})
			return
		}
		c.channel.Publish(record.State())
	case syncchannel.FramePing:
		c.enqueue(syncchannel.Frame{Type: syncchannel.FramePong})
	case syncchannel.FramePong:
	default:
		c.sendJSON(syncchannel.FrameError, syncchannel.ErrorMessage{Message: "unknown frame type"})
	}
}

func (c *syncClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case f := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteJSON(f); err != nil {
				return
			}
		case <-c.done:
			c.flush()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// flush writes frames already queued when the client is closed.
func (c *syncClient) flush() {
	for {
		select {
		case f := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				return
			}
		default:
			return
		}
	}
}
