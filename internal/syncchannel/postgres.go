package syncchannel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cinesync/cinesync/internal/database"
)

// NotifyChannel is the Postgres LISTEN/NOTIFY channel carrying party writes.
const NotifyChannel = "party_state"

const listenRetryDelay = 2 * time.Second

type notification struct {
	PartyID  string          `json:"partyId"`
	Document json.RawMessage `json:"document"`
}

// PostgresStore keeps one row per party in party_states and announces each
// write with pg_notify. Listen must be running for watchers to see writes
// made after their initial read.
type PostgresStore struct {
	db    database.DBTX
	peers *fanout
}

func NewPostgresStore(db database.DBTX) *PostgresStore {
	return &PostgresStore{db: db, peers: newFanout()}
}

func (s *PostgresStore) Put(ctx context.Context, partyID string, doc []byte) error {
	_, err := s.db.Exec(ctx,
		`WITH upsert AS (
		     INSERT INTO party_states (party_id, document, updated_at)
		     VALUES ($1, $2, now())
		     ON CONFLICT (party_id) DO UPDATE SET document = EXCLUDED.document, updated_at = now()
		     RETURNING party_id, document
		 )
		 SELECT pg_notify($3, json_build_object('partyId', party_id, 'document', document)::text) FROM upsert`,
		partyID, doc, NotifyChannel,
	)
	if err != nil {
		return fmt.Errorf("store party state: %w", err)
	}
	return nil
}

// Watch registers fn before reading the current row so that a write
// notified during the read still reaches it.
func (s *PostgresStore) Watch(ctx context.Context, partyID string, fn func([]byte)) (func(), error) {
	prime, stop := s.peers.addPending(partyID, fn)

	var current []byte
	err := s.db.QueryRow(ctx,
		`SELECT document FROM party_states WHERE party_id = $1`,
		partyID,
	).Scan(&current)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		stop()
		return nil, fmt.Errorf("load party state: %w", err)
	}
	if current != nil {
		prime(current)
	}
	return stopOnDone(ctx, stop), nil
}

// Listen holds a dedicated pool connection on LISTEN and dispatches every
// notification until ctx ends. Lost connections are re-acquired.
func (s *PostgresStore) Listen(ctx context.Context, pool *pgxpool.Pool) error {
	for {
		err := s.listenOnce(ctx, pool)
		if ctx.Err() != nil {
			s.peers.closeAll()
			return ctx.Err()
		}
		slog.Error("sync listener: connection lost", "error", err)

		select {
		case <-ctx.Done():
			s.peers.closeAll()
			return ctx.Err()
		case <-time.After(listenRetryDelay):
		}
	}
}

func (s *PostgresStore) listenOnce(ctx context.Context, pool *pgxpool.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	slog.Info("sync listener: listening", "channel", NotifyChannel)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		s.dispatch(n.Payload)
	}
}

func (s *PostgresStore) dispatch(payload string) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		slog.Warn("sync listener: malformed notification", "error", err)
		return
	}
	if n.PartyID == "" {
		return
	}
	s.peers.broadcast(n.PartyID, n.Document)
}
