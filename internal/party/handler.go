// Package party serves watch parties over HTTP: scheduling, shared media,
// participants and the websocket that replicates each party's player state.
package party

import (
	"context"
	"time"

	"github.com/cinesync/cinesync/internal/database"
	"github.com/cinesync/cinesync/internal/geoip"
	"github.com/cinesync/cinesync/internal/metrics"
	"github.com/cinesync/cinesync/internal/syncchannel"
)

// MediaStore presigns uploads and downloads of shared party media.
type MediaStore interface {
	GenerateUploadURL(ctx context.Context, key string, contentType string, contentLength int64, expiry time.Duration) (string, error)
	GenerateDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	DeleteObject(ctx context.Context, key string) error
	MaxUploadBytes() int64
}

type Handler struct {
	db        database.DBTX
	jwtSecret string
	baseURL   string
	media     MediaStore
	syncStore syncchannel.Store
	geo       *geoip.Resolver
	metrics   *metrics.Metrics

	allowedOrigins []string
}

func NewHandler(db database.DBTX, jwtSecret, baseURL string) *Handler {
	return &Handler{db: db, jwtSecret: jwtSecret, baseURL: baseURL}
}

func (h *Handler) SetMediaStore(m MediaStore) {
	h.media = m
}

// SetSyncStore enables the websocket sync endpoint.
func (h *Handler) SetSyncStore(s syncchannel.Store) {
	h.syncStore = s
}

func (h *Handler) SetGeoIP(r *geoip.Resolver) {
	h.geo = r
}

func (h *Handler) SetMetrics(m *metrics.Metrics) {
	h.metrics = m
}
