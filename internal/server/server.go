package server

import (
	"context"
	"io/fs"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cinesync/cinesync/internal/ai"
	"github.com/cinesync/cinesync/internal/auth"
	"github.com/cinesync/cinesync/internal/database"
	"github.com/cinesync/cinesync/internal/geoip"
	"github.com/cinesync/cinesync/internal/metrics"
	"github.com/cinesync/cinesync/internal/party"
	"github.com/cinesync/cinesync/internal/ratelimit"
	"github.com/cinesync/cinesync/internal/syncchannel"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	DB               database.DBTX
	Pinger           Pinger
	Storage          party.MediaStore
	SyncStore        syncchannel.Store
	GeoIP            *geoip.Resolver
	Metrics          *metrics.Metrics
	AI               *ai.Client
	WebFS            fs.FS
	JWTSecret        string
	BaseURL          string
	S3PublicEndpoint string
	AllowedOrigins   []string

	AllowedFrameAncestors string
}

type Server struct {
	router       chi.Router
	pinger       Pinger
	jwtSecret    string
	metrics      *metrics.Metrics
	partyHandler *party.Handler
	aiHandler    *ai.Handler
	webFS        fs.FS
	limiters     []*ratelimit.Limiter
}

func New(cfg Config) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(slogMiddleware)
	r.Use(metricsMiddleware(cfg.Metrics))
	r.Use(securityHeaders(SecurityConfig{
		BaseURL:               cfg.BaseURL,
		StorageEndpoint:       cfg.S3PublicEndpoint,
		AllowedFrameAncestors: cfg.AllowedFrameAncestors,
	}))

	s := &Server{
		router:    r,
		pinger:    cfg.Pinger,
		jwtSecret: cfg.JWTSecret,
		metrics:   cfg.Metrics,
		webFS:     cfg.WebFS,
	}

	if cfg.DB != nil {
		if cfg.JWTSecret == "" {
			log.Fatal("JWT_SECRET is required; set the environment variable")
		}

		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:8080"
		}

		s.partyHandler = party.NewHandler(cfg.DB, cfg.JWTSecret, baseURL)
		if cfg.Storage != nil {
			s.partyHandler.SetMediaStore(cfg.Storage)
		}
		if cfg.SyncStore != nil {
			s.partyHandler.SetSyncStore(cfg.SyncStore)
		}
		s.partyHandler.SetGeoIP(cfg.GeoIP)
		s.partyHandler.SetMetrics(cfg.Metrics)
		s.partyHandler.SetAllowedOrigins(cfg.AllowedOrigins)
	}

	s.aiHandler = ai.NewHandler(cfg.AI)
	if cfg.Metrics != nil {
		s.aiHandler.SetObserver(cfg.Metrics)
	}

	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops the background work of the server's rate limiters.
func (s *Server) Close() {
	for _, l := range s.limiters {
		l.Stop()
	}
}

func (s *Server) newLimiter(rps float64, burst int) *ratelimit.Limiter {
	l := ratelimit.NewLimiter(rps, burst)
	s.limiters = append(s.limiters, l)
	return l
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	if s.partyHandler != nil {
		createLimiter := s.newLimiter(0.5, 5)
		s.router.Route("/api/parties", func(r chi.Router) {
			r.With(createLimiter.Middleware).Post("/", s.partyHandler.Create)
			r.Get("/", s.partyHandler.List)
			r.Get("/{id}", s.partyHandler.Get)
			r.Get("/{id}/participants", s.partyHandler.ListParticipants)
			r.Get("/{id}/sync", s.partyHandler.Sync)
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireHost(s.jwtSecret))
				r.Delete("/{id}", s.partyHandler.Delete)
				r.Post("/{id}/media", s.partyHandler.CreateMedia)
			})
		})
		s.router.Get("/api/media/*", s.partyHandler.ServeMedia)
	}

	aiLimiter := s.newLimiter(0.5, 5)
	s.router.Route("/api/ai", func(r chi.Router) {
		r.Use(aiLimiter.Middleware)
		r.Post("/discussion-starters", s.aiHandler.DiscussionStarters)
		r.Post("/trivia", s.aiHandler.Trivia)
		r.Post("/summary", s.aiHandler.Summary)
		r.Post("/recommend", s.aiHandler.Recommend)
		r.Post("/search", s.aiHandler.Search)
		r.Post("/soundtrack", s.aiHandler.Soundtrack)
		r.Post("/lyrics", s.aiHandler.Lyrics)
		r.Post("/poster", s.aiHandler.Poster)
	})

	if s.webFS != nil {
		spa := newSPAFileServer(s.webFS)
		s.router.NotFound(spa.ServeHTTP)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","error":"database unreachable"}`))
			return
		}
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
