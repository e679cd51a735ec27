// Package monitor keeps the most recent telemetry payloads and serves them to
// browsers over a token-guarded HTTP API and a websocket stream.
package monitor

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"navtelemetry/internal/auth"
	"navtelemetry/internal/codec"
)

//go:embed web/index.html
var webFS embed.FS

// DefaultCapacity is the number of payloads kept for /api/readings.
const DefaultCapacity = 500

// Server represents the monitor server
type Server struct {
	router       *chi.Mux
	srv          *http.Server
	store        *Store
	hub          *Hub
	authMw       *auth.Middleware
	wsTokenStore *auth.WSTokenStore
	upgrader     websocket.Upgrader
	logger       *slog.Logger
	now          func() time.Time
}

// NewServer creates the monitor on addr. Tokens are validated by jwtManager.
func NewServer(addr string, capacity int, jwtManager *auth.JWTManager, logger *slog.Logger) *Server {
	logger = logger.With("component", "monitor")
	s := &Server{
		router:       chi.NewRouter(),
		store:        NewStore(capacity),
		hub:          NewHub(logger),
		authMw:       auth.NewMiddleware(jwtManager, auth.NewFailureLimiter(), logger),
		wsTokenStore: auth.NewWSTokenStore(),
		logger:       logger,
		now:          time.Now,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	s.setupRoutes()
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/", s.index)
	r.Get("/healthz", s.health)
	r.Get("/api/ws", s.stream)

	r.Group(func(r chi.Router) {
		r.Use(s.authMw.RequireAuth)
		r.Get("/api/readings", s.readings)
		r.Get("/api/readings/latest", s.latest)
		r.Get("/api/ws-ticket", s.ticket)
	})
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Ingest parses a wire payload received on topic, stores it and pushes it to
// connected clients. Payloads that do not parse are dropped.
func (s *Server) Ingest(topic string, payload []byte) {
	msg, err := codec.ParseWire(string(payload))
	if err != nil {
		s.logger.Debug("Dropping payload", "topic", topic, "error", err)
		return
	}

	entry := s.store.Add(topic, msg, s.now())
	data, err := json.Marshal(entry)
	if err != nil {
		s.logger.Warn("Failed to encode entry", "topic", topic, "error", err)
		return
	}
	s.hub.Broadcast(data)
}

// Store exposes the payload buffer.
func (s *Server) Store() *Store {
	return s.store
}

// Run serves until ctx is cancelled, then disconnects every client.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Serving monitor", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	data, err := webFS.ReadFile("web/index.html")
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"healthy": true,
		"clients": s.hub.Count(),
		"entries": s.store.Count(),
		"last_id": s.store.LastID(),
	})
}

// readings handles GET /api/readings?since=<id>&limit=<n>
func (s *Server) readings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if v := q.Get("since"); v != "" {
		since, err := strconv.ParseInt(v, 10, 64)
		if err != nil || since < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid since"})
			return
		}
		writeJSON(w, http.StatusOK, nonNil(s.store.GetSince(since)))
		return
	}

	limit := 50
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.store.GetLast(limit))
}

// latest handles GET /api/readings/latest
func (s *Server) latest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Latest())
}

// ticket handles GET /api/ws-ticket
// Returns a one-time ticket for the websocket stream
func (s *Server) ticket(w http.ResponseWriter, r *http.Request) {
	viewer := auth.GetViewerFromContext(r.Context())
	if viewer == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
		return
	}

	ticket, err := s.wsTokenStore.Generate(viewer.Name)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to generate ticket"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ticket": ticket})
}

// checkOrigin admits a websocket upgrade only with a valid one-time ticket
func (s *Server) checkOrigin(r *http.Request) bool {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		s.logger.Warn("WebSocket rejected: missing ticket", "ip", auth.ClientIP(r))
		return false
	}

	viewer, ok := s.wsTokenStore.Validate(ticket)
	if !ok {
		s.logger.Warn("WebSocket rejected: invalid or expired ticket", "ip", auth.ClientIP(r))
		return false
	}

	s.logger.Info("WebSocket authorized", "viewer", viewer)
	return true
}

// stream handles GET /api/ws. The newest entry of every topic is sent first.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	var initial [][]byte
	for _, e := range s.store.Latest() {
		if data, err := json.Marshal(e); err == nil {
			initial = append(initial, data)
		}
	}
	s.hub.Serve(ws, initial...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func nonNil(entries []Entry) []Entry {
	if entries == nil {
		return []Entry{}
	}
	return entries
}
