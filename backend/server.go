package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

type Server struct {
	r      *mux.Router
	roster *memRoster
	ctx    context.Context
}

// NewServer builds the hub's HTTP surface: the websocket endpoint and
// the prometheus scrape endpoint. If resyncInterval is nonzero, a
// background loop re-sends the full roster on that cadence.
func NewServer(ctx context.Context, resyncInterval time.Duration) *Server {
	s := &Server{
		roster: newMemRoster(),
		ctx:    ctx,
	}
	s.route()
	if resyncInterval > 0 {
		go s.roster.ResyncLoop(ctx, resyncInterval)
	}
	return s
}

func (s *Server) route() {
	s.r = mux.NewRouter()
	s.r.HandleFunc("/ws", s.handleWS)
	s.r.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.r.ServeHTTP(w, r)
}

// Roster exposes the live roster for console and ops tooling.
func (s *Server) Roster() Roster { return s.roster }

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer conn.Close()

	sessionCount.Inc()
	defer sessionCount.Dec()

	session := newMemSession(s.ctx, conn, s.roster)
	defer session.Close()

	session.serve()

	// Releasing roster membership promptly is what lets other clients
	// converge after a user truly leaves.
	if err := s.roster.Part(session.ctx, session); err != nil {
		Logger(session.ctx).Printf("error: part: %s", err)
	}
}

func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}

	if u.Host == r.Host {
		return true
	}
	if strings.TrimPrefix(u.Host, "www.") == r.Host {
		return true
	}
	return false
}
