// Package server exposes a read-only operational feed: current pipeline
// stats over HTTP and a live alert/stats stream over WebSocket. It carries
// no control surface; mutating the pipeline stays with the embedding
// process.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/framegate/framegate/internal/core/monitor"
	"github.com/framegate/framegate/internal/core/observability/log"
	"github.com/framegate/framegate/internal/core/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Config holds the listen address and stream pacing.
type Config struct {
	Host          string        `yaml:"host" json:"host"`
	Port          int           `yaml:"port" json:"port"`
	StatsInterval time.Duration `yaml:"stats_interval" json:"stats_interval"`
}

func DefaultConfig() Config {
	return Config{Host: "127.0.0.1", Port: 8750, StatsInterval: time.Second}
}

// streamMessage is the wire envelope for the WebSocket feed.
type streamMessage struct {
	Kind  string          `json:"kind"` // "stats" or "alert"
	Stats *pipeline.Stats `json:"stats,omitempty"`
	Alert *monitor.Alert  `json:"alert,omitempty"`
}

// StatsServer streams pipeline stats and alerts to connected operator
// clients. It registers itself as an alert sink on the pipeline's monitor.
type StatsServer struct {
	cfg  Config
	pipe *pipeline.Pipeline
	lg   log.Log

	mu      sync.Mutex
	clients map[*websocket.Conn]chan streamMessage

	httpSrv *http.Server
	boundTo string
	cancel  context.CancelFunc
	group   *errgroup.Group
}

func NewStatsServer(cfg Config, pipe *pipeline.Pipeline, lg log.Log) *StatsServer {
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = time.Second
	}
	s := &StatsServer{
		cfg:     cfg,
		pipe:    pipe,
		lg:      lg,
		clients: make(map[*websocket.Conn]chan streamMessage),
	}
	pipe.Monitor().RegisterAlertCallback(s.onAlert)
	return s
}

// Start binds the listener and launches the broadcast loop.
func (s *StatsServer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	s.cancel = cancel
	s.group = g

	mux := http.NewServeMux()
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/report", s.handleReport)
	mux.HandleFunc("/ws", s.handleWebSocket)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		cancel()
		return fmt.Errorf("stats server listen: %w", err)
	}
	s.httpSrv = &http.Server{Handler: mux}
	s.boundTo = listener.Addr().String()

	g.Go(func() error {
		if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		s.broadcastLoop(ctx)
		return nil
	})

	if s.lg != nil {
		s.lg.Info("stats server listening", log.String("addr", listener.Addr().String()))
	}
	return nil
}

// Stop closes the listener, disconnects clients and waits for the loops.
func (s *StatsServer) Stop() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.httpSrv.Shutdown(shutdownCtx)

	s.mu.Lock()
	for conn, ch := range s.clients {
		close(ch)
		_ = conn.Close()
		delete(s.clients, conn)
	}
	s.mu.Unlock()

	return s.group.Wait()
}

// Addr returns the bound address, useful when Port was 0.
func (s *StatsServer) Addr() string {
	return s.boundTo
}

func (s *StatsServer) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.pipe.Stats())
}

func (s *StatsServer) handleReport(w http.ResponseWriter, r *http.Request) {
	window := 5 * time.Minute
	if q := r.URL.Query().Get("minutes"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			window = time.Duration(n) * time.Minute
		}
	}
	writeJSON(w, s.pipe.GetReport(window))
}

func (s *StatsServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.lg != nil {
			s.lg.Warn("websocket upgrade failed", log.Error(err))
		}
		return
	}

	ch := make(chan streamMessage, 64)
	s.mu.Lock()
	s.clients[conn] = ch
	s.mu.Unlock()

	go s.writeLoop(conn, ch)
}

func (s *StatsServer) writeLoop(conn *websocket.Conn, ch chan streamMessage) {
	defer s.dropClient(conn)
	for msg := range ch {
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (s *StatsServer) dropClient(conn *websocket.Conn) {
	s.mu.Lock()
	if ch, ok := s.clients[conn]; ok {
		delete(s.clients, conn)
		close(ch)
	}
	s.mu.Unlock()
	_ = conn.Close()
}

// broadcastLoop pushes a stats snapshot to every client on the interval.
func (s *StatsServer) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.StatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := s.pipe.Stats()
			s.broadcast(streamMessage{Kind: "stats", Stats: &stats})
		}
	}
}

// onAlert is the alert sink registered with the performance monitor.
func (s *StatsServer) onAlert(a monitor.Alert) {
	s.broadcast(streamMessage{Kind: "alert", Alert: &a})
}

func (s *StatsServer) broadcast(msg streamMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.clients {
		select {
		case ch <- msg:
		default:
			// Slow consumer: drop the message rather than stall the feed.
		}
	}
}

func (s *StatsServer) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
