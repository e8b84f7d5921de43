// Package server exposes the earshot observability endpoint: liveness and
// readiness probes, the Prometheus metrics scrape and a live detection feed
// over WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/earshot/internal/health"
)

// publishTimeout bounds how long a slow subscriber may block a detection
// broadcast before being dropped.
const publishTimeout = 2 * time.Second

// FeedEvent is the JSON message sent to feed subscribers for each
// detection.
type FeedEvent struct {
	ID         int     `json:"id"`
	Source     string  `json:"source,omitempty"`
	StartFrame int     `json:"start_frame"`
	EndFrame   int     `json:"end_frame"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Duration   float64 `json:"duration"`
}

// Feed broadcasts detections to connected WebSocket subscribers. Safe for
// concurrent use.
type Feed struct {
	mu   sync.Mutex
	subs map[*websocket.Conn]struct{}
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[*websocket.Conn]struct{})}
}

// Publish sends ev to every connected subscriber. Subscribers that cannot
// keep up are disconnected rather than allowed to stall the pipeline.
func (f *Feed) Publish(ev FeedEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("feed: marshal event", "err", err)
		return
	}

	f.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(f.subs))
	for c := range f.subs {
		conns = append(conns, c)
	}
	f.mu.Unlock()

	for _, c := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := c.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			f.remove(c)
			c.Close(websocket.StatusPolicyViolation, "subscriber too slow")
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Feed) add(c *websocket.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[c] = struct{}{}
}

func (f *Feed) remove(c *websocket.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, c)
}

// handleEvents upgrades the request and keeps the connection registered
// until the client goes away. The feed is write-only; client messages are
// drained and discarded.
func (f *Feed) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("feed: accept subscriber", "err", err)
		return
	}
	f.add(conn)
	slog.Debug("feed: subscriber connected", "remote", r.RemoteAddr)

	// Block on reads to notice the disconnect.
	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}
	f.remove(conn)
	conn.Close(websocket.StatusNormalClosure, "bye")
	slog.Debug("feed: subscriber disconnected", "remote", r.RemoteAddr)
}

// Server is the HTTP observability endpoint.
type Server struct {
	srv  *http.Server
	feed *Feed
}

// New assembles the endpoint on addr with the given readiness checkers.
func New(addr string, feed *Feed, checkers ...health.Checker) *Server {
	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	if feed != nil {
		mux.HandleFunc("GET /events", feed.handleEvents)
	}
	return &Server{
		srv:  &http.Server{Addr: addr, Handler: mux},
		feed: feed,
	}
}

// Handler returns the server's HTTP handler, for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
