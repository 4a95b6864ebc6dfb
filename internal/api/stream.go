package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/motion.trace/internal/httputil"
	"github.com/banshee-data/motion.trace/internal/monitoring"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is same-host tooling; cross-origin dashboards are allowed.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStream pushes trajectory points as server-sent events until the
// client disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.InternalServerError(w, "streaming unsupported")
		return
	}

	id, ch := s.sess.Subscribe()
	defer s.sess.Unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case point, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(point)
			if err != nil {
				monitoring.Logf("stream: marshal point: %v", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// handleLive streams trajectory points over a websocket.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		monitoring.Logf("live: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	id, ch := s.sess.Subscribe()
	defer s.sess.Unsubscribe(id)

	// Reader goroutine: drains client messages and surfaces disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case point, open := <-ch:
			if !open {
				return
			}
			if err := conn.WriteJSON(point); err != nil {
				monitoring.Logf("live: write failed: %v", err)
				return
			}
		}
	}
}
