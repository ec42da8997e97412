package server

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shaunagostinho/nmeacast/internal/broadcast"
	"github.com/shaunagostinho/nmeacast/internal/gps"
)

// StatsSource reports driver counters.
type StatsSource interface {
	Stats() broadcast.Stats
}

// Server exposes the live sentence stream over WebSocket plus a small
// read-only API.
type Server struct {
	cfg   *Config
	stats StatsSource
	webFS fs.FS

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader

	lastMu sync.RWMutex
	last   *Frame
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Frame is the JSON structure sent to all WebSocket clients.
type Frame struct {
	Cycle     uint64           `json:"cycle,omitempty"`
	UTC       string           `json:"utc,omitempty"`
	Sentences []string         `json:"sentences,omitempty"`
	Decoded   *gps.Data        `json:"decoded,omitempty"`
	Error     string           `json:"error,omitempty"`
	Stats     *broadcast.Stats `json:"stats,omitempty"`
	Stamp     int64            `json:"stamp"` // Unix ms
}

// New creates a new Server.
func New(cfg *Config, stats StatsSource, webFS fs.FS) *Server {
	return &Server{
		cfg:     cfg,
		stats:   stats,
		webFS:   webFS,
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Serve embedded web files
	if s.webFS != nil {
		mux.Handle("/", http.FileServer(http.FS(s.webFS)))
	}

	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/status", s.handleStatus)
	return mux
}

// Run serves HTTP until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Server.ListenAddr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
		s.closeClients()
	}()

	log.Printf("[server] listening on %s", s.cfg.Server.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Observe turns a cycle into a frame for every connected client.
func (s *Server) Observe(c broadcast.Cycle) {
	var dec gps.Decoder
	sentences := make([]string, 0, 2)
	for _, sent := range []string{c.GGA.String(), c.RMC.String()} {
		sentences = append(sentences, sent)
		if _, err := dec.Apply(sent); err != nil {
			log.Printf("[server] self-check failed on %q: %v", sent, err)
		}
	}

	frame := &Frame{
		Cycle:     c.Seq,
		UTC:       c.Time.String(),
		Sentences: sentences,
		Decoded:   dec.Fix(),
		Stamp:     c.At.UnixMilli(),
	}
	if c.Err != nil {
		frame.Error = c.Err.Error()
	}

	s.lastMu.Lock()
	s.last = frame
	s.lastMu.Unlock()

	s.broadcast(frame)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	n := len(s.clients)
	s.clientsMu.Unlock()

	log.Printf("[ws] client connected (%d total)", n)

	// Send the latest cycle and counters straight away
	initial := Frame{Stamp: time.Now().UnixMilli()}
	s.lastMu.RLock()
	if s.last != nil {
		initial = *s.last
	}
	s.lastMu.RUnlock()
	if s.stats != nil {
		st := s.stats.Stats()
		initial.Stats = &st
	}
	if data, err := json.Marshal(initial); err == nil {
		client.send <- data
	}

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine (keep-alive, detect close)
	go func() {
		defer s.removeClient(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (s *Server) removeClient(c *wsClient) {
	s.clientsMu.Lock()
	if _, ok := s.clients[c]; !ok {
		s.clientsMu.Unlock()
		return
	}
	delete(s.clients, c)
	close(c.send)
	n := len(s.clients)
	s.clientsMu.Unlock()
	log.Printf("[ws] client disconnected (%d total)", n)
}

func (s *Server) closeClients() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		// Configuration is fixed for the process lifetime.
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := s.cfg.ToJSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var st broadcast.Stats
	if s.stats != nil {
		st = s.stats.Stats()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		log.Printf("[server] status encode error: %v", err)
	}
}

func (s *Server) broadcast(frame *Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			// Client too slow, skip
		}
	}
}
