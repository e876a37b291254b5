package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"vector-viz/pipeline"
	"vector-viz/sink"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins
	},
}

const noVectors = "No vectors found"

/*
Runner produces a fresh table; *pipeline.Pipeline implements it
*/
type Runner interface {
	RunWithProgress(ctx context.Context, onBatch func(done, total int)) (*pipeline.Table, error)
}

/*
Server represents the API server.

It answers from the cached file when there is one and runs the pipeline otherwise. Pipeline
runs are serialized so only one writer touches the cache at a time.
*/
type Server struct {
	runner Runner
	cache  *sink.FileCache

	mu sync.Mutex

	srvMu      sync.Mutex
	httpServer *http.Server
}

/*
NewServer creates a new API server; a nil cache disables caching
*/
func NewServer(runner Runner, cache *sink.FileCache) *Server {
	return &Server{
		runner: runner,
		cache:  cache,
	}
}

/*
Handler returns the routes of the API
*/
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/vectors", s.HandleVectors)
	mux.HandleFunc("/api/refresh", s.HandleRefresh)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/ws", s.handleWebSocket)
	return mux
}

/*
Start starts the HTTP server and blocks until it is shut down
*/
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.srvMu.Lock()
	s.httpServer = srv
	s.srvMu.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

/*
Shutdown stops accepting connections and waits for running requests
*/
func (s *Server) Shutdown(ctx context.Context) error {
	s.srvMu.Lock()
	srv := s.httpServer
	s.srvMu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

/*
HandleVectors returns the table as a JSON array of row objects
*/
func (s *Server) HandleVectors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.respond(w, r, false)
}

/*
HandleRefresh drops the cached file and rebuilds the table
*/
func (s *Server) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.respond(w, r, true)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, refresh bool) {
	table, err := s.load(r.Context(), refresh, nil)
	if err != nil {
		log.WithError(err).Error("Failed to load vectors")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if table.Len() == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": noVectors})
		return
	}
	writeJSON(w, http.StatusOK, sink.Records(table))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

/*
load returns the cached table or, when there is none or refresh is set, runs the pipeline and
caches its result. A nil table with a nil error means there is no data.
*/
func (s *Server) load(ctx context.Context, refresh bool, onBatch func(done, total int)) (*pipeline.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cache != nil {
		if refresh {
			if err := s.cache.Invalidate(); err != nil {
				return nil, err
			}
		} else if s.cache.Exists() {
			table, err := s.cache.Load()
			if err == nil {
				log.WithField("path", s.cache.Path).Debug("Serving cached table")
				return table, nil
			}
			log.WithError(err).Warn("Cached table unreadable, rebuilding")
		}
	}

	table, err := s.runner.RunWithProgress(ctx, onBatch)
	if err != nil || table == nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Save(table); err != nil {
			log.WithError(err).WithField("path", s.cache.Path).Error("Failed to save cache")
		}
	}
	return table, nil
}

/*
handleWebSocket handles WebSocket connections
*/
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		return
	}
	defer conn.Close()

	// Set read deadline
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// progress callbacks may come from several fetch workers
	var writeMu sync.Mutex
	send := func(v any) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(v); err != nil {
			log.WithError(err).Debug("Failed to write websocket message")
		}
	}

	// Handle WebSocket messages
	for {
		_, p, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var request struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(p, &request); err != nil {
			send(map[string]string{"error": "Invalid JSON"})
			continue
		}

		// Handle different message types
		switch request.Type {
		case "load":
			s.streamVectors(r.Context(), send, false)
		case "refresh":
			s.streamVectors(r.Context(), send, true)
		default:
			send(map[string]string{"error": "Unknown message type"})
		}
	}
}

/*
Helper methods for WebSocket handlers
*/
func (s *Server) streamVectors(ctx context.Context, send func(any), refresh bool) {
	table, err := s.load(ctx, refresh, func(done, total int) {
		send(progressMessage{Type: "progress", Done: done, Total: total})
	})
	if err != nil {
		send(map[string]string{"error": err.Error()})
		return
	}
	if table.Len() == 0 {
		send(map[string]string{"error": noVectors})
		return
	}
	send(vectorsMessage{Type: "vectors", Data: sink.Records(table)})
}

type progressMessage struct {
	Type  string `json:"type"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
}

type vectorsMessage struct {
	Type string           `json:"type"`
	Data []map[string]any `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("Failed to write response")
	}
}
