// Package daemontest provides an in-process fake of the daemon HTTP API.
package daemontest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tiles/internal/daemon"
)

// Server is a fake daemon. The zero configuration answers every endpoint
// successfully; the Set* methods switch on failure modes.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	pingStatus int
	loadStatus int
	reply      *string
	loads      []daemon.LoadRequest
	chats      []daemon.ChatRequest
	pings      int
}

// New starts a fake daemon. Callers must Close it.
func New() *Server {
	reply := "ok"
	s := &Server{pingStatus: http.StatusOK, loadStatus: http.StatusOK, reply: &reply}
	s.Server = httptest.NewServer(s.router())
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/ping", s.handlePing)
	r.Post("/start", s.handleStart)
	r.Post("/v1/chat/completions", s.handleChat)
	return r
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.pings++
	code := s.pingStatus
	s.mu.Unlock()
	w.WriteHeader(code)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req daemon.LoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.loads = append(s.loads, req)
	code := s.loadStatus
	s.mu.Unlock()
	if code != http.StatusOK {
		http.Error(w, "load failed", code)
		return
	}
	writeJSON(w, map[string]string{"status": "loaded", "model": req.Model})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req daemon.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.chats = append(s.chats, req)
	reply := s.reply
	s.mu.Unlock()
	msg := map[string]any{"role": "assistant"}
	if reply != nil {
		msg["content"] = *reply
	}
	writeJSON(w, map[string]any{"choices": []any{map[string]any{"message": msg}}})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// SetPingStatus sets the status returned by /ping.
func (s *Server) SetPingStatus(code int) {
	s.mu.Lock()
	s.pingStatus = code
	s.mu.Unlock()
}

// SetLoadStatus sets the status returned by /start.
func (s *Server) SetLoadStatus(code int) {
	s.mu.Lock()
	s.loadStatus = code
	s.mu.Unlock()
}

// SetReply sets the chat reply; nil omits the content field.
func (s *Server) SetReply(reply *string) {
	s.mu.Lock()
	s.reply = reply
	s.mu.Unlock()
}

// Loads returns the load requests received so far.
func (s *Server) Loads() []daemon.LoadRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]daemon.LoadRequest(nil), s.loads...)
}

// Chats returns the chat requests received so far.
func (s *Server) Chats() []daemon.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]daemon.ChatRequest(nil), s.chats...)
}

// Pings returns the number of liveness probes received.
func (s *Server) Pings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pings
}

// Client returns a daemon client pointed at the fake.
func (s *Server) Client() *daemon.Client {
	return daemon.NewClientURL(s.URL)
}
