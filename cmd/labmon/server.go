package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/quenchlab/labkit/internal/scpimux"
)

// Server exposes the instrument link over HTTP: a status page, a
// command endpoint restricted to the allow list, and an SSE tail of
// every line the instrument emits.
type Server struct {
	mux     scpimux.MuxInterface
	started time.Time

	mu        sync.Mutex
	lastLine  string
	lineCount int
}

func NewServer(mux scpimux.MuxInterface) *Server {
	return &Server{mux: mux, started: time.Now()}
}

// RecordLine updates the status counters; the main subscribe loop calls
// it for every line read from the port.
func (s *Server) RecordLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLine = line
	s.lineCount++
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.statusHandler)
	mux.HandleFunc("/command", s.sendCommandHandler)
	mux.HandleFunc("/tail", s.tailHandler)
	return mux
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status := map[string]any{
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"lines_seen": s.lineCount,
		"last_line":  s.lastLine,
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	command := strings.TrimSpace(r.FormValue("command"))
	if !slices.Contains(allowedCommands, command) {
		http.Error(w, "Invalid command", http.StatusBadRequest)
		return
	}

	if strings.HasSuffix(command, "?") {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		reply, err := s.mux.Query(ctx, command)
		if err != nil {
			http.Error(w, fmt.Sprintf("Query failed: %v", err), http.StatusBadGateway)
			return
		}
		fmt.Fprintln(w, reply)
		return
	}

	if err := s.mux.Send(command); err != nil {
		http.Error(w, fmt.Sprintf("Send failed: %v", err), http.StatusBadGateway)
		return
	}
	fmt.Fprintln(w, "Command sent successfully")
}

// tailHandler streams instrument reply lines as server-sent events until
// the client disconnects.
func (s *Server) tailHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	id, lines := s.mux.Subscribe()
	defer s.mux.Unsubscribe(id)

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", line)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
