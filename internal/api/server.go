// Package api exposes the relay over HTTP for web clients and tooling. It is
// a thin layer: JSON in, JSON out, no business logic of its own.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/ruhul03/crisis-connect/internal/history"
	"github.com/ruhul03/crisis-connect/internal/presence"
	"github.com/ruhul03/crisis-connect/internal/relay"
	"github.com/ruhul03/crisis-connect/pkg/types"
)

const defaultRecentLimit = 50

// Server routes REST requests to the relay core.
type Server struct {
	relay   *relay.Service
	board   *presence.Board
	histLog *history.Log
	router  *mux.Router
	handler http.Handler
}

// NewServer wires the REST routes over the given core components.
func NewServer(relayService *relay.Service, board *presence.Board, histLog *history.Log) *Server {
	s := &Server{
		relay:   relayService,
		board:   board,
		histLog: histLog,
		router:  mux.NewRouter(),
	}
	s.setupRoutes()
	// CORS wraps the router itself so preflight requests are answered even
	// when no route matches the OPTIONS method.
	s.handler = s.corsMiddleware(s.router)
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.jsonMiddleware)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/messages", s.sendMessage).Methods(http.MethodPost)
	api.HandleFunc("/messages", s.getRecentMessages).Methods(http.MethodGet)
	api.HandleFunc("/messages", s.clearMessages).Methods(http.MethodDelete)
	api.HandleFunc("/messages/all", s.getAllMessages).Methods(http.MethodGet)
	api.HandleFunc("/status", s.updateStatus).Methods(http.MethodPost)
	api.HandleFunc("/status", s.getAllStatuses).Methods(http.MethodGet)
	api.HandleFunc("/status/{userId}", s.getUserStatus).Methods(http.MethodGet)
	api.HandleFunc("/status/{userId}", s.disconnectUser).Methods(http.MethodDelete)
	api.HandleFunc("/stats", s.getStats).Methods(http.MethodGet)
	api.HandleFunc("/health", s.health).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// sendMessage accepts a message from the web layer and routes it through the
// same path as device traffic: id/timestamp assignment, default-status
// auto-registration, history, bridge, and device fan-out.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var msg types.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		s.sendError(w, "Invalid message body", http.StatusBadRequest)
		return
	}

	stored := s.relay.SendMessage(&msg)
	log.Printf("Message sent via REST API: %s", stored.Content)
	s.sendJSON(w, http.StatusOK, stored)
}

func (s *Server) getRecentMessages(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.sendError(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	s.sendJSON(w, http.StatusOK, s.histLog.Recent(limit))
}

func (s *Server) getAllMessages(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, s.histLog.All())
}

// clearMessages empties both the in-memory history and the persisted store.
func (s *Server) clearMessages(w http.ResponseWriter, r *http.Request) {
	s.histLog.Clear()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	var entry types.StatusEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		s.sendError(w, "Invalid status body", http.StatusBadRequest)
		return
	}
	if err := entry.Validate(); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	stored := s.board.Upsert(&entry)
	s.sendJSON(w, http.StatusOK, stored)
}

func (s *Server) getAllStatuses(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, s.board.All())
}

func (s *Server) getUserStatus(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	entry, exists := s.board.Get(userID)
	if !exists {
		s.sendError(w, "Status not found", http.StatusNotFound)
		return
	}
	s.sendJSON(w, http.StatusOK, entry)
}

// disconnectUser is the authoritative removal: the user's presence entry and
// all their sessions go away regardless of how many sessions are open.
func (s *Server) disconnectUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if !s.relay.DisconnectUser(userID) {
		s.sendError(w, "Status not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, s.relay.Stats())
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{
		"status":    "UP",
		"service":   "CrisisConnect",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, status int) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// corsMiddleware allows browser clients from any origin; the relay serves an
// isolated local network.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
