// Package httpapi exposes the session control surface over HTTP: REST
// endpoints for session lifecycle and a websocket feed for pipeline events.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"live-interpreter-service/internal/fault"
	"live-interpreter-service/internal/session"
)

// Server serves the session API.
type Server struct {
	manager  *session.Manager
	server   *http.Server
	addr     string
	upgrader websocket.Upgrader
}

// NewServer creates the API server listening on addr.
func NewServer(addr string, manager *session.Manager) *Server {
	s := &Server{
		manager: manager,
		addr:    addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The event feed is consumed by local UIs and tooling.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/liveness", s.handleLiveness)
		r.Get("/readiness", s.handleReadiness)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleStartSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleEndSession)
				r.Post("/mute", s.handleMute)
				r.Get("/events", s.handleEvents)
			})
		})
	})

	s.server = &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: the events endpoint holds a long-lived stream.
		IdleTimeout: 120 * time.Second,
	}
	return s
}

// Handler returns the route tree, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the API server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.addr).Str("component", "httpapi").Msg("Starting API server")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Str("component", "httpapi").Msg("API server error")
		}
	}()
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Str("component", "httpapi").Msg("Shutting down API server")
	return s.server.Shutdown(ctx)
}

type startSessionRequest struct {
	SourceLang string `json:"sourceLang"`
	TargetLang string `json:"targetLang"`
}

type sessionResponse struct {
	SessionID  string `json:"sessionId"`
	State      string `json:"state"`
	SourceLang string `json:"sourceLang"`
	TargetLang string `json:"targetLang"`
	StartedAt  string `json:"startedAt"`
}

type muteRequest struct {
	Muted bool `json:"muted"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	sess, err := s.manager.StartSession(req.SourceLang, req.TargetLang)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.manager.Lookup(chi.URLParam(r, "sessionID"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.manager.Lookup(chi.URLParam(r, "sessionID"))
	if !ok {
		// Ending an unknown or already-ended session is a no-op.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	sess.End()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMute(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.manager.Lookup(chi.URLParam(r, "sessionID"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}

	var req muteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := sess.Mute(req.Muted); err != nil {
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEvents upgrades to a websocket and streams the session's pipeline
// events as JSON until the session ends or the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.manager.Lookup(chi.URLParam(r, "sessionID"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("component", "httpapi").Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	feed, cancel := sess.Events()
	defer cancel()

	// Read pump: the client sends nothing meaningful, but reading surfaces
	// disconnects and close frames.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	logger := log.With().Str("component", "httpapi").Str("sessionId", sess.ID).Logger()
	logger.Info().Msg("Event feed attached")

	for {
		select {
		case ev, ok := <-feed:
			if !ok {
				// Session over: tell the client before hanging up.
				deadline := time.Now().Add(time.Second)
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"), deadline)
				logger.Info().Msg("Event feed closed")
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				logger.Debug().Err(err).Msg("Event feed write failed, dropping subscriber")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				return
			}
		case <-clientGone:
			logger.Debug().Msg("Event feed client disconnected")
			return
		}
	}
}

func toSessionResponse(sess *session.Session) sessionResponse {
	return sessionResponse{
		SessionID:  sess.ID,
		State:      sess.State().String(),
		SourceLang: sess.SourceLang,
		TargetLang: sess.TargetLang,
		StartedAt:  sess.StartedAt.UTC().Format(time.RFC3339Nano),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Str("component", "httpapi").Msg("Failed to encode response")
	}
}

// writeFault maps the fault taxonomy onto HTTP status codes.
func writeFault(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch fault.KindOf(err) {
	case fault.KindConfiguration:
		status = http.StatusBadRequest
	case fault.KindAuthorization:
		status = http.StatusForbidden
	case fault.KindSessionActive:
		status = http.StatusConflict
	case fault.KindTransient:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
