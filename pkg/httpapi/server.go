// Package httpapi exposes the Message Router over HTTP: one JSON endpoint
// per Router operation, plus a liveness probe. Grounded on the teacher's
// pkg/webui.Server (http.ServeMux route table, one handler method per
// endpoint, method-switch inside handlers that serve more than one verb).
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"agentcore/pkg/logx"
	"agentcore/pkg/router"
)

// Server serves the webapp/chat-integration surface for the Message Router.
type Server struct {
	router *router.Router
	log    *logx.Logger
}

// NewServer builds an httpapi.Server over an already-constructed Router.
func NewServer(r *router.Router, log *logx.Logger) *Server {
	return &Server{router: r, log: log}
}

// Mux builds the route table (spec §4.1's operations, plus a health probe).
// Kept separate from NewServer so callers can layer their own middleware
// (auth, request logging) before mounting it, the same separation the
// teacher's RegisterRoutes affords its caller.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/message", s.handleMessage)
	mux.HandleFunc("/api/reset", s.handleReset)
	mux.HandleFunc("/api/cancel", s.handleCancel)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

type messageRequest struct {
	UserID   string `json:"user_id"`
	Platform string `json:"platform"`
	Text     string `json:"text"`
}

type messageResponse struct {
	Reply string `json:"reply"`
}

// handleMessage implements POST /api/message: the webapp/chat-integration
// entry point into Router.HandleMessage.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.Text == "" {
		http.Error(w, "user_id and text are required", http.StatusBadRequest)
		return
	}
	if req.Platform == "" {
		req.Platform = "webapp"
	}

	reply, err := s.router.HandleMessage(r.Context(), req.UserID, req.Platform, req.Text)
	if err != nil {
		s.log.Warn("httpapi: handle_message for %s returned an error reply: %v", req.UserID, err)
	}
	s.writeJSON(w, http.StatusOK, messageResponse{Reply: reply})
}

type userRequest struct {
	UserID string `json:"user_id"`
}

// handleReset implements POST /api/reset (spec §4.1 reset_session).
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	s.router.ResetSession(r.Context(), req.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// handleCancel implements POST /api/cancel (spec §4.1 cancel_active).
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if err := s.router.CancelActive(r.Context(), req.UserID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("httpapi: encode response: %v", err)
	}
}

// Serve runs an http.Server bound to addr until ctx is cancelled, then shuts
// it down gracefully within shutdownTimeout.
func (s *Server) Serve(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{Addr: addr, Handler: s.Mux()}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
