package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"aichat/internal/identity"
	"aichat/internal/pipeline"
	"aichat/internal/util"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	Pipeline *pipeline.Pipeline
	Verifier *identity.Verifier
}

// Server exposes the chat HTTP endpoints.
type Server struct {
	pipeline *pipeline.Pipeline
	verifier *identity.Verifier
	mux      *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		pipeline: cfg.Pipeline,
		verifier: cfg.Verifier,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(util.WithRequestID(util.WithRequestLog(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/ai_chat/can_load", s.handleCanLoad)
	s.mux.HandleFunc("/ai_chat/models", s.handleModels)
	s.mux.HandleFunc("/ai_chat/send", s.handleSend)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCanLoad tells the frontend whether to render the chat widget. It is
// a visibility probe, never an error: unknown or anonymous callers simply
// get show=false.
func (s *Server) handleCanLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{
		"show": s.pipeline.CanLoad(s.identityFrom(r)),
	})
}

type modelsResponse struct {
	OK           bool                 `json:"ok"`
	Models       []pipeline.ModelInfo `json:"models"`
	DefaultModel string               `json:"default_model"`
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	models, defaultModel, authorized := s.pipeline.Models(s.identityFrom(r))
	if !authorized {
		writeJSON(w, http.StatusOK, modelsResponse{OK: false, Models: []pipeline.ModelInfo{}})
		return
	}
	writeJSON(w, http.StatusOK, modelsResponse{OK: true, Models: models, DefaultModel: defaultModel})
}

// sendRequest accepts the field aliases older widget versions still send.
type sendRequest struct {
	Question string `json:"question"`
	Message  string `json:"message"`

	ModelName   string `json:"model_name"`
	GeminiModel string `json:"gemini_model"`
	Model       string `json:"model"`
}

func (r sendRequest) question() string {
	if r.Question != "" {
		return r.Question
	}
	return r.Message
}

func (r sendRequest) model() string {
	for _, m := range []string{r.ModelName, r.GeminiModel, r.Model} {
		if strings.TrimSpace(m) != "" {
			return m
		}
	}
	return ""
}

// handleSend always answers HTTP 200 with an ok field; the widget renders
// failures as chat replies, not transport errors. A body that does not
// decode is treated as an empty message.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req sendRequest
	_ = json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req)

	res := s.pipeline.Send(r.Context(), pipeline.Request{
		IdentityID: s.identityFrom(r),
		ClientIP:   util.ClientIP(r),
		Question:   req.question(),
		Model:      req.model(),
	})
	writeJSON(w, http.StatusOK, res)
}

// identityFrom resolves the caller's identity from the bearer token. Missing
// or invalid tokens yield the empty identity; the pipeline decides what an
// anonymous caller may do.
func (s *Server) identityFrom(r *http.Request) string {
	token, ok := bearerToken(r)
	if !ok || s.verifier == nil {
		return ""
	}
	id, err := s.verifier.IdentityID(token)
	if err != nil {
		return ""
	}
	return id
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
