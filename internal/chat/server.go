// Package chat serves the TrustMed AI web chat: an embedded page, a JSON
// endpoint and a websocket session that relay questions to the knowledge
// base and render answers with their sources.
package chat

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"trustmed/internal/kb"
	"trustmed/internal/logger"
	"trustmed/internal/metrics"
)

//go:embed static/index.html
var indexHTML []byte

// Asker answers questions. Ask may serve session-less questions from a
// cache; Converse always opens or continues a knowledge base session.
type Asker interface {
	Ask(ctx context.Context, question, sessionID string) (*kb.Answer, error)
	Converse(ctx context.Context, question, sessionID string) (*kb.Answer, error)
}

// Options configure the server.
type Options struct {
	Welcome        string
	AllowedOrigins []string
	RequestTimeout time.Duration
	Metrics        *metrics.Collector
}

// Server handles chat traffic.
type Server struct {
	asker    Asker
	opts     Options
	validate *validator.Validate
	upgrader websocket.Upgrader
	logger   *logger.Logger

	pongWait   time.Duration
	pingPeriod time.Duration
}

// NewServer creates a chat server around asker.
func NewServer(asker Asker, opts Options, log *logger.Logger) *Server {
	if opts.Welcome == "" {
		opts.Welcome = DefaultWelcome
	}

	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}

	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	return &Server{
		asker:    asker,
		opts:     opts,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
		logger:     log,
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
	}
}

// Router builds the HTTP handler with all routes and middleware.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	if s.opts.Metrics != nil {
		r.Use(s.opts.Metrics.Middleware)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Post("/api/chat", s.handleChat)
	r.Get("/ws", s.handleWebsocket)

	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics.Handler())
	}

	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ChatRequest is the body of POST /api/chat. Conversation asks for a
// knowledge base session even on the first turn.
type ChatRequest struct {
	Message      string `json:"message" validate:"required,max=4000"`
	SessionID    string `json:"sessionId" validate:"omitempty,max=256"`
	Conversation bool   `json:"conversation"`
}

// ChatResponse is the reply to POST /api/chat.
type ChatResponse struct {
	Content   string        `json:"content"`
	Answer    string        `json:"answer,omitempty"`
	Sources   []kb.Citation `json:"sources"`
	SessionID string        `json:"sessionId,omitempty"`
	Cached    bool          `json:"cached,omitempty"`
	Error     string        `json:"error,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ChatResponse{Error: "invalid JSON body", Sources: []kb.Citation{}})
		return
	}

	req.Message = strings.TrimSpace(req.Message)

	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, ChatResponse{Error: validationText(err), Sources: []kb.Citation{}})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.RequestTimeout)
	defer cancel()

	ask := s.asker.Ask
	if req.Conversation || req.SessionID != "" {
		ask = s.asker.Converse
	}

	answer, err := ask(ctx, req.Message, req.SessionID)
	if err != nil {
		s.logger.Error("Chat request failed", "error", err, "request_id", chimiddleware.GetReqID(r.Context()))
		writeJSON(w, statusFor(err), ChatResponse{Content: ErrorText(err), Error: err.Error(), Sources: []kb.Citation{}})

		return
	}

	sources := answer.Citations
	if sources == nil {
		sources = []kb.Citation{}
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Content:   answer.Content(),
		Answer:    answer.Text,
		Sources:   sources,
		SessionID: answer.SessionID,
		Cached:    answer.Cached,
	})
}

// validationText reports the first failing rule in user terms.
func validationText(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return strings.ToLower(fe.Field()) + " is required"
	case "max":
		return strings.ToLower(fe.Field()) + " must be at most " + fe.Param() + " characters"
	default:
		return fe.Error()
	}
}

func statusFor(err error) int {
	var missing *kb.MissingConfigError

	switch {
	case errors.As(err, &missing), errors.Is(err, kb.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, kb.ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case kb.IsBedrockError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
