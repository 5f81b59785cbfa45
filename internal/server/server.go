// Package server exposes the chat service over HTTP: Cognito auth flows,
// the question endpoint with an SSE progress variant, document ingestion,
// and session transcripts.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	fiberadaptor "github.com/gofiber/fiber/v3/middleware/adaptor"

	"ragchat/internal/auth"
	"ragchat/internal/document"
	"ragchat/internal/history"
	"ragchat/internal/log"
	"ragchat/internal/workflow"
)

// Server is the HTTP surface of the chat service.
type Server struct {
	app      *fiber.App
	pipeline *workflow.Pipeline
	ingestor *workflow.Ingestor
	history  history.Store
	cognito  *auth.Cognito
	verifier *auth.Verifier
	logger   log.Logger
}

// Options carries the optional collaborators. A nil Cognito disables the
// auth routes; a nil Verifier disables token checks (local development).
type Options struct {
	Cognito  *auth.Cognito
	Verifier *auth.Verifier
	Logger   log.Logger
}

// New assembles the fiber app and its routes.
func New(pipeline *workflow.Pipeline, ingestor *workflow.Ingestor, transcripts history.Store, opts Options) (*Server, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("server: pipeline must not be nil")
	}
	if ingestor == nil {
		return nil, fmt.Errorf("server: ingestor must not be nil")
	}
	if transcripts == nil {
		return nil, fmt.Errorf("server: history store must not be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:      "ragchat",
			ServerHeader: "ragchat",
		}),
		pipeline: pipeline,
		ingestor: ingestor,
		history:  transcripts,
		cognito:  opts.Cognito,
		verifier: opts.Verifier,
		logger:   logger,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.app.Get("/healthz", func(ctx fiber.Ctx) error {
		return ctx.JSON(fiber.Map{"status": "ok"})
	})

	if s.cognito != nil {
		s.app.Post("/auth/signup", s.handleSignUp)
		s.app.Post("/auth/confirm", s.handleConfirm)
		s.app.Post("/auth/login", s.handleLogin)
		s.app.Post("/auth/refresh", s.handleRefresh)
	}

	api := s.app.Group("", s.authenticate)
	api.Post("/chat", s.handleChat)
	api.Get("/chat/stream", s.handleChatStream)
	api.Post("/documents", s.handleDocuments)
	api.Get("/history", s.handleHistory)
}

// Listen serves until the listener fails.
func (s *Server) Listen(addr string) error {
	s.logger.Infof("server: listening on %s", addr)
	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// authenticate resolves the caller and stores the actor ID in locals. With
// no verifier configured every request runs as the local user.
func (s *Server) authenticate(ctx fiber.Ctx) error {
	username := "local"
	if s.verifier != nil {
		header := ctx.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimPrefix(header, "Bearer ")
		id, err := s.verifier.Verify(ctx.RequestCtx(), tokenStr)
		if err != nil {
			s.logger.Warnf("server: token rejected: %v", err)
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}
		username = id.Username
	}
	ctx.Locals("username", username)
	ctx.Locals("actor_id", "user-"+username)
	return ctx.Next()
}

func (s *Server) actorID(ctx fiber.Ctx) string {
	if v, ok := ctx.Locals("actor_id").(string); ok {
		return v
	}
	return "user-local"
}

func (s *Server) sessionID(ctx fiber.Ctx, requested string) string {
	if requested != "" {
		return requested
	}
	username, _ := ctx.Locals("username").(string)
	if username == "" {
		username = "local"
	}
	return fmt.Sprintf("session-%s-%d", username, time.Now().Unix())
}

type signUpRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

func (s *Server) handleSignUp(ctx fiber.Ctx) error {
	var req signUpRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Username == "" || req.Password == "" || req.Email == "" {
		return fiber.NewError(fiber.StatusBadRequest, "username, password, and email are required")
	}
	if err := s.cognito.SignUp(ctx.RequestCtx(), req.Username, req.Password, req.Email); err != nil {
		s.logger.Warnf("server: sign up: %v", err)
		return fiber.NewError(fiber.StatusBadGateway, "sign up failed")
	}
	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "confirmation code sent"})
}

type confirmRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

func (s *Server) handleConfirm(ctx fiber.Ctx) error {
	var req confirmRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := s.cognito.ConfirmSignUp(ctx.RequestCtx(), req.Username, req.Code); err != nil {
		s.logger.Warnf("server: confirm sign up: %v", err)
		return fiber.NewError(fiber.StatusBadGateway, "confirmation failed")
	}
	return ctx.JSON(fiber.Map{"message": "account confirmed"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	auth.Tokens
	ActorID   string `json:"actor_id"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleLogin(ctx fiber.Ctx) error {
	var req loginRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	tokens, err := s.cognito.SignIn(ctx.RequestCtx(), req.Username, req.Password)
	if err != nil {
		s.logger.Warnf("server: sign in: %v", err)
		return fiber.NewError(fiber.StatusUnauthorized, "invalid username or password")
	}
	return ctx.JSON(loginResponse{
		Tokens:    tokens,
		ActorID:   "user-" + req.Username,
		SessionID: fmt.Sprintf("session-%s-%d", req.Username, time.Now().Unix()),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleRefresh(ctx fiber.Ctx) error {
	var req refreshRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	tokens, err := s.cognito.Refresh(ctx.RequestCtx(), req.RefreshToken)
	if err != nil {
		s.logger.Warnf("server: refresh: %v", err)
		return fiber.NewError(fiber.StatusUnauthorized, "refresh failed")
	}
	return ctx.JSON(tokens)
}

type chatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Answer    string `json:"answer"`
	Source    string `json:"source"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleChat(ctx fiber.Ctx) error {
	var req chatRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Question) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "question is required")
	}

	actorID := s.actorID(ctx)
	sessionID := s.sessionID(ctx, req.SessionID)

	result, err := s.pipeline.Run(ctx.RequestCtx(), actorID, sessionID, req.Question)
	if err != nil {
		s.logger.Errorf("server: chat: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to answer question")
	}
	return ctx.JSON(chatResponse{Answer: result.Answer, Source: result.Source, SessionID: sessionID})
}

type streamEvent struct {
	Node   string `json:"node,omitempty"`
	Answer string `json:"answer,omitempty"`
	Source string `json:"source,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleChatStream(ctx fiber.Ctx) error {
	question := ctx.Query("question")
	if strings.TrimSpace(question) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "question is required")
	}
	actorID := s.actorID(ctx)
	sessionID := s.sessionID(ctx, ctx.Query("session_id"))

	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		flusher, _ := w.(http.Flusher)
		emit := func(event string, payload streamEvent) {
			data, err := json.Marshal(payload)
			if err != nil {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
			if flusher != nil {
				flusher.Flush()
			}
		}

		events, errc := s.pipeline.Stream(r.Context(), actorID, sessionID, question)
		var final workflow.State
		for ev := range events {
			final = ev.State
			emit("progress", streamEvent{Node: ev.Node})
		}
		if err := <-errc; err != nil {
			s.logger.Errorf("server: chat stream: %v", err)
			emit("error", streamEvent{Error: "failed to answer question"})
			return
		}
		emit("answer", streamEvent{Answer: final.Generation, Source: final.Source})
	}
	return fiberadaptor.HTTPHandler(http.HandlerFunc(handler))(ctx)
}

type ingestResponse struct {
	Files  int `json:"files"`
	Chunks int `json:"chunks"`
}

func (s *Server) handleDocuments(ctx fiber.Ctx) error {
	form, err := ctx.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart form required")
	}
	files := form.File["files"]
	if len(files) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no files uploaded")
	}

	var docs []document.Document
	for _, header := range files {
		f, err := header.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("open %s failed", header.Filename))
		}
		doc, err := document.Load(ctx.RequestCtx(), header.Filename, f)
		f.Close()
		if err != nil {
			s.logger.Warnf("server: load %s: %v", header.Filename, err)
			return fiber.NewError(fiber.StatusUnprocessableEntity, fmt.Sprintf("could not read %s", header.Filename))
		}
		docs = append(docs, doc)
	}

	chunks, err := s.ingestor.Ingest(ctx.RequestCtx(), docs...)
	if err != nil {
		s.logger.Errorf("server: ingest: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, "indexing failed")
	}
	return ctx.Status(fiber.StatusCreated).JSON(ingestResponse{Files: len(docs), Chunks: chunks})
}

func (s *Server) handleHistory(ctx fiber.Ctx) error {
	sessionID := ctx.Query("session_id")
	if sessionID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "session_id is required")
	}
	limit := 50
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	turns, err := s.history.List(ctx.RequestCtx(), s.actorID(ctx), sessionID, limit)
	if err != nil {
		s.logger.Errorf("server: history: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load history")
	}
	if turns == nil {
		turns = []history.Turn{}
	}
	return ctx.JSON(fiber.Map{"turns": turns})
}
