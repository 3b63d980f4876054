package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/byte4ever/workbench_sync/repo"
	"github.com/byte4ever/workbench_sync/termerr"
)

const (
	// RequestIDHeader carries the per-request id.
	RequestIDHeader = "X-Request-Id"

	maxBodyBytes      = 10 << 20
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// AccountFactory builds a repo.Account for one
// credential.
type AccountFactory func(repo.Credential) (repo.Account, error)

// Config wires the server to its backends.
type Config struct {
	// Pusher performs pushes and commit listing.
	Pusher repo.Pusher
	// Accounts resolves the login behind a credential
	// and manages repositories. Optional: without it the
	// owner must be explicit and /api/repos answers 501.
	Accounts AccountFactory
	// Now stamps classification records. Defaults to
	// time.Now.
	Now func() time.Time
}

// Server is an http.Handler serving the JSON API.
type Server struct {
	pusher   repo.Pusher
	accounts AccountFactory
	now      func() time.Time
	mux      *http.ServeMux
}

// New validates cfg and registers the routes.
func New(cfg Config) (*Server, error) {
	const errCtx = "creating http api"

	if cfg.Pusher == nil {
		return nil, fmt.Errorf("%s: pusher must be set", errCtx)
	}

	s := &Server{
		pusher:   cfg.Pusher,
		accounts: cfg.Accounts,
		now:      cfg.Now,
		mux:      http.NewServeMux(),
	}

	if s.now == nil {
		s.now = time.Now
	}

	s.mux.HandleFunc("POST /api/push", s.handlePush)
	s.mux.HandleFunc("GET /api/commits", s.handleCommits)
	s.mux.HandleFunc("GET /api/repos", s.handleListRepos)
	s.mux.HandleFunc("POST /api/repos", s.handleCreateRepo)
	s.mux.HandleFunc("POST /api/classify", s.handleClassify)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return s, nil
}

// ServeHTTP assigns a request id, dispatches and logs
// the outcome.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	w.Header().Set(RequestIDHeader, id)

	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	start := time.Now()

	s.mux.ServeHTTP(sw, r)

	slog.Info(
		"http request",
		"request_id", id,
		"method", r.Method,
		"path", r.URL.Path,
		"status", sw.status,
		"duration", time.Since(start),
	)
}

// Run serves on addr until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	const errCtx = "running http api"

	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		slog.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("%s: %w", errCtx, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.WithoutCancel(ctx), shutdownTimeout,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s: shutdown: %w", errCtx, err)
	}

	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// bearer extracts the token of an "Authorization:
// Bearer" header.
func bearer(r *http.Request) (repo.Credential, bool) {
	h := r.Header.Get("Authorization")

	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}

	return repo.Credential(token), true
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("cannot encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeFailure maps err onto an HTTP status.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)

	if status >= http.StatusInternalServerError {
		slog.Error(
			"request failed",
			"request_id", w.Header().Get(RequestIDHeader),
			"path", r.URL.Path,
			"error", err,
		)
	}

	writeError(w, status, err.Error())
}

// StatusOf returns the HTTP status reported for err.
func StatusOf(err error) int {
	var re *repo.RemoteError

	switch {
	case errors.Is(err, repo.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, repo.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, repo.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &re):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())

		return false
	}

	return true
}

// account authenticates r and builds its account, nil
// when no AccountFactory is configured. It writes the
// failure response itself.
func (s *Server) account(
	w http.ResponseWriter,
	r *http.Request,
) (repo.Credential, repo.Account, bool) {
	cred, ok := bearer(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")

		return "", nil, false
	}

	if s.accounts == nil {
		return cred, nil, true
	}

	acct, err := s.accounts(cred)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())

		return "", nil, false
	}

	return cred, acct, true
}

// classify builds the classification response.
func (s *Server) classify(output string) classifyResponse {
	rec := termerr.ClassifyAt(output, s.now().UTC())

	return classifyResponse{
		Record:      rec,
		Title:       rec.Category.Title(),
		Hint:        rec.Category.Hint(),
		Suggestions: rec.Category.Suggestions(),
	}
}
