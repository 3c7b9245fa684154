// Package server exposes the study assistant over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/barekit/lectern/pkg/app"
	"github.com/barekit/lectern/pkg/apperr"
	"github.com/barekit/lectern/pkg/library"
)

// maxJSONBody caps the size of JSON request bodies.
const maxJSONBody = 1 << 20

// Server routes HTTP requests to the application.
type Server struct {
	app           *app.App
	mux           *http.ServeMux
	maxUpload     int64
	readTimeout   time.Duration
	shutdownGrace time.Duration
}

// Option is a function that configures a Server.
type Option func(*Server)

// WithMaxUploadMB caps the size of uploaded documents.
func WithMaxUploadMB(mb int64) Option {
	return func(s *Server) {
		if mb > 0 {
			s.maxUpload = mb << 20
		}
	}
}

// WithReadTimeout bounds reading a whole request, body included.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = d
	}
}

// WithShutdownGrace bounds how long in-flight requests may run after
// shutdown starts.
func WithShutdownGrace(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownGrace = d
	}
}

// New creates a new Server.
func New(a *app.App, opts ...Option) *Server {
	s := &Server{
		app:           a,
		mux:           http.NewServeMux(),
		maxUpload:     32 << 20,
		readTimeout:   30 * time.Second,
		shutdownGrace: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("POST /pdf/ask_question/", s.askQuestion)
	s.mux.HandleFunc("POST /mcq/generate_mcqs/", s.generateMCQs)
	s.mux.HandleFunc("POST /yt/convert_video/", s.convertVideo)
	s.mux.HandleFunc("POST /note/generate_notes/", s.generateNotes)
	s.mux.HandleFunc("GET /library/", s.listLibrary)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return s
}

// Handler returns the routes wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return logRequests(s.mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadTimeout:       s.readTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting HTTP server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

type askResponse struct {
	Response string `json:"response"`
}

func (s *Server) askQuestion(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, header, err := r.FormFile("pdf_file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("the uploaded file exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, r, apperr.Invalid("pdf_file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, fmt.Errorf("failed to read upload: %w", err))
		return
	}
	if len(data) == 0 {
		writeError(w, r, apperr.ErrEmptyInput)
		return
	}

	answer, err := s.app.Ask(r.Context(), header.Filename, data, r.FormValue("question"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, askResponse{Response: answer.Text})
}

type mcqRequest struct {
	Topic        string `json:"topic"`
	NumQuestions int    `json:"num_questions"`
}

func (s *Server) generateMCQs(w http.ResponseWriter, r *http.Request) {
	var req mcqRequest
	if !decode(w, r, &req) {
		return
	}
	questions, err := s.app.Questionnaire(r.Context(), req.Topic, req.NumQuestions)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

type videoRequest struct {
	YoutubeLink string `json:"youtube_link"`
	Subject     string `json:"subject"`
}

func (s *Server) convertVideo(w http.ResponseWriter, r *http.Request) {
	var req videoRequest
	if !decode(w, r, &req) {
		return
	}
	if req.YoutubeLink == "" {
		writeError(w, r, apperr.Invalid("youtube_link is required"))
		return
	}
	out, err := s.app.ConvertVideo(r.Context(), req.YoutubeLink, req.Subject)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type notesRequest struct {
	Topic string `json:"topic"`
}

type notesResponse struct {
	Topic   string `json:"topic"`
	Content string `json:"content"`
}

func (s *Server) generateNotes(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if !decode(w, r, &req) {
		return
	}
	content, err := s.app.TopicNotes(r.Context(), req.Topic)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notesResponse{Topic: req.Topic, Content: content})
}

func (s *Server) listLibrary(w http.ResponseWriter, r *http.Request) {
	kind, err := library.ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		writeError(w, r, apperr.Invalid(err.Error()))
		return
	}
	var limit int
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			writeError(w, r, apperr.Invalid(fmt.Sprintf("invalid limit %q", v)))
			return
		}
	}

	artifacts, err := s.app.History(r.Context(), library.Query{Kind: kind, Limit: limit})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if artifacts == nil {
		artifacts = []library.Artifact{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"artifacts": artifacts})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, apperr.Invalid(fmt.Sprintf("invalid request body: %v", err)))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeError maps err onto a status code and a {"detail": ...} body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "kind", apperr.KindOf(err), "error", err)
	} else {
		slog.Warn("request rejected", "path", r.URL.Path, "kind", apperr.KindOf(err), "error", err)
	}
	writeDetail(w, status, err.Error())
}
