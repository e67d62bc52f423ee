// Package web serves the browser presentation: an HTML page per session with
// plain form posts, and a JSON mirror of the same operations.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/user/estatebot/internal/export"
	"github.com/user/estatebot/internal/gateway"
	htmlrender "github.com/user/estatebot/internal/render/html"
	"github.com/user/estatebot/internal/session"
	"github.com/user/estatebot/internal/types"
	"github.com/user/estatebot/pkg/analytics"
)

const defaultMaxUpload = 32 << 20

var acceptedExt = []string{".xlsx", ".xls"}

// Options configures a Server.
type Options struct {
	// MaxUploadBytes caps the multipart body of an upload. Defaults to 32 MiB.
	MaxUploadBytes int64
	// ExportFormat is "csv" (default) or "xlsx".
	ExportFormat string
}

// Server is the HTTP handler for the browser presentation. Form posts
// return as soon as the session has accepted the operation; the call to
// the analytics service finishes in the background and the page picks up
// the result on refresh.
type Server struct {
	sessions *gateway.Registry
	html     *htmlrender.Renderer
	opts     Options
	mux      *http.ServeMux
	pending  sync.WaitGroup
}

// NewServer creates a Server over the given session registry.
func NewServer(sessions *gateway.Registry, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	s := &Server{
		sessions: sessions,
		html:     htmlrender.New(),
		opts:     opts,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /{$}", s.handleLanding)
	s.mux.HandleFunc("POST /upload", s.handleFirstUpload)
	s.mux.HandleFunc("GET /s/{id}", s.handlePage)
	s.mux.HandleFunc("POST /s/{id}/upload", s.handleUpload)
	s.mux.HandleFunc("POST /s/{id}/query", s.handleQuery)
	s.mux.HandleFunc("POST /s/{id}/export/{msg}", s.handleExport)

	s.mux.HandleFunc("GET /api/sessions", s.handleAPISessions)
	s.mux.HandleFunc("POST /api/s", s.handleAPINewSession)
	s.mux.HandleFunc("GET /api/s/{id}", s.handleAPISnapshot)
	s.mux.HandleFunc("PUT /api/s/{id}/input", s.handleAPIInput)
	s.mux.HandleFunc("POST /api/s/{id}/query", s.handleAPIQuery)
	s.mux.HandleFunc("POST /api/s/{id}/upload", s.handleAPIUpload)
	s.mux.HandleFunc("POST /api/s/{id}/export/{msg}", s.handleExport)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Wait blocks until every operation started by a form post has resolved.
func (s *Server) Wait() {
	s.pending.Wait()
}

// background runs the remote half of an accepted operation after the
// response has gone out.
func (s *Server) background(run func() session.Message) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		run()
	}()
}

// detach keeps the request's values but not its cancellation, so a client
// that disconnects does not turn its own operation into an error message.
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.Len()})
}

func (s *Server) newSession() *session.Controller {
	ctrl, _ := s.sessions.ResolveOrCreate(types.NewSessionKey("web", uuid.NewString()))
	return ctrl
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	ctrl, ok := s.sessions.Get(types.SessionID(r.PathValue("id")))
	if !ok {
		http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
	}
	return ctrl, ok
}

func (s *Server) redirectToPage(w http.ResponseWriter, r *http.Request, id types.SessionID) {
	http.Redirect(w, r, "/s/"+string(id), http.StatusSeeOther)
}

// handleLanding renders an empty page without creating a session. The
// session is made by the first upload, so crawlers and prefetches never
// push real sessions out of the registry.
func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.html.Render(w, session.Snapshot{}); err != nil {
		slog.Error("render landing page failed", "error", err)
	}
}

func (s *Server) handleFirstUpload(w http.ResponseWriter, r *http.Request) {
	file, err := s.readUpload(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctrl := s.newSession()
	if run, ok := ctrl.StartIngest(detach(r), file); ok {
		s.background(run)
	}
	s.redirectToPage(w, r, ctrl.ID())
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.html.Render(w, ctrl.Snapshot()); err != nil {
		slog.Error("render page failed", "session_id", string(ctrl.ID()), "error", err)
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.lookup(w, r)
	if !ok {
		return
	}
	file, err := s.readUpload(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if run, ok := ctrl.StartIngest(detach(r), file); ok {
		s.background(run)
	}
	s.redirectToPage(w, r, ctrl.ID())
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if run, ok := ctrl.StartAsk(detach(r), r.FormValue("query")); ok {
		s.background(run)
	}
	s.redirectToPage(w, r, ctrl.ID())
}

// handleExport streams the CSV for a bot message's locations. Nothing is
// recorded in the session when it fails.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.lookup(w, r)
	if !ok {
		return
	}
	msgID := types.MessageID(r.PathValue("msg"))
	bot, ok := ctrl.Snapshot().Bot(msgID)
	if !ok {
		http.Error(w, `{"error":"message not found"}`, http.StatusNotFound)
		return
	}

	sink := &responseSink{w: w}
	var target session.ExportSink = sink
	if s.opts.ExportFormat == "xlsx" {
		target = &export.XLSXSink{Next: sink}
	}
	if err := ctrl.Export(r.Context(), bot.LocationsForExport, target); err != nil && !sink.written {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "export failed"})
	}
}

func (s *Server) handleAPISessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.List())
}

func (s *Server) handleAPINewSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, s.newSession().Snapshot())
}

func (s *Server) handleAPISnapshot(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// inputRequest is the JSON body for PUT /api/s/{id}/input.
type inputRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleAPIInput(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req inputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	ctrl.SetInput(req.Text)
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// queryRequest is the optional JSON body for POST /api/s/{id}/query. An
// empty body submits the pending input.
type queryRequest struct {
	Query *string `json:"query"`
}

func (s *Server) handleAPIQuery(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	var accepted bool
	if req.Query != nil {
		_, accepted = ctrl.Ask(detach(r), *req.Query)
	} else {
		_, accepted = ctrl.Submit(detach(r))
	}
	s.writeOutcome(w, ctrl, accepted)
}

func (s *Server) handleAPIUpload(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := s.lookup(w, r)
	if !ok {
		return
	}
	file, err := s.readUpload(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	_, accepted := ctrl.Ingest(detach(r), file)
	s.writeOutcome(w, ctrl, accepted)
}

// writeOutcome answers 200 with the snapshot, or 409 when the operation was
// dropped by the session's preconditions.
func (s *Server) writeOutcome(w http.ResponseWriter, ctrl *session.Controller, accepted bool) {
	status := http.StatusOK
	if !accepted {
		status = http.StatusConflict
	}
	writeJSON(w, status, ctrl.Snapshot())
}

// readUpload reads the "file" part of a multipart upload into memory, so
// the upload can outlive the request that carried it.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (analytics.File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	f, header, err := r.FormFile("file")
	if err != nil {
		return analytics.File{}, fmt.Errorf("read upload: %w", err)
	}
	defer f.Close()

	if !acceptedFile(header) {
		return analytics.File{}, fmt.Errorf("unsupported file type %q, expected %s", filepath.Ext(header.Filename), strings.Join(acceptedExt, " or "))
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return analytics.File{}, fmt.Errorf("read upload: %w", err)
	}
	return analytics.File{Name: header.Filename, Content: bytes.NewReader(data)}, nil
}

func acceptedFile(h *multipart.FileHeader) bool {
	return slices.Contains(acceptedExt, strings.ToLower(filepath.Ext(h.Filename)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response failed", "error", err)
	}
}
