// Package server exposes the content service over HTTP.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/headline-dev/headline/pkg/content"
	"github.com/headline-dev/headline/pkg/models"
)

// ContentService is the subset of content.Service the HTTP layer needs.
type ContentService interface {
	Fetch(ctx context.Context, category, country string) content.Result
	Categories() []string
	ClearCache()
	CacheStats() (models.CacheStats, error)
}

// Server is the headline HTTP front end.
type Server struct {
	listen string
	svc    ContentService
	log    *logrus.Entry
	mux    *http.ServeMux
}

// New creates a Server wired to svc.
func New(listen string, svc ContentService) *Server {
	s := &Server{
		listen: listen,
		svc:    svc,
		log:    logrus.WithField("component", "server"),
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /api/news/{category}", s.handleNews)
	s.mux.HandleFunc("GET /api/categories", s.handleCategories)
	s.mux.HandleFunc("GET /api/cache/stats", s.handleCacheStats)
	s.mux.HandleFunc("POST /api/cache/clear", s.handleCacheClear)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /ws", s.handleWS)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", reqID)

	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)

	s.log.WithFields(logrus.Fields{
		"request_id": reqID,
		"method":     r.Method,
		"path":       r.URL.Path,
		"status":     rec.status,
		"duration":   time.Since(start),
	}).Debug("request served")
}

// ListenAndServe starts the server and shuts it down gracefully when ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("headline listening on %s", s.listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	country := r.URL.Query().Get("country")

	res := s.svc.Fetch(r.Context(), category, country)
	w.Header().Set("X-Headline-Cache", res.Source.String())
	if !res.RefreshedAt.IsZero() {
		w.Header().Set("Last-Modified", res.RefreshedAt.UTC().Format(http.TimeFormat))
	}

	if len(res.Records) == 0 {
		writeJSONError(w, http.StatusNotFound, "no news found for this category")
		return
	}
	writeJSON(w, http.StatusOK, res.Records)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"categories": s.svc.Categories()})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.CacheStats()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.svc.ClearCache()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade reach the underlying connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("write response")
	}
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	var body errorBody
	body.Error.Message = message
	body.Error.Code = code
	writeJSON(w, code, body)
}
