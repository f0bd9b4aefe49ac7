package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/glossary-harvester/internal/glossary"
	"github.com/JakeFAU/glossary-harvester/internal/metrics"
	"github.com/JakeFAU/glossary-harvester/internal/policy/ratelimit"
)

const (
	defaultMaxBody        = 1 << 20
	defaultEnqueueTimeout = 5 * time.Second
	defaultRequestTimeout = 30 * time.Second
	defaultSearchLimit    = 10
	maxSearchLimit        = 100
)

// Config tunes the HTTP surface.
type Config struct {
	// APIKey, when set, is required on every /v1 request.
	APIKey         string
	MaxBodyBytes   int64
	EnqueueTimeout time.Duration
	RequestTimeout time.Duration
	// RateLimit throttles POST /v1/records per client, counted in records.
	RateLimit ratelimit.Config
}

// ReadinessCheck reports whether one dependency can serve traffic.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server wires HTTP handlers to the record queue and the index store.
type Server struct {
	router  chi.Router
	queue   glossary.Queue
	index   glossary.IndexStore
	checks  []ReadinessCheck
	limiter *ratelimit.Limiter
	cfg     Config
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	queue glossary.Queue,
	index glossary.IndexStore,
	cfg Config,
	logger *zap.Logger,
	checks ...ReadinessCheck,
) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBody
	}
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = defaultEnqueueTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		queue:   queue,
		index:   index,
		checks:  checks,
		limiter: ratelimit.New(cfg.RateLimit),
		cfg:     cfg,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(cfg.RequestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.APIKey != "" {
			r.Use(apiKeyMiddleware(cfg.APIKey))
		}
		r.Post("/records", s.submitRecords)
		r.Get("/terms/{term_id}", s.getTerm)
		r.Get("/search", s.search)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	failures := map[string]string{}
	for _, c := range s.checks {
		if err := c.Check(r.Context()); err != nil {
			failures[c.Name] = err.Error()
		}
	}
	if len(failures) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": failures})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type submitResponse struct {
	RequestID string `json:"request_id"`
	Accepted  int    `json:"accepted"`
}

func (s *Server) submitRecords(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	records, err := decodeRecords(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for i := range records {
		records[i] = records[i].Normalize()
		if err := records[i].Validate(); err != nil {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("record %d: %v", i, err))
			return
		}
	}
	if !s.limiter.AllowN(clientKey(r), len(records)) {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.EnqueueTimeout)
	defer cancel()
	accepted := 0
	for _, rec := range records {
		if err := s.queue.Enqueue(ctx, rec); err != nil {
			status := http.StatusServiceUnavailable
			if errors.Is(err, context.DeadlineExceeded) {
				status = http.StatusTooManyRequests
			}
			s.logger.Warn("enqueue record failed",
				zap.String("request_id", requestID(r.Context())),
				zap.Int("accepted", accepted),
				zap.Error(err),
			)
			writeError(w, status, fmt.Sprintf("queued %d of %d records: %v", accepted, len(records), err))
			return
		}
		accepted++
	}
	writeJSON(w, http.StatusAccepted, submitResponse{RequestID: requestID(r.Context()), Accepted: accepted})
}

// clientKey identifies a producer by API key, falling back to its address.
func clientKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return "key:" + key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "addr:" + r.RemoteAddr
	}
	return "addr:" + host
}

// decodeRecords accepts a single JSON object or an array of objects.
func decodeRecords(body []byte) ([]glossary.Record, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}
	if trimmed[0] == '[' {
		var records []glossary.Record
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, errors.New("invalid JSON")
		}
		if len(records) == 0 {
			return nil, errors.New("no records")
		}
		return records, nil
	}
	var rec glossary.Record
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return nil, errors.New("invalid JSON")
	}
	return []glossary.Record{rec}, nil
}

func (s *Server) getTerm(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "term_id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid term id")
		return
	}
	doc, err := s.index.Get(r.Context(), glossary.DocumentID(id))
	switch {
	case errors.Is(err, glossary.ErrIndexNotFound):
		writeError(w, http.StatusNotFound, "term not found")
	case err != nil:
		s.logger.Error("index lookup failed", zap.Int64("term_id", id), zap.Error(err))
		writeError(w, http.StatusBadGateway, "index unavailable")
	default:
		writeJSON(w, http.StatusOK, doc)
	}
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	searcher, ok := s.index.(glossary.Searcher)
	if !ok {
		writeError(w, http.StatusNotImplemented, "search not supported by index store")
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing q")
		return
	}
	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxSearchLimit)
	}
	docs, err := searcher.Search(r.Context(), q, limit)
	if err != nil {
		s.logger.Error("search failed", zap.String("q", q), zap.Error(err))
		writeError(w, http.StatusBadGateway, "index unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hits": docs, "count": len(docs)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
