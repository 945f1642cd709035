package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/gloudx/recordstore/recordstore"
	"github.com/gloudx/recordstore/storeerr"
)

// apiServer is the HTTP facade of `storecli serve`: a middleware chain
// (recovery, request-ID, CORS, rate-limit, metrics, logging) in front of
// the record store's create/select/update/delete surface.
type apiServer struct {
	store    *recordstore.Store
	cfg      ServerConfig
	server   *http.Server
	logger   *log.Logger
	metrics  *serverMetrics
	limiter  *rate.Limiter
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// apiResponse is the envelope every handler answers with.
type apiResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func newAPIServer(store *recordstore.Store, cfg ServerConfig) *apiServer {
	s := &apiServer{
		store:    store,
		cfg:      cfg,
		logger:   log.New(os.Stdout, "[storecli] ", log.LstdFlags),
		shutdown: make(chan struct{}),
	}
	if cfg.EnableMetrics {
		s.metrics = newServerMetrics()
	}
	if cfg.RateLimitRPS > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	return s
}

func (s *apiServer) router() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.recoveryMiddleware)
	router.Use(s.requestIDMiddleware)
	router.Use(s.corsMiddleware)
	router.Use(s.rateLimitMiddleware)
	router.Use(s.metricsMiddleware)
	if s.cfg.LogRequests {
		router.Use(s.loggingMiddleware)
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/records", s.handleCreate).Methods(http.MethodPost)
	api.HandleFunc("/records", s.handleQuery).Methods(http.MethodGet)
	api.HandleFunc("/records/{rid:[0-9]+}", s.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/records/{rid:[0-9]+}", s.handleUpdate).Methods(http.MethodPatch)
	api.HandleFunc("/records/{rid:[0-9]+}", s.handleDelete).Methods(http.MethodDelete)
	api.HandleFunc("/query", s.handleQueryPost).Methods(http.MethodPost)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	if s.metrics != nil {
		router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
	return router
}

// Start runs the HTTP facade until ctx is cancelled, then gracefully shuts
// it down.
func (s *apiServer) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("listening on http://%s", addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	return s.gracefulShutdown()
}

func (s *apiServer) gracefulShutdown() error {
	s.logger.Println("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.wg.Wait()
	s.logger.Println("stopped")
	return nil
}

// --- middleware, mirroring datastore/api/api.go's chain ---

func (s *apiServer) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Printf("panic: %v", err)
				s.sendError(w, r, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type requestIDKey struct{}

func (s *apiServer) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = strconv.FormatInt(time.Now().UnixNano(), 10)
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *apiServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.EnableCORS {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *apiServer) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.sendError(w, r, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *apiServer) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		s.metrics.RequestsTotal.Inc()
		s.metrics.ActiveConnections.Inc()
		defer func() {
			s.metrics.ActiveConnections.Dec()
			s.metrics.RequestDuration.Observe(time.Since(start).Seconds())
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *apiServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Printf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// --- response helpers ---

func (s *apiServer) sendData(w http.ResponseWriter, r *http.Request, data any) {
	s.writeJSON(w, r, apiResponse{Success: true, Data: data, Timestamp: time.Now()}, http.StatusOK)
}

func (s *apiServer) sendError(w http.ResponseWriter, r *http.Request, msg string, status int) {
	if s.metrics != nil {
		s.metrics.ErrorsTotal.Inc()
	}
	s.writeJSON(w, r, apiResponse{Success: false, Error: msg, Timestamp: time.Now()}, status)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, r *http.Request, resp apiResponse, status int) {
	resp.RequestID, _ = r.Context().Value(requestIDKey{}).(string)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func statusFor(err error) int {
	switch {
	case storeerr.Is(err, storeerr.ErrNotFound):
		return http.StatusNotFound
	case storeerr.Is(err, storeerr.ErrDuplicate):
		return http.StatusConflict
	case storeerr.Is(err, storeerr.ErrBadPredicate), storeerr.Is(err, storeerr.ErrBadOrdering):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// --- handlers ---

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendData(w, r, map[string]any{"status": "healthy"})
}

func (s *apiServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		s.sendError(w, r, "invalid JSON body", http.StatusBadRequest)
		return
	}
	rid, err := s.store.Create(data)
	s.metrics.observeOp("create", err)
	if err != nil {
		s.sendError(w, r, err.Error(), statusFor(err))
		return
	}
	s.sendData(w, r, map[string]any{"rid": rid})
}

func (s *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	rid, err := ridFromVars(r)
	if err != nil {
		s.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}
	view, err := s.store.Get(rid)
	s.metrics.observeOp("get", err)
	if err != nil {
		s.sendError(w, r, err.Error(), statusFor(err))
		return
	}
	data, err := view.Map()
	if err != nil {
		s.sendError(w, r, err.Error(), statusFor(err))
		return
	}
	s.sendData(w, r, data)
}

func (s *apiServer) handleUpdate(w http.ResponseWriter, r *http.Request) {
	rid, err := ridFromVars(r)
	if err != nil {
		s.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.sendError(w, r, "invalid JSON body", http.StatusBadRequest)
		return
	}
	err = s.store.Update(rid, patch)
	s.metrics.observeOp("update", err)
	if err != nil {
		s.sendError(w, r, err.Error(), statusFor(err))
		return
	}
	s.sendData(w, r, map[string]any{"rid": rid, "updated": true})
}

func (s *apiServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	rid, err := ridFromVars(r)
	if err != nil {
		s.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}
	err = s.store.Delete(rid)
	s.metrics.observeOp("delete", err)
	if err != nil {
		s.sendError(w, r, err.Error(), statusFor(err))
		return
	}
	s.sendData(w, r, map[string]any{"rid": rid, "deleted": true})
}

// handleQuery answers GET /records with an optional ?jq= ad-hoc filter and
// ?limit=, a read-only shortcut for handleQueryPost's richer body (offset
// is only available there).
func (s *apiServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := s.store.Select()
	if jqExpr := r.URL.Query().Get("jq"); jqExpr != "" {
		q = q.Raw(jqExpr)
	}
	if lim := r.URL.Query().Get("limit"); lim != "" {
		n, err := strconv.Atoi(lim)
		if err != nil {
			s.sendError(w, r, "invalid limit", http.StatusBadRequest)
			return
		}
		q = q.Limit(n)
	}
	rows, err := q.Map()
	s.metrics.observeOp("select", err)
	if err != nil {
		s.sendError(w, r, err.Error(), statusFor(err))
		return
	}
	s.sendData(w, r, rows)
}

// queryRequest is the POST /query body: an ad-hoc jq residual expression
// plus pagination, the HTTP analogue of Query.Raw/.Limit/.Offset — building
// the full predicate AST over JSON is left to the Go API.
type queryRequest struct {
	JQ     string `json:"jq"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

func (s *apiServer) handleQueryPost(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, r, "invalid JSON body", http.StatusBadRequest)
		return
	}
	q := s.store.Select()
	if req.JQ != "" {
		q = q.Raw(req.JQ)
	}
	if req.Limit > 0 {
		q = q.Limit(req.Limit)
	}
	if req.Offset > 0 {
		q = q.Offset(req.Offset)
	}
	rows, err := q.Map()
	s.metrics.observeOp("select", err)
	if err != nil {
		s.sendError(w, r, err.Error(), statusFor(err))
		return
	}
	s.sendData(w, r, rows)
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.store.Stats()
	if s.metrics != nil {
		s.metrics.RecordCount.Set(float64(stats.RecordCount))
		s.metrics.IndexedAttrs.Set(float64(len(stats.Attrs)))
	}
	s.sendData(w, r, stats)
}

func ridFromVars(r *http.Request) (recordstore.Rid, error) {
	raw := mux.Vars(r)["rid"]
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rid %q", strings.TrimSpace(raw))
	}
	return recordstore.Rid(n), nil
}
