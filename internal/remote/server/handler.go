package server

import (
	"compress/gzip"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/kilupskalvis/vizedit/internal/models"
	"github.com/kilupskalvis/vizedit/internal/remote"
	"github.com/kilupskalvis/vizedit/internal/store"
)

// Backend is the persistence the server exposes. *store.Store implements it.
type Backend interface {
	Ping() error

	ListQueries() ([]*models.Query, error)
	GetQuery(id int64) (*models.Query, error)
	CreateQuery(q *models.Query) (*models.Query, error)
	DeleteQuery(id int64) error

	GetResult(queryID int64) (*models.QueryResultData, error)
	SaveResult(queryID int64, data *models.QueryResultData) error

	GetVisualization(id int64) (*models.Visualization, error)
	SaveVisualization(ctx context.Context, v *models.Visualization) (*models.Visualization, error)
	DeleteVisualization(id int64) error

	AppendEvent(ev models.Event) (*models.Event, error)
	ListEvents(limit int) ([]*models.Event, error)
}

var _ Backend = (*store.Store)(nil)

// ServerConfig holds configurable limits for the server.
type ServerConfig struct {
	MaxRequestBody    int64  // bytes, for JSON endpoints
	MaxResultBody     int64  // bytes, for result uploads after decompression
	RequestsPerMinute int    // per-token rate limit
	AdminToken        string // for admin endpoints
	Webhooks          *WebhookNotifier
}

// DefaultServerConfig returns reasonable defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		MaxRequestBody:    1 << 20,   // 1MB
		MaxResultBody:     256 << 20, // 256MB
		RequestsPerMinute: 300,
	}
}

// EventTokenKey is the event metadata key naming the token that recorded it.
const EventTokenKey = "token_id"

const (
	defaultEventLimit = 50
	maxEventLimit     = 1000
)

// Handler creates the HTTP handler with all routes and middleware.
// The returned cleanup function waits for in-flight webhook deliveries and
// should be called on server shutdown.
func Handler(backend Backend, tokens TokenStore, cfg *ServerConfig, logger *slog.Logger) (http.Handler, func()) {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	rl := newRateLimiter(cfg.RequestsPerMinute)
	auth := authMiddleware(tokens, logger)

	// applyMiddleware runs the first item outermost.
	// Execution order: auth -> rl -> handler
	withAuth := func(h http.HandlerFunc) http.Handler {
		return applyMiddleware(h, auth, rl.middleware)
	}
	// Execution order: auth -> requireWrite -> rl -> handler
	withAuthWrite := func(h http.HandlerFunc) http.Handler {
		return applyMiddleware(h, auth, requireWrite, rl.middleware)
	}

	a := &api{backend: backend, cfg: cfg, logger: logger}
	mux := http.NewServeMux()

	// Health endpoints (no auth)
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := backend.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("not ready: store unavailable"))
			return
		}
		if _, err := tokens.ListTokens(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("not ready: token store unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Admin endpoints
	if cfg.AdminToken != "" {
		adminMux := http.NewServeMux()
		adminMux.HandleFunc("POST /admin/tokens", makeAdminCreateTokenHandler(tokens, logger))
		adminMux.HandleFunc("DELETE /admin/tokens/{id}", makeAdminDeleteTokenHandler(tokens, logger))
		adminMux.HandleFunc("GET /admin/tokens", makeAdminListTokensHandler(tokens, logger))
		mux.Handle("/admin/", adminAuth(cfg.AdminToken, adminMux))
	}

	// Queries
	mux.Handle("GET /api/queries", withAuth(a.listQueries))
	mux.Handle("POST /api/queries", withAuthWrite(a.createQuery))
	mux.Handle("GET /api/queries/{id}", withAuth(a.getQuery))
	mux.Handle("DELETE /api/queries/{id}", withAuthWrite(a.deleteQuery))

	// Results
	mux.Handle("GET /api/queries/{id}/results", withAuth(a.getResult))
	mux.Handle("PUT /api/queries/{id}/results", withAuthWrite(a.putResult))

	// Visualizations
	mux.Handle("POST /api/visualizations", withAuthWrite(a.createVisualization))
	mux.Handle("GET /api/visualizations/{id}", withAuth(a.getVisualization))
	mux.Handle("POST /api/visualizations/{id}", withAuthWrite(a.updateVisualization))
	mux.Handle("DELETE /api/visualizations/{id}", withAuthWrite(a.deleteVisualization))

	// Events
	mux.Handle("POST /api/events", withAuthWrite(a.recordEvent))
	mux.Handle("GET /api/events", withAuth(a.listEvents))

	// Info
	mux.Handle("GET /api/info", withAuth(a.info))

	// Apply global middleware
	handler := applyMiddleware(mux,
		requestIDMiddleware,
		loggingMiddleware(logger),
		recoveryMiddleware(logger),
	)

	return handler, func() { cfg.Webhooks.Wait() }
}

// applyMiddleware wraps h so the first middleware in the list runs first.
func applyMiddleware(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

type api struct {
	backend Backend
	cfg     *ServerConfig
	logger  *slog.Logger
}

// --- Query Handlers ---

func (a *api) listQueries(w http.ResponseWriter, r *http.Request) {
	queries, err := a.backend.ListQueries()
	if err != nil {
		a.storeError(w, r, err)
		return
	}
	if queries == nil {
		queries = []*models.Query{}
	}
	writeJSON(w, http.StatusOK, queries)
}

func (a *api) createQuery(w http.ResponseWriter, r *http.Request) {
	var req remote.CreateQueryRequest
	if err := readJSON(r, a.cfg.MaxRequestBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "name is required")
		return
	}

	q, err := a.backend.CreateQuery(&models.Query{
		Name:        req.Name,
		Description: req.Description,
		Source:      req.Source,
	})
	if err != nil {
		a.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (a *api) getQuery(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	q, err := a.backend.GetQuery(id)
	if err != nil {
		a.storeError(w, r, err)
		return
	}
	if q == nil {
		writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("query %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (a *api) deleteQuery(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.backend.DeleteQuery(id); err != nil {
		a.storeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Result Handlers ---

func (a *api) getResult(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	data, err := a.backend.GetResult(id)
	if err != nil {
		a.storeError(w, r, err)
		return
	}
	if data == nil {
		writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("query %d has no result", id))
		return
	}

	if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		writeJSON(w, http.StatusOK, data)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Encoding", "gzip")
	w.WriteHeader(http.StatusOK)
	gz := gzip.NewWriter(w)
	defer gz.Close()
	if err := json.NewEncoder(gz).Encode(data); err != nil {
		a.logger.Warn("encode result", "error", err, "query_id", id)
	}
}

func (a *api) putResult(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var body io.Reader = r.Body
	if r.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid gzip body")
			return
		}
		defer gz.Close()
		body = gz
	}

	var data models.QueryResultData
	if err := json.NewDecoder(io.LimitReader(body, a.cfg.MaxResultBody)).Decode(&data); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if err := a.backend.SaveResult(id, &data); err != nil {
		a.storeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Visualization Handlers ---

func (a *api) createVisualization(w http.ResponseWriter, r *http.Request) {
	var v models.Visualization
	if err := readJSON(r, a.cfg.MaxRequestBody, &v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if v.ID != 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "new visualization must not carry an id")
		return
	}
	a.saveVisualization(w, r, &v, http.StatusCreated)
}

func (a *api) updateVisualization(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var v models.Visualization
	if err := readJSON(r, a.cfg.MaxRequestBody, &v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if v.ID != 0 && v.ID != id {
		writeError(w, http.StatusBadRequest, "bad_request", "visualization id does not match path")
		return
	}
	v.ID = id
	a.saveVisualization(w, r, &v, http.StatusOK)
}

func (a *api) saveVisualization(w http.ResponseWriter, r *http.Request, v *models.Visualization, status int) {
	if v.Type == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "type is required")
		return
	}
	if v.QueryID == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "query_id is required")
		return
	}

	saved, err := a.backend.SaveVisualization(r.Context(), v)
	if err != nil {
		a.storeError(w, r, err)
		return
	}
	writeJSON(w, status, saved)
}

func (a *api) getVisualization(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	v, err := a.backend.GetVisualization(id)
	if err != nil {
		a.storeError(w, r, err)
		return
	}
	if v == nil {
		writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("visualization %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *api) deleteVisualization(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.backend.DeleteVisualization(id); err != nil {
		a.storeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Event Handlers ---

func (a *api) recordEvent(w http.ResponseWriter, r *http.Request) {
	var ev models.Event
	if err := readJSON(r, a.cfg.MaxRequestBody, &ev); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if ev.Action == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "action is required")
		return
	}
	ev.ID = 0
	if c, ok := callerFrom(r.Context()); ok {
		md := make(map[string]string, len(ev.Metadata)+1)
		for k, v := range ev.Metadata {
			md[k] = v
		}
		md[EventTokenKey] = c.TokenID
		ev.Metadata = md
	}

	saved, err := a.backend.AppendEvent(ev)
	if err != nil {
		a.storeError(w, r, err)
		return
	}
	a.cfg.Webhooks.NotifyEvent(*saved)
	writeJSON(w, http.StatusCreated, saved)
}

func (a *api) listEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = min(n, maxEventLimit)
	}

	events, err := a.backend.ListEvents(limit)
	if err != nil {
		a.storeError(w, r, err)
		return
	}
	if events == nil {
		events = []*models.Event{}
	}
	writeJSON(w, http.StatusOK, &remote.EventList{Events: events})
}

// --- Info Handler ---

func (a *api) info(w http.ResponseWriter, r *http.Request) {
	queries, err := a.backend.ListQueries()
	if err != nil {
		a.storeError(w, r, err)
		return
	}

	info := &remote.ServerInfo{QueryCount: len(queries)}
	for _, q := range queries {
		full, err := a.backend.GetQuery(q.ID)
		if err != nil {
			a.storeError(w, r, err)
			return
		}
		if full != nil {
			info.VisualizationCount += len(full.Visualizations)
		}
	}
	writeJSON(w, http.StatusOK, info)
}

// --- Health Handlers ---

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// --- Admin Auth ---

func adminAuth(adminToken string, next http.Handler) http.Handler {
	expected := "Bearer " + adminToken
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if subtle.ConstantTimeCompare([]byte(auth), []byte(expected)) != 1 {
			writeError(w, http.StatusUnauthorized, "auth_failed", "invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, &remote.ErrorResponse{Error: code, Message: message})
}

// storeError maps a backend error to a response.
func (a *api) storeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, store.ErrQueryMismatch):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		a.logger.Error("store error", "error", err, "path", r.URL.Path, "request_id", requestID(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// pathID parses the {id} path value, writing a 400 when it is not a positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid id %q", r.PathValue("id")))
		return 0, false
	}
	return id, true
}

func readJSON(r *http.Request, maxSize int64, v interface{}) error {
	limited := io.LimitReader(r.Body, maxSize)
	if err := json.NewDecoder(limited).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// --- Admin Token Handlers ---

func makeAdminCreateTokenHandler(tokens TokenStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req remote.CreateTokenRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON")
			return
		}
		if req.Permission == "" {
			req.Permission = remote.PermissionRead
		}
		if req.Permission != remote.PermissionRead && req.Permission != remote.PermissionReadWrite {
			writeError(w, http.StatusBadRequest, "bad_request", "permission must be 'ro' or 'rw'")
			return
		}

		rawToken, info, err := tokens.CreateToken(req.Description, req.Permission)
		if err != nil {
			logger.Error("create token", "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		logger.Info("token created", "token_id", info.ID, "permission", info.Permission)

		writeJSON(w, http.StatusCreated, &remote.AdminTokenCreateResponse{
			AdminTokenInfo: tokenMetadata(info),
			Token:          rawToken,
		})
	}
}

func makeAdminListTokensHandler(tokens TokenStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := tokens.ListTokens()
		if err != nil {
			logger.Error("list tokens", "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		entries := make([]remote.AdminTokenInfo, len(list))
		for i, t := range list {
			entries[i] = tokenMetadata(t)
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

// tokenMetadata strips the hash from a token record.
func tokenMetadata(t *TokenInfo) remote.AdminTokenInfo {
	return remote.AdminTokenInfo{
		ID:          t.ID,
		Description: t.Desc,
		Permission:  t.Permission,
		CreatedAt:   t.CreatedAt,
		LastUsedAt:  t.LastUsedAt,
	}
}

func makeAdminDeleteTokenHandler(tokens TokenStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := tokens.DeleteToken(id); err != nil {
			logger.Warn("delete token", "error", err, "token_id", id)
			writeError(w, http.StatusNotFound, "not_found", err.Error())
			return
		}
		logger.Info("token deleted", "token_id", id)
		w.WriteHeader(http.StatusNoContent)
	}
}
