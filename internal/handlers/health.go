package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"deckbrain/internal/contextutil"
)

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	db                 *sql.DB
	embeddingStrategy  string
	vectorBackend      string
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db *sql.DB, embeddingStrategy, vectorBackend string) *HealthHandler {
	return &HealthHandler{
		db:                 db,
		embeddingStrategy:  embeddingStrategy,
		vectorBackend:      vectorBackend,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status            string            `json:"status"`
	Timestamp         string            `json:"timestamp"`
	EmbeddingStrategy string            `json:"embedding_strategy"`
	VectorBackend     string            `json:"vector_backend"`
	Checks            map[string]string `json:"checks"`
	Issues            []string          `json:"issues,omitempty"`
}

// ServeHTTP returns 200 when the database is reachable, 503 otherwise.
// The embedding and generation services are not probed here; they are
// best-effort dependencies that degrade rather than fail.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string)
	var issues []string

	if err := h.db.PingContext(checkCtx); err != nil {
		logger.WarnContext(ctx, "database health check failed", "error", err)
		checks["database"] = "error"
		issues = append(issues, "database_unavailable")
	} else {
		checks["database"] = "ok"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if len(issues) > 0 {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:            status,
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
		EmbeddingStrategy: h.embeddingStrategy,
		VectorBackend:     h.vectorBackend,
		Checks:            checks,
		Issues:            issues,
	})
}
