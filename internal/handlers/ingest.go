package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"deckbrain/internal/contextutil"
	"deckbrain/internal/ingest"
	"deckbrain/internal/storage"
)

// IngestHandler handles HTTP requests for document ingestion.
type IngestHandler struct {
	decks    storage.DeckStore
	pipeline *ingest.Pipeline
}

// NewIngestHandler creates a new IngestHandler.
func NewIngestHandler(decks storage.DeckStore, pipeline *ingest.Pipeline) *IngestHandler {
	return &IngestHandler{decks: decks, pipeline: pipeline}
}

// IngestRequest represents the HTTP request payload for ingestion.
type IngestRequest struct {
	DeckID  string         `json:"deck_id"`
	Sources []IngestSource `json:"sources"`
}

// IngestSource is one document in an ingestion request.
type IngestSource struct {
	ID     string `json:"id"`
	Title  string `json:"title,omitempty"`
	Format string `json:"format,omitempty"`
	Text   string `json:"text"`
}

// IngestResponse reports per-source outcomes. Ingestion is not
// all-or-nothing: some sources can fail while others land.
type IngestResponse struct {
	DeckID    string           `json:"deck_id"`
	Summaries []ingest.Summary `json:"summaries"`
	Errors    int              `json:"errors"`
}

func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DeckID == "" {
		writeError(w, http.StatusBadRequest, "deck_id is required")
		return
	}
	if len(req.Sources) == 0 {
		writeError(w, http.StatusBadRequest, "At least one source is required")
		return
	}
	for _, src := range req.Sources {
		if src.ID == "" {
			writeError(w, http.StatusBadRequest, "Every source needs an id")
			return
		}
	}

	if _, err := h.decks.GetByID(ctx, req.DeckID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Deck not found")
			return
		}
		writeDomainError(w, r, err, "Failed to load deck")
		return
	}

	srcs := make([]ingest.Source, 0, len(req.Sources))
	for _, src := range req.Sources {
		srcs = append(srcs, ingest.Source{
			ID:     src.ID,
			DeckID: req.DeckID,
			Title:  src.Title,
			Format: src.Format,
			Text:   src.Text,
		})
	}

	summaries, err := h.pipeline.IngestAll(ctx, srcs)
	if err != nil && ctx.Err() != nil {
		writeError(w, http.StatusServiceUnavailable, "Request cancelled")
		return
	}

	resp := IngestResponse{DeckID: req.DeckID, Summaries: summaries}
	for _, summary := range summaries {
		if summary.Error != "" {
			resp.Errors++
		}
	}

	// Ingestion is reported per source, not all-or-nothing. A batch with
	// failures still returns the summaries so callers see what landed.
	status := http.StatusOK
	if resp.Errors > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, resp)
}
