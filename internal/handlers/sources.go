package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"deckbrain/internal/storage"
)

// SourcesHandler lists the sources ingested into a deck.
type SourcesHandler struct {
	decks   storage.DeckStore
	sources storage.SourceStore
}

// NewSourcesHandler creates a new SourcesHandler.
func NewSourcesHandler(decks storage.DeckStore, sources storage.SourceStore) *SourcesHandler {
	return &SourcesHandler{decks: decks, sources: sources}
}

// SourceResponse represents one ingested source in HTTP responses.
type SourceResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title,omitempty"`
	BlockCount int    `json:"block_count"`
	UpdatedAt  string `json:"updated_at"`
}

func (h *SourcesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	deckID := chi.URLParam(r, "deckID")
	if _, err := h.decks.GetByID(ctx, deckID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Deck not found")
			return
		}
		writeDomainError(w, r, err, "Failed to load deck")
		return
	}

	sources, err := h.sources.ListByDeck(ctx, deckID)
	if err != nil {
		writeDomainError(w, r, err, "Failed to list sources")
		return
	}

	resp := make([]SourceResponse, 0, len(sources))
	for _, src := range sources {
		resp = append(resp, SourceResponse{
			ID:         src.ID,
			Title:      src.Title,
			BlockCount: src.BlockCount,
			UpdatedAt:  src.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
