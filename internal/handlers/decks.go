package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"deckbrain/internal/contextutil"
	"deckbrain/internal/storage"
)

// DecksHandler handles deck creation and listing.
type DecksHandler struct {
	decks             storage.DeckStore
	embeddingStrategy string
}

// NewDecksHandler creates a new DecksHandler. New decks record the
// configured embedding strategy so a later restart under a different
// strategy is rejected at startup.
func NewDecksHandler(decks storage.DeckStore, embeddingStrategy string) *DecksHandler {
	return &DecksHandler{decks: decks, embeddingStrategy: embeddingStrategy}
}

// CreateDeckRequest represents the HTTP request payload for deck creation.
type CreateDeckRequest struct {
	Name string `json:"name"`
}

// DeckResponse represents a deck in HTTP responses.
type DeckResponse struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	EmbeddingStrategy string `json:"embedding_strategy"`
	CreatedAt         string `json:"created_at"`
}

func (h *DecksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *DecksHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req CreateDeckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	deck, err := h.decks.Create(ctx, req.Name, h.embeddingStrategy)
	if err != nil {
		writeDomainError(w, r, err, "Failed to create deck")
		return
	}

	logger.InfoContext(ctx, "created deck", "deck_id", deck.ID, "name", deck.Name)
	writeJSON(w, http.StatusCreated, toDeckResponse(deck))
}

func (h *DecksHandler) list(w http.ResponseWriter, r *http.Request) {
	decks, err := h.decks.ListAll(r.Context())
	if err != nil {
		writeDomainError(w, r, err, "Failed to list decks")
		return
	}

	resp := make([]DeckResponse, 0, len(decks))
	for _, deck := range decks {
		resp = append(resp, toDeckResponse(deck))
	}
	writeJSON(w, http.StatusOK, resp)
}

func toDeckResponse(deck storage.Deck) DeckResponse {
	return DeckResponse{
		ID:                deck.ID,
		Name:              deck.Name,
		EmbeddingStrategy: deck.EmbeddingStrategy,
		CreatedAt:         deck.CreatedAt.UTC().Format(time.RFC3339),
	}
}
