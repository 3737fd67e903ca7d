package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"deckbrain/internal/contextutil"
	"deckbrain/internal/rag"
	"deckbrain/internal/storage"
)

// AskHandler handles HTTP requests for deck queries.
type AskHandler struct {
	ragEngine rag.Engine
	decks     storage.DeckStore
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(ragEngine rag.Engine, decks storage.DeckStore) *AskHandler {
	return &AskHandler{ragEngine: ragEngine, decks: decks}
}

// AskRequest represents the HTTP request payload for queries.
// This mirrors rag.AskRequest but is defined here for HTTP layer separation.
type AskRequest struct {
	Question    string `json:"question"`
	DeckID      string `json:"deck_id"`
	K           int    `json:"k,omitempty"`
	SourcesOnly bool   `json:"sources_only,omitempty"`
}

// AskResponse represents the HTTP response payload for queries.
type AskResponse struct {
	Answer    string       `json:"answer"`
	Sources   []rag.Source `json:"sources"`
	Abstained bool         `json:"abstained,omitempty"`
}

func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "Question is required")
		return
	}
	if req.K < 0 {
		req.K = 0
	}

	// deck_id is optional; when omitted the query spans every deck.
	if req.DeckID != "" {
		if _, err := h.decks.GetByID(ctx, req.DeckID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusNotFound, "Deck not found")
				return
			}
			writeDomainError(w, r, err, "Failed to load deck")
			return
		}
	}

	ragResp, err := h.ragEngine.Ask(ctx, rag.AskRequest{
		Question:    req.Question,
		DeckID:      req.DeckID,
		K:           req.K,
		SourcesOnly: req.SourcesOnly,
	})
	if err != nil {
		writeDomainError(w, r, err, "Failed to process query")
		return
	}

	writeJSON(w, http.StatusOK, AskResponse{
		Answer:    ragResp.Answer,
		Sources:   ragResp.Sources,
		Abstained: ragResp.Abstained,
	})
}
