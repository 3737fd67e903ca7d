package handlers

import (
	"encoding/json"
	"net/http"

	"deckbrain/internal/contextutil"
	"deckbrain/internal/vectorindex"
)

// ExportHandler streams a deck's vector records as NDJSON for backup or
// reprocessing. Records are pulled from the index in batches so large decks
// never sit in memory whole.
type ExportHandler struct {
	index vectorindex.Index
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(index vectorindex.Index) *ExportHandler {
	return &ExportHandler{index: index}
}

func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	deckID := r.URL.Query().Get("deck_id")

	cursor, err := h.index.Export(ctx, deckID)
	if err != nil {
		writeDomainError(w, r, err, "Failed to start export")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	encoder := json.NewEncoder(w)

	var exported int
	for {
		batch, err := cursor.Next(ctx)
		if err != nil {
			// Headers are gone; all we can do is cut the stream short.
			logger.ErrorContext(ctx, "export aborted", "error", err, "exported", exported)
			return
		}
		if batch == nil {
			break
		}
		for _, record := range batch {
			if err := encoder.Encode(record); err != nil {
				logger.WarnContext(ctx, "client went away during export", "error", err, "exported", exported)
				return
			}
			exported++
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	logger.InfoContext(ctx, "export completed", "deck_id", deckID, "records", exported)
}
