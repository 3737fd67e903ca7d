package httpapi

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"deckbrain/internal/handlers"
	"deckbrain/internal/ingest"
	"deckbrain/internal/rag"
	"deckbrain/internal/storage"
	"deckbrain/internal/vectorindex"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	DB                *sql.DB
	Decks             storage.DeckStore
	Sources           storage.SourceStore
	Pipeline          *ingest.Pipeline
	RAGEngine         rag.Engine
	Index             vectorindex.Index
	EmbeddingStrategy string
	VectorBackend     string
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	decksHandler := handlers.NewDecksHandler(deps.Decks, deps.EmbeddingStrategy)
	sourcesHandler := handlers.NewSourcesHandler(deps.Decks, deps.Sources)
	ingestHandler := handlers.NewIngestHandler(deps.Decks, deps.Pipeline)
	askHandler := handlers.NewAskHandler(deps.RAGEngine, deps.Decks)
	exportHandler := handlers.NewExportHandler(deps.Index)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.EmbeddingStrategy, deps.VectorBackend)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/decks", decksHandler)
		r.Method(http.MethodGet, "/decks", decksHandler)
		r.Method(http.MethodGet, "/decks/{deckID}/sources", sourcesHandler)
		r.Method(http.MethodPost, "/ingest", ingestHandler)
		r.Method(http.MethodPost, "/ask", askHandler)
		r.Method(http.MethodGet, "/export", exportHandler)
		r.Method(http.MethodGet, "/health", healthHandler)
	})

	return r
}
