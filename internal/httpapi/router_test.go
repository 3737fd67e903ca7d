package httpapi

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"deckbrain/internal/chunker"
	embed_mocks "deckbrain/internal/embed/mocks"
	"deckbrain/internal/ingest"
	rag_mocks "deckbrain/internal/rag/mocks"
	"deckbrain/internal/storage"
	storage_mocks "deckbrain/internal/storage/mocks"
	index_mocks "deckbrain/internal/vectorindex/mocks"

	"go.uber.org/mock/gomock"
)

func newTestRouter(t *testing.T, ctrl *gomock.Controller) http.Handler {
	t.Helper()

	db, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ch, err := chunker.New(chunker.Config{MaxTokens: 700, OverlapTokens: 100, CharSize: 1200, CharOverlap: 150}, nil)
	if err != nil {
		t.Fatalf("failed to build chunker: %v", err)
	}
	pipeline := ingest.NewPipeline(
		storage_mocks.NewMockSourceStore(ctrl),
		embed_mocks.NewMockEmbedder(ctrl),
		index_mocks.NewMockIndex(ctrl),
		ch, 1)

	return NewRouter(&Deps{
		DB:                db,
		Decks:             storage_mocks.NewMockDeckStore(ctrl),
		Sources:           storage_mocks.NewMockSourceStore(ctrl),
		Pipeline:          pipeline,
		RAGEngine:         rag_mocks.NewMockEngine(ctrl),
		Index:             index_mocks.NewMockIndex(ctrl),
		EmbeddingStrategy: "hash",
		VectorBackend:     "sqlite",
	})
}

func TestNewRouter(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	if newTestRouter(t, ctrl) == nil {
		t.Fatal("NewRouter() returned nil")
	}
}

func TestRouter_Routes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := newTestRouter(t, ctrl)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{
			name:       "GET /api/health exists",
			method:     http.MethodGet,
			path:       "/api/health",
			wantStatus: http.StatusOK,
		},
		{
			name:       "POST /api/ask exists",
			method:     http.MethodPost,
			path:       "/api/ask",
			wantStatus: http.StatusBadRequest, // Bad request due to empty body, but route exists
		},
		{
			name:       "POST /api/ingest exists",
			method:     http.MethodPost,
			path:       "/api/ingest",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "POST /api/decks exists",
			method:     http.MethodPost,
			path:       "/api/decks",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "POST /api/decks/{deckID}/sources method not allowed",
			method:     http.MethodPost,
			path:       "/api/decks/d1/sources",
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "DELETE /api/ask method not allowed",
			method:     http.MethodDelete,
			path:       "/api/ask",
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "unknown route",
			method:     http.MethodGet,
			path:       "/api/nope",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Router %s %s status = %v, want %v", tt.method, tt.path, w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := newTestRouter(t, ctrl)

	req := httptest.NewRequest(http.MethodOptions, "/api/ask", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %v, want %v", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
