package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"deckbrain/internal/embed"
	"deckbrain/internal/rag"
	rag_mocks "deckbrain/internal/rag/mocks"
	"deckbrain/internal/storage"
	storage_mocks "deckbrain/internal/storage/mocks"
	"deckbrain/internal/vectorindex"

	"go.uber.org/mock/gomock"
)

func TestAskHandler_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler := NewAskHandler(rag_mocks.NewMockEngine(ctrl), storage_mocks.NewMockDeckStore(ctrl))

	tests := []struct {
		name           string
		method         string
		body           string
		expectedStatus int
	}{
		{
			name:           "wrong method",
			method:         http.MethodGet,
			body:           "",
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			name:           "malformed JSON",
			method:         http.MethodPost,
			body:           "{not json",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing question",
			method:         http.MethodPost,
			body:           `{"deck_id":"d1"}`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/ask", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestAskHandler_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockEngine := rag_mocks.NewMockEngine(ctrl)
	mockDecks := storage_mocks.NewMockDeckStore(ctrl)
	handler := NewAskHandler(mockEngine, mockDecks)

	mockDecks.EXPECT().GetByID(gomock.Any(), "d1").Return(storage.Deck{ID: "d1"}, nil)
	mockEngine.EXPECT().
		Ask(gomock.Any(), rag.AskRequest{Question: "What is osmosis?", DeckID: "d1", K: 3, SourcesOnly: true}).
		Return(rag.AskResponse{
			Answer: "",
			Sources: []rag.Source{
				{CitationIndex: 1, SourceID: "s1", Position: 0, Score: 0.9, Text: "Osmosis is diffusion of water."},
			},
		}, nil)

	body, _ := json.Marshal(AskRequest{Question: "What is osmosis?", DeckID: "d1", K: 3, SourcesOnly: true})
	req := httptest.NewRequest(http.MethodPost, "/api/ask", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var resp AskResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(resp.Sources))
	}
	if resp.Sources[0].CitationIndex != 1 || resp.Sources[0].SourceID != "s1" {
		t.Errorf("unexpected source: %+v", resp.Sources[0])
	}
	if resp.Abstained {
		t.Error("expected abstained to be false")
	}
}

func TestAskHandler_NoDeckIDIsUnscoped(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockEngine := rag_mocks.NewMockEngine(ctrl)
	// No GetByID expectation: an unscoped query never touches the deck store.
	mockDecks := storage_mocks.NewMockDeckStore(ctrl)
	handler := NewAskHandler(mockEngine, mockDecks)

	mockEngine.EXPECT().
		Ask(gomock.Any(), rag.AskRequest{Question: "what is osmosis?"}).
		Return(rag.AskResponse{Answer: "Water moves across the membrane."}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"what is osmosis?"}`))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var resp AskResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Answer == "" {
		t.Error("expected an answer for the unscoped query")
	}
}

func TestAskHandler_NegativeKClampedToDefault(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockEngine := rag_mocks.NewMockEngine(ctrl)
	mockDecks := storage_mocks.NewMockDeckStore(ctrl)
	handler := NewAskHandler(mockEngine, mockDecks)

	mockDecks.EXPECT().GetByID(gomock.Any(), "d1").Return(storage.Deck{ID: "d1"}, nil)
	mockEngine.EXPECT().
		Ask(gomock.Any(), rag.AskRequest{Question: "q", DeckID: "d1", K: 0}).
		Return(rag.AskResponse{Abstained: true, Answer: "No relevant material found in this deck."}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"q","deck_id":"d1","k":-4}`))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp AskResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Abstained {
		t.Error("expected abstained response")
	}
}

func TestAskHandler_DeckNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockEngine := rag_mocks.NewMockEngine(ctrl)
	mockDecks := storage_mocks.NewMockDeckStore(ctrl)
	handler := NewAskHandler(mockEngine, mockDecks)

	mockDecks.EXPECT().GetByID(gomock.Any(), "missing").Return(storage.Deck{}, storage.ErrNotFound)

	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"q","deck_id":"missing"}`))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestAskHandler_BackendErrors(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{
			name:           "vector index unavailable",
			err:            vectorindex.ErrUnavailable,
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name:           "embedding provider unavailable",
			err:            embed.ErrUnavailable,
			expectedStatus: http.StatusBadGateway,
		},
		{
			name:           "unexpected failure",
			err:            errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockEngine := rag_mocks.NewMockEngine(ctrl)
			mockDecks := storage_mocks.NewMockDeckStore(ctrl)
			handler := NewAskHandler(mockEngine, mockDecks)

			mockDecks.EXPECT().GetByID(gomock.Any(), "d1").Return(storage.Deck{ID: "d1"}, nil)
			mockEngine.EXPECT().Ask(gomock.Any(), gomock.Any()).Return(rag.AskResponse{}, tt.err)

			req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"q","deck_id":"d1"}`))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}
