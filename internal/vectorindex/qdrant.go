package vectorindex

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"deckbrain/internal/contextutil"
)

// QdrantIndex is the remote vector index backend.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dims       int
}

// NewQdrantIndex connects to Qdrant. urlStr is the HTTP URL
// (e.g. "http://localhost:6333"); the gRPC port is derived from it.
func NewQdrantIndex(urlStr, collection string, dims int) (*QdrantIndex, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}
	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}
	// gRPC listens one above the HTTP port.
	port := 6334
	if parsedURL.Port() != "" {
		if httpPort, err := strconv.Atoi(parsedURL.Port()); err == nil {
			port = httpPort + 1
		}
	}
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}
	return &QdrantIndex{client: client, collection: collection, dims: dims}, nil
}

// EnsureCollection creates the collection if missing and validates that an
// existing collection matches the configured dimensionality. A mismatch is
// fatal: records with a different dims contract must never be mixed.
func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("%w: check collection: %v", ErrUnavailable, err)
	}
	if !exists {
		err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: q.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(q.dims),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("%w: create collection: %v", ErrUnavailable, err)
		}
		return nil
	}

	info, err := q.client.GetCollectionInfo(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("%w: get collection info: %v", ErrUnavailable, err)
	}
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return fmt.Errorf("collection %s has invalid vector config", q.collection)
	}
	if int(params.Size) != q.dims {
		return fmt.Errorf("collection %s vector size mismatch: expected %d, got %d", q.collection, q.dims, params.Size)
	}
	return nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, rec := range records {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(rec.ID),
			Vectors: qdrant.NewVectors(rec.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"deck_id":   rec.DeckID,
				"source_id": rec.Payload.SourceID,
				"position":  rec.Payload.Position,
				"text":      rec.Payload.Text,
			}),
		})
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: upsert points: %v", ErrUnavailable, err)
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "upserted points", "collection", q.collection, "count", len(points))
	return len(points), nil
}

func (q *QdrantIndex) Search(ctx context.Context, vector []float32, k int, deckID string) ([]Scored, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}
	limit := uint64(k)
	req := &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if deckID != "" {
		req.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("deck_id", deckID)},
		}
	}
	scoredPoints, err := q.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: query points: %v", ErrUnavailable, err)
	}

	results := make([]Scored, 0, len(scoredPoints))
	for _, point := range scoredPoints {
		rec := Record{
			ID:     point.GetId().GetUuid(),
			DeckID: point.GetPayload()["deck_id"].GetStringValue(),
			Payload: Payload{
				Text:     point.GetPayload()["text"].GetStringValue(),
				SourceID: point.GetPayload()["source_id"].GetStringValue(),
				Position: int(point.GetPayload()["position"].GetIntegerValue()),
			},
		}
		results = append(results, Scored{Record: rec, Score: point.GetScore()})
	}
	return results, nil
}

func (q *QdrantIndex) Export(ctx context.Context, deckID string) (*Cursor, error) {
	var offset *qdrant.PointId
	done := false
	var filter *qdrant.Filter
	if deckID != "" {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("deck_id", deckID)},
		}
	}
	return &Cursor{next: func(ctx context.Context) ([]Record, error) {
		if done {
			return nil, nil
		}
		resp, err := q.client.GetPointsClient().Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: q.collection,
			Filter:         filter,
			Limit:          qdrant.PtrOf(uint32(exportBatchSize)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: scroll points: %v", ErrUnavailable, err)
		}
		points := resp.GetResult()
		batch := make([]Record, 0, len(points))
		for _, point := range points {
			batch = append(batch, Record{
				ID:     point.GetId().GetUuid(),
				DeckID: point.GetPayload()["deck_id"].GetStringValue(),
				Vector: point.GetVectors().GetVector().GetData(),
				Payload: Payload{
					Text:     point.GetPayload()["text"].GetStringValue(),
					SourceID: point.GetPayload()["source_id"].GetStringValue(),
					Position: int(point.GetPayload()["position"].GetIntegerValue()),
				},
			})
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			done = true
		}
		if len(batch) == 0 {
			return nil, nil
		}
		return batch, nil
	}}, nil
}

func (q *QdrantIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewID(id))
	}
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("%w: delete points: %v", ErrUnavailable, err)
	}
	return nil
}
