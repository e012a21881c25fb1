package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"dossier/internal/config"
	"dossier/internal/domain"
	"dossier/internal/domain/model"
	"dossier/internal/domain/ports/adapter"
)

var _ adapter.VectorStoreAdapter = (*QdrantStore)(nil)

// QdrantStore is a REST client to Qdrant. It assumes cosine distance and
// creates the collection on startup if missing.
type QdrantStore struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

func NewQdrantStore(cfg config.VectorConfig, dimension int) *QdrantStore {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &QdrantStore{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  dimension,
		client:     &http.Client{Timeout: timeout},
	}
}

// EnsureCollection creates the collection if it does not exist yet.
// Qdrant answers 200 for an existing collection with the same schema.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body, nil)
}

// pointID derives a stable UUID per (document, chunk index) so re-upserts
// of the same chunk overwrite rather than duplicate. Qdrant only accepts
// UUIDs or unsigned integers as point ids.
func pointID(documentID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(documentID+":"+strconv.Itoa(index))).String()
}

func (s *QdrantStore) Upsert(ctx context.Context, points []adapter.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}
	body := map[string]any{"points": make([]map[string]any, 0, len(points))}
	pts := body["points"].([]map[string]any)
	for _, p := range points {
		pts = append(pts, map[string]any{
			"id":     pointID(p.DocumentID, p.Index),
			"vector": p.Vector,
			"payload": map[string]any{
				"document_id": p.DocumentID,
				"user_id":     p.UserID,
				"index":       p.Index,
				"text":        p.Text,
				"indexed_at":  p.IndexedAt.UTC().Format(time.RFC3339Nano),
			},
		})
	}
	body["points"] = pts
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection)
	if err := s.putJSON(ctx, url, body, nil); err != nil {
		return fmt.Errorf("%w: upsert: %v", domain.ErrVectorStore, err)
	}
	return nil
}

func (s *QdrantStore) DeleteByDocument(ctx context.Context, documentID string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "document_id", "match": map[string]any{"value": documentID}},
			},
		},
	}
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", s.url, s.collection)
	if err := s.postJSON(ctx, url, body, nil); err != nil {
		return fmt.Errorf("%w: delete: %v", domain.ErrVectorStore, err)
	}
	return nil
}

func (s *QdrantStore) Search(ctx context.Context, vector []float64, k int, filter adapter.SearchFilter) ([]model.ScoredChunk, error) {
	if k <= 0 {
		k = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var must []map[string]any
	if filter.UserID != "" {
		must = append(must, map[string]any{"key": "user_id", "match": map[string]any{"value": filter.UserID}})
	}
	if filter.DocumentID != "" {
		must = append(must, map[string]any{"key": "document_id", "match": map[string]any{"value": filter.DocumentID}})
	}
	if len(must) > 0 {
		req["filter"] = map[string]any{"must": must}
	}

	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection)
	if err := s.postJSON(ctx, url, req, &resp); err != nil {
		return nil, fmt.Errorf("%w: search: %v", domain.ErrVectorStore, err)
	}

	chunks := make([]model.ScoredChunk, 0, len(resp.Result))
	for _, r := range resp.Result {
		c := model.ScoredChunk{Score: r.Score}
		if v, ok := r.Payload["document_id"].(string); ok {
			c.DocumentID = v
		}
		if v, ok := r.Payload["index"].(float64); ok {
			c.Index = int(v)
		}
		if v, ok := r.Payload["text"].(string); ok {
			c.Text = v
		}
		if v, ok := r.Payload["indexed_at"].(string); ok {
			if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
				c.IndexedAt = ts
			}
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func (s *QdrantStore) putJSON(ctx context.Context, url string, body, out any) error {
	return s.doJSON(ctx, http.MethodPut, url, body, out)
}

func (s *QdrantStore) postJSON(ctx context.Context, url string, body, out any) error {
	return s.doJSON(ctx, http.MethodPost, url, body, out)
}

func (s *QdrantStore) doJSON(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
