package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"topicrag/internal/domain"
)

// Payload keys the index reserves for itself.
const (
	namespaceKey = "namespace"
	recordIDKey  = "record_id"
)

// maxFacetValues bounds the number of namespaces DescribeStats reports.
const maxFacetValues = 10000

// Index is a minimal REST client to Qdrant. All namespaces share one
// collection; each point carries its namespace in the payload and every
// read filters on it. Cosine distance is assumed.
type Index struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewIndex(cfg Config) *Index {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Index{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Init creates the collection if it is missing and indexes the namespace
// payload field.
func (s *Index) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	exists, err := s.collectionExists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		body := map[string]any{
			"vectors": map[string]any{
				"size":     dimension,
				"distance": "Cosine",
			},
		}
		if err := s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil); err != nil {
			return err
		}
	}
	index := map[string]any{"field_name": namespaceKey, "field_schema": "keyword"}
	return s.do(ctx, http.MethodPut, s.collectionURL("/index?wait=true"), index, nil)
}

func (s *Index) Upsert(ctx context.Context, namespace string, records []domain.VectorRecord) error {
	if namespace == "" {
		return errors.New("namespace is required")
	}
	points := make([]map[string]any, len(records))
	for i, r := range records {
		payload := make(map[string]any, len(r.Metadata)+2)
		for k, v := range r.Metadata {
			payload[k] = v
		}
		payload[namespaceKey] = namespace
		payload[recordIDKey] = r.ID
		points[i] = map[string]any{
			"id":      PointID(namespace, r.ID),
			"vector":  r.Values,
			"payload": payload,
		}
	}
	body := map[string]any{"points": points}
	return s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), body, nil)
}

type scoredPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (s *Index) Query(ctx context.Context, namespace string, vector []float32, topK int, filter map[string]any) ([]domain.Match, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
		"filter":       namespaceFilter(namespace, filter),
	}
	var resp struct {
		Result []scoredPoint `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, toMatch(r))
	}
	return results, nil
}

func (s *Index) Sample(ctx context.Context, namespace string, limit int) ([]domain.Match, error) {
	req := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
		"filter":       namespaceFilter(namespace, nil),
	}
	var resp struct {
		Result struct {
			Points []scoredPoint `json:"points"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/scroll"), req, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Match, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		out = append(out, toMatch(p))
	}
	return out, nil
}

func (s *Index) DeleteNamespace(ctx context.Context, namespace string) error {
	body := map[string]any{"filter": namespaceFilter(namespace, nil)}
	return s.do(ctx, http.MethodPost, s.collectionURL("/points/delete?wait=true"), body, nil)
}

func (s *Index) DescribeStats(ctx context.Context) (domain.IndexStats, error) {
	var info struct {
		Result struct {
			PointsCount int `json:"points_count"`
			Config      struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil, &info); err != nil {
		return domain.IndexStats{}, err
	}

	facet := map[string]any{"key": namespaceKey, "limit": maxFacetValues, "exact": true}
	var resp struct {
		Result struct {
			Hits []struct {
				Value string `json:"value"`
				Count int    `json:"count"`
			} `json:"hits"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/facet"), facet, &resp); err != nil {
		return domain.IndexStats{}, err
	}

	stats := domain.IndexStats{
		Dimension:    info.Result.Config.Params.Vectors.Size,
		TotalVectors: info.Result.PointsCount,
		Namespaces:   make(map[string]domain.NamespaceStats, len(resp.Result.Hits)),
	}
	for _, h := range resp.Result.Hits {
		stats.Namespaces[h.Value] = domain.NamespaceStats{VectorCount: h.Count}
	}
	return stats, nil
}

// PointID derives a stable Qdrant point id from a namespace and record id.
// Qdrant only accepts integers and UUIDs as ids.
func PointID(namespace, recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(namespace+"/"+recordID)).String()
}

func namespaceFilter(namespace string, filter map[string]any) map[string]any {
	must := []map[string]any{
		{"key": namespaceKey, "match": map[string]any{"value": namespace}},
	}
	for k, v := range filter {
		if f, ok := v.(float64); ok && f == float64(int64(f)) {
			v = int64(f)
		}
		must = append(must, map[string]any{"key": k, "match": map[string]any{"value": v}})
	}
	return map[string]any{"must": must}
}

func toMatch(p scoredPoint) domain.Match {
	md := make(map[string]any, len(p.Payload))
	for k, v := range p.Payload {
		if k == namespaceKey || k == recordIDKey {
			continue
		}
		md[k] = v
	}
	id, _ := p.Payload[recordIDKey].(string)
	if id == "" {
		id = fmt.Sprint(p.ID)
	}
	return domain.Match{ID: id, Score: p.Score, Metadata: md}
}

func (s *Index) collectionExists(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.collectionURL(""), nil)
	if err != nil {
		return false, err
	}
	s.authorize(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 300:
		return false, fmt.Errorf("qdrant GET collection %s failed: %s", s.collection, resp.Status)
	}
	return true, nil
}

func (s *Index) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

func (s *Index) authorize(req *http.Request) {
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
}

func (s *Index) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	s.authorize(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, url, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
