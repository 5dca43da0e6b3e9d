package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topicrag/internal/domain"
)

type call struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
	APIKey string
}

type fakeQdrant struct {
	mu        sync.Mutex
	calls     []call
	responses map[string]string
	status    map[string]int
}

func newFake(t *testing.T) (*fakeQdrant, *Index) {
	t.Helper()
	f := &fakeQdrant{responses: map[string]string{}, status: map[string]int{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := call{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, APIKey: r.Header.Get("api-key")}
		_ = json.NewDecoder(r.Body).Decode(&c.Body)
		f.mu.Lock()
		f.calls = append(f.calls, c)
		key := r.Method + " " + r.URL.Path
		resp, code := f.responses[key], f.status[key]
		f.mu.Unlock()
		if code != 0 {
			w.WriteHeader(code)
		}
		if resp == "" {
			resp = `{"result":true,"status":"ok"}`
		}
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)
	return f, NewIndex(Config{URL: srv.URL + "/", APIKey: "secret", Collection: "videos"})
}

func TestInit_CreatesMissingCollection(t *testing.T) {
	f, idx := newFake(t)
	f.status["GET /collections/videos"] = http.StatusNotFound

	require.NoError(t, idx.Init(context.Background(), 384))
	require.Len(t, f.calls, 3)
	assert.Equal(t, http.MethodPut, f.calls[1].Method)
	vectors := f.calls[1].Body["vectors"].(map[string]any)
	assert.Equal(t, float64(384), vectors["size"])
	assert.Equal(t, "/collections/videos/index", f.calls[2].Path)
	assert.Equal(t, "namespace", f.calls[2].Body["field_name"])
	assert.Equal(t, "secret", f.calls[0].APIKey)
}

func TestInit_ExistingCollection(t *testing.T) {
	f, idx := newFake(t)
	require.NoError(t, idx.Init(context.Background(), 8))
	require.Len(t, f.calls, 2)
	assert.Equal(t, "/collections/videos/index", f.calls[1].Path)

	assert.Error(t, idx.Init(context.Background(), 0))
}

func TestUpsert_StampsNamespaceAndStableIDs(t *testing.T) {
	f, idx := newFake(t)
	err := idx.Upsert(context.Background(), "topic-abc", []domain.VectorRecord{
		{ID: "v1-chunk-0", Values: []float32{0.1, 0.2}, Metadata: map[string]any{"title": "T"}},
	})
	require.NoError(t, err)
	require.Len(t, f.calls, 1)
	c := f.calls[0]
	assert.Equal(t, http.MethodPut, c.Method)
	assert.Equal(t, "/collections/videos/points", c.Path)
	assert.Equal(t, "wait=true", c.Query)

	point := c.Body["points"].([]any)[0].(map[string]any)
	assert.Equal(t, PointID("topic-abc", "v1-chunk-0"), point["id"])
	payload := point["payload"].(map[string]any)
	assert.Equal(t, "topic-abc", payload["namespace"])
	assert.Equal(t, "v1-chunk-0", payload["record_id"])
	assert.Equal(t, "T", payload["title"])
}

func TestPointID(t *testing.T) {
	assert.Equal(t, PointID("ns", "a"), PointID("ns", "a"))
	assert.NotEqual(t, PointID("ns1", "a"), PointID("ns2", "a"))
	assert.Len(t, PointID("ns", "a"), 36)
}

func TestQuery_FiltersOnNamespace(t *testing.T) {
	f, idx := newFake(t)
	f.responses["POST /collections/videos/points/search"] = `{"result":[
		{"id":"4b1c","score":0.91,"payload":{"namespace":"topic-abc","record_id":"v1-chunk-3","text":"hello","chunk_index":3}}
	]}`

	got, err := idx.Query(context.Background(), "topic-abc", []float32{1, 0}, 3, map[string]any{"video_id": "v1", "chunk_index": float64(3)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "v1-chunk-3", got[0].ID)
	assert.InDelta(t, 0.91, got[0].Score, 1e-9)
	assert.Equal(t, "hello", got[0].Metadata["text"])
	assert.NotContains(t, got[0].Metadata, "namespace")

	body := f.calls[0].Body
	assert.Equal(t, float64(3), body["limit"])
	must := body["filter"].(map[string]any)["must"].([]any)
	require.Len(t, must, 3)
	first := must[0].(map[string]any)
	assert.Equal(t, "namespace", first["key"])
	assert.Equal(t, "topic-abc", first["match"].(map[string]any)["value"])
}

func TestSampleAndDelete(t *testing.T) {
	f, idx := newFake(t)
	f.responses["POST /collections/videos/points/scroll"] = `{"result":{"points":[
		{"id":"x","payload":{"namespace":"topic-abc","record_id":"r1","topic":"Go"}}
	]}}`

	got, err := idx.Sample(context.Background(), "topic-abc", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Go", got[0].Metadata["topic"])

	require.NoError(t, idx.DeleteNamespace(context.Background(), "topic-abc"))
	last := f.calls[len(f.calls)-1]
	assert.Equal(t, "/collections/videos/points/delete", last.Path)
	assert.Contains(t, last.Body, "filter")
}

func TestDescribeStats(t *testing.T) {
	f, idx := newFake(t)
	f.responses["GET /collections/videos"] = `{"result":{"points_count":7,"config":{"params":{"vectors":{"size":384,"distance":"Cosine"}}}}}`
	f.responses["POST /collections/videos/facet"] = `{"result":{"hits":[{"value":"topic-abc","count":5},{"value":"topic-def","count":2}]}}`

	stats, err := idx.DescribeStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 384, stats.Dimension)
	assert.Equal(t, 7, stats.TotalVectors)
	assert.Equal(t, 5, stats.Namespaces["topic-abc"].VectorCount)
	assert.Len(t, stats.Namespaces, 2)
}

func TestErrorStatus(t *testing.T) {
	f, idx := newFake(t)
	f.status["POST /collections/videos/points/search"] = http.StatusInternalServerError
	f.responses["POST /collections/videos/points/search"] = `{"status":{"error":"boom"}}`

	_, err := idx.Query(context.Background(), "ns", []float32{1}, 1, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "boom")
}
