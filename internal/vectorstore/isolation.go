// Package vectorstore keeps every topic's vectors in its own namespace of a
// shared index. All reads and writes go through IsolationStore, which derives
// the namespace from the topic, so a query for one topic never sees another
// topic's content.
package vectorstore

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"

	"topicrag/internal/domain"
	"topicrag/internal/logger"
	"topicrag/internal/namespace"
)

const (
	// DefaultBatchSize is the number of records sent per index upsert.
	DefaultBatchSize = 100
	// DefaultTopK is used when a query does not ask for a result count.
	DefaultTopK = 5
)

const noVectorsMessage = "No vectors to upsert"

// UpsertResult reports how much of an upsert reached the index.
type UpsertResult struct {
	VectorsUpserted int    `json:"vectors_upserted"`
	Namespace       string `json:"namespace"`
	Topic           string `json:"topic"`
	Error           string `json:"error,omitempty"`
}

// QueryRequest is a similarity query scoped to one topic. Namespace, when
// set, is used as-is instead of being derived from Topic.
type QueryRequest struct {
	Text      string
	Topic     string
	TopK      int
	Namespace string
	Filter    map[string]any
}

// TopicInfo describes one topic namespace present in the index.
type TopicInfo struct {
	Namespace   string `json:"namespace"`
	TopicName   string `json:"topic_name"`
	VectorCount int    `json:"vector_count"`
	TopicHash   string `json:"topic_hash"`
}

// IsolationStore wraps a VectorIndex and an Embedder.
type IsolationStore struct {
	index     domain.VectorIndex
	embedder  domain.Embedder
	batchSize int
}

// Option configures an IsolationStore.
type Option func(*IsolationStore)

// WithBatchSize sets the upsert batch size.
func WithBatchSize(n int) Option {
	return func(s *IsolationStore) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// NewIsolationStore creates a store over index, embedding queries with embedder.
func NewIsolationStore(index domain.VectorIndex, embedder domain.Embedder, opts ...Option) *IsolationStore {
	s := &IsolationStore{index: index, embedder: embedder, batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Embedder returns the embedder used for queries. Ingestion must use the same
// one so stored and query vectors share a space.
func (s *IsolationStore) Embedder() domain.Embedder { return s.embedder }

// Embed embeds text, wrapping failures in domain.ErrEmbedding.
func (s *IsolationStore) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}
	return vec, nil
}

// UpsertWithIsolation writes vectors into the topic's namespace, stamping
// topic and topic_hash on each record. Batches are sent in order; the first
// failing batch stops the upsert and earlier batches stay written.
func (s *IsolationStore) UpsertWithIsolation(ctx context.Context, vectors []domain.VectorRecord, topic string) (UpsertResult, error) {
	ns := namespace.Resolve(topic)
	res := UpsertResult{Namespace: ns, Topic: topic}
	if len(vectors) == 0 {
		res.Error = noVectorsMessage
		return res, nil
	}

	records := make([]domain.VectorRecord, len(vectors))
	for i, v := range vectors {
		md := maps.Clone(v.Metadata)
		if md == nil {
			md = make(map[string]any, 2)
		}
		md[domain.MetaTopic] = topic
		md[domain.MetaTopicHash] = ns
		records[i] = domain.VectorRecord{ID: v.ID, Values: v.Values, Metadata: md}
	}

	for start := 0; start < len(records); start += s.batchSize {
		end := min(start+s.batchSize, len(records))
		logger.Debug("upserting %d-%d of %d into %s", start, end, len(records), ns)
		if err := s.index.Upsert(ctx, ns, records[start:end]); err != nil {
			err = fmt.Errorf("%w: batch %d-%d in %s: %w", domain.ErrStoreWrite, start, end, ns, err)
			res.Error = err.Error()
			return res, err
		}
		res.VectorsUpserted += end - start
	}
	logger.Info("upserted %d vectors into %s", res.VectorsUpserted, ns)
	return res, nil
}

// QueryWithIsolation embeds the request text and searches only the topic's
// namespace. Matches are ordered by score, highest first. A query that finds
// nothing returns an empty slice and a nil error.
func (s *IsolationStore) QueryWithIsolation(ctx context.Context, req QueryRequest) ([]domain.Match, error) {
	ns := req.Namespace
	if ns == "" {
		if strings.TrimSpace(req.Topic) == "" {
			return nil, fmt.Errorf("%w: query needs a topic or namespace", domain.ErrInvalidInput)
		}
		ns = namespace.Resolve(req.Topic)
	}
	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	vec, err := s.Embed(ctx, req.Text)
	if err != nil {
		return nil, err
	}
	matches, err := s.index.Query(ctx, ns, vec, topK, req.Filter)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", domain.ErrStoreRead, ns, err)
	}

	out := make([]domain.Match, 0, len(matches))
	for _, m := range matches {
		if h := domain.MetaString(m.Metadata, domain.MetaTopicHash); h != "" && h != ns {
			logger.Warn("dropping match %s from namespace %s in query for %s", m.ID, h, ns)
			continue
		}
		if m.Text == "" {
			m.Text = domain.MetaString(m.Metadata, domain.MetaText)
		}
		if m.Text == "" {
			m.Text = domain.MetaString(m.Metadata, domain.MetaTextPreview)
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// DeleteTopicData removes the topic's namespace. It reports false instead of
// failing when the index rejects the delete.
func (s *IsolationStore) DeleteTopicData(ctx context.Context, topic string) bool {
	ns := namespace.Resolve(topic)
	if err := s.index.DeleteNamespace(ctx, ns); err != nil {
		logger.Warn("delete namespace %s: %v", ns, err)
		return false
	}
	logger.Info("deleted namespace %s", ns)
	return true
}

// ListTopics returns the topic namespaces in the index. The human-readable
// topic name is recovered from one stored record per namespace.
func (s *IsolationStore) ListTopics(ctx context.Context) ([]TopicInfo, error) {
	stats, err := s.index.DescribeStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: describe index: %w", domain.ErrStoreRead, err)
	}

	topics := make([]TopicInfo, 0, len(stats.Namespaces))
	for ns, st := range stats.Namespaces {
		if !namespace.IsTopicNamespace(ns) {
			continue
		}
		info := TopicInfo{
			Namespace:   ns,
			VectorCount: st.VectorCount,
			TopicHash:   strings.TrimPrefix(ns, namespace.Prefix),
		}
		sample, err := s.index.Sample(ctx, ns, 1)
		if err != nil {
			logger.Warn("sample %s: %v", ns, err)
		} else if len(sample) > 0 {
			info.TopicName = domain.MetaString(sample[0].Metadata, domain.MetaTopic)
		}
		if info.TopicName == "" {
			info.TopicName = ns
		}
		topics = append(topics, info)
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].TopicName < topics[j].TopicName })
	return topics, nil
}

// NamespaceRecords returns up to limit stored records of a namespace ordered
// by source and chunk index, with Text filled like query matches.
func (s *IsolationStore) NamespaceRecords(ctx context.Context, ns string, limit int) ([]domain.Match, error) {
	recs, err := s.index.Sample(ctx, ns, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: sample %s: %w", domain.ErrStoreRead, ns, err)
	}
	for i := range recs {
		if recs[i].Text == "" {
			recs[i].Text = domain.MetaString(recs[i].Metadata, domain.MetaText)
		}
		if recs[i].Text == "" {
			recs[i].Text = domain.MetaString(recs[i].Metadata, domain.MetaTextPreview)
		}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := sourceKey(recs[i].Metadata), sourceKey(recs[j].Metadata)
		if a != b {
			return a < b
		}
		ai, _ := domain.MetaInt(recs[i].Metadata, domain.MetaChunkIndex)
		bi, _ := domain.MetaInt(recs[j].Metadata, domain.MetaChunkIndex)
		return ai < bi
	})
	return recs, nil
}

func sourceKey(md map[string]any) string {
	if v := domain.MetaString(md, "video_id"); v != "" {
		return v
	}
	return domain.MetaString(md, "filename")
}
