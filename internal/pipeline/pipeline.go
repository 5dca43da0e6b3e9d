// Package pipeline turns uploaded or fetched content into topic-isolated
// vectors and records each successful run as a session.
//
// Every ingestion walks fetched → chunked → embedded → stored →
// session_persisted. A failure stops the run and is reported in the
// returned domain.IngestResult with the stage that was being attempted.
// Vectors already written are left in place; re-ingesting the same source
// upserts over the same ids.
package pipeline

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"topicrag/internal/chunker"
	"topicrag/internal/domain"
	"topicrag/internal/logger"
	"topicrag/internal/session"
	"topicrag/internal/vectorstore"
)

const (
	// DefaultMinTextLength is the shortest transcript worth indexing, in characters.
	DefaultMinTextLength = 50
	// DefaultSummarySentences bounds session and per-video summaries.
	DefaultSummarySentences = 5
	// DefaultMaxVideos is used when a topic search does not ask for a count.
	DefaultMaxVideos = 3
	// summaryRecordLimit bounds how many stored chunks feed a regenerated summary.
	summaryRecordLimit = 500
)

// Metadata keys describing where a chunk came from.
const (
	AttrTitle       = "title"
	AttrURL         = "url"
	AttrVideoID     = "video_id"
	AttrChannel     = "channel"
	AttrFilename    = "filename"
	AttrInputMethod = "input_method"
	AttrSourceID    = "source_id"
)

// Deps are the collaborators of a Pipeline. Store and Sessions are required;
// the others are only needed by the input methods that use them.
type Deps struct {
	Store       *vectorstore.IsolationStore
	Sessions    domain.SessionStore
	Selector    *chunker.Selector
	Videos      domain.VideoSource
	Transcriber domain.Transcriber
	Summarizer  domain.Summarizer
}

// Pipeline ingests content through the four input methods.
type Pipeline struct {
	deps Deps

	minTextLength    int
	summarySentences int
	longVideoSec     int
	window           chunker.Strategy
	shortVideo       *chunker.Selector
	now              func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMinTextLength sets the shortest transcript accepted for indexing.
func WithMinTextLength(n int) Option {
	return func(p *Pipeline) {
		if n >= 0 {
			p.minTextLength = n
		}
	}
}

// WithSummarySentences sets the summary length.
func WithSummarySentences(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.summarySentences = n
		}
	}
}

// WithLongVideo sets the duration from which chapterless videos are chunked
// by window, and the window strategy to use.
func WithLongVideo(sec int, window chunker.Strategy) Option {
	return func(p *Pipeline) {
		if sec > 0 {
			p.longVideoSec = sec
		}
		if window != nil {
			p.window = window
		}
	}
}

// WithShortVideoChunker sets the chunker for chapterless videos shorter than
// the long-video threshold.
func WithShortVideoChunker(c *chunker.CharacterChunker) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.shortVideo = chunker.NewSelector(c, c)
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline. A nil Selector uses chunker.Default().
func New(deps Deps, opts ...Option) (*Pipeline, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("%w: pipeline needs a vector store", domain.ErrConfiguration)
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("%w: pipeline needs a session store", domain.ErrConfiguration)
	}
	if deps.Selector == nil {
		deps.Selector = chunker.Default()
	}
	short := chunker.NewCharacterChunker(chunker.WithChunkSize(1500), chunker.WithOverlap(300))
	p := &Pipeline{
		deps:             deps,
		minTextLength:    DefaultMinTextLength,
		summarySentences: DefaultSummarySentences,
		longVideoSec:     chunker.DefaultLongVideoSec,
		window:           chunker.NewTimeWindowChunker(),
		shortVideo:       chunker.NewSelector(short, short),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// source is one fetched text ready for chunking.
type source struct {
	id       string
	text     string
	meta     domain.SourceMetadata
	selector *chunker.Selector
}

// run is the shared tail of every input method: chunk, embed, store and
// persist. The fetch stage is done by the caller.
type run struct {
	method         domain.InputMethod
	topic          string
	origin         string
	sources        []source
	videoSummaries []domain.VideoSummary
	missing        []domain.MissingSource
}

func (p *Pipeline) ingest(ctx context.Context, r run) domain.IngestResult {
	res := domain.IngestResult{Topic: r.topic, MissingSources: r.missing}

	logger.Section("Chunking")
	var chunks []domain.Chunk
	var strategies []string
	for _, src := range r.sources {
		sel := src.selector
		if sel == nil {
			sel = p.deps.Selector
		}
		out := sel.Chunk(src.text, src.id, src.meta)
		chunks = append(chunks, out.Chunks...)
		strategies = appendUnique(strategies, out.Strategy)
	}
	res.ChunkCount = len(chunks)
	if len(chunks) == 0 {
		return fail(res, domain.StageChunked, &domain.NoContentError{Reason: "no chunks produced", Missing: r.missing})
	}

	logger.Section("Embedding")
	records := make([]domain.VectorRecord, 0, len(chunks))
	for _, ch := range chunks {
		vec, err := p.deps.Store.Embed(ctx, ch.Text)
		if err != nil {
			if ctx.Err() != nil {
				return fail(res, domain.StageEmbedded, ctx.Err())
			}
			logger.Warn("skipping chunk %s: %v", ch.ID, err)
			res.SkippedChunks++
			continue
		}
		md := ch.Metadata.Map()
		md[domain.MetaText] = ch.Text
		records = append(records, domain.VectorRecord{ID: ch.ID, Values: vec, Metadata: md})
	}
	if len(records) == 0 {
		return fail(res, domain.StageEmbedded, fmt.Errorf("%w: all %d chunks failed", domain.ErrEmbedding, len(chunks)))
	}

	logger.Section("Storing")
	up, err := p.deps.Store.UpsertWithIsolation(ctx, records, r.topic)
	res.Namespace = up.Namespace
	res.VectorsUpserted = up.VectorsUpserted
	if err != nil {
		return fail(res, domain.StageStored, err)
	}

	summary := p.summarize(ctx, joinTexts(r.sources))
	now := p.now()
	sess := domain.Session{
		SessionID:       session.NewID(r.topic+"|"+r.origin, now),
		InputMethod:     r.method,
		Topic:           r.topic,
		Namespace:       up.Namespace,
		ChunkCount:      len(chunks),
		VectorsUpserted: up.VectorsUpserted,
		Status:          domain.StatusProcessed,
		Summary:         summary,
		Source:          r.origin,
		Strategy:        strings.Join(strategies, ","),
		VideoSummaries:  r.videoSummaries,
		MissingSources:  r.missing,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := p.deps.Sessions.Save(ctx, sess); err != nil {
		return fail(res, domain.StageSessionPersisted, fmt.Errorf("save session: %w", err))
	}

	logger.Info("ingested %q: %d chunks, %d vectors, %d skipped, session %s",
		r.topic, len(chunks), up.VectorsUpserted, res.SkippedChunks, sess.SessionID)
	res.Success = true
	res.Stage = domain.StageSessionPersisted
	res.Session = &sess
	return res
}

// RegenerateSummary rebuilds the summary of an existing session from its
// stored chunks. Only Summary and UpdatedAt change.
func (p *Pipeline) RegenerateSummary(ctx context.Context, sessionID string) (domain.Session, error) {
	if p.deps.Summarizer == nil {
		return domain.Session{}, fmt.Errorf("%w: no summarizer configured", domain.ErrConfiguration)
	}
	sess, err := p.deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	recs, err := p.deps.Store.NamespaceRecords(ctx, sess.Namespace, summaryRecordLimit)
	if err != nil {
		return domain.Session{}, err
	}
	texts := make([]string, 0, len(recs))
	for _, r := range recs {
		if r.Text != "" {
			texts = append(texts, r.Text)
		}
	}
	if len(texts) == 0 {
		return domain.Session{}, &domain.NoContentError{Reason: "no stored content for session " + sessionID}
	}
	summary, err := p.deps.Summarizer.Summarize(ctx, strings.Join(texts, "\n"), p.summarySentences)
	if err != nil {
		return domain.Session{}, fmt.Errorf("summarize session %s: %w", sessionID, err)
	}
	sess.Summary = summary
	sess.UpdatedAt = p.now()
	if err := p.deps.Sessions.Save(ctx, sess); err != nil {
		return domain.Session{}, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

func (p *Pipeline) summarize(ctx context.Context, text string) string {
	if p.deps.Summarizer == nil || strings.TrimSpace(text) == "" {
		return ""
	}
	s, err := p.deps.Summarizer.Summarize(ctx, text, p.summarySentences)
	if err != nil {
		logger.Warn("summary failed: %v", err)
		return ""
	}
	return s
}

func fail(res domain.IngestResult, stage domain.Stage, err error) domain.IngestResult {
	logger.Warn("ingestion of %q failed at %s: %v", res.Topic, stage, err)
	res.Success = false
	res.Stage = stage
	res.Err = err
	res.Error = err.Error()
	var nc *domain.NoContentError
	if errors.As(err, &nc) && len(res.MissingSources) == 0 {
		res.MissingSources = nc.Missing
	}
	return res
}

// TopicFromFilename derives a topic from an upload name: directory and
// extension are dropped, and underscores and dashes become spaces.
func TopicFromFilename(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	topic := strings.Join(strings.Fields(base), " ")
	if topic == "" || topic == "." {
		return "untitled"
	}
	return topic
}

func sourceID(prefix, s string) string {
	h := sha1.Sum([]byte(s))
	return prefix + "-" + hex.EncodeToString(h[:6])
}

func joinTexts(sources []source) string {
	parts := make([]string, 0, len(sources))
	for _, s := range sources {
		parts = append(parts, s.text)
	}
	return strings.Join(parts, "\n\n")
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
