package rag

import (
	"context"
	"sort"
	"time"

	"github.com/camilo-ai/camilo/rag/types"
	"github.com/mudler/xlog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMatchThreshold = 0.02
	DefaultMatchCount     = 5
	DefaultTopK           = 5
	DefaultMaxQueries     = 4
	DefaultWeightDecay    = 0.2
)

// ExclusionRange bans segment ids strictly between Low and High.
type ExclusionRange struct {
	Low  int64
	High int64
}

// DefaultExclusion is the shadow-banned range of blog segments.
var DefaultExclusion = ExclusionRange{Low: 194, High: 222}

// Excludes reports whether id lies strictly inside the range.
func (e ExclusionRange) Excludes(id int64) bool {
	return id > e.Low && id < e.High
}

// ContextRanker retrieves and ranks context for the recent user messages.
type ContextRanker struct {
	embedder       Embedder
	searcher       Searcher
	embeddingModel string
	threshold      float64
	limit          int
	topK           int
	maxQueries     int
	exclusions     []ExclusionRange
	callTimeout    time.Duration
}

type RankerOption func(*ContextRanker)

func WithEmbeddingModel(model string) RankerOption {
	return func(r *ContextRanker) { r.embeddingModel = model }
}

func WithThreshold(threshold float64) RankerOption {
	return func(r *ContextRanker) { r.threshold = threshold }
}

func WithResultLimit(limit int) RankerOption {
	return func(r *ContextRanker) { r.limit = limit }
}

func WithTopK(k int) RankerOption {
	return func(r *ContextRanker) { r.topK = k }
}

func WithMaxQueries(n int) RankerOption {
	return func(r *ContextRanker) { r.maxQueries = n }
}

// WithExclusion replaces the default shadow-ban ranges.
func WithExclusion(ranges ...ExclusionRange) RankerOption {
	return func(r *ContextRanker) { r.exclusions = ranges }
}

// WithCallTimeout bounds every embedding and search call. Zero disables it.
func WithCallTimeout(d time.Duration) RankerOption {
	return func(r *ContextRanker) { r.callTimeout = d }
}

func NewContextRanker(embedder Embedder, searcher Searcher, opts ...RankerOption) *ContextRanker {
	r := &ContextRanker{
		embedder:       embedder,
		searcher:       searcher,
		embeddingModel: "text-embedding-3-large",
		threshold:      DefaultMatchThreshold,
		limit:          DefaultMatchCount,
		topK:           DefaultTopK,
		maxQueries:     DefaultMaxQueries,
		exclusions:     []ExclusionRange{DefaultExclusion},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// SelectQueryMessages returns up to n of the most recent user messages,
// oldest first.
func SelectQueryMessages(transcript []Message, n int) []Message {
	user := types.UserMessages(transcript)
	if len(user) > n {
		user = user[len(user)-n:]
	}
	return user
}

// QueryWeight is the recency weight of the query at position i, where 0 is
// the most recent message.
func QueryWeight(i int) float64 {
	w := 1 - float64(i)*DefaultWeightDecay
	if w < 0 {
		return 0
	}
	return w
}

// Rank embeds the most recent user messages, searches all collections and
// returns the globally top-k items partitioned by type.
func (r *ContextRanker) Rank(ctx context.Context, queryMessages []Message) (*RankedContext, error) {
	queries := SelectQueryMessages(queryMessages, r.maxQueries)
	ranked := &RankedContext{
		Segments:      []*types.Segment{},
		Questions:     []*types.QuestionAnswer{},
		Conversations: []*types.ConversationExample{},
	}
	if len(queries) == 0 {
		return ranked, nil
	}

	// position 0 is the most recent query
	perQuery := make([][]types.RetrievedItem, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i := range queries {
		pos := i
		msg := queries[len(queries)-1-i]
		g.Go(func() error {
			items, err := r.retrieve(gctx, msg.Content, QueryWeight(pos))
			if err != nil {
				return err
			}
			perQuery[pos] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pool := []types.RetrievedItem{}
	for _, items := range perQuery {
		pool = append(pool, items...)
	}

	pool = r.filter(pool)

	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Score() > pool[j].Score()
	})
	if len(pool) > r.topK {
		pool = pool[:r.topK]
	}

	for _, item := range pool {
		switch v := item.(type) {
		case *types.Segment:
			ranked.Segments = append(ranked.Segments, v)
		case *types.QuestionAnswer:
			ranked.Questions = append(ranked.Questions, v)
		case *types.ConversationExample:
			ranked.Conversations = append(ranked.Conversations, v)
		}
	}

	xlog.Debug("Ranked context",
		"queries", len(queries),
		"segments", len(ranked.Segments),
		"questions", len(ranked.Questions),
		"conversations", len(ranked.Conversations))

	return ranked, nil
}

// retrieve embeds one query and searches every collection with it.
func (r *ContextRanker) retrieve(ctx context.Context, text string, weight float64) ([]types.RetrievedItem, error) {
	embedding, err := r.embed(ctx, text)
	if err != nil {
		return nil, newTurnError(KindEmbedding, "embedding query: %w", err)
	}

	out := []types.RetrievedItem{}
	for _, c := range types.Collections {
		items, err := r.search(ctx, c, embedding)
		if err != nil {
			return nil, newTurnError(KindSearch, "searching %s: %w", c, err)
		}
		for _, item := range items {
			out = append(out, item.Weighted(weight))
		}
	}
	return out, nil
}

func (r *ContextRanker) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := r.scoped(ctx)
	defer cancel()
	return r.embedder.Embed(ctx, text, r.embeddingModel)
}

func (r *ContextRanker) search(ctx context.Context, c types.Collection, embedding []float32) ([]types.RetrievedItem, error) {
	ctx, cancel := r.scoped(ctx)
	defer cancel()
	return r.searcher.Search(ctx, c, embedding, r.threshold, r.limit)
}

func (r *ContextRanker) scoped(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.callTimeout)
}

// filter drops shadow-banned segments. Other item types are never excluded.
func (r *ContextRanker) filter(pool []types.RetrievedItem) []types.RetrievedItem {
	out := make([]types.RetrievedItem, 0, len(pool))
	for _, item := range pool {
		if item.Source() == types.SourceSegment && r.excluded(item.ItemID()) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func (r *ContextRanker) excluded(id int64) bool {
	for _, e := range r.exclusions {
		if e.Excludes(id) {
			return true
		}
	}
	return false
}
