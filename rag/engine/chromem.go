package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/camilo-ai/camilo/rag/types"
	"github.com/mudler/xlog"
	"github.com/philippgille/chromem-go"
)

var collectionNames = map[types.Collection]string{
	types.CollectionSegments:      "blog_segments",
	types.CollectionQA:            "question_answers",
	types.CollectionConversations: "conversations",
}

// ChromemIndex keeps the three collections in an embedded, file persisted
// chromem database. Document ids are sequential per collection.
type ChromemIndex struct {
	sync.Mutex
	db          *chromem.DB
	collections map[types.Collection]*chromem.Collection
	next        map[types.Collection]int64
	urls        map[string]struct{}
}

func NewChromemIndex(path string) (*ChromemIndex, error) {
	db, err := chromem.NewPersistentDB(path, true)
	if err != nil {
		return nil, err
	}

	c := &ChromemIndex{
		db:          db,
		collections: map[types.Collection]*chromem.Collection{},
		next:        map[types.Collection]int64{},
		urls:        map[string]struct{}{},
	}

	for _, collection := range types.Collections {
		col, err := db.GetOrCreateCollection(collectionNames[collection], nil, precomputed)
		if err != nil {
			return nil, fmt.Errorf("error creating collection %s: %w", collection, err)
		}
		c.collections[collection] = col
		c.next[collection] = int64(col.Count()) + 1
	}

	if err := c.loadURLs(); err != nil {
		return nil, err
	}

	return c, nil
}

// precomputed is the embedding function of every collection. Documents and
// queries always carry their embedding, so it is never expected to run.
func precomputed(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("embeddings must be computed before storing")
}

func (c *ChromemIndex) loadURLs() error {
	segments := c.collections[types.CollectionSegments]
	for id := 1; id <= segments.Count(); id++ {
		doc, err := segments.GetByID(context.Background(), fmt.Sprint(id))
		if err != nil {
			return fmt.Errorf("error reading segment %d: %w", id, err)
		}
		c.urls[doc.Metadata["url"]] = struct{}{}
	}
	return nil
}

func (c *ChromemIndex) Count(collection types.Collection) int {
	col, ok := c.collections[collection]
	if !ok {
		return 0
	}
	return col.Count()
}

// Search returns up to limit items above threshold, most similar first.
func (c *ChromemIndex) Search(ctx context.Context, collection types.Collection, query []float32, threshold float64, limit int) ([]types.RetrievedItem, error) {
	col, ok := c.collections[collection]
	if !ok {
		return nil, fmt.Errorf("unknown collection %s", collection)
	}

	// chromem rejects nResults larger than the collection
	n := limit
	if count := col.Count(); n > count {
		n = count
	}
	if n <= 0 {
		return []types.RetrievedItem{}, nil
	}

	res, err := col.QueryEmbedding(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("error querying %s: %w", collection, err)
	}

	results := make([]types.RetrievedItem, 0, len(res))
	for _, r := range res {
		if float64(r.Similarity) <= threshold {
			continue
		}
		item, err := toItem(collection, r)
		if err != nil {
			xlog.Warn("Skipping unreadable document", "collection", collection, "id", r.ID, "error", err)
			continue
		}
		results = append(results, item)
	}
	return results, nil
}

func toItem(collection types.Collection, r chromem.Result) (types.RetrievedItem, error) {
	id, err := strconv.ParseInt(r.ID, 10, 64)
	if err != nil {
		return nil, err
	}
	similarity := float64(r.Similarity)

	switch collection {
	case types.CollectionSegments:
		position, _ := strconv.Atoi(r.Metadata["segment"])
		return &types.Segment{
			ID:         id,
			URL:        r.Metadata["url"],
			Title:      r.Metadata["title"],
			Content:    r.Content,
			Position:   position,
			Similarity: similarity,
		}, nil
	case types.CollectionQA:
		return &types.QuestionAnswer{
			ID:         id,
			Question:   r.Metadata["question"],
			Answer:     r.Content,
			Similarity: similarity,
		}, nil
	default:
		messages := []types.Message{}
		if err := json.Unmarshal([]byte(r.Content), &messages); err != nil {
			return nil, err
		}
		return &types.ConversationExample{
			ID:         id,
			Messages:   messages,
			Similarity: similarity,
		}, nil
	}
}

func (c *ChromemIndex) store(ctx context.Context, collection types.Collection, content string, metadata map[string]string, embedding []float32) (int64, error) {
	c.Lock()
	defer c.Unlock()
	return c.add(ctx, collection, content, metadata, embedding)
}

// add stores one document under the next id. Callers hold the lock.
func (c *ChromemIndex) add(ctx context.Context, collection types.Collection, content string, metadata map[string]string, embedding []float32) (int64, error) {
	if content == "" {
		return 0, fmt.Errorf("empty content")
	}

	id := c.next[collection]
	err := c.collections[collection].AddDocuments(ctx, []chromem.Document{
		{
			ID:        fmt.Sprint(id),
			Metadata:  metadata,
			Embedding: embedding,
			Content:   content,
		},
	}, runtime.NumCPU())
	if err != nil {
		return 0, err
	}
	c.next[collection]++
	return id, nil
}

// StorePost adds the segments of one post. Segments added before a failure
// are deleted again so the post is either complete or absent.
func (c *ChromemIndex) StorePost(ctx context.Context, segments []types.Segment, embeddings [][]float32) ([]int64, error) {
	if len(segments) != len(embeddings) {
		return nil, fmt.Errorf("got %d segments and %d embeddings", len(segments), len(embeddings))
	}

	c.Lock()
	defer c.Unlock()

	col := c.collections[types.CollectionSegments]
	ids := make([]int64, 0, len(segments))
	for i, segment := range segments {
		id, err := c.add(ctx, types.CollectionSegments, segment.Content, map[string]string{
			"url":     segment.URL,
			"title":   segment.Title,
			"segment": strconv.Itoa(segment.Position),
		}, embeddings[i])
		if err != nil {
			c.rollback(col, ids)
			return nil, fmt.Errorf("error adding segment %d of %s: %w", segment.Position, segment.URL, err)
		}
		ids = append(ids, id)
	}

	for _, segment := range segments {
		c.urls[segment.URL] = struct{}{}
	}
	return ids, nil
}

// rollback deletes the documents added by a failed StorePost and rewinds
// the id sequence. Callers hold the lock.
func (c *ChromemIndex) rollback(col *chromem.Collection, ids []int64) {
	if len(ids) == 0 {
		return
	}
	docIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		docIDs = append(docIDs, fmt.Sprint(id))
	}
	if err := col.Delete(context.Background(), nil, nil, docIDs...); err != nil {
		xlog.Error("Failed to remove partially stored post", "ids", docIDs, "error", err)
		return
	}
	c.next[types.CollectionSegments] = ids[0]
}

func (c *ChromemIndex) StoreQuestion(ctx context.Context, qa types.QuestionAnswer, embedding []float32) (int64, error) {
	return c.store(ctx, types.CollectionQA, qa.Answer, map[string]string{
		"question": qa.Question,
	}, embedding)
}

func (c *ChromemIndex) StoreConversation(ctx context.Context, conversation types.ConversationExample, embedding []float32) (int64, error) {
	messages, err := json.Marshal(conversation.Messages)
	if err != nil {
		return 0, err
	}
	return c.store(ctx, types.CollectionConversations, string(messages), nil, embedding)
}

func (c *ChromemIndex) HasSegmentsFor(_ context.Context, url string) (bool, error) {
	c.Lock()
	defer c.Unlock()
	_, ok := c.urls[url]
	return ok, nil
}
