package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/camilo-ai/camilo/pkg/chunk"
	"github.com/camilo-ai/camilo/rag/sources"
	"github.com/camilo-ai/camilo/rag/types"
	"github.com/mudler/xlog"
)

// SkipAIMarker ends the part of a post that may be used as context.
const SkipAIMarker = "#skipai"

// FilterSkipAI drops everything from the first #skipai marker on.
func FilterSkipAI(content string) string {
	idx := strings.Index(strings.ToLower(content), SkipAIMarker)
	if idx == -1 {
		return content
	}
	return strings.TrimSpace(content[:idx])
}

// Ingester embeds and stores blog posts, curated answers and example
// conversations.
type Ingester struct {
	embedder         Embedder
	writer           IndexWriter
	embeddingModel   string
	maxSegmentLength int
}

func NewIngester(embedder Embedder, writer IndexWriter, embeddingModel string, maxSegmentLength int) *Ingester {
	if maxSegmentLength <= 0 {
		maxSegmentLength = chunk.MaxSegmentLength
	}
	return &Ingester{
		embedder:         embedder,
		writer:           writer,
		embeddingModel:   embeddingModel,
		maxSegmentLength: maxSegmentLength,
	}
}

// IngestPosts stores the posts that were not stored before and returns how
// many were processed.
func (i *Ingester) IngestPosts(ctx context.Context, posts []sources.Post) (int, error) {
	processed := 0
	for _, post := range posts {
		exists, err := i.writer.HasSegmentsFor(ctx, post.URL)
		if err != nil {
			return processed, fmt.Errorf("checking %s: %w", post.URL, err)
		}
		if exists {
			xlog.Debug("Post already stored", "url", post.URL)
			continue
		}

		contents := chunk.SplitArticle(FilterSkipAI(post.Content), i.maxSegmentLength, chunk.MinParagraphLength)
		if len(contents) == 0 {
			xlog.Debug("Post has no content to store", "url", post.URL)
			continue
		}

		// a post is stored whole or not at all
		segments := make([]types.Segment, 0, len(contents))
		embeddings := make([][]float32, 0, len(contents))
		for n, content := range contents {
			embedding, err := i.embedder.Embed(ctx, content, i.embeddingModel)
			if err != nil {
				return processed, fmt.Errorf("embedding segment %d of %s: %w", n+1, post.URL, err)
			}
			segments = append(segments, types.Segment{
				URL:      post.URL,
				Title:    post.Title,
				Content:  content,
				Position: n + 1,
			})
			embeddings = append(embeddings, embedding)
		}

		if _, err := i.writer.StorePost(ctx, segments, embeddings); err != nil {
			return processed, fmt.Errorf("storing %s: %w", post.URL, err)
		}

		xlog.Info("Stored post", "url", post.URL, "segments", len(segments))
		processed++
	}
	return processed, nil
}

// IngestQuestions stores question/answer pairs, embedding the question.
func (i *Ingester) IngestQuestions(ctx context.Context, qas []types.QuestionAnswer) (int, error) {
	for n, qa := range qas {
		embedding, err := i.embedder.Embed(ctx, qa.Question, i.embeddingModel)
		if err != nil {
			return n, fmt.Errorf("embedding question %d: %w", n, err)
		}
		if _, err := i.writer.StoreQuestion(ctx, qa, embedding); err != nil {
			return n, fmt.Errorf("storing question %d: %w", n, err)
		}
	}
	return len(qas), nil
}

// IngestConversations stores example conversations, embedding the user
// side of each one.
func (i *Ingester) IngestConversations(ctx context.Context, conversations []types.ConversationExample) (int, error) {
	for n, c := range conversations {
		embedding, err := i.embedder.Embed(ctx, ConversationQueryText(c.Messages), i.embeddingModel)
		if err != nil {
			return n, fmt.Errorf("embedding conversation %d: %w", n, err)
		}
		if _, err := i.writer.StoreConversation(ctx, c, embedding); err != nil {
			return n, fmt.Errorf("storing conversation %d: %w", n, err)
		}
	}
	return len(conversations), nil
}

// ConversationQueryText joins the user messages of a conversation.
func ConversationQueryText(messages []Message) string {
	parts := []string{}
	for _, m := range types.UserMessages(messages) {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, " ")
}
