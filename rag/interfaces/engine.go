package interfaces

import (
	"context"

	"github.com/camilo-ai/camilo/rag/types"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text, model string) ([]float32, error)
}

// Searcher runs a similarity search against one of the collections.
// Results are expected, but not required, to be sorted by similarity.
type Searcher interface {
	Search(ctx context.Context, collection types.Collection, query []float32, threshold float64, limit int) ([]types.RetrievedItem, error)
}

// Completer produces a completion for a single user-role prompt.
type Completer interface {
	Complete(ctx context.Context, prompt, model string) (string, error)
}

// TurnRecorder persists an answered question.
type TurnRecorder interface {
	RecordTurn(ctx context.Context, question, answer string) error
}

// IndexWriter stores content in the three collections.
type IndexWriter interface {
	// StorePost stores all segments of one post, or none of them when any
	// write fails. embeddings[i] belongs to segments[i].
	StorePost(ctx context.Context, segments []types.Segment, embeddings [][]float32) ([]int64, error)
	StoreQuestion(ctx context.Context, qa types.QuestionAnswer, embedding []float32) (int64, error)
	StoreConversation(ctx context.Context, conversation types.ConversationExample, embedding []float32) (int64, error)

	// HasSegmentsFor reports whether the post at url was stored.
	HasSegmentsFor(ctx context.Context, url string) (bool, error)
}
