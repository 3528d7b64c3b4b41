package types

// Collection names one of the three logical similarity indexes.
type Collection int

const (
	CollectionSegments Collection = iota
	CollectionQA
	CollectionConversations
)

// Collections lists every collection in retrieval order.
var Collections = []Collection{CollectionSegments, CollectionQA, CollectionConversations}

func (c Collection) String() string {
	switch c {
	case CollectionSegments:
		return "segments"
	case CollectionQA:
		return "questions"
	case CollectionConversations:
		return "conversations"
	}
	return "unknown"
}

// SourceType tags a retrieved item with the variant it carries.
type SourceType int

const (
	SourceSegment SourceType = iota
	SourceQuestion
	SourceConversation
)

func (s SourceType) String() string {
	switch s {
	case SourceSegment:
		return "segment"
	case SourceQuestion:
		return "question"
	case SourceConversation:
		return "conversation"
	}
	return "unknown"
}

// RetrievedItem is a result from one of the similarity indexes.
// The set of implementations is closed: *Segment, *QuestionAnswer and
// *ConversationExample.
type RetrievedItem interface {
	ItemID() int64
	Source() SourceType

	// Score is the similarity, possibly rescaled by the ranker.
	// The higher the value, the more relevant the item is.
	Score() float64

	// Weighted returns a copy of the item with its similarity multiplied by w.
	Weighted(w float64) RetrievedItem

	sealed()
}

// Segment is a piece of a blog post.
type Segment struct {
	ID         int64   `json:"id"`
	URL        string  `json:"url"`
	Title      string  `json:"title,omitempty"`
	Content    string  `json:"content"`
	Position   int     `json:"segment,omitempty"`
	Similarity float64 `json:"similarity"`
}

func (s *Segment) ItemID() int64      { return s.ID }
func (s *Segment) Source() SourceType { return SourceSegment }
func (s *Segment) Score() float64     { return s.Similarity }
func (s *Segment) sealed()            {}

func (s *Segment) Weighted(w float64) RetrievedItem {
	c := *s
	c.Similarity *= w
	return &c
}

// QuestionAnswer is a curated question with the author's answer.
type QuestionAnswer struct {
	ID         int64   `json:"id"`
	Question   string  `json:"question"`
	Answer     string  `json:"answer"`
	Similarity float64 `json:"similarity"`
}

func (q *QuestionAnswer) ItemID() int64      { return q.ID }
func (q *QuestionAnswer) Source() SourceType { return SourceQuestion }
func (q *QuestionAnswer) Score() float64     { return q.Similarity }
func (q *QuestionAnswer) sealed()            {}

func (q *QuestionAnswer) Weighted(w float64) RetrievedItem {
	c := *q
	c.Similarity *= w
	return &c
}

// ConversationExample is a past conversation the author actually had.
type ConversationExample struct {
	ID         int64     `json:"id"`
	Messages   []Message `json:"conversation"`
	Similarity float64   `json:"similarity"`
}

func (c *ConversationExample) ItemID() int64      { return c.ID }
func (c *ConversationExample) Source() SourceType { return SourceConversation }
func (c *ConversationExample) Score() float64     { return c.Similarity }
func (c *ConversationExample) sealed()            {}

func (c *ConversationExample) Weighted(w float64) RetrievedItem {
	cp := *c
	cp.Similarity *= w
	return &cp
}
