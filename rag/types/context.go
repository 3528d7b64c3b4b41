package types

// LinkMap maps a segment id to its url so that [N] citations in a reply
// can be rendered as links.
type LinkMap map[int64]string

// RankedContext is the size-bounded retrieval result, partitioned by type.
// Each slice is ordered by descending similarity.
type RankedContext struct {
	Segments      []*Segment
	Questions     []*QuestionAnswer
	Conversations []*ConversationExample
}

// Len returns the number of items across all three partitions.
func (r *RankedContext) Len() int {
	return len(r.Segments) + len(r.Questions) + len(r.Conversations)
}

// LinkMap builds the citation map from the segments present in the context.
func (r *RankedContext) LinkMap() LinkMap {
	links := LinkMap{}
	for _, s := range r.Segments {
		links[s.ID] = s.URL
	}
	return links
}
