package chunk

import (
	"regexp"
	"strings"
)

const (
	// MaxSegmentLength is the longest paragraph kept as a single segment.
	MaxSegmentLength = 800
	// MinParagraphLength is the shortest paragraph kept on its own.
	MinParagraphLength = 100
)

var (
	paragraphSep = regexp.MustCompile(`\n\s*\n`)
	sentenceRe   = regexp.MustCompile(`[^.!?]+[.!?]+\s*`)
)

// SplitArticle splits an article into retrieval segments. Paragraphs are
// separated by blank lines, short paragraphs are merged with their
// neighbour, and paragraphs longer than maxLength are split in two halves
// that overlap by one sentence.
func SplitArticle(content string, maxLength, minParagraph int) []string {
	if maxLength <= 0 {
		maxLength = MaxSegmentLength
	}
	if minParagraph <= 0 {
		minParagraph = MinParagraphLength
	}

	paragraphs := []string{}
	for _, p := range paragraphSep.Split(content, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	segments := []string{}
	for _, p := range CombineShortParagraphs(paragraphs, minParagraph) {
		segments = append(segments, overlappingSegments(p, maxLength)...)
	}
	return segments
}

// CombineShortParagraphs merges a paragraph into the previous one whenever
// either of them is shorter than minLength.
func CombineShortParagraphs(paragraphs []string, minLength int) []string {
	combined := []string{}
	current := ""
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		switch {
		case current == "":
			current = p
		case len(p) < minLength || len(current) < minLength:
			current = current + "\n\n" + p
		default:
			combined = append(combined, current)
			current = p
		}
	}
	if current != "" {
		combined = append(combined, current)
	}
	return combined
}

// SplitSentences splits text after each run of '.', '!' or '?'. Trailing
// text without a terminator is kept as the last sentence.
func SplitSentences(text string) []string {
	idx := sentenceRe.FindAllStringIndex(text, -1)
	sentences := make([]string, 0, len(idx)+1)
	end := 0
	for _, loc := range idx {
		sentences = append(sentences, text[loc[0]:loc[1]])
		end = loc[1]
	}
	if rest := text[end:]; strings.TrimSpace(rest) != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

func overlappingSegments(paragraph string, maxLength int) []string {
	if len(paragraph) <= maxLength {
		return []string{paragraph}
	}

	sentences := SplitSentences(paragraph)
	if len(sentences) <= 1 {
		// no sentence boundary to split on
		return SplitParagraphIntoChunks(paragraph, maxLength)
	}

	n := len(sentences)
	if n > 4 {
		mid := n / 2
		first := strings.TrimSpace(strings.Join(sentences[:mid+1], ""))
		second := strings.TrimSpace(strings.Join(sentences[mid-1:], ""))
		return append(overlappingSegments(first, maxLength), overlappingSegments(second, maxLength)...)
	}

	// a half holding one long sentence can still exceed maxLength
	first := strings.TrimSpace(strings.Join(sentences[:(n+1)/2], ""))
	second := strings.TrimSpace(strings.Join(sentences[n/2:], ""))
	return append(overlappingSegments(first, maxLength), overlappingSegments(second, maxLength)...)
}

// SplitParagraphIntoChunks takes a paragraph and a maxChunkSize as input,
// and returns a slice of strings where each string is a chunk of the paragraph
// that is at most maxChunkSize long, ensuring that words are not split.
func SplitParagraphIntoChunks(paragraph string, maxChunkSize int) []string {
	if paragraph == "" {
		return []string{}
	}
	if len(paragraph) <= maxChunkSize {
		return []string{paragraph}
	}

	var chunks []string
	var currentChunk strings.Builder

	for _, word := range strings.Fields(paragraph) {
		if currentChunk.Len() > 0 && currentChunk.Len()+len(word)+1 > maxChunkSize {
			chunks = append(chunks, currentChunk.String())
			currentChunk.Reset()
		}
		if currentChunk.Len() == 0 && len(word) > maxChunkSize {
			chunks = append(chunks, word)
			continue
		}
		if currentChunk.Len() > 0 {
			currentChunk.WriteString(" ")
		}
		currentChunk.WriteString(word)
	}

	if currentChunk.Len() > 0 {
		chunks = append(chunks, currentChunk.String())
	}

	return chunks
}
