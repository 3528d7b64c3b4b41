package rag_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/camilo-ai/camilo/rag"
	"github.com/camilo-ai/camilo/rag/sources"
	"github.com/camilo-ai/camilo/rag/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Ingester", func() {
	var (
		embedder *fakeEmbedder
		writer   *fakeWriter
		ingester *Ingester
		ctx      context.Context
	)

	BeforeEach(func() {
		embedder = newFakeEmbedder()
		writer = newFakeWriter()
		ingester = NewIngester(embedder, writer, "text-embedding-3-large", 0)
		ctx = context.Background()
	})

	Describe("FilterSkipAI", func() {
		It("should drop everything after the marker", func() {
			Expect(FilterSkipAI("keep this\n\n#SkipAI\nprivate")).To(Equal("keep this"))
		})

		It("should leave content without the marker untouched", func() {
			Expect(FilterSkipAI("all public")).To(Equal("all public"))
		})
	})

	Describe("IngestPosts", func() {
		It("should store numbered segments for new posts", func() {
			first := strings.Repeat("The first paragraph talks about shipping early. ", 3)
			second := strings.Repeat("The second paragraph talks about hiring slowly. ", 3)
			processed, err := ingester.IngestPosts(ctx, []sources.Post{
				{URL: "https://blog.test/2021/03/a", Title: "A", Content: first + "\n\n" + second},
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(processed).To(Equal(1))
			Expect(writer.segments).To(HaveLen(2))
			Expect(writer.segments[0].Position).To(Equal(1))
			Expect(writer.segments[1].Position).To(Equal(2))
			Expect(writer.segments[0].Title).To(Equal("A"))
			Expect(writer.segments[0].URL).To(Equal("https://blog.test/2021/03/a"))
			Expect(embedder.models).To(HaveEach("text-embedding-3-large"))
		})

		It("should skip posts that were already stored", func() {
			writer.known["https://blog.test/old"] = true
			processed, err := ingester.IngestPosts(ctx, []sources.Post{
				{URL: "https://blog.test/old", Content: strings.Repeat("old text ", 20)},
				{URL: "https://blog.test/new", Content: strings.Repeat("new text ", 20)},
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(processed).To(Equal(1))
			for _, s := range writer.segments {
				Expect(s.URL).To(Equal("https://blog.test/new"))
			}
		})

		It("should not index text after #skipai", func() {
			_, err := ingester.IngestPosts(ctx, []sources.Post{
				{URL: "https://blog.test/a", Content: strings.Repeat("public words ", 20) + "\n\n#skipai\n\n" + strings.Repeat("secret ", 30)},
			})
			Expect(err).ToNot(HaveOccurred())
			for _, s := range writer.segments {
				Expect(s.Content).ToNot(ContainSubstring("secret"))
			}
		})

		It("should stop at the first embedding failure", func() {
			embedder.err = errors.New("quota")
			processed, err := ingester.IngestPosts(ctx, []sources.Post{
				{URL: "https://blog.test/a", Content: strings.Repeat("word ", 40)},
			})
			Expect(err).To(HaveOccurred())
			Expect(processed).To(Equal(0))
			Expect(writer.segments).To(BeEmpty())
		})
	})

	Describe("IngestPosts after a partial failure", func() {
		post := func() sources.Post {
			paragraphs := []string{
				strings.Repeat("Shipping early beats shipping perfect. ", 4),
				strings.Repeat("Hiring slowly keeps the team sharp. ", 4),
				strings.Repeat("Talking to users answers most questions. ", 4),
			}
			return sources.Post{URL: "https://blog.test/2022/01/lessons", Title: "Lessons", Content: strings.Join(paragraphs, "\n\n")}
		}

		It("should store nothing when a later segment fails to embed", func() {
			embedder.failOn = 2
			processed, err := ingester.IngestPosts(ctx, []sources.Post{post()})
			Expect(err).To(MatchError(ContainSubstring("segment 2")))
			Expect(processed).To(Equal(0))
			Expect(writer.segments).To(BeEmpty())

			known, err := writer.HasSegmentsFor(ctx, post().URL)
			Expect(err).ToNot(HaveOccurred())
			Expect(known).To(BeFalse())
		})

		It("should store every segment on the next sync", func() {
			embedder.failOn = 2
			_, err := ingester.IngestPosts(ctx, []sources.Post{post()})
			Expect(err).To(HaveOccurred())

			embedder.failOn = 0
			processed, err := ingester.IngestPosts(ctx, []sources.Post{post()})
			Expect(err).ToNot(HaveOccurred())
			Expect(processed).To(Equal(1))
			Expect(writer.segments).To(HaveLen(3))
			for n, s := range writer.segments {
				Expect(s.Position).To(Equal(n + 1))
			}
		})

		It("should not mark a post stored when the write fails", func() {
			writer.err = errors.New("connection reset")
			_, err := ingester.IngestPosts(ctx, []sources.Post{post()})
			Expect(err).To(HaveOccurred())

			writer.err = nil
			processed, err := ingester.IngestPosts(ctx, []sources.Post{post()})
			Expect(err).ToNot(HaveOccurred())
			Expect(processed).To(Equal(1))
			Expect(writer.segments).To(HaveLen(3))
		})
	})

	Describe("IngestQuestions", func() {
		It("should embed the question", func() {
			stored, err := ingester.IngestQuestions(ctx, []types.QuestionAnswer{
				{Question: "How do I start?", Answer: "Just start."},
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(stored).To(Equal(1))
			Expect(embedder.calls).To(Equal([]string{"How do I start?"}))
			Expect(writer.questions[0].Answer).To(Equal("Just start."))
		})

		It("should report how many were stored before a failure", func() {
			writer.err = errors.New("closed")
			stored, err := ingester.IngestQuestions(ctx, []types.QuestionAnswer{{Question: "q", Answer: "a"}})
			Expect(err).To(HaveOccurred())
			Expect(stored).To(Equal(0))
		})
	})

	Describe("IngestConversations", func() {
		It("should embed the user side of each conversation", func() {
			stored, err := ingester.IngestConversations(ctx, []types.ConversationExample{
				{Messages: []types.Message{user("I feel stuck"), assistant("Why?"), user("No progress")}},
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(stored).To(Equal(1))
			Expect(embedder.calls).To(Equal([]string{"I feel stuck No progress"}))
			Expect(writer.conversations[0].Messages).To(HaveLen(3))
		})
	})
})
