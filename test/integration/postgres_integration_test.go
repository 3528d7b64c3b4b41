package integration_test

import (
	"context"
	"time"

	. "github.com/camilo-ai/camilo/rag/engine"
	"github.com/camilo-ai/camilo/rag/types"
	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var _ = Describe("PostgreSQL Integration", func() {
	var (
		postgresContainer *postgres.PostgresContainer
		databaseURL       string
		ctx               context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		postgresContainer, err = postgres.Run(ctx,
			"pgvector/pgvector:pg16",
			postgres.WithDatabase("testdb"),
			postgres.WithUsername("testuser"),
			postgres.WithPassword("testpass"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		Expect(err).ToNot(HaveOccurred())

		databaseURL, err = postgresContainer.ConnectionString(ctx, "sslmode=disable")
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		if postgresContainer != nil {
			Expect(postgresContainer.Terminate(context.Background())).To(Succeed())
		}
	})

	It("should fail without a database URL", func() {
		index, err := NewPostgresIndex(ctx, "", 3)
		Expect(err).To(HaveOccurred())
		Expect(index).To(BeNil())
		Expect(err.Error()).To(ContainSubstring("DATABASE_URL is required"))
	})

	It("should store and search every collection", func() {
		index, err := NewPostgresIndex(ctx, databaseURL, 3)
		Expect(err).ToNot(HaveOccurred())
		defer index.Close()

		ids, err := index.StorePost(ctx, []types.Segment{
			{URL: "https://blog/2021/03/post", Title: "Post", Content: "exact", Position: 1},
		}, [][]float32{{1, 0, 0}})
		Expect(err).ToNot(HaveOccurred())
		Expect(ids).To(Equal([]int64{1}))

		_, err = index.StorePost(ctx, []types.Segment{
			{URL: "https://blog/other", Content: "orthogonal", Position: 1},
		}, [][]float32{{0, 0, 1}})
		Expect(err).ToNot(HaveOccurred())

		_, err = index.StoreQuestion(ctx, types.QuestionAnswer{Question: "q", Answer: "a"}, []float32{1, 0.2, 0})
		Expect(err).ToNot(HaveOccurred())

		messages := []types.Message{{Content: "hi"}, {Content: "hello", IsFromAssistant: true}}
		_, err = index.StoreConversation(ctx, types.ConversationExample{Messages: messages}, []float32{1, 0, 0.3})
		Expect(err).ToNot(HaveOccurred())

		segments, err := index.Search(ctx, types.CollectionSegments, []float32{1, 0, 0}, 0.02, 5)
		Expect(err).ToNot(HaveOccurred())
		Expect(segments).To(HaveLen(1))
		s := segments[0].(*types.Segment)
		Expect(s.URL).To(Equal("https://blog/2021/03/post"))
		Expect(s.Title).To(Equal("Post"))
		Expect(s.Position).To(Equal(1))
		Expect(s.Similarity).To(BeNumerically("~", 1.0, 0.001))

		qas, err := index.Search(ctx, types.CollectionQA, []float32{1, 0, 0}, 0.02, 5)
		Expect(err).ToNot(HaveOccurred())
		Expect(qas).To(HaveLen(1))
		Expect(qas[0].(*types.QuestionAnswer).Answer).To(Equal("a"))

		conversations, err := index.Search(ctx, types.CollectionConversations, []float32{1, 0, 0}, 0.02, 5)
		Expect(err).ToNot(HaveOccurred())
		Expect(conversations).To(HaveLen(1))
		Expect(conversations[0].(*types.ConversationExample).Messages).To(Equal(messages))

		exists, err := index.HasSegmentsFor(ctx, "https://blog/2021/03/post")
		Expect(err).ToNot(HaveOccurred())
		Expect(exists).To(BeTrue())
		exists, err = index.HasSegmentsFor(ctx, "https://blog/missing")
		Expect(err).ToNot(HaveOccurred())
		Expect(exists).To(BeFalse())

		count, err := index.Count(ctx, types.CollectionSegments)
		Expect(err).ToNot(HaveOccurred())
		Expect(count).To(Equal(2))
	})

	It("should store nothing of a post when one segment fails", func() {
		index, err := NewPostgresIndex(ctx, databaseURL, 3)
		Expect(err).ToNot(HaveOccurred())
		defer index.Close()

		// the second embedding has the wrong dimension
		_, err = index.StorePost(ctx, []types.Segment{
			{URL: "https://blog/a", Content: "first", Position: 1},
			{URL: "https://blog/a", Content: "second", Position: 2},
		}, [][]float32{{1, 0, 0}, {1, 0}})
		Expect(err).To(HaveOccurred())

		exists, err := index.HasSegmentsFor(ctx, "https://blog/a")
		Expect(err).ToNot(HaveOccurred())
		Expect(exists).To(BeFalse())

		count, err := index.Count(ctx, types.CollectionSegments)
		Expect(err).ToNot(HaveOccurred())
		Expect(count).To(Equal(0))
	})

	It("should record answered questions", func() {
		index, err := NewPostgresIndex(ctx, databaseURL, 3)
		Expect(err).ToNot(HaveOccurred())
		defer index.Close()

		Expect(index.RecordTurn(ctx, "how are you?", "great")).To(Succeed())

		pool, err := pgxpool.New(ctx, databaseURL)
		Expect(err).ToNot(HaveOccurred())
		defer pool.Close()

		var question, answer string
		err = pool.QueryRow(ctx, "SELECT question, answer FROM messages_received").Scan(&question, &answer)
		Expect(err).ToNot(HaveOccurred())
		Expect(question).To(Equal("how are you?"))
		Expect(answer).To(Equal("great"))
	})

	It("should keep existing rows when reopened", func() {
		index, err := NewPostgresIndex(ctx, databaseURL, 3)
		Expect(err).ToNot(HaveOccurred())
		_, err = index.StorePost(ctx, []types.Segment{{URL: "https://blog/a", Content: "text"}}, [][]float32{{0, 1, 0}})
		Expect(err).ToNot(HaveOccurred())
		index.Close()

		reopened, err := NewPostgresIndex(ctx, databaseURL, 3)
		Expect(err).ToNot(HaveOccurred())
		defer reopened.Close()

		exists, err := reopened.HasSegmentsFor(ctx, "https://blog/a")
		Expect(err).ToNot(HaveOccurred())
		Expect(exists).To(BeTrue())
	})
})
