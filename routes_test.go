package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"time"

	"github.com/camilo-ai/camilo/rag"
	"github.com/camilo-ai/camilo/rag/sources"
	"github.com/camilo-ai/camilo/rag/types"
	"github.com/labstack/echo/v4"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type stubAI struct {
	reply    string
	embedErr error
	prompts  []string
}

func (s *stubAI) Embed(_ context.Context, text, _ string) ([]float32, error) {
	if s.embedErr != nil {
		return nil, s.embedErr
	}
	return []float32{1}, nil
}

func (s *stubAI) Complete(_ context.Context, prompt, _ string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.reply, nil
}

type stubIndex struct {
	segments  []types.Segment
	questions []types.QuestionAnswer
}

func (s *stubIndex) Search(_ context.Context, c types.Collection, _ []float32, _ float64, _ int) ([]types.RetrievedItem, error) {
	if c != types.CollectionSegments {
		return []types.RetrievedItem{}, nil
	}
	return []types.RetrievedItem{
		&types.Segment{ID: 8, URL: "https://blog.test/2020/05/post", Content: "text", Similarity: 0.7},
	}, nil
}

func (s *stubIndex) StorePost(_ context.Context, segments []types.Segment, _ [][]float32) ([]int64, error) {
	ids := []int64{}
	for _, seg := range segments {
		s.segments = append(s.segments, seg)
		ids = append(ids, int64(len(s.segments)))
	}
	return ids, nil
}

func (s *stubIndex) StoreQuestion(_ context.Context, qa types.QuestionAnswer, _ []float32) (int64, error) {
	s.questions = append(s.questions, qa)
	return int64(len(s.questions)), nil
}

func (s *stubIndex) StoreConversation(_ context.Context, _ types.ConversationExample, _ []float32) (int64, error) {
	return 1, nil
}

func (s *stubIndex) HasSegmentsFor(_ context.Context, url string) (bool, error) {
	for _, seg := range s.segments {
		if seg.URL == url {
			return true, nil
		}
	}
	return false, nil
}

var _ = Describe("API", func() {
	var (
		ai      *stubAI
		index   *stubIndex
		manager *rag.SourceManager
		e       *echo.Echo
	)

	const adminKey = "admin-key"

	send := func(method, path, body, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
		if key != "" {
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+key)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	request := func(method, path, body string) *httptest.ResponseRecorder {
		return send(method, path, body, adminKey)
	}

	BeforeEach(func() {
		ai = &stubAI{reply: "Build it [8]."}
		index = &stubIndex{}

		ingester := rag.NewIngester(ai, index, "m", 0)
		var err error
		manager, err = rag.NewSourceManager(ingester, &sources.Config{}, filepath.Join(GinkgoT().TempDir(), "sources.json"))
		Expect(err).ToNot(HaveOccurred())

		e = newRouter(&services{
			orchestrator:   rag.NewChatOrchestrator(rag.NewContextRanker(ai, index), ai, nil),
			simulator:      rag.NewSimulator(ai, "", ""),
			ingester:       ingester,
			sources:        manager,
			updateInterval: time.Hour,
			adminKey:       adminKey,
		}, []string{"http://localhost:3000"})
	})

	It("should answer the health check", func() {
		rec := request(http.MethodGet, "/", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal("Hello World"))
		Expect(rec.Header().Get(echo.HeaderAccessControlAllowOrigin)).To(Equal("http://localhost:3000"))
	})

	It("should reply to a message with link data", func() {
		rec := request(http.MethodPost, "/message", `{"messages":[{"content":"what should I build?","isAI":false}]}`)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"reply":"Build it [8].","linkData":{"8":"https://blog.test/2020/05/post"}}`))
		Expect(ai.prompts[0]).To(ContainSubstring("[Reference 8 - May 2020]"))
	})

	It("should hide failure details", func() {
		ai.embedErr = errors.New("invalid api key sk-123")
		rec := request(http.MethodPost, "/message", `{"messages":[{"content":"hi","isAI":false}]}`)
		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(rec.Body.String()).To(MatchJSON(`{"error":"Failed to process message"}`))
	})

	It("should fail an assistant only transcript", func() {
		rec := request(http.MethodPost, "/message", `{"messages":[{"content":"hi","isAI":true}]}`)
		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(rec.Body.String()).To(MatchJSON(`{"error":"Failed to process message"}`))
	})

	It("should reject malformed requests", func() {
		rec := request(http.MethodPost, "/message", `{"messages":`)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should simulate a message without link data", func() {
		rec := request(http.MethodPost, "/simulateMessage", `{"messages":[],"isUser":true}`)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"reply":"Build it [8].","linkData":{}}`))
	})

	It("should store questions", func() {
		rec := request(http.MethodPost, "/api/questions", `[{"question":"How?","answer":"Like this."}]`)
		Expect(rec.Code).To(Equal(http.StatusCreated))
		Expect(rec.Body.String()).To(MatchJSON(`{"stored":1}`))
		Expect(index.questions[0].Question).To(Equal("How?"))
	})

	It("should store conversations", func() {
		rec := request(http.MethodPost, "/api/conversations", `[{"conversation":[{"content":"hi","isAI":false}]}]`)
		Expect(rec.Code).To(Equal(http.StatusCreated))
		Expect(rec.Body.String()).To(MatchJSON(`{"stored":1}`))
	})

	It("should require a source to update blogs", func() {
		rec := request(http.MethodPost, "/api/blogs/update", `{}`)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should reject a local file as a blog source", func() {
		rec := request(http.MethodPost, "/api/blogs/update", `{"source":"file:///etc/passwd"}`)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(index.segments).To(BeEmpty())
	})

	It("should not register local files as sources", func() {
		rec := request(http.MethodPost, "/api/sources", `{"url":"file:///home/me/notes.md"}`)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(manager.Sources()).To(BeEmpty())
	})

	DescribeTable("admin routes",
		func(method, path, body string) {
			rec := send(method, path, body, "")
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(rec.Body.String()).To(MatchJSON(`{"error":"Unauthorized"}`))

			rec = send(method, path, body, "wrong-key")
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))

			Expect(index.questions).To(BeEmpty())
			Expect(manager.Sources()).To(BeEmpty())
		},
		Entry("update blogs", http.MethodPost, "/api/blogs/update", `{"source":"https://blog.test/sitemap.xml"}`),
		Entry("store questions", http.MethodPost, "/api/questions", `[{"question":"How?","answer":"Like this."}]`),
		Entry("store conversations", http.MethodPost, "/api/conversations", `[{"conversation":[{"content":"hi","isAI":false}]}]`),
		Entry("list sources", http.MethodGet, "/api/sources", ""),
		Entry("add source", http.MethodPost, "/api/sources", `{"url":"https://blog.test/sitemap.xml"}`),
		Entry("remove source", http.MethodDelete, "/api/sources", `{"url":"https://blog.test/sitemap.xml"}`),
	)

	It("should keep chat routes open", func() {
		rec := send(http.MethodPost, "/message", `{"messages":[{"content":"hi","isAI":false}]}`, "")
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("should refuse every key when no admin key is configured", func() {
		e = newRouter(&services{
			ingester: rag.NewIngester(ai, index, "m", 0),
			sources:  manager,
		}, []string{"http://localhost:3000"})
		rec := send(http.MethodPost, "/api/questions", `[{"question":"How?","answer":"Like this."}]`, "")
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		rec = send(http.MethodGet, "/api/sources", "", adminKey)
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("should manage sources", func() {
		rec := request(http.MethodPost, "/api/sources", `{"url":"https://blog.test/sitemap.xml"}`)
		Expect(rec.Code).To(Equal(http.StatusCreated))

		rec = request(http.MethodPost, "/api/sources", `{"url":"https://blog.test/sitemap.xml"}`)
		Expect(rec.Code).To(Equal(http.StatusConflict))

		rec = request(http.MethodGet, "/api/sources", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"url":"https://blog.test/sitemap.xml"`))
		Expect(rec.Body.String()).To(ContainSubstring(`"update_interval":3600000000000`))

		rec = request(http.MethodDelete, "/api/sources", `{"url":"https://blog.test/sitemap.xml"}`)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`[]`))
	})
})
