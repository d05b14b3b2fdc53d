package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragtube/pkg/chat"
	"github.com/papercomputeco/ragtube/pkg/logger"
	"github.com/papercomputeco/ragtube/pkg/rag"
	"github.com/papercomputeco/ragtube/pkg/storage"
	"github.com/papercomputeco/ragtube/pkg/storage/inmemory"
)

const ragBody = `{"context":[{"id":1,"video_id":"abc123","title":"Go Concurrency","publish_time":"2024-05-01T10:00:00","content":"channels are typed conduits"}]}
{"answer":"Use "}
{"answer":"channels."}
`

// fakeBackend serves /rag and /channel like the RAG service.
func fakeBackend(ragResponse string, status int) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/rag", func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", rag.ContentTypeNDJSON)
		_, _ = w.Write([]byte(ragResponse))
	})
	mux.HandleFunc("/channel", func(w http.ResponseWriter, _ *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"UC1","title":"Gopher Talks"},{"id":"UC2","title":"Systems"}]`))
	})
	return httptest.NewServer(mux)
}

var _ = Describe("MCP Server", func() {
	var (
		backend *httptest.Server
		driver  *inmemory.Driver
		server  *Server
		ctx     context.Context
	)

	newServer := func(status int, body string, hook func(chat.Exchange)) {
		backend = fakeBackend(body, status)
		var err error
		server, err = NewServer(Config{
			Backend:    rag.NewClient(backend.URL),
			Driver:     driver,
			OnExchange: hook,
			Logger:     logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		driver = inmemory.NewDriver()
		ctx = context.Background()
	})

	AfterEach(func() {
		if backend != nil {
			backend.Close()
			backend = nil
		}
	})

	Describe("NewServer", func() {
		It("returns an error when the backend is nil", func() {
			_, err := NewServer(Config{Driver: driver, Logger: logger.Nop()})
			Expect(err).To(MatchError(ContainSubstring("rag backend is required")))
		})

		It("returns an error when storage driver is nil", func() {
			_, err := NewServer(Config{Backend: rag.NewClient("http://localhost:1"), Logger: logger.Nop()})
			Expect(err).To(MatchError(ContainSubstring("storage driver is required")))
		})

		It("returns an error when logger is nil", func() {
			_, err := NewServer(Config{Backend: rag.NewClient("http://localhost:1"), Driver: driver})
			Expect(err).To(MatchError(ContainSubstring("logger is required")))
		})

		It("creates an empty server in noop mode", func() {
			s, err := NewServer(Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Handler()).NotTo(BeNil())
		})
	})

	Describe("ask", func() {
		It("returns the streamed answer with its sources", func() {
			newServer(http.StatusOK, ragBody, nil)

			result, out, err := server.handleAsk(ctx, nil, AskInput{Question: "  how do goroutines talk? ", ChannelID: "UC1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())

			Expect(out.Question).To(Equal("how do goroutines talk?"))
			Expect(out.ChannelID).To(Equal("UC1"))
			Expect(out.State).To(Equal(chat.Completed.String()))
			Expect(out.Answer).To(Equal("Use channels."))
			Expect(out.Sources).To(HaveLen(1))
			Expect(out.Sources[0].Title).To(Equal("Go Concurrency"))
			Expect(out.Sources[0].URL).To(ContainSubstring("abc123"))
			Expect(out.SessionID).NotTo(BeEmpty())
		})

		It("reports the no-results answer", func() {
			newServer(http.StatusOK, "", nil)

			result, out, err := server.handleAsk(ctx, nil, AskInput{Question: "anything?"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(out.Answer).To(Equal(chat.NoResultsText))
			Expect(out.Sources).To(BeEmpty())
		})

		It("rejects an empty question", func() {
			newServer(http.StatusOK, ragBody, nil)

			result, _, err := server.handleAsk(ctx, nil, AskInput{Question: "   "})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})

		It("returns a tool error when the backend fails", func() {
			newServer(http.StatusInternalServerError, "", nil)

			result, _, err := server.handleAsk(ctx, nil, AskInput{Question: "hello?"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})

		It("hands the exchange to the completion hook", func() {
			var (
				mu        sync.Mutex
				exchanges []chat.Exchange
			)
			newServer(http.StatusOK, ragBody, func(ex chat.Exchange) {
				mu.Lock()
				defer mu.Unlock()
				exchanges = append(exchanges, ex)
			})

			_, out, err := server.handleAsk(ctx, nil, AskInput{Question: "q"})
			Expect(err).NotTo(HaveOccurred())

			mu.Lock()
			defer mu.Unlock()
			Expect(exchanges).To(HaveLen(1))
			Expect(exchanges[0].SessionID).To(Equal(out.SessionID))
			Expect(exchanges[0].Answer()).To(Equal("Use channels."))
		})
	})

	Describe("list_channels", func() {
		It("lists the backend channels", func() {
			newServer(http.StatusOK, ragBody, nil)

			_, out, err := server.handleListChannels(ctx, nil, ListChannelsInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Count).To(Equal(2))
			Expect(out.Channels[0].Title).To(Equal("Gopher Talks"))
		})

		It("returns a tool error when the backend fails", func() {
			newServer(http.StatusBadGateway, "", nil)

			result, _, err := server.handleListChannels(ctx, nil, ListChannelsInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})
	})

	Describe("get_session", func() {
		BeforeEach(func() {
			newServer(http.StatusOK, ragBody, nil)
		})

		It("returns stored turns in order", func() {
			Expect(driver.PutMessages(ctx, "s1", []storage.StoredMessage{
				{ID: "m1", Role: "user", Text: "what?"},
				{ID: "m2", Role: "assistant", Text: "that", Context: []rag.SourceDocument{{VideoID: "v", Title: "T", Content: strings.Repeat("x", 600)}}},
			})).To(Succeed())

			result, out, err := server.handleGetSession(ctx, nil, GetSessionInput{SessionID: "s1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(out.Count).To(Equal(2))
			Expect(out.Turns[0].Text).To(Equal("what?"))
			Expect(out.Turns[1].Sources).To(HaveLen(1))
			Expect(len([]rune(out.Turns[1].Sources[0].Excerpt))).To(BeNumerically("<=", sourceExcerptLength+3))
		})

		It("returns a tool error for an unknown session", func() {
			result, _, err := server.handleGetSession(ctx, nil, GetSessionInput{SessionID: "nope"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})

		It("requires a session id", func() {
			result, _, err := server.handleGetSession(ctx, nil, GetSessionInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})
	})
})
