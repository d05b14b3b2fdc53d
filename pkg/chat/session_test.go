package chat_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragtube/pkg/chat"
	"github.com/papercomputeco/ragtube/pkg/rag"
	"github.com/papercomputeco/ragtube/pkg/transcript"
)

const contextLine = `{"context":[{"id":1,"video_id":"v1","title":"Intro","publish_time":"2024-04-29T18:10:00","content":"hello world"}]}` + "\n"

var _ = Describe("Session", func() {
	var (
		streamer *fakeStreamer
		session  *chat.Session
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		streamer = &fakeStreamer{}
		session = chat.NewSession(streamer)
	})

	It("builds the answer from tokens and keeps the context", func() {
		streamer.body = contextLine + `{"answer":"Hel"}` + "\n" + `{"answer":"lo"}` + "\n"

		out, err := session.Submit(ctx, "what is this?")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.State).To(Equal(chat.Completed))
		Expect(out.EmptyResult).To(BeFalse())

		msgs := session.Transcript().Messages()
		Expect(msgs).To(HaveLen(2))
		Expect(msgs[0].Role).To(Equal(transcript.RoleUser))
		Expect(msgs[0].Text).To(Equal("what is this?"))

		reply := msgs[out.AssistantIndex]
		Expect(reply.Text).To(Equal("Hello"))
		Expect(reply.Frozen).To(BeTrue())
		Expect(reply.Context).To(Equal([]rag.SourceDocument{{
			ID: 1, VideoID: "v1", Title: "Intro", PublishTime: "2024-04-29T18:10:00", Content: "hello world",
		}}))
	})

	It("appends exactly one no-results message for an empty stream", func() {
		out, err := session.Submit(ctx, "anything")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.State).To(Equal(chat.Completed))
		Expect(out.EmptyResult).To(BeTrue())

		msgs := session.Transcript().Messages()
		Expect(msgs).To(HaveLen(2))
		Expect(msgs[1].Text).To(Equal(chat.NoResultsText))
		Expect(msgs[1].Context).To(BeEmpty())
		Expect(msgs[1].IsError).To(BeFalse())
	})

	It("keeps partial text and appends a separate error message on transport failure", func() {
		streamer.body = contextLine + `{"answer":"Hi"}` + "\n"
		streamer.readErr = errors.New("connection reset")

		out, err := session.Submit(ctx, "q")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.State).To(Equal(chat.Failed))
		Expect(rag.IsTransportError(out.Err)).To(BeTrue())

		msgs := session.Transcript().Messages()
		Expect(msgs).To(HaveLen(3))
		Expect(msgs[1].Text).To(Equal("Hi"))
		Expect(msgs[1].IsError).To(BeFalse())
		Expect(msgs[1].Frozen).To(BeTrue())
		Expect(msgs[2].Text).To(Equal(chat.ErrorText))
		Expect(msgs[2].IsError).To(BeTrue())
		Expect(out.ErrorIndex).To(Equal(2))
	})

	It("appends only the error message when the request cannot be opened", func() {
		streamer.openErr = &rag.TransportError{Op: "rag", StatusCode: 500}

		out, err := session.Submit(ctx, "q")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.State).To(Equal(chat.Failed))
		Expect(out.AssistantIndex).To(Equal(-1))
		Expect(rag.StatusCode(out.Err)).To(Equal(500))

		msgs := session.Transcript().Messages()
		Expect(msgs).To(HaveLen(2))
		Expect(msgs[1].IsError).To(BeTrue())
	})

	It("ignores answers before context", func() {
		streamer.body = `{"answer":"stray"}` + "\n"

		out, err := session.Submit(ctx, "q")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.EmptyResult).To(BeTrue())
		Expect(session.Transcript().Messages()[1].Text).To(Equal(chat.NoResultsText))
	})

	It("ignores a second context event", func() {
		streamer.body = contextLine + `{"answer":"a"}` + "\n" + `{"context":[]}` + "\n" + `{"answer":"b"}` + "\n"

		_, err := session.Submit(ctx, "q")
		Expect(err).NotTo(HaveOccurred())

		msgs := session.Transcript().Messages()
		Expect(msgs).To(HaveLen(2))
		Expect(msgs[1].Text).To(Equal("ab"))
		Expect(msgs[1].Context).To(HaveLen(1))
	})

	It("starts streaming on an empty context list", func() {
		streamer.body = `{"context":[]}` + "\n" + `{"answer":"x"}` + "\n"

		out, err := session.Submit(ctx, "q")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.EmptyResult).To(BeFalse())
		Expect(session.Transcript().Messages()[1].Text).To(Equal("x"))
	})

	It("skips malformed lines without failing", func() {
		streamer.body = contextLine + "{broken\n" + `{"answer":"ok"}` + "\n"

		out, err := session.Submit(ctx, "q")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.State).To(Equal(chat.Completed))
		Expect(session.Transcript().Messages()[1].Text).To(Equal("ok"))
	})

	It("rejects blank queries without touching the transcript", func() {
		_, err := session.Submit(ctx, "   \n")
		Expect(err).To(MatchError(chat.ErrEmptyQuery))
		Expect(session.Transcript().Len()).To(Equal(0))
		Expect(streamer.queries).To(BeEmpty())
	})

	It("rejects a second submission while one is in flight", func() {
		streamer.body = contextLine + `{"answer":"slow"}` + "\n"
		streamer.block = make(chan struct{})

		done := make(chan chat.Outcome)
		go func() {
			defer GinkgoRecover()
			out, err := session.Submit(ctx, "first")
			Expect(err).NotTo(HaveOccurred())
			done <- out
		}()

		Eventually(session.Busy).Should(BeTrue())
		before := session.Transcript().Len()

		_, err := session.Submit(ctx, "second")
		Expect(err).To(MatchError(chat.ErrBusy))
		Expect(session.Transcript().Len()).To(Equal(before))

		close(streamer.block)
		var out chat.Outcome
		Eventually(done).Should(Receive(&out))
		Expect(out.State).To(Equal(chat.Completed))
		Expect(session.Busy()).To(BeFalse())

		_, err = session.Submit(ctx, "third")
		Expect(err).NotTo(HaveOccurred())
	})

	It("treats cancellation as a failure", func() {
		streamer.body = contextLine + `{"answer":"par"}` + "\n"
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		out, err := session.Submit(cctx, "q")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.State).To(Equal(chat.Failed))
		Expect(out.Err).To(MatchError(context.Canceled))
	})

	It("accepts new submissions after a streamer panics", func() {
		streamer.body = contextLine + `{"answer":"recovered"}` + "\n"
		session = chat.NewSession(&panickyStreamer{next: streamer})

		Expect(func() { _, _ = session.Submit(ctx, "boom") }).To(PanicWith("stream exploded"))
		Expect(session.Busy()).To(BeFalse())

		out, err := session.Submit(ctx, "again")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.State).To(Equal(chat.Completed))
	})

	Describe("channel filter", func() {
		It("sends no channel by default", func() {
			_, _ = session.Submit(ctx, "q")
			Expect(streamer.queries[0].ChannelID).To(BeEmpty())
		})

		It("sends the selected channel", func() {
			session.SetChannel("UC1")
			_, _ = session.Submit(ctx, "q")
			Expect(streamer.queries[0]).To(Equal(rag.Query{Text: "q", ChannelID: "UC1"}))
			Expect(session.Channel()).To(Equal("UC1"))
		})

		It("follows a bound selector", func() {
			sel := chat.NewSelector(nil)
			Expect(sel.Load(ctx, fakeLister{channels: []rag.Channel{{ID: "UC1", Title: "One"}}})).To(Succeed())

			unbind := session.Bind(sel)
			Expect(sel.Select("UC1")).To(Succeed())
			Expect(session.Channel()).To(Equal("UC1"))

			unbind()
			Expect(sel.Select("")).To(Succeed())
			Expect(session.Channel()).To(Equal("UC1"))
		})
	})

	Describe("options", func() {
		It("seeds the greeting", func() {
			s := chat.NewSession(streamer, chat.WithGreeting(chat.DefaultGreeting))
			msgs := s.Transcript().Messages()
			Expect(msgs).To(HaveLen(1))
			Expect(msgs[0].Role).To(Equal(transcript.RoleAssistant))
			Expect(msgs[0].Text).To(Equal(chat.DefaultGreeting))
		})

		It("uses the given session ID and channel", func() {
			s := chat.NewSession(streamer, chat.WithSessionID("abc"), chat.WithChannel(" UC9 "))
			Expect(s.ID()).To(Equal("abc"))
			Expect(s.Channel()).To(Equal("UC9"))
		})

		It("fires completion hooks with the exchange", func() {
			var got []chat.Exchange
			streamer.body = contextLine + `{"answer":"Hello"}` + "\n"
			var s *chat.Session
			s = chat.NewSession(streamer, chat.WithCompletionHook(func(ex chat.Exchange) {
				Expect(s.Busy()).To(BeFalse())
				got = append(got, ex)
			}))

			_, err := s.Submit(ctx, "q")
			Expect(err).NotTo(HaveOccurred())

			Expect(got).To(HaveLen(1))
			ex := got[0]
			Expect(ex.SessionID).To(Equal(s.ID()))
			Expect(ex.User.Text).To(Equal("q"))
			Expect(ex.Answer()).To(Equal("Hello"))
			Expect(ex.Sources()).To(HaveLen(1))
			Expect(ex.Failed()).To(BeFalse())
			Expect(ex.Outcome.Duration()).To(BeNumerically(">=", time.Duration(0)))
		})

		It("includes the error reply in a failed exchange", func() {
			var got chat.Exchange
			streamer.openErr = errors.New("dial tcp: refused")
			s := chat.NewSession(streamer, chat.WithCompletionHook(func(ex chat.Exchange) { got = ex }))

			_, _ = s.Submit(ctx, "q")
			Expect(got.Failed()).To(BeTrue())
			Expect(got.Replies).To(HaveLen(1))
			Expect(got.Replies[0].IsError).To(BeTrue())
			Expect(got.Answer()).To(BeEmpty())
		})
	})
})
