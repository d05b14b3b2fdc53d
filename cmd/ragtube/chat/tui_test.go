package chatcmder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"

	bubbletea "github.com/charmbracelet/bubbletea"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragtube/pkg/chat"
	"github.com/papercomputeco/ragtube/pkg/rag"
)

var _ = Describe("tuiModel", func() {
	var (
		backend  *httptest.Server
		session  *chat.Session
		selector *chat.Selector
		model    tuiModel
		pending  *sync.WaitGroup
	)

	update := func(msg bubbletea.Msg) bubbletea.Cmd {
		next, cmd := model.Update(msg)
		model = next.(tuiModel)
		return cmd
	}

	BeforeEach(func() {
		ctx := context.Background()
		backend = fakeBackend(http.StatusOK, nil)
		client := rag.NewClient(backend.URL)
		session = chat.NewSession(client, chat.WithGreeting(chat.DefaultGreeting))
		selector = chat.NewSelector(nil)
		Expect(selector.Load(ctx, client)).To(Succeed())
		DeferCleanup(session.Bind(selector))

		pending = &sync.WaitGroup{}
		model = newTUIModel(ctx, session, selector, pending)
		update(bubbletea.WindowSizeMsg{Width: 100, Height: 40})
	})

	AfterEach(func() {
		backend.Close()
	})

	It("renders the greeting and the channel label", func() {
		view := model.View()
		Expect(view).To(ContainSubstring("ragtube"))
		Expect(view).To(ContainSubstring(chat.AllChannels))
	})

	It("cycles the channel filter with tab", func() {
		update(bubbletea.KeyMsg{Type: bubbletea.KeyTab})
		Expect(selector.Selected()).To(Equal("UC1"))
		Expect(session.Channel()).To(Equal("UC1"))

		update(bubbletea.KeyMsg{Type: bubbletea.KeyTab})
		update(bubbletea.KeyMsg{Type: bubbletea.KeyTab})
		Expect(selector.Selected()).To(BeEmpty())
	})

	It("ignores enter with an empty input", func() {
		cmd := update(bubbletea.KeyMsg{Type: bubbletea.KeyEnter})
		Expect(cmd).To(BeNil())
		Expect(model.busy).To(BeFalse())
	})

	It("submits the input and clears busy when done", func() {
		model.input.SetValue("how often do I feed it?")
		cmd := update(bubbletea.KeyMsg{Type: bubbletea.KeyEnter})
		Expect(cmd).NotTo(BeNil())
		Expect(model.busy).To(BeTrue())
		Expect(model.input.Value()).To(BeEmpty())

		outcome, err := session.Submit(context.Background(), "how often do I feed it?")
		Expect(err).NotTo(HaveOccurred())
		update(submitDoneMsg{outcome: outcome})

		Expect(model.busy).To(BeFalse())
		Expect(model.status).To(ContainSubstring("answered in"))
		Expect(model.viewport.View()).To(ContainSubstring("twice a day"))
	})

	It("tracks a submission until its command returns", func() {
		model.input.SetValue("how often do I feed it?")
		cmd := update(bubbletea.KeyMsg{Type: bubbletea.KeyEnter})
		Expect(cmd).NotTo(BeNil())

		drained := make(chan struct{})
		go func() {
			pending.Wait()
			close(drained)
		}()
		Consistently(drained, "50ms").ShouldNot(BeClosed())

		batch, ok := cmd().(bubbletea.BatchMsg)
		Expect(ok).To(BeTrue())

		var done submitDoneMsg
		for _, c := range batch {
			if msg, ok := c().(submitDoneMsg); ok {
				done = msg
			}
		}
		Expect(done.err).NotTo(HaveOccurred())
		Expect(done.outcome.State).To(Equal(chat.Completed))
		Eventually(drained).Should(BeClosed())
	})

	It("does not cycle channels while busy", func() {
		model.busy = true
		update(bubbletea.KeyMsg{Type: bubbletea.KeyTab})
		Expect(selector.Selected()).To(BeEmpty())
	})

	It("quits on esc", func() {
		cmd := update(bubbletea.KeyMsg{Type: bubbletea.KeyEsc})
		Expect(cmd).NotTo(BeNil())
		Expect(cmd()).To(BeAssignableToTypeOf(bubbletea.QuitMsg{}))
	})
})
