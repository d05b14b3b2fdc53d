package kafka

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/ragtube/pkg/eventstream"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	var (
		w *fakeWriter
		p *Publisher
	)

	BeforeEach(func() {
		w = &fakeWriter{}
		p = newPublisher(w, "ragtube.exchanges", nil)
	})

	It("requires brokers and a topic", func() {
		_, err := NewPublisher(Config{Topic: "t"})
		Expect(err).To(HaveOccurred())

		_, err = NewPublisher(Config{Brokers: []string{"localhost:9092"}})
		Expect(err).To(HaveOccurred())
	})

	It("builds a writer without dialing", func() {
		pub, err := NewPublisher(Config{Brokers: []string{"localhost:9092"}, Topic: "t"})
		Expect(err).NotTo(HaveOccurred())
		Expect(pub.Close()).To(Succeed())
	})

	It("writes the event as JSON keyed by session", func() {
		event := &eventstream.ExchangeCompletedEvent{
			SchemaVersion: eventstream.SchemaVersionV1,
			EventType:     eventstream.EventTypeExchangeCompleted,
			EventID:       "evt-1",
			SessionID:     "sess-1",
			Answer:        "Hello",
		}

		Expect(p.PublishExchange(context.Background(), event)).To(Succeed())
		Expect(w.msgs).To(HaveLen(1))

		msg := w.msgs[0]
		Expect(string(msg.Key)).To(Equal("sess-1"))
		Expect(msg.Headers).To(ContainElement(kafkago.Header{Key: "event_type", Value: []byte("ragtube.exchange.completed")}))

		var decoded eventstream.ExchangeCompletedEvent
		Expect(json.Unmarshal(msg.Value, &decoded)).To(Succeed())
		Expect(decoded.EventID).To(Equal("evt-1"))
		Expect(decoded.Answer).To(Equal("Hello"))
	})

	It("rejects nil events", func() {
		Expect(p.PublishExchange(context.Background(), nil)).To(MatchError(eventstream.ErrNilEvent))
		Expect(w.msgs).To(BeEmpty())
	})

	It("wraps write failures", func() {
		w.err = errors.New("leader not available")
		err := p.PublishExchange(context.Background(), &eventstream.ExchangeCompletedEvent{})
		Expect(err).To(MatchError(ContainSubstring("leader not available")))
		Expect(err.Error()).To(ContainSubstring("ragtube.exchanges"))
	})

	It("closes the writer", func() {
		Expect(p.Close()).To(Succeed())
		Expect(w.closed).To(BeTrue())
	})
})
