// Package storagetest holds the behaviors every storage.Driver must share.
// Driver packages call DriverBehaviors from their own suites.
package storagetest

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragtube/pkg/rag"
	"github.com/papercomputeco/ragtube/pkg/storage"
)

// Epoch is the base timestamp of generated messages.
var Epoch = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

// Message builds a stored message at Epoch plus offset.
func Message(id, role, text string, offset time.Duration) storage.StoredMessage {
	return storage.StoredMessage{
		ID:        id,
		Role:      role,
		Text:      text,
		Timestamp: Epoch.Add(offset),
	}
}

// Exchange returns a question and its answer backed by one document.
func Exchange(prefix, question string, offset time.Duration) []storage.StoredMessage {
	answer := Message(prefix+"-a", "assistant", "answer to "+question, offset+time.Second)
	answer.Context = []rag.SourceDocument{{
		ID:          1,
		VideoID:     "dQw4w9WgXcQ",
		Title:       "Video for " + question,
		PublishTime: "2024-01-02",
		Content:     "transcript excerpt",
	}}
	return []storage.StoredMessage{
		Message(prefix+"-q", "user", question, offset),
		answer,
	}
}

// DriverBehaviors registers the shared driver specs. newDriver is called
// before each test and the driver is closed after it.
func DriverBehaviors(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
			driver = nil
		}
	})

	Describe("PutMessages", func() {
		It("rejects an empty session id", func() {
			err := driver.PutMessages(ctx, "", Exchange("x", "q", 0))
			Expect(err).To(HaveOccurred())
		})

		It("rejects a message without an id", func() {
			err := driver.PutMessages(ctx, "s1", []storage.StoredMessage{Message("", "user", "q", 0)})
			Expect(err).To(HaveOccurred())
		})

		It("accepts an empty batch", func() {
			Expect(driver.PutMessages(ctx, "s1", nil)).To(Succeed())
		})

		It("assigns sequence numbers in order", func() {
			Expect(driver.PutMessages(ctx, "s1", Exchange("e1", "first", 0))).To(Succeed())
			Expect(driver.PutMessages(ctx, "s1", Exchange("e2", "second", time.Minute))).To(Succeed())

			msgs, err := driver.GetSession(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(4))
			for i, m := range msgs {
				Expect(m.Seq).To(Equal(i))
				Expect(m.SessionID).To(Equal("s1"))
			}
			Expect(msgs[0].Text).To(Equal("first"))
			Expect(msgs[3].Text).To(Equal("answer to second"))
		})

		It("skips messages that were already stored", func() {
			batch := Exchange("e1", "first", 0)
			Expect(driver.PutMessages(ctx, "s1", batch)).To(Succeed())
			Expect(driver.PutMessages(ctx, "s1", batch)).To(Succeed())

			msgs, err := driver.GetSession(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(2))
		})

		It("keeps sequences gapless when a batch mixes old and new messages", func() {
			first := Exchange("e1", "first", 0)
			Expect(driver.PutMessages(ctx, "s1", first[:1])).To(Succeed())
			Expect(driver.PutMessages(ctx, "s1", first)).To(Succeed())

			msgs, err := driver.GetSession(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[1].ID).To(Equal("e1-a"))
			Expect(msgs[1].Seq).To(Equal(1))
		})
	})

	Describe("GetSession", func() {
		It("returns NotFoundError for an unknown session", func() {
			_, err := driver.GetSession(ctx, "missing")
			Expect(err).To(MatchError(storage.NotFoundError{SessionID: "missing"}))
		})

		It("round-trips message fields", func() {
			batch := Exchange("e1", "what is go?", 0)
			failure := Message("e1-err", "assistant", "something broke", 2*time.Second)
			failure.IsError = true
			batch = append(batch, failure)
			Expect(driver.PutMessages(ctx, "s1", batch)).To(Succeed())

			msgs, err := driver.GetSession(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(3))

			Expect(msgs[0].Role).To(Equal("user"))
			Expect(msgs[0].Context).To(BeEmpty())
			Expect(msgs[0].Timestamp.Equal(Epoch)).To(BeTrue())

			Expect(msgs[1].Context).To(HaveLen(1))
			Expect(msgs[1].Context[0].VideoID).To(Equal("dQw4w9WgXcQ"))
			Expect(msgs[1].Context[0].PublishTime).To(Equal("2024-01-02"))
			Expect(msgs[1].IsError).To(BeFalse())

			Expect(msgs[2].IsError).To(BeTrue())
		})

		It("keeps sessions apart", func() {
			Expect(driver.PutMessages(ctx, "s1", Exchange("a", "one", 0))).To(Succeed())
			Expect(driver.PutMessages(ctx, "s2", Exchange("b", "two", 0))).To(Succeed())

			msgs, err := driver.GetSession(ctx, "s2")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].Text).To(Equal("two"))
		})
	})

	Describe("ListSessions", func() {
		It("returns an empty list when nothing is stored", func() {
			sessions, err := driver.ListSessions(ctx, storage.SessionQuery{})
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions).To(BeEmpty())
		})

		Context("with several sessions", func() {
			BeforeEach(func() {
				for i := range 3 {
					id := fmt.Sprintf("s%d", i)
					offset := time.Duration(i) * time.Hour
					Expect(driver.PutMessages(ctx, id, Exchange(id, "question "+id, offset))).To(Succeed())
				}
			})

			It("orders by most recent activity", func() {
				sessions, err := driver.ListSessions(ctx, storage.SessionQuery{})
				Expect(err).NotTo(HaveOccurred())
				Expect(sessions).To(HaveLen(3))
				Expect(sessions[0].ID).To(Equal("s2"))
				Expect(sessions[2].ID).To(Equal("s0"))
			})

			It("summarizes each session", func() {
				sessions, err := driver.ListSessions(ctx, storage.SessionQuery{Limit: 1})
				Expect(err).NotTo(HaveOccurred())
				Expect(sessions).To(HaveLen(1))

				s := sessions[0]
				Expect(s.FirstQuestion).To(Equal("question s2"))
				Expect(s.MessageCount).To(Equal(2))
				Expect(s.StartedAt.Equal(Epoch.Add(2 * time.Hour))).To(BeTrue())
				Expect(s.UpdatedAt.Equal(Epoch.Add(2*time.Hour + time.Second))).To(BeTrue())
			})

			It("pages with limit and offset", func() {
				sessions, err := driver.ListSessions(ctx, storage.SessionQuery{Limit: 1, Offset: 1})
				Expect(err).NotTo(HaveOccurred())
				Expect(sessions).To(HaveLen(1))
				Expect(sessions[0].ID).To(Equal("s1"))
			})

			It("pages with an offset alone", func() {
				sessions, err := driver.ListSessions(ctx, storage.SessionQuery{Offset: 2})
				Expect(err).NotTo(HaveOccurred())
				Expect(sessions).To(HaveLen(1))
				Expect(sessions[0].ID).To(Equal("s0"))
			})

			It("returns nothing past the end", func() {
				sessions, err := driver.ListSessions(ctx, storage.SessionQuery{Offset: 10})
				Expect(err).NotTo(HaveOccurred())
				Expect(sessions).To(BeEmpty())
			})
		})
	})
}
