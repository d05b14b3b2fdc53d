package ndjson_test

import (
	"bytes"
	"encoding/json"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragtube/pkg/logger"
	"github.com/papercomputeco/ragtube/pkg/ndjson"
)

const payload = `{"context":[{"id":1,"video_id":"abc","title":"Café ☕ talk","publish_time":"2024-01-02T03:04:05","content":"über 🎉"}]}
{"answer":"Hél"}

{"answer":"lo 🌍"}
   
{"answer":"!"}
`

func feedAll(dec *ndjson.Decoder, chunks [][]byte) []string {
	var out []string
	for _, c := range chunks {
		for _, msg := range dec.Feed(c) {
			out = append(out, string(msg))
		}
	}
	dec.Finish()
	return out
}

var _ = Describe("Decoder", func() {
	var expected []string

	BeforeEach(func() {
		expected = feedAll(ndjson.NewDecoder(), [][]byte{[]byte(payload)})
	})

	It("yields one value per non-blank line", func() {
		Expect(expected).To(HaveLen(4))
		Expect(expected[1]).To(Equal(`{"answer":"Hél"}`))
		Expect(expected[2]).To(Equal(`{"answer":"lo 🌍"}`))

		var ctx map[string][]map[string]any
		Expect(json.Unmarshal([]byte(expected[0]), &ctx)).To(Succeed())
		Expect(ctx["context"][0]["title"]).To(Equal("Café ☕ talk"))
	})

	It("yields the same values for every single split point", func() {
		data := []byte(payload)
		for i := 0; i <= len(data); i++ {
			got := feedAll(ndjson.NewDecoder(), splitAt(data, i))
			Expect(got).To(Equal(expected), "split at %d", i)
		}
	})

	It("yields the same values for every pair of split points", func() {
		data := []byte(payload)
		for i := 0; i <= len(data); i++ {
			for j := i; j <= len(data); j++ {
				got := feedAll(ndjson.NewDecoder(), splitAt(data, i, j))
				Expect(got).To(Equal(expected), "split at %d,%d", i, j)
			}
		}
	})

	It("yields the same values when fed one byte at a time", func() {
		data := []byte(payload)
		chunks := make([][]byte, 0, len(data))
		for i := range data {
			chunks = append(chunks, data[i:i+1])
		}
		Expect(feedAll(ndjson.NewDecoder(), chunks)).To(Equal(expected))
	})

	It("buffers an incomplete multi-byte character", func() {
		dec := ndjson.NewDecoder()
		globe := []byte("🌍")

		Expect(dec.Feed(append([]byte(`{"answer":"`), globe[:2]...))).To(BeEmpty())
		Expect(dec.Pending()).To(BeNumerically(">", 0))

		out := dec.Feed(append(globe[2:], []byte("\"}\n")...))
		Expect(out).To(HaveLen(1))
		Expect(string(out[0])).To(Equal(`{"answer":"🌍"}`))
		Expect(dec.Pending()).To(Equal(0))
	})

	It("replaces invalid UTF-8 with U+FFFD", func() {
		dec := ndjson.NewDecoder()
		out := dec.Feed([]byte("{\"answer\":\"a\xffb\"}\n"))
		Expect(out).To(HaveLen(1))
		Expect(string(out[0])).To(Equal("{\"answer\":\"a�b\"}"))
	})

	It("skips a malformed line and keeps going", func() {
		var reported []*ndjson.MalformedLineError
		dec := ndjson.NewDecoder(ndjson.WithMalformedHandler(func(e *ndjson.MalformedLineError) {
			reported = append(reported, e)
		}))

		out := dec.Feed([]byte("{\"answer\":\"a\"}\n{not json\n{\"answer\":\"b\"}\n"))
		Expect(out).To(HaveLen(2))
		Expect(string(out[0])).To(Equal(`{"answer":"a"}`))
		Expect(string(out[1])).To(Equal(`{"answer":"b"}`))

		Expect(reported).To(HaveLen(1))
		Expect(reported[0].Line).To(Equal("{not json"))
		Expect(reported[0].Error()).To(ContainSubstring("malformed ndjson line"))
	})

	It("logs malformed lines as warnings", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf), logger.WithFormat(logger.FormatJSON))
		dec := ndjson.NewDecoder(ndjson.WithLogger(l))

		dec.Feed([]byte("nope\n"))

		Expect(buf.String()).To(ContainSubstring("failed to parse ndjson line"))
		Expect(buf.String()).To(ContainSubstring(`"level":"` + slog.LevelWarn.String() + `"`))
	})

	It("never yields a trailing unterminated line", func() {
		dec := ndjson.NewDecoder()
		out := dec.Feed([]byte("{\"answer\":\"a\"}\n{\"answer\":\"b\"}"))
		Expect(out).To(HaveLen(1))

		Expect(dec.Finish()).To(Equal(len(`{"answer":"b"}`)))
		Expect(dec.Pending()).To(Equal(0))
	})

	It("does not alias returned values with later input", func() {
		dec := ndjson.NewDecoder()
		first := dec.Feed([]byte("{\"answer\":\"one\"}\n{\"ans"))
		dec.Feed([]byte("wer\":\"two\"}\n"))
		Expect(string(first[0])).To(Equal(`{"answer":"one"}`))
	})

	It("accepts CRLF line endings", func() {
		dec := ndjson.NewDecoder()
		out := dec.Feed([]byte("{\"answer\":\"a\"}\r\n\r\n"))
		Expect(out).To(HaveLen(1))
		Expect(string(out[0])).To(Equal(`{"answer":"a"}`))
	})
})
