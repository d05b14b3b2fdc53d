package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragtube/pkg/logger"
)

// decodeLines parses JSON log output, one record per line.
func decodeLines(buf *bytes.Buffer) []map[string]any {
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		Expect(json.Unmarshal([]byte(line), &rec)).To(Succeed())
		records = append(records, rec)
	}
	return records
}

// failingHandler accepts everything and fails every write.
type failingHandler struct{ slog.Handler }

func (failingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("disk full") }

var _ = Describe("New", func() {
	var buf bytes.Buffer

	BeforeEach(func() {
		buf.Reset()
	})

	DescribeTable("writes the record in every format",
		func(format logger.Format) {
			logger.New(logger.WithWriter(&buf), logger.WithFormat(format)).
				Info("stream finished", "session_id", "s-42")

			Expect(buf.String()).To(ContainSubstring("stream finished"))
			Expect(buf.String()).To(ContainSubstring("s-42"))
		},
		Entry("text", logger.FormatText),
		Entry("pretty", logger.FormatPretty),
		Entry("json", logger.FormatJSON),
	)

	DescribeTable("hides debug records until debug is on",
		func(format logger.Format) {
			var quiet, loud bytes.Buffer
			logger.New(logger.WithWriter(&quiet), logger.WithFormat(format)).Debug("malformed line")
			logger.New(logger.WithWriter(&loud), logger.WithFormat(format), logger.WithDebug(true)).Debug("malformed line")

			Expect(quiet.String()).To(BeEmpty())
			Expect(loud.String()).To(ContainSubstring("malformed line"))
		},
		Entry("text", logger.FormatText),
		Entry("pretty", logger.FormatPretty),
		Entry("json", logger.FormatJSON),
	)

	It("keeps an explicit level when debug is off", func() {
		l := logger.New(logger.WithWriter(&buf), logger.WithLevel(slog.LevelWarn), logger.WithDebug(false))
		l.Info("ignored")
		l.Warn("kept")

		Expect(buf.String()).NotTo(ContainSubstring("ignored"))
		Expect(buf.String()).To(ContainSubstring("kept"))
	})

	It("emits one JSON object per record", func() {
		l := logger.New(logger.WithWriter(&buf), logger.WithFormat(logger.FormatJSON))
		l.Info("exchange stored", "messages", 2)
		l.With("channel_id", "UC1").WithGroup("query").Warn("slow", "ms", 900)

		records := decodeLines(&buf)
		Expect(records).To(HaveLen(2))
		Expect(records[0]["msg"]).To(Equal("exchange stored"))
		Expect(records[0]["messages"]).To(BeNumerically("==", 2))
		Expect(records[1]["channel_id"]).To(Equal("UC1"))
		Expect(records[1]["query"]).To(HaveKeyWithValue("ms", BeNumerically("==", 900)))
	})

	It("adds the source location when asked", func() {
		logger.New(logger.WithWriter(&buf), logger.WithFormat(logger.FormatJSON), logger.WithSource(true)).Info("here")

		Expect(decodeLines(&buf)[0]).To(HaveKey(slog.SourceKey))
	})
})

var _ = Describe("NewCLI", func() {
	It("enables debug only when requested", func() {
		ctx := context.Background()
		Expect(logger.NewCLI(false).Enabled(ctx, slog.LevelDebug)).To(BeFalse())
		Expect(logger.NewCLI(true).Enabled(ctx, slog.LevelDebug)).To(BeTrue())
	})
})

var _ = Describe("Nop", func() {
	It("is disabled at every level", func() {
		l := logger.Nop()
		for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
			Expect(l.Enabled(context.Background(), level)).To(BeFalse())
		}
		Expect(func() { l.With("k", "v").WithGroup("g").Error("dropped") }).NotTo(Panic())
	})
})

var _ = Describe("Tee", func() {
	It("writes each record to every logger at its own level", func() {
		var console, file bytes.Buffer
		l := logger.Tee(
			logger.New(logger.WithWriter(&console), logger.WithFormat(logger.FormatPretty)),
			logger.New(logger.WithWriter(&file), logger.WithFormat(logger.FormatJSON), logger.WithDebug(true)),
		)

		l.Debug("decoder skipped line")
		l.Info("server listening", "addr", ":8082")

		Expect(console.String()).NotTo(ContainSubstring("decoder skipped line"))
		Expect(console.String()).To(ContainSubstring("server listening"))

		records := decodeLines(&file)
		Expect(records).To(HaveLen(2))
		Expect(records[0]["msg"]).To(Equal("decoder skipped line"))
		Expect(records[1]["addr"]).To(Equal(":8082"))
	})

	It("carries attributes and groups to every logger", func() {
		var a, b bytes.Buffer
		l := logger.Tee(
			logger.New(logger.WithWriter(&a), logger.WithFormat(logger.FormatJSON)),
			logger.New(logger.WithWriter(&b), logger.WithFormat(logger.FormatJSON)),
		)

		l.With("component", "history-api").WithGroup("request").Info("served", "path", "/sessions")

		for _, buf := range []*bytes.Buffer{&a, &b} {
			rec := decodeLines(buf)[0]
			Expect(rec["component"]).To(Equal("history-api"))
			Expect(rec["request"]).To(HaveKeyWithValue("path", "/sessions"))
		}
	})

	It("still reaches later loggers when one fails", func() {
		var buf bytes.Buffer
		handler := logger.Tee(
			slog.New(failingHandler{}),
			logger.New(logger.WithWriter(&buf)),
		).Handler()

		err := handler.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "kept", 0))
		Expect(err).To(MatchError("disk full"))
		Expect(buf.String()).To(ContainSubstring("kept"))
	})

	It("skips nil loggers", func() {
		var buf bytes.Buffer
		logger.Tee(nil, logger.New(logger.WithWriter(&buf))).Info("only one")
		Expect(buf.String()).To(ContainSubstring("only one"))
	})
})
