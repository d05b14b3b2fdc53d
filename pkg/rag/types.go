// Package rag is a client for the ragtube RAG backend: readiness, channel
// listing, and streamed answers over application/x-ndjson.
package rag

import (
	"strings"
	"time"

	"github.com/papercomputeco/ragtube/pkg/utils"
)

// SourceDocument is one retrieved transcript chunk backing an answer. Values
// are carried verbatim from the backend.
type SourceDocument struct {
	ID          int    `json:"id"`
	VideoID     string `json:"video_id"`
	Title       string `json:"title"`
	PublishTime string `json:"publish_time"`
	Content     string `json:"content"`
}

// Published parses PublishTime. The zero time is returned when the backend
// sent something unrecognized.
func (d SourceDocument) Published() time.Time {
	t, err := utils.ParseTimestamp(d.PublishTime)
	if err != nil {
		return time.Time{}
	}
	return t
}

// URL returns the YouTube watch link for the document's video.
func (d SourceDocument) URL() string {
	return utils.YouTubeWatchURL(d.VideoID)
}

// Channel is one indexed YouTube channel usable as a query filter.
type Channel struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Query is a single user question. An empty ChannelID means all channels.
type Query struct {
	Text      string
	ChannelID string
}

// Normalize trims surrounding whitespace from both fields.
func (q Query) Normalize() Query {
	return Query{
		Text:      strings.TrimSpace(q.Text),
		ChannelID: strings.TrimSpace(q.ChannelID),
	}
}

// ReadinessStatus is the body of GET /readiness.
type ReadinessStatus struct {
	Status string `json:"status"`
}

// OK reports whether the backend declared itself ready.
func (s *ReadinessStatus) OK() bool {
	return s != nil && s.Status == "ok"
}
