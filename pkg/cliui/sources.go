package cliui

import (
	"fmt"
	"strings"

	"github.com/papercomputeco/ragtube/pkg/rag"
	"github.com/papercomputeco/ragtube/pkg/utils"
)

// ExcerptLength is how many characters of a transcript chunk are shown.
const ExcerptLength = 200

// SourcesMarkdown renders retrieved context as a markdown list: title with
// a link to the video, publish date, and a transcript excerpt.
func SourcesMarkdown(docs []rag.SourceDocument) string {
	if len(docs) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "### Retrieved Context (%d sources)\n\n", len(docs))

	for i, doc := range docs {
		fmt.Fprintf(&b, "%d. **[%s](%s)**", i+1, escapeMarkdown(doc.Title), doc.URL())
		if doc.PublishTime != "" {
			fmt.Fprintf(&b, " · _%s_", utils.FormatDate(doc.PublishTime))
		}
		b.WriteString("\n\n")

		excerpt := strings.Join(strings.Fields(doc.Content), " ")
		if excerpt != "" {
			fmt.Fprintf(&b, "   > %s\n\n", escapeMarkdown(utils.TruncateRunes(excerpt, ExcerptLength)))
		}
	}

	return b.String()
}

// RenderSources renders SourcesMarkdown through glamour, falling back to
// the raw markdown when rendering fails.
func RenderSources(docs []rag.SourceDocument, width int) string {
	md := SourcesMarkdown(docs)
	if md == "" {
		return ""
	}
	rendered, err := RenderMarkdown(md, width)
	if err != nil {
		return md
	}
	return rendered
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"`", "\\`",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
