// Package export renders a stored thread into one of the supported
// output formats. Renderers are pure functions of the thread record.
package export

import (
	"encoding/json/v2"
	"fmt"
	"strings"

	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/errors"
)

// Format identifies an export output format.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a format string from an API request.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatMarkdown:
		return FormatMarkdown, nil
	default:
		return "", errors.Validationf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type for a format's rendered output.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Extension returns the file extension for a format's rendered output.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}

// Render produces the thread in the given format.
func Render(t *domain.Thread, format Format) (string, error) {
	switch format {
	case FormatText:
		return renderText(t), nil
	case FormatJSON:
		return renderJSON(t)
	case FormatMarkdown:
		return renderMarkdown(t), nil
	default:
		return "", errors.Validationf("unsupported export format %q", string(format))
	}
}

func renderText(t *domain.Thread) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Thread by %s (@%s)\n", t.AuthorName, t.AuthorUsername)
	fmt.Fprintf(&b, "Saved: %s\n", t.SavedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "URL: %s\n", t.URL)
	b.WriteString("\n")

	for i, p := range t.Posts {
		fmt.Fprintf(&b, "%d/%d\n%s\n", i+1, len(t.Posts), p.Text)
		if len(p.Links) > 0 {
			fmt.Fprintf(&b, "Links: %s\n", strings.Join(p.Links, ", "))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Likes: %d | Retweets: %d | Replies: %d\n",
		t.Metadata.Likes, t.Metadata.Retweets, t.Metadata.Replies)
	return b.String()
}

func renderJSON(t *domain.Thread) (string, error) {
	data, err := json.Marshal(t, json.Deterministic(true))
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "marshaling thread for export")
	}
	return string(data), nil
}

func renderMarkdown(t *domain.Thread) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Thread by %s\n\n", t.AuthorName)
	fmt.Fprintf(&b, "**Author:** [@%s](%s)  \n", t.AuthorUsername, t.URL)
	fmt.Fprintf(&b, "**Saved:** %s\n\n", t.SavedAt.Format("2006-01-02 15:04"))

	if len(t.Tags) > 0 {
		fmt.Fprintf(&b, "**Tags:** %s\n\n", strings.Join(t.Tags, ", "))
	}

	b.WriteString("---\n\n")

	for i, p := range t.Posts {
		fmt.Fprintf(&b, "### %d/%d\n\n%s\n\n", i+1, len(t.Posts), p.Text)
		for _, m := range p.Media {
			fmt.Fprintf(&b, "![media](%s)\n\n", m)
		}
		for _, l := range p.Links {
			fmt.Fprintf(&b, "[%s](%s)\n\n", l, l)
		}
	}

	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "*%d likes · %d retweets · %d replies*\n",
		t.Metadata.Likes, t.Metadata.Retweets, t.Metadata.Replies)
	return b.String()
}
