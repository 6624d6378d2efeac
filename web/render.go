// ABOUTME: Markdown rendering for rule descriptions shown in the reference panel.
// ABOUTME: Falls back to the raw text when conversion fails.

package web

import (
	"bytes"
	"log"

	"github.com/yuin/goldmark"
)

// RenderMarkdown converts a markdown string to HTML.
func RenderMarkdown(source string) string {
	md := goldmark.New()
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		log.Printf("component=web action=markdown_render_failed err=%v", err)
		return source
	}
	return buf.String()
}
