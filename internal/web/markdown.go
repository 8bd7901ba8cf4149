package web

import (
	"bytes"
	"html"

	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
	ghtml "github.com/yuin/goldmark/renderer/html"

	"hemo-board/internal/board"
	"hemo-board/internal/model"
)

// Card text is user input: goldmark drops raw HTML unless WithUnsafe is set,
// and it is not set here.
var cardRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM, emoji.Emoji),
	goldmark.WithRendererOptions(ghtml.WithHardWraps()),
)

// cardHTML renders the card detail shown by GET /api/cards/{id}.
func cardHTML(c model.Card) string {
	src := board.CardMarkdown(c)
	var b bytes.Buffer
	if err := cardRenderer.Convert([]byte(src), &b); err != nil {
		return "<pre>" + html.EscapeString(src) + "</pre>"
	}
	return b.String()
}
