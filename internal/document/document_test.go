package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_Skeleton(t *testing.T) {
	doc := Wrap("<h1>Title</h1><p>Body</p>")

	assert.True(t, strings.HasPrefix(doc, "<!DOCTYPE html>"))
	assert.Contains(t, doc, `<meta charset="UTF-8">`)
	assert.Contains(t, doc, "<title>Exported Document</title>")
	assert.Contains(t, doc, "<body>\n<h1>Title</h1><p>Body</p>\n</body>")
	assert.Less(t, strings.Index(doc, "</head>"), strings.Index(doc, "<body>"))
}

func TestWrap_BodyIsVerbatim(t *testing.T) {
	body := "<p>unclosed <b>tag & 日本語"
	assert.Contains(t, Wrap(body), body)
	assert.Contains(t, Wrap(""), "<body>\n\n</body>")
}

func TestStylesheet_Rules(t *testing.T) {
	css := Stylesheet()
	for _, rule := range []string{
		"margin: 1cm;",
		`font-family: "Noto Sans", "Noto Sans CJK SC", sans-serif;`,
		"line-height: 1.5;",
		"background-color: #f5f5f5;",
		"border-left: 3px solid #ccc;",
		"max-width: 100%;",
	} {
		assert.Contains(t, css, rule)
	}
	assert.Contains(t, Wrap("x"), css)
}
