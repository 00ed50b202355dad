// Package document builds the printable HTML document handed to the
// renderer: a fixed skeleton with a UTF-8 charset, a static title and the
// default stylesheet, around caller-supplied body markup.
package document

import (
	_ "embed"
	"strings"
)

// Title is the static <title> of every wrapped document.
const Title = "Exported Document"

//go:embed stylesheet.css
var stylesheet string

// Stylesheet returns the fixed CSS applied to every wrapped document.
func Stylesheet() string {
	return stylesheet
}

// Wrap places body inside the document skeleton. The body is inserted
// verbatim; malformed markup is left for the renderer to deal with.
func Wrap(body string) string {
	var b strings.Builder
	b.Grow(len(body) + len(stylesheet) + 256)
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	b.WriteString("<meta charset=\"UTF-8\">\n")
	b.WriteString("<title>" + Title + "</title>\n")
	b.WriteString("<style>\n")
	b.WriteString(stylesheet)
	b.WriteString("</style>\n</head>\n<body>\n")
	b.WriteString(body)
	b.WriteString("\n</body>\n</html>\n")
	return b.String()
}
