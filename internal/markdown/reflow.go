// Package markdown post-processes model output for display.
package markdown

import (
	"bytes"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var (
	parserInstance goldmark.Markdown
	parserOnce     sync.Once
)

func getParser() goldmark.Markdown {
	parserOnce.Do(func() {
		parserInstance = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return parserInstance
}

// span is a byte range of the source to replace with a single space
type span struct {
	start, stop int
}

// Reflow joins the hard-wrapped lines of every paragraph with a single
// space. Paragraph separators, code blocks, tables, headings and hard line
// breaks are left exactly as written.
func Reflow(input string) string {
	if input == "" {
		return ""
	}
	source := []byte(input)
	document := getParser().Parser().Parse(text.NewReader(source))

	var edits []span
	ast.Walk(document, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindParagraph, ast.KindTextBlock:
			edits = append(edits, softBreaks(source, n.Lines())...)
			return ast.WalkSkipChildren, nil
		case ast.KindFencedCodeBlock, ast.KindCodeBlock, ast.KindHTMLBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	if len(edits) == 0 {
		return input
	}

	var out bytes.Buffer
	out.Grow(len(source))
	pos := 0
	for _, e := range edits {
		if e.start < pos {
			continue
		}
		out.Write(source[pos:e.start])
		out.WriteByte(' ')
		pos = e.stop
	}
	out.Write(source[pos:])
	return out.String()
}

// softBreaks returns the gaps between consecutive lines of a paragraph,
// from the end of one line's text to the start of the next line's text.
func softBreaks(source []byte, lines *text.Segments) []span {
	var spans []span
	for i := 0; i+1 < lines.Len(); i++ {
		cur := lines.At(i)
		next := lines.At(i + 1)

		line := bytes.TrimRight(source[cur.Start:cur.Stop], "\r\n")
		if bytes.HasSuffix(line, []byte("  ")) || bytes.HasSuffix(line, []byte("\\")) {
			continue
		}

		start := cur.Start + len(bytes.TrimRight(line, " \t"))
		stop := next.Start
		for stop < len(source) && (source[stop] == ' ' || source[stop] == '\t') {
			stop++
		}
		if start >= stop || bytes.IndexByte(source[start:stop], '\n') < 0 {
			continue
		}
		spans = append(spans, span{start: start, stop: stop})
	}
	return spans
}
