package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// PlanFenceLanguages are the info strings that mark a fenced code block as
// the plan outline inside a larger Markdown file.
var PlanFenceLanguages = map[string]bool{
	"plan":    true,
	"outline": true,
}

// MarkdownParser handles Markdown files using goldmark. A fenced block
// tagged `plan` is used as the outline when present; otherwise the whole
// file is, since the outline syntax is itself Markdown.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	var fence *ast.FencedCodeBlock
	var heading string
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.FencedCodeBlock:
			lang := strings.ToLower(string(node.Language(src)))
			if fence == nil && PlanFenceLanguages[lang] {
				fence = node
			}
			return ast.WalkSkipChildren, nil
		case *ast.Heading:
			if heading == "" && node.Level == 1 {
				heading = extractText(node, src)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}

	if fence != nil {
		var buf bytes.Buffer
		lines := fence.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		out := buf.String()
		return &Document{Title: titleOf(out, baseTitle(filename)), Text: out}, nil
	}

	title := heading
	if title == "" {
		title = baseTitle(filename)
	}
	return &Document{
		Title: title,
		Text:  strings.ReplaceAll(string(src), "\r\n", "\n"),
	}, nil
}

// extractText gets the text content of a goldmark AST node.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		} else {
			buf.WriteString(extractText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
