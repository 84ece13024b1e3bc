package parser

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Heading styles become outline headers
// and the built-in list styles become list items; the style's level
// suffix ("List Bullet 2") sets the nesting depth.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	var w outlineWriter
	counters := map[int]int{}
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(para)
		if text == "" {
			continue
		}

		style := docxStyle(para)
		if level := docxHeadingLevel(style); level > 0 {
			clear(counters)
			w.heading(level, text)
			continue
		}
		if depth, ordered, ok := docxListStyle(style); ok {
			for d := range counters {
				if d > depth {
					delete(counters, d)
				}
			}
			ordinal := 0
			if ordered {
				counters[depth]++
				ordinal = counters[depth]
			}
			w.item(depth, ordinal, text)
			continue
		}
		clear(counters)
		w.line(text)
	}

	out := w.String()
	return &Document{Title: titleOf(out, baseTitle(filename)), Text: out}, nil
}

// docxStyle returns the paragraph style id lowercased with spaces removed,
// so "List Bullet 2" and "ListBullet2" compare equal.
func docxStyle(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil {
		return ""
	}
	return strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
}

func docxHeadingLevel(style string) int {
	if style == "title" {
		return 1
	}
	rest, ok := strings.CutPrefix(style, "heading")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 || n > 6 {
		return 0
	}
	return n
}

// docxListStyle maps Word's list paragraph styles to a depth and whether
// the list is numbered.
func docxListStyle(style string) (depth int, ordered, ok bool) {
	var rest string
	switch {
	case style == "listparagraph":
		return 1, false, true
	case strings.HasPrefix(style, "listbullet"):
		rest = strings.TrimPrefix(style, "listbullet")
	case strings.HasPrefix(style, "listnumber"):
		rest, ordered = strings.TrimPrefix(style, "listnumber"), true
	default:
		return 0, false, false
	}
	if rest == "" {
		return 1, ordered, true
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false, false
	}
	return n, ordered, true
}

// docxParagraphText concatenates the text runs of a paragraph. Hyperlinks
// and drawings are skipped.
func docxParagraphText(para *docx.Paragraph) string {
	var sb strings.Builder
	for _, child := range para.Children {
		if run, ok := child.(*docx.Run); ok {
			for _, rc := range run.Children {
				if t, ok := rc.(*docx.Text); ok {
					sb.WriteString(t.Text)
				}
			}
		}
	}
	return strings.TrimSpace(sb.String())
}
