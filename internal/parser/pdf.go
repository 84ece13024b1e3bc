package parser

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser handles PDF exports of outlines. Pages are read with
// ledongthuc/pdf, falling back to pdftotext when enabled. Page breaks are
// dropped so an outline may continue across pages, and bullet glyphs are
// turned back into "-" markers.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	pages, err := pdfPages(data)
	if (err != nil || blank(pages)) && p.FallbackPdftotext {
		var text string
		if text, err = pdftotext(data); err == nil {
			pages = strings.Split(text, "\f")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	out := joinPages(strings.Join(pages, "\f"))
	return &Document{Title: titleOf(out, baseTitle(filename)), Text: out}, nil
}

// pdfPages returns the plain text of each non-empty page.
func pdfPages(data []byte) ([]string, error) {
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// pdftotext shells out to poppler, which needs a file path.
func pdftotext(data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "plandag-pdf-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	out, err := exec.Command("pdftotext", "-layout", tmp.Name(), "-").Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}

func blank(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}

// bulletGlyphs are list markers PDF renderers emit in place of "-".
var bulletGlyphs = []string{"•", "◦", "▪", "‣"}

// joinPages replaces page separators with line breaks, drops blank lines
// and trailing whitespace, and rewrites leading bullet glyphs as "-".
func joinPages(text string) string {
	var sb strings.Builder
	for _, page := range strings.Split(text, "\f") {
		for _, line := range strings.Split(page, "\n") {
			line = strings.TrimRight(line, " \t\r")
			if line == "" {
				continue
			}
			sb.WriteString(normalizeBullet(line))
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func normalizeBullet(line string) string {
	body := strings.TrimLeft(line, " \t")
	indent := line[:len(line)-len(body)]
	for _, g := range bulletGlyphs {
		if rest, ok := strings.CutPrefix(body, g); ok {
			return indent + "-" + rest
		}
	}
	return line
}
