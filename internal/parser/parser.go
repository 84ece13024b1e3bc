package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Document is outline text recovered from a source file, ready to compile.
type Document struct {
	Title string // First title heading, or the filename without extension
	Text  string // Outline text, one task per line
}

// Parser converts raw document bytes into outline text.
type Parser interface {
	Parse(r io.Reader, filename string) (*Document, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".plan":     true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// Options tunes parsers that shell out or guess.
type Options struct {
	// FallbackPdftotext retries PDF extraction with the pdftotext binary.
	FallbackPdftotext bool
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt", ".plan":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.FallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %q", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// baseTitle strips the directory and extension from a filename.
func baseTitle(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// titleOf returns the text of the first "# " line, or fallback.
func titleOf(text, fallback string) string {
	for _, line := range strings.Split(text, "\n") {
		if rest, ok := strings.CutPrefix(line, "# "); ok {
			if t := strings.TrimSpace(rest); t != "" {
				return t
			}
		}
	}
	return fallback
}

// outlineWriter accumulates outline lines.
type outlineWriter struct {
	sb strings.Builder
}

func (w *outlineWriter) heading(level int, text string) {
	if level < 1 {
		level = 1
	}
	w.line(strings.Repeat("#", level) + " " + text)
}

// item writes a list item at the given 1-based list depth. ordinal is the
// item number for ordered lists and 0 for bullets.
func (w *outlineWriter) item(depth, ordinal int, text string) {
	if depth < 1 {
		depth = 1
	}
	marker := "-"
	if ordinal > 0 {
		marker = fmt.Sprintf("%d.", ordinal)
	}
	w.line(strings.Repeat("\t", depth-1) + marker + " " + text)
}

func (w *outlineWriter) line(s string) {
	s = strings.TrimRight(s, " \t")
	if s == "" {
		return
	}
	w.sb.WriteString(s)
	w.sb.WriteByte('\n')
}

func (w *outlineWriter) String() string {
	return w.sb.String()
}
