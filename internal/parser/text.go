package parser

import (
	"bufio"
	"io"
	"strings"
)

// TextParser handles plain outline files (.txt, .plan). Lines are kept
// one-for-one so compile errors point at the right source line.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var sb strings.Builder
	for scanner.Scan() {
		sb.WriteString(strings.TrimRight(scanner.Text(), "\r"))
		sb.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	text := sb.String()
	return &Document{
		Title: titleOf(text, baseTitle(filename)),
		Text:  text,
	}, nil
}
