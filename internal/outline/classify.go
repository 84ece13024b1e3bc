package outline

import (
	"regexp"
	"strings"
)

type lineKind int

const (
	lineNoise lineKind = iota
	lineHeader
	lineOrdered
	lineUnordered
)

var (
	headerRe    = regexp.MustCompile(`^(#+)\s+(\S.*)$`)
	orderedRe   = regexp.MustCompile(`^[ \t]*[0-9]+\.\s+(\S.*)$`)
	unorderedRe = regexp.MustCompile(`^[ \t]*[*+-]\s+(\S.*)$`)
)

// sourceLine is a task line that survived classification.
type sourceLine struct {
	number int
	raw    string
	kind   lineKind
	body   string
	// headerDepth is '#' count minus one; only meaningful for headers.
	headerDepth int
	level       int
}

func classify(raw string) (lineKind, string, int) {
	if strings.TrimSpace(raw) == "" {
		return lineNoise, "", 0
	}
	if m := headerRe.FindStringSubmatch(raw); m != nil {
		return lineHeader, m[2], len(m[1]) - 1
	}
	if m := orderedRe.FindStringSubmatch(raw); m != nil {
		return lineOrdered, m[1], 0
	}
	if m := unorderedRe.FindStringSubmatch(raw); m != nil {
		return lineUnordered, m[1], 0
	}
	return lineNoise, "", 0
}

// scanLines splits text and keeps only task lines, in document order.
func scanLines(text string) []sourceLine {
	var out []sourceLine
	for i, raw := range strings.Split(text, "\n") {
		raw = strings.TrimRight(raw, "\r")
		kind, body, depth := classify(raw)
		if kind == lineNoise {
			continue
		}
		out = append(out, sourceLine{
			number:      i + 1,
			raw:         raw,
			kind:        kind,
			body:        body,
			headerDepth: depth,
		})
	}
	return out
}

// attachLevels computes each line's (header depth, list depth) pair and
// stores the combined level, rejecting jumps that cannot form a tree.
func attachLevels(lines []sourceLine, unit string) error {
	if len(lines) == 0 {
		return &Error{Kind: ErrStructural, Message: "document has no tasks; the first task must be a title (# ...)"}
	}

	var lastHeader, lastTotal int
	for i := range lines {
		ln := &lines[i]
		var header, list int

		switch {
		case i == 0:
			if ln.kind != lineHeader || ln.headerDepth != 0 {
				return structuralError(ln.number, ln.raw, "first task must be a title (# ...)")
			}
		case ln.kind == lineHeader:
			if ln.headerDepth == 0 {
				return structuralError(ln.number, ln.raw, "only one title (# ...) is allowed")
			}
			header = ln.headerDepth
		default:
			header = lastHeader
			list = countPrefix(ln.raw, unit) + 1
		}

		total := header + list
		if i > 0 && (header-lastHeader > 1 || total-lastTotal > 1) {
			return structuralError(ln.number, ln.raw, "tasks cannot be parsed into a tree, check indentation or header level")
		}
		ln.level = total
		lastHeader, lastTotal = header, total
	}
	return nil
}
