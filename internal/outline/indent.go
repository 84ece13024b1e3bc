package outline

import "strings"

// DefaultIndent is used when a document gives no usable indentation signal.
const DefaultIndent = "\t"

const whitespace = " \t"

// InferIndent determines the whitespace unit a document uses for nested list
// levels: the most common leading whitespace character, repeated by the gcd
// of per-line prefix counts of that character.
func InferIndent(lines []string) string {
	if len(lines) <= 1 {
		return DefaultIndent
	}

	var runs strings.Builder
	for _, l := range lines {
		runs.WriteString(leadingWhitespace(l))
	}
	ch, ok := modeByte(runs.String())
	if !ok {
		return DefaultIndent
	}

	unit := string(ch)
	g := 0
	for _, l := range lines {
		g = gcd(g, countPrefix(l, unit))
	}
	if g == 0 {
		return DefaultIndent
	}
	return strings.Repeat(unit, g)
}

func leadingWhitespace(line string) string {
	i := 0
	for i < len(line) && strings.IndexByte(whitespace, line[i]) >= 0 {
		i++
	}
	return line[:i]
}

// modeByte returns the most frequent byte, preferring the earliest seen on ties.
func modeByte(s string) (byte, bool) {
	if s == "" {
		return 0, false
	}
	counts := make(map[byte]int)
	var order []byte
	for i := 0; i < len(s); i++ {
		if counts[s[i]] == 0 {
			order = append(order, s[i])
		}
		counts[s[i]]++
	}
	best := order[0]
	for _, c := range order[1:] {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best, true
}

// countPrefix counts how many times unit repeats at the start of line.
func countPrefix(line, unit string) int {
	if unit == "" {
		return 0
	}
	n := 0
	for strings.HasPrefix(line, unit) {
		n++
		line = line[len(unit):]
	}
	return n
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
