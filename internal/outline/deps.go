package outline

import (
	"fmt"
	"strings"
)

// orderSiblings chains ordered children: each depends on the ordered
// sibling before it. Unordered siblings are left alone.
func orderSiblings(tree *Tree) error {
	for _, t := range tree.Tasks {
		prev := -1
		for _, c := range t.Children {
			if !tree.Tasks[c].Ordered {
				continue
			}
			if prev >= 0 {
				tree.Tasks[c].Deps = append(tree.Tasks[c].Deps, prev)
			}
			prev = c
		}
	}
	return nil
}

// linkReferences resolves `@(...)` references against every other task's
// description. A unique exact match wins; otherwise exactly one substring
// match is required.
func linkReferences(tree *Tree) error {
	for i, t := range tree.Tasks {
		for _, ref := range t.refs {
			match, err := resolveReference(tree, i, ref)
			if err != nil {
				return err
			}
			t.Deps = append(t.Deps, match)
		}
		t.refs = nil
	}
	return nil
}

func resolveReference(tree *Tree, from int, ref string) (int, error) {
	var partial []int
	for j, other := range tree.Tasks {
		if j != from && strings.Contains(other.Description, ref) {
			partial = append(partial, j)
		}
	}

	switch {
	case len(partial) == 1:
		return partial[0], nil
	case len(partial) == 0:
		return 0, &Error{
			Kind:    ErrReference,
			Message: fmt.Sprintf("could not find task matching dependency: '%s'", ref),
			Line:    tree.Tasks[from].Line,
			Tasks:   []string{tree.Tasks[from].Description},
		}
	default:
		names := make([]string, 0, len(partial))
		for _, j := range partial {
			names = append(names, tree.Tasks[j].Description)
		}
		return 0, &Error{
			Kind: ErrReference,
			Message: fmt.Sprintf("found multiple tasks matching dependency: '%s' (%s)",
				ref, strings.Join(quoteAll(names), ", ")),
			Line:  tree.Tasks[from].Line,
			Tasks: names,
		}
	}
}

// trickleDown gives every task its parent's dependency set, top down, so a
// task requires everything required at or above its position.
func trickleDown(tree *Tree) error {
	tree.Walk(func(i int) {
		t := tree.Tasks[i]
		if t.Parent < 0 {
			return
		}
		for _, d := range tree.Tasks[t.Parent].Deps {
			if d != i {
				t.Deps = append(t.Deps, d)
			}
		}
	})
	return nil
}

// linkChildren makes a parent depend on each unordered child and on the
// last ordered child, which already depends on the rest of its sequence.
func linkChildren(tree *Tree) error {
	for _, t := range tree.Tasks {
		last := -1
		for _, c := range t.Children {
			if tree.Tasks[c].Ordered {
				last = c
				continue
			}
			t.Deps = append(t.Deps, c)
		}
		if last >= 0 {
			t.Deps = append(t.Deps, last)
		}
	}
	return nil
}

// dedupe drops repeated dependencies, keeping first occurrences.
func dedupe(tree *Tree) error {
	for _, t := range tree.Tasks {
		seen := make(map[int]bool, len(t.Deps))
		out := t.Deps[:0]
		for _, d := range t.Deps {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
		t.Deps = out
	}
	return nil
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = "'" + s + "'"
	}
	return out
}
