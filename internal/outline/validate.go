package outline

import (
	"fmt"
	"strings"
)

// checkUnique requires every description to be unique.
func checkUnique(tree *Tree) error {
	seen := make(map[string]int, len(tree.Tasks))
	for i, t := range tree.Tasks {
		if first, ok := seen[t.Description]; ok {
			return &Error{
				Kind: ErrDuplicate,
				Message: fmt.Sprintf("duplicate task description '%s' (first seen on line %d)",
					t.Description, tree.Tasks[first].Line),
				Line:  t.Line,
				Tasks: []string{t.Description},
			}
		}
		seen[t.Description] = i
	}
	return nil
}

// checkNestedEstimates rejects an estimated task below an estimated ancestor.
func checkNestedEstimates(tree *Tree) error {
	var visit func(i, timed int) error
	visit = func(i, timed int) error {
		t := tree.Tasks[i]
		if t.HasEstimate() {
			if timed >= 0 {
				outer := tree.Tasks[timed]
				return &Error{
					Kind: ErrNestedEstimate,
					Message: fmt.Sprintf("task '%s' has an estimate but so does its ancestor '%s'",
						t.Description, outer.Description),
					Line:  t.Line,
					Tasks: []string{t.Description, outer.Description},
				}
			}
			timed = i
		}
		for _, c := range t.Children {
			if err := visit(c, timed); err != nil {
				return err
			}
		}
		return nil
	}
	if tree.Len() == 0 {
		return nil
	}
	return visit(0, -1)
}

// checkAcyclic runs a DFS over dependencies with white/gray/black coloring;
// reaching a gray task means a cycle.
func checkAcyclic(tree *Tree) error {
	const (
		white = iota
		gray
		black
	)
	color := make([]int, tree.Len())
	parent := make([]int, tree.Len())

	var dfs func(i int) []int
	dfs = func(i int) []int {
		color[i] = gray
		for _, d := range tree.Tasks[i].Deps {
			if color[d] == gray {
				cycle := []int{d}
				for cur := i; cur != d; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, d)
				for a, b := 0, len(cycle)-1; a < b; a, b = a+1, b-1 {
					cycle[a], cycle[b] = cycle[b], cycle[a]
				}
				return cycle
			}
			if color[d] == white {
				parent[d] = i
				if cycle := dfs(d); cycle != nil {
					return cycle
				}
			}
		}
		color[i] = black
		return nil
	}

	for i := range tree.Tasks {
		if color[i] != white {
			continue
		}
		if cycle := dfs(i); cycle != nil {
			names := make([]string, len(cycle))
			for k, c := range cycle {
				names[k] = tree.Tasks[c].Description
			}
			return &Error{
				Kind: ErrCycle,
				Message: fmt.Sprintf("dependency cycle involving task '%s': %s",
					names[0], strings.Join(names, " -> ")),
				Line:  tree.Tasks[cycle[0]].Line,
				Tasks: names[:len(names)-1],
			}
		}
	}
	return nil
}

// checkDeadlines requires every transitive dependency with a deadline to be
// due strictly before the dependent task. The graph must be acyclic.
func checkDeadlines(tree *Tree) error {
	for i, t := range tree.Tasks {
		if !t.HasDeadline() {
			continue
		}
		visited := make([]bool, tree.Len())
		queue := append([]int(nil), t.Deps...)
		for len(queue) > 0 {
			d := queue[0]
			queue = queue[1:]
			if visited[d] || d == i {
				continue
			}
			visited[d] = true
			dep := tree.Tasks[d]
			if dep.HasDeadline() && !dep.Deadline.Before(t.Deadline) {
				return &Error{
					Kind: ErrDeadline,
					Message: fmt.Sprintf("task '%s' (due %s) depends on '%s' (due %s), which must be due earlier",
						t.Description, t.Deadline.Format(dateLayout),
						dep.Description, dep.Deadline.Format(dateLayout)),
					Line:  t.Line,
					Tasks: []string{t.Description, dep.Description},
				}
			}
			queue = append(queue, dep.Deps...)
		}
	}
	return nil
}
