package outline

import "fmt"

// buildTree nests leveled lines under the nearest preceding line one level
// up. Levels are expected to be checked already, but jumps are still
// rejected here.
func buildTree(lines []sourceLine) (*Tree, error) {
	if len(lines) == 0 {
		return nil, &Error{Kind: ErrStructural, Message: "document has no tasks"}
	}
	if lines[0].level != 0 {
		return nil, structuralError(lines[0].number, lines[0].raw, "first task must be at the top level")
	}

	tree := &Tree{}
	stack := []int{tree.add(newTask(lines[0]), -1)}

	for _, ln := range lines[1:] {
		top := tree.Tasks[stack[len(stack)-1]]
		if ln.level > top.Level+1 {
			return nil, structuralError(ln.number, ln.raw,
				fmt.Sprintf("level jumps from %d to %d", top.Level, ln.level))
		}
		for len(stack) > 0 && tree.Tasks[stack[len(stack)-1]].Level >= ln.level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			return nil, structuralError(ln.number, ln.raw, "only one top-level task is allowed")
		}
		stack = append(stack, tree.add(newTask(ln), stack[len(stack)-1]))
	}
	return tree, nil
}

func newTask(ln sourceLine) *Task {
	return &Task{
		Line:    ln.number,
		Level:   ln.level,
		Header:  ln.kind == lineHeader,
		Ordered: ln.kind == lineOrdered,
		text:    ln.body,
	}
}
