package outline

import "time"

// Kind says whether a task is active effort, passive waiting, or a label.
type Kind int

const (
	KindNone Kind = iota
	KindWork
	KindWait
)

func (k Kind) String() string {
	switch k {
	case KindWork:
		return "work"
	case KindWait:
		return "wait"
	default:
		return "none"
	}
}

// Task is one outline item. Tree and dependency relations are indices into
// the owning Tree's arena.
type Task struct {
	Line    int
	Level   int
	Header  bool
	Ordered bool

	Description string
	Kind        Kind
	// Estimate and Measurement are in days; zero means absent.
	Estimate    float64
	Measurement float64
	Deadline    time.Time
	Done        bool

	Parent   int
	Children []int
	Deps     []int

	text string
	refs []string
}

// HasEstimate reports whether the task carries a planned duration.
func (t *Task) HasEstimate() bool {
	return t.Kind != KindNone
}

// HasDeadline reports whether the task carries a deadline.
func (t *Task) HasDeadline() bool {
	return !t.Deadline.IsZero()
}

// Tree is the arena for one compile. Index 0 is the root.
type Tree struct {
	Tasks []*Task
}

func (tr *Tree) add(t *Task, parent int) int {
	idx := len(tr.Tasks)
	t.Parent = parent
	tr.Tasks = append(tr.Tasks, t)
	if parent >= 0 {
		p := tr.Tasks[parent]
		p.Children = append(p.Children, idx)
	}
	return idx
}

// Walk visits task indices in pre-order starting at the root.
func (tr *Tree) Walk(fn func(idx int)) {
	if len(tr.Tasks) == 0 {
		return
	}
	var visit func(int)
	visit = func(i int) {
		fn(i)
		for _, c := range tr.Tasks[i].Children {
			visit(c)
		}
	}
	visit(0)
}

// Len returns the number of tasks.
func (tr *Tree) Len() int {
	return len(tr.Tasks)
}
