package outline

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// ParseNow reads a reference time given as YYYY-MM-DD or RFC 3339. An
// empty string means the current time.
func ParseNow(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	if t, err := time.ParseInLocation(dateLayout, s, time.Local); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}

// DAG is the flat node/edge form handed to a renderer.
type DAG struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Node carries only the attributes a task actually has.
type Node struct {
	ID          int     `json:"id" yaml:"id"`
	Description string  `json:"description" yaml:"description"`
	Kind        string  `json:"kind,omitempty" yaml:"kind,omitempty"`
	Estimate    float64 `json:"estimate,omitempty" yaml:"estimate,omitempty"`
	Measurement float64 `json:"measurement,omitempty" yaml:"measurement,omitempty"`
	Deadline    string  `json:"deadline,omitempty" yaml:"deadline,omitempty"`
	Done        bool    `json:"done,omitempty" yaml:"done,omitempty"`
}

// Edge points from a prerequisite (Source) to the task that depends on it
// (Target).
type Edge struct {
	Source int `json:"source" yaml:"source"`
	Target int `json:"target" yaml:"target"`
}

// Export assigns pre-order ids and flattens the tree.
func Export(tree *Tree) *DAG {
	ids := make([]int, tree.Len())
	order := make([]int, 0, tree.Len())
	tree.Walk(func(i int) {
		ids[i] = len(order)
		order = append(order, i)
	})

	dag := &DAG{
		Nodes: make([]Node, 0, len(order)),
		Edges: []Edge{},
	}
	for _, i := range order {
		t := tree.Tasks[i]
		n := Node{
			ID:          ids[i],
			Description: t.Description,
			Measurement: t.Measurement,
			Done:        t.Done,
		}
		if t.HasEstimate() {
			n.Kind = t.Kind.String()
			n.Estimate = t.Estimate
		}
		if t.HasDeadline() {
			n.Deadline = t.Deadline.Format(dateLayout)
		}
		dag.Nodes = append(dag.Nodes, n)

		for _, d := range t.Deps {
			dag.Edges = append(dag.Edges, Edge{Source: ids[d], Target: ids[i]})
		}
	}
	return dag
}

// Node returns the node with the given description, if any.
func (d *DAG) Node(description string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.Description == description {
			return n, true
		}
	}
	return Node{}, false
}

// DependenciesOf returns the descriptions a node directly depends on, in
// edge order.
func (d *DAG) DependenciesOf(description string) []string {
	n, ok := d.Node(description)
	if !ok {
		return nil
	}
	var out []string
	for _, e := range d.Edges {
		if e.Target == n.ID {
			out = append(out, d.Nodes[e.Source].Description)
		}
	}
	return out
}
