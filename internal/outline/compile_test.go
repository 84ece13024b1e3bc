package outline

import (
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, text string) *DAG {
	t.Helper()
	dag, err := Compile(text, Options{Now: june})
	require.NoError(t, err)
	return dag
}

func hasEdge(dag *DAG, from, to string) bool {
	src, ok := dag.Node(from)
	if !ok {
		return false
	}
	dst, ok := dag.Node(to)
	if !ok {
		return false
	}
	for _, e := range dag.Edges {
		if e.Source == src.ID && e.Target == dst.ID {
			return true
		}
	}
	return false
}

func TestCompile_OrderedSiblingsChain(t *testing.T) {
	t.Parallel()

	dag := compile(t, "# Release\n1. A\n2. B\n3. C")

	assert.Equal(t, []string{"A"}, dag.DependenciesOf("B"))
	assert.Equal(t, []string{"B"}, dag.DependenciesOf("C"))
	assert.Equal(t, []string{"C"}, dag.DependenciesOf("Release"))
	assert.False(t, hasEdge(dag, "A", "C"), "C must not depend on A directly")
	assert.Len(t, dag.Edges, 3)
}

func TestCompile_ParentDependsOnUnorderedAndLastOrdered(t *testing.T) {
	t.Parallel()

	dag := compile(t, "# Parent\n- X\n- Y\n1. Z\n  1. Z1\n  2. Z2")

	assert.Equal(t, []string{"X", "Y", "Z"}, dag.DependenciesOf("Parent"))
	assert.Equal(t, []string{"Z2"}, dag.DependenciesOf("Z"))
	assert.Equal(t, []string{"Z1"}, dag.DependenciesOf("Z2"))
	assert.False(t, hasEdge(dag, "Z1", "Parent"))
}

func TestCompile_TrickleAndReduce(t *testing.T) {
	t.Parallel()

	dag := compile(t, "# Plan\n- Setup\n1. Phase one\n\t- Task a\n2. Phase two\n\t- Task b")

	assert.Equal(t, []string{"Setup", "Phase two"}, dag.DependenciesOf("Plan"))
	assert.Equal(t, []string{"Task b"}, dag.DependenciesOf("Phase two"))
	assert.Equal(t, []string{"Phase one"}, dag.DependenciesOf("Task b"))
	assert.Equal(t, []string{"Task a"}, dag.DependenciesOf("Phase one"))
}

func TestCompile_HeaderReferenceTricklesToItems(t *testing.T) {
	t.Parallel()

	dag := compile(t, "# Project\n## Design\n- Wireframes\n## Backend @(Design)\n- API\n- DB")

	assert.Equal(t, []string{"Design"}, dag.DependenciesOf("API"))
	assert.Equal(t, []string{"Design"}, dag.DependenciesOf("DB"))
	assert.Equal(t, []string{"API", "DB"}, dag.DependenciesOf("Backend"))
	assert.Equal(t, []string{"Backend"}, dag.DependenciesOf("Project"))
}

func TestCompile_ExactDescriptionStillAmbiguous(t *testing.T) {
	t.Parallel()

	dag, err := Compile("# Plan\n- Build\n- Build docs\n- Ship @(Build)", Options{Now: june})
	require.Error(t, err)
	assert.Nil(t, dag)

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, ErrReference, kind)
	assert.Contains(t, err.Error(), "multiple tasks")
}

func TestCompile_ExportsAttributes(t *testing.T) {
	t.Parallel()

	dag := compile(t, "# Plan\n- Write [..] [hh] [by 2024-07-01] [done]\n- Wait for review [wait .]\n- Notes")

	w, ok := dag.Node("Write")
	require.True(t, ok)
	assert.Equal(t, "work", w.Kind)
	assert.Equal(t, 2.0, w.Estimate)
	assert.InDelta(t, 0.25, w.Measurement, 1e-9)
	assert.Equal(t, "2024-07-01", w.Deadline)
	assert.True(t, w.Done)

	r, ok := dag.Node("Wait for review")
	require.True(t, ok)
	assert.Equal(t, "wait", r.Kind)
	assert.Equal(t, 0.5, r.Estimate)

	n, ok := dag.Node("Notes")
	require.True(t, ok)
	assert.Empty(t, n.Kind)
	assert.Zero(t, n.Estimate)
	assert.Empty(t, n.Deadline)
	assert.False(t, n.Done)
}

func TestCompile_PartialDeadlineNearYearEnd(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.December, 20, 9, 0, 0, 0, time.UTC)
	dag, err := Compile("# Plan\n- Ship [by 03-15]", Options{Now: now})
	require.NoError(t, err)

	n, ok := dag.Node("Ship")
	require.True(t, ok)
	assert.Equal(t, "2025-03-15", n.Deadline)
}

func TestCompile_Errors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		text      string
		wantKind  ErrorKind
		wantLine  int
		wantTasks []string
	}{
		"reference cycle": {
			text:      "# Plan\n- Alpha @(Beta)\n- Beta @(Alpha)",
			wantKind:  ErrCycle,
			wantLine:  2,
			wantTasks: []string{"Alpha", "Beta"},
		},
		"duplicate description": {
			text:      "# Plan\n- Same\n- Other\n\t- Same",
			wantKind:  ErrDuplicate,
			wantLine:  4,
			wantTasks: []string{"Same"},
		},
		"transitive deadline violation": {
			text:      "# Plan\n- Ship [by 2024-01-10] @(Middle)\n- Middle @(Docs)\n- Docs [by 2024-02-01]",
			wantKind:  ErrDeadline,
			wantLine:  2,
			wantTasks: []string{"Ship", "Docs"},
		},
		"parent due before child": {
			text:      "# Plan\n- Launch [by 2024-03-01]\n\t- Prep [by 2024-04-01]",
			wantKind:  ErrDeadline,
			wantLine:  2,
			wantTasks: []string{"Launch", "Prep"},
		},
		"nested estimate": {
			text:      "# Plan\n- Outer [..]\n\t- Inner [.]",
			wantKind:  ErrNestedEstimate,
			wantLine:  3,
			wantTasks: []string{"Inner", "Outer"},
		},
		"ambiguous reference": {
			text:      "# Plan\n- Deploy api\n- Deploy web\n- Ship @(Deploy)",
			wantKind:  ErrReference,
			wantLine:  4,
			wantTasks: []string{"Deploy api", "Deploy web"},
		},
		"missing reference": {
			text:      "# Plan\n- Ship @(Nothing)",
			wantKind:  ErrReference,
			wantLine:  2,
			wantTasks: []string{"Ship"},
		},
		"child referencing its parent": {
			text:      "# Plan\n- Parent\n\t- Child @(Parent)",
			wantKind:  ErrCycle,
			wantLine:  2,
			wantTasks: []string{"Parent", "Child"},
		},
		"bad first line": {
			text:     "- task\n# Plan",
			wantKind: ErrStructural,
			wantLine: 1,
		},
		"conflicting estimates": {
			text:     "# Plan\n- a [.] [...]",
			wantKind: ErrAnnotation,
			wantLine: 2,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			dag, err := Compile(tt.text, Options{Now: june})
			require.Error(t, err)
			assert.Nil(t, dag)

			var oe *Error
			require.ErrorAs(t, err, &oe)
			assert.Equal(t, tt.wantKind, oe.Kind, oe.Error())
			assert.Equal(t, tt.wantLine, oe.Line)
			if tt.wantTasks != nil {
				assert.Equal(t, tt.wantTasks, oe.Tasks)
			}
		})
	}
}

const sampleOutline = `# Website relaunch

Notes that are not tasks are ignored.

## Research [by 2024-06-20]
- Interview users [..] [hha]
- Audit analytics [.] [done]

## Build @(Research)
1. Design system
    - Tokens [.]
    - Components [...]
2. Pages
    - Home [..]
    - Pricing [..] @(Legal review)
3. Launch [by 2024-08-01]

## Compliance
- Legal review [wait ...]
- Read [the policy] notes
`

func TestCompile_NodeAndEdgeCounts(t *testing.T) {
	t.Parallel()

	dag := compile(t, sampleOutline)

	taskLines := 0
	for _, ln := range strings.Split(sampleOutline, "\n") {
		if k, _, _ := classify(ln); k != lineNoise {
			taskLines++
		}
	}
	assert.Len(t, dag.Nodes, taskLines)

	seen := map[Edge]bool{}
	for _, e := range dag.Edges {
		assert.NotEqual(t, e.Source, e.Target, "self edge")
		assert.False(t, seen[e], "duplicate edge %v", e)
		seen[e] = true
	}

	for i, n := range dag.Nodes {
		assert.Equal(t, i, n.ID)
	}
}

func TestCompile_RoundTripDescriptions(t *testing.T) {
	t.Parallel()

	dag := compile(t, sampleOutline)

	var b strings.Builder
	b.WriteString("# " + dag.Nodes[0].Description + "\n")
	for _, n := range dag.Nodes[1:] {
		b.WriteString("- " + n.Description + "\n")
	}
	again := compile(t, b.String())

	names := func(d *DAG) []string {
		var out []string
		for _, n := range d.Nodes {
			out = append(out, n.Description)
		}
		sort.Strings(out)
		return out
	}
	assert.Equal(t, names(dag), names(again))
}

func TestCompile_IsDeterministic(t *testing.T) {
	t.Parallel()

	first := compile(t, sampleOutline)
	for range 5 {
		assert.Equal(t, first, compile(t, sampleOutline))
	}
}

func TestStages_Order(t *testing.T) {
	t.Parallel()

	var names []string
	for _, st := range Stages {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{
		"order-siblings", "link-references", "trickle-down", "link-children",
		"check-unique", "check-nested-estimates", "check-acyclic", "check-deadlines",
		"dedupe", "reduce",
	}, names)
}

func TestParseNow(t *testing.T) {
	t.Parallel()

	d, err := ParseNow("2024-12-20")
	require.NoError(t, err)
	assert.Equal(t, "2024-12-20", d.Format(dateLayout))

	ts, err := ParseNow("2024-12-20T15:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, 15, ts.Hour())

	now, err := ParseNow("")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), now, time.Minute)

	_, err = ParseNow("next tuesday")
	assert.Error(t, err)
}
