// Package outline compiles an annotated markdown-style outline into a
// validated, transitively reduced dependency DAG of tasks.
//
// A compile is synchronous and self-contained: the task tree is built in an
// arena, linked by a fixed sequence of stages, exported and discarded.
package outline

import "time"

// Options tunes a compile. The zero value is usable.
type Options struct {
	// Now anchors year inference for partial deadlines. Zero means time.Now().
	Now time.Time
	// LookBehind is the fraction of a year a partial deadline may lie in the
	// past. Zero means DefaultLookBehind.
	LookBehind float64
}

func (o Options) resolver() DeadlineResolver {
	r := DeadlineResolver{Now: o.Now, LookBehind: o.LookBehind}
	if r.Now.IsZero() {
		r.Now = time.Now()
	}
	if r.LookBehind <= 0 {
		r.LookBehind = DefaultLookBehind
	}
	return r
}

// DeadlineWindow is the resolver's WindowKey for these options. Two compiles
// of the same text with equal windows produce the same graph.
func (o Options) DeadlineWindow() string {
	return o.resolver().WindowKey()
}

// Stage is one named transformation over the arena.
type Stage struct {
	Name string
	Run  func(*Tree) error
}

// Stages is the dependency pipeline run after attribute extraction. The
// order is load-bearing: trickle-down must see ordering and reference edges
// but not parent/child edges, and reduction needs a validated DAG.
var Stages = []Stage{
	{"order-siblings", orderSiblings},
	{"link-references", linkReferences},
	{"trickle-down", trickleDown},
	{"link-children", linkChildren},
	{"check-unique", checkUnique},
	{"check-nested-estimates", checkNestedEstimates},
	{"check-acyclic", checkAcyclic},
	{"check-deadlines", checkDeadlines},
	{"dedupe", dedupe},
	{"reduce", reduce},
}

// Parse classifies, levels and nests the task lines of text and extracts
// their attributes. No dependencies are linked.
func Parse(text string, opts Options) (*Tree, error) {
	lines := scanLines(text)

	raws := make([]string, len(lines))
	for i, ln := range lines {
		raws[i] = ln.raw
	}
	if err := attachLevels(lines, InferIndent(raws)); err != nil {
		return nil, err
	}

	tree, err := buildTree(lines)
	if err != nil {
		return nil, err
	}
	if err := extractAttributes(tree, opts.resolver()); err != nil {
		return nil, err
	}
	return tree, nil
}

// Build parses text and runs every stage, returning the finished tree.
func Build(text string, opts Options) (*Tree, error) {
	tree, err := Parse(text, opts)
	if err != nil {
		return nil, err
	}
	for _, st := range Stages {
		if err := st.Run(tree); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

// Compile turns outline text into a DAG, or a single *Error.
func Compile(text string, opts Options) (*DAG, error) {
	tree, err := Build(text, opts)
	if err != nil {
		return nil, err
	}
	return Export(tree), nil
}
