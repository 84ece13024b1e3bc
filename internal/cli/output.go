package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dgallion1/plandag/internal/outline"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by -o.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatText = "text"
)

func validFormat(f string) error {
	switch f {
	case FormatJSON, FormatYAML, FormatText:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want json, yaml or text)", f)
}

// writeDAG renders dag in the requested format.
func writeDAG(w io.Writer, dag *outline.DAG, format string) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(dag); err != nil {
			return err
		}
		return enc.Close()
	case FormatText:
		writeText(w, dag)
		return nil
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(dag)
	}
}

// writeText prints one line per task followed by its direct prerequisites.
func writeText(w io.Writer, dag *outline.DAG) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	prereqs := make([][]int, len(dag.Nodes))
	for _, e := range dag.Edges {
		prereqs[e.Target] = append(prereqs[e.Target], e.Source)
	}

	for _, n := range dag.Nodes {
		desc := n.Description
		if n.Done {
			desc = green(desc + " ✓")
		}
		line := fmt.Sprintf("%s %s", dim(fmt.Sprintf("%3d", n.ID)), cyan(desc))
		if attrs := attributes(n); attrs != "" {
			line += " " + dim("("+attrs+")")
		}
		fmt.Fprintln(w, line)
		for _, p := range prereqs[n.ID] {
			fmt.Fprintf(w, "      %s %s\n", dim("after"), dag.Nodes[p].Description)
		}
	}
	fmt.Fprintf(w, "%s\n", dim(fmt.Sprintf("%d tasks, %d dependencies", len(dag.Nodes), len(dag.Edges))))
}

func attributes(n outline.Node) string {
	var parts []string
	if n.Kind != "" {
		parts = append(parts, n.Kind+" "+days(n.Estimate))
	}
	if n.Measurement > 0 {
		parts = append(parts, "measured "+days(n.Measurement))
	}
	if n.Deadline != "" {
		parts = append(parts, "by "+n.Deadline)
	}
	return strings.Join(parts, ", ")
}

func days(d float64) string {
	return strconv.FormatFloat(d, 'f', -1, 64) + "d"
}
