package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/research-trace/internal"
)

// WriteGraphJSON writes the trace graph as pretty-printed JSON. Node and edge
// order is already deterministic, so the output diffs cleanly across runs.
func WriteGraphJSON(graph *internal.Graph, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(graph)
}

// WriteGraphDOT writes the trace graph in Graphviz DOT format, one subgraph
// rank per stage column.
func WriteGraphDOT(graph *internal.Graph, w io.Writer) error {
	if _, err := fmt.Fprintln(w, "digraph research_trace {"); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w, "  rankdir=LR;")
	_, _ = fmt.Fprintln(w, "  node [shape=box, fontname=\"Helvetica\"];")

	for _, node := range graph.Nodes {
		label := node.Label
		if node.Subtitle != "" {
			// %q escapes the newline into the \n DOT expects.
			label += "\n" + node.Subtitle
		}
		attrs := fmt.Sprintf("label=%q", label)
		if node.Kind == internal.NodeDimensionSummary {
			attrs += ", style=dashed"
		}
		if _, err := fmt.Fprintf(w, "  %q [%s];\n", node.ID, attrs); err != nil {
			return err
		}
	}

	for _, edge := range graph.Edges {
		if _, err := fmt.Fprintf(w, "  %q -> %q;\n", edge.SourceID, edge.TargetID); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w, "}")
	return err
}

// GraphFormat validates a graph output format name.
func GraphFormat(format string) (string, error) {
	switch strings.ToLower(format) {
	case "json":
		return "json", nil
	case "dot", "graphviz":
		return "dot", nil
	default:
		return "", fmt.Errorf("unsupported graph format: %s (supported: json, dot)", format)
	}
}
