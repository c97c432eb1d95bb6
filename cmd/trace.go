package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/research-trace/internal"
	"github.com/iksnae/research-trace/internal/export"
	"github.com/spf13/cobra"
)

var (
	traceFormat string
	traceOutput string
)

var (
	stageStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	dimensionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	aspectStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Italic(true)
)

// traceCmd represents the trace command
var traceCmd = &cobra.Command{
	Use:   "trace <session-id>",
	Short: "Synthesize the research execution graph for a session",
	Long: `Synthesize the map-reduce execution graph for a research session from
its recorded events and render it as a text summary, JSON, or Graphviz DOT.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := args[0]

		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		records, err := store.LoadRecords(sessionID)
		if err != nil {
			return fmt.Errorf("failed to load events: %w", err)
		}
		if len(records) == 0 {
			return fmt.Errorf("no events recorded for session %s", sessionID)
		}

		obs := internal.NewCountingObserver(verbose)
		normalizer := internal.NewNormalizerWithObserver(obs)
		unique := internal.NewDeduplicator().Deduplicate(records)
		events, _ := normalizer.NormalizeBatch(unique)

		graph, err := internal.Synthesize(events, internal.ManifestFromEvents(events))
		if err != nil {
			return fmt.Errorf("failed to synthesize graph: %w", err)
		}

		if obs.RecordsSkipped > 0 {
			internal.LogWarn("%d record(s) could not be decoded and were skipped", obs.RecordsSkipped)
		}

		if traceFormat == "" || traceFormat == "text" {
			displayGraphSummary(sessionID, graph)
			return nil
		}

		format, err := export.GraphFormat(traceFormat)
		if err != nil {
			return err
		}

		out := os.Stdout
		if traceOutput != "" {
			f, err := os.Create(traceOutput)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer func() { _ = f.Close() }()
			out = f
		}

		if format == "dot" {
			return export.WriteGraphDOT(graph, out)
		}
		return export.WriteGraphJSON(graph, out)
	},
}

func displayGraphSummary(sessionID string, graph *internal.Graph) {
	fmt.Println(headerStyle.Render(fmt.Sprintf("🔬 Research trace for %s", sessionID)))
	fmt.Println()

	if start := graph.NodesOfKind(internal.NodeResearchStart); len(start) > 0 {
		line := stageStyle.Render("Start")
		if start[0].Subtitle != "" {
			line += "  " + aspectStyle.Render(start[0].Subtitle)
		}
		fmt.Println(line)
	}
	if refs := graph.NodesOfKind(internal.NodeReferences); len(refs) > 0 && refs[0].Subtitle != "" {
		fmt.Println(stageStyle.Render("References") + "  " + aspectStyle.Render(refs[0].Subtitle))
	}

	dims := graph.NodesOfKind(internal.NodeDimensionStart)
	for _, dim := range dims {
		fmt.Println()
		fmt.Println(dimensionStyle.Render(dim.Label) + "  " + idStyle.Render(dim.Subtitle))

		prefix := "aspect/" + strings.TrimPrefix(dim.ID, "dimension/") + "/"
		for _, node := range graph.NodesOfKind(internal.NodeAspectResearch) {
			if strings.HasPrefix(node.ID, prefix) {
				fmt.Println("  • " + aspectStyle.Render(node.Label))
			}
		}

		summaryID := "summary/" + strings.TrimPrefix(dim.ID, "dimension/")
		for _, node := range graph.Nodes {
			if node.ID != summaryID {
				continue
			}
			if node.Kind == internal.NodeDimensionDocument {
				fmt.Println("  ⇒ " + stageStyle.Render("document") + "  " + idStyle.Render(node.Subtitle))
			} else {
				fmt.Println("  ⇒ " + pendingStyle.Render("summary pending ("+node.Subtitle+")"))
			}
		}
	}

	fmt.Println()
	if complete := graph.NodesOfKind(internal.NodeResearchComplete); len(complete) > 0 {
		fmt.Println(stageStyle.Render("Complete"))
	} else {
		fmt.Println(pendingStyle.Render("Run still in flight"))
	}
	fmt.Println(idStyle.Render(fmt.Sprintf("%d node(s), %d edge(s)", len(graph.Nodes), len(graph.Edges))))
}

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.Flags().StringVarP(&traceFormat, "format", "f", "text", "Output format: text, json, dot")
	traceCmd.Flags().StringVarP(&traceOutput, "output", "o", "", "Write output to file instead of stdout")
}
