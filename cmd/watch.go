package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/research-trace/internal"
	"github.com/spf13/cobra"
)

var (
	watchURL     string
	watchMessage string
	watchSSE     bool
)

var (
	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	streamErrStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch [session-id]",
	Short: "Follow a live chat turn from the job endpoint",
	Long: `Relay a live token stream into typed events and print them as they
arrive. With --url the turn is started against the job-invocation endpoint;
without it the stream is read from stdin. With --sse the events are re-framed
as server-sent events on stdout instead of rendered.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := ""
		if len(args) == 1 {
			sessionID = args[0]
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var upstream io.ReadCloser
		if watchURL != "" {
			body, err := turnRequestBody(sessionID, watchMessage)
			if err != nil {
				return err
			}
			upstream, err = internal.OpenTurnStream(ctx, watchURL, body)
			if err != nil {
				return fmt.Errorf("failed to open turn stream: %w", err)
			}
		} else {
			upstream = os.Stdin
		}
		defer func() { _ = upstream.Close() }()

		// Closing the upstream body on cancellation unblocks the read loop.
		go func() {
			<-ctx.Done()
			_ = upstream.Close()
		}()

		obs := internal.NewCountingObserver(verbose)
		relay := internal.NewRelayWithObserver(obs)
		events := relay.Stream(ctx, upstream)

		var failed bool
		if watchSSE {
			writer := internal.NewSSEWriter(os.Stdout, sessionID)
			for ev := range events {
				if err := writer.WriteEvent(ev); err != nil {
					return err
				}
				if _, ok := ev.(internal.RelayError); ok {
					failed = true
				}
			}
		} else {
			failed = renderRelayEvents(events)
		}

		if obs.LinesSkipped > 0 {
			internal.LogWarn("%d malformed stream line(s) skipped", obs.LinesSkipped)
		}
		if failed {
			return fmt.Errorf("turn ended with an error")
		}
		return nil
	},
}

// renderRelayEvents prints the turn to the terminal, streaming chunk text
// directly. Reports whether the stream terminated with an error event.
func renderRelayEvents(events <-chan internal.RelayEvent) bool {
	failed := false
	streaming := false

	endStream := func() {
		if streaming {
			fmt.Println()
			streaming = false
		}
	}

	for ev := range events {
		switch e := ev.(type) {
		case internal.Chunk:
			fmt.Print(e.Text)
			streaming = true
		case internal.ToolStart:
			endStream()
			fmt.Println(toolStyle.Render("⚙ " + e.Name))
		case internal.Done:
			endStream()
			summary := "✓ done"
			if e.Model != "" {
				summary += "  " + e.Model
			}
			if len(e.ToolCalls) > 0 {
				names := make([]string, 0, len(e.ToolCalls))
				for _, call := range e.ToolCalls {
					names = append(names, call.Name)
				}
				summary += "  tools: " + strings.Join(names, ", ")
			}
			fmt.Println(doneStyle.Render(summary))
		case internal.RelayError:
			endStream()
			fmt.Println(streamErrStyle.Render("✗ " + e.Message))
			failed = true
		}
	}
	endStream()
	return failed
}

// turnRequestBody builds the JSON body for the job-invocation endpoint.
func turnRequestBody(sessionID, message string) (io.Reader, error) {
	if message == "" {
		return nil, fmt.Errorf("--message is required with --url")
	}
	body := map[string]string{"message": message}
	if sessionID != "" {
		body["session_id"] = sessionID
	}
	doc, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return strings.NewReader(string(doc)), nil
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchURL, "url", "", "Job-invocation endpoint to start the turn against (default: read stream from stdin)")
	watchCmd.Flags().StringVarP(&watchMessage, "message", "m", "", "User message for the turn (required with --url)")
	watchCmd.Flags().BoolVar(&watchSSE, "sse", false, "Emit server-sent event frames instead of rendering")
}
