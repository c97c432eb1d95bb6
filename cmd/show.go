package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/research-trace/internal"
	"github.com/spf13/cobra"
)

var (
	showLimit   int
	showSince   string
	showNoCache bool
)

var (
	// Styles for show command
	sessionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212")).
				Padding(0, 1).
				MarginBottom(1)

	sessionMetaStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243")).
				MarginBottom(1)

	userMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 1)

	assistantMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("135")).
				Bold(true).
				Padding(0, 1)

	messageContentStyle = lipgloss.NewStyle().
				Padding(0, 2).
				MarginBottom(1)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show the reconstructed transcript for a session",
	Long:  `Rebuild and display the conversation transcript for a research session.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := args[0]

		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		transcript, err := loadTranscript(store, sessionID, !showNoCache)
		if err != nil {
			return err
		}

		displayTranscriptHeader(transcript)

		messagesToShow := transcript.Messages
		if showSince != "" {
			sinceTime, err := time.Parse(time.RFC3339, showSince)
			if err != nil {
				return fmt.Errorf("invalid --since timestamp format (expected RFC3339): %w", err)
			}
			filtered := make([]internal.Message, 0, len(messagesToShow))
			for _, msg := range messagesToShow {
				if !msg.Timestamp.Before(sinceTime) {
					filtered = append(filtered, msg)
				}
			}
			messagesToShow = filtered
		}

		totalFiltered := len(messagesToShow)
		if showLimit > 0 && showLimit < len(messagesToShow) {
			messagesToShow = messagesToShow[:showLimit]
		}

		for _, msg := range messagesToShow {
			displayMessage(msg)
		}

		if len(messagesToShow) < totalFiltered {
			fmt.Println(sessionMetaStyle.Render(fmt.Sprintf("… %d more message(s), rerun with a higher --limit", totalFiltered-len(messagesToShow))))
		}

		return nil
	},
}

// loadTranscript returns the cached transcript when the cache is current for
// the store, otherwise rebuilds from raw events and refreshes the cache entry.
func loadTranscript(store *internal.Store, sessionID string, useCache bool) (*internal.Transcript, error) {
	var cacheManager *internal.CacheManager
	if useCache {
		if cacheDir, err := internal.DefaultCacheDir(); err == nil {
			cacheManager = internal.NewCacheManager(cacheDir)
		}
	}

	if cacheManager != nil {
		if valid, _ := cacheManager.IsCacheValid(store.Path()); valid {
			if transcript, err := cacheManager.LoadTranscript(sessionID); err == nil {
				internal.LogDebug("Loaded transcript %s from cache", sessionID)
				return transcript, nil
			}
		}
	}

	info, err := store.LoadSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if info == nil {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}

	records, err := store.LoadRecords(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	transcript := internal.BuildTranscript(sessionID, info.Title, records, internal.NewNormalizer())

	if cacheManager != nil {
		if err := cacheManager.SaveTranscriptAndUpdateIndex(transcript, info.Status, store.Path()); err != nil {
			internal.LogWarn("Failed to cache transcript: %v", err)
		}
	}

	return transcript, nil
}

func displayTranscriptHeader(transcript *internal.Transcript) {
	title := transcript.Title
	if title == "" {
		title = transcript.SessionID
	}
	fmt.Println(sessionHeaderStyle.Render("💬 " + title))

	meta := []string{
		fmt.Sprintf("Session: %s", transcript.SessionID),
		fmt.Sprintf("Messages: %d", transcript.Metadata.MessageCount),
	}
	if transcript.Metadata.SkippedRecords > 0 {
		meta = append(meta, fmt.Sprintf("Skipped records: %d", transcript.Metadata.SkippedRecords))
	}
	if transcript.Metadata.CreatedAt != "" {
		meta = append(meta, fmt.Sprintf("Started: %s", transcript.Metadata.CreatedAt))
	}
	fmt.Println(sessionMetaStyle.Render(strings.Join(meta, "  •  ")))
}

func displayMessage(msg internal.Message) {
	label := "You"
	style := userMessageStyle
	if msg.Role == internal.RoleAssistant {
		label = "Assistant"
		style = assistantMessageStyle
		if msg.Model != "" {
			label = fmt.Sprintf("Assistant (%s)", msg.Model)
		}
	}

	header := style.Render(label)
	if !msg.Timestamp.IsZero() {
		header += " " + timestampStyle.Render(msg.Timestamp.Format("2006-01-02 15:04:05"))
	}
	fmt.Println(header)
	fmt.Println(messageContentStyle.Render(msg.Content))
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().IntVar(&showLimit, "limit", 0, "Limit the number of messages shown (0 = all)")
	showCmd.Flags().StringVar(&showSince, "since", "", "Only show messages at or after this RFC3339 timestamp")
	showCmd.Flags().BoolVar(&showNoCache, "no-cache", false, "Bypass the transcript cache")
}
