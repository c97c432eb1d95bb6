package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/research-trace/internal"
	"github.com/spf13/cobra"
)

var (
	healthcheckVerbose bool
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check if research-trace can locate and decode session data",
	Long: `Check the health of research-trace by verifying:
  • Event store path resolution
  • Database schema (sessions and events tables)
  • Session count
  • Event decodability across all sessions

This command is useful for debugging store issues, especially in CI/CD environments.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(sectionStyle.Render("🔍 Research Trace Health Check"))
		fmt.Println()

		// Step 1: Resolve the store path
		fmt.Println(infoStyle.Render("Step 1: Resolving event store path..."))
		path, err := internal.ResolveStorePath(storePath)
		if err != nil {
			fmt.Println(errorStyle.Render("❌ Failed to resolve store path:"), err)
			os.Exit(1)
		}
		if !internal.StoreExists(path) {
			fmt.Println(errorStyle.Render("❌ Event store not found"))
			fmt.Printf("   Expected: %s\n", path)
			fmt.Printf("   Set %s or pass --store\n", internal.StoreEnvVar)
			os.Exit(1)
		}
		fmt.Println(successStyle.Render("✅ Event store found"))
		if healthcheckVerbose {
			fmt.Printf("   Path: %s\n", path)
		}
		fmt.Println()

		// Step 2: Open the database and check the schema
		fmt.Println(infoStyle.Render("Step 2: Checking database schema..."))
		store, err := internal.OpenStore(path)
		if err != nil {
			fmt.Println(errorStyle.Render("❌ Failed to open store:"), err)
			os.Exit(1)
		}
		defer func() { _ = store.Close() }()

		schemaOK := true
		for _, table := range []string{"sessions", "events"} {
			exists, err := internal.TableExists(store.DB(), table)
			if err != nil {
				fmt.Println(errorStyle.Render("❌ Schema check failed:"), err)
				os.Exit(1)
			}
			if exists {
				fmt.Println(successStyle.Render(fmt.Sprintf("✅ Table %q present", table)))
			} else {
				fmt.Println(errorStyle.Render(fmt.Sprintf("❌ Table %q missing", table)))
				schemaOK = false
			}
		}
		if !schemaOK {
			os.Exit(1)
		}
		fmt.Println()

		// Step 3: Load sessions
		fmt.Println(infoStyle.Render("Step 3: Loading sessions..."))
		sessions, err := store.LoadSessions()
		if err != nil {
			fmt.Println(errorStyle.Render("❌ Failed to load sessions:"), err)
			os.Exit(1)
		}
		if len(sessions) == 0 {
			fmt.Println(warningStyle.Render("⚠️  Store is reachable but records no sessions"))
			return nil
		}
		fmt.Println(successStyle.Render(fmt.Sprintf("✅ Found %d session(s)", len(sessions))))
		fmt.Println()

		// Step 4: Decode every event and report what would be skipped
		fmt.Println(infoStyle.Render("Step 4: Decoding events..."))
		obs := internal.NewCountingObserver(healthcheckVerbose)
		normalizer := internal.NewNormalizerWithObserver(obs)

		totalRecords := 0
		totalEvents := 0
		for _, session := range sessions {
			records, err := store.LoadRecords(session.ID)
			if err != nil {
				fmt.Println(warningStyle.Render(fmt.Sprintf("⚠️  Failed to load events for %s:", session.ID)), err)
				continue
			}
			unique := internal.NewDeduplicator().Deduplicate(records)
			events, _ := normalizer.NormalizeBatch(unique)
			totalRecords += len(records)
			totalEvents += len(events)
		}

		fmt.Println(successStyle.Render(fmt.Sprintf("✅ Decoded %d event(s) from %d record(s)", totalEvents, totalRecords)))
		if obs.RecordsSkipped > 0 {
			fmt.Println(warningStyle.Render(fmt.Sprintf("⚠️  %d record(s) undecodable (skipped during reconstruction)", obs.RecordsSkipped)))
		} else {
			fmt.Println(successStyle.Render("✅ No undecodable records"))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVar(&healthcheckVerbose, "detail", false, "Show detail for each check")
}
