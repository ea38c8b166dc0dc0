package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/agentos-chat/internal"
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
	Short: "Check that the server and local storage are usable",
	Long: `Check the health of agentos-chat by verifying:
  • Configuration validity
  • Server reachability
  • Catalog availability (agents, teams, workflows)
  • Session directory writability

This command is useful for debugging connection issues before opening a chat.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(sectionStyle.Render("🔍 AgentOS Chat Health Check"))
		fmt.Println()

		// Step 1: Configuration
		fmt.Println(infoStyle.Render("Step 1: Checking configuration..."))
		cfg, err := buildConfig()
		if err != nil {
			fmt.Println(errorStyle.Render("❌ Invalid configuration:"), err)
			os.Exit(1)
		}
		fmt.Println(successStyle.Render("✅ Configuration valid"))
		if healthcheckVerbose {
			fmt.Printf("   Server URL: %s\n", cfg.BaseURL)
			fmt.Printf("   Session dir: %s\n", cfg.SessionDir)
			fmt.Printf("   Request timeout: %s\n", cfg.RequestTimeout)
			fmt.Printf("   Stream idle timeout: %s\n", cfg.StreamIdleTimeout)
		}
		fmt.Println()

		client := newClient(cfg)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		defer cancel()

		// Step 2: Server reachability
		fmt.Println(infoStyle.Render("Step 2: Checking server reachability..."))
		if err := client.Health(ctx); err != nil {
			fmt.Println(errorStyle.Render("❌ Server unreachable at " + cfg.BaseURL))
			fmt.Println()
			fmt.Println("Error details:")
			fmt.Println(err)
			fmt.Println()
			printGuidance(cfg, err)
			os.Exit(1)
		}
		fmt.Println(successStyle.Render("✅ Server is reachable"))
		fmt.Println()

		// Step 3: Catalog
		fmt.Println(infoStyle.Render("Step 3: Fetching catalog..."))
		catalog, err := client.FetchCatalog(ctx)
		catalogOK := err == nil
		if err != nil {
			fmt.Println(warningStyle.Render("⚠️  Could not fetch the full catalog:"), err)
		} else if catalog.Len() == 0 {
			fmt.Println(warningStyle.Render("⚠️  Catalog is empty (no agents, teams, or workflows)"))
		} else {
			fmt.Println(successStyle.Render(fmt.Sprintf("✅ Found %d target(s)", catalog.Len())))
			fmt.Printf("   Agents: %d, Teams: %d, Workflows: %d\n",
				len(catalog.Agents), len(catalog.Teams), len(catalog.Workflows))
			if healthcheckVerbose {
				for i, target := range catalog.All() {
					if i >= 5 {
						fmt.Printf("   ... and %d more\n", catalog.Len()-5)
						break
					}
					fmt.Printf("   [%d] %s\n", i+1, target.Describe())
				}
			}
		}
		fmt.Println()

		// Step 4: Session storage
		fmt.Println(infoStyle.Render("Step 4: Checking session storage..."))
		storageOK := true
		dir, err := cfg.ResolveSessionDir()
		if err != nil {
			storageOK = false
			fmt.Println(errorStyle.Render("❌ Session directory unusable:"), err)
		} else {
			probe, err := os.CreateTemp(dir, ".healthcheck-*")
			if err != nil {
				storageOK = false
				fmt.Println(errorStyle.Render("❌ Session directory not writable:"), err)
			} else {
				_ = probe.Close()
				_ = os.Remove(probe.Name())
				fmt.Println(successStyle.Render("✅ Session directory is writable"))
				if healthcheckVerbose {
					fmt.Printf("   Directory: %s\n", dir)
				}
				store, err := internal.NewStore(dir, false, 0)
				if err == nil {
					if infos, err := store.ListSessions(); err == nil {
						fmt.Printf("   Stored sessions: %d\n", len(infos))
					}
				}
			}
		}
		fmt.Println()

		// Summary
		fmt.Println(sectionStyle.Render("📊 Summary"))
		fmt.Println()

		switch {
		case catalogOK && catalog.Len() > 0 && storageOK:
			fmt.Println(successStyle.Render("✅ Health check passed!"))
			fmt.Println(successStyle.Render("   • Server: Reachable"))
			fmt.Println(successStyle.Render(fmt.Sprintf("   • Targets: %d available", catalog.Len())))
			fmt.Println(successStyle.Render("   • Storage: Writable"))
			return nil
		case storageOK:
			fmt.Println(warningStyle.Render("⚠️  Server reachable but nothing to talk to"))
			fmt.Println("   • The server answered but offered no usable targets")
			fmt.Println("   • Register an agent, team, or workflow and re-run")
			return nil
		default:
			fmt.Println(errorStyle.Render("❌ Health check failed"))
			fmt.Println("   • Session storage is not usable")
			fmt.Println("   • Fix the session directory (--session-dir) and re-run")
			return fmt.Errorf("health check failed: session storage unusable")
		}
	},
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVar(&healthcheckVerbose, "details", false, "Show detailed diagnostic information")
}
