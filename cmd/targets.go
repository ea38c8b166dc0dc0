package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/agentos-chat/internal"
	"github.com/spf13/cobra"
)

var (
	// Styles shared by the listing commands
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Italic(true)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))
)

// targetsCmd represents the targets command
var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List the agents, teams, and workflows the server offers",
	Long: `Query the server's catalog and list every target a message can be
sent to. Use a target's id (or any unique part of its name) with the
--target flag or the /target command in interactive mode.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig()
		if err != nil {
			return err
		}
		client := newClient(cfg)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		defer cancel()

		var catalog internal.Catalog
		err = internal.ShowProgress(ctx, fmt.Sprintf("Fetching catalog from %s", cfg.BaseURL), func() error {
			var fetchErr error
			catalog, fetchErr = client.FetchCatalog(ctx)
			return fetchErr
		})
		if err != nil {
			printGuidance(cfg, err)
			return fmt.Errorf("failed to fetch catalog: %w", err)
		}

		displayCatalog(catalog)
		return nil
	},
}

// printGuidance surfaces the classified fix-it hints on stderr; the short
// error still travels the normal cobra path
func printGuidance(cfg internal.Config, err error) {
	kind := internal.ClassifyTransportError(err)
	guidance := internal.ErrorGuidance(kind, cfg.BaseURL)
	fmt.Fprintln(os.Stderr, internal.FormatGuidance(guidance, err))
}

func displayCatalog(catalog internal.Catalog) {
	if catalog.Len() == 0 {
		fmt.Println(headerStyle.Render("📋 The server offers no targets"))
		return
	}

	header := headerStyle.Render(fmt.Sprintf("📋 Found %d target(s)", catalog.Len()))
	fmt.Println(header)
	fmt.Println()

	// Use tabwriter for aligned columns with better spacing
	w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', tabwriter.AlignRight)

	_, _ = fmt.Fprintln(w, titleStyle.Render("Kind")+"\t"+titleStyle.Render("ID")+"\t"+titleStyle.Render("Name")+"\t")
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 80))

	for _, target := range catalog.All() {
		name := target.Name
		if name == "" {
			name = "Untitled"
		}
		name = nameStyle.Render(internal.EllipsizeWidth(name, 50))

		kind := kindStyle.Render(string(target.Kind))
		id := idStyle.Render(internal.EllipsizeWidth(target.ID, 36))

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t\n", kind, id, name)
	}

	_ = w.Flush()
	fmt.Println()
	first := catalog.All()[0]
	fmt.Println(idStyle.Render("💡 Tip: talk to one with `agentos-chat -t ") +
		lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Render(first.ID) +
		idStyle.Render(" -p \"hello\"`"))
}

func init() {
	rootCmd.AddCommand(targetsCmd)
}
