package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/agentos-chat/internal"
	"github.com/spf13/cobra"
)

// sessionsCmd represents the sessions command
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored chat sessions",
	Long: `List every session saved under the session directory, newest first.

Resume one with 'agentos-chat --session <id>' or export it with
'agentos-chat export --session <id>'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig()
		if err != nil {
			return err
		}
		dir, err := cfg.ResolveSessionDir()
		if err != nil {
			return err
		}

		store, err := internal.NewStore(dir, false, 0)
		if err != nil {
			return fmt.Errorf("failed to open session directory: %w", err)
		}
		infos, err := store.ListSessions()
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}

		displaySessions(infos, dir)
		return nil
	},
}

func displaySessions(infos []internal.SessionInfo, dir string) {
	if len(infos) == 0 {
		fmt.Println(headerStyle.Render("📋 No sessions found"))
		fmt.Println(idStyle.Render("Sessions are saved to " + dir + " as you chat."))
		return
	}

	header := headerStyle.Render(fmt.Sprintf("📋 Found %d session(s)", len(infos)))
	fmt.Println(header)
	fmt.Println()

	// Use tabwriter for aligned columns with better spacing
	w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', tabwriter.AlignRight)

	_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Messages")+"\t"+titleStyle.Render("Updated")+"\t"+titleStyle.Render("Last Target")+"\t")
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 100))

	for _, info := range infos {
		id := idStyle.Render(info.ID)

		// Sessions missing from the index have no known count
		msgCount := dateStyle.Render("—")
		if info.MessageCount >= 0 {
			msgCount = countStyle.Render(strconv.Itoa(info.MessageCount))
		}

		updated := dateStyle.Render("—")
		if !info.UpdatedAt.IsZero() {
			updated = dateStyle.Render(relativeDate(info.UpdatedAt))
		}

		target := dateStyle.Render("—")
		if info.LastTarget != "" {
			target = kindStyle.Render(internal.EllipsizeWidth(info.LastTarget, 40))
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", id, msgCount, updated, target)
	}

	_ = w.Flush()
	fmt.Println()
	fmt.Println(idStyle.Render("💡 Tip: resume one with `agentos-chat --session ") +
		lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Render(infos[0].ID) +
		idStyle.Render("`"))
}

// relativeDate renders a timestamp the way the listing tables expect:
// recent times stay short, older ones get more of the date
func relativeDate(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)
	switch {
	case diff < 24*time.Hour:
		return t.Format("Today 15:04")
	case diff < 7*24*time.Hour:
		return t.Format("Mon 15:04")
	case diff < 365*24*time.Hour:
		return t.Format("Jan 02 15:04")
	default:
		return t.Format("2006-01-02")
	}
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}
