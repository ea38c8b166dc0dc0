package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/iksnae/agentos-chat/internal"
	"github.com/iksnae/agentos-chat/internal/format"
	"github.com/spf13/cobra"
)

var (
	serverURL  string
	sessionDir string
	timeout    time.Duration
	verbose    bool
	logFile    string

	promptFlag  string
	targetFlag  string
	sessionFlag string
	outputFlag  string

	version string = "dev"
	commit  string = "unknown"
	date    string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "agentos-chat",
	Short: "Chat with AgentOS agents, teams, and workflows from the terminal",
	Long: `An interactive terminal client for AgentOS servers.

Without flags it opens a chat session: pick an agent, team, or workflow,
send messages, and watch responses stream in along with tool calls,
thinking traces, and member-agent activity. Sessions are saved locally
and can be resumed or exported later.

With --prompt and --target it runs headless: one message in, one
formatted answer out, for scripts and pipelines.

Quick Start:
  agentos-chat                                  # Interactive chat
  agentos-chat targets                          # List what the server offers
  agentos-chat -t my-agent -p "hello" -o json   # One-shot scripted run
  agentos-chat --session <id>                   # Resume a stored session

The server defaults to http://localhost:7777; override with --url or
the AGENTOS_URL environment variable.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig()
		if err != nil {
			return err
		}

		if promptFlag != "" && targetFlag == "" {
			return fmt.Errorf("--prompt requires --target (run 'agentos-chat targets' to see what the server offers)")
		}

		client := newClient(cfg)
		if promptFlag != "" {
			return runHeadless(cfg, client)
		}
		return runInteractive(cfg, client)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildConfig layers command-line flags over environment variables and
// built-in defaults
func buildConfig() (internal.Config, error) {
	cfg := internal.DefaultConfig()
	if serverURL != "" {
		cfg.BaseURL = serverURL
	}
	if sessionDir != "" {
		cfg.SessionDir = sessionDir
	}
	if timeout > 0 {
		cfg.RequestTimeout = timeout
	}
	cfg.LogFile = logFile

	if err := cfg.Validate(); err != nil {
		return internal.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newClient(cfg internal.Config) *internal.Client {
	return internal.NewClient(cfg.BaseURL,
		internal.WithTimeout(cfg.RequestTimeout),
		internal.WithIdleTimeout(cfg.StreamIdleTimeout))
}

// runHeadless performs one resolve+dispatch+format cycle. Only the
// formatted result reaches stdout; any failure exits 1.
func runHeadless(cfg internal.Config, client *internal.Client) error {
	formatter, err := format.New(outputFlag)
	if err != nil {
		return err
	}

	// A store is only needed when the caller wants the exchange recorded
	var store *internal.Store
	if sessionFlag != "" {
		dir, err := cfg.ResolveSessionDir()
		if err != nil {
			return err
		}
		store, err = internal.NewStore(dir, cfg.Autosave, cfg.SaveDebounce)
		if err != nil {
			return err
		}
	}

	result := internal.RunHeadless(context.Background(), cfg, client, store, internal.HeadlessOptions{
		Prompt:    promptFlag,
		Target:    targetFlag,
		SessionID: sessionFlag,
	})

	if err := formatter.Format(os.Stdout, result); err != nil {
		return fmt.Errorf("failed to format result: %w", err)
	}
	if !result.Success {
		os.Exit(1)
	}
	return nil
}

// runInteractive wires the store, prompt history, and controller together
// and hands the terminal to the chat UI
func runInteractive(cfg internal.Config, client *internal.Client) error {
	dir, err := cfg.ResolveSessionDir()
	if err != nil {
		return err
	}

	store, err := internal.NewStore(dir, cfg.Autosave, cfg.SaveDebounce)
	if err != nil {
		return err
	}
	if sessionFlag != "" {
		if err := store.LoadOrNew(sessionFlag); err != nil {
			return fmt.Errorf("failed to open session %s: %w", sessionFlag, err)
		}
	}

	hist, err := internal.OpenPromptHistory(filepath.Join(dir, "history.db"), cfg.HistoryLimit)
	if err != nil {
		internal.LogWarn("Prompt history disabled: %v", err)
		hist = nil
	} else {
		defer func() { _ = hist.Close() }()
	}

	controller := internal.NewController(cfg, client, store)
	return internal.RunTUI(cfg, client, controller, store, hist, targetFlag)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", "", "AgentOS server base URL (default http://localhost:7777, env AGENTOS_URL)")
	rootCmd.PersistentFlags().StringVar(&sessionDir, "session-dir", "", "Directory for stored sessions (default ~/.agentos-chat/sessions, env AGENTOS_SESSION_DIR)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Timeout for non-streaming requests (default 60s)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file while the interactive UI runs")

	rootCmd.Flags().StringVarP(&promptFlag, "prompt", "p", "", "Message to send headless (requires --target)")
	rootCmd.Flags().StringVarP(&targetFlag, "target", "t", "", "Agent, team, or workflow to talk to (id or name)")
	rootCmd.Flags().StringVarP(&sessionFlag, "session", "s", "", "Session id to resume or create")
	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", "text", "Headless output format (json, text, markdown)")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
