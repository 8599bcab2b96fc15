package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ZaguanLabs/corelyn/internal/chat"
	"github.com/ZaguanLabs/corelyn/internal/config"
	corerrors "github.com/ZaguanLabs/corelyn/internal/errors"
	"github.com/ZaguanLabs/corelyn/internal/export"
	"github.com/ZaguanLabs/corelyn/internal/logging"
	"github.com/ZaguanLabs/corelyn/internal/markdown"
	"github.com/ZaguanLabs/corelyn/internal/storage"
	"github.com/ZaguanLabs/corelyn/internal/stream"
	"github.com/ZaguanLabs/corelyn/internal/trigger"
	"github.com/ZaguanLabs/corelyn/internal/tui"
	"github.com/ZaguanLabs/corelyn/internal/ui"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	// Global flags
	configPath string
	plain      bool
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "corelyn",
	Short: "Corelyn - terminal chat with tool commands and reply triggers",
	Long: `Corelyn is a terminal chat client for OpenAI-compatible and Anthropic APIs.

Assistant replies may carry tool commands (<tool:name args>body</tool> or
@@name args) which are executed locally, and user-defined trigger rules run
small Lua actions whenever a reply matches.

Run without arguments to start the interactive chat interface.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		corerrors.SetErrorSecurityLevel(corerrors.LevelForLogging(cfg.Logging.Level))

		logger, err = logging.New(logging.Options{
			Level:   cfg.Logging.Level,
			File:    cfg.Logging.File,
			Verbose: verbose,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if plain || !ui.IsTerminal(os.Stdout) {
			return runLineMode(cmd.Context())
		}
		return runInteractive(cmd.Context())
	},
}

var askHTML bool

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Send one message in a new chat and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, logger, markdown.ToHTML, stream.WithDelay(0))
		if err != nil {
			return err
		}
		defer a.Close()

		a.host.OnAlert = func(text string) { fmt.Fprintln(os.Stderr, "🔔 "+text) }
		a.host.OnToast = func(_ trigger.Level, text string) { fmt.Fprintln(os.Stderr, "⚡ "+text) }

		ex, err := a.controller.Send(ctx, a.host, strings.Join(args, " "), nil)
		if err != nil {
			return err
		}
		if askHTML {
			fmt.Println(ex.Frame)
			return nil
		}
		fmt.Println(ex.Canonical)
		for _, f := range ex.Feedback {
			fmt.Println()
			fmt.Println(f.Content)
		}
		return nil
	},
}

var listLimit int

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"chats"},
	Short:   "List saved chats",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer store.Close()

		chats, err := store.ListSessions(cmd.Context(), listLimit)
		if err != nil {
			return fmt.Errorf("failed to list chats: %w", err)
		}
		if len(chats) == 0 {
			fmt.Println("No saved chats found.")
			return nil
		}

		fmt.Println("Saved Chats:")
		fmt.Println("============")
		for _, c := range chats {
			fmt.Printf("#%d: %s\n", c.ID, c.Name)
			fmt.Printf("     %d messages • Last updated %s\n", c.MessageCount, formatRelative(c.UpdatedAt))
		}
		return nil
	},
}

var loadCmd = &cobra.Command{
	Use:   "load <id>",
	Short: "Print a saved chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		transcript, err := loadTranscript(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		palette := ui.Palette{Enabled: ui.IsTerminal(os.Stdout)}
		width := ui.TerminalWidth()
		fmt.Printf("Chat #%d: %s\n", transcript.Summary.ID, transcript.Summary.Name)
		fmt.Printf("%d messages • Created %s\n", len(transcript.Messages), transcript.Summary.CreatedAt.Local().Format("2006-01-02 15:04"))
		for _, m := range transcript.Messages {
			fmt.Println()
			fmt.Println(palette.MessageHeader(m.Role, m.CreatedAt, width))
			fmt.Println(m.Content)
		}
		return nil
	},
}

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Write a saved chat as an HTML page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		transcript, err := loadTranscript(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if exportOut == "" || exportOut == "-" {
			return export.Write(os.Stdout, transcript)
		}

		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", exportOut, err)
		}
		if err := export.Write(f, transcript); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Exported chat #%d to %s\n", transcript.Summary.ID, exportOut)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("corelyn %s (commit %s, built %s)\n", strings.TrimPrefix(version, "v"), commit, date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&plain, "plain", false, "Use the line-mode interface instead of the full-screen TUI")

	askCmd.Flags().BoolVar(&askHTML, "html", false, "Print the reply as HTML")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "Maximum number of chats to show (0 for all)")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "Output file (default stdout)")

	rootCmd.AddCommand(askCmd, listCmd, loadCmd, exportCmd, versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runInteractive(ctx context.Context) error {
	renderer := tui.NewTerminalRenderer("dark", ui.TerminalWidth())
	a, err := newApp(ctx, cfg, logger, renderer.Render)
	if err != nil {
		return err
	}
	defer a.Close()

	model := tui.NewModel(ctx, a.controller, a.host, renderer, cfg.Model.Name)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}

func runLineMode(ctx context.Context) error {
	// Frames cannot be redrawn in line mode, so only the final one is used.
	a, err := newApp(ctx, cfg, logger, markdown.ToHTML, stream.WithDelay(0))
	if err != nil {
		return err
	}
	defer a.Close()

	session, err := chat.NewSession(a.controller, a.host, cleanVersion(), cfg.Model.Name, logger)
	if err != nil {
		return err
	}
	if !ui.IsTerminal(os.Stdout) {
		session.DisableColors()
		session.DisableMarkdown()
	}
	return session.Run(ctx)
}

func loadTranscript(ctx context.Context, arg string) (*storage.Transcript, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID %q", arg)
	}

	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	transcript, err := store.LoadSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}
	return transcript, nil
}

func cleanVersion() string {
	v := strings.TrimPrefix(version, "v")
	if commit != "none" && commit != "" {
		v = fmt.Sprintf("%s (build %s)", v, commit)
	}
	return v
}

// formatRelative formats a time relative to now.
func formatRelative(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}

	delta := time.Since(t)
	if delta < time.Minute {
		return "just now"
	}
	if delta < time.Hour {
		return fmt.Sprintf("%d min ago", int(delta.Minutes()))
	}
	if delta < 24*time.Hour {
		return fmt.Sprintf("%d hr ago", int(delta.Hours()))
	}
	if delta < 30*24*time.Hour {
		return fmt.Sprintf("%d d ago", int(delta.Hours()/24))
	}
	return t.Format("2006-01-02")
}
