package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/samsaffron/wazuh-chat/internal/reply"
	"github.com/samsaffron/wazuh-chat/internal/session"
	"github.com/samsaffron/wazuh-chat/internal/signal"
	"github.com/samsaffron/wazuh-chat/internal/tui/sessions"
	"github.com/samsaffron/wazuh-chat/internal/ui"
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"history"},
	Short:   "Manage saved conversations",
	Long: `List, search, show, delete and export saved conversations.
Conversations are referred to by number (12 or #12), ID or ID prefix.

Examples:
  wazuh-chat sessions                       # List recent conversations
  wazuh-chat sessions list --filter ssh
  wazuh-chat sessions search "CVE-2024"
  wazuh-chat sessions show 12
  wazuh-chat sessions export 12 report.html --html
  wazuh-chat sessions browse`,
	RunE: runSessionsList, // Default to list
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations grouped by day",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search message text",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSessionsSearch,
}

var sessionsShowCmd = &cobra.Command{
	Use:               "show <ref>",
	Short:             "Show a conversation",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: SessionArgCompletion,
	RunE:              runSessionsShow,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:               "delete <ref>",
	Short:             "Delete a conversation",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: SessionArgCompletion,
	RunE:              runSessionsDelete,
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export <ref> [path]",
	Short: "Export a conversation as markdown or HTML",
	Long: `Export a conversation. Replies are exported as they are displayed,
with duplicated summaries removed. A path of "-" writes to standard output.`,
	Args:              cobra.RangeArgs(1, 2),
	ValidArgsFunction: SessionArgCompletion,
	RunE:              runSessionsExport,
}

var sessionsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all conversations (requires confirmation)",
	Long: `Delete the sessions database entirely. This cannot be undone.

You are asked to confirm unless --yes is given.`,
	Args: cobra.NoArgs,
	RunE: runSessionsReset,
}

var sessionsNameCmd = &cobra.Command{
	Use:   "name <ref> <title>",
	Short: "Rename a conversation",
	Long: `Set the title shown for a conversation. Titles default to the first
question asked.

Example:
  wazuh-chat sessions name 12 "web-01 brute force"`,
	Args:              cobra.MinimumNArgs(2),
	ValidArgsFunction: SessionArgCompletion,
	RunE:              runSessionsName,
}

var sessionsBrowseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Pick a conversation in a full-screen browser and resume it",
	Args:  cobra.NoArgs,
	RunE:  runSessionsBrowse,
}

// Flags
var (
	sessionsFilter string
	sessionsLimit  int
	sessionsJSON   bool
	sessionsHTML   bool
	sessionsYes    bool
)

func init() {
	// List flags
	for _, c := range []*cobra.Command{sessionsCmd, sessionsListCmd} {
		c.Flags().StringVar(&sessionsFilter, "filter", "", "Only titles matching this text")
		c.Flags().IntVar(&sessionsLimit, "limit", 50, "Maximum number of conversations to list")
	}

	sessionsShowCmd.Flags().BoolVar(&sessionsJSON, "json", false, "Output as JSON")
	sessionsExportCmd.Flags().BoolVar(&sessionsHTML, "html", false, "Export as a standalone HTML page")
	sessionsResetCmd.Flags().BoolVarP(&sessionsYes, "yes", "y", false, "Do not ask for confirmation")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsSearchCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsExportCmd)
	sessionsCmd.AddCommand(sessionsResetCmd)
	sessionsCmd.AddCommand(sessionsNameCmd)
	sessionsCmd.AddCommand(sessionsBrowseCmd)

	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	_, store, err := openSessionStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	list, err := store.List(ctx, session.ListOptions{Limit: sessionsLimit})
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}
	list = session.FilterByTitle(list, sessionsFilter)

	writeSessionList(cmd.OutOrStdout(), list, time.Now())
	return nil
}

// writeSessionList prints list in Today, Yesterday and Older sections.
func writeSessionList(w io.Writer, list []session.Session, now time.Time) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No conversations found.")
		return
	}

	groups := session.GroupByDate(list, now)
	first := true
	section := func(name string, list []session.Session) {
		if len(list) == 0 {
			return
		}
		if !first {
			fmt.Fprintln(w)
		}
		first = false
		fmt.Fprintln(w, name)
		for _, s := range list {
			status := string(s.Status)
			if status == "" {
				status = string(session.StatusActive)
			}
			fmt.Fprintf(w, "  #%-4d %-40s %4d msgs  %-8s %s\n",
				s.Number, ui.Truncate(s.DisplayTitle(), 40), s.MessageCount, status, formatRelativeTime(now, s.UpdatedAt))
		}
	}
	section(session.GroupToday, groups.Today)
	section(session.GroupYesterday, groups.Yesterday)
	section(session.GroupOlder, groups.Older)
}

// formatRelativeTime returns a human-readable relative time string
func formatRelativeTime(now, t time.Time) string {
	dur := now.Sub(t)
	switch {
	case dur < time.Minute:
		return "just now"
	case dur < time.Hour:
		return fmt.Sprintf("%dm ago", int(dur.Minutes()))
	case dur < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(dur.Hours()))
	case dur < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(dur.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

func runSessionsSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	_, store, err := openSessionStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	query := strings.Join(args, " ")
	results, err := store.Search(ctx, query, 20)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintf(out, "No results found for '%s'\n", query)
		return nil
	}

	fmt.Fprintf(out, "Found %d matches for '%s':\n\n", len(results), query)
	for _, r := range results {
		title := r.Title
		if title == "" {
			title = session.DefaultTitle
		}
		fmt.Fprintf(out, "#%d %s (%s, %s)\n", r.SessionNumber, title, r.Role, r.CreatedAt.Local().Format("2006-01-02 15:04"))
		fmt.Fprintf(out, "  %s\n\n", strings.ReplaceAll(r.Snippet, "\n", " "))
	}
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, store, err := openSessionStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := resolveSession(ctx, store, args[0])
	if err != nil {
		return err
	}
	messages, err := store.GetMessages(ctx, sess.ID, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to get messages: %w", err)
	}

	out := cmd.OutOrStdout()
	if sessionsJSON {
		data := struct {
			Session  *session.Session  `json:"session"`
			Messages []session.Message `json:"messages"`
		}{
			Session:  sess,
			Messages: messages,
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}

	fmt.Fprintf(out, "Conversation #%d: %s\n", sess.Number, sess.DisplayTitle())
	fmt.Fprintf(out, "ID: %s\n", sess.ID)
	fmt.Fprintf(out, "Created: %s\n", sess.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Updated: %s\n", sess.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Status: %s\n", sess.Status)
	fmt.Fprintf(out, "Messages: %d\n\n", len(messages))

	opts := renderOptions(cfg, nil)
	opts.Plain = !isTerminal(os.Stdout)
	width := outputWidth(cfg, os.Stdout)
	for i := range messages {
		writeReply(out, &messages[i], width, opts)
		fmt.Fprintln(out)
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	_, store, err := openSessionStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := resolveSession(ctx, store, args[0])
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, sess.ID); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted conversation #%d %s\n", sess.Number, sess.DisplayTitle())
	return nil
}

func runSessionsExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, store, err := openSessionStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := resolveSession(ctx, store, args[0])
	if err != nil {
		return err
	}
	messages, err := store.GetMessages(ctx, sess.ID, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to get messages: %w", err)
	}

	doc := exportMarkdown(sess, messages, newPipeline(cfg, nil))
	ext := "md"
	if sessionsHTML {
		if doc, err = exportHTML(sess.DisplayTitle(), doc); err != nil {
			return err
		}
		ext = "html"
	}

	outputPath := fmt.Sprintf("conversation-%d.%s", sess.Number, ext)
	if len(args) > 1 {
		outputPath = args[1]
	}
	if outputPath == "-" {
		_, err := io.WriteString(cmd.OutOrStdout(), doc)
		return err
	}
	if err := os.WriteFile(outputPath, []byte(doc), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d messages to %s\n", len(messages), outputPath)
	return nil
}

// exportMarkdown renders a conversation as a markdown document. Replies
// go through p so the export matches what chat displays.
func exportMarkdown(sess *session.Session, messages []session.Message, p *reply.Pipeline) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", sess.DisplayTitle())
	fmt.Fprintf(&b, "**Conversation:** #%d (%s)\n", sess.Number, sess.ID)
	fmt.Fprintf(&b, "**Created:** %s\n", sess.CreatedAt.Format(time.RFC3339))
	b.WriteString("\n---\n\n")

	for _, msg := range messages {
		stamp := msg.CreatedAt.Format("2006-01-02 15:04")
		if msg.Role == session.RoleUser {
			fmt.Fprintf(&b, "## You (%s)\n\n", stamp)
			b.WriteString(strings.TrimSpace(msg.Content))
		} else {
			fmt.Fprintf(&b, "## Assistant (%s)\n\n", stamp)
			b.WriteString(strings.TrimSpace(p.Process(msg.Content).Cleaned))
		}
		b.WriteString("\n\n---\n\n")
	}
	return b.String()
}

// exportHTML converts an exported markdown document into a standalone page.
func exportHTML(title, doc string) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var body bytes.Buffer
	if err := md.Convert([]byte(doc), &body); err != nil {
		return "", fmt.Errorf("failed to convert to HTML: %w", err)
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	b.WriteString("<style>body{font-family:sans-serif;max-width:48rem;margin:2rem auto;line-height:1.5}pre{background:#f4f4f4;padding:.75rem;overflow-x:auto}</style>\n")
	b.WriteString("</head>\n<body>\n")
	b.Write(body.Bytes())
	b.WriteString("</body>\n</html>\n")
	return b.String(), nil
}

func runSessionsReset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dbPath, err := session.DBPath(cfg.Sessions)
	if err != nil {
		return fmt.Errorf("failed to get database path: %w", err)
	}

	out := cmd.OutOrStdout()
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Fprintln(out, "No sessions database found.")
		return nil
	}

	if !sessionsYes {
		confirmed := false
		err := huh.NewConfirm().
			Title("Delete ALL conversations?").
			Description(dbPath + "\nThis cannot be undone.").
			Affirmative("Delete").
			Negative("Cancel").
			Value(&confirmed).
			Run()
		if err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				fmt.Fprintln(out, "Aborted.")
				return nil
			}
			return fmt.Errorf("confirmation failed: %w", err)
		}
		if !confirmed {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	// Delete the database file and WAL files
	for _, f := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete %s: %w", f, err)
		}
	}

	fmt.Fprintln(out, "Sessions database deleted.")
	return nil
}

func runSessionsName(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	_, store, err := openSessionStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := resolveSession(ctx, store, args[0])
	if err != nil {
		return err
	}
	title := strings.TrimSpace(strings.Join(args[1:], " "))
	if title == "" {
		return fmt.Errorf("title must not be empty")
	}

	sess.Title = title
	if err := store.Update(ctx, sess); err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Conversation #%d named: %s\n", sess.Number, sess.Title)
	return nil
}

func runSessionsBrowse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Sessions.Enabled {
		return fmt.Errorf("session storage is disabled in config")
	}
	logger := fileLogger(cfg)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext()
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	width := outputWidth(cfg, os.Stdout)
	browser := sessions.New(store, width, 24, ui.DefaultStyles())
	p := tea.NewProgram(browser, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("browser failed: %w", err)
	}

	id := browser.Chosen()
	if id == "" {
		return nil
	}
	sess, err := store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to open conversation: %w", err)
	}
	if err := store.SetCurrent(ctx, sess.ID); err != nil {
		return fmt.Errorf("failed to resume conversation: %w", err)
	}
	return runChatTUI(ctx, cfg, store, sess, logger)
}
