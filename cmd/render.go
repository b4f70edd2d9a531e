package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/samsaffron/wazuh-chat/internal/backend"
	"github.com/samsaffron/wazuh-chat/internal/dedupe"
	"github.com/samsaffron/wazuh-chat/internal/markdown"
	"github.com/samsaffron/wazuh-chat/internal/reply"
	"github.com/samsaffron/wazuh-chat/internal/serve"
	"github.com/samsaffron/wazuh-chat/internal/ui"
)

var renderFormats = []string{"term", "plain", "json", "telegram", "glamour"}

var (
	renderFormat   string
	renderNoDedupe bool
	renderWidth    int
)

var renderCmd = &cobra.Command{
	Use:   "render [file|-]",
	Short: "Clean and render an assistant reply without sending anything",
	Long: `Run a saved reply through the same cleanup and formatting as chat.
Reads standard input when no file (or "-") is given.

Formats:
  term      styled terminal output (default)
  plain     terminal layout without escape sequences
  json      cleaned text, dropped-line counts and the parsed blocks
  telegram  the HTML messages the Telegram relay would send
  glamour   the alternative glamour markdown renderer

Examples:
  wazuh-chat render reply.md
  pbpaste | wazuh-chat render --format telegram
  wazuh-chat render reply.md --format json --no-dedupe`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderFormat, "format", "f", "term", "Output format: "+strings.Join(renderFormats, ", "))
	renderCmd.Flags().BoolVar(&renderNoDedupe, "no-dedupe", false, "Skip duplicate summary removal")
	renderCmd.Flags().IntVarP(&renderWidth, "width", "w", 0, "Wrap width (default: render.width or the terminal width)")
	_ = renderCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return renderFormats, cobra.ShellCompDirectiveNoFileComp
	})
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	if !slices.Contains(renderFormats, renderFormat) {
		return fmt.Errorf("invalid format %q: must be one of %s", renderFormat, strings.Join(renderFormats, ", "))
	}
	if renderWidth < 0 {
		return fmt.Errorf("--width must not be negative")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	text, err := readInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	p := newPipeline(cfg, logger)
	if renderNoDedupe {
		p.Dedupe = nil
	}
	width := renderWidth
	if width == 0 {
		width = outputWidth(cfg, os.Stdout)
	}
	return renderReply(cmd.OutOrStdout(), text, renderFormat, p, width, cfg.Render.CodeStyle)
}

func readInput(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read standard input: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return string(data), nil
}

type renderJSON struct {
	Cleaned string            `json:"cleaned"`
	Dropped dedupe.Stats      `json:"dropped"`
	Blocks  markdown.Document `json:"blocks"`
}

func renderReply(w io.Writer, text, format string, p *reply.Pipeline, width int, codeStyle string) error {
	switch format {
	case "json":
		res := p.Process(text)
		dropped := res.Dropped
		if dropped == nil {
			dropped = dedupe.Stats{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(renderJSON{Cleaned: res.Cleaned, Dropped: dropped, Blocks: markdown.Document(res.Blocks)})

	case "telegram":
		chunks := serve.FormatReply(p, &backend.ChatResponse{Message: text})
		for i, chunk := range chunks {
			if len(chunks) > 1 {
				fmt.Fprintf(w, "--- message %d of %d ---\n", i+1, len(chunks))
			}
			fmt.Fprintln(w, chunk)
		}
		return nil

	case "glamour":
		out, err := ui.RenderMarkdownWithError(p.Process(text).Cleaned, width)
		if err != nil {
			return fmt.Errorf("glamour render failed: %w", err)
		}
		fmt.Fprintln(w, strings.TrimRight(out, "\n"))
		return nil

	default:
		r := ui.NewBlockRenderer(width, codeStyle)
		if format == "plain" {
			r.Plain = true
		}
		if out := r.Render(p.Process(text).Blocks); out != "" {
			fmt.Fprintln(w, out)
		}
		return nil
	}
}
