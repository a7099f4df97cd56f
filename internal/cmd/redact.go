package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Treamyracle/INFOMEDIA/internal/classifier"
	"github.com/Treamyracle/INFOMEDIA/internal/config"
	"github.com/Treamyracle/INFOMEDIA/internal/redaction"
	"github.com/Treamyracle/INFOMEDIA/internal/vault"
)

var (
	redactDryRun     bool
	redactJSON       bool
	redactShowValues bool
)

var redactCmd = &cobra.Command{
	Use:   "redact [text]",
	Short: "Run the redaction pipeline on text (argument or stdin)",
	Long: `Runs the pattern and entity stages over the text and prints the clean
result. With --dry-run only the pattern recognizers run and their matches are
listed. Values are hidden unless --show-values is set.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRedact,
}

func init() {
	redactCmd.Flags().BoolVar(&redactDryRun, "dry-run", false, "Only list pattern matches; no entity recognizer call")
	redactCmd.Flags().BoolVar(&redactJSON, "json", false, "Print the full result as JSON")
	redactCmd.Flags().BoolVar(&redactShowValues, "show-values", false, "Include raw values in the output")
	rootCmd.AddCommand(redactCmd)
}

func readInput(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func runRedact(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()
	ctx, span := tracer.Start(ctx, "redact")
	defer span.End()

	text, err := readInput(args, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("no input text")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	scanner, err := newScanner(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if redactDryRun {
		matches := scanner.Scan(ctx, text)
		if redactJSON {
			return writeJSONOut(out, hideMatchValues(matches, redactShowValues))
		}
		renderMatches(out, matches, redactShowValues)
		return nil
	}

	s := vault.NewSession("cli")
	res := redaction.NewPipeline(scanner, newRecognizer(cfg)).Redact(ctx, s, text)
	if redactJSON {
		if !redactShowValues {
			res = withoutValues(res)
		}
		return writeJSONOut(out, res)
	}
	renderRedaction(out, res, s, redactShowValues)
	return nil
}

func writeJSONOut(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func hideMatchValues(matches []classifier.Match, show bool) []classifier.Match {
	if show {
		return matches
	}
	out := make([]classifier.Match, len(matches))
	for i, m := range matches {
		m.Value = ""
		out[i] = m
	}
	return out
}

// withoutValues returns a copy of res that carries tags only.
func withoutValues(res *redaction.Result) *redaction.Result {
	cp := *res
	cp.Original = ""
	cp.PatternClean = ""
	cp.Entities = make([]redaction.Entity, len(res.Entities))
	for i, e := range res.Entities {
		e.Text = ""
		e.Word = ""
		cp.Entities[i] = e
	}
	return &cp
}

// renderMatches writes pattern matches to w (testable).
func renderMatches(w io.Writer, matches []classifier.Match, showValues bool) {
	if len(matches) == 0 {
		fmt.Fprintln(w, "No PII patterns matched.")
		return
	}
	fmt.Fprintf(w, "Pattern matches (%d):\n", len(matches))
	for _, m := range matches {
		if showValues {
			fmt.Fprintf(w, "  %-10s %-24s %s\n", m.Label, m.Tag, m.Value)
		} else {
			fmt.Fprintf(w, "  %-10s %s\n", m.Label, m.Tag)
		}
	}
}

// renderRedaction writes a pipeline result to w (testable).
func renderRedaction(w io.Writer, res *redaction.Result, s *vault.Session, showValues bool) {
	fmt.Fprintln(w, res.Clean)
	if res.Degraded {
		fmt.Fprintln(w, "\n! entity recognizer unavailable: names and addresses were not redacted")
	} else {
		fmt.Fprintf(w, "\nEntity recognizer: %d entities, %s\n", len(res.Entities), formatLatency(res.Performance.LatencyMS))
	}
	if len(res.Bindings) == 0 {
		return
	}
	fmt.Fprintln(w, "Bindings:")
	for _, b := range res.Bindings {
		if showValues {
			v, _ := s.Resolve(b.Tag)
			fmt.Fprintf(w, "  %-24s %-8s %s\n", b.Tag, b.Stage, v)
		} else {
			fmt.Fprintf(w, "  %-24s %s\n", b.Tag, b.Stage)
		}
	}
}
