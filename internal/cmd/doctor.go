package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Treamyracle/INFOMEDIA/internal/config"
	"github.com/Treamyracle/INFOMEDIA/internal/doctor"
)

var (
	doctorSkipUpstream bool
	doctorJSON         bool
)

var errPreflightFailed = errors.New("preflight checks failed")

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run preflight checks (data dir, model key, recognizers, stores, upstreams)",
	Long:  "Verifies the data directory is writable, a model key is available, the recognizer file and account seed are valid, the SQLite stores open, and the entity service and model endpoint answer.",
	RunE:  runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorSkipUpstream, "skip-upstream", false, "skip entity service and model connectivity checks")
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	ctx, span := tracer.Start(ctx, "doctor")
	defer span.End()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	report := doctor.Run(ctx, cfg, doctor.Options{SkipUpstream: doctorSkipUpstream})
	out := cmd.OutOrStdout()
	if doctorJSON {
		if err := writeJSONOut(out, report); err != nil {
			return err
		}
	} else {
		renderDoctor(out, report)
	}
	if report.Status == doctor.StatusFail {
		return errPreflightFailed
	}
	return nil
}

func statusMark(status string) string {
	switch status {
	case doctor.StatusPass:
		return "✓"
	case doctor.StatusWarn:
		return "⚠"
	default:
		return "✗"
	}
}

// renderDoctor writes one line per check followed by a summary.
func renderDoctor(w io.Writer, r *doctor.Report) {
	for _, c := range r.Checks {
		fmt.Fprintf(w, "%s %s: %s\n", statusMark(c.Status), c.Name, c.Message)
		if c.Fix != "" && c.Status != doctor.StatusPass {
			fmt.Fprintf(w, "    fix: %s\n", c.Fix)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d warnings, %d failed\n", r.Summary.Pass, r.Summary.Warn, r.Summary.Fail)
	if r.Status != doctor.StatusFail {
		fmt.Fprintln(w, "All checks passed.")
	}
}
