package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Treamyracle/INFOMEDIA/internal/audit"
	"github.com/Treamyracle/INFOMEDIA/internal/config"
)

var (
	auditSession string
	auditLimit   int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the redaction and tool audit trail",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events, newest first",
	RunE:  auditList,
}

var auditShowCmd = &cobra.Command{
	Use:   "show [event-id]",
	Short: "Show one audit event as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  auditShow,
}

func init() {
	auditListCmd.Flags().StringVar(&auditSession, "session", "", "Filter by session ID")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 20, "Maximum events to show")

	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditShowCmd)
	rootCmd.AddCommand(auditCmd)
}

func openAuditFromConfig() (*audit.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return openAuditStore(cfg)
}

func auditList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	store, err := openAuditFromConfig()
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := store.List(ctx, auditSession, auditLimit)
	if err != nil {
		return fmt.Errorf("querying audit events: %w", err)
	}
	if len(events) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No audit events found.")
		return nil
	}
	renderAuditList(cmd.OutOrStdout(), events)
	return nil
}

func auditShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	store, err := openAuditFromConfig()
	if err != nil {
		return err
	}
	defer store.Close()

	ev, err := store.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("loading audit event: %w", err)
	}
	return writeJSONOut(cmd.OutOrStdout(), ev)
}

// renderAuditList writes audit lines to w (testable).
func renderAuditList(w io.Writer, events []audit.Event) {
	fmt.Fprintf(w, "Audit Events (showing %d):\n\n", len(events))
	for i := range events {
		ev := &events[i]
		status := "✓"
		if ev.Error != "" {
			status = "✗"
		}
		degraded := ""
		if ev.Degraded {
			degraded = " [DEGRADED]"
		}
		fmt.Fprintf(w, "  %s %s | %s | %-6s | %s | tags=%d | %s | %dms%s\n",
			status,
			ev.ID,
			ev.Timestamp.Format("2006-01-02 15:04:05"),
			ev.Kind,
			ev.SessionID,
			len(ev.Tags),
			formatToolCalls(ev.ToolCalls),
			ev.DurationMS,
			degraded,
		)
	}
}

func formatToolCalls(calls []audit.ToolCall) string {
	if len(calls) == 0 {
		return "no tools"
	}
	parts := make([]string, len(calls))
	for i, c := range calls {
		parts[i] = c.Tool + ":" + c.Status
		if c.Reason != "" {
			parts[i] += "(" + c.Reason + ")"
		}
	}
	return strings.Join(parts, ",")
}
