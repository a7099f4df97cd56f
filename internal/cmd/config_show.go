package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Treamyracle/INFOMEDIA/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage Domi configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "config.show")
		defer span.End()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		renderConfig(cmd.OutOrStdout(), cfg)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func secretState(v, source string) string {
	if v == "" {
		return "not set"
	}
	if source != "" {
		return "set (" + source + ")"
	}
	return "set"
}

// renderConfig writes the resolved configuration to w without secret values.
func renderConfig(w io.Writer, cfg *config.Config) {
	ner := cfg.NERURL
	if ner == "" {
		ner = "disabled"
	}
	fmt.Fprintf(w, "Data directory:     %s\n", cfg.DataDir)
	fmt.Fprintf(w, "Listen address:     %s\n", cfg.ListenAddr)
	fmt.Fprintf(w, "API key:            %s\n", secretState(cfg.APIKey, ""))
	fmt.Fprintf(w, "Entity recognizer:  %s (timeout %s)\n", ner, cfg.NERTimeout)
	fmt.Fprintf(w, "Model:              %s @ %s\n", cfg.LLMModel, cfg.LLMBaseURL)
	fmt.Fprintf(w, "Model API key:      %s\n", secretState(cfg.LLMAPIKey, cfg.APIKeySource()))
	fmt.Fprintf(w, "Session TTL:        %s (sweep every %s)\n", cfg.SessionTTL, cfg.SweepInterval)
	fmt.Fprintf(w, "Accounts backend:   %s\n", cfg.AccountsBackend)
	if cfg.AccountsBackend == config.BackendSQLite {
		fmt.Fprintf(w, "Accounts DB:        %s\n", cfg.AccountsDBPath())
	}
	fmt.Fprintf(w, "Audit DB:           %s\n", cfg.AuditDBPath())
	fmt.Fprintf(w, "Restore reply:      %t\n", cfg.RestoreReply)
	fmt.Fprintf(w, "Debug vault:        %t\n", cfg.DebugVault)
	fmt.Fprintf(w, "Rate limit:         %.2f req/s (burst %d)\n", cfg.RateLimit, cfg.RateBurst)
	fmt.Fprintf(w, "Verification lock:  %d failures / %s\n", cfg.MaxVerifyFailure, cfg.VerifyWindow)
}
