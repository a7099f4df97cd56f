package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Treamyracle/INFOMEDIA/internal/config"
	"github.com/Treamyracle/INFOMEDIA/internal/server"
	"github.com/Treamyracle/INFOMEDIA/internal/vault"
)

// globalRateFactor sizes the process-wide bucket relative to one session's.
const globalRateFactor = 50

var (
	serveAddr        string
	serveCORSOrigins string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Domi chat server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (default from listen_addr, :8080)")
	serveCmd.Flags().StringVar(&serveCORSOrigins, "cors-origins", "*", "Comma-separated allowed CORS origins")
	rootCmd.AddCommand(serveCmd)
}

// parseOrigins splits a comma-separated origin list, dropping blanks.
func parseOrigins(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func serverOptions(cfg *config.Config, deps *runtimeDeps) []server.Option {
	opts := []server.Option{
		server.WithAuditStore(deps.Audit),
		server.WithAPIKey(cfg.APIKey),
		server.WithCORSOrigins(parseOrigins(serveCORSOrigins)),
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, server.WithRateLimiter(server.NewRateLimiter(cfg.RateLimit, cfg.RateBurst, globalRateFactor)))
	}
	return opts
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg.WarnIfUnsafe()

	deps, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	if cfg.SessionTTL > 0 {
		stopSweeper, err := vault.StartSweeper(ctx, deps.Sessions, cfg.SweepInterval)
		if err != nil {
			return fmt.Errorf("starting session sweeper: %w", err)
		}
		defer stopSweeper()
	}

	srv := server.NewServer(deps.Runner, serverOptions(cfg, deps)...)

	addr := serveAddr
	if addr == "" {
		addr = cfg.ListenAddr
	}
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().
		Str("addr", addr).
		Str("model", cfg.LLMModel).
		Str("accounts_backend", cfg.AccountsBackend).
		Bool("ner_enabled", cfg.NERURL != "").
		Dur("session_ttl", cfg.SessionTTL).
		Bool("debug_vault", cfg.DebugVault).
		Msg("domi_serve_started")

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown_signal_received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server_stopped")
	return nil
}
