package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Treamyracle/INFOMEDIA/internal/accounts"
	"github.com/Treamyracle/INFOMEDIA/internal/agent"
	"github.com/Treamyracle/INFOMEDIA/internal/agent/tools"
	"github.com/Treamyracle/INFOMEDIA/internal/audit"
	"github.com/Treamyracle/INFOMEDIA/internal/classifier"
	"github.com/Treamyracle/INFOMEDIA/internal/config"
	"github.com/Treamyracle/INFOMEDIA/internal/llm"
	"github.com/Treamyracle/INFOMEDIA/internal/ner"
	"github.com/Treamyracle/INFOMEDIA/internal/redaction"
	"github.com/Treamyracle/INFOMEDIA/internal/vault"
)

// newScanner builds the pattern scanner, layering the operator's recognizer
// file over the embedded defaults when one is configured.
func newScanner(cfg *config.Config) (*classifier.Scanner, error) {
	var opts []classifier.ScannerOption
	if cfg.PatternFile != "" {
		opts = append(opts, classifier.WithPatternFile(cfg.PatternFile))
	}
	s, err := classifier.NewScanner(opts...)
	if err != nil {
		return nil, fmt.Errorf("building pattern scanner: %w", err)
	}
	return s, nil
}

func newRecognizer(cfg *config.Config) ner.Recognizer {
	if cfg.NERURL == "" {
		return ner.Disabled{}
	}
	return ner.NewClient(cfg.NERURL, ner.WithTimeout(cfg.NERTimeout))
}

func loadSeed(cfg *config.Config) ([]accounts.Account, error) {
	if cfg.AccountsFile == "" {
		return accounts.DefaultSeed(), nil
	}
	return accounts.LoadSeed(cfg.AccountsFile)
}

// openAccountStore opens the configured backend. A SQLite store is seeded
// only while empty so balances survive restarts.
func openAccountStore(ctx context.Context, cfg *config.Config) (accounts.Store, error) {
	seed, err := loadSeed(cfg)
	if err != nil {
		return nil, fmt.Errorf("loading account seed: %w", err)
	}
	if cfg.AccountsBackend == config.BackendMemory {
		return accounts.NewMemoryStore(seed...), nil
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	st, err := accounts.NewSQLiteStore(cfg.AccountsDBPath())
	if err != nil {
		return nil, err
	}
	existing, err := st.List(ctx)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	if len(existing) == 0 {
		if err := accounts.Seed(ctx, st, seed); err != nil {
			_ = st.Close()
			return nil, err
		}
		log.Info().Int("accounts", len(seed)).Str("path", cfg.AccountsDBPath()).Msg("account_store_seeded")
	}
	return st, nil
}

func openAuditStore(cfg *config.Config) (*audit.Store, error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	st, err := audit.NewStore(cfg.AuditDBPath())
	if err != nil {
		return nil, fmt.Errorf("initializing audit store: %w", err)
	}
	return st, nil
}

// runtimeDeps is everything a chat runner needs, plus the handles to close.
type runtimeDeps struct {
	Runner   *agent.Runner
	Sessions *vault.Manager
	Accounts accounts.Store
	Audit    *audit.Store
}

// Close releases the stores.
func (d *runtimeDeps) Close() {
	if d.Audit != nil {
		_ = d.Audit.Close()
	}
	if d.Accounts != nil {
		_ = d.Accounts.Close()
	}
}

// buildRuntime wires the pipeline, tools, model provider and stores from cfg.
func buildRuntime(ctx context.Context, cfg *config.Config) (*runtimeDeps, error) {
	if cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("%w: set DOMI_LLM_API_KEY or GOOGLE_API_KEY", llm.ErrNoAPIKey)
	}
	scanner, err := newScanner(cfg)
	if err != nil {
		return nil, err
	}
	store, err := openAccountStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	deps := &runtimeDeps{Accounts: store, Sessions: vault.NewManager(cfg.SessionTTL)}
	deps.Audit, err = openAuditStore(cfg)
	if err != nil {
		deps.Close()
		return nil, err
	}

	deps.Runner = agent.NewRunner(agent.RunnerConfig{
		Sessions:     deps.Sessions,
		Pipeline:     redaction.NewPipeline(scanner, newRecognizer(cfg)),
		Tools:        tools.DefaultRegistry(store),
		Provider:     llm.NewOpenAIProvider(cfg.LLMAPIKey, cfg.LLMBaseURL),
		Model:        cfg.LLMModel,
		Audit:        deps.Audit,
		Breaker:      agent.NewVerificationBreaker(cfg.MaxVerifyFailure, cfg.VerifyWindow),
		RestoreReply: cfg.RestoreReply,
		DebugVault:   cfg.DebugVault,
	})
	return deps, nil
}
