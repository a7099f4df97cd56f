// Package doctor provides preflight checks for a Domi installation.
// Used by `domi doctor`.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Treamyracle/INFOMEDIA/internal/accounts"
	"github.com/Treamyracle/INFOMEDIA/internal/audit"
	"github.com/Treamyracle/INFOMEDIA/internal/classifier"
	"github.com/Treamyracle/INFOMEDIA/internal/config"
	"github.com/Treamyracle/INFOMEDIA/internal/llm"
	"github.com/Treamyracle/INFOMEDIA/internal/ner"
)

// Check statuses.
const (
	StatusPass = "pass"
	StatusWarn = "warn"
	StatusFail = "fail"
)

// upstreamTimeout bounds each connectivity probe.
const upstreamTimeout = 5 * time.Second

// CheckResult is a single doctor check outcome.
type CheckResult struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Status   string `json:"status"` // pass, warn, fail
	Message  string `json:"message"`
	Fix      string `json:"fix,omitempty"`
}

// Summary tallies pass/warn/fail counts.
type Summary struct {
	Pass int `json:"pass"`
	Warn int `json:"warn"`
	Fail int `json:"fail"`
}

// Report is the complete doctor output.
type Report struct {
	Status  string        `json:"status"` // worst of all checks
	Checks  []CheckResult `json:"checks"`
	Summary Summary       `json:"summary"`
}

// Options controls which check categories to run.
type Options struct {
	SkipUpstream bool // Skip entity recognizer and model connectivity (for CI/offline)
	// Recognizer overrides the client built from cfg.NERURL (tests).
	Recognizer ner.Recognizer
	HTTPClient *http.Client
}

// Run executes all doctor checks against cfg and returns a report.
func Run(ctx context.Context, cfg *config.Config, opts Options) *Report {
	report := &Report{}

	report.Checks = append(report.Checks, checkConfig(cfg)...)
	report.Checks = append(report.Checks, checkStores(ctx, cfg)...)
	if !opts.SkipUpstream {
		report.Checks = append(report.Checks, checkUpstream(ctx, cfg, opts)...)
	}

	for _, c := range report.Checks {
		switch c.Status {
		case StatusPass:
			report.Summary.Pass++
		case StatusWarn:
			report.Summary.Warn++
		case StatusFail:
			report.Summary.Fail++
		}
	}

	report.Status = StatusPass
	if report.Summary.Warn > 0 {
		report.Status = StatusWarn
	}
	if report.Summary.Fail > 0 {
		report.Status = StatusFail
	}
	return report
}

func checkConfig(cfg *config.Config) []CheckResult {
	results := []CheckResult{
		checkDataDir(cfg),
		checkLLMKey(cfg),
		checkPatterns(cfg),
	}
	if cfg.APIKey == "" {
		results = append(results, CheckResult{
			Name: "api_key", Category: "config", Status: StatusWarn,
			Message: "API routes are unauthenticated", Fix: "Set DOMI_API_KEY for shared deployments",
		})
	} else {
		results = append(results, CheckResult{Name: "api_key", Category: "config", Status: StatusPass, Message: "Configured"})
	}
	if cfg.DebugVault {
		results = append(results, CheckResult{
			Name: "debug_vault", Category: "config", Status: StatusWarn,
			Message: "Responses include raw PII and vault contents", Fix: "Unset DOMI_DEBUG_VAULT outside local debugging",
		})
	}
	if cfg.NERURL == "" {
		results = append(results, CheckResult{
			Name: "ner_configured", Category: "config", Status: StatusWarn,
			Message: "Entity recognizer disabled; names and addresses pass through",
			Fix:     "Set DOMI_NER_URL",
		})
	}
	return results
}

func checkDataDir(cfg *config.Config) CheckResult {
	if err := cfg.EnsureDataDir(); err != nil {
		return CheckResult{
			Name: "data_dir_writable", Category: "config", Status: StatusFail,
			Message: fmt.Sprintf("%s: %v", cfg.DataDir, err),
			Fix:     "Ensure directory exists and is writable",
		}
	}
	testFile := filepath.Join(cfg.DataDir, ".doctor-write-test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return CheckResult{
			Name: "data_dir_writable", Category: "config", Status: StatusFail,
			Message: fmt.Sprintf("%s not writable: %v", cfg.DataDir, err),
		}
	}
	_ = os.Remove(testFile)
	return CheckResult{
		Name: "data_dir_writable", Category: "config", Status: StatusPass,
		Message: fmt.Sprintf("%s (writable)", cfg.DataDir),
	}
}

func checkLLMKey(cfg *config.Config) CheckResult {
	if cfg.LLMAPIKey == "" {
		return CheckResult{
			Name: "llm_key", Category: "config", Status: StatusFail,
			Message: llm.ErrNoAPIKey.Error(),
			Fix:     "Set DOMI_LLM_API_KEY (or GOOGLE_API_KEY)",
		}
	}
	return CheckResult{
		Name: "llm_key", Category: "config", Status: StatusPass,
		Message: fmt.Sprintf("set (%s)", cfg.APIKeySource()),
	}
}

func checkPatterns(cfg *config.Config) CheckResult {
	var opts []classifier.ScannerOption
	source := "embedded"
	if cfg.PatternFile != "" {
		opts = append(opts, classifier.WithPatternFile(cfg.PatternFile))
		source = cfg.PatternFile
	}
	s, err := classifier.NewScanner(opts...)
	if err != nil {
		return CheckResult{
			Name: "pattern_recognizers", Category: "config", Status: StatusFail,
			Message: err.Error(), Fix: "Fix the recognizer file or unset DOMI_PATTERN_FILE",
		}
	}
	return CheckResult{
		Name: "pattern_recognizers", Category: "config", Status: StatusPass,
		Message: fmt.Sprintf("%d recognizers (%s)", len(s.Recognizers()), source),
	}
}

func checkStores(ctx context.Context, cfg *config.Config) []CheckResult {
	var results []CheckResult

	var (
		seed []accounts.Account
		err  error
	)
	if cfg.AccountsFile != "" {
		seed, err = accounts.LoadSeed(cfg.AccountsFile)
	} else {
		seed = accounts.DefaultSeed()
	}
	if err != nil {
		results = append(results, CheckResult{
			Name: "accounts_seed", Category: "stores", Status: StatusFail,
			Message: err.Error(), Fix: "Run 'domi accounts validate <file>'",
		})
	} else {
		results = append(results, CheckResult{
			Name: "accounts_seed", Category: "stores", Status: StatusPass,
			Message: fmt.Sprintf("%d accounts", len(seed)),
		})
	}

	if cfg.AccountsBackend == config.BackendSQLite {
		results = append(results, probeSQLite("accounts_db", cfg.AccountsDBPath(), func(p string) (func() error, error) {
			st, err := accounts.NewSQLiteStore(p)
			if err != nil {
				return nil, err
			}
			if _, err := st.List(ctx); err != nil {
				_ = st.Close()
				return nil, err
			}
			return st.Close, nil
		}))
	}
	results = append(results, probeSQLite("audit_db", cfg.AuditDBPath(), func(p string) (func() error, error) {
		st, err := audit.NewStore(p)
		if err != nil {
			return nil, err
		}
		return st.Close, nil
	}))
	return results
}

func probeSQLite(name, path string, open func(string) (func() error, error)) CheckResult {
	closeFn, err := open(path)
	if err != nil {
		return CheckResult{Name: name, Category: "stores", Status: StatusFail, Message: err.Error()}
	}
	_ = closeFn()
	return CheckResult{Name: name, Category: "stores", Status: StatusPass, Message: path}
}

func checkUpstream(ctx context.Context, cfg *config.Config, opts Options) []CheckResult {
	var results []CheckResult

	rec := opts.Recognizer
	if rec == nil && cfg.NERURL != "" {
		rec = ner.NewClient(cfg.NERURL, ner.WithTimeout(upstreamTimeout))
	}
	if rec != nil {
		results = append(results, checkRecognizer(ctx, rec))
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: upstreamTimeout}
	}
	results = append(results, checkModelsEndpoint(ctx, client, cfg))
	return results
}

func checkRecognizer(ctx context.Context, rec ner.Recognizer) CheckResult {
	start := time.Now()
	pred, err := rec.Predict(ctx, "Halo, ini pemeriksaan koneksi.")
	latency := time.Since(start)
	if err != nil {
		return CheckResult{
			Name: "ner_reachable", Category: "upstream", Status: StatusFail,
			Message: err.Error(), Fix: "Start the entity recognition service or fix DOMI_NER_URL",
		}
	}
	status := StatusPass
	if latency > 2*time.Second {
		status = StatusWarn
	}
	return CheckResult{
		Name: "ner_reachable", Category: "upstream", Status: status,
		Message: fmt.Sprintf("status %q, %dms", pred.Status, latency.Milliseconds()),
	}
}

func checkModelsEndpoint(ctx context.Context, client *http.Client, cfg *config.Config) CheckResult {
	modelsURL := strings.TrimRight(llm.NormalizeBaseURL(cfg.LLMBaseURL), "/") + "/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, modelsURL, nil)
	if err != nil {
		return CheckResult{
			Name: "llm_endpoint", Category: "upstream", Status: StatusFail,
			Message: fmt.Sprintf("invalid models URL %s: %v", modelsURL, err),
			Fix:     "Check DOMI_LLM_BASE_URL",
		}
	}
	if cfg.LLMAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.LLMAPIKey)
	}
	resp, err := client.Do(req) //nolint:gosec // URL from operator config
	if err != nil {
		return CheckResult{
			Name: "llm_endpoint", Category: "upstream", Status: StatusFail,
			Message: fmt.Sprintf("GET %s failed: %v", modelsURL, err),
			Fix:     "Check network connectivity and DOMI_LLM_BASE_URL",
		}
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return CheckResult{
			Name: "llm_endpoint", Category: "upstream", Status: StatusWarn,
			Message: fmt.Sprintf("GET %s: %d", modelsURL, resp.StatusCode),
		}
	}
	return CheckResult{
		Name: "llm_endpoint", Category: "upstream", Status: StatusPass,
		Message: fmt.Sprintf("GET %s: %d", modelsURL, resp.StatusCode),
	}
}
