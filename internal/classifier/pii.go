// Package classifier is the deterministic first stage of PII redaction: an
// ordered list of regex recognizers for fixed-format identifiers.
package classifier

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Treamyracle/INFOMEDIA/internal/vault"

	domiotel "github.com/Treamyracle/INFOMEDIA/internal/otel"
)

var tracer = domiotel.Tracer("github.com/Treamyracle/INFOMEDIA/internal/classifier")

// TagBinder assigns the tag that replaces a detected value.
type TagBinder interface {
	Bind(l vault.Label, value string) string
}

// Match is a value a recognizer tagged during a pass.
type Match struct {
	Recognizer string      `json:"recognizer"`
	Label      vault.Label `json:"label"`
	Value      string      `json:"value"`
	Tag        string      `json:"tag"`
}

// Scanner runs the recognizers in priority order.
type Scanner struct {
	recognizers []Recognizer
}

// ScannerOption configures a Scanner via the functional options pattern.
type ScannerOption func(*scannerConfig)

type scannerConfig struct {
	patternFile string
	disabled    []string
}

// WithPatternFile layers an operator recognizer file over the embedded
// defaults. A missing file is silently skipped.
func WithPatternFile(path string) ScannerOption {
	return func(c *scannerConfig) { c.patternFile = path }
}

// WithDisabledRecognizers turns off recognizers by name.
func WithDisabledRecognizers(names ...string) ScannerOption {
	return func(c *scannerConfig) { c.disabled = append(c.disabled, names...) }
}

// NewScanner builds a scanner from the embedded defaults plus options.
func NewScanner(opts ...ScannerOption) (*Scanner, error) {
	var cfg scannerConfig
	for _, o := range opts {
		o(&cfg)
	}

	defaults, err := DefaultRecognizers()
	if err != nil {
		return nil, fmt.Errorf("loading default recognizers: %w", err)
	}

	var overrides []RecognizerConfig
	if cfg.patternFile != "" {
		rf, err := LoadRecognizerFile(cfg.patternFile)
		if err != nil {
			return nil, fmt.Errorf("loading pattern file: %w", err)
		}
		if rf != nil {
			overrides = rf.Recognizers
		}
	}

	merged := MergeRecognizers(defaults, overrides)
	if len(cfg.disabled) > 0 {
		off := make(map[string]bool, len(cfg.disabled))
		for _, n := range cfg.disabled {
			off[n] = true
		}
		disabled := false
		for i := range merged {
			if off[merged[i].Name] {
				merged[i].Enabled = &disabled
			}
		}
	}

	compiled, err := CompileRecognizers(merged)
	if err != nil {
		return nil, fmt.Errorf("compiling patterns: %w", err)
	}
	return &Scanner{recognizers: compiled}, nil
}

// MustNewScanner is like NewScanner but panics on error. The embedded
// defaults are expected to always compile.
func MustNewScanner(opts ...ScannerOption) *Scanner {
	s, err := NewScanner(opts...)
	if err != nil {
		panic(fmt.Sprintf("classifier.NewScanner: %v", err))
	}
	return s
}

// Recognizers returns the active recognizers in priority order.
func (s *Scanner) Recognizers() []Recognizer {
	out := make([]Recognizer, len(s.recognizers))
	copy(out, s.recognizers)
	return out
}

// Redact replaces every non-excluded match with the tag returned by b.
// Each recognizer sees the output of the previous one, so text already
// turned into a tag cannot be matched again by a later numeric pattern.
func (s *Scanner) Redact(ctx context.Context, text string, b TagBinder) string {
	out, _ := s.redact(ctx, text, b)
	return out
}

// Scan reports what Redact would tag for a fresh session. Bindings go to a
// throwaway session, so indexed tags match what a real pass assigns.
func (s *Scanner) Scan(ctx context.Context, text string) []Match {
	_, matches := s.redact(ctx, text, vault.NewBinder(vault.NewSession("scan")))
	return matches
}

func (s *Scanner) redact(ctx context.Context, text string, b TagBinder) (string, []Match) {
	_, span := tracer.Start(ctx, "classifier.redact")
	defer span.End()

	var matches []Match
	for _, r := range s.recognizers {
		text = r.Pattern.ReplaceAllStringFunc(text, func(m string) string {
			if r.Excluded(m) {
				return m
			}
			tag := b.Bind(r.Label, m)
			matches = append(matches, Match{Recognizer: r.Name, Label: r.Label, Value: m, Tag: tag})
			return tag
		})
	}

	span.SetAttributes(attribute.Int("pii.pattern_matches", len(matches)))
	return text, matches
}
