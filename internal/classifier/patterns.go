package classifier

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Treamyracle/INFOMEDIA/internal/vault"
	"github.com/Treamyracle/INFOMEDIA/patterns"
)

// Recognizer is a compiled detector: every match of Pattern is tagged with
// Label unless Excluded says otherwise.
type Recognizer struct {
	Name            string
	Label           vault.Label
	Pattern         *regexp.Regexp
	ExcludePrefixes []string
}

// Excluded reports whether a match must be left untagged. Bank account
// candidates starting with "08" or "62" are phone numbers the phone
// recognizer owns.
func (r Recognizer) Excluded(match string) bool {
	for _, p := range r.ExcludePrefixes {
		if strings.HasPrefix(match, p) {
			return true
		}
	}
	return false
}

// DefaultRecognizers returns the built-in recognizers parsed from the
// embedded pii_id.yaml file, in priority order.
func DefaultRecognizers() ([]RecognizerConfig, error) {
	rf, err := ParseRecognizerFile(patterns.PIIIDYAML())
	if err != nil {
		return nil, fmt.Errorf("parsing embedded PII patterns: %w", err)
	}
	return rf.Recognizers, nil
}
