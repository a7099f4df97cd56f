package classifier

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/Treamyracle/INFOMEDIA/internal/vault"
)

// RecognizerFile is the top-level YAML structure for a recognizer config file.
type RecognizerFile struct {
	Recognizers []RecognizerConfig `yaml:"recognizers"`
}

// RecognizerConfig is one ordered detector: a label, its regexes, and an
// optional exclusion rule.
type RecognizerConfig struct {
	Name            string          `yaml:"name" json:"name"`
	SupportedEntity string          `yaml:"supported_entity" json:"supported_entity"`
	Enabled         *bool           `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Patterns        []PatternConfig `yaml:"patterns,omitempty" json:"patterns,omitempty"`
	// ExcludePrefixes drops a match whose literal text starts with any of
	// these prefixes.
	ExcludePrefixes []string `yaml:"exclude_prefixes,omitempty" json:"exclude_prefixes,omitempty"`
}

// PatternConfig is a single regex pattern within a recognizer.
type PatternConfig struct {
	Name  string `yaml:"name" json:"name"`
	Regex string `yaml:"regex" json:"regex"`
}

func (r *RecognizerConfig) isEnabled() bool {
	if r.Enabled == nil {
		return true
	}
	return *r.Enabled
}

// ParseRecognizerFile parses recognizer YAML bytes into a RecognizerFile.
func ParseRecognizerFile(data []byte) (*RecognizerFile, error) {
	var rf RecognizerFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing recognizer YAML: %w", err)
	}
	return &rf, nil
}

// LoadRecognizerFile reads and parses a recognizer YAML file from disk.
// Returns nil (not an error) if the file does not exist, so callers can
// treat a missing override file as a no-op.
func LoadRecognizerFile(path string) (*RecognizerFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading recognizer file %s: %w", path, err)
	}
	return ParseRecognizerFile(data)
}

// MergeRecognizers overlays later layers on earlier ones by recognizer Name.
// An override keeps the position of the recognizer it replaces, so detector
// priority is decided by the defaults; new recognizers are appended.
func MergeRecognizers(layers ...[]RecognizerConfig) []RecognizerConfig {
	index := make(map[string]int)
	var merged []RecognizerConfig

	for _, layer := range layers {
		for _, rc := range layer {
			if idx, exists := index[rc.Name]; exists {
				merged[idx] = rc
			} else {
				index[rc.Name] = len(merged)
				merged = append(merged, rc)
			}
		}
	}

	return merged
}

// CompileRecognizers converts configs into runtime recognizers, preserving
// order. Disabled recognizers are skipped.
func CompileRecognizers(configs []RecognizerConfig) ([]Recognizer, error) {
	var out []Recognizer

	for _, rc := range configs {
		if !rc.isEnabled() {
			continue
		}
		label, err := vault.ParseLabel(rc.SupportedEntity)
		if err != nil {
			return nil, fmt.Errorf("recognizer %q: %w", rc.Name, err)
		}
		for _, p := range rc.Patterns {
			compiled, err := regexp.Compile(p.Regex)
			if err != nil {
				return nil, fmt.Errorf("compiling pattern %q in recognizer %q: %w", p.Name, rc.Name, err)
			}
			out = append(out, Recognizer{
				Name:            rc.Name,
				Label:           label,
				Pattern:         compiled,
				ExcludePrefixes: rc.ExcludePrefixes,
			})
		}
	}

	return out, nil
}
