// Package patterns provides embedded default recognizer definitions.
// YAML files in this directory use a Presidio-style recognizer format with
// ordering and exclusion extensions used by the pattern redactor.
package patterns

import _ "embed"

//go:embed pii_id.yaml
var piiIDYAML []byte

//go:embed accounts_seed.yaml
var accountsSeedYAML []byte

// PIIIDYAML returns the embedded default Indonesian PII recognizer definitions.
func PIIIDYAML() []byte { return piiIDYAML }

// AccountsSeedYAML returns the embedded demo account ledger.
func AccountsSeedYAML() []byte { return accountsSeedYAML }
