// Package tools is the closed set of account operations the agent may call.
// Every argument is a tag; tools resolve tags through the conversation's
// vault and verify the values against the account store.
package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Treamyracle/INFOMEDIA/internal/vault"
)

// Tool is one callable operation.
type Tool interface {
	Name() string
	Description() string
	Params() []Param
	InputSchema() json.RawMessage
	Execute(ctx context.Context, s *vault.Session, args map[string]string) Outcome
}

// Param is a required tag argument of a specific label.
type Param struct {
	Name        string
	Label       vault.Label
	Description string
}

// paramSchema is the JSON Schema for a tool taking params, all required.
func paramSchema(params []Param) json.RawMessage {
	props := make(map[string]any, len(params))
	required := make([]string, 0, len(params))
	for _, p := range params {
		props[p.Name] = map[string]any{
			"type":        "string",
			"description": p.Description + " Use the tag exactly as given, e.g. " + vault.Tag(p.Label) + ".",
		}
		required = append(required, p.Name)
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
	raw, _ := json.Marshal(schema)
	return raw
}

// resolve looks up every param in s. An argument resolves only if it is a
// tag of the param's label that is bound in the session; cleartext values
// never resolve. ok is false if any param is unresolved.
func resolve(s *vault.Session, params []Param, args map[string]string) (map[string]string, bool) {
	out := make(map[string]string, len(params))
	for _, p := range params {
		arg := strings.TrimSpace(args[p.Name])
		label, _, isTag := vault.ParseTag(arg)
		if !isTag || label != p.Label {
			return nil, false
		}
		v, bound := s.Resolve(arg)
		if !bound || v == "" {
			return nil, false
		}
		out[p.Name] = v
	}
	return out, true
}
