package otel

import (
	"go.opentelemetry.io/otel/attribute"
)

// GenAI semantic conventions for the conversational-agent calls.
const (
	GenAISystem               = attribute.Key("gen_ai.system")
	GenAIRequestModel         = attribute.Key("gen_ai.request.model")
	GenAIUsageInputTokens     = attribute.Key("gen_ai.usage.input_tokens")
	GenAIUsageOutputTokens    = attribute.Key("gen_ai.usage.output_tokens")
	GenAIResponseFinishReason = attribute.Key("gen_ai.response.finish_reason")
	GenAIToolName             = attribute.Key("gen_ai.tool.name")
)

// Redaction attributes. They carry labels and counts, never values.
const (
	SessionID         = attribute.Key("session.id")
	PIILabel          = attribute.Key("pii.label")
	PIIStage          = attribute.Key("pii.stage")
	PIITagsBound      = attribute.Key("pii.tags_bound")
	PIIEntityCount    = attribute.Key("pii.entity_count")
	PIIDegraded       = attribute.Key("pii.degraded")
	ToolOutcomeStatus = attribute.Key("tool.outcome.status")
	ToolOutcomeReason = attribute.Key("tool.outcome.reason")
)

// Resource attributes describing the deployment.
const (
	DomiAccountsBackend = attribute.Key("domi.accounts.backend")
	DomiNEREnabled      = attribute.Key("domi.ner.enabled")
	DomiDebugVault      = attribute.Key("domi.debug_vault")
)
