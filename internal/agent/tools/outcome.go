package tools

// Status is the terminal state of a tool call.
type Status string

// Tool call statuses.
const (
	StatusSuccess    Status = "success"
	StatusProcessing Status = "processing"
	StatusFailure    Status = "failure"
)

// Reason classifies a failed tool call.
type Reason string

// Failure reasons.
const (
	ReasonIncompleteInput     Reason = "incomplete-input"
	ReasonUnknownAccount      Reason = "unknown-account"
	ReasonMismatch            Reason = "mismatch"
	ReasonOwnerMismatch       Reason = "owner-mismatch"
	ReasonInsufficientBalance Reason = "insufficient-balance"
	ReasonUnknownTool         Reason = "unknown-tool"
	ReasonInvalidArguments    Reason = "invalid-arguments"
	ReasonVerificationLocked  Reason = "verification-locked"
	ReasonInternal            Reason = "internal"
)

// Outcome is the structured result of a tool call. Failures are outcomes,
// never Go errors, so the agent can relay them.
type Outcome struct {
	Status  Status         `json:"status"`
	Reason  Reason         `json:"reason,omitempty"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// OK reports whether the call did not fail.
func (o Outcome) OK() bool { return o.Status != StatusFailure }

// Success builds a success outcome.
func Success(msg string, data map[string]any) Outcome {
	return Outcome{Status: StatusSuccess, Message: msg, Data: data}
}

// Processing builds an accepted-for-processing outcome.
func Processing(msg string, data map[string]any) Outcome {
	return Outcome{Status: StatusProcessing, Message: msg, Data: data}
}

// Failure builds a failure outcome.
func Failure(reason Reason, msg string) Outcome {
	return Outcome{Status: StatusFailure, Reason: reason, Message: msg}
}
