package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

// OpenAICompatibleResponse is the minimal chat completions response for tests.
type OpenAICompatibleResponse struct {
	ID      string           `json:"id"`
	Object  string           `json:"object"`
	Model   string           `json:"model"`
	Choices []OpenAIChoice   `json:"choices"`
	Usage   OpenAIUsageBlock `json:"usage"`
}

// OpenAIChoice is one completion choice.
type OpenAIChoice struct {
	Message      OpenAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// OpenAIMessage is an assistant message, possibly with tool calls.
type OpenAIMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []OpenAIToolCall `json:"tool_calls,omitempty"`
}

// OpenAIToolCall is a function call in the wire format.
type OpenAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// OpenAIUsageBlock reports token usage.
type OpenAIUsageBlock struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// NewOpenAICompatibleServer starts an httptest.Server that responds to
// POST /v1/chat/completions with a minimal valid OpenAI-style JSON response.
// Caller must call server.Close() or register t.Cleanup(server.Close).
func NewOpenAICompatibleServer(content string) *httptest.Server {
	if content == "" {
		content = "mock response"
	}
	return NewScriptedOpenAIServer(OpenAIMessage{Role: "assistant", Content: content})
}

// NewScriptedOpenAIServer answers successive chat completion calls with
// replies in order, repeating the last one.
func NewScriptedOpenAIServer(replies ...OpenAIMessage) *httptest.Server {
	var (
		mu    sync.Mutex
		calls int
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" && r.URL.Path != "/v1/chat/completions/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		mu.Lock()
		idx := calls
		calls++
		mu.Unlock()
		if idx >= len(replies) {
			idx = len(replies) - 1
		}
		msg := replies[idx]
		finish := "stop"
		if len(msg.ToolCalls) > 0 {
			finish = "tool_calls"
		}
		resp := OpenAICompatibleResponse{
			ID:      "chatcmpl-test",
			Object:  "chat.completion",
			Model:   "mock-model",
			Choices: []OpenAIChoice{{Message: msg, FinishReason: finish}},
			Usage:   OpenAIUsageBlock{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	return httptest.NewServer(handler)
}

// ToolCallMessage builds an assistant reply requesting one tool call.
func ToolCallMessage(id, name string, args map[string]string) OpenAIMessage {
	raw, _ := json.Marshal(args)
	tc := OpenAIToolCall{ID: id, Type: "function"}
	tc.Function.Name = name
	tc.Function.Arguments = string(raw)
	return OpenAIMessage{Role: "assistant", ToolCalls: []OpenAIToolCall{tc}}
}
