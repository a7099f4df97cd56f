// Package testutil provides shared test helpers, mocks, and utilities for Domi tests.
package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Treamyracle/INFOMEDIA/internal/llm"
)

// MockProvider implements llm.Provider for tests without live API calls.
// When Content is empty, Generate returns "mock response"; otherwise uses Content.
// Set Err to simulate agent errors.
type MockProvider struct {
	Content string
	Err     error
}

// Name returns the provider identifier (implements llm.Provider).
func (m *MockProvider) Name() string { return "mock" }

// Generate returns a canned response or the configured error.
func (m *MockProvider) Generate(_ context.Context, req *llm.Request) (*llm.Response, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	content := m.Content
	if content == "" {
		content = "mock response"
	}
	return &llm.Response{
		Content:      content,
		FinishReason: "stop",
		InputTokens:  10,
		OutputTokens: 20,
		Model:        req.Model,
	}, nil
}

// ToolCallMockProvider implements llm.Provider for testing the tool loop.
// It returns a configurable sequence of responses (e.g. tool calls then final answer)
// and tracks received requests for assertions.
// Set ErrOnCall (1-based) and Err to make Generate return an error on that call.
type ToolCallMockProvider struct {
	mu               sync.Mutex
	Responses        []*llm.Response // call N gets Responses[N], or the last one if N >= len
	CallCount        int
	ReceivedMessages [][]llm.Message
	ReceivedTools    [][]llm.Tool
	ErrOnCall        int
	Err              error
}

// Name returns the provider identifier.
func (p *ToolCallMockProvider) Name() string { return "mock" }

// Generate returns the next response in the sequence and records the request.
func (p *ToolCallMockProvider) Generate(_ context.Context, req *llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	p.CallCount++
	idx := p.CallCount - 1
	// Copy messages so caller cannot mutate after the fact.
	msgCopy := make([]llm.Message, len(req.Messages))
	copy(msgCopy, req.Messages)
	p.ReceivedMessages = append(p.ReceivedMessages, msgCopy)
	p.ReceivedTools = append(p.ReceivedTools, req.Tools)
	resps := p.Responses
	callCount := p.CallCount
	errOnCall := p.ErrOnCall
	errReturn := p.Err
	p.mu.Unlock()

	if errOnCall > 0 && callCount == errOnCall && errReturn != nil {
		return nil, errReturn
	}
	if len(resps) == 0 {
		return &llm.Response{Content: "no responses configured", FinishReason: "stop", Model: req.Model}, nil
	}
	if idx >= len(resps) {
		idx = len(resps) - 1
	}
	out := resps[idx]
	// Return a copy so tests cannot mutate the stored response.
	r := &llm.Response{
		Content:      out.Content,
		FinishReason: out.FinishReason,
		InputTokens:  out.InputTokens,
		OutputTokens: out.OutputTokens,
		Model:        out.Model,
	}
	if len(out.ToolCalls) > 0 {
		r.ToolCalls = make([]llm.ToolCall, len(out.ToolCalls))
		copy(r.ToolCalls, out.ToolCalls)
	}
	return r, nil
}

// Calls returns how many times Generate ran.
func (p *ToolCallMockProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CallCount
}

// Messages returns the messages received on call n (1-based).
func (p *ToolCallMockProvider) Messages(n int) []llm.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ReceivedMessages[n-1]
}

// ToolCallResponse builds a response asking for one tool call.
func ToolCallResponse(id, name string, args map[string]string) *llm.Response {
	raw, _ := json.Marshal(args)
	return &llm.Response{
		FinishReason: "tool_calls",
		ToolCalls:    []llm.ToolCall{{ID: id, Name: name, Arguments: raw}},
	}
}

// TextResponse builds a final text response.
func TextResponse(content string) *llm.Response {
	return &llm.Response{Content: content, FinishReason: "stop"}
}
