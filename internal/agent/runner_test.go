package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Treamyracle/INFOMEDIA/internal/accounts"
	"github.com/Treamyracle/INFOMEDIA/internal/agent/tools"
	"github.com/Treamyracle/INFOMEDIA/internal/audit"
	"github.com/Treamyracle/INFOMEDIA/internal/classifier"
	"github.com/Treamyracle/INFOMEDIA/internal/llm"
	"github.com/Treamyracle/INFOMEDIA/internal/ner"
	"github.com/Treamyracle/INFOMEDIA/internal/redaction"
	"github.com/Treamyracle/INFOMEDIA/internal/testutil"
	"github.com/Treamyracle/INFOMEDIA/internal/vault"
)

// keywordRecognizer reports fixed substrings as entities.
type keywordRecognizer map[string]string

func (k keywordRecognizer) Predict(_ context.Context, text string) (*ner.Prediction, error) {
	var ents []ner.Entity
	for sub, label := range k {
		i := strings.Index(text, sub)
		if i < 0 {
			continue
		}
		start := utf8.RuneCountInString(text[:i])
		ents = append(ents, ner.Entity{Text: sub, Label: label, Score: 0.95, Start: start, End: start + utf8.RuneCountInString(sub)})
	}
	return &ner.Prediction{Status: "success", Entities: ents}, nil
}

type memoryRecorder struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (m *memoryRecorder) Record(_ context.Context, ev *audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

type fixture struct {
	runner   *Runner
	provider *testutil.ToolCallMockProvider
	sessions *vault.Manager
	store    *accounts.MemoryStore
	audit    *memoryRecorder
}

func newFixture(t *testing.T, cfg RunnerConfig, rec ner.Recognizer, responses ...*llm.Response) *fixture {
	t.Helper()
	f := &fixture{
		provider: &testutil.ToolCallMockProvider{Responses: responses},
		sessions: vault.NewManager(vault.DefaultSessionTTL),
		store:    accounts.NewMemoryStore(accounts.DefaultSeed()...),
		audit:    &memoryRecorder{},
	}
	cfg.Sessions = f.sessions
	cfg.Pipeline = redaction.NewPipeline(classifier.MustNewScanner(), rec)
	cfg.Tools = tools.DefaultRegistry(f.store)
	cfg.Provider = f.provider
	cfg.Model = "test-model"
	cfg.Audit = f.audit
	f.runner = NewRunner(cfg)
	return f
}

var resetArgs = map[string]string{
	"nik_tag": "[REDACTED_NIK]", "email_tag": "[REDACTED_EMAIL]", "birthdate_tag": "[REDACTED_BIRTHDATE]",
}

func assertNoRawPII(t *testing.T, p *testutil.ToolCallMockProvider, raw ...string) {
	t.Helper()
	for call, msgs := range p.ReceivedMessages {
		for _, m := range msgs {
			for _, v := range raw {
				assert.NotContains(t, m.Content, v, "call %d role %s leaked a value", call+1, m.Role)
				for _, tc := range m.ToolCalls {
					assert.NotContains(t, string(tc.Arguments), v)
				}
			}
		}
	}
}

func TestChat_PasswordResetScenario(t *testing.T) {
	f := newFixture(t, RunnerConfig{RestoreReply: true}, ner.Disabled{},
		testutil.ToolCallResponse("call_1", tools.PasswordResetName, resetArgs),
		testutil.TextResponse("Link reset sudah dikirim ke [REDACTED_EMAIL]."),
	)

	resp, err := f.runner.Chat(context.Background(), "sess-1", testutil.PasswordResetMessage)
	require.NoError(t, err)

	assert.Equal(t, "sess-1", resp.SessionID)
	assert.Equal(t, []string{tools.PasswordResetName}, resp.ToolsCalled)
	require.Len(t, resp.Outcomes, 1)
	assert.Equal(t, tools.StatusSuccess, resp.Outcomes[0].Status)
	assert.Equal(t, "Link reset sudah dikirim ke arif@example.com.", resp.Reply)
	assert.True(t, resp.Degraded)
	assert.Nil(t, resp.Debug)

	require.Equal(t, 2, f.provider.Calls())
	first := f.provider.Messages(1)
	assert.Equal(t, llm.RoleSystem, first[0].Role)
	assert.Equal(t, "NIK saya [REDACTED_NIK], email [REDACTED_EMAIL], lahir [REDACTED_BIRTHDATE]", first[1].Content)
	require.Len(t, f.provider.ReceivedTools[0], 3)

	second := f.provider.Messages(2)
	toolMsg := second[len(second)-1]
	assert.Equal(t, llm.RoleTool, toolMsg.Role)
	assert.Equal(t, "call_1", toolMsg.ToolCallID)
	assert.Contains(t, toolMsg.Content, "[REDACTED_EMAIL]")

	var out tools.Outcome
	require.NoError(t, json.Unmarshal([]byte(toolMsg.Content), &out))
	assert.Equal(t, tools.StatusSuccess, out.Status)
	assert.Equal(t, "[REDACTED_EMAIL]", out.Data["email"])

	assertNoRawPII(t, f.provider, testutil.ArifNIK, testutil.ArifEmail, testutil.ArifBirthdate)
}

func TestChat_ReplyStaysTaggedWithoutRestore(t *testing.T) {
	f := newFixture(t, RunnerConfig{}, ner.Disabled{}, testutil.TextResponse("Halo [REDACTED_NIK]"))
	resp, err := f.runner.Chat(context.Background(), "s", "NIK "+testutil.ArifNIK)
	require.NoError(t, err)
	assert.Equal(t, "Halo [REDACTED_NIK]", resp.Reply)
}

func TestChat_ReplyMarkupStrippedBeforeRestore(t *testing.T) {
	f := newFixture(t, RunnerConfig{RestoreReply: true}, ner.Disabled{},
		testutil.TextResponse("<p>Email Anda <[REDACTED_EMAIL]></p>"))
	resp, err := f.runner.Chat(context.Background(), "s", "email "+testutil.ArifEmail)
	require.NoError(t, err)
	assert.Equal(t, "Email Anda <"+testutil.ArifEmail+">", resp.Reply)
}

func TestCleanReply(t *testing.T) {
	assert.Equal(t, "Halo", cleanReply("<p>Halo</p>"))
	assert.Equal(t, "it's 5 > 3 & ok", cleanReply("it's 5 > 3 & ok"))
	assert.Equal(t, "[REDACTED_NIK]", cleanReply(" [REDACTED_NIK] "))
}

func TestChat_WithdrawalUsesEntityTags(t *testing.T) {
	rec := keywordRecognizer{"Arif": "PERSON"}
	f := newFixture(t, RunnerConfig{}, rec,
		testutil.ToolCallResponse("call_1", tools.WithdrawalName, map[string]string{
			"nik_tag": "[REDACTED_NIK]", "bank_num_tag": "[REDACTED_BANK_NUM]", "nama_pemilik_tag": "[REDACTED_PERSON]",
		}),
		testutil.TextResponse("Dana sudah dicairkan."),
	)

	resp, err := f.runner.Chat(context.Background(), "wd",
		"Tarik dana ke rekening 9876543210 atas nama Arif, NIK "+testutil.ArifNIK)
	require.NoError(t, err)

	require.Len(t, resp.Outcomes, 1)
	assert.Equal(t, tools.StatusSuccess, resp.Outcomes[0].Status, resp.Outcomes[0].Message)
	a, _ := f.store.Get(context.Background(), testutil.ArifNIK)
	assert.Equal(t, int64(4950000), a.Balance)

	assertNoRawPII(t, f.provider, testutil.ArifNIK, "9876543210", "Arif")
}

func TestChat_AgentErrorBecomesApology(t *testing.T) {
	f := newFixture(t, RunnerConfig{}, ner.Disabled{})
	f.provider.ErrOnCall = 1
	f.provider.Err = errors.New("upstream 503")

	resp, err := f.runner.Chat(context.Background(), "s", "halo")
	require.NoError(t, err)
	assert.Equal(t, "Maaf, ada kesalahan sistem: upstream 503", resp.Reply)

	require.Len(t, f.audit.events, 1)
	assert.Equal(t, "upstream 503", f.audit.events[0].Error)
}

func TestChat_ToolRoundsBounded(t *testing.T) {
	f := newFixture(t, RunnerConfig{MaxToolRounds: 2}, ner.Disabled{},
		testutil.ToolCallResponse("c", tools.PhysicalCardName, map[string]string{}),
	)

	resp, err := f.runner.Chat(context.Background(), "s", "kartu fisik")
	require.NoError(t, err)
	assert.Equal(t, tooManyRoundsReply, resp.Reply)
	assert.Equal(t, 3, f.provider.Calls())
	assert.Len(t, resp.ToolsCalled, 2)
	for _, o := range resp.Outcomes {
		assert.Equal(t, tools.ReasonIncompleteInput, o.Reason)
	}
}

func TestChat_DebugGating(t *testing.T) {
	f := newFixture(t, RunnerConfig{DebugVault: true}, ner.Disabled{}, testutil.TextResponse("ok"))
	resp, err := f.runner.Chat(context.Background(), "s", "NIK "+testutil.ArifNIK)
	require.NoError(t, err)
	require.NotNil(t, resp.Debug)
	assert.Equal(t, "NIK "+testutil.ArifNIK, resp.Debug.Original)
	assert.Equal(t, "NIK [REDACTED_NIK]", resp.Debug.Clean)
	assert.Equal(t, testutil.ArifNIK, resp.Debug.Vault["[REDACTED_NIK]"])
	assert.True(t, f.runner.DebugEnabled())
}

func TestChat_HistoryCarriesAcrossTurns(t *testing.T) {
	f := newFixture(t, RunnerConfig{}, ner.Disabled{},
		testutil.TextResponse("Boleh minta email dan tanggal lahir?"),
		testutil.ToolCallResponse("call_1", tools.PasswordResetName, resetArgs),
		testutil.TextResponse("Berhasil."),
	)
	ctx := context.Background()

	_, err := f.runner.Chat(ctx, "multi", "Mau ganti password, NIK "+testutil.ArifNIK)
	require.NoError(t, err)
	resp, err := f.runner.Chat(ctx, "multi", "email "+testutil.ArifEmail+" lahir "+testutil.ArifBirthdate)
	require.NoError(t, err)

	require.Len(t, resp.Outcomes, 1)
	assert.Equal(t, tools.StatusSuccess, resp.Outcomes[0].Status)

	second := f.provider.Messages(2)
	require.Len(t, second, 4)
	assert.Equal(t, "Mau ganti password, NIK [REDACTED_NIK]", second[1].Content)
	assert.Equal(t, llm.RoleAssistant, second[2].Role)
}

func TestChat_NewSessionIDWhenEmpty(t *testing.T) {
	f := newFixture(t, RunnerConfig{}, ner.Disabled{}, testutil.TextResponse("ok"))
	resp, err := f.runner.Chat(context.Background(), "", "halo")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.SessionID)
	_, ok := f.sessions.Lookup(resp.SessionID)
	assert.True(t, ok)
}

func TestChat_EmptyMessage(t *testing.T) {
	f := newFixture(t, RunnerConfig{}, ner.Disabled{})
	_, err := f.runner.Chat(context.Background(), "s", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestChat_VerificationLockout(t *testing.T) {
	f := newFixture(t, RunnerConfig{Breaker: NewVerificationBreaker(2, 0)}, ner.Disabled{},
		testutil.ToolCallResponse("c", tools.PasswordResetName, resetArgs),
		testutil.TextResponse("gagal"),
	)
	ctx := context.Background()
	wrong := "NIK " + testutil.ArifNIK + ", email salah@example.com, lahir " + testutil.ArifBirthdate

	var reasons []tools.Reason
	for i := 0; i < 3; i++ {
		f.provider.Responses = []*llm.Response{
			testutil.ToolCallResponse("c", tools.PasswordResetName, resetArgs),
			testutil.TextResponse("gagal"),
		}
		f.provider.CallCount = 0
		resp, err := f.runner.Chat(ctx, "lock", wrong)
		require.NoError(t, err)
		require.Len(t, resp.Outcomes, 1)
		reasons = append(reasons, resp.Outcomes[0].Reason)
	}
	assert.Equal(t, []tools.Reason{tools.ReasonMismatch, tools.ReasonMismatch, tools.ReasonVerificationLocked}, reasons)

	assert.True(t, f.runner.EndSession(ctx, "lock"))
	_, ok := f.sessions.Lookup("lock")
	assert.False(t, ok)
}

func TestChat_AuditCarriesNoValues(t *testing.T) {
	f := newFixture(t, RunnerConfig{}, ner.Disabled{},
		testutil.ToolCallResponse("call_1", tools.PasswordResetName, resetArgs),
		testutil.TextResponse("ok"),
	)
	_, err := f.runner.Chat(context.Background(), "aud", testutil.PasswordResetMessage)
	require.NoError(t, err)

	require.Len(t, f.audit.events, 1)
	ev := f.audit.events[0]
	assert.Equal(t, audit.KindChat, ev.Kind)
	assert.Equal(t, []string{"BIRTHDATE", "EMAIL", "NIK"}, ev.Labels)
	assert.Equal(t, []audit.ToolCall{{Tool: tools.PasswordResetName, Status: "success"}}, ev.ToolCalls)

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	for _, v := range []string{testutil.ArifNIK, testutil.ArifEmail, testutil.ArifBirthdate} {
		assert.NotContains(t, string(data), v)
	}
}

func TestRedact_AuditsAndBinds(t *testing.T) {
	f := newFixture(t, RunnerConfig{}, ner.Disabled{})
	res, id := f.runner.Redact(context.Background(), "", "HP 08123456789")
	assert.NotEmpty(t, id)
	assert.Equal(t, "HP [REDACTED_PHONE]", res.Clean)
	require.Len(t, f.audit.events, 1)
	assert.Equal(t, audit.KindRedact, f.audit.events[0].Kind)
}

func TestMaskOutcome(t *testing.T) {
	s := vault.NewSession("m")
	s.Bind("[REDACTED_ADDRESS]", "Jl. A & B")
	out := maskOutcome(s, tools.Processing("Kirim ke 'Jl. A & B'", map[string]any{"address": "Jl. A & B", "n": 3}))
	assert.Equal(t, "Kirim ke '[REDACTED_ADDRESS]'", out.Message)
	assert.Equal(t, "[REDACTED_ADDRESS]", out.Data["address"])
	assert.Equal(t, 3, out.Data["n"])
	assert.NotContains(t, encodeOutcome(out), "Jl. A")
}

func TestConversation_TrimsAtUserBoundary(t *testing.T) {
	c := &conversation{}
	c.append(3,
		llm.Message{Role: llm.RoleUser, Content: "1"},
		llm.Message{Role: llm.RoleAssistant, Content: "2"},
		llm.Message{Role: llm.RoleUser, Content: "3"},
		llm.Message{Role: llm.RoleAssistant},
		llm.Message{Role: llm.RoleTool, Content: "5"},
	)
	h := c.history()
	require.NotEmpty(t, h)
	assert.Equal(t, llm.RoleUser, h[0].Role)
	assert.Equal(t, "3", h[0].Content)
	assert.LessOrEqual(t, len(h), 3)
}

func TestRunner_ExpiredSessionDropsLockoutAndHistory(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	sessions := vault.NewManager(time.Hour, vault.WithClock(func() time.Time { return now }))
	breaker := NewVerificationBreaker(2, time.Minute)
	r := NewRunner(RunnerConfig{
		Sessions: sessions,
		Pipeline: redaction.NewPipeline(classifier.MustNewScanner(), ner.Disabled{}),
		Tools:    tools.DefaultRegistry(accounts.NewMemoryStore(accounts.DefaultSeed()...)),
		Provider: &testutil.ToolCallMockProvider{Responses: []*llm.Response{testutil.TextResponse("ok")}},
		Breaker:  breaker,
	})

	_, err := r.Chat(ctx, "idle", "halo")
	require.NoError(t, err)
	breaker.Record("idle", mismatch)
	breaker.Record("idle", mismatch)
	require.Equal(t, CircuitOpen, breaker.State("idle"))
	require.Equal(t, 1, r.convs.len())

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, sessions.Sweep(ctx))
	assert.Equal(t, 0, breaker.Len())
	assert.Equal(t, 0, r.convs.len())
}
