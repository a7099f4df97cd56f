package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Treamyracle/INFOMEDIA/internal/accounts"
	"github.com/Treamyracle/INFOMEDIA/internal/classifier"
	"github.com/Treamyracle/INFOMEDIA/internal/vault"
)

func seededStore(t *testing.T) *accounts.MemoryStore {
	t.Helper()
	return accounts.NewMemoryStore(accounts.DefaultSeed()...)
}

// redact runs the pattern stage over msg into s, as the pipeline would.
func redact(s *vault.Session, msg string) string {
	return classifier.MustNewScanner().Redact(context.Background(), msg, vault.NewBinder(s))
}

func args(kv ...string) json.RawMessage {
	m := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	raw, _ := json.Marshal(m)
	return raw
}

func TestPasswordReset_ScenarioOne(t *testing.T) {
	s := vault.NewSession("s1")
	clean := redact(s, "NIK saya 1234567890123456, email arif@example.com, lahir 04-10-2005")
	require.Equal(t, "NIK saya [REDACTED_NIK], email [REDACTED_EMAIL], lahir [REDACTED_BIRTHDATE]", clean)

	out := DefaultRegistry(seededStore(t)).Dispatch(context.Background(), s, PasswordResetName,
		args("nik_tag", "[REDACTED_NIK]", "email_tag", "[REDACTED_EMAIL]", "birthdate_tag", "[REDACTED_BIRTHDATE]"))

	assert.Equal(t, StatusSuccess, out.Status)
	assert.Empty(t, out.Reason)
	assert.Contains(t, out.Message, "arif@example.com")
	assert.Equal(t, "arif@example.com", out.Data["email"])
}

func TestPasswordReset(t *testing.T) {
	tests := []struct {
		name     string
		bindings map[string]string
		want     Reason
	}{
		{"email case-insensitive", map[string]string{
			"[REDACTED_NIK]": "1234567890123456", "[REDACTED_EMAIL]": "ARIF@Example.com", "[REDACTED_BIRTHDATE]": "04-10-2005",
		}, ""},
		{"wrong birthdate", map[string]string{
			"[REDACTED_NIK]": "1234567890123456", "[REDACTED_EMAIL]": "arif@example.com", "[REDACTED_BIRTHDATE]": "05-10-2005",
		}, ReasonMismatch},
		{"wrong email", map[string]string{
			"[REDACTED_NIK]": "1234567890123456", "[REDACTED_EMAIL]": "budi@test.com", "[REDACTED_BIRTHDATE]": "04-10-2005",
		}, ReasonMismatch},
		{"unknown nik", map[string]string{
			"[REDACTED_NIK]": "9999999999999999", "[REDACTED_EMAIL]": "arif@example.com", "[REDACTED_BIRTHDATE]": "04-10-2005",
		}, ReasonUnknownAccount},
		{"unbound birthdate", map[string]string{
			"[REDACTED_NIK]": "1234567890123456", "[REDACTED_EMAIL]": "arif@example.com",
		}, ReasonIncompleteInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := vault.NewSession("pw")
			for tag, v := range tt.bindings {
				s.Bind(tag, v)
			}
			out := NewPasswordReset(seededStore(t)).Execute(context.Background(), s, map[string]string{
				"nik_tag": "[REDACTED_NIK]", "email_tag": "[REDACTED_EMAIL]", "birthdate_tag": "[REDACTED_BIRTHDATE]",
			})
			assert.Equal(t, tt.want, out.Reason)
			if tt.want == "" {
				assert.Equal(t, StatusSuccess, out.Status)
			} else {
				assert.Equal(t, StatusFailure, out.Status)
			}
		})
	}
}

func TestResolve_RejectsCleartextAndWrongLabel(t *testing.T) {
	s := vault.NewSession("r")
	s.Bind("[REDACTED_NIK]", "1234567890123456")
	s.Bind("[REDACTED_EMAIL]", "arif@example.com")
	s.Bind("[REDACTED_BIRTHDATE]", "04-10-2005")
	tool := NewPasswordReset(seededStore(t))

	out := tool.Execute(context.Background(), s, map[string]string{
		"nik_tag": "1234567890123456", "email_tag": "[REDACTED_EMAIL]", "birthdate_tag": "[REDACTED_BIRTHDATE]",
	})
	assert.Equal(t, ReasonIncompleteInput, out.Reason)

	out = tool.Execute(context.Background(), s, map[string]string{
		"nik_tag": "[REDACTED_EMAIL]", "email_tag": "[REDACTED_EMAIL]", "birthdate_tag": "[REDACTED_BIRTHDATE]",
	})
	assert.Equal(t, ReasonIncompleteInput, out.Reason)

	out = tool.Execute(context.Background(), s, map[string]string{
		"nik_tag": " [REDACTED_NIK] ", "email_tag": "[REDACTED_EMAIL]", "birthdate_tag": "[REDACTED_BIRTHDATE]",
	})
	assert.Equal(t, StatusSuccess, out.Status)
}

func TestPhysicalCard(t *testing.T) {
	s := vault.NewSession("card")
	s.Bind("[REDACTED_PERSON]", "Siapa Saja")
	s.Bind("[REDACTED_ADDRESS]", "Jl. Mawar 3")
	s.Bind("[REDACTED_PHONE]", "081234567890")
	tool := NewPhysicalCard()

	out := tool.Execute(context.Background(), s, map[string]string{
		"nama_tag": "[REDACTED_PERSON]", "alamat_tag": "[REDACTED_ADDRESS]", "phone_tag": "[REDACTED_PHONE]",
	})
	assert.Equal(t, StatusProcessing, out.Status)
	assert.True(t, out.OK())
	assert.Contains(t, out.Message, "Siapa Saja")
	assert.Contains(t, out.Message, "081234567890")
	assert.Equal(t, "Jl. Mawar 3", out.Data["address"])

	out = tool.Execute(context.Background(), s, map[string]string{
		"nama_tag": "[REDACTED_PERSON]", "alamat_tag": "[REDACTED_ADDRESS]",
	})
	assert.Equal(t, ReasonIncompleteInput, out.Reason)
}

func withdrawSession(owner string) *vault.Session {
	s := vault.NewSession("wd")
	s.Bind("[REDACTED_NIK]", "1234567890123456")
	s.Bind("[REDACTED_BANK_NUM]", "9876543210")
	s.Bind("[REDACTED_PERSON]", owner)
	return s
}

var withdrawArgs = map[string]string{
	"nik_tag": "[REDACTED_NIK]", "bank_num_tag": "[REDACTED_BANK_NUM]", "nama_pemilik_tag": "[REDACTED_PERSON]",
}

func TestWithdrawal_ScenarioTwo_OwnerSubstring(t *testing.T) {
	store := seededStore(t)
	out := NewWithdrawal(store).Execute(context.Background(), withdrawSession("Arif"), withdrawArgs)

	require.Equal(t, StatusSuccess, out.Status, out.Message)
	assert.Equal(t, "9876543210", out.Data["bank_account"])
	assert.Equal(t, "Arif", out.Data["owner"])
	assert.Equal(t, int64(4950000), out.Data["remaining_balance"])

	a, err := store.Get(context.Background(), "1234567890123456")
	require.NoError(t, err)
	assert.Equal(t, int64(4950000), a.Balance)
}

func TestWithdrawal_OwnerCaseInsensitive(t *testing.T) {
	out := NewWithdrawal(seededStore(t)).Execute(context.Background(), withdrawSession("arif athaya"), withdrawArgs)
	assert.Equal(t, StatusSuccess, out.Status)
}

func TestWithdrawal_ScenarioThree_OwnerMismatch(t *testing.T) {
	store := seededStore(t)
	out := NewWithdrawal(store).Execute(context.Background(), withdrawSession("Budi"), withdrawArgs)

	assert.Equal(t, StatusFailure, out.Status)
	assert.Equal(t, ReasonOwnerMismatch, out.Reason)
	assert.NotContains(t, out.Message, "Arif Athaya")

	a, _ := store.Get(context.Background(), "1234567890123456")
	assert.Equal(t, int64(5000000), a.Balance)
}

func TestScenarioFour_UnknownAccount(t *testing.T) {
	store := seededStore(t)
	s := vault.NewSession("unknown")
	s.Bind("[REDACTED_NIK]", "1111111111111111")
	s.Bind("[REDACTED_EMAIL]", "arif@example.com")
	s.Bind("[REDACTED_BIRTHDATE]", "04-10-2005")
	s.Bind("[REDACTED_BANK_NUM]", "9876543210")
	s.Bind("[REDACTED_PERSON]", "Arif")

	out := NewWithdrawal(store).Execute(context.Background(), s, withdrawArgs)
	assert.Equal(t, ReasonUnknownAccount, out.Reason)

	out = NewPasswordReset(store).Execute(context.Background(), s, map[string]string{
		"nik_tag": "[REDACTED_NIK]", "email_tag": "[REDACTED_EMAIL]", "birthdate_tag": "[REDACTED_BIRTHDATE]",
	})
	assert.Equal(t, ReasonUnknownAccount, out.Reason)
}

func TestWithdrawal_TwiceAtExactMinimum(t *testing.T) {
	ctx := context.Background()
	store := accounts.NewMemoryStore(accounts.Account{
		NIK: "1234567890123456", Name: "Arif Athaya", Balance: WithdrawalAmount,
	})
	tool := NewWithdrawal(store)
	s := withdrawSession("Arif")

	first := tool.Execute(ctx, s, withdrawArgs)
	require.Equal(t, StatusSuccess, first.Status)
	assert.Equal(t, int64(0), first.Data["remaining_balance"])

	second := tool.Execute(ctx, s, withdrawArgs)
	assert.Equal(t, StatusFailure, second.Status)
	assert.Equal(t, ReasonInsufficientBalance, second.Reason)

	a, _ := store.Get(ctx, "1234567890123456")
	assert.Zero(t, a.Balance)
}

func TestWithdrawal_OwnerCheckedBeforeBalance(t *testing.T) {
	store := accounts.NewMemoryStore(accounts.Account{NIK: "1234567890123456", Name: "Arif Athaya", Balance: 10})
	out := NewWithdrawal(store).Execute(context.Background(), withdrawSession("Budi"), withdrawArgs)
	assert.Equal(t, ReasonOwnerMismatch, out.Reason)
}

func TestWithdrawal_SQLiteStore(t *testing.T) {
	ctx := context.Background()
	store, err := accounts.NewSQLiteStore(t.TempDir() + "/accounts.db")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, accounts.Seed(ctx, store, accounts.DefaultSeed()))

	s := withdrawSession("Budi")
	s.Bind("[REDACTED_NIK]", "3201123456789001")

	out := NewWithdrawal(store).Execute(ctx, s, withdrawArgs)
	require.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, int64(100000), out.Data["remaining_balance"])
}

func TestRegistry_ListAndSchemas(t *testing.T) {
	r := DefaultRegistry(seededStore(t))
	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, PasswordResetName, list[0].Name())
	assert.Equal(t, PhysicalCardName, list[1].Name())
	assert.Equal(t, WithdrawalName, list[2].Name())

	var schema struct {
		Type       string                    `json:"type"`
		Properties map[string]map[string]any `json:"properties"`
		Required   []string                  `json:"required"`
	}
	require.NoError(t, json.Unmarshal(list[2].InputSchema(), &schema))
	assert.Equal(t, "object", schema.Type)
	assert.ElementsMatch(t, []string{"nik_tag", "bank_num_tag", "nama_pemilik_tag"}, schema.Required)
	assert.Equal(t, "string", schema.Properties["bank_num_tag"]["type"])

	_, ok := r.Get("withdraw_ke_bank")
	assert.True(t, ok)
}

func TestRegistry_Dispatch(t *testing.T) {
	r := DefaultRegistry(seededStore(t))
	s := withdrawSession("Arif")
	ctx := context.Background()

	out := r.Dispatch(ctx, s, "transfer_all", args())
	assert.Equal(t, ReasonUnknownTool, out.Reason)

	out = r.Dispatch(ctx, s, WithdrawalName, json.RawMessage(`{"nik_tag": 12}`))
	assert.Equal(t, ReasonInvalidArguments, out.Reason)

	out = r.Dispatch(ctx, s, WithdrawalName, json.RawMessage(`not json`))
	assert.Equal(t, ReasonInvalidArguments, out.Reason)

	// Missing arguments reach the tool and come back as incomplete input.
	out = r.Dispatch(ctx, s, WithdrawalName, args("nik_tag", "[REDACTED_NIK]"))
	assert.Equal(t, ReasonIncompleteInput, out.Reason)

	out = r.Dispatch(ctx, s, WithdrawalName, nil)
	assert.Equal(t, ReasonIncompleteInput, out.Reason)

	out = r.Dispatch(ctx, s, WithdrawalName, args("nik_tag", "[REDACTED_NIK]", "bank_num_tag", "[REDACTED_BANK_NUM]", "nama_pemilik_tag", "[REDACTED_PERSON]"))
	assert.Equal(t, StatusSuccess, out.Status)
}

type panicTool struct{}

func (panicTool) Name() string                 { return "boom" }
func (panicTool) Description() string          { return "panics" }
func (panicTool) Params() []Param              { return nil }
func (panicTool) InputSchema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (panicTool) Execute(context.Context, *vault.Session, map[string]string) Outcome {
	panic("unexpected")
}

func TestRegistry_DispatchRecoversPanic(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(panicTool{}))

	var out Outcome
	assert.NotPanics(t, func() {
		out = r.Dispatch(context.Background(), vault.NewSession("p"), "boom", args())
	})
	assert.Equal(t, StatusFailure, out.Status)
	assert.Equal(t, ReasonInternal, out.Reason)
}

type badSchemaTool struct{ panicTool }

func (badSchemaTool) InputSchema() json.RawMessage { return json.RawMessage(`{"type": 5}`) }

func TestRegistry_RegisterRejectsBadSchema(t *testing.T) {
	assert.Error(t, NewRegistry().Register(badSchemaTool{}))
}
