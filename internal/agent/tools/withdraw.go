package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Treamyracle/INFOMEDIA/internal/accounts"
	"github.com/Treamyracle/INFOMEDIA/internal/vault"
)

// WithdrawalName is the tool name the agent calls.
const WithdrawalName = "withdraw_ke_bank"

// WithdrawalAmount is both the minimum balance and the amount debited.
const WithdrawalAmount int64 = 50000

// Withdrawal pays out to a bank account after checking the owner name and
// balance.
type Withdrawal struct {
	store accounts.Store
}

// NewWithdrawal creates the tool over store.
func NewWithdrawal(store accounts.Store) *Withdrawal {
	return &Withdrawal{store: store}
}

var withdrawalParams = []Param{
	{Name: "nik_tag", Label: vault.LabelNIK, Description: "Tag for the customer's NIK."},
	{Name: "bank_num_tag", Label: vault.LabelBankNum, Description: "Tag for the destination bank account number."},
	{Name: "nama_pemilik_tag", Label: vault.LabelPerson, Description: "Tag for the bank account owner's name."},
}

func (t *Withdrawal) Name() string { return WithdrawalName }

func (t *Withdrawal) Description() string {
	return "Pencairan saldo (Withdraw) ke rekening Bank. Memerlukan NIK, Nomor Rekening Tujuan, dan Nama Pemilik Rekening."
}

func (t *Withdrawal) Params() []Param { return withdrawalParams }

func (t *Withdrawal) InputSchema() json.RawMessage { return paramSchema(withdrawalParams) }

// Execute checks completeness, account, owner name, then balance. The debit
// is the only mutation and happens last.
func (t *Withdrawal) Execute(ctx context.Context, s *vault.Session, args map[string]string) Outcome {
	v, ok := resolve(s, withdrawalParams, args)
	if !ok {
		return Failure(ReasonIncompleteInput, "Gagal: Data tidak lengkap.")
	}

	nik, bankNum, owner := v["nik_tag"], v["bank_num_tag"], v["nama_pemilik_tag"]

	acct, err := t.store.Get(ctx, nik)
	if errors.Is(err, accounts.ErrNotFound) {
		return Failure(ReasonUnknownAccount, "Gagal: NIK tidak terdaftar dalam sistem kami.")
	}
	if err != nil {
		return Failure(ReasonInternal, "Gagal: sistem akun sedang tidak tersedia.")
	}

	if !strings.Contains(strings.ToLower(acct.Name), strings.ToLower(owner)) {
		return Failure(ReasonOwnerMismatch,
			fmt.Sprintf("Gagal: Nama pemilik rekening (%s) tidak sesuai dengan pemilik akun DompetKu.", owner))
	}

	if acct.Balance < WithdrawalAmount {
		return Failure(ReasonInsufficientBalance, "Gagal: Saldo tidak mencukupi (Min. 50.000).")
	}

	remaining, err := t.store.Debit(ctx, nik, WithdrawalAmount)
	switch {
	case errors.Is(err, accounts.ErrInsufficientBalance):
		// Lost a race with a concurrent debit.
		return Failure(ReasonInsufficientBalance, "Gagal: Saldo tidak mencukupi (Min. 50.000).")
	case err != nil:
		log.Error().Err(err).Str("tool", WithdrawalName).Msg("withdrawal_debit_failed")
		return Failure(ReasonInternal, "Gagal: sistem akun sedang tidak tersedia.")
	}

	return Success(
		fmt.Sprintf("Dana berhasil dicairkan ke rekening %s. Sisa saldo Anda: %d", bankNum, remaining),
		map[string]any{
			"bank_account":      bankNum,
			"owner":             owner,
			"remaining_balance": remaining,
		},
	)
}
