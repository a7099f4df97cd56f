package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Treamyracle/INFOMEDIA/internal/accounts"
	"github.com/Treamyracle/INFOMEDIA/internal/vault"
)

// PasswordResetName is the tool name the agent calls.
const PasswordResetName = "ganti_password"

// PasswordReset verifies identity number, email and birthdate against the
// account record before sending a reset link.
type PasswordReset struct {
	store accounts.Store
}

// NewPasswordReset creates the tool over store.
func NewPasswordReset(store accounts.Store) *PasswordReset {
	return &PasswordReset{store: store}
}

var passwordResetParams = []Param{
	{Name: "nik_tag", Label: vault.LabelNIK, Description: "Tag for the customer's NIK."},
	{Name: "email_tag", Label: vault.LabelEmail, Description: "Tag for the registered email."},
	{Name: "birthdate_tag", Label: vault.LabelBirthdate, Description: "Tag for the birthdate (DD-MM-YYYY)."},
}

func (t *PasswordReset) Name() string { return PasswordResetName }

func (t *PasswordReset) Description() string {
	return "Mengganti password akun. Memverifikasi NIK, Email, dan Tanggal Lahir user."
}

func (t *PasswordReset) Params() []Param { return passwordResetParams }

func (t *PasswordReset) InputSchema() json.RawMessage { return paramSchema(passwordResetParams) }

// Execute checks completeness, then the account, then email and birthdate.
func (t *PasswordReset) Execute(ctx context.Context, s *vault.Session, args map[string]string) Outcome {
	v, ok := resolve(s, passwordResetParams, args)
	if !ok {
		return Failure(ReasonIncompleteInput, "Gagal: Data NIK, Email, atau Tanggal Lahir tidak lengkap/kadaluarsa.")
	}

	acct, err := t.store.Get(ctx, v["nik_tag"])
	if errors.Is(err, accounts.ErrNotFound) {
		return Failure(ReasonUnknownAccount, "Gagal: NIK tidak terdaftar dalam sistem kami.")
	}
	if err != nil {
		return Failure(ReasonInternal, "Gagal: sistem akun sedang tidak tersedia.")
	}

	if !strings.EqualFold(acct.Email, v["email_tag"]) || acct.Birthdate != v["birthdate_tag"] {
		return Failure(ReasonMismatch, "Verifikasi GAGAL: Email atau Tanggal Lahir tidak cocok dengan data NIK tersebut.")
	}

	email := v["email_tag"]
	return Success(
		fmt.Sprintf("Verifikasi BERHASIL. Link reset password telah dikirim ke email %s. Silakan cek inbox Anda.", email),
		map[string]any{"email": email},
	)
}
