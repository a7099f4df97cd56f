package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Treamyracle/INFOMEDIA/internal/accounts"
	"github.com/Treamyracle/INFOMEDIA/internal/config"
	"github.com/Treamyracle/INFOMEDIA/internal/testutil"
)

func TestAccountsCmd_HasSubcommands(t *testing.T) {
	registered := make(map[string]bool)
	for _, c := range accountsCmd.Commands() {
		registered[c.Name()] = true
	}
	for _, name := range []string{"list", "validate"} {
		assert.True(t, registered[name], "accounts subcommand %q should be registered", name)
	}
}

func TestRenderAccounts(t *testing.T) {
	accts := []accounts.Account{
		{NIK: testutil.ArifNIK, Name: testutil.ArifName, Balance: 1250000},
	}

	var masked bytes.Buffer
	renderAccounts(&masked, accts, false)
	assert.Contains(t, masked.String(), "Accounts (1)")
	assert.Contains(t, masked.String(), "************3456")
	assert.NotContains(t, masked.String(), testutil.ArifNIK)
	assert.Contains(t, masked.String(), "Rp 1.250.000")

	var full bytes.Buffer
	renderAccounts(&full, accts, true)
	assert.Contains(t, full.String(), testutil.ArifNIK)

	var empty bytes.Buffer
	renderAccounts(&empty, nil, false)
	assert.Contains(t, empty.String(), "No accounts found.")
}

func TestOpenAccountStore_SQLiteSeedsOnce(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{DataDir: t.TempDir(), AccountsBackend: config.BackendSQLite}

	st, err := openAccountStore(ctx, cfg)
	require.NoError(t, err)
	seeded, err := st.List(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, seeded)
	_, err = st.Debit(ctx, testutil.ArifNIK, 50000)
	require.NoError(t, err)
	before, err := st.Get(ctx, testutil.ArifNIK)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = openAccountStore(ctx, cfg)
	require.NoError(t, err)
	defer st.Close()
	after, err := st.Get(ctx, testutil.ArifNIK)
	require.NoError(t, err)
	assert.Equal(t, before.Balance, after.Balance, "reopening must not reseed")
}

func TestOpenAccountStore_SeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`accounts:
  - nik: "1111222233334444"
    name: Test User
    email: test@example.com
    birthdate: 01-01-2000
    balance: 10000
`), 0o600))

	cfg := &config.Config{AccountsBackend: config.BackendMemory, AccountsFile: path}
	st, err := openAccountStore(context.Background(), cfg)
	require.NoError(t, err)
	accts, err := st.List(context.Background())
	require.NoError(t, err)
	require.Len(t, accts, 1)
	assert.Equal(t, "Test User", accts[0].Name)
}

func TestOpenAccountStore_BadSeedFile(t *testing.T) {
	cfg := &config.Config{AccountsBackend: config.BackendMemory, AccountsFile: filepath.Join(t.TempDir(), "missing.yaml")}
	_, err := openAccountStore(context.Background(), cfg)
	assert.Error(t, err)
}
