package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Treamyracle/INFOMEDIA/internal/classifier"
	"github.com/Treamyracle/INFOMEDIA/internal/ner"
	"github.com/Treamyracle/INFOMEDIA/internal/redaction"
	"github.com/Treamyracle/INFOMEDIA/internal/testutil"
	"github.com/Treamyracle/INFOMEDIA/internal/vault"
)

func TestReadInput(t *testing.T) {
	got, err := readInput([]string{"from arg"}, strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, "from arg", got)

	got, err = readInput(nil, strings.NewReader("from stdin\n"))
	require.NoError(t, err)
	assert.Equal(t, "from stdin", got)
}

func TestRenderMatches(t *testing.T) {
	matches := classifier.MustNewScanner().Scan(context.Background(), "NIK "+testutil.ArifNIK)

	var hidden bytes.Buffer
	renderMatches(&hidden, matches, false)
	assert.Contains(t, hidden.String(), "Pattern matches (1)")
	assert.Contains(t, hidden.String(), "[REDACTED_NIK]")
	assert.NotContains(t, hidden.String(), testutil.ArifNIK)

	var shown bytes.Buffer
	renderMatches(&shown, matches, true)
	assert.Contains(t, shown.String(), testutil.ArifNIK)

	var none bytes.Buffer
	renderMatches(&none, nil, false)
	assert.Contains(t, none.String(), "No PII patterns matched.")
}

func TestHideMatchValues(t *testing.T) {
	matches := []classifier.Match{{Label: vault.LabelNIK, Value: testutil.ArifNIK, Tag: "[REDACTED_NIK]"}}
	hidden := hideMatchValues(matches, false)
	assert.Empty(t, hidden[0].Value)
	assert.Equal(t, testutil.ArifNIK, matches[0].Value, "input must not be modified")
	assert.Equal(t, testutil.ArifNIK, hideMatchValues(matches, true)[0].Value)
}

func TestRenderRedaction(t *testing.T) {
	s := vault.NewSession("t")
	res := redaction.NewPipeline(classifier.MustNewScanner(), ner.Disabled{}).
		Redact(context.Background(), s, "email "+testutil.ArifEmail)

	var hidden bytes.Buffer
	renderRedaction(&hidden, res, s, false)
	out := hidden.String()
	assert.Contains(t, out, "email [REDACTED_EMAIL]")
	assert.Contains(t, out, "entity recognizer unavailable")
	assert.Contains(t, out, "[REDACTED_EMAIL]")
	assert.NotContains(t, out, testutil.ArifEmail)

	var shown bytes.Buffer
	renderRedaction(&shown, res, s, true)
	assert.Contains(t, shown.String(), testutil.ArifEmail)
}

func TestWithoutValues(t *testing.T) {
	res := &redaction.Result{
		Original:     "NIK " + testutil.ArifNIK,
		PatternClean: "NIK [REDACTED_NIK]",
		Clean:        "NIK [REDACTED_NIK]",
		Entities:     []redaction.Entity{{Text: testutil.ArifName, Word: "arif athaya", Label: "PERSON"}},
	}
	cp := withoutValues(res)
	assert.Empty(t, cp.Original)
	assert.Empty(t, cp.Entities[0].Text)
	assert.Empty(t, cp.Entities[0].Word)
	assert.Equal(t, "NIK [REDACTED_NIK]", cp.Clean)
	assert.Equal(t, testutil.ArifName, res.Entities[0].Text, "input must not be modified")
}

func TestRedactCmd_DryRun(t *testing.T) {
	t.Cleanup(func() { redactDryRun = false })

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"redact", "--dry-run", "NIK " + testutil.ArifNIK})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "[REDACTED_NIK]")
	assert.NotContains(t, buf.String(), testutil.ArifNIK)
}
