// Package vault holds the tag bindings that let an agent refer to PII without
// ever seeing it. A tag such as "[REDACTED_NIK]" is an opaque handle; the
// value it stands for lives only in a conversation-scoped Session and is
// read back exclusively by the tool layer.
package vault

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Label is one of the closed set of PII categories a tag can name.
type Label string

const (
	LabelNIK       Label = "NIK"
	LabelEmail     Label = "EMAIL"
	LabelPhone     Label = "PHONE"
	LabelBirthdate Label = "BIRTHDATE"
	LabelBankNum   Label = "BANK_NUM"
	LabelPerson    Label = "PERSON"
	LabelAddress   Label = "ADDRESS"
)

// ErrUnknownLabel is returned when a label is outside the closed set.
var ErrUnknownLabel = errors.New("unknown PII label")

// Labels lists every accepted label in a stable order.
var Labels = []Label{
	LabelNIK, LabelEmail, LabelPhone, LabelBirthdate, LabelBankNum, LabelPerson, LabelAddress,
}

var labelSet = func() map[Label]bool {
	m := make(map[Label]bool, len(Labels))
	for _, l := range Labels {
		m[l] = true
	}
	return m
}()

// Valid reports whether l is in the closed label set.
func (l Label) Valid() bool {
	return labelSet[l]
}

// ParseLabel normalizes s (case-insensitive) and checks it against the label set.
func ParseLabel(s string) (Label, error) {
	l := Label(strings.ToUpper(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("%q: %w", s, ErrUnknownLabel)
	}
	return l, nil
}

// TagPattern matches every tag shape this package produces, including labels
// that contain underscores (BANK_NUM) and indexed tags ([REDACTED_NIK_2]).
var TagPattern = regexp.MustCompile(`\[REDACTED_[A-Z]+(?:_[A-Z]+)*(?:_[0-9]+)?\]`)

// Tag returns the base tag for a label, e.g. "[REDACTED_EMAIL]".
func Tag(l Label) string {
	return "[REDACTED_" + string(l) + "]"
}

// IndexedTag returns the tag for the n-th distinct value of a label seen in a
// single redaction pass. n <= 1 yields the base tag.
func IndexedTag(l Label, n int) string {
	if n <= 1 {
		return Tag(l)
	}
	return "[REDACTED_" + string(l) + "_" + strconv.Itoa(n) + "]"
}

// ParseTag splits a tag into its label and index (1 for base tags).
// ok is false when s is not a well-formed tag for a known label.
func ParseTag(s string) (l Label, index int, ok bool) {
	if !strings.HasPrefix(s, "[REDACTED_") || !strings.HasSuffix(s, "]") {
		return "", 0, false
	}
	if loc := TagPattern.FindStringIndex(s); loc == nil || loc[0] != 0 || loc[1] != len(s) {
		return "", 0, false
	}
	body := strings.TrimSuffix(strings.TrimPrefix(s, "[REDACTED_"), "]")

	index = 1
	if i := strings.LastIndexByte(body, '_'); i > 0 {
		if n, err := strconv.Atoi(body[i+1:]); err == nil {
			if n < 2 {
				return "", 0, false
			}
			index = n
			body = body[:i]
		}
	}
	l = Label(body)
	if !l.Valid() {
		return "", 0, false
	}
	return l, index, true
}
