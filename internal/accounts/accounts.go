// Package accounts holds the customer records the tool layer verifies
// resolved values against.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Treamyracle/INFOMEDIA/patterns"

	domiotel "github.com/Treamyracle/INFOMEDIA/internal/otel"
)

var tracer = domiotel.Tracer("github.com/Treamyracle/INFOMEDIA/internal/accounts")

var (
	// ErrNotFound is returned when no record has the identity number.
	ErrNotFound = errors.New("account not found")
	// ErrInsufficientBalance is returned by Debit when the balance is below
	// the requested amount. The record is left untouched.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Account is one customer record keyed by NIK.
type Account struct {
	NIK       string `yaml:"nik" json:"nik"`
	Name      string `yaml:"name" json:"name"`
	Email     string `yaml:"email" json:"email"`
	Birthdate string `yaml:"birthdate" json:"birthdate"`
	Phone     string `yaml:"phone" json:"phone"`
	Address   string `yaml:"address" json:"address"`
	Balance   int64  `yaml:"balance" json:"balance"`
	PIN       string `yaml:"pin" json:"-"`
}

// Store is an account record store. Debit is a conditional decrement: it
// either succeeds in full or leaves the record as it was.
type Store interface {
	Get(ctx context.Context, nik string) (*Account, error)
	Debit(ctx context.Context, nik string, amount int64) (remaining int64, err error)
	List(ctx context.Context) ([]Account, error)
	Put(ctx context.Context, a Account) error
	Close() error
}

// SeedFile is the on-disk layout of an account seed.
type SeedFile struct {
	Accounts []Account `yaml:"accounts"`
}

// ParseSeed decodes a YAML account seed.
func ParseSeed(data []byte) ([]Account, error) {
	var sf SeedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parsing account seed: %w", err)
	}
	seen := make(map[string]bool, len(sf.Accounts))
	for i, a := range sf.Accounts {
		if a.NIK == "" {
			return nil, fmt.Errorf("account %d: nik is required", i)
		}
		if seen[a.NIK] {
			return nil, fmt.Errorf("account %d: duplicate nik", i)
		}
		if a.Balance < 0 {
			return nil, fmt.Errorf("account %d: negative balance", i)
		}
		seen[a.NIK] = true
	}
	return sf.Accounts, nil
}

// LoadSeed reads a YAML account seed from path.
func LoadSeed(path string) ([]Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading account seed: %w", err)
	}
	return ParseSeed(data)
}

// DefaultSeed returns the embedded demo accounts.
func DefaultSeed() []Account {
	accts, err := ParseSeed(patterns.AccountsSeedYAML())
	if err != nil {
		panic(fmt.Sprintf("accounts: embedded seed: %v", err))
	}
	return accts
}

// Seed writes every account into s, replacing existing records.
func Seed(ctx context.Context, s Store, accts []Account) error {
	for _, a := range accts {
		if err := s.Put(ctx, a); err != nil {
			return fmt.Errorf("seeding account: %w", err)
		}
	}
	return nil
}
