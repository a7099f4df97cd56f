package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	nik TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	birthdate TEXT NOT NULL,
	phone TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	balance INTEGER NOT NULL CHECK (balance >= 0),
	pin TEXT NOT NULL DEFAULT ''
);
`

// SQLiteStore persists records in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening accounts database: %w", err)
	}
	// A single writer connection keeps debits serialized.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating accounts schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the record for nik.
func (s *SQLiteStore) Get(ctx context.Context, nik string) (*Account, error) {
	ctx, span := tracer.Start(ctx, "accounts.get")
	defer span.End()

	var a Account
	err := s.db.QueryRowContext(ctx,
		`SELECT nik, name, email, birthdate, phone, address, balance, pin FROM accounts WHERE nik = ?`, nik).
		Scan(&a.NIK, &a.Name, &a.Email, &a.Birthdate, &a.Phone, &a.Address, &a.Balance, &a.PIN)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}
	return &a, nil
}

// Debit subtracts amount in a single transaction. The UPDATE is conditional
// on the balance, so concurrent debits cannot overdraw.
func (s *SQLiteStore) Debit(ctx context.Context, nik string, amount int64) (int64, error) {
	ctx, span := tracer.Start(ctx, "accounts.debit",
		trace.WithAttributes(attribute.Int64("amount", amount)))
	defer span.End()

	if amount <= 0 {
		return 0, fmt.Errorf("debit amount must be positive, got %d", amount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning debit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance - ? WHERE nik = ? AND balance >= ?`, amount, nik, amount)
	if err != nil {
		return 0, fmt.Errorf("debiting account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("debiting account: %w", err)
	}

	var balance int64
	err = tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE nik = ?`, nik).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("reading balance: %w", err)
	}
	if n == 0 {
		return balance, ErrInsufficientBalance
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing debit: %w", err)
	}
	return balance, nil
}

// List returns all records ordered by NIK.
func (s *SQLiteStore) List(ctx context.Context) ([]Account, error) {
	ctx, span := tracer.Start(ctx, "accounts.list")
	defer span.End()

	rows, err := s.db.QueryContext(ctx,
		`SELECT nik, name, email, birthdate, phone, address, balance, pin FROM accounts ORDER BY nik`)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.NIK, &a.Name, &a.Email, &a.Birthdate, &a.Phone, &a.Address, &a.Balance, &a.PIN); err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Put inserts or replaces a record.
func (s *SQLiteStore) Put(ctx context.Context, a Account) error {
	ctx, span := tracer.Start(ctx, "accounts.put")
	defer span.End()

	if a.NIK == "" {
		return fmt.Errorf("account nik is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (nik, name, email, birthdate, phone, address, balance, pin)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(nik) DO UPDATE SET
		   name = excluded.name, email = excluded.email, birthdate = excluded.birthdate,
		   phone = excluded.phone, address = excluded.address, balance = excluded.balance, pin = excluded.pin`,
		a.NIK, a.Name, a.Email, a.Birthdate, a.Phone, a.Address, a.Balance, a.PIN)
	if err != nil {
		return fmt.Errorf("storing account: %w", err)
	}
	return nil
}
