// Package db implements the ledger store on Turso/libsql through
// database/sql. The three tables mirror the store abstraction directly:
// entities, secondary index keys, and vault balances. Every Exec call maps
// to one SQL transaction, so the all-or-nothing contract is the database's.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"

	"lotto-settlement/internal/ledger"
)

const schema = `
CREATE TABLE IF NOT EXISTS entities (
	addr TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	data BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS idx (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS vaults (
	vault   TEXT PRIMARY KEY,
	balance INTEGER NOT NULL DEFAULT 0,
	CHECK (balance >= 0)
);
`

// Store is a ledger.Store backed by libsql.
type Store struct {
	db *sql.DB
}

// Open connects to the database and ensures the schema exists. The auth
// token may be empty for a local sqlite file URL.
func Open(ctx context.Context, url, authToken string) (*Store, error) {
	const op = "db.Open"

	dsn := url
	if authToken != "" {
		dsn = fmt.Sprintf("%s?authToken=%s", url, authToken)
	}
	conn, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("%s: create tables: %w", op, err)
		}
	}
	return &Store{db: conn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Exec(ctx context.Context, fn func(ledger.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db: begin: %w", err)
	}
	if err := fn(&sqlTx{ctx: ctx, tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("db: commit: %w", err)
	}
	return nil
}

func (s *Store) View(ctx context.Context, fn func(ledger.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("db: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	return fn(&sqlTx{ctx: ctx, tx: tx})
}

type sqlTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *sqlTx) Get(addr string) ([]byte, error) {
	var data []byte
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT data FROM entities WHERE addr = ?`, addr).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db: get: %w", err)
	}
	return data, nil
}

func (t *sqlTx) Insert(addr, kind string, data []byte) error {
	var exists int
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT 1 FROM entities WHERE addr = ?`, addr).Scan(&exists)
	if err == nil {
		return ledger.ErrAlreadyExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("db: insert: %w", err)
	}
	_, err = t.tx.ExecContext(t.ctx,
		`INSERT INTO entities (addr, kind, data) VALUES (?, ?, ?)`,
		addr, kind, data)
	if err != nil {
		return fmt.Errorf("db: insert: %w", err)
	}
	return nil
}

func (t *sqlTx) Update(addr string, data []byte) error {
	res, err := t.tx.ExecContext(t.ctx,
		`UPDATE entities SET data = ? WHERE addr = ?`, data, addr)
	if err != nil {
		return fmt.Errorf("db: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db: update: %w", err)
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (t *sqlTx) PutIndex(key, value string) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO idx (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("db: put index: %w", err)
	}
	return nil
}

func (t *sqlTx) ListIndex(prefix string) ([]string, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT key, value FROM idx WHERE key >= ? AND key < ?`,
		prefix, prefix+"\xff")
	if err != nil {
		return nil, fmt.Errorf("db: list index: %w", err)
	}
	defer rows.Close()

	type kv struct{ key, value string }
	var pairs []kv
	for rows.Next() {
		var p kv
		if err := rows.Scan(&p.key, &p.value); err != nil {
			return nil, fmt.Errorf("db: list index: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: list index: %w", err)
	}
	// Byte-wise key order regardless of the database collation.
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })
	values := make([]string, len(pairs))
	for i, p := range pairs {
		values[i] = p.value
	}
	return values, nil
}

func (t *sqlTx) Balance(vault string) (int64, error) {
	var balance int64
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT balance FROM vaults WHERE vault = ?`, vault).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("db: balance: %w", err)
	}
	return balance, nil
}

func (t *sqlTx) Credit(vault string, amount int64) error {
	if amount <= 0 {
		return ledger.ErrInvalidAmount
	}
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO vaults (vault, balance) VALUES (?, ?)
		 ON CONFLICT(vault) DO UPDATE SET balance = balance + excluded.balance`,
		vault, amount)
	if err != nil {
		return fmt.Errorf("db: credit: %w", err)
	}
	return nil
}

func (t *sqlTx) Debit(vault string, amount int64) error {
	if amount <= 0 {
		return ledger.ErrInvalidAmount
	}
	res, err := t.tx.ExecContext(t.ctx,
		`UPDATE vaults SET balance = balance - ? WHERE vault = ? AND balance >= ?`,
		amount, vault, amount)
	if err != nil {
		return fmt.Errorf("db: debit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db: debit: %w", err)
	}
	if n == 0 {
		return ledger.ErrInsufficientFunds
	}
	return nil
}
