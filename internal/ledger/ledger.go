// Package ledger defines the transactional entity and vault store the
// settlement engine runs against. Every operation executes inside a single
// Exec call: it either fully commits (entities, indexes and vault balances
// together) or leaves no trace.
package ledger

import (
	"context"
	"errors"
)

var (
	ErrNotFound          = errors.New("ledger: entity not found")
	ErrAlreadyExists     = errors.New("ledger: entity already exists")
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	ErrInvalidAmount     = errors.New("ledger: amount must be positive")
)

// Tx is the view a single atomic operation gets. Implementations serialize
// writers, so code inside Exec never observes a concurrent mutation.
type Tx interface {
	// Get returns the stored record, or ErrNotFound.
	Get(addr string) ([]byte, error)
	// Insert stores a new record and fails with ErrAlreadyExists if the
	// address is taken. This is the duplicate-prevention primitive.
	Insert(addr, kind string, data []byte) error
	// Update overwrites an existing record, ErrNotFound otherwise.
	Update(addr string, data []byte) error

	// PutIndex and ListIndex maintain secondary lookup keys
	// (e.g. all tickets of a round). ListIndex returns values in key order.
	PutIndex(key, value string) error
	ListIndex(prefix string) ([]string, error)

	// Vault balances. A vault springs into existence at zero on first use;
	// Debit fails with ErrInsufficientFunds rather than going negative.
	Balance(vault string) (int64, error)
	Credit(vault string, amount int64) error
	Debit(vault string, amount int64) error
}

// Store executes transactions.
type Store interface {
	// Exec runs fn atomically. If fn returns an error, nothing is applied
	// and the same error is returned.
	Exec(ctx context.Context, fn func(Tx) error) error
	// View runs fn read-only against committed state.
	View(ctx context.Context, fn func(Tx) error) error
}
