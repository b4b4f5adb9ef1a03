package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type record struct {
	kind string
	data []byte
}

// MemStore is an in-memory Store with single-writer semantics. Transactions
// buffer their writes in an overlay and merge it on commit, so a failed
// operation leaves committed state untouched. It backs tests and local
// development; production uses the SQL store in internal/db.
type MemStore struct {
	mu       sync.RWMutex
	entities map[string]record
	indexes  map[string]string
	vaults   map[string]int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		entities: make(map[string]record),
		indexes:  make(map[string]string),
		vaults:   make(map[string]int64),
	}
}

func (s *MemStore) Exec(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := newMemTx(s)
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *MemStore) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(newMemTx(s))
}

type memTx struct {
	store *MemStore

	entities map[string]record
	indexes  map[string]string
	vaults   map[string]int64
}

func newMemTx(s *MemStore) *memTx {
	return &memTx{
		store:    s,
		entities: make(map[string]record),
		indexes:  make(map[string]string),
		vaults:   make(map[string]int64),
	}
}

func (tx *memTx) commit() {
	for a, r := range tx.entities {
		tx.store.entities[a] = r
	}
	for k, v := range tx.indexes {
		tx.store.indexes[k] = v
	}
	for v, b := range tx.vaults {
		tx.store.vaults[v] = b
	}
}

func (tx *memTx) Get(addr string) ([]byte, error) {
	if r, ok := tx.entities[addr]; ok {
		return append([]byte(nil), r.data...), nil
	}
	if r, ok := tx.store.entities[addr]; ok {
		return append([]byte(nil), r.data...), nil
	}
	return nil, ErrNotFound
}

func (tx *memTx) Insert(addr, kind string, data []byte) error {
	if _, ok := tx.entities[addr]; ok {
		return ErrAlreadyExists
	}
	if _, ok := tx.store.entities[addr]; ok {
		return ErrAlreadyExists
	}
	tx.entities[addr] = record{kind: kind, data: append([]byte(nil), data...)}
	return nil
}

func (tx *memTx) Update(addr string, data []byte) error {
	if r, ok := tx.entities[addr]; ok {
		tx.entities[addr] = record{kind: r.kind, data: append([]byte(nil), data...)}
		return nil
	}
	if r, ok := tx.store.entities[addr]; ok {
		tx.entities[addr] = record{kind: r.kind, data: append([]byte(nil), data...)}
		return nil
	}
	return ErrNotFound
}

func (tx *memTx) PutIndex(key, value string) error {
	tx.indexes[key] = value
	return nil
}

func (tx *memTx) ListIndex(prefix string) ([]string, error) {
	merged := make(map[string]string)
	for k, v := range tx.store.indexes {
		if strings.HasPrefix(k, prefix) {
			merged[k] = v
		}
	}
	for k, v := range tx.indexes {
		if strings.HasPrefix(k, prefix) {
			merged[k] = v
		}
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = merged[k]
	}
	return values, nil
}

func (tx *memTx) Balance(vault string) (int64, error) {
	if b, ok := tx.vaults[vault]; ok {
		return b, nil
	}
	return tx.store.vaults[vault], nil
}

func (tx *memTx) Credit(vault string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	b, _ := tx.Balance(vault)
	tx.vaults[vault] = b + amount
	return nil
}

func (tx *memTx) Debit(vault string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	b, _ := tx.Balance(vault)
	if b < amount {
		return ErrInsufficientFunds
	}
	tx.vaults[vault] = b - amount
	return nil
}
