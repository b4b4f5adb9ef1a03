package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore_RollbackOnError(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	sentinel := errors.New("boom")
	err := store.Exec(ctx, func(tx Tx) error {
		require.NoError(t, tx.Insert("a", "thing", []byte(`1`)))
		require.NoError(t, tx.Credit("vault", 100))
		require.NoError(t, tx.PutIndex("idx:1", "a"))
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	// Nothing of the failed transaction is visible.
	err = store.View(ctx, func(tx Tx) error {
		_, err := tx.Get("a")
		assert.ErrorIs(t, err, ErrNotFound)
		balance, err := tx.Balance("vault")
		require.NoError(t, err)
		assert.Equal(t, int64(0), balance)
		values, err := tx.ListIndex("idx:")
		require.NoError(t, err)
		assert.Empty(t, values)
		return nil
	})
	require.NoError(t, err)
}

func TestMemStore_InsertDuplicate(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	require.NoError(t, store.Exec(ctx, func(tx Tx) error {
		return tx.Insert("a", "thing", []byte(`1`))
	}))

	// Across transactions.
	err := store.Exec(ctx, func(tx Tx) error {
		return tx.Insert("a", "thing", []byte(`2`))
	})
	require.ErrorIs(t, err, ErrAlreadyExists)

	// Within one transaction.
	err = store.Exec(ctx, func(tx Tx) error {
		if err := tx.Insert("b", "thing", []byte(`1`)); err != nil {
			return err
		}
		return tx.Insert("b", "thing", []byte(`2`))
	})
	require.ErrorIs(t, err, ErrAlreadyExists)

	// The record kept the first write.
	require.NoError(t, store.View(ctx, func(tx Tx) error {
		data, err := tx.Get("a")
		require.NoError(t, err)
		assert.Equal(t, []byte(`1`), data)
		return nil
	}))
}

func TestMemStore_UpdateRequiresExisting(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	err := store.Exec(ctx, func(tx Tx) error {
		return tx.Update("missing", []byte(`1`))
	})
	require.ErrorIs(t, err, ErrNotFound)

	// An update sees the insert of its own transaction.
	require.NoError(t, store.Exec(ctx, func(tx Tx) error {
		if err := tx.Insert("a", "thing", []byte(`1`)); err != nil {
			return err
		}
		return tx.Update("a", []byte(`2`))
	}))
	require.NoError(t, store.View(ctx, func(tx Tx) error {
		data, err := tx.Get("a")
		require.NoError(t, err)
		assert.Equal(t, []byte(`2`), data)
		return nil
	}))
}

func TestMemStore_Vaults(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	// Vaults start at zero; debits never go negative.
	err := store.Exec(ctx, func(tx Tx) error {
		return tx.Debit("vault", 1)
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	err = store.Exec(ctx, func(tx Tx) error {
		return tx.Credit("vault", -5)
	})
	require.ErrorIs(t, err, ErrInvalidAmount)

	require.NoError(t, store.Exec(ctx, func(tx Tx) error {
		if err := tx.Credit("vault", 100); err != nil {
			return err
		}
		return tx.Debit("vault", 30)
	}))

	require.NoError(t, store.View(ctx, func(tx Tx) error {
		balance, err := tx.Balance("vault")
		require.NoError(t, err)
		assert.Equal(t, int64(70), balance)
		return nil
	}))
}

func TestMemStore_ListIndexOrdered(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	require.NoError(t, store.Exec(ctx, func(tx Tx) error {
		for _, kv := range [][2]string{
			{"t:000000000002", "c"},
			{"t:000000000000", "a"},
			{"other:1", "x"},
			{"t:000000000001", "b"},
		} {
			if err := tx.PutIndex(kv[0], kv[1]); err != nil {
				return err
			}
		}
		return nil
	}))

	// Values come back in key order, prefix-scoped; the overlay of an open
	// transaction is merged in.
	require.NoError(t, store.Exec(ctx, func(tx Tx) error {
		if err := tx.PutIndex("t:000000000003", "d"); err != nil {
			return err
		}
		values, err := tx.ListIndex("t:")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c", "d"}, values)
		return nil
	}))
}
