package lotto

import (
	"context"
	"fmt"

	"lotto-settlement/internal/addr"
	"lotto-settlement/internal/ledger"
	"lotto-settlement/internal/models"
)

// RoundView is a round snapshot together with its live escrow balance.
type RoundView struct {
	Addr   string        `json:"addr"`
	Round  *models.Round `json:"round"`
	Escrow int64         `json:"escrow"`
}

// GetRound returns the round record and its current escrow balance.
func (e *Engine) GetRound(ctx context.Context, authority string, round uint64) (*RoundView, error) {
	const op = "lotto.GetRound"

	var view RoundView
	err := e.store.View(ctx, func(tx ledger.Tx) error {
		r, roundAddr, err := e.loadRound(tx, authority, round)
		if err != nil {
			return err
		}
		escrow, err := tx.Balance(r.VaultAddr)
		if err != nil {
			return err
		}
		view = RoundView{Addr: roundAddr, Round: r, Escrow: escrow}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &view, nil
}

// ListRoundTickets returns every ticket of a round in purchase order.
func (e *Engine) ListRoundTickets(ctx context.Context, authority string, round uint64) ([]*models.Ticket, error) {
	const op = "lotto.ListRoundTickets"

	var tickets []*models.Ticket
	err := e.store.View(ctx, func(tx ledger.Tx) error {
		_, roundAddr, err := e.loadRound(tx, authority, round)
		if err != nil {
			return err
		}
		tickets, err = e.roundTickets(tx, roundAddr)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return tickets, nil
}

// UserView is a user account together with its vault balances.
type UserView struct {
	Addr    string              `json:"addr"`
	Account *models.UserAccount `json:"account"`
	Rewards int64               `json:"rewards"`
	Wallet  int64               `json:"wallet"`
}

// GetUserAccount returns the account record plus rewards and wallet balances.
func (e *Engine) GetUserAccount(ctx context.Context, owner string) (*UserView, error) {
	const op = "lotto.GetUserAccount"

	var view UserView
	err := e.store.View(ctx, func(tx ledger.Tx) error {
		account, accountAddr, err := e.loadAccount(tx, owner)
		if err != nil {
			return err
		}
		rewards, err := tx.Balance(account.RewardsVaultAddr)
		if err != nil {
			return err
		}
		wallet, err := tx.Balance(addr.WalletVault(owner))
		if err != nil {
			return err
		}
		view = UserView{Addr: accountAddr, Account: account, Rewards: rewards, Wallet: wallet}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &view, nil
}

// ListUserTickets returns the user's tickets for one round in purchase order.
func (e *Engine) ListUserTickets(ctx context.Context, authority, owner string, round uint64) ([]*models.Ticket, error) {
	const op = "lotto.ListUserTickets"

	var tickets []*models.Ticket
	err := e.store.View(ctx, func(tx ledger.Tx) error {
		_, roundAddr, err := e.loadRound(tx, authority, round)
		if err != nil {
			return err
		}
		accountAddr := addr.UserAccount(owner)
		addrs, err := tx.ListIndex(calcUserTicketPrefix(accountAddr, roundAddr))
		if err != nil {
			return err
		}
		for _, a := range addrs {
			t, err := e.loadTicket(tx, a)
			if err != nil {
				return err
			}
			tickets = append(tickets, t)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return tickets, nil
}

// ListEvents returns the authority's event log in sequence order.
func (e *Engine) ListEvents(ctx context.Context, authority string) ([]*models.Event, error) {
	const op = "lotto.ListEvents"

	var events []*models.Event
	err := e.store.View(ctx, func(tx ledger.Tx) error {
		addrs, err := tx.ListIndex(calcEventPrefix(authority))
		if err != nil {
			return err
		}
		for _, a := range addrs {
			data, err := tx.Get(a)
			if err != nil {
				return err
			}
			var ev models.Event
			if err := models.Decode(data, &ev); err != nil {
				return err
			}
			events = append(events, &ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return events, nil
}
