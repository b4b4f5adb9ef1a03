// Package lotto implements the round-based lottery settlement protocol:
// round lifecycle, ticket issuance, oracle-driven winning numbers, tiered
// winner matching and idempotent prize disbursement. Every operation runs
// as one atomic ledger transaction; re-running a completed step fails with
// a typed already-done error rather than applying twice.
package lotto

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lotto-settlement/internal/addr"
	"lotto-settlement/internal/ledger"
	"lotto-settlement/internal/lib/logger/sl"
	"lotto-settlement/internal/models"
	"lotto-settlement/internal/oracle"
)

// Notifier receives out-of-band operator notifications. May be nil.
type Notifier interface {
	DuplicateWinners(round uint64, tier models.Tier, count uint32)
}

// Engine executes the settlement protocol against a ledger store.
type Engine struct {
	store    ledger.Store
	oracle   oracle.Oracle
	log      *slog.Logger
	notifier Notifier
	now      func() time.Time
}

type EngineOption func(*Engine)

// WithClock pins the engine clock; tests use it to step over round ends.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func WithNotifier(n Notifier) EngineOption {
	return func(e *Engine) { e.notifier = n }
}

func NewEngine(store ledger.Store, orc oracle.Oracle, log *slog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		store:  store,
		oracle: orc,
		log:    log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartRound opens the next round for an authority: it allocates the round
// and its escrow vault, commits the round to a future oracle reveal and
// bumps the registry counter. Round numbers must be strictly sequential.
func (e *Engine) StartRound(ctx context.Context, authority string, round uint64, ticketPrice int64, duration time.Duration, name string) (string, error) {
	const op = "lotto.StartRound"

	if ticketPrice <= 0 || duration <= 0 {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidRound)
	}

	now := e.now()
	commitment, err := e.oracle.Commit(ctx, addr.Round(authority, round), now.Add(duration))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	roundAddr := addr.Round(authority, round)
	err = e.store.Exec(ctx, func(tx ledger.Tx) error {
		reg, err := e.getOrCreateRegistry(tx, authority)
		if err != nil {
			return err
		}
		if round != reg.RoundCount {
			return ErrRoundNumbersAreSequential
		}

		r := &models.Round{
			SchemaVersion:    models.SchemaVersion,
			Authority:        authority,
			Round:            round,
			Name:             name,
			StartTime:        now,
			EndTime:          now.Add(duration),
			TicketPrice:      ticketPrice,
			VaultAddr:        addr.RoundVault(roundAddr),
			MaxNumbers:       models.MaxNumbers,
			OracleRequestID:  commitment.RequestID,
			OracleCommitHash: commitment.CommitHash,
			State:            models.RoundOpen,
		}
		if err := tx.Insert(roundAddr, models.KindRound, models.Encode(r)); err != nil {
			return err
		}

		reg.RoundCount++
		if err := tx.Update(addr.Registry(authority), models.Encode(reg)); err != nil {
			return err
		}

		return e.appendEvent(tx, authority, models.EventStartRound, map[string]any{
			"round":        round,
			"round_name":   name,
			"ticket_price": ticketPrice,
			"start_time":   r.StartTime,
			"end_time":     r.EndTime,
			"round_addr":   roundAddr,
			"vault_addr":   r.VaultAddr,
		})
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	e.log.Info("round started",
		slog.String("op", op),
		slog.Uint64("round", round),
		slog.Int64("ticket_price", ticketPrice),
		slog.String("round_addr", roundAddr),
	)
	return roundAddr, nil
}

// BuyTicket purchases numbers for an open round. The ticket address is
// derived from (round, account, numbers); buying the same combination twice
// fails with ErrTicketAlreadyExists at the insert, not via an ownership scan.
func (e *Engine) BuyTicket(ctx context.Context, authority, owner string, round uint64, numbers [6]uint8) (string, error) {
	const op = "lotto.BuyTicket"

	var ticketAddr string
	err := e.store.Exec(ctx, func(tx ledger.Tx) error {
		r, roundAddr, err := e.loadRound(tx, authority, round)
		if err != nil {
			return err
		}
		if r.State != models.RoundOpen {
			return ErrLottoGameNotOpen
		}
		now := e.now()
		if !now.Before(r.EndTime) {
			return ErrLottoGameEnded
		}
		for i, n := range numbers {
			if n >= r.MaxNumbers[i] {
				return ErrInvalidNumbersInTicket
			}
		}

		account, accountAddr, err := e.getOrCreateAccount(tx, authority, owner)
		if err != nil {
			return err
		}

		if err := tx.Debit(addr.WalletVault(owner), r.TicketPrice); err != nil {
			if errors.Is(err, ledger.ErrInsufficientFunds) {
				return ErrInsufficientFunds
			}
			return err
		}
		if err := tx.Credit(r.VaultAddr, r.TicketPrice); err != nil {
			return err
		}

		ticket := &models.Ticket{
			SchemaVersion: models.SchemaVersion,
			Owner:         owner,
			AccountAddr:   accountAddr,
			RoundAddr:     roundAddr,
			Round:         round,
			TicketNumber:  r.TicketsSold,
			Numbers:       numbers,
			TicketPrice:   r.TicketPrice,
			BuyTime:       now,
			WinningTier:   models.NoWinningTier,
		}
		ticketAddr = addr.Ticket(roundAddr, accountAddr, numbers)
		if err := tx.Insert(ticketAddr, models.KindTicket, models.Encode(ticket)); err != nil {
			if errors.Is(err, ledger.ErrAlreadyExists) {
				return ErrTicketAlreadyExists
			}
			return err
		}
		if err := tx.PutIndex(calcRoundTicketKey(roundAddr, ticket.TicketNumber), ticketAddr); err != nil {
			return err
		}
		if err := tx.PutIndex(calcUserTicketKey(accountAddr, roundAddr, ticket.TicketNumber), ticketAddr); err != nil {
			return err
		}

		r.TicketsSold++
		if err := tx.Update(roundAddr, models.Encode(r)); err != nil {
			return err
		}
		account.TotalTicketsPurchased++
		if err := tx.Update(accountAddr, models.Encode(account)); err != nil {
			return err
		}

		return e.appendEvent(tx, authority, models.EventBuyTicket, map[string]any{
			"round":         round,
			"owner":         owner,
			"numbers":       numbers,
			"ticket_addr":   ticketAddr,
			"ticket_number": ticket.TicketNumber,
			"tickets_sold":  r.TicketsSold,
			"price":         r.TicketPrice,
		})
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	e.log.Info("ticket bought",
		slog.String("op", op),
		slog.Uint64("round", round),
		slog.String("owner", owner),
		slog.String("ticket_addr", ticketAddr),
	)
	return ticketAddr, nil
}

// CloseRound moves an open round to Closed once its end time has passed.
// Anyone may call it; calling early fails, calling again fails already-done.
func (e *Engine) CloseRound(ctx context.Context, authority string, round uint64) error {
	const op = "lotto.CloseRound"

	err := e.store.Exec(ctx, func(tx ledger.Tx) error {
		r, roundAddr, err := e.loadRound(tx, authority, round)
		if err != nil {
			return err
		}
		switch r.State {
		case models.RoundClosed:
			return ErrGameAlreadyClosed
		case models.RoundFinished:
			return ErrLottoGameEnded
		}
		if e.now().Before(r.EndTime) {
			return ErrLottoGameIsStillOpen
		}
		r.State = models.RoundClosed
		if err := tx.Update(roundAddr, models.Encode(r)); err != nil {
			return err
		}
		return e.appendEvent(tx, authority, models.EventCloseRound, map[string]any{
			"round":        round,
			"tickets_sold": r.TicketsSold,
		})
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	e.log.Info("round closed", slog.String("op", op), slog.Uint64("round", round))
	return nil
}

// ProcessWinningNumbers writes the four tier combinations derived from the
// revealed oracle entropy, fixes each tier's prize pool from the escrow
// balance and counts the winning tickets per tier. It runs exactly once per
// round; the reveal must match the commitment taken at start.
func (e *Engine) ProcessWinningNumbers(ctx context.Context, authority string, round uint64, requestID string, entropy []byte) ([]models.Tier, error) {
	const op = "lotto.ProcessWinningNumbers"

	var duplicateTiers []models.Tier
	err := e.store.Exec(ctx, func(tx ledger.Tx) error {
		r, roundAddr, err := e.loadRound(tx, authority, round)
		if err != nil {
			return err
		}
		switch r.State {
		case models.RoundOpen:
			return ErrGameNotClosed
		case models.RoundFinished:
			return ErrLottoGameEnded
		}
		if requestID != r.OracleRequestID {
			return ErrInvalidCrankAccounts
		}
		if !oracle.VerifyReveal(r.OracleCommitHash, entropy) {
			return ErrInvalidCrankAccounts
		}
		if r.Jackpot.NumbersSet == models.NumbersUpdated {
			return ErrWinningNumbersAlreadySet
		}

		escrow, err := tx.Balance(r.VaultAddr)
		if err != nil {
			return err
		}

		for tier := models.TierJackpot; tier <= models.Tier3; tier++ {
			slot := r.Slot(tier)
			slot.Numbers = deriveNumbers(entropy, tier, r.MaxNumbers)
			slot.NumbersSet = models.NumbersUpdated
			slot.PrizePool = escrow * tier.PoolShareBps() / 10000
			if slot.PrizePool < 0 {
				return ErrOverflow
			}
		}

		// Count distinct winning tickets per tier. A ticket counts only for
		// the best tier its numbers reach.
		tickets, err := e.roundTickets(tx, roundAddr)
		if err != nil {
			return err
		}
		for _, t := range tickets {
			if tier, ok := bestTier(r, t.Numbers); ok {
				r.Slot(tier).WinnerCount++
			}
		}

		if err := tx.Update(roundAddr, models.Encode(r)); err != nil {
			return err
		}

		if err := e.appendEvent(tx, authority, models.EventProcessNumbers, map[string]any{
			"round":   round,
			"jackpot": r.Jackpot.Numbers,
			"tier1":   r.Tier1.Numbers,
			"tier2":   r.Tier2.Numbers,
			"tier3":   r.Tier3.Numbers,
		}); err != nil {
			return err
		}

		for tier := models.TierJackpot; tier <= models.Tier3; tier++ {
			if count := r.Slot(tier).WinnerCount; count > 1 {
				duplicateTiers = append(duplicateTiers, tier)
				if err := e.appendEvent(tx, authority, models.EventDuplicateNumbers, map[string]any{
					"round":           round,
					"tier":            tier.String(),
					"numbers":         r.Slot(tier).Numbers,
					"duplicate_count": count,
				}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if e.notifier != nil {
		// Re-read is not needed: duplicateTiers was filled inside the
		// committed transaction.
		for _, tier := range duplicateTiers {
			e.notifyDuplicate(ctx, authority, round, tier)
		}
	}

	e.log.Info("winning numbers processed",
		slog.String("op", op),
		slog.Uint64("round", round),
		slog.Int("duplicate_tiers", len(duplicateTiers)),
	)
	return duplicateTiers, nil
}

func (e *Engine) notifyDuplicate(ctx context.Context, authority string, round uint64, tier models.Tier) {
	var count uint32
	err := e.store.View(ctx, func(tx ledger.Tx) error {
		r, _, err := e.loadRound(tx, authority, round)
		if err != nil {
			return err
		}
		count = r.Slot(tier).WinnerCount
		return nil
	})
	if err != nil {
		e.log.Warn("duplicate notification skipped", sl.Err(err))
		return
	}
	e.notifier.DuplicateWinners(round, tier, count)
}

// CrankWinners verifies up to four positions of one ticket against a tier's
// winning numbers. Index values of -1 are skipped. Once every position the
// tier requires has been verified across calls, the ticket is declared a
// winner for that tier exactly once.
func (e *Engine) CrankWinners(ctx context.Context, authority string, round uint64, ticketAddr string, tier models.Tier, numbers [6]uint8, matchIndexes [4]int) (bool, error) {
	const op = "lotto.CrankWinners"

	if !tier.Valid() {
		return false, fmt.Errorf("%s: %w", op, ErrInvalidWinningTier)
	}

	var declared bool
	err := e.store.Exec(ctx, func(tx ledger.Tx) error {
		r, roundAddr, err := e.loadRound(tx, authority, round)
		if err != nil {
			return err
		}
		if r.State == models.RoundFinished {
			return ErrLottoGameEnded
		}
		if r.State != models.RoundClosed || e.now().Before(r.EndTime) {
			return ErrLottoGameIsStillOpen
		}
		slot := r.Slot(tier)
		if slot.NumbersSet != models.NumbersUpdated {
			return tierNotUpdatedErr(tier)
		}
		if numbers != slot.Numbers {
			return ErrInvalidCrankAccounts
		}

		ticket, err := e.loadTicket(tx, ticketAddr)
		if err != nil {
			return err
		}
		if ticket.RoundAddr != roundAddr {
			return ErrInvalidRound
		}
		if ticket.WinningTier != models.NoWinningTier {
			return ErrAlreadyDeclaredWinner
		}

		live := 0
		for _, idx := range matchIndexes {
			if idx == -1 {
				continue
			}
			if idx < 0 || idx > 5 {
				return ErrInvalidWinningNumberIndex
			}
			live++
			if ticket.Numbers[idx] != slot.Numbers[idx] {
				return ErrInvalidWinningTicket
			}
			ticket.CheckedMask |= 1 << idx
		}
		if live == 0 {
			return ErrWinningNumberIndexNotProvided
		}
		ticket.CheckTime = e.now()

		if ticket.CheckedMask&tier.RequiredMask() == tier.RequiredMask() {
			// Tickets settle at the best tier their numbers reach;
			// declaring them at a lesser tier would skew both pools.
			best, ok := bestTier(r, ticket.Numbers)
			if !ok || best != tier {
				return ErrInvalidWinningTier
			}
			ticket.WinningTier = int(tier)
			declared = true
		}

		if err := tx.Update(ticketAddr, models.Encode(ticket)); err != nil {
			return err
		}
		if !declared {
			return nil
		}
		return e.appendEvent(tx, authority, models.EventCrankWinner, map[string]any{
			"round":       round,
			"tier":        tier.String(),
			"ticket_addr": ticketAddr,
			"owner":       ticket.Owner,
		})
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if declared {
		e.log.Info("winner declared",
			slog.String("op", op),
			slog.Uint64("round", round),
			slog.String("tier", tier.String()),
			slog.String("ticket_addr", ticketAddr),
		)
	}
	return declared, nil
}

// CrankTransferWinningAmount pays a tier's pool out of escrow into every
// winner's rewards vault, splitting it evenly by duplicateCount with floor
// division; the remainder stays in escrow. The tier's disbursed flag makes
// the step run exactly once.
func (e *Engine) CrankTransferWinningAmount(ctx context.Context, authority string, round uint64, tier models.Tier, numbers [6]uint8, duplicateCount uint32) (int64, error) {
	const op = "lotto.CrankTransferWinningAmount"

	if !tier.Valid() {
		return 0, fmt.Errorf("%s: %w", op, ErrInvalidWinningTier)
	}

	var perWinner int64
	err := e.store.Exec(ctx, func(tx ledger.Tx) error {
		r, roundAddr, err := e.loadRound(tx, authority, round)
		if err != nil {
			return err
		}
		if r.State == models.RoundFinished {
			return ErrLottoGameEnded
		}
		if r.State != models.RoundClosed {
			return ErrGameNotClosed
		}
		slot := r.Slot(tier)
		if slot.NumbersSet != models.NumbersUpdated {
			return tierNotUpdatedErr(tier)
		}
		if numbers != slot.Numbers {
			return ErrInvalidCrankAccounts
		}
		if slot.Disbursed == models.Disbursed {
			return tierAlreadyDisbursedErr(tier)
		}

		winners, err := e.declaredWinners(tx, roundAddr, tier)
		if err != nil {
			return err
		}
		// The supplied duplicate count must agree with both the processed
		// winner count and the tickets actually declared by the cranks.
		if duplicateCount == 0 ||
			uint32(len(winners)) != duplicateCount ||
			slot.WinnerCount != duplicateCount {
			return ErrNoDuplicateTicketsFound
		}

		perWinner = slot.PrizePool / int64(duplicateCount)
		total := perWinner * int64(duplicateCount)
		if total < 0 {
			return ErrOverflow
		}
		if total > 0 {
			if err := tx.Debit(r.VaultAddr, total); err != nil {
				if errors.Is(err, ledger.ErrInsufficientFunds) {
					return ErrNotSufficientRewardsInVault
				}
				return err
			}
		}

		for _, w := range winners {
			w.ticket.DuplicateCount = duplicateCount
			w.ticket.PrizeAmount = perWinner
			if err := tx.Update(w.addr, models.Encode(w.ticket)); err != nil {
				return err
			}

			account, accountAddr, err := e.loadAccount(tx, w.ticket.Owner)
			if err != nil {
				return err
			}
			account.TotalAmountWon += perWinner
			if err := tx.Update(accountAddr, models.Encode(account)); err != nil {
				return err
			}
			if perWinner > 0 {
				if err := tx.Credit(account.RewardsVaultAddr, perWinner); err != nil {
					return err
				}
			}
		}

		slot.Disbursed = models.Disbursed
		if err := tx.Update(roundAddr, models.Encode(r)); err != nil {
			return err
		}

		return e.appendEvent(tx, authority, models.EventTransferWinnings, map[string]any{
			"round":           round,
			"tier":            tier.String(),
			"duplicate_count": duplicateCount,
			"per_winner":      perWinner,
			"total":           total,
		})
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	e.log.Info("tier disbursed",
		slog.String("op", op),
		slog.Uint64("round", round),
		slog.String("tier", tier.String()),
		slog.Int64("per_winner", perWinner),
	)
	return perWinner, nil
}

// FinishRound moves a closed round to Finished once every tier has either
// no winners or a disbursed pool.
func (e *Engine) FinishRound(ctx context.Context, authority string, round uint64) error {
	const op = "lotto.FinishRound"

	err := e.store.Exec(ctx, func(tx ledger.Tx) error {
		r, roundAddr, err := e.loadRound(tx, authority, round)
		if err != nil {
			return err
		}
		if r.State == models.RoundFinished {
			return ErrLottoGameEnded
		}
		if r.State != models.RoundClosed {
			return ErrGameNotClosed
		}
		for tier := models.TierJackpot; tier <= models.Tier3; tier++ {
			slot := r.Slot(tier)
			if slot.NumbersSet != models.NumbersUpdated {
				return tierNotUpdatedErr(tier)
			}
			if slot.WinnerCount > 0 && slot.Disbursed != models.Disbursed {
				return ErrGameNotFinished
			}
		}
		r.State = models.RoundFinished
		if err := tx.Update(roundAddr, models.Encode(r)); err != nil {
			return err
		}
		return e.appendEvent(tx, authority, models.EventFinishRound, map[string]any{
			"round": round,
		})
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	e.log.Info("round finished", slog.String("op", op), slog.Uint64("round", round))
	return nil
}

// CrankTransferToBuyAndBurnVault sweeps whatever escrow remains after
// disbursement (house share plus floor remainders) into the authority's
// buy-and-burn vault. Running it on an already-empty vault is a no-op.
func (e *Engine) CrankTransferToBuyAndBurnVault(ctx context.Context, authority string, round uint64) (int64, error) {
	const op = "lotto.CrankTransferToBuyAndBurnVault"

	var swept int64
	err := e.store.Exec(ctx, func(tx ledger.Tx) error {
		r, _, err := e.loadRound(tx, authority, round)
		if err != nil {
			return err
		}
		if r.State != models.RoundFinished {
			return ErrGameNotFinished
		}

		swept, err = tx.Balance(r.VaultAddr)
		if err != nil {
			return err
		}
		if swept == 0 {
			return nil
		}

		burn, burnAddr, err := e.getOrCreateBurnState(tx, authority)
		if err != nil {
			return err
		}
		if err := tx.Debit(r.VaultAddr, swept); err != nil {
			return err
		}
		if err := tx.Credit(burn.BurnVaultAddr, swept); err != nil {
			return err
		}
		burn.TotalSwept += swept
		if err := tx.Update(burnAddr, models.Encode(burn)); err != nil {
			return err
		}

		return e.appendEvent(tx, authority, models.EventSweepToBurnVault, map[string]any{
			"round":  round,
			"amount": swept,
		})
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	e.log.Info("escrow swept",
		slog.String("op", op),
		slog.Uint64("round", round),
		slog.Int64("amount", swept),
	)
	return swept, nil
}

// ArchiveRound marks a finished, fully swept round as archived. The round
// record is kept; archival only requires its escrow to be empty.
func (e *Engine) ArchiveRound(ctx context.Context, authority string, round uint64) error {
	const op = "lotto.ArchiveRound"

	err := e.store.Exec(ctx, func(tx ledger.Tx) error {
		r, roundAddr, err := e.loadRound(tx, authority, round)
		if err != nil {
			return err
		}
		if r.State != models.RoundFinished {
			return ErrGameNotFinished
		}
		balance, err := tx.Balance(r.VaultAddr)
		if err != nil {
			return err
		}
		if balance != 0 {
			return ErrLottoGameVaultNotEmpty
		}
		r.Archived = true
		return tx.Update(roundAddr, models.Encode(r))
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ClaimUserRewards withdraws from the caller's rewards vault into their
// wallet. Claims never touch any other user's state.
func (e *Engine) ClaimUserRewards(ctx context.Context, authority, owner string, amount int64) error {
	const op = "lotto.ClaimUserRewards"

	err := e.store.Exec(ctx, func(tx ledger.Tx) error {
		account, accountAddr, err := e.loadAccount(tx, owner)
		if err != nil {
			return err
		}
		balance, err := tx.Balance(account.RewardsVaultAddr)
		if err != nil {
			return err
		}
		if balance == 0 {
			return ErrNoRewardsToClaimFromVault
		}
		if amount <= 0 || amount > balance {
			return ErrNotSufficientRewardsInVault
		}

		if err := tx.Debit(account.RewardsVaultAddr, amount); err != nil {
			return err
		}
		if err := tx.Credit(addr.WalletVault(owner), amount); err != nil {
			return err
		}

		now := e.now()
		account.TotalAmountClaimed += amount
		account.LastClaimedAt = now
		account.AppendClaim(models.ClaimRecord{ClaimedAmount: amount, CreatedAt: now})
		if err := tx.Update(accountAddr, models.Encode(account)); err != nil {
			return err
		}

		return e.appendEvent(tx, authority, models.EventClaimRewards, map[string]any{
			"owner":         owner,
			"amount":        amount,
			"total_claimed": account.TotalAmountClaimed,
		})
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	e.log.Info("rewards claimed",
		slog.String("op", op),
		slog.String("owner", owner),
		slog.Int64("amount", amount),
	)
	return nil
}

// CreateUserAccount creates the account and rewards vault for a user ahead
// of their first purchase. Safe to call for an existing user.
func (e *Engine) CreateUserAccount(ctx context.Context, authority, owner string) (string, error) {
	const op = "lotto.CreateUserAccount"

	var accountAddr string
	err := e.store.Exec(ctx, func(tx ledger.Tx) error {
		_, a, err := e.getOrCreateAccount(tx, authority, owner)
		accountAddr = a
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return accountAddr, nil
}

// deriveNumbers maps the revealed entropy to one combination per tier:
// six successive bytes per tier, each reduced modulo its position bound.
func deriveNumbers(entropy []byte, tier models.Tier, bounds [6]uint8) [6]uint8 {
	var out [6]uint8
	offset := int(tier) * 6
	for i := 0; i < 6; i++ {
		out[i] = entropy[offset+i] % bounds[i]
	}
	return out
}

// bestTier returns the best (lowest) tier whose required leading positions
// all equal the tier's winning numbers.
func bestTier(r *models.Round, numbers [6]uint8) (models.Tier, bool) {
	for tier := models.TierJackpot; tier <= models.Tier3; tier++ {
		slot := r.Slot(tier)
		if slot.NumbersSet != models.NumbersUpdated {
			continue
		}
		matched := true
		for i := 0; i < tier.MatchPositions(); i++ {
			if numbers[i] != slot.Numbers[i] {
				matched = false
				break
			}
		}
		if matched {
			return tier, true
		}
	}
	return 0, false
}

type declaredWinner struct {
	addr   string
	ticket *models.Ticket
}

func (e *Engine) declaredWinners(tx ledger.Tx, roundAddr string, tier models.Tier) ([]declaredWinner, error) {
	addrs, err := tx.ListIndex(calcRoundTicketPrefix(roundAddr))
	if err != nil {
		return nil, err
	}
	var winners []declaredWinner
	for _, a := range addrs {
		t, err := e.loadTicket(tx, a)
		if err != nil {
			return nil, err
		}
		if t.WinningTier == int(tier) {
			winners = append(winners, declaredWinner{addr: a, ticket: t})
		}
	}
	return winners, nil
}

func (e *Engine) roundTickets(tx ledger.Tx, roundAddr string) ([]*models.Ticket, error) {
	addrs, err := tx.ListIndex(calcRoundTicketPrefix(roundAddr))
	if err != nil {
		return nil, err
	}
	tickets := make([]*models.Ticket, 0, len(addrs))
	for _, a := range addrs {
		t, err := e.loadTicket(tx, a)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}

func (e *Engine) loadRound(tx ledger.Tx, authority string, round uint64) (*models.Round, string, error) {
	roundAddr := addr.Round(authority, round)
	data, err := tx.Get(roundAddr)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, "", ErrInvalidRound
		}
		return nil, "", err
	}
	var r models.Round
	if err := models.Decode(data, &r); err != nil {
		return nil, "", err
	}
	return &r, roundAddr, nil
}

func (e *Engine) loadTicket(tx ledger.Tx, ticketAddr string) (*models.Ticket, error) {
	data, err := tx.Get(ticketAddr)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrInvalidWinningTicket
		}
		return nil, err
	}
	var t models.Ticket
	if err := models.Decode(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (e *Engine) loadAccount(tx ledger.Tx, owner string) (*models.UserAccount, string, error) {
	accountAddr := addr.UserAccount(owner)
	data, err := tx.Get(accountAddr)
	if err != nil {
		return nil, "", err
	}
	var a models.UserAccount
	if err := models.Decode(data, &a); err != nil {
		return nil, "", err
	}
	return &a, accountAddr, nil
}

func (e *Engine) getOrCreateAccount(tx ledger.Tx, authority, owner string) (*models.UserAccount, string, error) {
	account, accountAddr, err := e.loadAccount(tx, owner)
	if err == nil {
		return account, accountAddr, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return nil, "", err
	}

	accountAddr = addr.UserAccount(owner)
	account = &models.UserAccount{
		SchemaVersion:    models.SchemaVersion,
		Owner:            owner,
		RewardsVaultAddr: addr.RewardsVault(accountAddr),
		Tier:             models.TierBronze,
		CreatedAt:        e.now(),
	}
	if err := tx.Insert(accountAddr, models.KindUserAccount, models.Encode(account)); err != nil {
		return nil, "", err
	}
	if err := e.appendEvent(tx, authority, models.EventCreateUserAccount, map[string]any{
		"owner":        owner,
		"account_addr": accountAddr,
	}); err != nil {
		return nil, "", err
	}
	return account, accountAddr, nil
}

func (e *Engine) getOrCreateRegistry(tx ledger.Tx, authority string) (*models.Registry, error) {
	regAddr := addr.Registry(authority)
	data, err := tx.Get(regAddr)
	if err == nil {
		var reg models.Registry
		if err := models.Decode(data, &reg); err != nil {
			return nil, err
		}
		return &reg, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return nil, err
	}
	reg := &models.Registry{SchemaVersion: models.SchemaVersion, Authority: authority}
	if err := tx.Insert(regAddr, models.KindRegistry, models.Encode(reg)); err != nil {
		return nil, err
	}
	return reg, nil
}

func (e *Engine) getOrCreateBurnState(tx ledger.Tx, authority string) (*models.BurnState, string, error) {
	burnAddr := addr.BurnState(authority)
	data, err := tx.Get(burnAddr)
	if err == nil {
		var b models.BurnState
		if err := models.Decode(data, &b); err != nil {
			return nil, "", err
		}
		return &b, burnAddr, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return nil, "", err
	}
	b := &models.BurnState{
		SchemaVersion: models.SchemaVersion,
		Authority:     authority,
		BurnVaultAddr: addr.BurnVault(authority),
	}
	if err := tx.Insert(burnAddr, models.KindBurnState, models.Encode(b)); err != nil {
		return nil, "", err
	}
	return b, burnAddr, nil
}

func (e *Engine) appendEvent(tx ledger.Tx, authority, eventType string, data map[string]any) error {
	emitterAddr := addr.Emitter(authority)
	var emitter models.Emitter
	raw, err := tx.Get(emitterAddr)
	switch {
	case err == nil:
		if err := models.Decode(raw, &emitter); err != nil {
			return err
		}
	case errors.Is(err, ledger.ErrNotFound):
		emitter = models.Emitter{SchemaVersion: models.SchemaVersion, Authority: authority}
		if err := tx.Insert(emitterAddr, models.KindEmitter, models.Encode(&emitter)); err != nil {
			return err
		}
	default:
		return err
	}

	event := &models.Event{
		SchemaVersion: models.SchemaVersion,
		Seq:           emitter.NextSeq,
		Type:          eventType,
		Time:          e.now(),
		Data:          models.Encode(data),
	}
	eventAddr := addr.Event(authority, event.Seq)
	if err := tx.Insert(eventAddr, models.KindEvent, models.Encode(event)); err != nil {
		return err
	}
	if err := tx.PutIndex(calcEventKey(authority, event.Seq), eventAddr); err != nil {
		return err
	}

	emitter.NextSeq++
	return tx.Update(emitterAddr, models.Encode(&emitter))
}
