package lotto

import (
	"errors"

	"lotto-settlement/internal/models"
)

// Typed protocol errors. Callers route on three classes: retry-later
// (Retryable), invalid request, and already-done (AlreadyApplied) which an
// idempotent caller treats as success.
var (
	// Validation.
	ErrInvalidRound              = errors.New("invalid round")
	ErrRoundNumbersAreSequential = errors.New("round numbers have to be sequential")
	ErrInvalidNumbersInTicket    = errors.New("invalid numbers in ticket")
	ErrInvalidWinningTicket      = errors.New("invalid winning ticket")
	ErrInvalidWinningTier        = errors.New("invalid winning tier")
	ErrWinningNumberIndexNotProvided = errors.New("winning number index is not provided")
	ErrInvalidWinningNumberIndex = errors.New("invalid winning number index")
	ErrNoDuplicateTicketsFound   = errors.New("duplicate count does not match winning tickets found")

	// State.
	ErrLottoGameNotOpen       = errors.New("lotto game not open")
	ErrLottoGameIsStillOpen   = errors.New("lotto game is still open")
	ErrLottoGameEnded         = errors.New("lotto game has ended")
	ErrGameNotClosed          = errors.New("game not closed")
	ErrGameAlreadyClosed      = errors.New("game already closed")
	ErrGameNotFinished        = errors.New("game not finished")
	ErrTicketAlreadyExists    = errors.New("ticket already bought for these numbers")
	ErrAlreadyDeclaredWinner  = errors.New("ticket is already declared winner")
	ErrWinningNumbersAlreadySet = errors.New("winning numbers already set")

	// Per-tier disbursement guards.
	ErrJackpotWinningNumbersNotUpdated = errors.New("jackpot winning numbers not updated")
	ErrTier1WinningNumbersNotUpdated   = errors.New("tier1 winning numbers not updated")
	ErrTier2WinningNumbersNotUpdated   = errors.New("tier2 winning numbers not updated")
	ErrTier3WinningNumbersNotUpdated   = errors.New("tier3 winning numbers not updated")
	ErrJackpotAmountAlreadyDisbursed   = errors.New("jackpot amount already disbursed")
	ErrTier1AmountAlreadyDisbursed     = errors.New("tier1 amount already disbursed")
	ErrTier2AmountAlreadyDisbursed     = errors.New("tier2 amount already disbursed")
	ErrTier3AmountAlreadyDisbursed     = errors.New("tier3 amount already disbursed")

	// Resource.
	ErrInsufficientFunds           = errors.New("insufficient funds")
	ErrNoRewardsToClaimFromVault   = errors.New("no rewards to claim from vault")
	ErrNotSufficientRewardsInVault = errors.New("not sufficient rewards in vault")
	ErrLottoGameVaultNotEmpty      = errors.New("lotto game vault not empty")
	ErrOverflow                    = errors.New("overflow in prize computation")

	// Oracle.
	ErrInvalidCrankAccounts = errors.New("invalid crank accounts")
)

func tierNotUpdatedErr(t models.Tier) error {
	switch t {
	case models.TierJackpot:
		return ErrJackpotWinningNumbersNotUpdated
	case models.Tier1:
		return ErrTier1WinningNumbersNotUpdated
	case models.Tier2:
		return ErrTier2WinningNumbersNotUpdated
	default:
		return ErrTier3WinningNumbersNotUpdated
	}
}

func tierAlreadyDisbursedErr(t models.Tier) error {
	switch t {
	case models.TierJackpot:
		return ErrJackpotAmountAlreadyDisbursed
	case models.Tier1:
		return ErrTier1AmountAlreadyDisbursed
	case models.Tier2:
		return ErrTier2AmountAlreadyDisbursed
	default:
		return ErrTier3AmountAlreadyDisbursed
	}
}

// AlreadyApplied reports whether err means the requested step has already
// happened. Idempotent keepers treat these as success.
func AlreadyApplied(err error) bool {
	switch {
	case errors.Is(err, ErrGameAlreadyClosed),
		errors.Is(err, ErrAlreadyDeclaredWinner),
		errors.Is(err, ErrWinningNumbersAlreadySet),
		errors.Is(err, ErrJackpotAmountAlreadyDisbursed),
		errors.Is(err, ErrTier1AmountAlreadyDisbursed),
		errors.Is(err, ErrTier2AmountAlreadyDisbursed),
		errors.Is(err, ErrTier3AmountAlreadyDisbursed):
		return true
	}
	return false
}

// Retryable reports whether err is transient: the same call can succeed
// later without the request changing.
func Retryable(err error) bool {
	return errors.Is(err, ErrLottoGameIsStillOpen) ||
		errors.Is(err, ErrGameNotClosed) ||
		errors.Is(err, ErrGameNotFinished) ||
		errors.Is(err, ErrJackpotWinningNumbersNotUpdated) ||
		errors.Is(err, ErrTier1WinningNumbersNotUpdated) ||
		errors.Is(err, ErrTier2WinningNumbersNotUpdated) ||
		errors.Is(err, ErrTier3WinningNumbersNotUpdated)
}
