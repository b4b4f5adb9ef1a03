// Package models holds the persisted record types. Every record carries an
// explicit schema version so stored state stays decodable across layout
// changes; SchemaVersion 2 is the canonical (tiered) layout.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

const SchemaVersion = 2

// Entity kinds, stored next to each record for forward-compatible decoding.
const (
	KindRegistry    = "registry"
	KindRound       = "round"
	KindTicket      = "ticket"
	KindUserAccount = "user_account"
	KindBurnState   = "burn_state"
	KindEmitter     = "event_emitter"
	KindEvent       = "event"
)

// RoundState is the round lifecycle. It only ever moves forward.
type RoundState int

const (
	RoundNotStarted RoundState = iota
	RoundOpen
	RoundClosed
	RoundFinished
)

func (s RoundState) String() string {
	switch s {
	case RoundNotStarted:
		return "not_started"
	case RoundOpen:
		return "open"
	case RoundClosed:
		return "closed"
	case RoundFinished:
		return "finished"
	default:
		return fmt.Sprintf("round_state(%d)", int(s))
	}
}

// Tier is one of the four independent prize categories.
type Tier int

const (
	TierJackpot Tier = iota
	Tier1
	Tier2
	Tier3
)

// TierCount is the number of prize tiers.
const TierCount = 4

func (t Tier) Valid() bool { return t >= TierJackpot && t <= Tier3 }

func (t Tier) String() string {
	switch t {
	case TierJackpot:
		return "jackpot"
	case Tier1:
		return "tier1"
	case Tier2:
		return "tier2"
	case Tier3:
		return "tier3"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// MatchPositions is how many leading ticket positions must equal the tier's
// winning numbers: all 6 for the jackpot down to the first 3 for tier 3.
func (t Tier) MatchPositions() int {
	switch t {
	case TierJackpot:
		return 6
	case Tier1:
		return 5
	case Tier2:
		return 4
	default:
		return 3
	}
}

// RequiredMask is MatchPositions as a position bitmask.
func (t Tier) RequiredMask() uint8 {
	return uint8(1<<t.MatchPositions()) - 1
}

// PoolShareBps is the tier's slice of the escrow pool in basis points.
// The unallocated remainder (500 bps) is the house share swept to the
// buy-and-burn vault.
func (t Tier) PoolShareBps() int64 {
	switch t {
	case TierJackpot:
		return 5000
	case Tier1:
		return 2000
	case Tier2:
		return 1500
	default:
		return 1000
	}
}

// UpdateState tracks whether a tier's winning numbers have been written.
// Two-state enum rather than a bool so a third state can be added without a
// layout break.
type UpdateState int

const (
	NumbersNotUpdated UpdateState = iota
	NumbersUpdated
)

// DisbursedState tracks whether a tier's prize pool has been paid out.
type DisbursedState int

const (
	NotDisbursed DisbursedState = iota
	Disbursed
)

// MaxNumbers are the exclusive upper bounds per ticket position: the first
// five numbers are drawn in [0,9), the jackpot position in [0,49).
var MaxNumbers = [6]uint8{9, 9, 9, 9, 9, 49}

// Registry counts the rounds created by an authority; round numbers are
// issued strictly sequentially from it.
type Registry struct {
	SchemaVersion int    `json:"schema_version"`
	Authority     string `json:"authority"`
	RoundCount    uint64 `json:"round_count"`
}

// WinningSlot is one tier's winning-number slot on a round: the drawn
// combination, the two independent lifecycle flags, the number of distinct
// tickets that matched it, and the pool fixed for it at processing time.
type WinningSlot struct {
	Numbers     [6]uint8       `json:"numbers"`
	NumbersSet  UpdateState    `json:"numbers_set"`
	Disbursed   DisbursedState `json:"disbursed"`
	WinnerCount uint32         `json:"winner_count"`
	PrizePool   int64          `json:"prize_pool"`
}

// Round is the core aggregate: one instance of the lottery.
type Round struct {
	SchemaVersion int    `json:"schema_version"`
	Authority     string `json:"authority"`
	Round         uint64 `json:"round"`
	Name          string `json:"name"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	TicketPrice int64    `json:"ticket_price"`
	TicketsSold uint64   `json:"tickets_sold"`
	VaultAddr   string   `json:"vault_addr"`
	MaxNumbers  [6]uint8 `json:"max_numbers"`

	OracleRequestID  string `json:"oracle_request_id"`
	OracleCommitHash string `json:"oracle_commit_hash"`

	State    RoundState `json:"state"`
	Archived bool       `json:"archived"`

	Jackpot WinningSlot `json:"jackpot"`
	Tier1   WinningSlot `json:"tier1"`
	Tier2   WinningSlot `json:"tier2"`
	Tier3   WinningSlot `json:"tier3"`
}

// Slot returns the tier's winning slot.
func (r *Round) Slot(t Tier) *WinningSlot {
	switch t {
	case TierJackpot:
		return &r.Jackpot
	case Tier1:
		return &r.Tier1
	case Tier2:
		return &r.Tier2
	default:
		return &r.Tier3
	}
}

// NoWinningTier is the WinningTier value of a ticket not declared a winner.
const NoWinningTier = -1

// Ticket is a user's purchased numbers for one round. The settlement
// pipeline is the only writer after purchase.
type Ticket struct {
	SchemaVersion int `json:"schema_version"`

	Owner       string `json:"owner"`
	AccountAddr string `json:"account_addr"`
	RoundAddr   string `json:"round_addr"`
	Round       uint64 `json:"round"`

	TicketNumber uint64    `json:"ticket_number"`
	Numbers      [6]uint8  `json:"numbers"`
	TicketPrice  int64     `json:"ticket_price"`
	BuyTime      time.Time `json:"buy_time"`

	// Settlement state. CheckedMask records which positions crankWinners
	// has verified so far; WinningTier stays NoWinningTier until declared.
	CheckedMask    uint8     `json:"checked_mask"`
	CheckTime      time.Time `json:"check_time"`
	WinningTier    int       `json:"winning_tier"`
	DuplicateCount uint32    `json:"duplicate_count"`
	PrizeAmount    int64     `json:"prize_amount"`
}

// ClaimRecord is one entry of the bounded per-user claim history. The
// history is for auditability only; balances live in the vaults.
type ClaimRecord struct {
	ClaimedAmount int64     `json:"claimed_amount"`
	CreatedAt     time.Time `json:"created_at"`
}

// ClaimHistoryLimit bounds the claim history ring.
const ClaimHistoryLimit = 64

// UserTier is the user's loyalty tier. Only Bronze exists today.
type UserTier int

const (
	TierBronze UserTier = iota
)

// UserAccount is created lazily on a user's first interaction.
type UserAccount struct {
	SchemaVersion int `json:"schema_version"`

	Owner            string    `json:"owner"`
	RewardsVaultAddr string    `json:"rewards_vault_addr"`
	Tier             UserTier  `json:"tier"`
	CreatedAt        time.Time `json:"created_at"`

	TotalTicketsPurchased uint64    `json:"total_tickets_purchased"`
	TotalAmountWon        int64     `json:"total_amount_won"`
	TotalAmountClaimed    int64     `json:"total_amount_claimed"`
	LastClaimedAt         time.Time `json:"last_claimed_at"`

	ReferralCount   uint64 `json:"referral_count"`
	ReferralRevenue int64  `json:"referral_revenue"`

	ClaimHistory []ClaimRecord `json:"claim_history"`
}

// AppendClaim appends to the bounded claim history, dropping the oldest
// entries when full.
func (u *UserAccount) AppendClaim(rec ClaimRecord) {
	u.ClaimHistory = append(u.ClaimHistory, rec)
	if len(u.ClaimHistory) > ClaimHistoryLimit {
		u.ClaimHistory = u.ClaimHistory[len(u.ClaimHistory)-ClaimHistoryLimit:]
	}
}

// BurnState tracks the house share swept out of finished rounds.
type BurnState struct {
	SchemaVersion int    `json:"schema_version"`
	Authority     string `json:"authority"`
	BurnVaultAddr string `json:"burn_vault_addr"`
	TotalSwept    int64  `json:"total_swept"`
}

// Emitter issues sequence numbers for the append-only event log.
type Emitter struct {
	SchemaVersion int    `json:"schema_version"`
	Authority     string `json:"authority"`
	NextSeq       uint64 `json:"next_seq"`
}

// Event types appended by the settlement pipeline.
const (
	EventStartRound        = "start_round"
	EventBuyTicket         = "buy_ticket"
	EventCloseRound        = "close_round"
	EventProcessNumbers    = "process_winning_numbers"
	EventDuplicateNumbers  = "duplicate_winning_numbers"
	EventCrankWinner       = "crank_winner"
	EventTransferWinnings  = "transfer_winning_amount"
	EventFinishRound       = "finish_round"
	EventSweepToBurnVault  = "sweep_to_burn_vault"
	EventClaimRewards      = "claim_user_rewards"
	EventCreateUserAccount = "create_user_account"
)

// Event is one entry of the append-only event log.
type Event struct {
	SchemaVersion int             `json:"schema_version"`
	Seq           uint64          `json:"seq"`
	Type          string          `json:"type"`
	Time          time.Time       `json:"time"`
	Data          json.RawMessage `json:"data"`
}

// Encode serializes a record for storage.
func Encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// All model types are plain data; marshal cannot fail at runtime.
		panic(fmt.Sprintf("models: encode: %v", err))
	}
	return b
}

// Decode deserializes a stored record.
func Decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("models: decode: %w", err)
	}
	return nil
}
