// Package addr derives stable, collision-resistant addresses for every
// entity in the ledger. An address is the hex SHA-256 of an entity tag plus
// the tuple of fields that define the entity, so existence checks are a
// single lookup and "create" is insert-if-absent.
package addr

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"strconv"
)

// Entity tags. Changing a tag is a breaking change for every stored address.
const (
	tagRegistry     = "registry"
	tagRound        = "lotto-game"
	tagRoundVault   = "lotto-game-vault"
	tagTicket       = "lotto-ticket"
	tagUserAccount  = "user-account"
	tagRewardsVault = "user-rewards-vault"
	tagWalletVault  = "user-wallet"
	tagBurnState    = "burn-state"
	tagBurnVault    = "buy-and-burn-vault"
	tagEmitter      = "event-emitter"
	tagEvent        = "event"
)

// Derive hashes the tag and each field with a length prefix, so that
// ("ab","c") and ("a","bc") never collide.
func Derive(tag string, fields ...string) string {
	h := sha256.New()
	writeField(h, tag)
	for _, f := range fields {
		writeField(h, f)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(h hash.Hash, f string) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(f)))
	h.Write(n[:])
	h.Write([]byte(f))
}

func Registry(authority string) string {
	return Derive(tagRegistry, authority)
}

func Round(authority string, round uint64) string {
	return Derive(tagRound, authority, strconv.FormatUint(round, 10))
}

// RoundVault is the escrow vault holding a round's ticket sales.
func RoundVault(roundAddr string) string {
	return Derive(tagRoundVault, roundAddr)
}

// Ticket is defined by the round, the owning user account and the chosen
// numbers. Buying the same numbers twice in a round therefore lands on the
// same address and fails as a duplicate insert.
func Ticket(roundAddr, accountAddr string, numbers [6]uint8) string {
	fields := make([]string, 0, 8)
	fields = append(fields, roundAddr, accountAddr)
	for _, n := range numbers {
		fields = append(fields, strconv.Itoa(int(n)))
	}
	return Derive(tagTicket, fields...)
}

func UserAccount(owner string) string {
	return Derive(tagUserAccount, owner)
}

func RewardsVault(accountAddr string) string {
	return Derive(tagRewardsVault, accountAddr)
}

// WalletVault is the user's external balance the service debits ticket
// purchases from and credits claims to.
func WalletVault(owner string) string {
	return Derive(tagWalletVault, owner)
}

func BurnState(authority string) string {
	return Derive(tagBurnState, authority)
}

func BurnVault(authority string) string {
	return Derive(tagBurnVault, authority)
}

func Emitter(authority string) string {
	return Derive(tagEmitter, authority)
}

func Event(authority string, seq uint64) string {
	return Derive(tagEvent, authority, strconv.FormatUint(seq, 10))
}
