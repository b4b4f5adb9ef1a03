package addr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDerive_Deterministic(t *testing.T) {
	a := Round("authority", 3)
	b := Round("authority", 3)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // hex sha-256
}

func TestDerive_FieldBoundaries(t *testing.T) {
	// Length-prefixed fields: shifting bytes across a field boundary must
	// produce a different address.
	a := Derive("tag", "ab", "c")
	b := Derive("tag", "a", "bc")
	assert.NotEqual(t, a, b)

	// The tag participates too.
	assert.NotEqual(t, Derive("x", "a"), Derive("y", "a"))
}

func TestTicket_DistinguishesInputs(t *testing.T) {
	round := Round("authority", 0)
	account := UserAccount("alice")
	other := UserAccount("bob")

	base := Ticket(round, account, [6]uint8{1, 2, 3, 4, 5, 6})
	assert.Equal(t, base, Ticket(round, account, [6]uint8{1, 2, 3, 4, 5, 6}))
	assert.NotEqual(t, base, Ticket(round, account, [6]uint8{1, 2, 3, 4, 5, 7}))
	assert.NotEqual(t, base, Ticket(round, other, [6]uint8{1, 2, 3, 4, 5, 6}))
	assert.NotEqual(t, base, Ticket(Round("authority", 1), account, [6]uint8{1, 2, 3, 4, 5, 6}))
}

func TestAddresses_Disjoint(t *testing.T) {
	// Different entity kinds for the same inputs never collide.
	addrs := []string{
		Registry("a"),
		Round("a", 0),
		RoundVault(Round("a", 0)),
		UserAccount("a"),
		RewardsVault(UserAccount("a")),
		WalletVault("a"),
		BurnState("a"),
		BurnVault("a"),
		Emitter("a"),
		Event("a", 0),
	}
	seen := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		assert.False(t, seen[a], a)
		seen[a] = true
	}
}
