package oracle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitReveal(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	commitment, err := svc.Commit(ctx, "round-0", now.Add(time.Minute))
	require.NoError(t, err)
	assert.NotEmpty(t, commitment.RequestID)
	assert.Len(t, commitment.CommitHash, 64)

	// Before the reveal time the entropy is held back.
	_, err = svc.Reveal(ctx, commitment.RequestID)
	require.ErrorIs(t, err, ErrRandomnessNotResolved)

	now = now.Add(2 * time.Minute)
	entropy, err := svc.Reveal(ctx, commitment.RequestID)
	require.NoError(t, err)
	require.Len(t, entropy, EntropySize)

	// The reveal always verifies against the published hash.
	assert.True(t, VerifyReveal(commitment.CommitHash, entropy))
	assert.False(t, VerifyReveal(commitment.CommitHash, make([]byte, EntropySize)))
	assert.False(t, VerifyReveal(commitment.CommitHash, entropy[:EntropySize-1]))
}

func TestReveal_UnknownRequest(t *testing.T) {
	svc := NewService()
	_, err := svc.Reveal(context.Background(), "nope")
	require.ErrorIs(t, err, ErrUnknownRequest)
}

func TestRetryReveal(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	commitment, err := svc.Commit(ctx, "round-0", now.Add(time.Minute))
	require.NoError(t, err)

	// All attempts exhausted while unresolved.
	_, err = RetryReveal(ctx, svc, commitment.RequestID, Policy{Attempts: 3, Delay: time.Millisecond})
	require.ErrorIs(t, err, ErrRandomnessNotResolved)

	// Non-transient failures are not retried.
	_, err = RetryReveal(ctx, svc, "nope", Policy{Attempts: 3, Delay: time.Millisecond})
	require.ErrorIs(t, err, ErrUnknownRequest)

	now = now.Add(2 * time.Minute)
	entropy, err := RetryReveal(ctx, svc, commitment.RequestID, Policy{Attempts: 3, Delay: time.Millisecond})
	require.NoError(t, err)
	assert.True(t, VerifyReveal(commitment.CommitHash, entropy))
}

func TestRetryReveal_ContextCancelled(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(WithClock(func() time.Time { return now }))

	commitment, err := svc.Commit(context.Background(), "round-0", now.Add(time.Minute))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = RetryReveal(ctx, svc, commitment.RequestID, Policy{Attempts: 5, Delay: time.Hour})
	require.ErrorIs(t, err, context.Canceled)
}
