// Package oracle provides the commit/reveal randomness exchange the
// settlement pipeline draws winning numbers from. The authority commits a
// round to a future reveal time when it starts; after that time the held-back
// entropy is revealed and always verifies against the published hash.
package oracle

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EntropySize is the fixed size of a revealed entropy buffer.
const EntropySize = 32

var (
	// ErrRandomnessNotResolved is transient: the committed reveal time has
	// not been reached yet. Callers retry with backoff.
	ErrRandomnessNotResolved = errors.New("oracle: randomness not resolved")
	ErrUnknownRequest        = errors.New("oracle: unknown request")
)

// Commitment binds a round to a future entropy reveal.
type Commitment struct {
	RequestID   string
	CommitHash  string
	RevealAfter time.Time
}

// Oracle is what the settlement engine and keeper see.
type Oracle interface {
	Commit(ctx context.Context, key string, revealAfter time.Time) (Commitment, error)
	Reveal(ctx context.Context, requestID string) ([]byte, error)
}

type request struct {
	entropy     []byte
	commitHash  string
	revealAfter time.Time
}

// Service is an in-process Oracle. Entropy is drawn at commit time and held
// back until the reveal time passes, so the commitment is binding.
type Service struct {
	mu       sync.Mutex
	now      func() time.Time
	entropy  func() ([]byte, error)
	requests map[string]*request
}

// Option tweaks a Service; used by tests to pin the clock or the entropy.
type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithEntropy(fn func() ([]byte, error)) Option {
	return func(s *Service) { s.entropy = fn }
}

func NewService(opts ...Option) *Service {
	s := &Service{
		now:      time.Now,
		entropy:  systemEntropy,
		requests: make(map[string]*request),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func systemEntropy() ([]byte, error) {
	buf := make([]byte, EntropySize)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("oracle: read entropy: %w", err)
	}
	return buf, nil
}

// Commit draws entropy for key, publishes its hash and holds the entropy
// back until revealAfter.
func (s *Service) Commit(_ context.Context, key string, revealAfter time.Time) (Commitment, error) {
	entropy, err := s.entropy()
	if err != nil {
		return Commitment{}, err
	}
	sum := sha256.Sum256(entropy)

	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.requests[id] = &request{
		entropy:     entropy,
		commitHash:  hex.EncodeToString(sum[:]),
		revealAfter: revealAfter,
	}
	_ = key // the binding lives in the round record; kept for transport parity
	return Commitment{
		RequestID:   id,
		CommitHash:  hex.EncodeToString(sum[:]),
		RevealAfter: revealAfter,
	}, nil
}

// Reveal returns the entropy for a resolved request, or
// ErrRandomnessNotResolved while the reveal time is still ahead.
func (s *Service) Reveal(_ context.Context, requestID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, ErrUnknownRequest
	}
	if s.now().Before(req.revealAfter) {
		return nil, ErrRandomnessNotResolved
	}
	return append([]byte(nil), req.entropy...), nil
}

// VerifyReveal checks revealed entropy against a commitment hash.
func VerifyReveal(commitHash string, entropy []byte) bool {
	if len(entropy) != EntropySize {
		return false
	}
	sum := sha256.Sum256(entropy)
	return hex.EncodeToString(sum[:]) == commitHash
}
