// Package ids produces the correlation identifiers that tie a submitted job
// to its progress channel: UUID client/job ids, ULID event ids, and the
// 16-digit numeric seeds the render pipeline expects.
package ids

import (
	"crypto/rand"
	mrand "math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Generator produces correlation identifiers. Implementations must be safe
// for concurrent use. Inject a deterministic implementation in tests.
type Generator interface {
	// ClientID returns a fresh correlation id for a submission's push channel.
	ClientID() string
	// JobID returns a fresh id for the job itself (prompt_id on the wire).
	JobID() string
	// EventID returns a time-sortable id for a forwarded event.
	EventID() string
	// Seed16 returns a random 16-digit numeric sampler seed in
	// [10^15, 10^16-1].
	Seed16() int64
}

const (
	seedMin = 1_000_000_000_000_000
	seedMax = 9_999_999_999_999_999
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// CreateULID returns a time-sortable ULID encoded as a 26-character string.
func CreateULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return id.String()
}

// NewGenerator returns the default Generator backed by crypto/rand UUIDs and
// monotonic ULIDs.
func NewGenerator() Generator {
	return defaultGenerator{}
}

type defaultGenerator struct{}

func (defaultGenerator) ClientID() string { return uuid.NewString() }
func (defaultGenerator) JobID() string    { return uuid.NewString() }
func (defaultGenerator) EventID() string  { return CreateULID() }

func (defaultGenerator) Seed16() int64 {
	return seedMin + mrand.Int64N(seedMax-seedMin+1)
}
