package session

import (
	"math/bits"
	"time"
)

// Identity is one candidate session pair plus the name of the strategy that
// derived it. The radio's pair-derivation rule is not documented, so the
// handshake tries a fixed ladder of guesses reverse-engineered from captures.
type Identity struct {
	A   uint32
	B   uint32
	Tag string
}

// Seed is the input to candidate derivation: a previously accepted pair, when
// one has been captured.
type Seed struct {
	CapturedA  uint32
	CapturedB  uint32
	HasCapture bool
}

// Strategy tags, in trial priority order.
const (
	TagTimestamp = "timestamp"
	TagHybrid    = "hybrid"
	TagReversed  = "reversed"
	TagReplay    = "replay"
	TagTransform = "transform"
)

// transformDelta is the arithmetic offset some firmware revisions appear to
// apply to the time-derived pair.
const transformDelta = 0x2C9

// StrategyCount is the number of derivation strategies in the ladder.
const StrategyCount = 5

// Resolver produces session-identity candidates lazily, one per call, in a
// fixed priority order. The trial timestamp is latched on Reset so every
// candidate of one handshake attempt is reproducible from (seed, clock).
type Resolver struct {
	seed  Seed
	clock func() time.Time
	now   uint32
	index int
}

// NewResolver creates a resolver over the given seed. clock defaults to
// time.Now and is injectable for deterministic tests.
func NewResolver(seed Seed, clock func() time.Time) *Resolver {
	if clock == nil {
		clock = time.Now
	}
	r := &Resolver{seed: seed, clock: clock}
	r.Reset()
	return r
}

// Reset restarts the ladder for a fresh handshake attempt and latches a new
// trial timestamp.
func (r *Resolver) Reset() {
	r.now = uint32(r.clock().Unix())
	r.index = 0
}

// Next returns the next candidate in priority order. It returns false when
// the ladder is exhausted. Capture-based strategies are skipped when no pair
// has ever been observed.
func (r *Resolver) Next() (Identity, bool) {
	for r.index < StrategyCount {
		id, ok := r.candidate(r.index)
		r.index++
		if ok {
			return id, true
		}
	}
	return Identity{}, false
}

func (r *Resolver) candidate(index int) (Identity, bool) {
	switch index {
	case 0:
		return Identity{A: r.now, B: r.now ^ 0xFFFF0000, Tag: TagTimestamp}, true
	case 1:
		if !r.seed.HasCapture {
			return Identity{}, false
		}
		return Identity{A: r.seed.CapturedA, B: r.now, Tag: TagHybrid}, true
	case 2:
		// Byte-order-reversed variant of the hybrid pair, falling back to
		// the plain timestamp pair without a capture.
		a, b := r.now, r.now^0xFFFF0000
		if r.seed.HasCapture {
			a, b = r.seed.CapturedA, r.now
		}
		return Identity{A: bits.ReverseBytes32(a), B: bits.ReverseBytes32(b), Tag: TagReversed}, true
	case 3:
		if !r.seed.HasCapture {
			return Identity{}, false
		}
		return Identity{A: r.seed.CapturedA, B: r.seed.CapturedB, Tag: TagReplay}, true
	case 4:
		return Identity{A: r.now + transformDelta, B: r.now - transformDelta, Tag: TagTransform}, true
	default:
		return Identity{}, false
	}
}
