package session

import (
	"math/bits"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testSeed = Seed{CapturedA: 0xC2B6D119, CapturedB: 0x5F8F361A, HasCapture: true}

func fixedClock(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

func drain(r *Resolver) []Identity {
	var out []Identity
	for {
		id, ok := r.Next()
		if !ok {
			return out
		}
		out = append(out, id)
	}
}

func TestCandidateOrderWithCapture(t *testing.T) {
	r := NewResolver(testSeed, fixedClock(1700000000))
	candidates := drain(r)

	tags := make([]string, len(candidates))
	for i, c := range candidates {
		tags[i] = c.Tag
	}
	assert.Equal(t, []string{TagTimestamp, TagHybrid, TagReversed, TagReplay, TagTransform}, tags)

	ts := uint32(1700000000)
	assert.Equal(t, ts, candidates[0].A)
	assert.Equal(t, testSeed.CapturedA, candidates[1].A, "hybrid keeps the captured A")
	assert.Equal(t, ts, candidates[1].B, "hybrid derives B from the trial time")
	assert.Equal(t, bits.ReverseBytes32(testSeed.CapturedA), candidates[2].A)
	assert.Equal(t, Identity{A: testSeed.CapturedA, B: testSeed.CapturedB, Tag: TagReplay}, candidates[3])
	assert.Equal(t, ts+transformDelta, candidates[4].A)
	assert.Equal(t, ts-transformDelta, candidates[4].B)
}

func TestCandidateOrderWithoutCapture(t *testing.T) {
	r := NewResolver(Seed{}, fixedClock(1700000000))
	candidates := drain(r)

	tags := make([]string, len(candidates))
	for i, c := range candidates {
		tags[i] = c.Tag
	}
	assert.Equal(t, []string{TagTimestamp, TagReversed, TagTransform}, tags,
		"capture-based strategies are skipped without a seed pair")
	assert.Equal(t, bits.ReverseBytes32(uint32(1700000000)), candidates[1].A)
}

func TestResolverDeterministicAcrossResets(t *testing.T) {
	r := NewResolver(testSeed, fixedClock(1700000000))
	first := drain(r)
	r.Reset()
	second := drain(r)
	assert.Equal(t, first, second)
}

func TestResolverLatchesTimePerAttempt(t *testing.T) {
	now := int64(1700000000)
	r := NewResolver(testSeed, func() time.Time {
		now++ // clock drifts between calls
		return time.Unix(now, 0)
	})

	first, ok := r.Next()
	assert.True(t, ok)
	var last Identity
	for {
		id, more := r.Next()
		if !more {
			break
		}
		last = id
	}
	// All candidates of one attempt share the timestamp latched at Reset.
	assert.Equal(t, first.A+transformDelta, last.A)
}

func TestResolverExhausted(t *testing.T) {
	r := NewResolver(Seed{}, fixedClock(1))
	drain(r)
	_, ok := r.Next()
	assert.False(t, ok, "Next after exhaustion must keep returning false")
}
