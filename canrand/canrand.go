// Package canrand is the single seeded pseudo-random source threaded
// through frame, flag and mutation-point randomisation. Re-seeding is
// deterministic: the same seed always reproduces the same bit-for-bit
// stream, which is what lets a compliance run be replayed exactly from
// its recorded seed.
package canrand

import (
	"math/rand"
	"time"

	"cancompliance.dev/canbus"
)

// Source wraps a *rand.Rand. It is not safe for concurrent use: the
// core's concurrency model (see spec §5) is single-threaded
// cooperative, one test owns one Source at a time.
type Source struct {
	rng  *rand.Rand
	seed int64
}

// New returns a Source seeded with seed.
func New(seed int64) *Source {
	return &Source{rng: rand.New(rand.NewSource(seed)), seed: seed}
}

// NewFromTime returns a Source seeded from the wall clock, for
// interactive use where no explicit seed was requested. The chosen
// seed is available from Seed so the caller can log and later replay
// it (see spec §6 get_seed).
func NewFromTime() *Source {
	seed := time.Now().UnixNano()
	return New(seed)
}

// Seed returns the seed this Source was constructed with.
func (s *Source) Seed() int64 {
	return s.seed
}

// Reseed reinitializes the source deterministically from seed.
func (s *Source) Reseed(seed int64) {
	s.rng = rand.New(rand.NewSource(seed))
	s.seed = seed
}

// Intn returns a pseudo-random number in [0,n).
func (s *Source) Intn(n int) int {
	return s.rng.Intn(n)
}

// Int63 returns a non-negative pseudo-random 63-bit integer.
func (s *Source) Int63() int64 {
	return s.rng.Int63()
}

// Bytes fills buf with pseudo-random bytes.
func (s *Source) Bytes(buf []byte) {
	s.rng.Read(buf)
}

// BitVal returns a uniformly random BitVal.
func (s *Source) BitVal() canbus.BitVal {
	if s.Intn(2) == 1 {
		return canbus.Recessive
	}
	return canbus.Dominant
}

// mutableErrorKinds are the BitKinds a compliance test typically
// injects a single-bit error into; they exclude fields the stuffing
// and CRC engines manage themselves (StuffCnt, Crc, CrcDelim) since
// corrupting those is done through dedicated helpers, not a random
// flip.
var mutableErrorKinds = []canbus.BitKind{
	canbus.BaseIdent,
	canbus.ExtIdent,
	canbus.Rtr,
	canbus.Ide,
	canbus.Srr,
	canbus.Dlc,
	canbus.DataField,
	canbus.Ack,
}

// RandomErrorBitKind picks one of the field kinds a test commonly
// corrupts when fuzzing for a detected-error scenario.
func (s *Source) RandomErrorBitKind() canbus.BitKind {
	return mutableErrorKinds[s.Intn(len(mutableErrorKinds))]
}

// RandomBitIndex picks a uniformly random bit index in [0,n).
func (s *Source) RandomBitIndex(n int) int {
	return s.Intn(n)
}
