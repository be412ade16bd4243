package atomic_float

import (
	"math"
	"sync/atomic"
)

// AtomicFloat64 encapsulates a float64 for non-locking atomic operations. The value is
// stored as its IEEE-754 bits so the uint64 atomics can operate on it.
type AtomicFloat64 struct {
	bits atomic.Uint64
}

// NewAtomicFloat64 encapsulates a float64 for atomic operations.
func NewAtomicFloat64(val float64) *AtomicFloat64 {
	af := &AtomicFloat64{}
	af.bits.Store(math.Float64bits(val))
	return af
}

// AtomicRead atomically reads the float64.
func (af *AtomicFloat64) AtomicRead() float64 {
	return math.Float64frombits(af.bits.Load())
}

// AtomicAdd attempts once to add @addend. If another writer changed the value in between,
// nothing is written and succeeded is false; callers that need the add to land loop until
// it does, others may drop the update.
func (af *AtomicFloat64) AtomicAdd(addend float64) (newVal float64, succeeded bool) {
	old := af.bits.Load()
	newVal = math.Float64frombits(old) + addend
	succeeded = af.bits.CompareAndSwap(old, math.Float64bits(newVal))
	return
}

// Add adds @addend, retrying until no other writer interferes, and returns the new value.
func (af *AtomicFloat64) Add(addend float64) (newVal float64) {
	for succeeded := false; !succeeded; newVal, succeeded = af.AtomicAdd(addend) {
	}
	return
}

// AtomicSet unconditionally stores @val.
func (af *AtomicFloat64) AtomicSet(val float64) {
	af.bits.Store(math.Float64bits(val))
}
