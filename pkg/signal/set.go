// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package signal

import (
	"iter"
	"math/bits"
	"strings"
)

// SignalSet is a set of Signals, one bit per Signal in canonical order.
//
// SignalSet is a value; operations return new sets. A SignalSet converted
// directly from an integer may carry bits that name no Signal; every method
// ignores them, and sets returned by methods never contain them.
type SignalSet uint32

// validBits covers every supported Signal.
const validBits = SignalSet(1)<<NumSignals - 1

// EmptySet is the set containing no signals.
const EmptySet SignalSet = 0

// SetOf returns the set containing exactly sigs. Invalid signals are ignored.
func SetOf(sigs ...Signal) SignalSet {
	var set SignalSet
	for _, s := range sigs {
		if s.IsValid() {
			set |= 1 << s.Index()
		}
	}
	return set
}

// All returns the set of every supported signal.
func All() SignalSet {
	return validBits
}

// SetFromBits constructs a set from a raw bitmask. Bits that do not
// correspond to a supported Signal are dropped.
func SetFromBits(b uint32) SignalSet {
	return SignalSet(b) & validBits
}

// valid returns s without unknown bits.
func (s SignalSet) valid() SignalSet {
	return s & validBits
}

// Bits returns the raw bitmask of the set.
func (s SignalSet) Bits() uint32 {
	return uint32(s.valid())
}

// Contains returns true if sig is in the set.
func (s SignalSet) Contains(sig Signal) bool {
	return sig.IsValid() && s&(1<<sig.Index()) != 0
}

// ContainsAll returns true if every signal of other is in s.
func (s SignalSet) ContainsAll(other SignalSet) bool {
	other = other.valid()
	return s&other == other
}

// Union returns the signals in either set.
func (s SignalSet) Union(other SignalSet) SignalSet {
	return (s | other).valid()
}

// Intersect returns the signals in both sets.
func (s SignalSet) Intersect(other SignalSet) SignalSet {
	return (s & other).valid()
}

// Without returns the signals of s that are not in other.
func (s SignalSet) Without(other SignalSet) SignalSet {
	return (s &^ other).valid()
}

// With returns s plus sig.
func (s SignalSet) With(sig Signal) SignalSet {
	return s.valid() | SetOf(sig)
}

// Len returns the number of signals in the set.
func (s SignalSet) Len() int {
	return bits.OnesCount32(uint32(s.valid()))
}

// IsEmpty returns true if the set contains no signals.
func (s SignalSet) IsEmpty() bool {
	return s.valid() == 0
}

// First returns the lowest signal of the set in canonical order.
func (s SignalSet) First() (Signal, bool) {
	v := s.valid()
	if v == 0 {
		return 0, false
	}
	return Signal(bits.TrailingZeros32(uint32(v)) + 1), true
}

// Signals iterates over the set in canonical order. Each call starts a new
// iteration, so the sequence can be ranged over any number of times.
func (s SignalSet) Signals() iter.Seq[Signal] {
	return func(yield func(Signal) bool) {
		for rem := s.valid(); rem != 0; rem &= rem - 1 {
			if !yield(Signal(bits.TrailingZeros32(uint32(rem)) + 1)) {
				return
			}
		}
	}
}

// Slice returns the signals of the set in canonical order.
func (s SignalSet) Slice() []Signal {
	out := make([]Signal, 0, s.Len())
	for sig := range s.Signals() {
		out = append(out, sig)
	}
	return out
}

// String implements fmt.Stringer, e.g. "Interrupt|Terminate".
func (s SignalSet) String() string {
	if s.IsEmpty() {
		return "(empty)"
	}
	var b strings.Builder
	for sig := range s.Signals() {
		if b.Len() > 0 {
			b.WriteByte('|')
		}
		b.WriteString(sig.String())
	}
	return b.String()
}
