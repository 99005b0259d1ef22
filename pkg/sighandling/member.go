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

package sighandling

import (
	"sync/atomic"

	"sigbridge.dev/sigbridge/pkg/signal"
)

// Notifier is the writable end of a wake channel. Notify must not block or
// allocate; a channel that is already readable may drop the notification.
type Notifier interface {
	Notify() error
}

var lastMemberID atomic.Uint64

// Member is one consumer's subscription to a set of signals. It carries the
// consumer's pending bits, which are set from the delivery path and taken by
// the consumer.
type Member struct {
	id       uint64
	interest signal.SignalSet
	wake     Notifier

	// pending holds signal bits delivered since the last TakePending.
	pending atomic.Uint32

	// detached is set once the member has left its registry; later
	// deliveries from stale snapshots are dropped.
	detached atomic.Bool
}

// NewMember returns a member interested in interest that wakes through wake.
// Bits of interest that name no Signal are dropped.
func NewMember(interest signal.SignalSet, wake Notifier) *Member {
	return &Member{
		id:       lastMemberID.Add(1),
		interest: signal.SetFromBits(interest.Bits()),
		wake:     wake,
	}
}

// ID returns the process-unique id of the member.
func (m *Member) ID() uint64 {
	return m.id
}

// Interest returns the signals the member wants.
func (m *Member) Interest() signal.SignalSet {
	return m.interest
}

// Deliver records sig as pending and wakes the member. Signals outside the
// member's interest are ignored.
//
// Deliver is the delivery path: it only touches atomics and the pre-opened
// wake channel, and never takes a lock.
func (m *Member) Deliver(sig signal.Signal) error {
	if m.detached.Load() || !m.interest.Contains(sig) {
		return nil
	}
	m.pending.Or(uint32(1) << sig.Index())
	return m.wake.Notify()
}

// Pending returns the signals delivered since the last TakePending without
// clearing them.
func (m *Member) Pending() signal.SignalSet {
	return signal.SetFromBits(m.pending.Load())
}

// TakePending atomically returns and clears the pending signals.
func (m *Member) TakePending() signal.SignalSet {
	return signal.SetFromBits(m.pending.Swap(0))
}

// Detach stops all further deliveries to m.
func (m *Member) Detach() {
	m.detached.Store(true)
}

// Detached returns true once Detach has been called.
func (m *Member) Detached() bool {
	return m.detached.Load()
}
