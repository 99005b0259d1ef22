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

// Package waiter defines the readiness vocabulary shared by pollable objects
// and the reactor that waits on them.
//
// A pollable object exposes a host file descriptor which becomes readable
// when the object has something to consume. The expected pattern in a
// reactor loop is:
//
//	for {
//		n, err := poller.Wait(-1, events)
//		...
//		for _, ev := range events[:n] {
//			if ev.Token == myToken && ev.Mask&waiter.ReadableEvents != 0 {
//				// Consume until empty; the object stays readable
//				// until it has been drained.
//				obj.Drain()
//			}
//		}
//	}
package waiter

// EventMask represents io events as used in the poll() syscall.
type EventMask uint32

// Events that waiters can wait on. The meaning is the same as those in the
// poll() syscall.
const (
	EventIn   EventMask = 0x01 // POLLIN
	EventPri  EventMask = 0x02 // POLLPRI
	EventOut  EventMask = 0x04 // POLLOUT
	EventErr  EventMask = 0x08 // POLLERR
	EventHUp  EventMask = 0x10 // POLLHUP
	EventNVal EventMask = 0x20 // POLLNVAL

	ReadableEvents EventMask = EventIn | EventPri
	WritableEvents EventMask = EventOut
)

// Pollable is an object that can be registered with a reactor.
type Pollable interface {
	// FD returns the host file descriptor to register. It becomes
	// readable when the object has events to consume.
	FD() int

	// Readiness returns what the object is currently ready for, restricted
	// to mask. EventHUp and EventErr may be returned regardless of mask.
	Readiness(mask EventMask) EventMask
}

// String implements fmt.Stringer.
func (m EventMask) String() string {
	if m == 0 {
		return "0"
	}
	names := []struct {
		bit  EventMask
		name string
	}{
		{EventIn, "IN"},
		{EventPri, "PRI"},
		{EventOut, "OUT"},
		{EventErr, "ERR"},
		{EventHUp, "HUP"},
		{EventNVal, "NVAL"},
	}
	s := ""
	for _, n := range names {
		if m&n.bit != 0 {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	return s
}
