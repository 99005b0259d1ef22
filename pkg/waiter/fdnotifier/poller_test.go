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

//go:build linux
// +build linux

package fdnotifier

import (
	"errors"
	"testing"
	"time"

	"sigbridge.dev/sigbridge/pkg/eventfd"
	"sigbridge.dev/sigbridge/pkg/waiter"
)

func newEventfd(t *testing.T) eventfd.Eventfd {
	t.Helper()
	efd, err := eventfd.Create()
	if err != nil {
		t.Fatalf("eventfd.Create() failed: %v", err)
	}
	t.Cleanup(func() { efd.Close() })
	return efd
}

func newPoller(t *testing.T) *Poller {
	t.Helper()
	p, err := NewPoller()
	if err != nil {
		t.Fatalf("NewPoller() failed: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPollerLevelTriggered(t *testing.T) {
	const token = 10
	efd := newEventfd(t)
	p := newPoller(t)
	if err := p.Add(efd.FD(), token, waiter.EventIn); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	events := make([]Event, 4)
	if n, err := p.Wait(0, events); err != nil || n != 0 {
		t.Fatalf("Wait() before Notify: got %d, %v, wanted 0, nil", n, err)
	}

	if err := efd.Notify(); err != nil {
		t.Fatalf("Notify() failed: %v", err)
	}
	// Readiness persists until the fd is drained.
	for i := 0; i < 2; i++ {
		n, err := p.Wait(time.Second, events)
		if err != nil {
			t.Fatalf("Wait() failed: %v", err)
		}
		if n != 1 {
			t.Fatalf("Wait(): got %d events, wanted 1", n)
		}
		if events[0].Token != token || events[0].FD != efd.FD() || events[0].Mask&waiter.EventIn == 0 {
			t.Errorf("Wait(): got %+v, wanted token %d fd %d readable", events[0], token, efd.FD())
		}
	}

	if _, err := efd.Drain(); err != nil {
		t.Fatalf("Drain() failed: %v", err)
	}
	if n, err := p.Wait(0, events); err != nil || n != 0 {
		t.Fatalf("Wait() after Drain: got %d, %v, wanted 0, nil", n, err)
	}
}

func TestPollerMultipleTokens(t *testing.T) {
	a, b := newEventfd(t), newEventfd(t)
	p := newPoller(t)
	if err := p.Add(a.FD(), 1, waiter.EventIn); err != nil {
		t.Fatalf("Add(a) failed: %v", err)
	}
	if err := p.Add(b.FD(), 2, waiter.EventIn); err != nil {
		t.Fatalf("Add(b) failed: %v", err)
	}
	if err := b.Notify(); err != nil {
		t.Fatalf("Notify() failed: %v", err)
	}

	events := make([]Event, 4)
	n, err := p.Wait(time.Second, events)
	if err != nil {
		t.Fatalf("Wait() failed: %v", err)
	}
	if n != 1 || events[0].Token != 2 {
		t.Fatalf("Wait(): got %v, wanted a single event for token 2", events[:n])
	}
}

func TestPollerAddRemove(t *testing.T) {
	efd := newEventfd(t)
	p := newPoller(t)
	if err := p.Add(efd.FD(), 1, waiter.EventIn); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if err := p.Add(efd.FD(), 2, waiter.EventIn); err == nil {
		t.Errorf("second Add() of the same fd should fail")
	}
	if err := p.Remove(efd.FD()); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	if err := p.Remove(efd.FD()); err == nil {
		t.Errorf("second Remove() should fail")
	}

	// A removed fd is no longer reported.
	if err := efd.Notify(); err != nil {
		t.Fatalf("Notify() failed: %v", err)
	}
	events := make([]Event, 1)
	if n, err := p.Wait(0, events); err != nil || n != 0 {
		t.Errorf("Wait() after Remove: got %d, %v, wanted 0, nil", n, err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := p.Add(efd.FD(), 1, waiter.EventIn); !errors.Is(err, ErrClosed) {
		t.Errorf("Add() after Close: got %v, wanted ErrClosed", err)
	}
}

func TestNonBlockingPoll(t *testing.T) {
	efd := newEventfd(t)
	if got := NonBlockingPoll(int32(efd.FD()), waiter.EventIn); got&waiter.EventIn != 0 {
		t.Errorf("NonBlockingPoll() on empty eventfd: got %v, wanted not readable", got)
	}
	if err := efd.Notify(); err != nil {
		t.Fatalf("Notify() failed: %v", err)
	}
	if got := NonBlockingPoll(int32(efd.FD()), waiter.EventIn); got&waiter.EventIn == 0 {
		t.Errorf("NonBlockingPoll() after Notify: got %v, wanted readable", got)
	}
}
