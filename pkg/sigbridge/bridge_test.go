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

package sigbridge

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
	"sigbridge.dev/sigbridge/pkg/sighandling"
	"sigbridge.dev/sigbridge/pkg/signal"
	"sigbridge.dev/sigbridge/pkg/waiter"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreAnyFunction("os/signal.loop"))
}

// fakeRegistry keeps members without touching process signal state.
type fakeRegistry struct {
	mu      sync.Mutex
	members map[uint64]*sighandling.Member
	err     error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{members: make(map[uint64]*sighandling.Member)}
}

func (r *fakeRegistry) Register(m *sighandling.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.members[m.ID()] = m
	return nil
}

func (r *fakeRegistry) Unregister(m *sighandling.Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.Detach()
	delete(r.members, m.ID())
}

// raise delivers sig to every registered member.
func (r *fakeRegistry) raise(t *testing.T, sig signal.Signal) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if err := m.Deliver(sig); err != nil {
			t.Fatalf("Deliver(%v) failed: %v", sig, err)
		}
	}
}

func (r *fakeRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func newFakeBridge(t *testing.T, r *fakeRegistry, set signal.SignalSet) *Bridge {
	t.Helper()
	b, err := New(set, WithRegistry(r))
	if err != nil {
		t.Fatalf("New(%v) failed: %v", set, err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestNewEmptySet(t *testing.T) {
	if _, err := New(signal.EmptySet, WithRegistry(newFakeRegistry())); !errors.Is(err, ErrEmptySet) {
		t.Errorf("New(EmptySet): got %v, wanted ErrEmptySet", err)
	}
}

func TestNewRegisterFailure(t *testing.T) {
	r := newFakeRegistry()
	r.err = &sighandling.InstallError{Signal: signal.Terminate, Err: errors.New("denied")}
	_, err := New(signal.SetOf(signal.Terminate), WithRegistry(r))
	var ie *sighandling.InstallError
	if !errors.As(err, &ie) {
		t.Fatalf("New(): got %v, wanted *sighandling.InstallError", err)
	}
	if r.len() != 0 {
		t.Errorf("failed New left %d members registered", r.len())
	}
}

func TestDrain(t *testing.T) {
	r := newFakeRegistry()
	b := newFakeBridge(t, r, signal.SetOf(signal.Interrupt, signal.User1))

	if got := b.Readiness(waiter.ReadableEvents); got != 0 {
		t.Errorf("Readiness() before delivery: got %v, wanted 0", got)
	}
	if got, err := b.Drain(); err != nil || !got.IsEmpty() {
		t.Errorf("Drain() before delivery: got %v, %v, wanted empty, nil", got, err)
	}

	r.raise(t, signal.User1)
	r.raise(t, signal.User1)
	r.raise(t, signal.Interrupt)
	if got := b.Readiness(waiter.ReadableEvents); got&waiter.EventIn == 0 {
		t.Errorf("Readiness() after delivery: got %v, wanted IN", got)
	}

	got, err := b.Drain()
	if err != nil {
		t.Fatalf("Drain() failed: %v", err)
	}
	if want := signal.SetOf(signal.Interrupt, signal.User1); got != want {
		t.Errorf("Drain(): got %v, wanted %v", got, want)
	}
	if got := b.Readiness(waiter.ReadableEvents); got != 0 {
		t.Errorf("Readiness() after Drain: got %v, wanted 0", got)
	}
	if got, err := b.Drain(); err != nil || !got.IsEmpty() {
		t.Errorf("second Drain(): got %v, %v, wanted empty, nil", got, err)
	}
}

func TestDrainIgnoresOtherSignals(t *testing.T) {
	r := newFakeRegistry()
	b := newFakeBridge(t, r, signal.SetOf(signal.Hangup))

	r.raise(t, signal.Terminate)
	if got := b.Readiness(waiter.ReadableEvents); got != 0 {
		t.Errorf("Readiness() after unwanted signal: got %v, wanted 0", got)
	}
	if got, err := b.Drain(); err != nil || !got.IsEmpty() {
		t.Errorf("Drain(): got %v, %v, wanted empty, nil", got, err)
	}
}

func TestReceive(t *testing.T) {
	r := newFakeRegistry()
	b := newFakeBridge(t, r, signal.All())

	for _, sig := range []signal.Signal{signal.WindowChange, signal.Terminate, signal.Hangup} {
		r.raise(t, sig)
	}
	var got []signal.Signal
	for {
		sig, ok, err := b.Receive()
		if err != nil {
			t.Fatalf("Receive() failed: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, sig)
	}
	want := []signal.Signal{signal.Hangup, signal.Terminate, signal.WindowChange}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Receive() order mismatch (-want +got):\n%s", diff)
	}
}

func TestDrainRacingDelivery(t *testing.T) {
	r := newFakeRegistry()
	b := newFakeBridge(t, r, signal.SetOf(signal.User2))

	// Each round delivers concurrently with Drain. Whatever Drain misses
	// must leave the descriptor readable.
	for i := 0; i < 1000; i++ {
		done := make(chan struct{})
		go func() {
			defer close(done)
			r.mu.Lock()
			defer r.mu.Unlock()
			for _, m := range r.members {
				m.Deliver(signal.User2)
			}
		}()
		first, err := b.Drain()
		if err != nil {
			t.Fatalf("Drain() failed: %v", err)
		}
		<-done
		if first.Contains(signal.User2) {
			// The eventfd may still be readable from a notify that
			// landed after the drain; that is a spurious wakeup.
			b.Drain()
			continue
		}
		if got := b.Readiness(waiter.ReadableEvents); got&waiter.EventIn == 0 {
			t.Fatalf("round %d: delivery missed by Drain left no wakeup", i)
		}
		if got, err := b.Drain(); err != nil || !got.Contains(signal.User2) {
			t.Fatalf("round %d: second Drain(): got %v, %v, wanted User2", i, got, err)
		}
	}
}

func TestClose(t *testing.T) {
	r := newFakeRegistry()
	b, err := New(signal.SetOf(signal.Quit), WithRegistry(r))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if r.len() != 1 {
		t.Fatalf("registry has %d members, wanted 1", r.len())
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if r.len() != 0 {
		t.Errorf("registry has %d members after Close, wanted 0", r.len())
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close(): got %v, wanted nil", err)
	}
	if _, err := b.Drain(); !errors.Is(err, ErrClosed) {
		t.Errorf("Drain() after Close: got %v, wanted ErrClosed", err)
	}
	if _, _, err := b.Receive(); !errors.Is(err, ErrClosed) {
		t.Errorf("Receive() after Close: got %v, wanted ErrClosed", err)
	}
}

func TestCloseDuringDrain(t *testing.T) {
	for i := 0; i < 100; i++ {
		r := newFakeRegistry()
		b, err := New(signal.SetOf(signal.User1), WithRegistry(r))
		if err != nil {
			t.Fatalf("New() failed: %v", err)
		}

		errc := make(chan error, 1)
		go func() {
			for {
				b.Readiness(waiter.ReadableEvents)
				if _, err := b.Drain(); err != nil {
					errc <- err
					return
				}
			}
		}()
		r.raise(t, signal.User1)
		if err := b.Close(); err != nil {
			t.Fatalf("Close() failed: %v", err)
		}
		// Any error other than ErrClosed means Drain used a closed
		// descriptor.
		if err := <-errc; !errors.Is(err, ErrClosed) {
			t.Fatalf("round %d: Drain() racing Close: got %v, wanted ErrClosed", i, err)
		}
		if got := b.Readiness(waiter.ReadableEvents); got != waiter.EventNVal {
			t.Errorf("Readiness() after Close: got %v, wanted NVAL", got)
		}
	}
}
