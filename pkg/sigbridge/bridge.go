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

// Package sigbridge turns process signals into readiness events on a file
// descriptor that an event loop can wait on next to its sockets.
//
// A Bridge owns an eventfd. The process-wide registry records each delivered
// signal in the bridge's pending set and makes the eventfd readable; the event
// loop then calls Drain (or Receive) to find out which signals arrived.
// Multiple bridges may want the same signal, and all of them observe it.
//
// Signals are only routed to the registry's forwarding goroutine if no
// thread is blocking them; see package sigmask for keeping worker threads
// from consuming deliveries.
package sigbridge

import (
	"errors"
	"fmt"
	"sync"

	"sigbridge.dev/sigbridge/pkg/cleanup"
	"sigbridge.dev/sigbridge/pkg/eventfd"
	"sigbridge.dev/sigbridge/pkg/sighandling"
	"sigbridge.dev/sigbridge/pkg/signal"
	"sigbridge.dev/sigbridge/pkg/waiter"
	"sigbridge.dev/sigbridge/pkg/waiter/fdnotifier"
)

var (
	// ErrEmptySet is returned by New for a bridge with no signals.
	ErrEmptySet = errors.New("signal set is empty")

	// ErrClosed is returned by operations on a closed Bridge.
	ErrClosed = errors.New("bridge is closed")
)

// Registry is the subset of *sighandling.Registry used by a Bridge.
type Registry interface {
	Register(m *sighandling.Member) error
	Unregister(m *sighandling.Member)
}

type options struct {
	registry Registry
}

// Option configures New.
type Option func(*options)

// WithRegistry makes the bridge register with r instead of
// sighandling.Default().
func WithRegistry(r Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// Bridge delivers a set of signals to an event loop through a readable file
// descriptor.
//
// Drain and Receive must be called by a single owner at a time. Close may be
// called from any goroutine; it waits for a Drain or Readiness in progress.
type Bridge struct {
	registry Registry
	member   *sighandling.Member

	// reader is the end handed to the event loop. writer is a duplicate
	// used only by the delivery path, so that the two ends can be closed
	// independently.
	reader eventfd.Eventfd
	writer eventfd.Eventfd

	// buffered holds signals returned by Drain but not yet by Receive.
	buffered signal.SignalSet

	// mu is held for reading while the descriptors are in use and for
	// writing while they are closed.
	mu     sync.RWMutex
	closed bool
}

// New returns a Bridge for set. Signals in set are routed into the process
// for as long as at least one Bridge wants them.
func New(set signal.SignalSet, opts ...Option) (*Bridge, error) {
	if set.IsEmpty() {
		return nil, ErrEmptySet
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = sighandling.Default()
	}

	reader, err := eventfd.Create()
	if err != nil {
		return nil, err
	}
	cu := cleanup.Make(func() { _ = reader.Close() })
	defer cu.Clean()

	writer, err := reader.Dup()
	if err != nil {
		return nil, err
	}
	cu.Add(func() { _ = writer.Close() })

	m := sighandling.NewMember(set, writer)
	if err := o.registry.Register(m); err != nil {
		return nil, fmt.Errorf("registering for %v: %w", set, err)
	}

	cu.Release()
	return &Bridge{
		registry: o.registry,
		member:   m,
		reader:   reader,
		writer:   writer,
	}, nil
}

// FD returns the descriptor that becomes readable when a signal is pending.
// The descriptor stays owned by the Bridge and is invalid after Close.
func (b *Bridge) FD() int {
	return b.reader.FD()
}

// Readiness implements waiter.Pollable.Readiness. A closed bridge reports
// EventNVal.
func (b *Bridge) Readiness(mask waiter.EventMask) waiter.EventMask {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return waiter.EventNVal
	}
	return fdnotifier.NonBlockingPoll(int32(b.reader.FD()), mask)
}

// Interest returns the signals the bridge was created for.
func (b *Bridge) Interest() signal.SignalSet {
	return b.member.Interest()
}

// Drain returns every signal delivered since the last Drain, or the empty set
// if none was. Each signal appears at most once however many times it was
// delivered.
//
// The descriptor is emptied before the pending set is taken: a delivery that
// lands in between leaves the descriptor readable, so it is reported by the
// next Drain instead of being lost.
func (b *Bridge) Drain() (signal.SignalSet, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return signal.EmptySet, ErrClosed
	}
	if _, err := b.reader.Drain(); err != nil {
		return signal.EmptySet, fmt.Errorf("draining wake channel: %w", err)
	}
	return b.member.TakePending(), nil
}

// Receive returns one pending signal at a time, in canonical order. ok is
// false when nothing is pending.
func (b *Bridge) Receive() (sig signal.Signal, ok bool, err error) {
	if b.buffered.IsEmpty() {
		set, err := b.Drain()
		if err != nil {
			return 0, false, err
		}
		b.buffered = set
	}
	sig, ok = b.buffered.First()
	if ok {
		b.buffered = b.buffered.Without(signal.SetOf(sig))
	}
	return sig, ok, nil
}

// Close unregisters the bridge and closes its descriptors. Signals no other
// bridge wants get their previous disposition back. Close is idempotent.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	// Once Unregister returns nothing writes to writer any more.
	b.registry.Unregister(b.member)
	return errors.Join(b.writer.Close(), b.reader.Close())
}

var _ waiter.Pollable = (*Bridge)(nil)
