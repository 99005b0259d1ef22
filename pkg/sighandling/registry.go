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

// Package sighandling multiplexes process signals onto any number of
// interested consumers.
//
// A Registry routes each signal number that at least one Member wants into
// the process exactly once, remembers the disposition it replaced, and
// restores that disposition when the last interested Member leaves. Every
// delivery is fanned out to the interested members by a per-signal
// forwarding goroutine.
//
// The forwarding goroutines play the role of a signal handler and follow the
// same rules: they never take the registry lock, never block, and read the
// member list through an immutable snapshot that Register and Unregister
// replace atomically. Only Register and Unregister take the registry lock.
//
// A signal that arrives while Register is still installing it may or may not
// be observed by the registering member. Signals that arrive after Register
// returns are always observed.
package sighandling

import (
	"fmt"
	"os"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"sigbridge.dev/sigbridge/pkg/log"
	"sigbridge.dev/sigbridge/pkg/signal"
)

// defaultBufferSize is the capacity of each per-signal channel. The runtime
// drops a delivery when the channel is full, which is harmless because
// deliveries of one signal coalesce into a single pending bit anyway.
const defaultBufferSize = 4

// entry is the registry state for one installed signal number.
type entry struct {
	sig  signal.Signal
	prev Disposition
	c    chan os.Signal
	done chan struct{}

	// members is protected by Registry.mu. A published slice is never
	// modified; updates build a new slice and store it in snapshot.
	members []*Member

	// snapshot is read without locking by the forwarding goroutine.
	snapshot atomic.Pointer[[]*Member]

	// epoch is odd while the forwarding goroutine is delivering.
	epoch atomic.Uint64
}

// Registry tracks which members want which signals.
//
// The zero value is not usable; use New or Default.
type Registry struct {
	installer Installer
	logger    log.Logger
	wakeLog   log.Logger
	bufSize   int

	// fired holds one bit per signal delivered while installed. It is
	// updated by the forwarding goroutines.
	fired atomic.Uint32

	// mu protects the fields below.
	mu      sync.Mutex
	entries [signal.NumSignals]*entry
	members map[uint64]*Member
}

// Option configures a Registry.
type Option func(*Registry)

// WithInstaller replaces the OS installer, e.g. with a fake in tests.
func WithInstaller(i Installer) Option {
	return func(r *Registry) {
		r.installer = i
	}
}

// WithLogger sets the logger for install and restore events. Without it, the
// Registry logs to whatever global logger is set when an event happens.
func WithLogger(l log.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithBufferSize sets the capacity of the per-signal channels.
func WithBufferSize(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.bufSize = n
		}
	}
}

// New returns an empty Registry.
//
// Only one Registry with the OS installer should exist per process, since
// they would contend for the same dispositions; use Default.
func New(opts ...Option) *Registry {
	r := &Registry{
		installer: OSInstaller(),
		bufSize:   defaultBufferSize,
		members:   make(map[uint64]*Member),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.Global()
		r.wakeLog = log.BasicRateLimitedLogger(time.Second)
	} else {
		r.wakeLog = log.RateLimitedLogger(r.logger, time.Second)
	}
	return r
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide Registry, creating it on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = New()
	})
	return defaultRegistry
}

// Register adds m to the interest set of each of its signals, installing
// signals that nobody wanted before. If any installation fails, signals
// installed by this call are restored and an *InstallError is returned.
func (r *Registry) Register(m *Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[m.id]; ok {
		return ErrAlreadyRegistered
	}
	if m.Detached() {
		return fmt.Errorf("registering member %d: member is detached", m.id)
	}

	var installed []*entry
	for sig := range m.interest.Signals() {
		if r.entries[sig.Index()] != nil {
			continue
		}
		e, err := r.installLocked(sig)
		if err != nil {
			for _, e := range installed {
				r.teardownLocked(e)
			}
			return &InstallError{Signal: sig, Err: err}
		}
		installed = append(installed, e)
	}

	for sig := range m.interest.Signals() {
		e := r.entries[sig.Index()]
		members := make([]*Member, 0, len(e.members)+1)
		members = append(members, e.members...)
		members = append(members, m)
		e.publishLocked(members)
	}
	r.members[m.id] = m
	r.logger.Debugf("sighandling: member %d registered for %v", m.id, m.interest)
	return nil
}

// Unregister removes m from every signal it was interested in. Signals left
// with no interested member have their previous disposition restored;
// failures to restore are logged since the process may be exiting.
//
// When Unregister returns, no delivery to m is in progress and none will
// start, so m's wake channel may be closed.
func (r *Registry) Unregister(m *Member) {
	m.Detach()

	r.mu.Lock()
	if _, ok := r.members[m.id]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.members, m.id)

	var shared []*entry
	for sig := range m.interest.Signals() {
		e := r.entries[sig.Index()]
		if e == nil {
			continue
		}
		members := slices.DeleteFunc(slices.Clone(e.members), func(o *Member) bool {
			return o == m
		})
		if len(members) == 0 {
			r.teardownLocked(e)
			continue
		}
		e.publishLocked(members)
		shared = append(shared, e)
	}
	r.logger.Debugf("sighandling: member %d unregistered from %v", m.id, m.interest)
	r.mu.Unlock()

	for _, e := range shared {
		e.quiesce()
	}
}

// installLocked routes sig to a new entry and starts its forwarding
// goroutine.
//
// Preconditions: r.mu is held, r.entries[sig.Index()] == nil.
func (r *Registry) installLocked(sig signal.Signal) (*entry, error) {
	e := &entry{
		sig:  sig,
		c:    make(chan os.Signal, r.bufSize),
		done: make(chan struct{}),
	}
	prev, err := r.installer.Install(e.c, sig)
	if err != nil {
		return nil, err
	}
	e.prev = prev
	r.entries[sig.Index()] = e
	go r.forward(e)
	r.logger.Debugf("sighandling: installed %s, previous disposition %v", sig.Name(), prev)
	return e, nil
}

// teardownLocked restores e's previous disposition and waits for its
// forwarding goroutine to exit.
//
// Preconditions: r.mu is held, e is installed.
func (r *Registry) teardownLocked(e *entry) {
	r.entries[e.sig.Index()] = nil
	e.snapshot.Store(nil)
	e.members = nil
	if err := r.installer.Restore(e.c, e.sig, e.prev); err != nil {
		r.logger.Warningf("sighandling: restoring %s to %v: %v", e.sig.Name(), e.prev, err)
	} else {
		r.logger.Debugf("sighandling: restored %s to %v", e.sig.Name(), e.prev)
	}
	close(e.c)
	<-e.done
	r.fired.And(^(uint32(1) << e.sig.Index()))
}

// forward is the delivery loop for one signal number.
func (r *Registry) forward(e *entry) {
	defer close(e.done)
	bit := uint32(1) << e.sig.Index()
	for range e.c {
		e.epoch.Add(1)
		r.fired.Or(bit)
		if members := e.snapshot.Load(); members != nil {
			for _, m := range *members {
				if err := m.Deliver(e.sig); err != nil {
					r.wakeLog.Warningf("sighandling: waking member %d for %s: %v", m.id, e.sig.Name(), err)
				}
			}
		}
		e.epoch.Add(1)
	}
}

// publishLocked makes members the snapshot seen by the forwarding goroutine.
//
// Preconditions: the Registry's mu is held; members is not modified after
// this call.
func (e *entry) publishLocked(members []*Member) {
	e.members = members
	e.snapshot.Store(&members)
}

// quiesce waits until a delivery that may have read an older snapshot has
// finished. Deliveries never block, so the wait is short.
func (e *entry) quiesce() {
	epoch := e.epoch.Load()
	if epoch%2 == 0 {
		return
	}
	for e.epoch.Load() == epoch {
		runtime.Gosched()
	}
}

// Installed returns the signals currently routed to the registry.
func (r *Registry) Installed() signal.SignalSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	var set signal.SignalSet
	for i, e := range r.entries {
		if e != nil {
			set = set.With(signal.Signal(i + 1))
		}
	}
	return set
}

// Interested returns the number of members interested in sig.
func (r *Registry) Interested(sig signal.Signal) int {
	if !sig.IsValid() {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e := r.entries[sig.Index()]; e != nil {
		return len(e.members)
	}
	return 0
}

// Members returns the number of registered members.
func (r *Registry) Members() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Fired returns the signals delivered to the registry since they were
// installed or last taken with TakeFired.
func (r *Registry) Fired() signal.SignalSet {
	return signal.SetFromBits(r.fired.Load())
}

// TakeFired atomically returns and clears the process-wide fired set.
func (r *Registry) TakeFired() signal.SignalSet {
	return signal.SetFromBits(r.fired.Swap(0))
}
