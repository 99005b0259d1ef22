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

// Package sigmask manipulates the signal mask of the calling OS thread.
//
// A process-directed signal is delivered to one thread that does not block
// it. Threads that must never consume a delivery on behalf of the bridge
// block the bridged signals; the Go runtime then delivers them on another
// thread, where they reach the registry. Every such thread needs its own
// call, since masks are per thread and are inherited only by threads it
// creates.
//
// All functions act on the current OS thread. Callers must hold the thread
// with runtime.LockOSThread for the result to mean anything; LockAndBlock
// does this for them.
package sigmask

import (
	"fmt"
	"math/bits"
	"runtime"
	"strings"

	"golang.org/x/sys/unix"
	"sigbridge.dev/sigbridge/pkg/signal"
)

// Mask is a kernel signal set covering the first 64 signal numbers.
type Mask uint64

// MaskOf returns the Mask containing the signals of set.
func MaskOf(set signal.SignalSet) Mask {
	var m Mask
	for sig := range set.Signals() {
		m |= bitOf(sig.Number())
	}
	return m
}

func bitOf(n unix.Signal) Mask {
	return Mask(1) << (uint(n) - 1)
}

// Contains returns true if sig is in m.
func (m Mask) Contains(sig signal.Signal) bool {
	return sig.IsValid() && m&bitOf(sig.Number()) != 0
}

// Set returns the supported signals in m. Other signal numbers are dropped.
func (m Mask) Set() signal.SignalSet {
	var set signal.SignalSet
	for sig := range signal.All().Signals() {
		if m.Contains(sig) {
			set = set.With(sig)
		}
	}
	return set
}

// String implements fmt.Stringer.
func (m Mask) String() string {
	if m == 0 {
		return "{}"
	}
	var names []string
	for v := uint64(m); v != 0; v &= v - 1 {
		n := unix.Signal(bits.TrailingZeros64(v) + 1)
		names = append(names, unix.SignalName(n))
	}
	return "{" + strings.Join(names, ",") + "}"
}

// MaskError is returned when the kernel rejects a mask change. Callers
// generally treat it as fatal: the thread's mask is unknown.
type MaskError struct {
	Op  string
	Err error
}

// Error implements error.Error.
func (e *MaskError) Error() string {
	return fmt.Sprintf("sigmask %s: %v", e.Op, e.Err)
}

// Unwrap returns the host error.
func (e *MaskError) Unwrap() error {
	return e.Err
}

func change(op string, how int, m Mask) (Mask, error) {
	old, err := rtSigprocmask(how, &m)
	if err != nil {
		return 0, &MaskError{Op: op, Err: err}
	}
	return old, nil
}

// Block adds set to the current thread's mask and returns the previous mask.
func Block(set signal.SignalSet) (Mask, error) {
	return change("block", unix.SIG_BLOCK, MaskOf(set))
}

// Unblock removes set from the current thread's mask and returns the previous
// mask.
func Unblock(set signal.SignalSet) (Mask, error) {
	return change("unblock", unix.SIG_UNBLOCK, MaskOf(set))
}

// SetMask replaces the current thread's mask and returns the previous one.
func SetMask(m Mask) (Mask, error) {
	return change("setmask", unix.SIG_SETMASK, m)
}

// Restore reinstates a mask returned by Block, Unblock or SetMask.
func Restore(m Mask) error {
	_, err := SetMask(m)
	return err
}

// Current returns the current thread's mask.
func Current() (Mask, error) {
	old, err := rtSigprocmask(unix.SIG_BLOCK, nil)
	if err != nil {
		return 0, &MaskError{Op: "query", Err: err}
	}
	return old, nil
}

// Pending returns the signals raised but not yet delivered to the current
// thread or the process because they are blocked.
func Pending() (Mask, error) {
	m, err := rtSigpending()
	if err != nil {
		return 0, &MaskError{Op: "pending", Err: err}
	}
	return m, nil
}

// LockAndBlock locks the calling goroutine to its OS thread and blocks set on
// that thread. The returned release restores the previous mask and unlocks
// the thread; it must be called from the same goroutine.
//
// If the mask cannot be restored, release leaves the goroutine locked so
// that the runtime discards the thread when the goroutine exits.
func LockAndBlock(set signal.SignalSet) (release func() error, err error) {
	runtime.LockOSThread()
	old, err := Block(set)
	if err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}
	return func() error {
		if err := Restore(old); err != nil {
			return err
		}
		runtime.UnlockOSThread()
		return nil
	}, nil
}
