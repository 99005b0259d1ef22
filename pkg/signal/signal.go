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

// Package signal defines the closed set of process signals that can be
// bridged into a reactor, and SignalSet, a bitmask value over them.
package signal

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// Signal is one of the catchable process signals supported by sigbridge.
//
// The zero value is not a valid Signal.
type Signal uint8

// Supported signals, in canonical order. SIGKILL and SIGSTOP cannot be
// caught and are never representable. SIGURG is reserved by the Go runtime
// for goroutine preemption.
const (
	// Hangup corresponds to SIGHUP.
	Hangup Signal = iota + 1
	// Interrupt corresponds to SIGINT, sent by most terminals on Ctrl+C.
	Interrupt
	// Quit corresponds to SIGQUIT.
	Quit
	// Pipe corresponds to SIGPIPE.
	Pipe
	// Alarm corresponds to SIGALRM.
	Alarm
	// Terminate corresponds to SIGTERM, the polite termination request.
	Terminate
	// User1 corresponds to SIGUSR1.
	User1
	// User2 corresponds to SIGUSR2.
	User2
	// Child corresponds to SIGCHLD.
	Child
	// Continue corresponds to SIGCONT.
	Continue
	// WindowChange corresponds to SIGWINCH.
	WindowChange

	numSignals = iota
)

// NumSignals is the number of supported signals.
const NumSignals = numSignals

type info struct {
	number unix.Signal
	name   string
	short  string
}

// table is indexed by Signal.Index. It is fixed at compile time so that the
// delivery path never needs a dynamic lookup.
var table = [NumSignals]info{
	{unix.SIGHUP, "Hangup", "HUP"},
	{unix.SIGINT, "Interrupt", "INT"},
	{unix.SIGQUIT, "Quit", "QUIT"},
	{unix.SIGPIPE, "Pipe", "PIPE"},
	{unix.SIGALRM, "Alarm", "ALRM"},
	{unix.SIGTERM, "Terminate", "TERM"},
	{unix.SIGUSR1, "User1", "USR1"},
	{unix.SIGUSR2, "User2", "USR2"},
	{unix.SIGCHLD, "Child", "CHLD"},
	{unix.SIGCONT, "Continue", "CONT"},
	{unix.SIGWINCH, "WindowChange", "WINCH"},
}

// ErrUnknownSignal is returned by Parse for names and numbers that do not
// correspond to a supported Signal.
var ErrUnknownSignal = errors.New("unknown signal")

// IsValid returns true if s is one of the supported signals.
func (s Signal) IsValid() bool {
	return s > 0 && int(s) <= NumSignals
}

// Index returns the zero-based position of s in canonical order.
//
// Preconditions: s.IsValid().
func (s Signal) Index() int {
	return int(s) - 1
}

// Number returns the platform signal number of s.
//
// Preconditions: s.IsValid().
func (s Signal) Number() unix.Signal {
	return table[s.Index()].number
}

// OS returns s as an os.Signal, suitable for os/signal.
func (s Signal) OS() os.Signal {
	return syscall.Signal(s.Number())
}

// Name returns the conventional POSIX name of s, e.g. "SIGINT".
func (s Signal) Name() string {
	if !s.IsValid() {
		return fmt.Sprintf("SIG?(%d)", uint8(s))
	}
	return "SIG" + table[s.Index()].short
}

// String implements fmt.Stringer.
func (s Signal) String() string {
	if !s.IsValid() {
		return fmt.Sprintf("Signal(%d)", uint8(s))
	}
	return table[s.Index()].name
}

// FromNumber maps a platform signal number to a Signal.
func FromNumber(n unix.Signal) (Signal, bool) {
	for i := range table {
		if table[i].number == n {
			return Signal(i + 1), true
		}
	}
	return 0, false
}

// FromOS maps an os.Signal, as received from os/signal, to a Signal.
func FromOS(sig os.Signal) (Signal, bool) {
	n, ok := sig.(syscall.Signal)
	if !ok {
		return 0, false
	}
	return FromNumber(unix.Signal(n))
}

// Parse accepts a signal number ("15"), a POSIX name with or without the SIG
// prefix ("SIGTERM", "term") or a Signal name ("Terminate").
func Parse(s string) (Signal, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if sig, ok := FromNumber(unix.Signal(n)); ok {
			return sig, nil
		}
		return 0, fmt.Errorf("%w %q", ErrUnknownSignal, s)
	}
	short := strings.TrimPrefix(strings.ToUpper(s), "SIG")
	for i := range table {
		if table[i].short == short || strings.EqualFold(table[i].name, s) {
			return Signal(i + 1), nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownSignal, s)
}
