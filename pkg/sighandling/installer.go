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

package sighandling

import (
	"fmt"
	"os"
	gosignal "os/signal"

	"sigbridge.dev/sigbridge/pkg/signal"
)

// Disposition is the action the OS took for a signal before it was
// installed. It is opaque to callers apart from the predicates below.
type Disposition struct {
	// Handler is the raw sa_handler value: SIG_DFL, SIG_IGN or a handler
	// address.
	Handler uintptr
	// Flags is the raw sa_flags value.
	Flags uint64
}

// IsDefault returns true if the signal had its default action.
func (d Disposition) IsDefault() bool {
	return d.Handler == sigDFL
}

// IsIgnored returns true if the signal was ignored.
func (d Disposition) IsIgnored() bool {
	return d.Handler == sigIGN
}

// String implements fmt.Stringer.
func (d Disposition) String() string {
	switch d.Handler {
	case sigDFL:
		return "SIG_DFL"
	case sigIGN:
		return "SIG_IGN"
	default:
		return fmt.Sprintf("handler(%#x)", d.Handler)
	}
}

// Installer is the OS surface used by a Registry to route one signal number
// to a channel and to undo that routing.
type Installer interface {
	// Install starts delivering sig to c and returns the disposition that
	// was in place before.
	Install(c chan<- os.Signal, sig signal.Signal) (Disposition, error)

	// Restore stops delivering sig to c and reinstates prev. Once Restore
	// returns, even with an error, c must receive no further values.
	Restore(c chan<- os.Signal, sig signal.Signal, prev Disposition) error
}

// osInstaller routes signals through the Go runtime's own async-signal-safe
// handler using os/signal.
type osInstaller struct{}

// OSInstaller returns the Installer backed by the real process signal
// dispositions.
func OSInstaller() Installer {
	return osInstaller{}
}

// Install implements Installer.Install.
func (osInstaller) Install(c chan<- os.Signal, sig signal.Signal) (Disposition, error) {
	if !sig.IsValid() {
		return Disposition{}, fmt.Errorf("invalid signal %v", sig)
	}
	prev, err := queryDisposition(sig.Number())
	if err != nil {
		return Disposition{}, fmt.Errorf("rt_sigaction(%v): %w", sig.Name(), err)
	}
	gosignal.Notify(c, sig.OS())
	return prev, nil
}

// Restore implements Installer.Restore.
//
// Stopping c hands the signal back to the runtime, which reinstalls the
// disposition it found at startup once no channel wants the signal. A signal
// that was explicitly ignored before Install is ignored again.
func (osInstaller) Restore(c chan<- os.Signal, sig signal.Signal, prev Disposition) error {
	gosignal.Stop(c)
	if prev.IsIgnored() {
		gosignal.Ignore(sig.OS())
	}
	return nil
}
