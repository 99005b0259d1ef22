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
	"errors"
	"fmt"

	"sigbridge.dev/sigbridge/pkg/signal"
)

// ErrAlreadyRegistered is returned when a Member is registered twice.
var ErrAlreadyRegistered = errors.New("member already registered")

// InstallError is returned by Register when routing a signal to the
// registry failed. The registry is left as it was before the call.
type InstallError struct {
	Signal signal.Signal
	Err    error
}

// Error implements error.Error.
func (e *InstallError) Error() string {
	return fmt.Sprintf("installing handler for %s: %v", e.Signal.Name(), e.Err)
}

// Unwrap returns the underlying cause.
func (e *InstallError) Unwrap() error {
	return e.Err
}

// SendErrorKind classifies a failed Send.
type SendErrorKind int

// Send failure kinds.
const (
	// NoSuchProcess means the target process does not exist.
	NoSuchProcess SendErrorKind = iota + 1
	// PermissionDenied means the caller may not signal the target.
	PermissionDenied
	// InvalidSignal means the signal cannot be represented or sent.
	InvalidSignal
)

// Sentinels matched by errors.Is against a *SendError of the same kind.
var (
	ErrNoSuchProcess    = errors.New("no such process")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidSignal    = errors.New("invalid signal")
)

func (k SendErrorKind) sentinel() error {
	switch k {
	case NoSuchProcess:
		return ErrNoSuchProcess
	case PermissionDenied:
		return ErrPermissionDenied
	case InvalidSignal:
		return ErrInvalidSignal
	default:
		panic(fmt.Sprintf("unknown SendErrorKind %d", int(k)))
	}
}

// String implements fmt.Stringer.
func (k SendErrorKind) String() string {
	return k.sentinel().Error()
}

// SendError is returned by Send.
type SendError struct {
	Kind   SendErrorKind
	PID    int
	Signal signal.Signal
	// Err is the host error, if any.
	Err error
}

// Error implements error.Error.
func (e *SendError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("sending %s to pid %d: %v", e.Signal.Name(), e.PID, e.Kind)
	}
	return fmt.Sprintf("sending %s to pid %d: %v: %v", e.Signal.Name(), e.PID, e.Kind, e.Err)
}

// Unwrap returns both the kind's sentinel and the host error.
func (e *SendError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}
