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

	"golang.org/x/sys/unix"
	"sigbridge.dev/sigbridge/pkg/signal"
)

// Send delivers sig to the process pid with kill(2). pid must name a single
// process: zero and negative values, which would address process groups,
// are reported as NoSuchProcess without calling kill.
//
// Send does not retry.
func Send(pid int, sig signal.Signal) error {
	if !sig.IsValid() {
		return &SendError{Kind: InvalidSignal, PID: pid, Signal: sig}
	}
	if pid <= 0 {
		return &SendError{Kind: NoSuchProcess, PID: pid, Signal: sig, Err: unix.ESRCH}
	}
	switch err := unix.Kill(pid, sig.Number()); err {
	case nil:
		return nil
	case unix.ESRCH:
		return &SendError{Kind: NoSuchProcess, PID: pid, Signal: sig, Err: err}
	case unix.EPERM:
		return &SendError{Kind: PermissionDenied, PID: pid, Signal: sig, Err: err}
	case unix.EINVAL:
		return &SendError{Kind: InvalidSignal, PID: pid, Signal: sig, Err: err}
	default:
		return fmt.Errorf("kill(%d, %s): %w", pid, sig.Name(), err)
	}
}

// SendSelf delivers sig to the calling process.
func SendSelf(sig signal.Signal) error {
	return Send(os.Getpid(), sig)
}
