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

package sigmask

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// sigSetSize is the kernel's sizeof(sigset_t) for rt_sig* calls.
const sigSetSize = 8

// rtSigprocmask applies set with how, or only queries if set is nil, and
// returns the previous mask.
func rtSigprocmask(how int, set *Mask) (Mask, error) {
	var old Mask
	_, _, errno := unix.RawSyscall6(unix.SYS_RT_SIGPROCMASK, uintptr(how), uintptr(unsafe.Pointer(set)), uintptr(unsafe.Pointer(&old)), sigSetSize, 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return old, nil
}

func rtSigpending() (Mask, error) {
	var set Mask
	_, _, errno := unix.RawSyscall(unix.SYS_RT_SIGPENDING, uintptr(unsafe.Pointer(&set)), sigSetSize, 0)
	if errno != 0 {
		return 0, errno
	}
	return set, nil
}
