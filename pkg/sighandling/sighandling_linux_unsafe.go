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
	"unsafe"

	"golang.org/x/sys/unix"
)

// sigaction is the kernel's struct sigaction on 64-bit Linux.
type sigaction struct {
	Handler  uint64
	Flags    uint64
	Restorer uint64
	Mask     uint64
}

// sigSetSize is the size in bytes of the kernel sigset_t.
const sigSetSize = 8

// Dispositions reported by rt_sigaction(2), from asm-generic/signal-defs.h.
const (
	sigDFL = 0
	sigIGN = 1
)

// queryDisposition reads the current disposition of sig without changing it.
func queryDisposition(sig unix.Signal) (Disposition, error) {
	var sa sigaction
	if _, _, e := unix.RawSyscall6(unix.SYS_RT_SIGACTION, uintptr(sig), 0, uintptr(unsafe.Pointer(&sa)), sigSetSize, 0, 0); e != 0 {
		return Disposition{}, e
	}
	return Disposition{
		Handler: uintptr(sa.Handler),
		Flags:   sa.Flags,
	}, nil
}
