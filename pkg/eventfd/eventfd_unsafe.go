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

package eventfd

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// nonBlockingWrite writes the given buffer to a file descriptor. It does not
// go through the Go scheduler, so it is safe on the signal delivery path.
func nonBlockingWrite(fd int, buf []byte) (int, error) {
	var ptr unsafe.Pointer
	if len(buf) > 0 {
		ptr = unsafe.Pointer(&buf[0])
	}

	nwritten, _, errno := unix.RawSyscall(unix.SYS_WRITE, uintptr(fd), uintptr(ptr), uintptr(len(buf)))
	if errno != 0 {
		return int(nwritten), errno
	}
	return int(nwritten), nil
}

// nonBlockingRead reads into buf. The fd must be in non-blocking mode.
func nonBlockingRead(fd int, buf []byte) (int, error) {
	var ptr unsafe.Pointer
	if len(buf) > 0 {
		ptr = unsafe.Pointer(&buf[0])
	}

	nread, _, errno := unix.RawSyscall(unix.SYS_READ, uintptr(fd), uintptr(ptr), uintptr(len(buf)))
	if errno != 0 {
		return int(nread), errno
	}
	return int(nread), nil
}
