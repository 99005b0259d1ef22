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

package fdnotifier

import (
	"golang.org/x/sys/unix"
	"sigbridge.dev/sigbridge/pkg/waiter"
)

// NonBlockingPoll returns the events in mask that fd is ready for, without
// waiting. If the poll itself fails, fd is reported ready for all of mask so
// that callers go on to the real operation and see its error.
func NonBlockingPoll(fd int32, mask waiter.EventMask) waiter.EventMask {
	fds := []unix.PollFd{{Fd: fd, Events: int16(mask)}}
	// ppoll with a zero timeout returns immediately; arm64 has no poll(2).
	var ts unix.Timespec
	for {
		n, err := unix.Ppoll(fds, &ts, nil)
		switch {
		case err == unix.EINTR:
			continue
		case err != nil:
			return mask
		case n == 0:
			return 0
		default:
			return waiter.EventMask(fds[0].Revents)
		}
	}
}
