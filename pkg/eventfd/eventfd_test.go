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
	"testing"
	"time"
)

func TestReadWrite(t *testing.T) {
	efd, err := Create()
	if err != nil {
		t.Fatalf("failed to Create(): %v", err)
	}
	defer efd.Close()

	// Make sure we can read actual values
	const want = 343
	if err := efd.Write(want); err != nil {
		t.Fatalf("failed to write value: %d", want)
	}

	got, err := efd.Read()
	if err != nil {
		t.Fatalf("failed to read value: %v", err)
	}
	if got != want {
		t.Fatalf("Read(): got %d, but wanted %d", got, want)
	}
}

func TestDrainEmpty(t *testing.T) {
	efd, err := Create()
	if err != nil {
		t.Fatalf("failed to Create(): %v", err)
	}
	defer efd.Close()

	for i := 0; i < 2; i++ {
		got, err := efd.Drain()
		if err != nil {
			t.Fatalf("Drain() failed: %v", err)
		}
		if got != 0 {
			t.Fatalf("Drain() on an empty eventfd: got %d, wanted 0", got)
		}
	}
}

func TestNotifyCoalesces(t *testing.T) {
	efd, err := Create()
	if err != nil {
		t.Fatalf("failed to Create(): %v", err)
	}
	defer efd.Close()

	for i := 0; i < 5; i++ {
		if err := efd.Notify(); err != nil {
			t.Fatalf("Notify() failed: %v", err)
		}
	}
	got, err := efd.Drain()
	if err != nil {
		t.Fatalf("Drain() failed: %v", err)
	}
	if got != 5 {
		t.Errorf("Drain(): got %d, wanted 5", got)
	}
	if got, err := efd.Drain(); err != nil || got != 0 {
		t.Errorf("second Drain(): got %d, %v, wanted 0, nil", got, err)
	}
}

func TestNotifySaturated(t *testing.T) {
	efd, err := Create()
	if err != nil {
		t.Fatalf("failed to Create(): %v", err)
	}
	defer efd.Close()

	// The counter saturates at 2^64-2. A further Notify would block, which
	// must be reported as success.
	if err := efd.Write(^uint64(0) - 1); err != nil {
		t.Fatalf("Write(max) failed: %v", err)
	}
	if err := efd.Notify(); err != nil {
		t.Fatalf("Notify() on a saturated eventfd: %v", err)
	}
}

func TestDupSharesCounter(t *testing.T) {
	efd, err := Create()
	if err != nil {
		t.Fatalf("failed to Create(): %v", err)
	}
	defer efd.Close()
	w, err := efd.Dup()
	if err != nil {
		t.Fatalf("Dup() failed: %v", err)
	}
	defer w.Close()
	if w.FD() == efd.FD() {
		t.Fatalf("Dup() returned the same fd %d", w.FD())
	}

	if err := w.Notify(); err != nil {
		t.Fatalf("Notify() failed: %v", err)
	}
	if got, err := efd.Drain(); err != nil || got != 1 {
		t.Errorf("Drain() through the original fd: got %d, %v, wanted 1, nil", got, err)
	}
}

func TestWait(t *testing.T) {
	efd, err := Create()
	if err != nil {
		t.Fatalf("failed to Create(): %v", err)
	}
	defer efd.Close()

	// There's no way to test with certainty that Wait() blocks indefinitely, but
	// as a best-effort we can wait a bit on it.
	errCh := make(chan error)
	go func() {
		errCh <- efd.Wait()
	}()
	select {
	case err := <-errCh:
		t.Fatalf("Wait() returned without a call to Notify(): %v", err)
	case <-time.After(500 * time.Millisecond):
	}

	// Notify and check that Wait() returned.
	if err := efd.Notify(); err != nil {
		t.Fatalf("Notify() failed: %v", err)
	}
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Read() failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Read() did not return after Notify()")
	}
}
