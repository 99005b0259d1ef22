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
	"errors"
	"os"
	gosignal "os/signal"
	"testing"

	"golang.org/x/sys/unix"
	"sigbridge.dev/sigbridge/pkg/signal"
)

// The tests below use the real process dispositions. They run sequentially
// and each one leaves the process as it found it.

func TestSendSelf(t *testing.T) {
	r := New()
	m, w := register(t, r, signal.SetOf(signal.User2))

	if err := SendSelf(signal.User2); err != nil {
		t.Fatalf("SendSelf() failed: %v", err)
	}
	w.wait(t)
	if got, want := m.TakePending(), signal.SetOf(signal.User2); got != want {
		t.Errorf("TakePending(): got %v, wanted %v", got, want)
	}
	if got := r.Fired(); !got.Contains(signal.User2) {
		t.Errorf("Fired(): got %v, wanted User2", got)
	}
}

func TestSendSelfManyTimes(t *testing.T) {
	r := New()
	m, w := register(t, r, signal.SetOf(signal.User1, signal.User2))

	for i := 0; i < 10; i++ {
		sig := signal.User1
		if i%2 == 1 {
			sig = signal.User2
		}
		if err := SendSelf(sig); err != nil {
			t.Fatalf("SendSelf(%v) failed: %v", sig, err)
		}
		w.wait(t)
		if got, want := m.TakePending(), signal.SetOf(sig); got != want {
			t.Errorf("iteration %d: TakePending(): got %v, wanted %v", i, got, want)
		}
	}
}

func TestDispositionRestored(t *testing.T) {
	for _, sig := range []signal.Signal{signal.User1, signal.Pipe, signal.WindowChange} {
		before, err := queryDisposition(sig.Number())
		if err != nil {
			t.Fatalf("queryDisposition(%v) failed: %v", sig, err)
		}

		r := New()
		m := NewMember(signal.SetOf(sig), newChanNotifier())
		if err := r.Register(m); err != nil {
			t.Fatalf("Register(%v) failed: %v", sig, err)
		}
		r.Unregister(m)

		after, err := queryDisposition(sig.Number())
		if err != nil {
			t.Fatalf("queryDisposition(%v) failed: %v", sig, err)
		}
		if before.Handler != after.Handler {
			t.Errorf("%v disposition: got %v after Unregister, wanted %v", sig, after, before)
		}
	}
}

func TestIgnoredDispositionRestored(t *testing.T) {
	for _, sig := range []signal.Signal{signal.User2, signal.Hangup} {
		t.Run(sig.Name(), func(t *testing.T) {
			gosignal.Ignore(sig.OS())
			t.Cleanup(func() {
				// Hand the signal back to the runtime's handler.
				c := make(chan os.Signal, 1)
				gosignal.Notify(c, sig.OS())
				gosignal.Stop(c)
			})

			before, err := queryDisposition(sig.Number())
			if err != nil {
				t.Fatalf("queryDisposition(%v) failed: %v", sig, err)
			}
			if !before.IsIgnored() {
				t.Fatalf("%v disposition after Ignore: got %v, wanted SIG_IGN", sig, before)
			}

			r := New()
			m := NewMember(signal.SetOf(sig), newChanNotifier())
			if err := r.Register(m); err != nil {
				t.Fatalf("Register(%v) failed: %v", sig, err)
			}
			during, err := queryDisposition(sig.Number())
			if err != nil {
				t.Fatalf("queryDisposition(%v) failed: %v", sig, err)
			}
			if during.IsIgnored() || during.IsDefault() {
				t.Errorf("%v disposition while registered: got %v, wanted a handler", sig, during)
			}
			r.Unregister(m)

			after, err := queryDisposition(sig.Number())
			if err != nil {
				t.Fatalf("queryDisposition(%v) failed: %v", sig, err)
			}
			if !after.IsIgnored() {
				t.Errorf("%v disposition after Unregister: got %v, wanted SIG_IGN", sig, after)
			}
		})
	}
}

func TestSendErrors(t *testing.T) {
	for _, tc := range []struct {
		name  string
		pid   int
		sig   signal.Signal
		want  error
		errno error
	}{
		{
			name:  "no such process",
			pid:   1 << 30,
			sig:   signal.User1,
			want:  ErrNoSuchProcess,
			errno: unix.ESRCH,
		},
		{
			name:  "process group",
			pid:   0,
			sig:   signal.User1,
			want:  ErrNoSuchProcess,
			errno: unix.ESRCH,
		},
		{
			name: "invalid signal",
			pid:  os.Getpid(),
			sig:  signal.Signal(0),
			want: ErrInvalidSignal,
		},
		{
			name: "out of range signal",
			pid:  os.Getpid(),
			sig:  signal.NumSignals + 1,
			want: ErrInvalidSignal,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := Send(tc.pid, tc.sig)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Send(%d, %v): got %v, wanted %v", tc.pid, tc.sig, err, tc.want)
			}
			if tc.errno != nil && !errors.Is(err, tc.errno) {
				t.Errorf("Send(%d, %v): got %v, wanted it to wrap %v", tc.pid, tc.sig, err, tc.errno)
			}
			var se *SendError
			if !errors.As(err, &se) {
				t.Fatalf("Send(%d, %v): got %T, wanted *SendError", tc.pid, tc.sig, err)
			}
			if se.PID != tc.pid {
				t.Errorf("SendError.PID: got %d, wanted %d", se.PID, tc.pid)
			}
		})
	}
}

func TestSendErrorKinds(t *testing.T) {
	err := &SendError{Kind: PermissionDenied, PID: 1, Signal: signal.Terminate, Err: unix.EPERM}
	if !errors.Is(err, ErrPermissionDenied) || !errors.Is(err, unix.EPERM) {
		t.Errorf("%v does not match both ErrPermissionDenied and EPERM", err)
	}
	if errors.Is(err, ErrNoSuchProcess) {
		t.Errorf("%v matches ErrNoSuchProcess", err)
	}
	if got, want := err.Error(), "sending SIGTERM to pid 1: permission denied: operation not permitted"; got != want {
		t.Errorf("Error(): got %q, wanted %q", got, want)
	}
}
