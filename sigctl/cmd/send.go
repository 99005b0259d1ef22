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

package cmd

import (
	"context"
	"errors"
	"flag"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/subcommands"
	"sigbridge.dev/sigbridge/pkg/log"
	"sigbridge.dev/sigbridge/pkg/sighandling"
	"sigbridge.dev/sigbridge/pkg/signal"
	"sigbridge.dev/sigbridge/sigctl/config"
)

// Send implements subcommands.Command for the "send" command.
type Send struct {
	pid  int
	wait bool
}

// Name implements subcommands.Command.Name.
func (*Send) Name() string {
	return "send"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Send) Synopsis() string {
	return "send a signal to a process"
}

// Usage implements subcommands.Command.Usage.
func (*Send) Usage() string {
	return `send --pid=<pid> [--wait] <signal>

Where <signal> is a name (TERM, SIGTERM, Terminate) or a number.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Send) SetFlags(f *flag.FlagSet) {
	f.IntVar(&s.pid, "pid", 0, "process to signal.")
	f.BoolVar(&s.wait, "wait", false, "retry until the process exists, bounded by --retry-timeout.")
}

// Execute implements subcommands.Command.Execute.
func (s *Send) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 || s.pid <= 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	sig, err := signal.Parse(f.Arg(0))
	if err != nil {
		Fatalf("%v", err)
	}

	if !s.wait {
		err = sighandling.Send(s.pid, sig)
	} else {
		err = sendWait(ctx, s.pid, sig, conf.RetryInterval, conf.RetryTimeout)
	}
	if err != nil {
		Fatalf("%v", err)
	}
	log.Infof("Sent %s to pid %d", sig.Name(), s.pid)
	return subcommands.ExitSuccess
}

// sendWait sends sig to pid, retrying every interval while the process does
// not exist. A zero timeout retries until ctx is done.
func sendWait(ctx context.Context, pid int, sig signal.Signal, interval, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	attempt := 0
	op := func() error {
		attempt++
		err := sighandling.Send(pid, sig)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sighandling.ErrNoSuchProcess) {
			return backoff.Permanent(err)
		}
		log.Debugf("Attempt %d: %v", attempt, err)
		return err
	}
	b := backoff.WithContext(backoff.NewConstantBackOff(interval), ctx)
	return backoff.Retry(op, b)
}
