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
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"
	"sigbridge.dev/sigbridge/pkg/cleanup"
	"sigbridge.dev/sigbridge/pkg/eventfd"
	"sigbridge.dev/sigbridge/pkg/log"
	"sigbridge.dev/sigbridge/pkg/sigbridge"
	"sigbridge.dev/sigbridge/pkg/sigmask"
	"sigbridge.dev/sigbridge/pkg/signal"
	"sigbridge.dev/sigbridge/pkg/waiter"
	"sigbridge.dev/sigbridge/pkg/waiter/fdnotifier"
	"sigbridge.dev/sigbridge/sigctl/config"
)

// Poller tokens used by the watch loop.
const (
	signalToken uint64 = iota
	stopToken
)

// Watch implements subcommands.Command for the "watch" command.
type Watch struct {
	signals config.Signals
	count   int
	timeout time.Duration
}

// Name implements subcommands.Command.Name.
func (*Watch) Name() string {
	return "watch"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Watch) Synopsis() string {
	return "print signals received by this process until interrupted"
}

// Usage implements subcommands.Command.Usage.
func (*Watch) Usage() string {
	return `watch [--signals=INT,TERM] [--count=N] [--timeout=D]

Prints one line per signal received. Stops after --count signals, after
--timeout, or when SIGINT or SIGTERM is received.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (w *Watch) SetFlags(f *flag.FlagSet) {
	f.Var(&w.signals, "signals", "signals to watch; defaults to the global --signals.")
	f.IntVar(&w.count, "count", 0, "stop after this many signals. Zero means no limit.")
	f.DurationVar(&w.timeout, "timeout", 0, "stop after this long. Zero means no limit.")
}

// Execute implements subcommands.Command.Execute.
func (w *Watch) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 || w.count < 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	set := w.signals.SignalSet()
	if set.IsEmpty() {
		set = conf.Signals.SignalSet()
	}
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	b, err := sigbridge.New(set)
	if err != nil {
		Fatalf("%v", err)
	}
	defer b.Close()

	fmt.Fprintf(os.Stdout, "Watching %v in pid %d\n", set, os.Getpid())
	if err := watch(ctx, b, w.count, os.Stdout); err != nil {
		Fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

// watch prints signals drained from b until count signals were seen or ctx
// is done. A count of zero means no limit. Interrupt and Terminate end the
// loop when b watches them.
//
// The loop runs on a locked OS thread that blocks the watched signals, so the
// kernel delivers them on another thread where the registry forwards them.
func watch(ctx context.Context, b *sigbridge.Bridge, count int, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p, err := fdnotifier.NewPoller()
	if err != nil {
		return err
	}
	cu := cleanup.Make(func() { p.Close() })
	defer cu.Clean()

	stop, err := eventfd.Create()
	if err != nil {
		return err
	}
	cu.Add(func() { stop.Close() })

	if err := p.AddPollable(b, signalToken); err != nil {
		return err
	}
	if err := p.Add(stop.FD(), stopToken, waiter.ReadableEvents); err != nil {
		return err
	}

	var g errgroup.Group
	g.Go(func() error {
		<-ctx.Done()
		return stop.Notify()
	})
	g.Go(func() error {
		defer cancel()
		release, err := sigmask.LockAndBlock(b.Interest())
		if err != nil {
			return err
		}
		defer release()
		return loop(p, b, count, out)
	})
	return g.Wait()
}

func loop(p *fdnotifier.Poller, b *sigbridge.Bridge, count int, out io.Writer) error {
	exit := signal.SetOf(signal.Interrupt, signal.Terminate)
	seen := 0
	events := make([]fdnotifier.Event, 2)
	for {
		n, err := p.Wait(-1, events)
		if err != nil {
			return err
		}
		for _, ev := range events[:n] {
			switch ev.Token {
			case stopToken:
				log.Debugf("Watch stopped")
				return nil
			case signalToken:
				// Drain until empty; the descriptor stays readable
				// until then.
				for {
					sig, ok, err := b.Receive()
					if err != nil {
						return err
					}
					if !ok {
						break
					}
					seen++
					fmt.Fprintf(out, "%s\t%s\n", sig.Name(), sig)
					if exit.Contains(sig) || (count > 0 && seen >= count) {
						return nil
					}
				}
			}
		}
	}
}
