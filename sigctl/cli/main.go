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

// Package cli is the main entrypoint for sigctl.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/google/subcommands"
	"sigbridge.dev/sigbridge/pkg/log"
	"sigbridge.dev/sigbridge/sigctl/cmd"
	"sigbridge.dev/sigbridge/sigctl/config"
)

// Main is the main entrypoint.
func Main() {
	// Register all commands.
	forEachCmd(subcommands.Register)

	// Register with the main command line.
	config.RegisterFlags(flag.CommandLine)

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	// Create a new Config from the flags.
	conf, err := config.NewFromFlags(flag.CommandLine)
	if err != nil {
		cmd.Fatalf("%v", err)
	}

	// Logs always go to stderr, and to the log file as well when one is given.
	logFiles := []io.Writer{os.Stderr}
	if conf.LogFilename != "" {
		f, err := os.OpenFile(conf.LogFilename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			cmd.Fatalf("error opening log file %q: %v", conf.LogFilename, err)
		}
		logFiles = append(logFiles, f)
		cmd.ErrorLogger = io.MultiWriter(os.Stderr, f)
	}
	log.SetTarget(newTarget(conf.LogFormat, logFiles...))
	if conf.Debug {
		log.SetLevel(log.Debug)
	} else {
		log.SetLevel(log.Warning)
	}

	log.Debugf("sigctl %s, %s, PID %d, PPID %d", runtime.Version(), runtime.GOARCH, os.Getpid(), os.Getppid())
	log.Debugf("Args: %v", os.Args)
	if log.IsLogging(log.Info) {
		conf.Log()
	}

	os.Exit(int(subcommands.Execute(context.Background(), conf)))
}

// forEachCmd invokes the passed callback for each command supported by
// sigctl.
func forEachCmd(cb func(cmd subcommands.Command, group string)) {
	// Help and flags commands are generated automatically.
	cb(subcommands.HelpCommand(), "")
	cb(subcommands.FlagsCommand(), "")
	cb(subcommands.CommandsCommand(), "")

	cb(new(cmd.Watch), "")
	cb(new(cmd.Send), "")
	cb(new(cmd.List), "")
}

// newTarget returns the emitter for logFiles, fanning out with a
// MultiEmitter when there is more than one.
func newTarget(format string, logFiles ...io.Writer) log.Emitter {
	if len(logFiles) == 1 {
		return newEmitter(format, logFiles[0])
	}
	var e log.MultiEmitter
	for _, f := range logFiles {
		e = append(e, newEmitter(format, f))
	}
	return &e
}

func newEmitter(format string, logFile io.Writer) log.Emitter {
	switch format {
	case "text":
		return log.TextEmitter{Emitter: &log.Writer{Next: logFile}}
	case "json":
		return log.JSONEmitter{Writer: &log.Writer{Next: logFile}}
	}
	panic(fmt.Sprintf("invalid log format %q", format))
}
