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


// Package config provides basic infrastructure to set configuration settings
// for sigctl. The configuration is set by flags to the command line. It can
// also be loaded from a TOML file named by --config, in which case values
// given explicitly on the command line win.
package config

import (
	"fmt"
	"strings"
	"time"

	"sigbridge.dev/sigbridge/pkg/log"
	"sigbridge.dev/sigbridge/pkg/signal"
)

// Config holds configuration that is not part of a single command.
//
// Follow these steps to add a new flag:
//  1. Create a new field in Config.
//  2. Add a field tag with the flag name, and the same name as TOML key.
//  3. Register a new flag in flags.go, with name and description.
//  4. Add any necessary validation into validate().
type Config struct {
	// ConfigFile is the TOML file the other settings were loaded from.
	ConfigFile string `flag:"config"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug" toml:"debug"`

	// LogFilename is the filename to log to, if not empty.
	LogFilename string `flag:"log" toml:"log"`

	// LogFormat is the log format: "text" or "json".
	LogFormat string `flag:"log-format" toml:"log-format"`

	// Signals is the set watched when a command is not given one.
	Signals Signals `flag:"signals" toml:"signals"`

	// RetryInterval is the delay between attempts of a waiting send.
	RetryInterval time.Duration `flag:"retry-interval" toml:"retry-interval"`

	// RetryTimeout bounds how long a waiting send keeps trying.
	RetryTimeout time.Duration `flag:"retry-timeout" toml:"retry-timeout"`
}

func (c *Config) validate() error {
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q, must be 'text' or 'json'", c.LogFormat)
	}
	if signal.SignalSet(c.Signals).IsEmpty() {
		return fmt.Errorf("signals must not be empty")
	}
	if c.RetryInterval <= 0 {
		return fmt.Errorf("retry-interval must be positive, got %v", c.RetryInterval)
	}
	if c.RetryTimeout < 0 {
		return fmt.Errorf("retry-timeout must not be negative, got %v", c.RetryTimeout)
	}
	return nil
}

// Log logs important aspects of the configuration to the given log function.
func (c *Config) Log() {
	log.Infof("Config:")
	for _, f := range c.ToFlags() {
		log.Infof("  %s", f)
	}
	if c.ConfigFile != "" {
		log.Infof("  (loaded from %s)", c.ConfigFile)
	}
}

// Signals is a flag and TOML value holding a comma-separated set of signals,
// e.g. "INT,TERM" or "SIGHUP,10".
type Signals signal.SignalSet

func signalsPtr(s signal.SignalSet) *Signals {
	v := Signals(s)
	return &v
}

// Set implements flag.Value.
func (s *Signals) Set(v string) error {
	var set signal.SignalSet
	for _, name := range strings.Split(v, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		sig, err := signal.Parse(name)
		if err != nil {
			return err
		}
		set = set.With(sig)
	}
	*s = Signals(set)
	return nil
}

// Get implements flag.Getter.
func (s *Signals) Get() any {
	return *s
}

// String implements flag.Value.
func (s *Signals) String() string {
	var names []string
	for sig := range signal.SignalSet(*s).Signals() {
		names = append(names, strings.TrimPrefix(sig.Name(), "SIG"))
	}
	return strings.Join(names, ",")
}

// SignalSet returns the signals as a signal.SignalSet.
func (s Signals) SignalSet() signal.SignalSet {
	return signal.SignalSet(s)
}
