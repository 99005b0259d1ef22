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

// Package cmd holds implementations of the sigctl commands.
package cmd

import (
	"fmt"
	"io"
	"os"

	"sigbridge.dev/sigbridge/pkg/log"
)

// ErrorLogger is where error messages should be written to. These messages
// are consumed by the user, unlike debug logs.
var ErrorLogger io.Writer = os.Stderr

// Fatalf logs to stderr and the debug log, and exits with status 128.
func Fatalf(format string, args ...any) {
	log.Warningf(format, args...)
	fmt.Fprintf(ErrorLogger, "sigctl: "+format+"\n", args...)
	os.Exit(128)
}
