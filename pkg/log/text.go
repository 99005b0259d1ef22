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

package log

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
)

// TextEmitter emits logs in a format compatible with package
// github.com/golang/glog:
//
//	Lmmdd hh:mm:ss.uuuuuu pid file:line] msg...
type TextEmitter struct {
	// Emitter is the underlying emitter.
	Emitter
}

var pid = os.Getpid()

func levelChar(level Level) byte {
	switch level {
	case Debug:
		return 'D'
	case Info:
		return 'I'
	default:
		return 'W'
	}
}

// callerLocation returns "file:line" for the frame depth levels above its
// caller's caller.
func callerLocation(depth int) string {
	_, file, line, ok := runtime.Caller(depth + 2)
	if !ok {
		return "???:0"
	}
	if slash := strings.LastIndexByte(file, '/'); slash >= 0 {
		file = file[slash+1:]
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// Emit emits the message, google-style.
func (t TextEmitter) Emit(depth int, level Level, timestamp time.Time, format string, args ...any) {
	header := fmt.Sprintf("%c%s %7d %s] ",
		levelChar(level),
		timestamp.Format("0102 15:04:05.000000"),
		pid,
		callerLocation(depth))
	t.Emitter.Emit(depth+1, level, timestamp, header+format+"\n", args...)
}
