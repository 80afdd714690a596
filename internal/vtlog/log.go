/*
Copyright 2026 The HLQL Compiler Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package vtlog is a thin wrapper around glog, so the rest of the tree
// never imports glog directly. This mirrors how the upstream compiler
// keeps its logging calls independent of the underlying sink.
package vtlog

import (
	"github.com/golang/glog"
)

// Infof logs at info level.
func Infof(format string, args ...interface{}) {
	glog.Infof(format, args...)
}

// Warningf logs at warning level.
func Warningf(format string, args ...interface{}) {
	glog.Warningf(format, args...)
}

// Errorf logs at error level.
func Errorf(format string, args ...interface{}) {
	glog.Errorf(format, args...)
}

// V reports whether verbosity level v is enabled, for guarding
// expensive log-argument construction the way glog.V does.
func V(level glog.Level) glog.Verbose {
	return glog.V(level)
}

// Flush flushes any pending log I/O; callers invoke this from the
// process bootstrapper, never from inside a compile call.
func Flush() {
	glog.Flush()
}
