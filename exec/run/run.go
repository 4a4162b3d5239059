// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package run runs commands through the exec package and captures standard
// output, standard error and the exit status of each.
package run

import (
	"bytes"
	"io"

	kexec "github.com/openconfig/calicotest/exec"
	"github.com/openconfig/calicotest/logshim"
	log "k8s.io/klog/v2"
)

var (
	logInfo    = log.Info
	logWarning = log.Warning
)

// A Result is the captured outcome of a command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Combined returns standard output followed by standard error.
func (r *Result) Combined() []byte {
	return append(append([]byte{}, r.Stdout...), r.Stderr...)
}

// Run runs cmd with in (if not empty) as standard input.  Output is logged one
// line at a time, standard output with log.Info and standard error with
// log.Warning.  The returned Result is never nil, even when err is not.  A
// command that runs but exits non-zero returns an error carrying the status,
// see exec.ExitCode.
func Run(in []byte, cmd string, args ...string) (*Result, error) {
	return runCommand(true, in, cmd, args...)
}

// Quiet is Run without logging.
func Quiet(in []byte, cmd string, args ...string) (*Result, error) {
	return runCommand(false, in, cmd, args...)
}

func runCommand(writeLogs bool, in []byte, cmd string, args ...string) (*Result, error) {
	c := kexec.Command(cmd, args...)
	var stdout, stderr bytes.Buffer
	c.SetStdout(&stdout)
	c.SetStderr(&stderr)
	if writeLogs {
		prefix := "(" + cmd + "): "
		outLog := logshim.NewPrefixed(prefix, logInfo)
		errLog := logshim.NewPrefixed(prefix, logWarning)
		defer func() {
			outLog.Close()
			errLog.Close()
		}()
		c.SetStdout(io.MultiWriter(outLog, &stdout))
		c.SetStderr(io.MultiWriter(errLog, &stderr))
	}
	if len(in) > 0 {
		c.SetStdin(bytes.NewReader(in))
	}
	err := c.Run()
	return &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: kexec.ExitCode(err),
	}, err
}

// LogCommand runs the specified command but records standard output
// with log.Info and standard error with log.Warning.
func LogCommand(cmd string, args ...string) error {
	_, err := runCommand(true, nil, cmd, args...)
	return err
}

// LogCommandWithInput runs the specified command but records standard output
// with log.Info and standard error with log.Warning. in is sent to
// the standard input of the command.
func LogCommandWithInput(in []byte, cmd string, args ...string) error {
	_, err := runCommand(true, in, cmd, args...)
	return err
}

// OutCommand runs the specified command and returns standard output and
// standard error as well as any errors.
func OutCommand(cmd string, args ...string) ([]byte, error) {
	r, err := runCommand(false, nil, cmd, args...)
	return r.Combined(), err
}
