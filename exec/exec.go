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

// Package exec wraps the os/exec package so commands run against a test
// instance (kubectl, helm, kind, docker) can be faked with the sub-package fake.
//
// Example
//
//	var stdout, stderr bytes.Buffer
//	c := Command("kubectl", "get", "nodes")
//	c.SetStdout(&stdout)
//	c.SetStderr(&stderr)
//	err := c.Run()
//	code := ExitCode(err)
package exec

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// A Cmd is an interface representing a command to run.
type Cmd interface {
	SetStdout(io.Writer) // Redirect standard output to the writer
	SetStderr(io.Writer) // Redirect standard error to the writer
	SetStdin(io.Reader)  // Redirect standard in to the reader
	Run() error          // Operates the same as os/exec/Cmd.Run
}

// Command is a variable that normally points to NewCommand.
// It is a variable so tests can redirect calls to a fake.
var Command func(cmd string, args ...string) Cmd = NewCommand

// NewCommand returns a Cmd that can run the supplied command.
// NewCommand sets up stdout and stderr to go to os.Stdout and os.Stderr.
//
// Most programs should use exec.Command rather than exec.NewCommand.
func NewCommand(cmd string, args ...string) Cmd {
	c := exec.Command(cmd, args...)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return command{cmd: c}
}

type command struct {
	cmd *exec.Cmd
}

func (c command) SetStdout(w io.Writer) { c.cmd.Stdout = w }

func (c command) SetStderr(w io.Writer) { c.cmd.Stderr = w }

func (c command) SetStdin(r io.Reader) { c.cmd.Stdin = r }

func (c command) Run() error {
	err := c.cmd.Run()
	if err == nil {
		return nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return &ExitError{Cmd: c.cmd.String(), Code: ee.ExitCode()}
	}
	return fmt.Errorf("%q failed: %w", c.cmd.String(), err)
}

// An ExitError is returned by Run when the command started but exited with a
// non-zero status.
type ExitError struct {
	Cmd  string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%q failed: exit status %d", e.Cmd, e.Code)
}

// ExitCode returns the exit status of the command.
func (e *ExitError) ExitCode() int { return e.Code }

// ExitCode returns the exit status carried by err.  A nil error is 0 and an
// error that does not carry a status (the command never started) is -1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec interface{ ExitCode() int }
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return -1
}
