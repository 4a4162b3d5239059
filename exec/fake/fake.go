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

// Package fake scripts the commands run through
// github.com/openconfig/calicotest/exec.
//
// Typical Usage:
//
//	responses := []fake.Response{
//		{Cmd: "kubectl", Args: []string{"apply", "-f", "-"}, Stdin: manifest},
//		{Cmd: "docker", Args: []string{"run", ".*"}, Stderr: "usage", ExitCode: 1},
//	}
//	cmds := fake.Commands(responses)
//	oCommand := kexec.Command
//	defer func() {
//		kexec.Command = oCommand
//		if err := cmds.Done(); err != nil {
//			t.Error(err)
//		}
//	}()
//	kexec.Command = cmds.Command
package fake

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/openconfig/calicotest/exec"
)

// A Response indicates how Command should respond to Run.
//
// Args entries may start or end with ".*" to match by suffix or prefix.  When
// Stdin is set the data written to the command's standard input must match it
// exactly.  A non-zero ExitCode makes Run return an *exec.ExitError unless
// Err is also set.
type Response struct {
	Cmd        string
	Args       []string
	Stdin      string
	Err        interface{}
	ExitCode   int
	Stdout     string
	Stderr     string
	OutOfOrder bool // This response can be out of order
	Optional   bool // This response might not be used
}

func (r Response) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "{Cmd: %q", r.Cmd)
	if len(r.Args) > 0 {
		fmt.Fprintf(&buf, ", Args: []string{%q", r.Args[0])
		for _, arg := range r.Args[1:] {
			fmt.Fprintf(&buf, ", %q", arg)
		}
		buf.WriteString("}")
	}
	for _, f := range []struct{ k, v string }{
		{"Stdin", r.Stdin},
		{"Stdout", r.Stdout},
		{"Stderr", r.Stderr},
	} {
		if f.v != "" {
			fmt.Fprintf(&buf, ", %s: %q", f.k, f.v)
		}
	}
	if r.Err != nil {
		fmt.Fprintf(&buf, ", Err: %q", r.Err)
	}
	if r.ExitCode != 0 {
		fmt.Fprintf(&buf, ", ExitCode: %d", r.ExitCode)
	}
	if r.OutOfOrder {
		buf.WriteString(", OutOfOrder: true")
	}
	if r.Optional {
		buf.WriteString(", Optional: true")
	}
	buf.WriteString("}")
	return buf.String()
}

// A Command is an implementation of exec.Cmd that returns predefined results
// when Run is called.
type Command struct {
	Name       string // if set it is included in errors
	cmd        string
	args       []string
	responses  []Response
	unexpected []Response
	stdout     io.Writer
	stderr     io.Writer
	stdin      io.Reader
	cnt        int
}

// Commands returns a Command that is primed with the provided responses.
// Its Command method can be used to override exec.Command.
func Commands(resp []Response) *Command {
	return &Command{
		responses: resp,
	}
}

// Command resets the command associated with c.
func (c *Command) Command(cmd string, args ...string) exec.Cmd {
	c.cmd = cmd
	c.args = args
	c.stdout = nil
	c.stderr = nil
	c.stdin = nil
	return c
}

// SetStdout sets standard out to w.
func (c *Command) SetStdout(w io.Writer) { c.stdout = w }

// SetStderr sets standard err to w.
func (c *Command) SetStderr(w io.Writer) { c.stderr = w }

// SetStdin sets standard in to r.
func (c *Command) SetStdin(r io.Reader) { c.stdin = r }

// Count returns the number of times Run has been called.
func (c *Command) Count() int { return c.cnt }

// LogCommand is called with the string representation of the command that is
// running.  The test program can optionally set this to their own function.
var LogCommand = func(string) {}

// Run runs the command.  The command must match the first remaining response
// or, failing that, any remaining response marked OutOfOrder.
//
// Run returns nil if no matching response is found.  Use c.Done to detect
// these errors.
func (c *Command) Run() error {
	c.cnt++
	call := Response{
		Cmd:  c.cmd,
		Args: c.args,
	}
	if c.stdin != nil {
		b, err := io.ReadAll(c.stdin)
		if err != nil {
			return err
		}
		call.Stdin = string(b)
	}
	defer func() {
		LogCommand(call.String())
	}()

	r, ok := c.take(call)
	if !ok {
		c.unexpected = append(c.unexpected, call)
		return nil
	}
	call.Stdout = r.Stdout
	call.Stderr = r.Stderr
	call.Err = r.Err
	call.ExitCode = r.ExitCode
	call.OutOfOrder = r.OutOfOrder
	call.Optional = r.Optional

	if c.stdout != nil && r.Stdout != "" {
		io.WriteString(c.stdout, r.Stdout)
	}
	if c.stderr != nil && r.Stderr != "" {
		io.WriteString(c.stderr, r.Stderr)
	}
	switch e := r.Err.(type) {
	case string:
		return errors.New(e)
	case error:
		return e
	}
	if r.ExitCode != 0 {
		return &exec.ExitError{Cmd: strings.Join(append([]string{c.cmd}, c.args...), " "), Code: r.ExitCode}
	}
	return nil
}

// take removes and returns the response matching call.
func (c *Command) take(call Response) (Response, bool) {
	if len(c.responses) == 0 {
		return Response{}, false
	}
	if r := c.responses[0]; matches(call, r) {
		c.responses = c.responses[1:]
		return r, true
	}
	for i, r := range c.responses {
		if r.OutOfOrder && matches(call, r) {
			c.responses = append(c.responses[:i], c.responses[i+1:]...)
			return r, true
		}
	}
	return Response{}, false
}

// A DoneError is returned when the calls to a Command do not match the Responses.
type DoneError struct {
	Source     string
	Unexpected []Response // Unexpected calls
	Unused     []Response // Unused calls
}

func (e *DoneError) Error() string {
	var buf strings.Builder
	if e.Source != "" {
		fmt.Fprintf(&buf, "%s: ", e.Source)
	}
	if len(e.Unused) > 0 {
		buf.WriteString("didn't execute:")
		for _, r := range e.Unused {
			fmt.Fprintf(&buf, "\n\t%v", r)
		}
	}
	if len(e.Unexpected) > 0 {
		if len(e.Unused) > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString("unexpected executions:")
		for _, r := range e.Unexpected {
			fmt.Fprintf(&buf, "\n\t%v", r)
		}
	}
	return buf.String()
}

// Done returns an error if there were any unexpected commands called on c or if
// there are any non-optional responses left.
//
// Done should be called once the test has finished calling c.Command.
func (c *Command) Done() error {
	var left []Response
	for _, r := range c.responses {
		if !r.Optional {
			left = append(left, r)
		}
	}
	if len(left) == 0 && len(c.unexpected) == 0 {
		return nil
	}
	src := "Done"
	if c.Name != "" {
		src = c.Name + ".Done"
	}
	return &DoneError{
		Source:     src,
		Unexpected: c.unexpected,
		Unused:     left,
	}
}

// matches returns true if call is answered by r.
func matches(call, r Response) bool {
	if r.Cmd != "" && call.Cmd != r.Cmd {
		return false
	}
	if r.Stdin != "" && call.Stdin != r.Stdin {
		return false
	}
	return compareArgs(call.Args, r.Args)
}

// compareArgs reports whether gotArgs satisfies wantArgs.  The values in
// wantArgs can have a ".*" as the suffix or prefix to indicate a prefix or
// suffix match should be used instead of equality.
func compareArgs(gotArgs, wantArgs []string) bool {
	if len(gotArgs) != len(wantArgs) {
		return false
	}
	for i, got := range gotArgs {
		want := wantArgs[i]
		switch {
		case got == want:
			continue
		case strings.HasPrefix(want, ".*"):
			if strings.HasSuffix(got, want[2:]) {
				continue
			}
		case strings.HasSuffix(want, ".*"):
			if strings.HasPrefix(got, want[:len(want)-2]) {
				continue
			}
		}
		return false
	}
	return true
}
