package fake

import (
	"errors"
	"strings"
	"testing"

	"github.com/openconfig/calicotest/exec"
)

var (
	err1 = errors.New("err1")
	err2 = errors.New("err2")
)

func TestResponseString(t *testing.T) {
	for _, tt := range []struct {
		in  Response
		out string
	}{
		{in: Response{}, out: `{Cmd: ""}`},
		{in: Response{Cmd: "kubectl"}, out: `{Cmd: "kubectl"}`},
		{in: Response{Cmd: "helm", Args: []string{"install", "calico"}}, out: `{Cmd: "helm", Args: []string{"install", "calico"}}`},
		{in: Response{Cmd: "kubectl", Stdin: "kind: Installation"}, out: `{Cmd: "kubectl", Stdin: "kind: Installation"}`},
		{in: Response{Cmd: "cmd3", Stdout: "output"}, out: `{Cmd: "cmd3", Stdout: "output"}`},
		{in: Response{Cmd: "cmd4", Stderr: "error"}, out: `{Cmd: "cmd4", Stderr: "error"}`},
		{in: Response{Cmd: "cmd5", Err: err1}, out: `{Cmd: "cmd5", Err: "err1"}`},
		{in: Response{Cmd: "cmd6", ExitCode: 2}, out: `{Cmd: "cmd6", ExitCode: 2}`},
		{in: Response{Cmd: "cmd7", OutOfOrder: true}, out: `{Cmd: "cmd7", OutOfOrder: true}`},
		{in: Response{Cmd: "cmd8", Optional: true}, out: `{Cmd: "cmd8", Optional: true}`},
	} {
		out := tt.in.String()
		if out != tt.out {
			t.Errorf("%v got:\n%s\nwant:\n%s", tt.in, out, tt.out)
		}
	}
}

func TestSuccessfulCommands(t *testing.T) {
	for _, tt := range []struct {
		name string
		send []Response
		resp []Response
	}{
		{
			name: "one_command",
			send: []Response{
				{Cmd: "cmd1"},
			},
			resp: []Response{
				{Cmd: "cmd1"},
			},
		}, {
			name: "two_commands_first_error",
			send: []Response{
				{Cmd: "cmd1", Err: err1},
				{Cmd: "cmd2"},
			},
			resp: []Response{
				{Cmd: "cmd1", Err: err1},
				{Cmd: "cmd2"},
			},
		}, {
			name: "test_output",
			send: []Response{
				{Cmd: "cmd1", Stdout: "output"},
				{Cmd: "cmd2", Stderr: "error"},
				{Cmd: "cmd3", Stdout: "output", Stderr: "error"},
			},
			resp: []Response{
				{Cmd: "cmd1", Stdout: "output"},
				{Cmd: "cmd2", Stderr: "error"},
				{Cmd: "cmd3", Stdout: "output", Stderr: "error"},
			},
		}, {
			name: "out_of_order",
			send: []Response{
				{Cmd: "cmd2"},
				{Cmd: "cmd1"},
			},
			resp: []Response{
				{Cmd: "cmd1", OutOfOrder: true},
				{Cmd: "cmd2", OutOfOrder: true},
			},
		}, {
			name: "prefix_args",
			send: []Response{
				{Cmd: "docker", Args: []string{"manifest", "inspect", "ghcr.io/canonical/calico-node:v3.28.0"}},
			},
			resp: []Response{
				{Cmd: "docker", Args: []string{"manifest", "inspect", "ghcr.io/.*"}},
			},
		}, {
			name: "optional",
			send: []Response{
				{Cmd: "cmd1"},
			},
			resp: []Response{
				{Cmd: "cmd1"},
				{Cmd: "cmd2", Optional: true},
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			cmds := Commands(tt.resp)
			defer func() {
				if err := cmds.Done(); err != nil {
					t.Errorf("%v", err)
				}
			}()
			for i, cmd := range tt.send {
				var stdout, stderr strings.Builder
				c := cmds.Command(cmd.Cmd, cmd.Args...)
				c.SetStdout(&stdout)
				c.SetStderr(&stderr)
				if err := c.Run(); err != cmd.Err {
					t.Errorf("#%d: got error %v, want %v", i, err, cmd.Err)
				}
				if stdout.String() != cmd.Stdout {
					t.Errorf("#%d: got stdout %q, want %q", i, stdout.String(), cmd.Stdout)
				}
				if stderr.String() != cmd.Stderr {
					t.Errorf("#%d: got stderr %q, want %q", i, stderr.String(), cmd.Stderr)
				}
			}
		})
	}
}

func TestStdin(t *testing.T) {
	cmds := Commands([]Response{
		{Cmd: "kubectl", Args: []string{"apply", "-f", "-"}, Stdin: "kind: APIServer\n"},
	})
	c := cmds.Command("kubectl", "apply", "-f", "-")
	c.SetStdin(strings.NewReader("kind: Installation\n"))
	c.Run()
	if cmds.Done() == nil {
		t.Fatalf("Done() got nil, want error for mismatched stdin")
	}

	cmds = Commands([]Response{
		{Cmd: "kubectl", Args: []string{"apply", "-f", "-"}, Stdin: "kind: APIServer\n"},
	})
	c = cmds.Command("kubectl", "apply", "-f", "-")
	c.SetStdin(strings.NewReader("kind: APIServer\n"))
	if err := c.Run(); err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if err := cmds.Done(); err != nil {
		t.Fatalf("Done() unexpected error: %v", err)
	}
}

func TestExitCode(t *testing.T) {
	cmds := Commands([]Response{
		{Cmd: "docker", Args: []string{"run"}, Stderr: "Usage of check-status:", ExitCode: 2},
	})
	var stderr strings.Builder
	c := cmds.Command("docker", "run")
	c.SetStderr(&stderr)
	err := c.Run()
	if got := exec.ExitCode(err); got != 2 {
		t.Errorf("ExitCode() got %d, want 2", got)
	}
	if got, want := stderr.String(), "Usage of check-status:"; got != want {
		t.Errorf("got stderr %q, want %q", got, want)
	}
	if cmds.Count() != 1 {
		t.Errorf("Count() got %d, want 1", cmds.Count())
	}
}

func TestDone(t *testing.T) {
	for _, tt := range []struct {
		name string
		send []Response
		resp []Response
		done string
	}{
		{
			name: "one_unexpected_command",
			send: []Response{
				{Cmd: "wrong", Args: []string{"command"}},
			},
			done: `test.Done: unexpected executions:
	{Cmd: "wrong", Args: []string{"command"}}`,
		}, {
			name: "one_missing_command",
			resp: []Response{
				{Cmd: "cmd1"},
			},
			done: `test.Done: didn't execute:
	{Cmd: "cmd1"}`,
		}, {
			name: "missing_and_unexpected_commands",
			send: []Response{
				{Cmd: "cmd1"},
			},
			resp: []Response{
				{Cmd: "cmd2"},
			},
			done: `test.Done: didn't execute:
	{Cmd: "cmd2"}
unexpected executions:
	{Cmd: "cmd1"}`,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			cmds := Commands(tt.resp)
			cmds.Name = "test"
			for _, cmd := range tt.send {
				cmds.Command(cmd.Cmd, cmd.Args...).Run()
			}
			err := cmds.Done()
			if err.Error() != tt.done {
				t.Errorf("got %s, want %s", err, tt.done)
			}
		})
	}
}
