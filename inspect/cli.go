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

package inspect

import (
	"context"
	"fmt"

	"github.com/openconfig/calicotest/exec/run"
	"github.com/openconfig/calicotest/harness"
	"github.com/openconfig/calicotest/image"
)

// CLIRunner runs containers with the docker command line in Inst.
type CLIRunner struct {
	Inst harness.Execer
	// Platform is passed to --platform when set.
	Platform image.Platform
}

// Command returns the docker command line running cmd in ref.
func (c *CLIRunner) Command(ref image.Reference, cmd []string) []string {
	args := []string{"docker", "run", "--rm"}
	if c.Platform != "" {
		args = append(args, "--platform", "linux/"+string(c.Platform))
	}
	args = append(args, "--entrypoint", cmd[0], ref.String())
	return append(args, cmd[1:]...)
}

// Run runs cmd as the entrypoint of a throwaway container of ref.
func (c *CLIRunner) Run(ctx context.Context, ref image.Reference, cmd []string, opts ...harness.ExecOption) (*run.Result, error) {
	if len(cmd) == 0 {
		return nil, fmt.Errorf("no command")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Platform != "" {
		if err := c.Platform.Validate(); err != nil {
			return nil, err
		}
	}
	return c.Inst.Exec(c.Command(ref, cmd), opts...)
}
