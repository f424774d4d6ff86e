/*
Copyright 2011 Google Inc.

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

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/lethevfs/lethe/pkg/cmdmain"
)

// mountCmd is a deliberate stub: FUSE/WebDAV mount adapters are out of
// this core's scope (§1 Non-goals). This subcommand exists so the §6
// CLI surface is complete and gives a clear error instead of "unknown
// mode" when a user reaches for it.
type mountCmd struct {
	vaultPath  string
	mountpoint string
}

func init() {
	cmdmain.RegisterCommand("mount", func(flags *flag.FlagSet) cmdmain.CommandRunner {
		cmd := new(mountCmd)
		flags.StringVar(&cmd.vaultPath, "vault", "", "Vault directory to mount.")
		flags.StringVar(&cmd.mountpoint, "mountpoint", "", "Filesystem mountpoint.")
		return cmd
	})
}

func (c *mountCmd) Describe() string {
	return "Mount a vault as a filesystem (not implemented in this core)."
}

func (c *mountCmd) Usage() {
	fmt.Fprintf(os.Stderr, "Usage: lethe mount --vault P --mountpoint M\n")
}

func (c *mountCmd) RunCommand(args []string) error {
	return fmt.Errorf("not implemented: see mount-layer contract; this core exposes Read/Write/Readdir/etc. for a FUSE or WebDAV adapter to drive, but does not ship one")
}
