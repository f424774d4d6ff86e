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

	"github.com/lethevfs/lethe/internal/osutil"
	"github.com/lethevfs/lethe/pkg/cmdmain"
	"github.com/lethevfs/lethe/pkg/metadata"
	"github.com/lethevfs/lethe/pkg/vault"
)

type lsCmd struct {
	vaultPath string
}

func init() {
	cmdmain.RegisterCommand("ls", func(flags *flag.FlagSet) cmdmain.CommandRunner {
		cmd := new(lsCmd)
		flags.StringVar(&cmd.vaultPath, "vault", "", "Vault directory. Defaults to the platform config location.")
		return cmd
	})
}

func (c *lsCmd) Describe() string {
	return "List the entries of a directory inside the vault."
}

func (c *lsCmd) Usage() {
	fmt.Fprintf(os.Stderr, "Usage: lethe ls [path] [--vault P]\n")
}

func (c *lsCmd) RunCommand(args []string) error {
	if len(args) > 1 {
		return cmdmain.UsageError("ls takes at most one path argument")
	}
	path := "/"
	if len(args) == 1 {
		path = args[0]
	}
	dir := c.vaultPath
	if dir == "" {
		dir = osutil.DefaultVaultDir()
	}
	pass, err := passphrase()
	if err != nil {
		return err
	}
	v, err := vault.Unlock(dir, pass)
	if err != nil {
		return fmt.Errorf("unlock: %w", err)
	}
	defer v.Lock()

	entries, err := v.Readdir(path)
	if err != nil {
		return fmt.Errorf("readdir %s: %w", path, err)
	}
	for _, e := range entries {
		if e.Kind == metadata.Dir {
			fmt.Fprintf(cmdmain.Stdout, "%s/\n", e.Name)
		} else {
			fmt.Fprintf(cmdmain.Stdout, "%-40s %d\n", e.Name, e.Size)
		}
	}
	return nil
}
