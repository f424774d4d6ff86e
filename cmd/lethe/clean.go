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
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/lethevfs/lethe/internal/osutil"
	"github.com/lethevfs/lethe/pkg/cmdmain"
	"github.com/lethevfs/lethe/pkg/vault"
)

type cleanCmd struct {
	vaultPath string
}

func init() {
	cmdmain.RegisterCommand("clean", func(flags *flag.FlagSet) cmdmain.CommandRunner {
		cmd := new(cleanCmd)
		flags.StringVar(&cmd.vaultPath, "vault", "", "Vault directory. Defaults to the platform config location.")
		return cmd
	})
}

func (c *cleanCmd) Describe() string {
	return "Reclaim shard blobs no longer referenced by any file."
}

func (c *cleanCmd) Usage() {
	fmt.Fprintf(os.Stderr, "Usage: lethe clean [--vault P]\n")
}

func (c *cleanCmd) RunCommand(args []string) error {
	if len(args) != 0 {
		return cmdmain.UsageError("clean takes no arguments")
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

	deleted, err := v.GC(context.Background())
	if err != nil {
		return fmt.Errorf("clean: %w", err)
	}
	fmt.Fprintf(cmdmain.Stdout, "Reclaimed %d shard(s)\n", deleted)
	return nil
}
