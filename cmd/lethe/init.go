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
	"github.com/lethevfs/lethe/pkg/lethecrypto"
	"github.com/lethevfs/lethe/pkg/vault"
)

type initCmd struct {
	path string
}

func init() {
	cmdmain.RegisterCommand("init", func(flags *flag.FlagSet) cmdmain.CommandRunner {
		cmd := new(initCmd)
		flags.StringVar(&cmd.path, "path", "", "Vault directory to create. Defaults to the platform config location.")
		return cmd
	})
}

func (c *initCmd) Describe() string {
	return "Create a new, empty vault."
}

func (c *initCmd) Usage() {
	fmt.Fprintf(os.Stderr, "Usage: lethe init [--path P]\n")
}

func (c *initCmd) Examples() []string {
	return []string{"--path /mnt/secure/vault"}
}

func (c *initCmd) RunCommand(args []string) error {
	if len(args) != 0 {
		return cmdmain.UsageError("init takes no arguments")
	}
	dir := c.path
	if dir == "" {
		dir = osutil.DefaultVaultDir()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating vault directory: %w", err)
	}

	pass, err := passphrase()
	if err != nil {
		return err
	}

	v, err := vault.Init(dir, pass, lethecrypto.DefaultKDFParams())
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	v.Lock()

	fmt.Fprintf(cmdmain.Stdout, "Initialized empty vault at %s\n", dir)
	return nil
}
