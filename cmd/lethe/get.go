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
	"github.com/lethevfs/lethe/pkg/fileio"
	"github.com/lethevfs/lethe/pkg/vault"
)

type getCmd struct {
	vaultPath string
	src       string
	out       string
}

func init() {
	cmdmain.RegisterCommand("get", func(flags *flag.FlagSet) cmdmain.CommandRunner {
		cmd := new(getCmd)
		flags.StringVar(&cmd.vaultPath, "vault", "", "Vault directory. Defaults to the platform config location.")
		flags.StringVar(&cmd.src, "src", "", "Source path inside the vault.")
		flags.StringVar(&cmd.out, "out", "", "Local file to write.")
		return cmd
	})
}

func (c *getCmd) Describe() string {
	return "Copy a file out of the vault to local disk."
}

func (c *getCmd) Usage() {
	fmt.Fprintf(os.Stderr, "Usage: lethe get --src S --out O [--vault P]\n")
}

func (c *getCmd) RunCommand(args []string) error {
	if len(args) != 0 {
		return cmdmain.UsageError("get takes no positional arguments; use --src and --out")
	}
	if c.src == "" || c.out == "" {
		return cmdmain.UsageError("--src and --out are required")
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

	entry, err := v.Stat(c.src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", c.src, err)
	}

	dst, err := os.OpenFile(c.out, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", c.out, err)
	}
	defer dst.Close()

	var offset int64
	for offset < entry.Size {
		n := fileio.BlockSize
		if remain := entry.Size - offset; int64(n) > remain {
			n = int(remain)
		}
		chunk, err := v.Read(c.src, offset, n)
		if err != nil {
			return fmt.Errorf("read %s: %w", c.src, err)
		}
		if _, err := dst.Write(chunk); err != nil {
			return fmt.Errorf("write %s: %w", c.out, err)
		}
		offset += int64(len(chunk))
		if len(chunk) == 0 {
			break // defensive: avoid looping forever on an unexpectedly short read
		}
	}
	fmt.Fprintf(cmdmain.Stdout, "%s -> %s (%d bytes)\n", c.src, c.out, entry.Size)
	return nil
}
