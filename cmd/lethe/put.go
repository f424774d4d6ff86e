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
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/lethevfs/lethe/internal/osutil"
	"github.com/lethevfs/lethe/pkg/cmdmain"
	"github.com/lethevfs/lethe/pkg/errs"
	"github.com/lethevfs/lethe/pkg/fileio"
	"github.com/lethevfs/lethe/pkg/vault"
)

type putCmd struct {
	vaultPath string
	file      string
	dest      string
}

func init() {
	cmdmain.RegisterCommand("put", func(flags *flag.FlagSet) cmdmain.CommandRunner {
		cmd := new(putCmd)
		flags.StringVar(&cmd.vaultPath, "vault", "", "Vault directory. Defaults to the platform config location.")
		flags.StringVar(&cmd.file, "file", "", "Local file to copy in.")
		flags.StringVar(&cmd.dest, "dest", "", "Destination path inside the vault.")
		return cmd
	})
}

func (c *putCmd) Describe() string {
	return "Copy a local file into the vault."
}

func (c *putCmd) Usage() {
	fmt.Fprintf(os.Stderr, "Usage: lethe put --file F --dest D [--vault P]\n")
}

func (c *putCmd) RunCommand(args []string) error {
	if len(args) != 0 {
		return cmdmain.UsageError("put takes no positional arguments; use --file and --dest")
	}
	if c.file == "" || c.dest == "" {
		return cmdmain.UsageError("--file and --dest are required")
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

	src, err := os.Open(c.file)
	if err != nil {
		return fmt.Errorf("open %s: %w", c.file, err)
	}
	defer src.Close()

	now := time.Now()
	if _, err := v.Create(c.dest, 0644, now); err != nil && !errors.Is(err, errs.ErrExists) {
		return fmt.Errorf("create %s: %w", c.dest, err)
	}

	buf := make([]byte, fileio.BlockSize)
	var offset int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if werr := v.Write(context.Background(), c.dest, offset, buf[:n], now); werr != nil {
				return fmt.Errorf("write %s: %w", c.dest, werr)
			}
			offset += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", c.file, err)
		}
	}

	if err := v.Truncate(c.dest, offset, now); err != nil {
		return fmt.Errorf("truncate %s: %w", c.dest, err)
	}
	if _, err := v.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	fmt.Fprintf(cmdmain.Stdout, "%s -> %s (%d bytes)\n", c.file, c.dest, offset)
	return nil
}
