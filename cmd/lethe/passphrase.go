/*
Copyright 2013 The Camlistore Authors.

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
	"bufio"
	"fmt"
	"os"

	"github.com/lethevfs/lethe/pkg/cmdmain"
)

// passphrase returns the vault passphrase from $LETHE_PASSPHRASE if set,
// else reads one line from stdin. Masked terminal entry is explicitly
// out of scope (spec's CLI password prompting UI Non-goal); callers that
// need that should pipe one in, e.g. via their own pinentry wrapper.
func passphrase() (string, error) {
	if p := os.Getenv("LETHE_PASSPHRASE"); p != "" {
		return p, nil
	}
	fmt.Fprint(cmdmain.Stderr, "Vault passphrase: ")
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("no passphrase given")
	}
	return scanner.Text(), nil
}
