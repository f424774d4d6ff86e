/*
Copyright 2011 The Perkeep Authors

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

// Package osutil resolves the host filesystem locations cmd/lethe falls
// back to when the user doesn't pass an explicit vault directory: the
// default vault directory, which lives under the configuration directory.
package osutil

import (
	"os"
	"path/filepath"
	"runtime"
)

// HomeDir returns the path to the user's home directory.
// It returns the empty string if the value isn't known.
func HomeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
	}
	return os.Getenv("HOME")
}

// Username returns the current user's username, as reported by the
// relevant environment variable.
func Username() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("USERNAME")
	}
	return os.Getenv("USER")
}

// configDirNamedTestHook lets tests override configDir's platform
// switch without touching real environment variables.
var configDirNamedTestHook func() string

func configDir() string {
	if h := configDirNamedTestHook; h != nil {
		return h()
	}
	if d := os.Getenv("LETHE_CONFIG_DIR"); d != "" {
		return d
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "Lethe")
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "lethe")
	}
	return filepath.Join(HomeDir(), ".config", "lethe")
}

// DefaultVaultDir returns the vault directory `lethe init` operates on
// when --path isn't given, and `lethe clean`/`put`/`get`/`ls` when
// --vault isn't given:
// $LETHE_VAULT_DIR if set, else a "vault" subdirectory of the platform's
// conventional config location for this program.
func DefaultVaultDir() string {
	if d := os.Getenv("LETHE_VAULT_DIR"); d != "" {
		return d
	}
	return filepath.Join(configDir(), "vault")
}
