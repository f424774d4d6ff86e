//go:build linux || darwin

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

package lethecrypto

import "golang.org/x/sys/unix"

// lockMemory best-effort-pins buf's pages so the master key is never
// paged to swap. Failure is not fatal: plenty of sandboxes and containers
// deny mlock, and the key is still zeroed on Lock().
func lockMemory(buf []byte) {
	if len(buf) == 0 {
		return
	}
	_ = unix.Mlock(buf)
}

func unlockMemory(buf []byte) {
	if len(buf) == 0 {
		return
	}
	_ = unix.Munlock(buf)
}
