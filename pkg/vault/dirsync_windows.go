//go:build windows

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

package vault

// dirSyncUnsupported reports whether err is the expected failure from
// calling Sync on a directory handle, which Windows does not support.
// The preceding file Rename is already durable there; this fsync is
// belt-and-suspenders on POSIX filesystems only.
func dirSyncUnsupported(err error) bool { return true }
