/*
Copyright 2012 Google Inc.

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

package metadata

import (
	"strings"

	"github.com/lethevfs/lethe/pkg/errs"
)

// splitPath turns an absolute, "/"-separated path (§6) into its
// individual name components. "/" itself splits to nil (the root has no
// name components). Every component is validated per §3: UTF-8 (Go
// strings already are, if the input was), no "/", not "." or "..", and
// not empty.
func splitPath(path string) ([]string, error) {
	if path == "" || path[0] != '/' {
		return nil, errs.ErrInvalidName
	}
	if path == "/" {
		return nil, nil
	}
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for _, p := range parts {
		if err := validateName(p); err != nil {
			return nil, err
		}
	}
	return parts, nil
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return errs.ErrInvalidName
	}
	return nil
}

// splitParent splits an absolute path into its parent directory path and
// final component. It fails on the root path, which has no parent.
func splitParent(path string) (parentParts []string, name string, err error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, "", err
	}
	if len(parts) == 0 {
		return nil, "", errs.ErrInvalidName
	}
	return parts[:len(parts)-1], parts[len(parts)-1], nil
}
