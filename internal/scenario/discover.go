// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package scenario

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	rcerrors "github.com/tombee/runcontrol/pkg/errors"
)

// Discover expands scenario arguments into file paths. Each argument is a
// plain path or a doublestar pattern such as "scenarios/**/*.yaml". Plain
// paths are kept even when the file does not exist so that Load reports
// it. A pattern that matches nothing is an error. The result is sorted and
// free of duplicates.
func Discover(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for i, arg := range args {
		if !isPattern(arg) {
			add(arg)
			continue
		}
		matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
		if err != nil {
			return nil, &rcerrors.ValidationError{
				Field:   fmt.Sprintf("args[%d]", i),
				Message: fmt.Sprintf("invalid pattern %q: %v", arg, err),
			}
		}
		if len(matches) == 0 {
			return nil, &rcerrors.ValidationError{
				Field:   fmt.Sprintf("args[%d]", i),
				Message: fmt.Sprintf("pattern %q matched no scenario files", arg),
				Hint:    "quote the pattern so the shell does not expand it",
			}
		}
		for _, m := range matches {
			add(m)
		}
	}

	sort.Strings(paths)
	return paths, nil
}

func isPattern(arg string) bool {
	return strings.ContainsAny(arg, "*?[{")
}
