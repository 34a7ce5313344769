// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package grip

import (
	"runtime/debug"
	"testing"
)

func TestVersionOf(t *testing.T) {
	const root = "github.com/go-lpc/grip"
	for _, tc := range []struct {
		name    string
		info    *debug.BuildInfo
		version string
		sum     string
	}{
		{
			name: "nil",
		},
		{
			name: "main",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: root, Version: "(devel)"},
			},
			version: "(devel)",
		},
		{
			name: "dep",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: "example.com/ops"},
				Deps: []*debug.Module{
					{Path: "golang.org/x/sync", Version: "v0.1.0"},
					{Path: root, Version: "v0.3.0", Sum: "h1:abc"},
				},
			},
			version: "v0.3.0",
			sum:     "h1:abc",
		},
		{
			name: "replace-path-version",
			info: &debug.BuildInfo{
				Deps: []*debug.Module{{
					Path: root, Version: "v0.3.0",
					Replace: &debug.Module{Path: "example.com/fork", Version: "v0.3.1", Sum: "h1:def"},
				}},
			},
			version: "example.com/fork v0.3.1",
			sum:     "h1:def",
		},
		{
			name: "replace-local",
			info: &debug.BuildInfo{
				Deps: []*debug.Module{{
					Path: root, Version: "v0.3.0",
					Replace: &debug.Module{Path: "../grip"},
				}},
			},
			version: "../grip",
		},
		{
			name: "missing",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: "example.com/ops"},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			version, sum := versionOf(tc.info)
			if version != tc.version || sum != tc.sum {
				t.Fatalf("invalid version: got=(%q, %q), want=(%q, %q)", version, sum, tc.version, tc.sum)
			}
		})
	}
}
