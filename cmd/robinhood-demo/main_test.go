// Copyright 2024 The Cockroach Authors
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

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	testCases := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "default",
			args: []string{"--count=10"},
			want: `hasher=maphash policy=pow2 count=10
put:    len=10 capacity=64
get:    hits=10 misses=10
delete: deleted=5 len=5
resize: capacity=64->64
all:    sum=250
`,
		},
		{
			name: "prime",
			args: []string{"--count=10", "--policy=prime"},
			want: `hasher=maphash policy=prime count=10
put:    len=10 capacity=67
get:    hits=10 misses=10
delete: deleted=5 len=5
resize: capacity=67->67
all:    sum=250
`,
		},
		{
			name: "xxhash",
			args: []string{"-n", "100", "--hasher", "xxhash"},
			want: `hasher=xxhash policy=pow2 count=100
put:    len=100 capacity=256
get:    hits=100 misses=100
delete: deleted=50 len=50
resize: capacity=256->512
all:    sum=25000
`,
		},
		{
			name: "constant",
			args: []string{"--count=65", "--hasher=constant"},
			want: `hasher=constant policy=pow2 count=65
put:    len=65 capacity=256
get:    hits=65 misses=65
delete: deleted=33 len=32
resize: capacity=256->512
all:    sum=10240
`,
		},
		{
			name: "empty",
			args: []string{"--count=0"},
			want: `hasher=maphash policy=pow2 count=0
put:    len=0 capacity=0
get:    hits=0 misses=0
delete: deleted=0 len=0
resize: capacity=0->64
all:    sum=0
`,
		},
	}

	for _, c := range testCases {
		t.Run(c.name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, run(c.args, &out))
			if diff := cmp.Diff(c.want, out.String()); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunDump(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"--count=4", "--dump"}, &out))
	require.Contains(t, out.String(), "capacity=64  used=2  max-lookups=64\n")
	require.Equal(t, 2, strings.Count(out.String(), "[dist="))
}

func TestRunErrors(t *testing.T) {
	testCases := []struct {
		name string
		args []string
		want string
	}{
		{"unknown-hasher", []string{"--hasher=sha"}, `unknown hasher: "sha"`},
		{"unknown-policy", []string{"--policy=fib"}, `unknown policy: "fib"`},
		{"negative-count", []string{"--count=-1"}, "--count must not be negative"},
		{"constant-too-many", []string{"--hasher=constant", "--count=66"}, "at most 65 entries"},
		{"extra-arg", []string{"foo"}, "unexpected argument: foo"},
		{"bad-flag", []string{"--bogus"}, "unknown flag: --bogus"},
	}

	for _, c := range testCases {
		t.Run(c.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(c.args, &out)
			require.Error(t, err)
			require.Contains(t, err.Error(), c.want)
		})
	}
}
