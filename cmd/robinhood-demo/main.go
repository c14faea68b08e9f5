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

// Command robinhood-demo exercises a robinhood.Map with a configurable
// hasher and policy and reports on the table as it goes.
//
// Usage:
//
//	robinhood-demo [--count=N] [--hasher=maphash|xxhash|constant] [--policy=pow2|prime] [--dump]
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/cockroachdb/robinhood"
	flag "github.com/spf13/pflag"
)

// maxConstantKeys is the largest count the constant hasher can hold: every
// key shares one hash value, so displacements run from 0 to the probe bound.
const maxConstantKeys = 65

var errMismatch = errors.New("map disagrees with expected contents")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type config struct {
	count  int
	hasher string
	policy string
	dump   bool
}

func parseFlags(args []string) (config, error) {
	var cfg config

	flagSet := flag.NewFlagSet("robinhood-demo", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.IntVarP(&cfg.count, "count", "n", 1000, "Number of entries to insert")
	flagSet.StringVar(&cfg.hasher, "hasher", "maphash", "Hasher: maphash, xxhash or constant")
	flagSet.StringVar(&cfg.policy, "policy", "pow2", "Index policy: pow2 or prime")
	flagSet.BoolVar(&cfg.dump, "dump", false, "Print the slots of the final table")

	if err := flagSet.Parse(args); err != nil {
		return cfg, err
	}
	if flagSet.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	if cfg.count < 0 {
		return cfg, fmt.Errorf("--count must not be negative: %d", cfg.count)
	}
	if cfg.hasher == "constant" && cfg.count > maxConstantKeys {
		return cfg, fmt.Errorf("--hasher=constant supports at most %d entries, got %d",
			maxConstantKeys, cfg.count)
	}
	return cfg, nil
}

func newMap(cfg config) (*robinhood.Map[string, int], error) {
	var hasher robinhood.Hasher[string]
	switch cfg.hasher {
	case "maphash":
		hasher = robinhood.NewMapHasher[string]()
	case "xxhash":
		hasher = robinhood.StringHasher[string]{}
	case "constant":
		hasher = robinhood.HasherFunc[string](func(string) uint64 { return 0 })
	default:
		return nil, fmt.Errorf("unknown hasher: %q", cfg.hasher)
	}

	var policy robinhood.Policy
	switch cfg.policy {
	case "pow2":
		policy = robinhood.PowerOf2Policy{}
	case "prime":
		policy = robinhood.PrimePolicy{}
	default:
		return nil, fmt.Errorf("unknown policy: %q", cfg.policy)
	}

	return robinhood.New[string, int](0,
		robinhood.WithHasher[string, int](hasher),
		robinhood.WithPolicy[string, int](policy)), nil
}

func run(args []string, out io.Writer) error {
	cfg, err := parseFlags(args)
	if err != nil {
		return err
	}
	m, err := newMap(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	fmt.Fprintf(out, "hasher=%s policy=%s count=%d\n", cfg.hasher, cfg.policy, cfg.count)

	for i := 0; i < cfg.count; i++ {
		m.Put(key(i), i)
	}
	fmt.Fprintf(out, "put:    len=%d capacity=%d\n", m.Len(), m.Capacity())

	var misses int
	for i := 0; i < cfg.count; i++ {
		if v, ok := m.Get(key(i)); !ok || v != i {
			return fmt.Errorf("get %s = %d, %t: %w", key(i), v, ok, errMismatch)
		}
		if m.Contains("absent-" + strconv.Itoa(i)) {
			return fmt.Errorf("found absent key %d: %w", i, errMismatch)
		}
		misses++
	}
	fmt.Fprintf(out, "get:    hits=%d misses=%d\n", m.Len(), misses)

	for i := 0; i < cfg.count; i++ {
		p, ok := m.GetPtr(key(i))
		if !ok {
			return fmt.Errorf("get-ptr %s: %w", key(i), errMismatch)
		}
		*p *= 10
	}

	var deleted int
	for i := 0; i < cfg.count; i += 2 {
		if v, ok := m.Delete(key(i)); !ok || v != i*10 {
			return fmt.Errorf("delete %s = %d, %t: %w", key(i), v, ok, errMismatch)
		}
		deleted++
	}
	fmt.Fprintf(out, "delete: deleted=%d len=%d\n", deleted, m.Len())

	c := m.Clone()
	defer c.Close()
	c.Clear()
	if c.Len() != 0 || m.Len() != cfg.count-deleted {
		return fmt.Errorf("clone is not independent of the original: %w", errMismatch)
	}

	oldCapacity := m.Capacity()
	m.Resize(4 * cfg.count)
	fmt.Fprintf(out, "resize: capacity=%d->%d\n", oldCapacity, m.Capacity())

	var sum int
	m.All(func(k string, v int) bool {
		sum += v
		return true
	})
	fmt.Fprintf(out, "all:    sum=%d\n", sum)

	if cfg.dump {
		fmt.Fprint(out, m)
	}
	return nil
}

func key(i int) string {
	return "key-" + strconv.Itoa(i)
}
