// Copyright 2026 The gVisor Authors.
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

package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"exo.dev/exo/exosim/config"
	"exo.dev/exo/pkg/kernel"
	"exo.dev/exo/pkg/workload"
)

// Bench implements subcommands.Command for the "bench" command.
type Bench struct {
	workloadFlags

	output string
}

// BenchResult is the kernel statistics of one workload run.
type BenchResult struct {
	Workload string               `json:"workload"`
	Batched  bool                 `json:"batched"`
	Stats    kernel.StatsSnapshot `json:"stats"`
}

type benchOutputFunc func(io.Writer, []BenchResult) error

var benchOutputMap = map[string]benchOutputFunc{
	"table": benchOutputTable,
	"json":  benchOutputJSON,
}

// Name implements subcommands.Command.Name.
func (*Bench) Name() string {
	return "bench"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Bench) Synopsis() string {
	return "compare kernel crossings of direct and batched fork"
}

// Usage implements subcommands.Command.Usage.
func (*Bench) Usage() string {
	return `bench [flags] <workload>... - run each workload with direct and with batched fork, and print kernel statistics.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (b *Bench) SetFlags(f *flag.FlagSet) {
	b.workloadFlags.setFlags(f)
	f.StringVar(&b.output, "o", "table", "Output format (table, json).")
}

// Execute implements subcommands.Command.Execute.
func (b *Bench) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	conf := args[0].(*config.Config)
	out, ok := benchOutputMap[b.output]
	if !ok {
		Fatalf("Unsupported output format %q", b.output)
	}
	if err := b.validate(); err != nil {
		f.Usage()
		return exitStatus(err)
	}
	ws, err := lookupWorkloads(f.Args())
	if err != nil {
		f.Usage()
		return subcommands.ExitUsageError
	}

	p := b.Params
	p.IPCSendRetries = conf.IPCSendRetries
	results, err := bench(ctx, conf, ws, p)
	if err != nil {
		return exitStatus(err)
	}
	if err := out(os.Stdout, results); err != nil {
		Fatalf("Error writing output: %v", err)
	}
	return subcommands.ExitSuccess
}

// bench runs every workload twice, on fresh machines, first with direct and
// then with batched fork. Console output is discarded.
func bench(ctx context.Context, conf *config.Config, ws []workload.Workload, p workload.Params) ([]BenchResult, error) {
	var results []BenchResult
	for _, w := range ws {
		for _, batched := range []bool{false, true} {
			p.Batched = batched
			m, err := runWorkloads(ctx, conf, []workload.Workload{w}, p, io.Discard)
			if err != nil {
				return nil, fmt.Errorf("%s (batched=%t): %w", w.Name, batched, err)
			}
			results = append(results, BenchResult{
				Workload: w.Name,
				Batched:  batched,
				Stats:    m.k.Stats(),
			})
		}
	}
	return results, nil
}

func benchOutputTable(w io.Writer, results []BenchResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WORKLOAD\tFORK\tCROSSINGS\tSYSCALLS\tFAULTS\tENVS")
	for _, r := range results {
		mode := "direct"
		if r.Batched {
			mode = "batched"
		}
		s := r.Stats
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n", r.Workload, mode, s.Crossings, s.Syscalls, s.Faults, s.EnvsCreated)
	}
	return tw.Flush()
}

func benchOutputJSON(w io.Writer, results []BenchResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
