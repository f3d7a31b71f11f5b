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
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"exo.dev/exo/pkg/abi/exo"
	sexo "exo.dev/exo/pkg/syscalls/exo"
	"exo.dev/exo/pkg/workload"
)

// List implements subcommands.Command for the "list" command.
type List struct {
	syscalls bool
}

// Name implements subcommands.Command.Name.
func (*List) Name() string {
	return "list"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*List) Synopsis() string {
	return "list workloads or system calls"
}

// Usage implements subcommands.Command.Usage.
func (*List) Usage() string {
	return `list [flags] - list the workloads that can be run.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (l *List) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&l.syscalls, "syscalls", false, "list system calls instead.")
}

// Execute implements subcommands.Command.Execute.
func (l *List) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	list := listWorkloads
	if l.syscalls {
		list = listSyscalls
	}
	if err := list(os.Stdout); err != nil {
		Fatalf("Error writing output: %v", err)
	}
	return subcommands.ExitSuccess
}

func listWorkloads(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, wl := range workload.List() {
		fmt.Fprintf(tw, "%s\t%s\n", wl.Name, wl.Synopsis)
	}
	return tw.Flush()
}

func listSyscalls(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NUM\tNAME\tBATCHABLE")
	for sysno := exo.Sysno(0); sysno < exo.NumSyscalls; sysno++ {
		sc := sexo.Table.Lookup(uint64(sysno))
		fmt.Fprintf(tw, "%d\t%s\t%t\n", uint64(sysno), sc.Name, sc.Batchable)
	}
	return tw.Flush()
}
