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
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/sys/unix"

	"exo.dev/exo/exosim/config"
	"exo.dev/exo/pkg/kernel"
	"exo.dev/exo/pkg/log"
	"exo.dev/exo/pkg/workload"
)

// Run implements subcommands.Command for the "run" command.
type Run struct {
	workloadFlags

	batched bool
	stats   bool
	timeout time.Duration
}

// Name implements subcommands.Command.Name.
func (*Run) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Run) Synopsis() string {
	return "run workloads on a fresh machine"
}

// Usage implements subcommands.Command.Usage.
func (*Run) Usage() string {
	return `run [flags] <workload>... - run workloads as root environments of one machine.

Console output goes to stdout. Workloads are listed by 'exosim list'.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Run) SetFlags(f *flag.FlagSet) {
	r.workloadFlags.setFlags(f)
	f.BoolVar(&r.batched, "batched", false, "fork with batched address space duplication.")
	f.BoolVar(&r.stats, "stats", false, "print kernel statistics when the machine stops.")
	f.DurationVar(&r.timeout, "timeout", 0, "stop the machine after this long. 0 means no limit.")
}

// Execute implements subcommands.Command.Execute.
func (r *Run) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	conf := args[0].(*config.Config)
	if err := r.validate(); err != nil {
		f.Usage()
		return exitStatus(err)
	}
	ws, err := lookupWorkloads(f.Args())
	if err != nil {
		f.Usage()
		return subcommands.ExitUsageError
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, unix.SIGTERM)
	defer stop()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	p := r.Params
	p.Batched = r.batched
	p.IPCSendRetries = conf.IPCSendRetries
	m, err := runWorkloads(ctx, conf, ws, p, os.Stdout)
	if m != nil && r.stats {
		printStats(os.Stdout, m)
	}
	return exitStatus(err)
}

// runWorkloads spawns ws on a new machine and runs it to completion. The
// machine is returned even if running it failed.
func runWorkloads(ctx context.Context, conf *config.Config, ws []workload.Workload, p workload.Params, console io.Writer) (*machine, error) {
	m, err := newMachine(conf, console)
	if err != nil {
		return nil, err
	}
	for _, w := range ws {
		if _, err := m.k.Spawn(w.Name, workload.Main(p, w.New(p))); err != nil {
			m.k.Shutdown()
			return m, fmt.Errorf("spawning %s: %w", w.Name, err)
		}
	}
	err = m.k.Run(ctx)
	if errors.Is(err, kernel.ErrNoRunnable) {
		var blocked []string
		m.k.Inspect(func(envs *kernel.EnvTable) {
			envs.ForEach(func(e *kernel.Env) {
				blocked = append(blocked, fmt.Sprintf("%v (%v)", e.ID(), e.Status()))
			})
		})
		log.Warningf("Deadlock, environments left: %v", blocked)
		m.k.Shutdown()
	}
	return m, err
}

func printStats(w io.Writer, m *machine) {
	s := m.k.Stats()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "crossings\t%d\n", s.Crossings)
	fmt.Fprintf(tw, "syscalls\t%d\n", s.Syscalls)
	fmt.Fprintf(tw, "faults\t%d\n", s.Faults)
	fmt.Fprintf(tw, "envs created\t%d\n", s.EnvsCreated)
	fmt.Fprintf(tw, "frames in use\t%d/%d\n", m.mf.Allocated(), m.mf.TotalFrames())
	tw.Flush()
}
