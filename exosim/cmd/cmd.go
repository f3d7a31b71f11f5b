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

// Package cmd holds implementations of the exosim commands.
package cmd

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"exo.dev/exo/exosim/config"
	"exo.dev/exo/pkg/errors/exoerr"
	"exo.dev/exo/pkg/kernel"
	"exo.dev/exo/pkg/log"
	"exo.dev/exo/pkg/pgalloc"
	sexo "exo.dev/exo/pkg/syscalls/exo"
	"exo.dev/exo/pkg/workload"
)

// ErrorLogger is where error messages should be written to. These messages
// are consumed by the user, so they should be clear and actionable.
var ErrorLogger io.Writer

// Fatalf logs the same message to the error logger and to stderr, and exits
// with a failure status code.
func Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Warningf("FATAL ERROR: %s", msg)
	fmt.Fprintf(os.Stderr, "exosim: %s\n", msg)
	if ErrorLogger != nil {
		fmt.Fprintf(ErrorLogger, "%s\n", msg)
	}
	os.Exit(128)
}

// exitStatus reports err to the user and maps it to an exit status.
func exitStatus(err error) subcommands.ExitStatus {
	if err == nil {
		return subcommands.ExitSuccess
	}
	fmt.Fprintf(os.Stderr, "exosim: %v (%v)\n", err, exoerr.Errno(err))
	return subcommands.ExitFailure
}

// machine is a kernel built from a Config.
type machine struct {
	k  *kernel.Kernel
	mf *pgalloc.MemoryFile
}

func newMachine(conf *config.Config, console io.Writer) (*machine, error) {
	mf, err := pgalloc.NewMemoryFile(uint32(conf.Frames))
	if err != nil {
		return nil, err
	}
	k, err := kernel.New(kernel.InitKernelArgs{
		MemoryFile:   mf,
		SyscallTable: sexo.Table,
		MaxEnvs:      conf.MaxEnvs,
		Console:      console,
		Input:        stdin(),
		BatchPolicy:  conf.BatchPolicy,
		Strace:       conf.Strace,
	})
	if err != nil {
		return nil, err
	}
	return &machine{k: k, mf: mf}, nil
}

// workloadFlags are the workload parameters shared by run and bench.
type workloadFlags struct {
	workload.Params
}

func (w *workloadFlags) setFlags(f *flag.FlagSet) {
	w.Params = workload.DefaultParams()
	f.IntVar(&w.Depth, "depth", w.Depth, "forktree depth.")
	f.IntVar(&w.Rounds, "rounds", w.Rounds, "value at which pingpong stops.")
	f.IntVar(&w.Limit, "limit", w.Limit, "largest candidate primes sieves.")
	f.IntVar(&w.Children, "children", w.Children, "number of children batchfork forks.")
}

func (w *workloadFlags) validate() error {
	if w.Depth < 0 || w.Rounds < 0 || w.Limit < 0 || w.Children < 0 {
		return errors.New("workload parameters must not be negative")
	}
	return nil
}

func lookupWorkloads(names []string) ([]workload.Workload, error) {
	if len(names) == 0 {
		return nil, errors.New("no workload given, see 'exosim list'")
	}
	var ws []workload.Workload
	for _, name := range names {
		w, ok := workload.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown workload %q, see 'exosim list'", name)
		}
		ws = append(ws, w)
	}
	return ws, nil
}
