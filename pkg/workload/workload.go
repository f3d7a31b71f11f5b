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

// Package workload contains the user programs that exosim can run.
package workload

import (
	"sort"

	"exo.dev/exo/pkg/abi/exo"
	"exo.dev/exo/pkg/kernel"
	"exo.dev/exo/pkg/libos"
)

// Params tune the workloads.
type Params struct {
	// Depth is the depth of the forktree.
	Depth int

	// Rounds is the value at which pingpong stops.
	Rounds int

	// Limit is the largest candidate primes sieves.
	Limit int

	// Children is the number of children batchfork creates.
	Children int

	// Batched makes the workloads fork with libos.ForkBatched.
	Batched bool

	// IPCSendRetries, if non-zero, bounds the retries of each IPC send.
	IPCSendRetries uint64
}

// DefaultParams returns the parameters used when none are given.
func DefaultParams() Params {
	return Params{
		Depth:    3,
		Rounds:   10,
		Limit:    100,
		Children: 4,
	}
}

func (p Params) fork(t *kernel.Task, child kernel.Program) exo.EnvID {
	fork := libos.Fork
	if p.Batched {
		fork = libos.ForkBatched
	}
	id, err := fork(t, child)
	if err != nil {
		panic(err)
	}
	return id
}

// Workload is a named user program.
type Workload struct {
	// Name is the name the workload is run by.
	Name string

	// Synopsis is a one-line description.
	Synopsis string

	// New returns the program's entry point.
	New func(p Params) kernel.Program
}

var workloads = make(map[string]Workload)

func register(w Workload) {
	if _, ok := workloads[w.Name]; ok {
		panic("duplicate workload " + w.Name)
	}
	workloads[w.Name] = w
}

// Lookup returns the workload called name.
func Lookup(name string) (Workload, bool) {
	w, ok := workloads[name]
	return w, ok
}

// List returns every workload, sorted by name.
func List() []Workload {
	ws := make([]Workload, 0, len(workloads))
	for _, w := range workloads {
		ws = append(ws, w)
	}
	sort.Slice(ws, func(i, j int) bool { return ws[i].Name < ws[j].Name })
	return ws
}

// Main wraps prog with the setup every root environment does before its
// main function.
func Main(p Params, prog kernel.Program) kernel.Program {
	return func(t *kernel.Task) {
		if p.IPCSendRetries != 0 {
			libos.SetIPCSendRetries(t, p.IPCSendRetries)
		}
		prog(t)
	}
}
