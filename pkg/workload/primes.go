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

package workload

import (
	"exo.dev/exo/pkg/abi/exo"
	"exo.dev/exo/pkg/kernel"
	"exo.dev/exo/pkg/libos"
)

func init() {
	register(Workload{
		Name:     "primes",
		Synopsis: "sieve primes with a pipeline of forked filters",
		New: func(p Params) kernel.Program {
			return func(t *kernel.Task) {
				id := p.fork(t, func(t *kernel.Task) {
					primeproc(t, p)
				})
				for i := 2; i <= p.Limit; i++ {
					send(t, id, uint64(i))
				}
				// Zero shuts the pipeline down.
				send(t, id, 0)
			}
		},
	})
}

func primeproc(t *kernel.Task, p Params) {
	prime := recv(t)
	if prime == 0 {
		return
	}
	libos.Printf(t, "CPU 0: %d\n", prime)

	var next exo.EnvID
	for {
		i := recv(t)
		switch {
		case i == 0:
			if next != 0 {
				send(t, next, 0)
			}
			return
		case i%prime == 0:
		default:
			if next == 0 {
				next = p.fork(t, func(t *kernel.Task) {
					primeproc(t, p)
				})
			}
			send(t, next, i)
		}
	}
}

func recv(t *kernel.Task) uint64 {
	v, _, _, err := libos.IPCRecv(t, libos.NoPage)
	if err != nil {
		panic(err)
	}
	return v
}
