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
		Name:     "pingpong",
		Synopsis: "bounce a counter between a parent and a child over IPC",
		New: func(p Params) kernel.Program {
			return func(t *kernel.Task) {
				who := p.fork(t, func(t *kernel.Task) {
					pingpong(t, p)
				})
				libos.Printf(t, "send 0 from %v to %v\n", libos.ThisEnv(t), who)
				if err := libos.IPCSend(t, who, 0, libos.NoPage, 0); err != nil {
					panic(err)
				}
				pingpong(t, p)
			}
		},
	})
}

func pingpong(t *kernel.Task, p Params) {
	for {
		v, who, _, err := libos.IPCRecv(t, libos.NoPage)
		if err != nil {
			panic(err)
		}
		libos.Printf(t, "%v got %d from %v\n", libos.ThisEnv(t), v, who)
		if v == uint64(p.Rounds) {
			return
		}
		v++
		send(t, who, v)
		if v == uint64(p.Rounds) {
			return
		}
	}
}

func send(t *kernel.Task, to exo.EnvID, v uint64) {
	if err := libos.IPCSend(t, to, v, libos.NoPage, 0); err != nil {
		panic(err)
	}
}
