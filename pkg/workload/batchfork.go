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
	"exo.dev/exo/pkg/kernel"
	"exo.dev/exo/pkg/libos"
)

func init() {
	register(Workload{
		Name:     "batchfork",
		Synopsis: "fork children with batched address space duplication",
		New: func(p Params) kernel.Program {
			p.Batched = true
			return func(t *kernel.Task) {
				parent := libos.ThisEnv(t)
				for i := 0; i < p.Children; i++ {
					p.fork(t, func(t *kernel.Task) {
						libos.Printf(t, "%v: child %d of %v\n", libos.ThisEnv(t), i, parent)
					})
				}
				libos.Printf(t, "%v: forked %d children\n", libos.ThisEnv(t), p.Children)
			}
		},
	})
}
