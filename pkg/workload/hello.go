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
		Name:     "hello",
		Synopsis: "print a greeting and the environment id",
		New: func(Params) kernel.Program {
			return func(t *kernel.Task) {
				libos.Printf(t, "hello, world\n")
				libos.Printf(t, "i am environment %v\n", libos.ThisEnv(t))
			}
		},
	})
}
