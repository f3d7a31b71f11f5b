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

package kernel

import (
	"sync/atomic"
)

// Stats are kernel-wide event counters.
type Stats struct {
	// Crossings counts entries into the kernel through Task.Syscall.
	Crossings atomic.Uint64

	// Syscalls counts dispatched system calls, including batch records.
	Syscalls atomic.Uint64

	// Faults counts page faults taken by user accesses.
	Faults atomic.Uint64

	// EnvsCreated counts allocated environments.
	EnvsCreated atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Crossings   uint64
	Syscalls    uint64
	Faults      uint64
	EnvsCreated uint64
}

func (s *Stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		Crossings:   s.Crossings.Load(),
		Syscalls:    s.Syscalls.Load(),
		Faults:      s.Faults.Load(),
		EnvsCreated: s.EnvsCreated.Load(),
	}
}

// Sub returns the counts accumulated between old and s.
func (s StatsSnapshot) Sub(old StatsSnapshot) StatsSnapshot {
	return StatsSnapshot{
		Crossings:   s.Crossings - old.Crossings,
		Syscalls:    s.Syscalls - old.Syscalls,
		Faults:      s.Faults - old.Faults,
		EnvsCreated: s.EnvsCreated - old.EnvsCreated,
	}
}
