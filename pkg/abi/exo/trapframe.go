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

package exo

import (
	"exo.dev/exo/pkg/binary"
)

// Regs are the general purpose registers visible across a system call. Ret
// carries the result, Aux a secondary result, and Args the arguments.
type Regs struct {
	Ret  uint64
	Aux  uint64
	Args [5]uint64
}

// EFLAGS bits the kernel enforces on user frames.
const (
	// FLInterrupt is the interrupt enable flag.
	FLInterrupt = 0x00000200

	// FLIOPLMask is the I/O privilege level field.
	FLIOPLMask = 0x00003000
)

// TrapFrame is the saved user state of an environment. PC is a text
// address naming where the environment resumes.
type TrapFrame struct {
	Regs   Regs
	PC     uint64
	SP     uint64
	CPL    uint32
	EFlags uint32
}

// TrapFrameSize is the encoded size of a TrapFrame.
const TrapFrameSize = 80

// Marshal appends the encoding of tf to buf.
func (tf *TrapFrame) Marshal(buf []byte) []byte {
	return binary.Marshal(buf, binary.LittleEndian, tf)
}

// Unmarshal decodes buf, which must be TrapFrameSize bytes, into tf.
func (tf *TrapFrame) Unmarshal(buf []byte) {
	binary.Unmarshal(buf, binary.LittleEndian, tf)
}

// UTrapframe is the frame pushed on the user exception stack when a page
// fault is delivered to the environment's upcall.
type UTrapframe struct {
	FaultVA uint64
	Err     uint64
	Regs    Regs
	PC      uint64
	SP      uint64
}

// UTrapframeSize is the encoded size of a UTrapframe.
const UTrapframeSize = 88

// Marshal appends the encoding of utf to buf.
func (utf *UTrapframe) Marshal(buf []byte) []byte {
	return binary.Marshal(buf, binary.LittleEndian, utf)
}

// Unmarshal decodes buf, which must be UTrapframeSize bytes, into utf.
func (utf *UTrapframe) Unmarshal(buf []byte) {
	binary.Unmarshal(buf, binary.LittleEndian, utf)
}
