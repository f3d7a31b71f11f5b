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

// Package exoerr declares the errors returned across the exo system call
// boundary, and their translation to and from result values.
package exoerr

import (
	"errors"

	exoerrors "exo.dev/exo/pkg/errors"
	"golang.org/x/sys/unix"
)

// Error numbers. The values match the system call ABI.
const (
	codeUnspecified exoerrors.Code = iota + 1
	codeBadEnv
	codeInval
	codeNoMem
	codeNoFreeEnv
	codeFault
	codeIPCNotRecv
	maxCode
)

var (
	// Unspecified is returned when no more specific error applies.
	Unspecified = exoerrors.New(codeUnspecified, "unspecified error")

	// BadTarget is returned for an environment id that is unknown, stale,
	// or that the caller may not act on.
	BadTarget = exoerrors.New(codeBadEnv, "bad environment")

	// InvalidArgument is returned for alignment, permission-bit and
	// status-value violations.
	InvalidArgument = exoerrors.New(codeInval, "invalid parameter")

	// NoMemory is returned when the frame allocator or the page tables
	// cannot satisfy a request.
	NoMemory = exoerrors.New(codeNoMem, "out of memory")

	// NoFreeSlot is returned when the environment table is full.
	NoFreeSlot = exoerrors.New(codeNoFreeEnv, "out of environments")

	// Fault is returned for an invalid memory reference.
	Fault = exoerrors.New(codeFault, "segmentation fault")

	// NotReceiving is returned by a send to an environment that is not
	// blocked in receive.
	NotReceiving = exoerrors.New(codeIPCNotRecv, "env is not recving")
)

var byCode = [maxCode]*exoerrors.Error{
	codeUnspecified: Unspecified,
	codeBadEnv:      BadTarget,
	codeInval:       InvalidArgument,
	codeNoMem:       NoMemory,
	codeNoFreeEnv:   NoFreeSlot,
	codeFault:       Fault,
	codeIPCNotRecv:  NotReceiving,
}

var errnos = [maxCode]unix.Errno{
	codeUnspecified: unix.EIO,
	codeBadEnv:      unix.ESRCH,
	codeInval:       unix.EINVAL,
	codeNoMem:       unix.ENOMEM,
	codeNoFreeEnv:   unix.EAGAIN,
	codeFault:       unix.EFAULT,
	codeIPCNotRecv:  unix.EAGAIN,
}

// ToReturn translates err to a system call result. A nil error yields
// val; errors not declared here are reported as Unspecified.
func ToReturn(val uintptr, err error) int64 {
	if err == nil {
		return int64(val)
	}
	var e *exoerrors.Error
	if errors.As(err, &e) {
		return -int64(e.Code())
	}
	return -int64(codeUnspecified)
}

// FromReturn translates a system call result to an error. Non-negative
// results are successes.
func FromReturn(rv int64) error {
	if rv >= 0 {
		return nil
	}
	if c := -rv; c < int64(maxCode) {
		return byCode[c]
	}
	return Unspecified
}

// Errno returns the host errno closest to err, for reporting outside the
// simulated machine.
func Errno(err error) unix.Errno {
	var e *exoerrors.Error
	if !errors.As(err, &e) || e.Code() >= maxCode {
		return unix.EIO
	}
	return errnos[e.Code()]
}
