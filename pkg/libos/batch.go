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

package libos

import (
	"fmt"

	"exo.dev/exo/pkg/abi/exo"
	"exo.dev/exo/pkg/kernel"
)

// BatchThreshold is the number of buffered records at which a Batch
// flushes itself.
const BatchThreshold = 16

// BatchError reports the record of a batch that failed.
type BatchError struct {
	// Index is the position of the record in its batch.
	Index int

	// Sysno is the record's system call.
	Sysno exo.Sysno

	// Err is the record's error.
	Err error
}

// Error implements error.Error.
func (e *BatchError) Error() string {
	return fmt.Sprintf("batch record %d (%v): %v", e.Index, e.Sysno, e.Err)
}

// Unwrap returns the record's error.
func (e *BatchError) Unwrap() error {
	return e.Err
}

// Batch collects system calls and submits them to the kernel together, with
// one crossing per flush. The records are staged in a page at exo.UTEMP.
//
// A Batch is used by one task.
type Batch struct {
	t         *kernel.Task
	threshold int
	recs      []exo.BatchRecord
	buf       []byte
}

// NewBatch returns an empty batch for t that flushes once it holds
// threshold records. A threshold outside [1, exo.MaxBatch] means
// BatchThreshold.
func NewBatch(t *kernel.Task, threshold int) *Batch {
	if threshold <= 0 || threshold > exo.MaxBatch {
		threshold = BatchThreshold
	}
	return &Batch{
		t:         t,
		threshold: threshold,
		recs:      make([]exo.BatchRecord, 0, exo.MaxBatch),
	}
}

// Len returns the number of buffered records.
func (b *Batch) Len() int {
	return len(b.recs)
}

// Add buffers a call of sysno with up to five arguments, flushing if the
// threshold is reached. Errors of buffered records surface from the flush
// that submits them.
func (b *Batch) Add(sysno exo.Sysno, args ...uint64) error {
	if len(args) > len(exo.BatchRecord{}.Args) {
		panic(fmt.Sprintf("%v: %d arguments", sysno, len(args)))
	}
	rec := exo.BatchRecord{Sysno: uint64(sysno)}
	copy(rec.Args[:], args)
	b.recs = append(b.recs, rec)
	if len(b.recs) >= b.threshold {
		return b.Flush()
	}
	return nil
}

// Flush submits the buffered records. If a record fails, Flush returns a
// *BatchError; the records before it took effect and the rest are dropped.
func (b *Batch) Flush() error {
	if len(b.recs) == 0 {
		return nil
	}
	recs := b.recs
	b.recs = b.recs[:0]

	if perm, ok := b.t.VPT(exo.UTEMP); !ok || perm&exo.PTEWritable == 0 {
		if err := PageAlloc(b.t, 0, exo.UTEMP, urw); err != nil {
			return fmt.Errorf("mapping batch buffer: %w", err)
		}
	}
	b.buf = exo.MarshalBatch(b.buf[:0], recs)
	b.t.CopyOut(exo.UTEMP, b.buf)

	n, err := batch(b.t, exo.UTEMP, len(recs))
	if err == nil {
		if n != len(recs) {
			return fmt.Errorf("batch ran %d of %d records", n, len(recs))
		}
		return nil
	}
	i := int(b.t.Regs().Aux)
	if i >= len(recs) {
		return err
	}
	return &BatchError{Index: i, Sysno: exo.Sysno(recs[i].Sysno), Err: err}
}
