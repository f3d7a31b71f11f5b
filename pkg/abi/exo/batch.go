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

// MaxBatch is the largest number of records a single batch may carry.
const MaxBatch = 20

// BatchRecord is one system call in a batch.
type BatchRecord struct {
	Sysno uint64
	Args  [5]uint64
}

// BatchRecordSize is the encoded size of a BatchRecord.
const BatchRecordSize = 48

// MarshalBatch appends the encoding of recs to buf.
func MarshalBatch(buf []byte, recs []BatchRecord) []byte {
	for i := range recs {
		buf = binary.Marshal(buf, binary.LittleEndian, &recs[i])
	}
	return buf
}

// UnmarshalBatch decodes len(buf)/BatchRecordSize records from buf. len(buf)
// must be a multiple of BatchRecordSize.
func UnmarshalBatch(buf []byte) []BatchRecord {
	recs := make([]BatchRecord, len(buf)/BatchRecordSize)
	for i := range recs {
		binary.Unmarshal(buf[i*BatchRecordSize:(i+1)*BatchRecordSize], binary.LittleEndian, &recs[i])
	}
	return recs
}
