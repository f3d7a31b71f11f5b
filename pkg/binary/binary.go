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

// Package binary translates fixed-size records to and from the byte layout
// they have in simulated user memory.
package binary

import (
	"encoding/binary"
	"fmt"
	"reflect"
)

// ByteOrder can both decode and append fixed-width integers.
type ByteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// LittleEndian is the byte order of the simulated machine.
var LittleEndian ByteOrder = binary.LittleEndian

// Marshal appends the encoding of data to buf.
//
// data may contain unsigned and signed fixed-width integers, arrays and
// structs of those. data may be a pointer but may not contain pointers.
func Marshal(buf []byte, order ByteOrder, data any) []byte {
	return marshal(buf, order, reflect.Indirect(reflect.ValueOf(data)))
}

func marshal(buf []byte, order ByteOrder, v reflect.Value) []byte {
	switch v.Kind() {
	case reflect.Uint8:
		return append(buf, byte(v.Uint()))
	case reflect.Uint16:
		return order.AppendUint16(buf, uint16(v.Uint()))
	case reflect.Uint32:
		return order.AppendUint32(buf, uint32(v.Uint()))
	case reflect.Uint64, reflect.Uintptr:
		return order.AppendUint64(buf, v.Uint())
	case reflect.Int32:
		return order.AppendUint32(buf, uint32(int32(v.Int())))
	case reflect.Int64:
		return order.AppendUint64(buf, uint64(v.Int()))
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			buf = marshal(buf, order, v.Index(i))
		}
		return buf
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			buf = marshal(buf, order, v.Field(i))
		}
		return buf
	default:
		panic("invalid type: " + v.Type().String())
	}
}

// Unmarshal decodes buf into the value pointed to by data. buf must be
// exactly Size(data) bytes long.
func Unmarshal(buf []byte, order ByteOrder, data any) {
	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Ptr {
		panic("invalid type: " + v.Type().String())
	}
	if rest := unmarshal(buf, order, v.Elem()); len(rest) != 0 {
		panic(fmt.Sprintf("buffer too long by %d bytes", len(rest)))
	}
}

func unmarshal(buf []byte, order ByteOrder, v reflect.Value) []byte {
	switch v.Kind() {
	case reflect.Uint8:
		v.SetUint(uint64(buf[0]))
		return buf[1:]
	case reflect.Uint16:
		v.SetUint(uint64(order.Uint16(buf)))
		return buf[2:]
	case reflect.Uint32:
		v.SetUint(uint64(order.Uint32(buf)))
		return buf[4:]
	case reflect.Uint64, reflect.Uintptr:
		v.SetUint(order.Uint64(buf))
		return buf[8:]
	case reflect.Int32:
		v.SetInt(int64(int32(order.Uint32(buf))))
		return buf[4:]
	case reflect.Int64:
		v.SetInt(int64(order.Uint64(buf)))
		return buf[8:]
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			buf = unmarshal(buf, order, v.Index(i))
		}
		return buf
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			buf = unmarshal(buf, order, v.Field(i))
		}
		return buf
	default:
		panic("invalid type: " + v.Type().String())
	}
}

// Size returns the number of bytes Marshal produces for v.
func Size(v any) uintptr {
	return sizeof(reflect.Indirect(reflect.ValueOf(v)).Type())
}

func sizeof(t reflect.Type) uintptr {
	switch t.Kind() {
	case reflect.Uint8:
		return 1
	case reflect.Uint16:
		return 2
	case reflect.Uint32, reflect.Int32:
		return 4
	case reflect.Uint64, reflect.Uintptr, reflect.Int64:
		return 8
	case reflect.Array:
		return uintptr(t.Len()) * sizeof(t.Elem())
	case reflect.Struct:
		var size uintptr
		for i := 0; i < t.NumField(); i++ {
			size += sizeof(t.Field(i).Type)
		}
		return size
	default:
		panic("invalid type: " + t.String())
	}
}
