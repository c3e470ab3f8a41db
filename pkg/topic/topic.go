// Copyright 2025 The Eventplane Authors
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

// Package topic converts block data types and origins into the fixed-width
// binary keys used for subscription filtering and wire framing.
//
// A Topic is eight bytes: the four byte origin followed by the four byte data
// type. Matching is prefix based, so a four byte request selects every block
// of one origin regardless of its type.
package topic

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	// CodeSize is the width of a data type or origin code.
	CodeSize = 4
	// Size is the width of an encoded topic.
	Size = 2 * CodeSize

	// Wildcard matches any byte at the same position.
	Wildcard = '*'

	padding = ' '
)

// DataType identifies the kind of payload carried by a block.
type DataType [CodeSize]byte

// Origin identifies the producer (usually a detector) of a block.
type Origin [CodeSize]byte

// Topic is the binary key derived from an origin and a data type.
type Topic [Size]byte

var (
	AnyDataType = DataType{Wildcard, Wildcard, Wildcard, Wildcard}
	AnyOrigin   = Origin{Wildcard, Wildcard, Wildcard, Wildcard}

	// OriginPrivate marks blocks that are internal to the producing chain.
	OriginPrivate = MustOrigin("PRIV")
	// DataTypeEnvParams carries the run environment parameter string.
	DataTypeEnvParams = MustDataType("ECSP")
	// DataTypeInfo tags the run number metadata frame.
	DataTypeInfo = MustDataType("INFO")

	// EnvParamsTopic is the reserved topic of the environment parameter block.
	EnvParamsTopic = Encode(DataTypeEnvParams, OriginPrivate)
)

func parseCode(s string) ([CodeSize]byte, error) {
	var code [CodeSize]byte
	if len(s) > CodeSize {
		return code, fmt.Errorf("code %q is longer than %d bytes", s, CodeSize)
	}
	for i := 0; i < CodeSize; i++ {
		if i < len(s) {
			if s[i] < 0x20 || s[i] > 0x7e {
				return code, fmt.Errorf("code %q contains a non printable byte", s)
			}
			code[i] = s[i]
		} else {
			code[i] = padding
		}
	}
	return code, nil
}

// ParseDataType converts a short ASCII code into a DataType. Codes shorter
// than CodeSize are padded with spaces.
func ParseDataType(s string) (DataType, error) {
	code, err := parseCode(s)
	return DataType(code), err
}

// ParseOrigin converts a short ASCII code into an Origin.
func ParseOrigin(s string) (Origin, error) {
	code, err := parseCode(s)
	return Origin(code), err
}

// MustDataType is like ParseDataType but panics on invalid input.
func MustDataType(s string) DataType {
	dt, err := ParseDataType(s)
	if err != nil {
		panic(err)
	}
	return dt
}

// MustOrigin is like ParseOrigin but panics on invalid input.
func MustOrigin(s string) Origin {
	o, err := ParseOrigin(s)
	if err != nil {
		panic(err)
	}
	return o
}

func (d DataType) String() string {
	return strings.TrimRight(string(d[:]), string(padding))
}

func (o Origin) String() string {
	return strings.TrimRight(string(o[:]), string(padding))
}

// IsWildcard reports whether the data type matches everything.
func (d DataType) IsWildcard() bool { return d == AnyDataType }

// IsWildcard reports whether the origin matches everything.
func (o Origin) IsWildcard() bool { return o == AnyOrigin }

// Encode packs a data type and an origin into a Topic.
func Encode(t DataType, o Origin) Topic {
	var tp Topic
	copy(tp[:CodeSize], o[:])
	copy(tp[CodeSize:], t[:])
	return tp
}

// Origin returns the origin part of the topic.
func (t Topic) Origin() Origin {
	var o Origin
	copy(o[:], t[:CodeSize])
	return o
}

// DataType returns the data type part of the topic.
func (t Topic) DataType() DataType {
	var d DataType
	copy(d[:], t[CodeSize:])
	return d
}

// Bytes returns a copy of the topic suitable for a wire frame.
func (t Topic) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, t[:])
	return b
}

func (t Topic) String() string {
	return t.DataType().String() + ":" + t.Origin().String()
}

// FromBytes builds a topic from a received frame. Short frames are padded
// with wildcards so the result matches whatever the sender left out.
func FromBytes(b []byte) Topic {
	var t Topic
	for i := range t {
		if i < len(b) {
			t[i] = b[i]
		} else {
			t[i] = Wildcard
		}
	}
	return t
}

// Match reports whether candidate satisfies the requested prefix. A
// requestedLen of zero or less matches everything; otherwise the first
// requestedLen bytes are compared and a Wildcard byte in requested matches
// any byte of candidate.
func Match(requested []byte, candidate Topic, requestedLen int) bool {
	if requestedLen <= 0 {
		return true
	}
	n := requestedLen
	if n > Size {
		n = Size
	}
	if n > len(requested) {
		n = len(requested)
	}
	if bytes.IndexByte(requested[:n], Wildcard) < 0 {
		return bytes.Equal(requested[:n], candidate[:n])
	}
	for i := 0; i < n; i++ {
		if requested[i] != Wildcard && requested[i] != candidate[i] {
			return false
		}
	}
	return true
}
