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

package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCode(t *testing.T) {
	dt, err := ParseDataType("CL")
	require.NoError(t, err)
	assert.Equal(t, DataType{'C', 'L', ' ', ' '}, dt)
	assert.Equal(t, "CL", dt.String())

	_, err = ParseDataType("CLUSTERS")
	assert.Error(t, err)

	_, err = ParseOrigin("T\x00C")
	assert.Error(t, err)

	o, err := ParseOrigin("")
	require.NoError(t, err)
	assert.Equal(t, "", o.String())
}

func TestEncodeIsDeterministicAndInjective(t *testing.T) {
	types := []string{"CLST", "TRAC", "ROOT", "A", "AB", "ECSP"}
	origins := []string{"TPC", "ITS", "PRIV", "X", "HLT"}

	seen := map[Topic]string{}
	for _, ts := range types {
		for _, os := range origins {
			dt := MustDataType(ts)
			o := MustOrigin(os)
			tp := Encode(dt, o)
			assert.Equal(t, tp, Encode(dt, o))
			assert.Equal(t, dt, tp.DataType())
			assert.Equal(t, o, tp.Origin())

			key := ts + "/" + os
			if prev, ok := seen[tp]; ok {
				t.Fatalf("topic collision between %s and %s", prev, key)
			}
			seen[tp] = key
		}
	}
}

func TestMatch(t *testing.T) {
	tpc := Encode(MustDataType("CLST"), MustOrigin("TPC"))
	its := Encode(MustDataType("CLST"), MustOrigin("ITS"))

	tests := []struct {
		name      string
		requested []byte
		length    int
		candidate Topic
		want      bool
	}{
		{"reflexive", tpc[:], Size, tpc, true},
		{"zero length matches all", []byte("garbage"), 0, tpc, true},
		{"negative length matches all", nil, -1, its, true},
		{"different origin", tpc[:], Size, its, false},
		{"origin prefix", []byte("TPC "), CodeSize, tpc, true},
		{"origin prefix other detector", []byte("TPC "), CodeSize, its, false},
		{"wildcard origin explicit type", []byte("****CLST"), Size, its, true},
		{"wildcard origin other type", []byte("****TRAC"), Size, its, false},
		{"length longer than request", []byte("TPC"), Size, tpc, true},
		{"length longer than topic", append(tpc.Bytes(), 'x'), Size + 1, tpc, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.requested, tt.candidate, tt.length))
		})
	}
}

func TestFromBytesPadsWithWildcards(t *testing.T) {
	tp := FromBytes([]byte("TPC "))
	assert.Equal(t, MustOrigin("TPC"), tp.Origin())
	assert.True(t, tp.DataType().IsWildcard())
	assert.True(t, Match(tp[:], Encode(MustDataType("CLST"), MustOrigin("TPC")), Size))
}

func TestEnvParamsTopic(t *testing.T) {
	assert.Equal(t, OriginPrivate, EnvParamsTopic.Origin())
	assert.Equal(t, DataTypeEnvParams, EnvParamsTopic.DataType())
	assert.Equal(t, "ECSP:PRIV", EnvParamsTopic.String())
}
