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

package discovery

import (
	"fmt"
	"net"
	"strconv"
)

// SourceDescriptor is one data source advertised by the proxy. Only Selected
// changes after discovery; everything else is replaced on the next refresh.
type SourceDescriptor struct {
	Hostname          string `json:"hostname" msgpack:"hostname"`
	Port              int    `json:"port" msgpack:"port"`
	DataOrigin        string `json:"dataOrigin" msgpack:"origin"`
	DataType          string `json:"dataType" msgpack:"type"`
	DataSpecification string `json:"dataSpecification,omitempty" msgpack:"spec"`
	Selected          bool   `json:"selected" msgpack:"selected"`
}

// Key uniquely identifies the source within one discovery result.
func (s SourceDescriptor) Key() string {
	return fmt.Sprintf("%s/%s/%s/%s", s.Address(), s.DataOrigin, s.DataType, s.DataSpecification)
}

// Address returns the host:port pair to open a reader on.
func (s SourceDescriptor) Address() string {
	return net.JoinHostPort(s.Hostname, strconv.Itoa(s.Port))
}

func (s SourceDescriptor) String() string {
	return fmt.Sprintf("%s %s:%s (spec %s)", s.Address(), s.DataType, s.DataOrigin, s.DataSpecification)
}
