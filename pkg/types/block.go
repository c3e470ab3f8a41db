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

package types

import (
	"fmt"

	"github.com/hltonline/eventplane/pkg/topic"
)

// Block is one typed payload of an event. It is only valid for the event
// cycle that produced it.
type Block struct {
	Origin        topic.Origin
	Type          topic.DataType
	Specification uint32
	Payload       []byte
}

// Size is the payload length in bytes.
func (b Block) Size() int { return len(b.Payload) }

// Topic returns the encoded topic of the block.
func (b Block) Topic() topic.Topic { return topic.Encode(b.Type, b.Origin) }

// IsZero reports whether b is the empty block returned for invalid lookups.
func (b Block) IsZero() bool {
	return b.Origin == topic.Origin{} && b.Type == topic.DataType{} && b.Specification == 0 && b.Payload == nil
}

// IsPrivate reports whether the block carries the private origin.
func (b Block) IsPrivate() bool { return b.Origin == topic.OriginPrivate }

func (b Block) String() string {
	return fmt.Sprintf("%s:%s spec 0x%08x size %d", b.Type, b.Origin, b.Specification, len(b.Payload))
}

// Event is the ordered block list of one event.
type Event struct {
	ID     uint64
	Blocks []Block
}
