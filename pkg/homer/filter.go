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

package homer

import (
	"github.com/hltonline/eventplane/pkg/topic"
	"github.com/hltonline/eventplane/pkg/types"
)

// RequestFilter decides which blocks of an event were asked for.
// The zero value requests nothing.
type RequestFilter struct {
	// AllTypes requests every block regardless of Requested.
	AllTypes bool
	// Requested holds (type, origin) pairs; either side may be a wildcard.
	Requested []topic.Topic
}

// NewRequestFilter builds a filter for the given topics. A topic that is
// wildcard on both sides turns the filter into AllTypes.
func NewRequestFilter(topics ...topic.Topic) RequestFilter {
	f := RequestFilter{}
	for _, t := range topics {
		if t.DataType().IsWildcard() && t.Origin().IsWildcard() {
			f.AllTypes = true
		}
		f.Requested = append(f.Requested, t)
	}
	return f
}

// IsRequested reports whether b matches the filter.
func (f RequestFilter) IsRequested(b types.Block) bool {
	if f.AllTypes {
		return true
	}
	candidate := b.Topic()
	for _, t := range f.Requested {
		if topic.Match(t.Bytes(), candidate, topic.Size) {
			return true
		}
	}
	return false
}
