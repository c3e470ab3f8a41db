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
	"github.com/hltonline/eventplane/pkg/types"
)

// EventHandle gives access to the blocks of one event. It is invalidated by
// the next Disconnect or Reconnect of the manager that produced it.
type EventHandle struct {
	manager    *Manager
	generation uint64
	event      *types.Event
}

// ID returns the event id.
func (h *EventHandle) ID() uint64 { return h.event.ID }

// BlockCount returns the number of blocks, or 0 for a stale handle.
func (h *EventHandle) BlockCount() int {
	if !h.Valid() {
		return 0
	}
	return len(h.event.Blocks)
}

// GetBlock returns block i. Out of range indexes and stale handles yield a
// zero Block.
func (h *EventHandle) GetBlock(i int) types.Block {
	if !h.Valid() || i < 0 || i >= len(h.event.Blocks) {
		return types.Block{}
	}
	return h.event.Blocks[i]
}

// Blocks returns the block list, or nil for a stale handle.
func (h *EventHandle) Blocks() []types.Block {
	if !h.Valid() {
		return nil
	}
	return h.event.Blocks
}

// Event returns the event for handing to a sink, or nil for a stale handle.
func (h *EventHandle) Event() *types.Event {
	if !h.Valid() {
		return nil
	}
	return h.event
}

// Valid reports whether the connection that produced the handle is still
// the current one.
func (h *EventHandle) Valid() bool {
	return h.manager != nil && h.manager.generation.Load() == h.generation
}
