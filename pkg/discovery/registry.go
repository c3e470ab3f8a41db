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
	"context"
	"errors"
	"fmt"
	"sync"

	"k8s.io/klog/v2"
)

// Registry holds the discovered sources and which of them are selected.
// Readers always observe a complete list: refreshes swap it under the lock.
type Registry struct {
	discoverer Discoverer
	store      SnapshotStore

	mu           sync.RWMutex
	sources      []SourceDescriptor
	stateChanged bool
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithSnapshotStore saves every successful discovery to store and restores
// from it when the proxy is unreachable.
func WithSnapshotStore(store SnapshotStore) RegistryOption {
	return func(r *Registry) { r.store = store }
}

// NewRegistry creates an empty registry fed by d.
func NewRegistry(d Discoverer, opts ...RegistryOption) *Registry {
	r := &Registry{discoverer: d}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh rediscovers the sources and replaces the list. Selections of
// sources that are still advertised are kept; the state is marked changed
// when the set of selected sources differs afterwards.
func (r *Registry) Refresh(ctx context.Context) (*Result, error) {
	result, err := r.discoverer.Discover(ctx)
	if err != nil {
		if r.store == nil || !errors.Is(err, ErrUnreachable) {
			return nil, err
		}
		sources, loadErr := r.store.Load(ctx)
		if loadErr != nil {
			return nil, fmt.Errorf("%w (snapshot: %v)", err, loadErr)
		}
		klog.Warningf("Proxy unreachable, restored %d sources from snapshot: %v", len(sources), err)
		result = &Result{Status: StatusSnapshot, Sources: sources}
	} else if r.store != nil && result.Status == StatusOK {
		if saveErr := r.store.Save(ctx, result.Sources); saveErr != nil {
			klog.Warningf("Failed to save source snapshot: %v", saveErr)
		}
	}

	r.replace(result.Sources)
	return result, nil
}

func (r *Registry) replace(discovered []SourceDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := make(map[string]bool, len(r.sources))
	for _, s := range r.sources {
		if s.Selected {
			previous[s.Key()] = true
		}
	}

	next := make([]SourceDescriptor, len(discovered))
	kept := 0
	for i, s := range discovered {
		s.Selected = previous[s.Key()]
		if s.Selected {
			kept++
		}
		next[i] = s
	}

	if kept != len(previous) {
		r.stateChanged = true
	}
	r.sources = next
	r.updateGaugesLocked()
}

// Sources returns a copy of the current list.
func (r *Registry) Sources() []SourceDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SourceDescriptor, len(r.sources))
	copy(out, r.sources)
	return out
}

// SelectedSources returns the selected sources whose origin is accepted by
// match. A nil match accepts every origin.
func (r *Registry) SelectedSources(match func(origin string) bool) []SourceDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []SourceDescriptor
	for _, s := range r.sources {
		if s.Selected && (match == nil || match(s.DataOrigin)) {
			out = append(out, s)
		}
	}
	return out
}

// SetSelection changes the selection of the source with the given key. The
// state is marked changed only when the value actually flips.
func (r *Registry) SetSelection(key string, selected bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.sources {
		if r.sources[i].Key() != key {
			continue
		}
		if r.sources[i].Selected != selected {
			r.sources[i].Selected = selected
			r.stateChanged = true
			r.updateGaugesLocked()
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrSourceNotFound, key)
}

// SelectMatching sets the selection of every source to match(source) and
// returns the number of selected sources.
func (r *Registry) SelectMatching(match func(SourceDescriptor) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for i := range r.sources {
		selected := match(r.sources[i])
		if r.sources[i].Selected != selected {
			r.sources[i].Selected = selected
			r.stateChanged = true
		}
		if selected {
			n++
		}
	}
	r.updateGaugesLocked()
	return n
}

// StateHasChanged reports whether the selection changed since the last
// ClearStateChanged.
func (r *Registry) StateHasChanged() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stateChanged
}

// ClearStateChanged resets the changed flag, typically after reconnecting.
func (r *Registry) ClearStateChanged() {
	r.mu.Lock()
	r.stateChanged = false
	r.mu.Unlock()
}

func (r *Registry) updateGaugesLocked() {
	selected := 0
	for _, s := range r.sources {
		if s.Selected {
			selected++
		}
	}
	discoveredSources.Set(float64(len(r.sources)))
	selectedSources.Set(float64(selected))
}
