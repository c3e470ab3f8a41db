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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/klog/v2"

	"github.com/hltonline/eventplane/pkg/constants"
	"github.com/hltonline/eventplane/pkg/discovery"
	"github.com/hltonline/eventplane/pkg/types"
)

// ConnectionState of a Manager.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connected
)

func (s ConnectionState) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// DetectorScope restricts a connection to sources of one data origin.
// Empty or "ALL" selects every source.
type DetectorScope string

const AllDetectors DetectorScope = "ALL"

// Matches reports whether a source with the given origin is in scope.
func (d DetectorScope) Matches(origin string) bool {
	scope := strings.TrimSpace(string(d))
	if scope == "" || strings.EqualFold(scope, string(AllDetectors)) {
		return true
	}
	return strings.EqualFold(scope, strings.TrimSpace(origin))
}

// SourceLister is the part of the source registry the manager depends on.
type SourceLister interface {
	SelectedSources(match func(origin string) bool) []discovery.SourceDescriptor
	StateHasChanged() bool
	ClearStateChanged()
}

// DialFunc opens a byte stream to a source.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Config tunes the manager.
type Config struct {
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	MaxBlockSize int
	Dial         DialFunc
}

func (c *Config) withDefaults() Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if out.DialTimeout <= 0 {
		out.DialTimeout = constants.DefaultDialTimeout
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = constants.DefaultReadTimeout
	}
	if out.MaxBlockSize <= 0 {
		out.MaxBlockSize = DefaultMaxBlockSize
	}
	if out.Dial == nil {
		d := &net.Dialer{Timeout: out.DialTimeout}
		out.Dial = d.DialContext
	}
	return out
}

type reader struct {
	address string
	conn    net.Conn
	buf     *bufio.Reader
}

// Manager owns the byte-stream readers to the selected sources. Connect,
// Disconnect and NextEvent run on one control path; Disconnect may also be
// called from another goroutine to unblock a pending NextEvent.
type Manager struct {
	sources SourceLister
	config  Config

	mu         sync.Mutex
	readers    []*reader
	state      ConnectionState
	generation atomic.Uint64
}

// NewManager creates a disconnected manager reading the selection of sources.
func NewManager(sources SourceLister, config *Config) *Manager {
	return &Manager{
		sources: sources,
		config:  config.withDefaults(),
	}
}

// State returns the current connection state.
func (m *Manager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether at least one reader is open.
func (m *Manager) IsConnected() bool {
	return m.State() == Connected
}

// readoutList clears the changed flag before reading the selection, so a
// change made while connecting is seen by the next SyncSelection.
func (m *Manager) readoutList(scope DetectorScope) []string {
	m.sources.ClearStateChanged()
	selected := m.sources.SelectedSources(scope.Matches)
	addresses := make([]string, 0, len(selected))
	for _, s := range selected {
		addresses = append(addresses, s.Address())
	}
	return addresses
}

// Connect opens readers to every selected source in scope. It is a no-op
// when already connected.
func (m *Manager) Connect(ctx context.Context, scope DetectorScope) error {
	if m.IsConnected() {
		return nil
	}
	addresses := m.readoutList(scope)
	if len(addresses) == 0 {
		return fmt.Errorf("%w (scope %q)", ErrNoSelection, scope)
	}
	return m.open(ctx, addresses)
}

func (m *Manager) open(ctx context.Context, addresses []string) error {
	readers := make([]*reader, 0, len(addresses))
	var errs []error
	for _, address := range addresses {
		conn, err := m.config.Dial(ctx, "tcp", address)
		if err != nil {
			klog.Warningf("Failed to open reader for %s: %v", address, err)
			errs = append(errs, err)
			continue
		}
		readers = append(readers, &reader{address: address, conn: conn, buf: bufio.NewReader(conn)})
	}
	if len(readers) == 0 {
		return fmt.Errorf("%w: %v", ErrIO, errors.Join(errs...))
	}
	if len(errs) > 0 {
		klog.Warningf("Connected to %d of %d sources", len(readers), len(addresses))
	}

	m.mu.Lock()
	m.readers = readers
	m.state = Connected
	m.generation.Add(1)
	m.mu.Unlock()

	openReaders.Set(float64(len(readers)))
	klog.Infof("Connected to %d sources", len(readers))
	return nil
}

// Disconnect closes every reader. It always succeeds and is safe to call
// repeatedly or concurrently with NextEvent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	readers := m.readers
	wasConnected := m.state == Connected
	m.readers = nil
	m.state = Disconnected
	m.generation.Add(1)
	m.mu.Unlock()

	for _, r := range readers {
		if err := r.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			klog.V(4).Infof("Closing reader for %s: %v", r.address, err)
		}
	}
	openReaders.Set(0)
	if wasConnected {
		klog.Infof("Disconnected from %d sources", len(readers))
	}
}

// Reconnect replaces the current readers with readers for the current
// selection. An empty selection leaves the current connection untouched.
func (m *Manager) Reconnect(ctx context.Context, scope DetectorScope) error {
	addresses := m.readoutList(scope)
	if len(addresses) == 0 {
		return fmt.Errorf("%w (scope %q)", ErrNoSelection, scope)
	}
	m.Disconnect()
	return m.open(ctx, addresses)
}

// SyncSelection reconnects when the selection changed since the last
// connect, and connects when not connected.
func (m *Manager) SyncSelection(ctx context.Context, scope DetectorScope) error {
	if !m.IsConnected() {
		return m.Connect(ctx, scope)
	}
	if !m.sources.StateHasChanged() {
		return nil
	}
	klog.V(4).Info("Source selection changed, reconnecting")
	return m.Reconnect(ctx, scope)
}

// NextEvent reads one event from every open reader and merges their blocks.
// The event id is the id reported by the first reader that delivered one.
func (m *Manager) NextEvent() (*EventHandle, error) {
	m.mu.Lock()
	readers := m.readers
	generation := m.generation.Load()
	m.mu.Unlock()

	if len(readers) == 0 {
		return nil, ErrClosed
	}

	var merged *types.Event
	var lastErr error
	var broken []*reader
	for _, r := range readers {
		ev, err := m.readOne(r)
		if err != nil {
			lastErr = err
			if !errors.Is(err, ErrTimeout) {
				broken = append(broken, r)
			}
			continue
		}
		if merged == nil {
			merged = &types.Event{ID: ev.ID}
		}
		merged.Blocks = append(merged.Blocks, ev.Blocks...)
	}

	if len(broken) > 0 {
		m.drop(generation, broken)
	}
	if merged == nil {
		return nil, lastErr
	}

	eventsTotal.Inc()
	blocksTotal.Add(float64(len(merged.Blocks)))
	klog.V(5).Infof("Event 0x%016x with %d blocks", merged.ID, len(merged.Blocks))
	return &EventHandle{manager: m, generation: generation, event: merged}, nil
}

func (m *Manager) readOne(r *reader) (*types.Event, error) {
	if err := r.conn.SetReadDeadline(time.Now().Add(m.config.ReadTimeout)); err != nil {
		return nil, classify(r, err)
	}
	if _, err := r.buf.Peek(1); err != nil {
		return nil, classify(r, err)
	}
	// A started event gets a full timeout of its own.
	if err := r.conn.SetReadDeadline(time.Now().Add(m.config.ReadTimeout)); err != nil {
		return nil, classify(r, err)
	}
	ev, err := ReadEvent(r.buf, m.config.MaxBlockSize)
	if err != nil {
		if errors.Is(err, ErrBadFrame) {
			readErrorsTotal.WithLabelValues("bad_frame").Inc()
			klog.Errorf("Reader for %s is out of sync: %v", r.address, err)
			return nil, fmt.Errorf("%w: %s: %v", ErrClosed, r.address, err)
		}
		// The stream cannot be resynchronized after a partial event.
		cerr := classify(r, err)
		if errors.Is(cerr, ErrTimeout) {
			return nil, fmt.Errorf("%w: %s timed out inside an event", ErrClosed, r.address)
		}
		return nil, cerr
	}
	return ev, nil
}

func classify(r *reader, err error) error {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		readErrorsTotal.WithLabelValues("timeout").Inc()
		return fmt.Errorf("%w: %s", ErrTimeout, r.address)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
		readErrorsTotal.WithLabelValues("closed").Inc()
		return fmt.Errorf("%w: %s", ErrClosed, r.address)
	default:
		readErrorsTotal.WithLabelValues("io").Inc()
		return fmt.Errorf("%w: %s: %v", ErrClosed, r.address, err)
	}
}

// drop closes readers that can no longer deliver events, unless a
// reconnect already replaced them.
func (m *Manager) drop(generation uint64, broken []*reader) {
	m.mu.Lock()
	if m.generation.Load() != generation {
		m.mu.Unlock()
		return
	}
	remaining := m.readers[:0:0]
	for _, r := range m.readers {
		keep := true
		for _, b := range broken {
			if r == b {
				keep = false
				break
			}
		}
		if keep {
			remaining = append(remaining, r)
		}
	}
	m.readers = remaining
	if len(remaining) == 0 {
		m.state = Disconnected
		m.generation.Add(1)
	}
	m.mu.Unlock()

	for _, b := range broken {
		klog.Warningf("Dropping reader for %s", b.address)
		_ = b.conn.Close()
	}
	openReaders.Set(float64(len(remaining)))
}
