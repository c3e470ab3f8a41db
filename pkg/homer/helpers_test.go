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
	"net"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/hltonline/eventplane/pkg/discovery"
	"github.com/hltonline/eventplane/pkg/topic"
	"github.com/hltonline/eventplane/pkg/types"
)

type fakeLister struct {
	mu       sync.Mutex
	sources  []discovery.SourceDescriptor
	changed  bool
	clearCnt int
}

func (f *fakeLister) SelectedSources(match func(origin string) bool) []discovery.SourceDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []discovery.SourceDescriptor
	for _, s := range f.sources {
		if s.Selected && match(s.DataOrigin) {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakeLister) StateHasChanged() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.changed
}

func (f *fakeLister) ClearStateChanged() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changed = false
	f.clearCnt++
}

func (f *fakeLister) set(changed bool, sources ...discovery.SourceDescriptor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = sources
	f.changed = changed
}

// fakeSource is a HOMER byte-stream server on the loopback interface.
type fakeSource struct {
	listener net.Listener
	accepted chan net.Conn
}

func newFakeSource() (*fakeSource, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &fakeSource{listener: l, accepted: make(chan net.Conn, 8)}
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			s.accepted <- conn
		}
	}()
	return s, nil
}

func (s *fakeSource) descriptor(origin string) discovery.SourceDescriptor {
	addr := s.listener.Addr().(*net.TCPAddr)
	return discovery.SourceDescriptor{
		Hostname:   "127.0.0.1",
		Port:       addr.Port,
		DataOrigin: origin,
		DataType:   "DDL_RAW",
		Selected:   true,
	}
}

func (s *fakeSource) Close() {
	_ = s.listener.Close()
}

// closedAddress returns a loopback port with nothing listening on it.
func closedAddress() (discovery.SourceDescriptor, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return discovery.SourceDescriptor{}, err
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()
	return discovery.SourceDescriptor{Hostname: "127.0.0.1", Port: port, DataOrigin: "TPC", DataType: "CLUSTERS", Selected: true}, nil
}

func testBlock(dataType, origin, payload string) types.Block {
	return types.Block{
		Origin:  topic.MustOrigin(origin),
		Type:    topic.MustDataType(dataType),
		Payload: []byte(payload),
	}
}

func gaugeValue(g prometheus.Gauge) float64 {
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		return -1
	}
	return m.GetGauge().GetValue()
}
