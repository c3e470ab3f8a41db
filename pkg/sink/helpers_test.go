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

package sink

import (
	"errors"
	"time"

	"github.com/hltonline/eventplane/pkg/topic"
	"github.com/hltonline/eventplane/pkg/types"
)

var errSendFailed = errors.New("resource temporarily unavailable")

type sentFrame struct {
	data  string
	flags SendFlags
}

// fakeSocket records sent frames and replays queued requests.
type fakeSocket struct {
	pattern   Pattern
	endpoints []Endpoint
	sent      []sentFrame
	requests  [][][]byte
	failSends int
	closed    int
}

func (f *fakeSocket) Send(frame []byte, flags SendFlags) error {
	if f.failSends > 0 {
		f.failSends--
		return errSendFailed
	}
	f.sent = append(f.sent, sentFrame{data: string(frame), flags: flags})
	return nil
}

func (f *fakeSocket) PollIn(timeout time.Duration) (bool, error) {
	return len(f.requests) > 0, nil
}

func (f *fakeSocket) RecvFrame() ([]byte, bool, error) {
	if len(f.requests) == 0 {
		return nil, false, errors.New("no request")
	}
	parts := f.requests[0]
	part := parts[0]
	if len(parts) == 1 {
		f.requests = f.requests[1:]
		return part, false, nil
	}
	f.requests[0] = parts[1:]
	return part, true, nil
}

func (f *fakeSocket) Close() error {
	f.closed++
	return nil
}

func (f *fakeSocket) request(parts ...string) {
	req := make([][]byte, 0, len(parts))
	for _, p := range parts {
		req = append(req, []byte(p))
	}
	f.requests = append(f.requests, req)
}

func (f *fakeSocket) frames() []string {
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.data)
	}
	return out
}

func (f *fakeSocket) reset() {
	f.sent = nil
}

// newTestSink returns an initialized sink writing to a fake socket.
func newTestSink(options string, opts ...Option) (*Sink, *fakeSocket, error) {
	socket := &fakeSocket{}
	factory := func(pattern Pattern, endpoints []Endpoint) (Socket, error) {
		socket.pattern = pattern
		socket.endpoints = endpoints
		return socket, nil
	}
	s := New(append([]Option{WithSocketFactory(factory)}, opts...)...)
	if err := s.Init(options); err != nil {
		return nil, nil, err
	}
	return s, socket, nil
}

func block(dataType, origin, payload string) types.Block {
	return types.Block{
		Origin:  topic.MustOrigin(origin),
		Type:    topic.MustDataType(dataType),
		Payload: []byte(payload),
	}
}

func topicString(dataType, origin string) string {
	return string(topic.Encode(topic.MustDataType(dataType), topic.MustOrigin(origin)).Bytes())
}

// fakeClock is advanced by hand.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
