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
	"strings"
	"time"
)

// Pattern is a ZMQ socket pattern name.
type Pattern string

const (
	PatternPUB    Pattern = "PUB"
	PatternPUSH   Pattern = "PUSH"
	PatternREP    Pattern = "REP"
	PatternSUB    Pattern = "SUB"
	PatternPULL   Pattern = "PULL"
	PatternREQ    Pattern = "REQ"
	PatternDEALER Pattern = "DEALER"
	PatternROUTER Pattern = "ROUTER"
	PatternPAIR   Pattern = "PAIR"
	PatternSTREAM Pattern = "STREAM"
)

var knownPatterns = map[Pattern]bool{
	PatternPUB: true, PatternPUSH: true, PatternREP: true,
	PatternSUB: true, PatternPULL: true, PatternREQ: true,
	PatternDEALER: true, PatternROUTER: true, PatternPAIR: true, PatternSTREAM: true,
}

func parsePattern(s string) (Pattern, bool) {
	p := Pattern(strings.ToUpper(s))
	return p, knownPatterns[p]
}

// SinkCapable reports whether a sink can publish on the pattern.
func (p Pattern) SinkCapable() bool {
	return p == PatternPUB || p == PatternPUSH || p == PatternREP
}

// RepliesToRequests reports whether the sink only sends in answer to a request.
func (p Pattern) RepliesToRequests() bool {
	return p == PatternREP
}

// SendFlags modify a single frame send.
type SendFlags struct {
	// More marks the frame as followed by another part of the same message.
	More bool
	// DontWait fails the send instead of blocking when the peer is slow.
	DontWait bool
}

// Socket is the transport a Sink owns. Implementations need not be safe for
// concurrent use.
type Socket interface {
	Send(frame []byte, flags SendFlags) error
	// PollIn reports whether a request is waiting. A zero timeout never blocks.
	PollIn(timeout time.Duration) (bool, error)
	// RecvFrame returns one message part and whether more parts follow.
	RecvFrame() ([]byte, bool, error)
	Close() error
}

// SocketFactory opens a socket of the pattern on the endpoints.
type SocketFactory func(pattern Pattern, endpoints []Endpoint) (Socket, error)
