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
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"k8s.io/klog/v2"

	"github.com/hltonline/eventplane/pkg/runinfo"
	"github.com/hltonline/eventplane/pkg/topic"
	"github.com/hltonline/eventplane/pkg/types"
)

// Component is an event processing stage driven once per event.
type Component interface {
	Init(options string) error
	// ProcessEvent handles one event and returns the blocks it produced.
	ProcessEvent(ctx context.Context, ev *types.Event) ([]types.Block, error)
	Shutdown() error
}

// Option customizes a Sink.
type Option func(*Sink)

// WithSocketFactory replaces the ZMQ socket, mostly for tests.
func WithSocketFactory(f SocketFactory) Option {
	return func(s *Sink) { s.newSocket = f }
}

// WithRunInfo sets where the run number of the INFO frame comes from.
func WithRunInfo(p runinfo.Provider) Option {
	return func(s *Sink) { s.runInfo = p }
}

// WithClock replaces time.Now for the pushback period.
func WithClock(now func() time.Time) Option {
	return func(s *Sink) { s.now = now }
}

// Sink publishes the blocks of every event on a PUB, PUSH or REP socket.
// All methods must be called from one goroutine.
type Sink struct {
	newSocket SocketFactory
	runInfo   runinfo.Provider
	now       func() time.Time

	config *Config
	socket Socket

	lastSend      time.Time
	envParams     []byte
	lastRun       int
	skippedErrors int
}

var _ Component = (*Sink)(nil)

// New creates a sink. Init must be called before the first event.
func New(opts ...Option) *Sink {
	s := &Sink{
		newSocket: NewZMQSocket,
		runInfo:   runinfo.Static(0),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init parses options and opens the socket.
func (s *Sink) Init(options string) error {
	config, err := ParseConfig(options)
	if err != nil {
		return err
	}
	socket, err := s.newSocket(config.Pattern, config.Endpoints)
	if err != nil {
		return fmt.Errorf("failed to open %s socket: %w", config.Pattern, err)
	}
	s.config = config
	s.socket = socket
	klog.InfoS("Sink initialized", "pattern", config.Pattern, "endpoints", config.Endpoints,
		"pushbackPeriod", config.PushbackPeriod, "neverBlock", config.NeverBlock)
	return nil
}

// Config returns the parsed options, nil before Init.
func (s *Sink) Config() *Config {
	return s.config
}

// Shutdown closes the socket. It is safe to call more than once.
func (s *Sink) Shutdown() error {
	if s.socket == nil {
		return nil
	}
	err := s.socket.Close()
	s.socket = nil
	return err
}

// request is what a REP peer asked for in the current cycle.
type request struct {
	topic     []byte
	topicLen  int
	envParams bool
}

// anyRequest selects every block.
var anyRequest = request{topicLen: -1}

// ProcessEvent sends the selected blocks of ev. A sink produces no blocks.
func (s *Sink) ProcessEvent(ctx context.Context, ev *types.Event) ([]types.Block, error) {
	if s.socket == nil {
		return nil, ErrNotInitialized
	}

	req := anyRequest
	if s.config.Pattern.RepliesToRequests() {
		var ok bool
		req, ok = s.pollRequest()
		if !ok {
			cyclesSkippedTotal.WithLabelValues("no_request").Inc()
			return nil, nil
		}
	} else if s.config.PushbackPeriod > 0 {
		now := s.now()
		if !s.lastSend.IsZero() && now.Sub(s.lastSend) < s.config.PushbackPeriod {
			cyclesSkippedTotal.WithLabelValues("pushback").Inc()
			return nil, nil
		}
		s.lastSend = now
	}

	selected := s.selectBlocks(ev, req)
	s.send(ctx, selected, req.envParams)
	return nil, nil
}

// pollRequest reads a waiting multipart request without blocking. Parts come
// in topic/payload pairs; the last topic is the selection.
func (s *Sink) pollRequest() (request, bool) {
	ready, err := s.socket.PollIn(0)
	if err != nil {
		klog.Errorf("Failed to poll for requests: %v", err)
		return request{}, false
	}
	if !ready {
		return request{}, false
	}

	req := request{}
	for more := true; more; {
		var part []byte
		part, more, err = s.socket.RecvFrame()
		if err != nil {
			klog.Errorf("Failed to receive request: %v", err)
			return request{}, false
		}
		req.topic, req.topicLen = part, len(part)
		if topic.Match(part, topic.EnvParamsTopic, len(part)) {
			req.envParams = true
		}
		if more {
			if _, more, err = s.socket.RecvFrame(); err != nil {
				klog.Errorf("Failed to receive request: %v", err)
				return request{}, false
			}
		}
	}
	klog.V(5).Infof("Request for %q (env params %t)", req.topic, req.envParams)
	return req, true
}

func (s *Sink) selectBlocks(ev *types.Event, req request) []types.Block {
	if ev == nil {
		return nil
	}
	var selected []types.Block
	for _, b := range ev.Blocks {
		if b.Type == topic.DataTypeEnvParams {
			s.envParams = envString(b.Payload)
			// Sent from the cache below.
			if req.envParams {
				continue
			}
		}
		if !s.config.IncludePrivateBlocks && b.IsPrivate() {
			continue
		}
		if topic.Match(req.topic, b.Topic(), req.topicLen) {
			selected = append(selected, b)
		}
	}
	return selected
}

// envString copies the parameter string up to its terminating NUL, if any.
func envString(payload []byte) []byte {
	if i := bytes.IndexByte(payload, 0); i >= 0 {
		payload = payload[:i]
	}
	return append([]byte(nil), payload...)
}

func (s *Sink) send(ctx context.Context, selected []types.Block, envRequested bool) {
	sent := 0
	dontWait := s.config.NeverBlock

	if s.config.SendRunNumber && len(selected) > 0 {
		info := []byte("run=" + strconv.Itoa(s.runNumber(ctx)))
		if s.sendFrame(topic.DataTypeInfo[:], SendFlags{More: true, DontWait: dontWait}, "INFO") &&
			s.sendFrame(info, SendFlags{More: true, DontWait: dontWait}, "INFO") {
			sent++
		}
	}

	if s.config.SendEnvParams || envRequested {
		more := len(selected) > 0
		if s.sendFrame(topic.EnvParamsTopic.Bytes(), SendFlags{More: true, DontWait: dontWait}, "env params") &&
			s.sendFrame(s.envParams, SendFlags{More: more, DontWait: dontWait}, "env params") {
			sent++
		}
	}

	for i, b := range selected {
		last := i == len(selected)-1
		desc := b.Topic().String()
		// A payload without its topic would start a new message on the peer.
		if s.sendFrame(b.Topic().Bytes(), SendFlags{More: true, DontWait: dontWait}, desc) &&
			s.sendFrame(b.Payload, SendFlags{More: !last, DontWait: dontWait}, desc) {
			sent++
			blocksSentTotal.Inc()
		}
	}

	if sent == 0 && s.config.Pattern.RepliesToRequests() {
		// A REP peer blocks until it gets a reply.
		if !s.sendFrame(nil, SendFlags{More: true}, "empty reply") || !s.sendFrame(nil, SendFlags{}, "empty reply") {
			klog.Warning("Failed to send empty reply")
		}
	}
	klog.V(5).Infof("Sent %d of %d selected blocks", sent, len(selected))
}

// sendFrame sends one part. Failures are counted and logged once every
// ErrorMsgSkip+1 occurrences.
func (s *Sink) sendFrame(frame []byte, flags SendFlags, desc string) bool {
	err := s.socket.Send(frame, flags)
	if err == nil {
		framesSentTotal.Inc()
		return true
	}
	sendErrorsTotal.Inc()
	s.skippedErrors++
	if s.skippedErrors > s.config.ErrorMsgSkip {
		klog.Warningf("Error sending %s frame (%d failures): %v", desc, s.skippedErrors, err)
		s.skippedErrors = 0
	}
	return false
}

func (s *Sink) runNumber(ctx context.Context) int {
	run, err := s.runInfo.RunNumber(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			klog.Warningf("Using last known run number %d: %v", s.lastRun, err)
		}
		return s.lastRun
	}
	s.lastRun = run
	return run
}
