//go:build zmq

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
	"fmt"
	"time"

	zmq "github.com/pebbe/zmq4"
	"k8s.io/klog/v2"
)

const sendHighWaterMark = 10

var zmqTypes = map[Pattern]zmq.Type{
	PatternPUB:  zmq.PUB,
	PatternPUSH: zmq.PUSH,
	PatternREP:  zmq.REP,
}

type zmqSocket struct {
	socket *zmq.Socket
	poller *zmq.Poller
}

// NewZMQSocket opens a pebbe/zmq4 socket and binds or connects every endpoint.
func NewZMQSocket(pattern Pattern, endpoints []Endpoint) (Socket, error) {
	typ, ok := zmqTypes[pattern]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPattern, pattern)
	}

	socket, err := zmq.NewSocket(typ)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s socket: %w", pattern, err)
	}

	// Enable IPv6 for dual-stack support
	if err := socket.SetIpv6(true); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("failed to enable IPv6 on %s socket: %w", pattern, err)
	}
	if err := socket.SetLinger(0); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("failed to set linger: %w", err)
	}
	if err := socket.SetSndhwm(sendHighWaterMark); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("failed to set send high water mark: %w", err)
	}

	for _, ep := range endpoints {
		if ep.Bind {
			err = socket.Bind(ep.Address)
		} else {
			err = socket.Connect(ep.Address)
		}
		if err != nil {
			_ = socket.Close()
			return nil, fmt.Errorf("failed to open %s: %w", ep, err)
		}
		klog.V(4).Infof("%s socket %s", pattern, ep)
	}

	poller := zmq.NewPoller()
	poller.Add(socket, zmq.POLLIN)
	return &zmqSocket{socket: socket, poller: poller}, nil
}

func (s *zmqSocket) Send(frame []byte, flags SendFlags) error {
	var f zmq.Flag
	if flags.More {
		f |= zmq.SNDMORE
	}
	if flags.DontWait {
		f |= zmq.DONTWAIT
	}
	_, err := s.socket.SendBytes(frame, f)
	return err
}

func (s *zmqSocket) PollIn(timeout time.Duration) (bool, error) {
	polled, err := s.poller.Poll(timeout)
	if err != nil {
		return false, fmt.Errorf("poll error: %w", err)
	}
	return len(polled) > 0, nil
}

func (s *zmqSocket) RecvFrame() ([]byte, bool, error) {
	frame, err := s.socket.RecvBytes(0)
	if err != nil {
		return nil, false, err
	}
	more, err := s.socket.GetRcvmore()
	if err != nil {
		return nil, false, err
	}
	return frame, more, nil
}

func (s *zmqSocket) Close() error {
	return s.socket.Close()
}
