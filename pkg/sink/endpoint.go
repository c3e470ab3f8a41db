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
	"net"
	"strconv"
	"strings"
)

// Endpoint is one address the socket binds to or connects to.
type Endpoint struct {
	Address string
	Bind    bool
}

func (e Endpoint) String() string {
	if e.Bind {
		return "@" + e.Address
	}
	return ">" + e.Address
}

// bindFor maps an endpoint prefix character to the bind flag.
func bindFor(c byte) (bind bool, ok bool) {
	switch c {
	case '@', '+':
		return true, true
	case '>', '-':
		return false, true
	}
	return false, false
}

// parseOut splits PATTERN<sep>endpoint[,<sep>endpoint...]. Endpoints without
// a prefix inherit the previous one.
func parseOut(value string) (Pattern, []Endpoint, error) {
	i := 0
	for i < len(value) && isLetter(value[i]) {
		i++
	}
	if i == 0 || i == len(value) {
		return "", nil, &ConfigError{Option: optionOut, Value: value, Err: ErrInvalidOption}
	}
	pattern, known := parsePattern(value[:i])
	if !known || !pattern.SinkCapable() {
		return "", nil, &ConfigError{Option: optionOut, Value: value, Err: ErrUnsupportedPattern}
	}
	bind, ok := bindFor(value[i])
	if !ok {
		return "", nil, &ConfigError{Option: optionOut, Value: value, Err: ErrInvalidOption}
	}

	var endpoints []Endpoint
	for j, part := range strings.Split(value[i+1:], ",") {
		part = strings.TrimSpace(part)
		if j > 0 && part != "" {
			if b, ok := bindFor(part[0]); ok {
				bind = b
				part = part[1:]
			}
		}
		if part == "" || !strings.Contains(part, "://") {
			return "", nil, &ConfigError{Option: optionOut, Value: value, Err: ErrInvalidOption}
		}
		endpoints = append(endpoints, Endpoint{Address: part, Bind: bind})
	}
	return pattern, endpoints, nil
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// formatTCPEndpoint creates a ZMQ TCP endpoint that handles both IPv4 and
// IPv6 addresses.
//
// Examples:
//   - IPv4: "10.0.0.1" + 60201 -> "tcp://10.0.0.1:60201"
//   - IPv6: "::1" + 60201 -> "tcp://[::1]:60201"
func formatTCPEndpoint(host string, port int) string {
	return fmt.Sprintf("tcp://%s", net.JoinHostPort(host, strconv.Itoa(port)))
}

// formatBindEndpoint is formatTCPEndpoint with the ZMQ wildcard host "*"
// left unbracketed.
func formatBindEndpoint(host string, port int) string {
	if host == "*" {
		return fmt.Sprintf("tcp://*:%d", port)
	}
	return formatTCPEndpoint(host, port)
}

// PublishOption returns an out option value binding pattern on host:port.
func PublishOption(pattern Pattern, host string, port int) string {
	return fmt.Sprintf("%s@%s", pattern, formatBindEndpoint(host, port))
}
