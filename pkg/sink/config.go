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
	"strconv"
	"strings"
	"time"

	"k8s.io/klog/v2"
)

const (
	optionOut                  = "out"
	optionSendRunNumber        = "SendRunNumber"
	optionSendEnvParams        = "SendECSparamString"
	optionPushbackPeriod       = "pushback-period"
	optionIncludePrivateBlocks = "IncludePrivateBlocks"
	optionNeverBlock           = "ZMQneverBlock"
	optionErrorMsgSkip         = "ZMQerrorMsgSkip"

	DefaultPort         = 60201
	DefaultErrorMsgSkip = 100
)

// Config is the parsed sink option string.
type Config struct {
	Pattern   Pattern
	Endpoints []Endpoint

	SendRunNumber bool
	// SendEnvParams sends the cached environment parameters on every send.
	SendEnvParams bool
	// PushbackPeriod is the minimum time between two sends, zero for none.
	PushbackPeriod       time.Duration
	IncludePrivateBlocks bool
	NeverBlock           bool
	// ErrorMsgSkip is the number of send failures logged as one warning.
	ErrorMsgSkip int
}

// DefaultConfig publishes on every interface at DefaultPort.
func DefaultConfig() *Config {
	return &Config{
		Pattern:       PatternPUB,
		Endpoints:     []Endpoint{{Address: formatBindEndpoint("*", DefaultPort), Bind: true}},
		SendRunNumber: true,
		NeverBlock:    true,
		ErrorMsgSkip:  DefaultErrorMsgSkip,
	}
}

// ParseConfig parses whitespace separated key=value options on top of
// DefaultConfig. A leading '-' on the key is optional and a key without a
// value means true. Unknown keys are ignored.
func ParseConfig(options string) (*Config, error) {
	c := DefaultConfig()
	for _, token := range strings.Fields(options) {
		key, value, hasValue := strings.Cut(strings.TrimLeft(token, "-"), "=")
		if !hasValue {
			value = "1"
		}

		switch key {
		case optionOut:
			pattern, endpoints, err := parseOut(value)
			if err != nil {
				return nil, err
			}
			c.Pattern, c.Endpoints = pattern, endpoints
		case optionSendRunNumber:
			c.SendRunNumber = parseBool(value)
		case optionSendEnvParams:
			c.SendEnvParams = parseBool(value)
		case optionPushbackPeriod:
			seconds, err := strconv.Atoi(value)
			if err != nil || seconds < 0 {
				return nil, &ConfigError{Option: key, Value: value, Err: ErrInvalidOption}
			}
			c.PushbackPeriod = time.Duration(seconds) * time.Second
		case optionIncludePrivateBlocks:
			c.IncludePrivateBlocks = true
		case optionNeverBlock:
			c.NeverBlock = parseBool(value)
		case optionErrorMsgSkip:
			skip, err := strconv.Atoi(value)
			if err != nil || skip < 0 {
				return nil, &ConfigError{Option: key, Value: value, Err: ErrInvalidOption}
			}
			c.ErrorMsgSkip = skip
		default:
			klog.Warningf("Ignoring unknown sink option %q", token)
		}
	}
	return c, nil
}

// parseBool treats 0, no and false as false and everything else as true.
func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "0", "no", "false":
		return false
	}
	return true
}
