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
	"fmt"
)

var (
	// ErrUnsupportedPattern indicates a socket pattern a sink cannot use.
	ErrUnsupportedPattern = errors.New("unsupported socket pattern for a sink")

	// ErrInvalidOption indicates a malformed option value.
	ErrInvalidOption = errors.New("invalid option value")

	// ErrZMQNotSupported is returned when the binary was built without the zmq tag.
	ErrZMQNotSupported = errors.New("ZMQ support not compiled in, rebuild with -tags zmq")

	// ErrNotInitialized is returned when ProcessEvent runs before Init.
	ErrNotInitialized = errors.New("sink is not initialized")
)

// ConfigError reports an option that prevents the sink from starting.
type ConfigError struct {
	Option string
	Value  string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("sink option %s=%q: %v", e.Option, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
