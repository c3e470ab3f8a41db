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

package utils

import (
	"os"
	"strconv"
	"time"

	"k8s.io/klog/v2"
)

// LoadEnv returns the value of key, or defaultValue when it is unset or empty.
func LoadEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

// LoadEnvBool parses key as a boolean, falling back to defaultValue on absence
// or parse failure.
func LoadEnvBool(key string, defaultValue bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		klog.Warningf("Invalid boolean value for %s: %q. Defaulting to %t.", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// LoadEnvInt parses key as an integer.
func LoadEnvInt(key string, defaultValue int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		klog.Warningf("Invalid integer value for %s: %q. Defaulting to %d.", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// LoadEnvDuration parses key with time.ParseDuration.
func LoadEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		klog.Warningf("Invalid duration value for %s: %q. Defaulting to %v.", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
