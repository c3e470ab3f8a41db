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

package constants

import "time"

// Environment variable names read by the relay binary. Flags take precedence
// when both are given.
const (
	// EnvRealmConfig points at a YAML file describing realms and proxy nodes.
	EnvRealmConfig = "EVENTPLANE_REALM_CONFIG"

	// EnvDetector selects which origins the relay connects to ("ALL" for every source).
	EnvDetector = "EVENTPLANE_DETECTOR"

	// EnvSinkOptions is the sink option string, e.g. "out=PUB@tcp://*:60201 SendRunNumber=1".
	EnvSinkOptions = "EVENTPLANE_SINK_OPTIONS"

	// EnvRedisAddr enables the Redis backed snapshot store and run number provider.
	EnvRedisAddr = "EVENTPLANE_REDIS_ADDR"

	// EnvRunNumberKey is the Redis key holding the current run number.
	EnvRunNumberKey = "EVENTPLANE_RUN_NUMBER_KEY"

	// EnvRefreshInterval controls how often sources are rediscovered.
	EnvRefreshInterval = "EVENTPLANE_REFRESH_INTERVAL"
)

// Defaults shared by the relay and the libraries.
const (
	DefaultProxyPort       = 19999
	DefaultSinkOptions     = "out=PUB@tcp://*:60201"
	DefaultDetector        = "ALL"
	DefaultRunNumberKey    = "eventplane/run-number"
	DefaultSnapshotKey     = "eventplane/sources"
	DefaultSnapshotTTL     = 24 * time.Hour
	DefaultRefreshInterval = time.Minute
	DefaultDialTimeout     = 5 * time.Second
	DefaultReadTimeout     = 10 * time.Second
)
