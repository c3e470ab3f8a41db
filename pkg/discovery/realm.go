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

package discovery

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"sigs.k8s.io/yaml"

	"github.com/hltonline/eventplane/pkg/constants"
)

// HostnameOverride controls whether advertised service hostnames are replaced
// with the proxy node the registry talked to.
type HostnameOverride string

const (
	// OverrideOutsideHome replaces hostnames only when the client is not in
	// the home realm, where services are directly reachable.
	OverrideOutsideHome HostnameOverride = "outside-home"
	OverrideAlways      HostnameOverride = "always"
	OverrideNever       HostnameOverride = "never"
)

// Realm is a network location class with its pair of proxy nodes.
type Realm struct {
	// Name identifies the realm in logs and metrics.
	Name string `json:"name" validate:"required"`
	// Prefixes are matched against the textual local address. A realm
	// without prefixes is the fallback realm.
	Prefixes []string `json:"prefixes,omitempty"`
	// Primary is the proxy node tried first.
	Primary string `json:"primary" validate:"required,hostname_rfc1123|ip"`
	// Secondary is tried exactly once when Primary is unreachable.
	Secondary string `json:"secondary" validate:"required,hostname_rfc1123|ip"`
	// Home marks the realm in which advertised hostnames are reachable.
	Home bool `json:"home,omitempty"`
}

// RealmConfig is the injected description of all realms.
type RealmConfig struct {
	ProxyPort        int              `json:"proxyPort" validate:"gte=1,lte=65535"`
	HostnameOverride HostnameOverride `json:"hostnameOverride,omitempty" validate:"omitempty,oneof=outside-home always never"`
	Realms           []Realm          `json:"realms" validate:"required,min=1,dive"`
}

var validate = validator.New()

// DefaultRealmConfig returns the realms of the experiment network: the
// online cluster (home), the control room, the institute network and the
// general purpose network as fallback.
func DefaultRealmConfig() *RealmConfig {
	return &RealmConfig{
		ProxyPort:        constants.DefaultProxyPort,
		HostnameOverride: OverrideOutsideHome,
		Realms: []Realm{
			{
				Name:      "HLT",
				Prefixes:  []string{"10.162."},
				Primary:   "portal-dcs0.internal",
				Secondary: "portal-dcs1.internal",
				Home:      true,
			},
			{
				Name:      "ACR",
				Prefixes:  []string{"10.160.", "10.161."},
				Primary:   "alihlt-dcs0.cern.ch",
				Secondary: "alihlt-dcs1.cern.ch",
			},
			{
				Name:      "KIP",
				Prefixes:  []string{"129.206."},
				Primary:   "alihlt-gw0.kip.uni-heidelberg.de",
				Secondary: "alihlt-gw1.kip.uni-heidelberg.de",
			},
			{
				Name:      "GPN",
				Primary:   "alihlt-vobox0.cern.ch",
				Secondary: "alihlt-vobox1.cern.ch",
			},
		},
	}
}

// LoadRealmConfig reads a YAML realm description and validates it.
func LoadRealmConfig(path string) (*RealmConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read realm config: %w", err)
	}

	config := &RealmConfig{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse realm config: %w", err)
	}
	if config.ProxyPort == 0 {
		config.ProxyPort = constants.DefaultProxyPort
	}
	if config.HostnameOverride == "" {
		config.HostnameOverride = OverrideOutsideHome
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the structural constraints of the configuration.
func (c *RealmConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid realm config: %w", err)
	}
	return nil
}

// IdentifyRealm returns the first realm with a prefix of addr. When no prefix
// matches, the realm without prefixes is used, or the last realm if every
// realm declares prefixes.
func (c *RealmConfig) IdentifyRealm(addr net.IP) Realm {
	text := addr.String()
	var fallback *Realm
	for i := range c.Realms {
		realm := &c.Realms[i]
		if len(realm.Prefixes) == 0 {
			if fallback == nil {
				fallback = realm
			}
			continue
		}
		for _, prefix := range realm.Prefixes {
			if strings.HasPrefix(text, prefix) {
				return *realm
			}
		}
	}
	if fallback != nil {
		return *fallback
	}
	return c.Realms[len(c.Realms)-1]
}

// overrideHostname reports whether advertised hostnames are replaced when
// talking to realm.
func (c *RealmConfig) overrideHostname(realm Realm) bool {
	switch c.HostnameOverride {
	case OverrideAlways:
		return true
	case OverrideNever:
		return false
	default:
		return !realm.Home
	}
}

// LocalAddress resolves the first non-loopback IPv4 address of this host,
// falling back to any resolved address.
func LocalAddress() (net.IP, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("failed to get hostname: %w", err)
	}
	ips, err := net.LookupIP(hostname)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", hostname, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no address for %s", hostname)
	}
	for _, ip := range ips {
		if ip.To4() != nil && !ip.IsLoopback() {
			return ip, nil
		}
	}
	return ips[0], nil
}
