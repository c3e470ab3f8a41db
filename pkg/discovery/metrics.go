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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	LabelRealm  = "realm"
	LabelResult = "result"
)

var (
	discoveryRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventplane_discovery_requests_total",
			Help: "Total number of proxy discovery requests by outcome",
		},
		[]string{LabelRealm, LabelResult},
	)
	discoveredSources = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventplane_discovery_sources",
			Help: "Number of sources in the current registry list",
		},
	)
	selectedSources = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventplane_discovery_selected_sources",
			Help: "Number of sources currently selected",
		},
	)

	registerOnce sync.Once
)

// RegisterMetrics registers the discovery collectors with reg. Only the first
// call has an effect.
func RegisterMetrics(reg prometheus.Registerer) error {
	var err error
	registerOnce.Do(func() {
		for _, c := range []prometheus.Collector{discoveryRequestsTotal, discoveredSources, selectedSources} {
			if err = reg.Register(c); err != nil {
				return
			}
		}
	})
	return err
}

func recordDiscovery(realm, result string) {
	discoveryRequestsTotal.WithLabelValues(realm, result).Inc()
}
