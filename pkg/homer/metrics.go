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

package homer

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const LabelReason = "reason"

var (
	openReaders = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventplane_homer_open_readers",
			Help: "Number of source readers currently open",
		},
	)
	eventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eventplane_homer_events_total",
			Help: "Total number of events read from the sources",
		},
	)
	blocksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eventplane_homer_blocks_total",
			Help: "Total number of blocks read from the sources",
		},
	)
	readErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventplane_homer_read_errors_total",
			Help: "Total number of failed event reads by reason",
		},
		[]string{LabelReason},
	)

	registerOnce sync.Once
)

// RegisterMetrics registers the connection manager collectors with reg. Only
// the first call has an effect.
func RegisterMetrics(reg prometheus.Registerer) error {
	var err error
	registerOnce.Do(func() {
		for _, c := range []prometheus.Collector{openReaders, eventsTotal, blocksTotal, readErrorsTotal} {
			if err = reg.Register(c); err != nil {
				return
			}
		}
	})
	return err
}
