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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const LabelReason = "reason"

var (
	framesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eventplane_sink_frames_sent_total",
			Help: "Total number of message parts sent by the sink",
		},
	)
	blocksSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eventplane_sink_blocks_sent_total",
			Help: "Total number of data blocks sent by the sink",
		},
	)
	sendErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eventplane_sink_send_errors_total",
			Help: "Total number of failed frame sends",
		},
	)
	cyclesSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventplane_sink_cycles_skipped_total",
			Help: "Total number of event cycles that sent nothing, by reason",
		},
		[]string{LabelReason},
	)

	registerOnce sync.Once
)

// RegisterMetrics registers the sink collectors with reg. Only the first call
// has an effect.
func RegisterMetrics(reg prometheus.Registerer) error {
	var err error
	registerOnce.Do(func() {
		for _, c := range []prometheus.Collector{framesSentTotal, blocksSentTotal, sendErrorsTotal, cyclesSkippedTotal} {
			if err = reg.Register(c); err != nil {
				return
			}
		}
	})
	return err
}
