// Copyright 2025 Tom Barlow
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

package runcontrol

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// commandsTotal tracks control and query commands by kind and outcome
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runcontrol_commands_total",
			Help: "Total commands sent to the debugger by command kind and status",
		},
		[]string{"command", "status"},
	)

	// eventsTotal tracks reconciled domain events
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runcontrol_events_total",
			Help: "Total domain events published by event kind and reason",
		},
		[]string{"event", "reason"},
	)

	// rejectionsTotal tracks operations refused before any command was sent
	rejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runcontrol_rejections_total",
			Help: "Total run-control operations refused by operation and error kind",
		},
		[]string{"operation", "kind"},
	)

	// sessionsActive tracks sessions that have not been closed
	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "runcontrol_sessions_active",
			Help: "Number of open run-control sessions",
		},
	)

	// sessionsTerminated tracks sessions whose debugger connection went away
	sessionsTerminated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "runcontrol_sessions_terminated_total",
			Help: "Total sessions that reached the terminated state",
		},
	)
)

func recordCommand(command, status string) {
	commandsTotal.WithLabelValues(command, status).Inc()
}

func recordEvent(ev Event) {
	eventsTotal.WithLabelValues(string(ev.Kind), string(ev.Reason)).Inc()
}

func recordRejection(operation, kind string) {
	rejectionsTotal.WithLabelValues(operation, kind).Inc()
}
