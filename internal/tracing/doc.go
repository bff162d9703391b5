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


/*
Package tracing builds the OpenTelemetry providers used by runctl.

A Provider owns an SDK TracerProvider and an SDK MeterProvider. Spans go to
the stdout console exporter when enabled; metric instruments are exported
through the OpenTelemetry Prometheus bridge into a Prometheus registerer, so
they appear next to the promauto collectors of the run-control engine.

# Quick Start

	provider, err := tracing.NewProvider(tracing.Config{
	    ServiceName:    "runctl",
	    ServiceVersion: version,
	    Console:        true,
	    Pretty:         true,
	    SampleRate:     1,
	})
	if err != nil {
	    return err
	}
	defer provider.Shutdown(context.Background())

	svc := runcontrol.New(target,
	    runcontrol.WithTracerProvider(provider.TracerProvider()),
	    runcontrol.WithMeterProvider(provider.MeterProvider()),
	)

Metric families can be written in the Prometheus text format with
WriteMetrics.
*/
package tracing
