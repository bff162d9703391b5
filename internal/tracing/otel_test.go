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


package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
)

func TestNewSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{rate: 1, want: "AlwaysOnSampler"},
		{rate: 2, want: "AlwaysOnSampler"},
		{rate: 0, want: "AlwaysOffSampler"},
		{rate: -1, want: "AlwaysOffSampler"},
		{rate: 0.5, want: "TraceIDRatioBased{0.5}"},
	}

	for _, tt := range tests {
		desc := NewSampler(tt.rate).Description()
		assert.Contains(t, desc, "ParentBased")
		assert.Contains(t, desc, tt.want, "rate %v", tt.rate)
	}
}

func TestProvider_ConsoleSpans(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewProvider(Config{
		ServiceVersion: "test",
		Console:        true,
		SampleRate:     1,
		Writer:         &buf,
		Registerer:     prometheus.NewRegistry(),
	})
	require.NoError(t, err)

	_, span := p.TracerProvider().Tracer("test").Start(context.Background(), "runcontrol.suspend")
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "runcontrol.suspend")
	assert.Contains(t, buf.String(), "runctl")
}

func TestProvider_NoConsole(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewProvider(Config{
		SampleRate: 1,
		Writer:     &buf,
		Registerer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)

	_, span := p.TracerProvider().Tracer("test").Start(context.Background(), "runcontrol.step")
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))

	assert.Empty(t, buf.String())
}

func TestWriteMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewProvider(Config{Registerer: reg})
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	counter, err := p.MeterProvider().Meter("test").Int64Counter("probe_events",
		metric.WithDescription("probe"))
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	other := prometheus.NewCounter(prometheus.CounterOpts{Name: "unrelated_total", Help: "x"})
	reg.MustRegister(other)
	other.Inc()

	var buf bytes.Buffer
	require.NoError(t, WriteMetrics(&buf, reg, "probe"))

	out := buf.String()
	assert.Contains(t, out, "probe_events")
	assert.Contains(t, out, "# TYPE")
	assert.NotContains(t, out, "unrelated_total")
}
