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
	"io"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds observability configuration.
type Config struct {
	// ServiceName identifies this service in traces (default: "runctl").
	ServiceName string

	// ServiceVersion is the application version.
	ServiceVersion string

	// Console enables the stdout span exporter.
	Console bool

	// Pretty enables indented console output.
	Pretty bool

	// SampleRate is the fraction of root spans to sample (0.0 - 1.0).
	SampleRate float64

	// Writer receives console spans (default: os.Stdout).
	Writer io.Writer

	// Registerer receives the metric instruments (default: prometheus.DefaultRegisterer).
	Registerer prometheus.Registerer
}

// DefaultConfig returns a configuration that samples everything and exports
// nothing to the console.
func DefaultConfig() Config {
	return Config{
		ServiceName: "runctl",
		Pretty:      true,
		SampleRate:  1.0,
	}
}

func (c Config) withDefaults() Config {
	if c.ServiceName == "" {
		c.ServiceName = "runctl"
	}
	if c.Registerer == nil {
		c.Registerer = prometheus.DefaultRegisterer
	}
	return c
}
