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


package export

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewConsoleExporter(t *testing.T) {
	tests := []struct {
		name   string
		pretty bool
		want   string
	}{
		{name: "compact", pretty: false, want: `"Name":"runcontrol.resume"`},
		{name: "pretty", pretty: true, want: `"Name": "runcontrol.resume"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			exporter, err := NewConsoleExporter(ConsoleConfig{
				Writer:            &buf,
				PrettyPrint:       tt.pretty,
				WithoutTimestamps: true,
			})
			require.NoError(t, err)

			tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
			_, span := tp.Tracer("test").Start(context.Background(), "runcontrol.resume")
			span.End()
			require.NoError(t, tp.Shutdown(context.Background()))

			assert.Contains(t, buf.String(), tt.want)
		})
	}
}
