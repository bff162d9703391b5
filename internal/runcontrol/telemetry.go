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
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/runcontrol/internal/execctx"
	rcerrors "github.com/tombee/runcontrol/pkg/errors"
)

const instrumentationName = "github.com/tombee/runcontrol/internal/runcontrol"

// Span attribute keys.
const (
	attrSession   = attribute.Key("runcontrol.session")
	attrContext   = attribute.Key("runcontrol.context")
	attrOperation = attribute.Key("runcontrol.operation")
	attrErrorKind = attribute.Key("runcontrol.error_kind")
	attrStatus    = attribute.Key("runcontrol.status")
)

type telemetry struct {
	session  string
	tracer   trace.Tracer
	duration metric.Float64Histogram
}

func newTelemetry(session string, tp trace.TracerProvider, mp metric.MeterProvider) *telemetry {
	t := &telemetry{
		session: session,
		tracer:  tp.Tracer(instrumentationName),
	}
	duration, err := mp.Meter(instrumentationName).Float64Histogram(
		"runcontrol_operation_duration_seconds",
		metric.WithDescription("Run-control operation latency as seen by the caller"),
		metric.WithUnit("s"),
	)
	if err == nil {
		t.duration = duration
	}
	return t
}

// start opens a span for a public operation. The returned function ends
// it, recording err and the operation latency.
func (t *telemetry) start(ctx context.Context, op string, c execctx.Context) (context.Context, func(error)) {
	began := time.Now()
	ctx, span := t.tracer.Start(ctx, "runcontrol."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attrSession.String(t.session),
			attrContext.String(contextString(c)),
			attrOperation.String(op),
		))

	return ctx, func(err error) {
		status := "ok"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			var classified rcerrors.ErrorClassifier
			if errors.As(err, &classified) {
				kind := classified.ErrorType()
				span.SetAttributes(attrErrorKind.String(kind))
				if kind != string(rcerrors.KindRequestFailed) {
					recordRejection(op, kind)
				}
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.SetAttributes(attrStatus.String(status))
		span.End()

		if t.duration != nil {
			t.duration.Record(ctx, time.Since(began).Seconds(), metric.WithAttributes(
				attrOperation.String(op),
				attrStatus.String(status),
			))
		}
	}
}

func contextString(c execctx.Context) string {
	if c == nil {
		return "<none>"
	}
	return c.String()
}
