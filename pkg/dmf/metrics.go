/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package dmf

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	meterName = "github.com/carverauto/fleetradar/pkg/dmf"

	metricInbound    = "dmf_inbound_messages_total"
	metricDeadLetter = "dmf_dead_lettered_total"
	metricRequeue    = "dmf_requeued_total"
	metricOutbound   = "dmf_outbound_messages_total"
	metricRedispatch = "dmf_redispatch_total"
	metricPartitions = "dmf_assignment_partitions"
	metricEventDrops = "dmf_foreign_events_dropped_total"
	outcomeAttribute = "outcome"
	typeAttribute    = "type"
	topicAttribute   = "topic"
	reasonAttribute  = "reason"
	scopeTracerName  = "github.com/carverauto/fleetradar/pkg/dmf"
	OutcomeProcessed = "processed"
	OutcomeFatal     = "fatal"
	OutcomeTransient = "transient"
	OutcomeIgnored   = "ignored"
)

//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
var (
	meterOnce         sync.Once
	inboundCounter    metric.Int64Counter
	deadLetterCounter metric.Int64Counter
	requeueCounter    metric.Int64Counter
	outboundCounter   metric.Int64Counter
	redispatchCounter metric.Int64Counter
	partitionHist     metric.Int64Histogram
	eventDropCounter  metric.Int64Counter
)

func initMeter() {
	meter := otel.Meter(meterName)

	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			otel.Handle(err)
		}

		return c
	}

	inboundCounter = counter(metricInbound, "Inbound DMF messages by type and outcome")
	deadLetterCounter = counter(metricDeadLetter, "DMF messages rejected to the dead-letter stream")
	requeueCounter = counter(metricRequeue, "DMF messages requeued after a transient failure")
	outboundCounter = counter(metricOutbound, "Outbound DMF messages by topic")
	redispatchCounter = counter(metricRedispatch, "Redispatches triggered by status updates or registration")
	eventDropCounter = counter(metricEventDrops, "Domain events dropped because they originated on another node")

	hist, err := meter.Int64Histogram(metricPartitions,
		metric.WithDescription("Partitions per assignment fan-out"))
	if err != nil {
		otel.Handle(err)
	}

	partitionHist = hist
}

func add(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	meterOnce.Do(initMeter)

	if c == nil {
		return
	}

	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordInbound counts one processed inbound message.
func RecordInbound(ctx context.Context, msgType MessageType, outcome string) {
	add(ctx, inboundCounter, attribute.String(typeAttribute, string(msgType)), attribute.String(outcomeAttribute, outcome))
}

// RecordDeadLetter counts one dead-lettered message.
func RecordDeadLetter(ctx context.Context, reason string) {
	add(ctx, deadLetterCounter, attribute.String(reasonAttribute, reason))
}

// RecordRequeue counts one requeued message.
func RecordRequeue(ctx context.Context) {
	add(ctx, requeueCounter)
}

// RecordOutbound counts one outbound message.
func RecordOutbound(ctx context.Context, topic Topic) {
	add(ctx, outboundCounter, attribute.String(topicAttribute, string(topic)))
}

// RecordRedispatch counts one redispatch.
func RecordRedispatch(ctx context.Context) {
	add(ctx, redispatchCounter)
}

// RecordForeignEventDropped counts a domain event ignored because of its origin node.
func RecordForeignEventDropped(ctx context.Context, kind string) {
	add(ctx, eventDropCounter, attribute.String(typeAttribute, kind))
}

// RecordPartitions records the partition count of one fan-out.
func RecordPartitions(ctx context.Context, n int) {
	meterOnce.Do(initMeter)

	if partitionHist == nil {
		return
	}

	partitionHist.Record(ctx, int64(n))
}

// Tracer returns the tracer used for DMF spans.
func Tracer() trace.Tracer {
	return otel.Tracer(scopeTracerName)
}
