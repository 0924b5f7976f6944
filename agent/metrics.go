// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds OpenTelemetry metric instruments for the agent. All methods
// are safe on a nil receiver so instrumentation stays optional.
type Metrics struct {
	meter metric.Meter

	commandsSubmitted metric.Int64Counter
	commandsCompleted metric.Int64Counter
	acksMatched       metric.Int64Counter
	acksSpurious      metric.Int64Counter
	publishesReceived metric.Int64Counter
	publishesResumed  metric.Int64Counter

	pendingAcks metric.Int64UpDownCounter

	dispatchDuration metric.Float64Histogram
}

// NewMetrics creates a Metrics instance with all instruments initialized
// against the global meter provider.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		meter: otel.Meter("mqtt-agent"),
	}

	var err error

	m.commandsSubmitted, err = m.meter.Int64Counter(
		"mqtt.agent.commands.submitted.total",
		metric.WithDescription("Total commands accepted from producers"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create commandsSubmitted counter: %w", err)
	}

	m.commandsCompleted, err = m.meter.Int64Counter(
		"mqtt.agent.commands.completed.total",
		metric.WithDescription("Total commands completed, by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create commandsCompleted counter: %w", err)
	}

	m.acksMatched, err = m.meter.Int64Counter(
		"mqtt.agent.acks.matched.total",
		metric.WithDescription("Total broker acknowledgments matched to pending commands"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create acksMatched counter: %w", err)
	}

	m.acksSpurious, err = m.meter.Int64Counter(
		"mqtt.agent.acks.spurious.total",
		metric.WithDescription("Total acknowledgments with no pending entry"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create acksSpurious counter: %w", err)
	}

	m.publishesReceived, err = m.meter.Int64Counter(
		"mqtt.agent.publishes.received.total",
		metric.WithDescription("Total incoming publishes routed to sinks"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create publishesReceived counter: %w", err)
	}

	m.publishesResumed, err = m.meter.Int64Counter(
		"mqtt.agent.publishes.resumed.total",
		metric.WithDescription("Total publishes re-sent with DUP during session resumption"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create publishesResumed counter: %w", err)
	}

	m.pendingAcks, err = m.meter.Int64UpDownCounter(
		"mqtt.agent.acks.pending",
		metric.WithDescription("Current pending-ack table occupancy"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pendingAcks gauge: %w", err)
	}

	m.dispatchDuration, err = m.meter.Float64Histogram(
		"mqtt.agent.dispatch.duration",
		metric.WithDescription("Command dispatch duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatchDuration histogram: %w", err)
	}

	return m, nil
}

// CommandSubmitted records a producer submission.
func (m *Metrics) CommandSubmitted(kind Kind) {
	if m == nil {
		return
	}
	m.commandsSubmitted.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", kind.String())))
}

// CommandCompleted records a completion with its outcome.
func (m *Metrics) CommandCompleted(kind Kind, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.commandsCompleted.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("kind", kind.String()),
			attribute.String("outcome", outcome),
		))
}

// AckMatched records an acknowledgment matched to a pending entry.
func (m *Metrics) AckMatched() {
	if m == nil {
		return
	}
	m.acksMatched.Add(context.Background(), 1)
}

// AckSpurious records an acknowledgment with no pending entry.
func (m *Metrics) AckSpurious() {
	if m == nil {
		return
	}
	m.acksSpurious.Add(context.Background(), 1)
}

// PublishReceived records an incoming publish.
func (m *Metrics) PublishReceived() {
	if m == nil {
		return
	}
	m.publishesReceived.Add(context.Background(), 1)
}

// PublishResumed records a DUP re-send during session resumption.
func (m *Metrics) PublishResumed() {
	if m == nil {
		return
	}
	m.publishesResumed.Add(context.Background(), 1)
}

// PendingAcksAdd tracks pending-ack table occupancy.
func (m *Metrics) PendingAcksAdd(delta int64) {
	if m == nil {
		return
	}
	m.pendingAcks.Add(context.Background(), delta)
}

// DispatchObserved records one command dispatch duration.
func (m *Metrics) DispatchObserved(kind Kind, seconds float64) {
	if m == nil {
		return
	}
	m.dispatchDuration.Record(context.Background(), seconds,
		metric.WithAttributes(attribute.String("kind", kind.String())))
}
