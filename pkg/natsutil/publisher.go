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

package natsutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/time/rate"

	"github.com/carverauto/fleetradar/pkg/logger"
)

// CorrelationHeader carries the id used to trace a message across the broker.
const CorrelationHeader = "correlationId"

const defaultAckTimeout = 10 * time.Second

var errPublisherClosed = errors.New("publisher is closed")

// Publisher sends messages without waiting for the JetStream acknowledgement.
// Acks and nacks are only logged; they never gate the caller.
type Publisher struct {
	nc         *nats.Conn
	js         jetstream.JetStream
	limiter    *rate.Limiter
	ackTimeout time.Duration
	log        logger.Logger
	done       chan struct{}
}

// PublisherOption customizes a Publisher.
type PublisherOption func(*Publisher)

// WithRateLimit bounds publishing to perSecond messages with the given burst.
// A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) PublisherOption {
	return func(p *Publisher) {
		if perSecond <= 0 {
			p.limiter = nil

			return
		}

		if burst <= 0 {
			burst = 1
		}

		p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithAckTimeout bounds how long the publisher watches for an acknowledgement.
func WithAckTimeout(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		if d > 0 {
			p.ackTimeout = d
		}
	}
}

// NewPublisher creates a Publisher. nc is used for core NATS replies, js for stream publishing.
func NewPublisher(nc *nats.Conn, js jetstream.JetStream, log logger.Logger, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		nc:         nc,
		js:         js,
		ackTimeout: defaultAckTimeout,
		log:        log,
		done:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// EnsureCorrelationID sets a fresh correlation id on msg unless one is present and returns it.
func EnsureCorrelationID(msg *nats.Msg) string {
	if msg.Header == nil {
		msg.Header = nats.Header{}
	}

	id := msg.Header.Get(CorrelationHeader)
	if id == "" {
		id = uuid.NewString()
		msg.Header.Set(CorrelationHeader, id)
	}

	return id
}

// Publish stores msg in its JetStream stream. It blocks only for rate limiting and for
// JetStream's bounded pending-ack window.
func (p *Publisher) Publish(ctx context.Context, msg *nats.Msg) error {
	select {
	case <-p.done:
		return errPublisherClosed
	default:
	}

	if err := p.wait(ctx); err != nil {
		return err
	}

	correlationID := EnsureCorrelationID(msg)

	future, err := p.js.PublishMsgAsync(msg)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", msg.Subject, err)
	}

	go p.watchAck(future, msg.Subject, correlationID)

	return nil
}

// PublishSync stores msg in its JetStream stream and returns once the stream
// acknowledged it. The wait is bounded by the ack timeout.
func (p *Publisher) PublishSync(ctx context.Context, msg *nats.Msg) error {
	select {
	case <-p.done:
		return errPublisherClosed
	default:
	}

	if err := p.wait(ctx); err != nil {
		return err
	}

	correlationID := EnsureCorrelationID(msg)

	ctx, cancel := context.WithTimeout(ctx, p.ackTimeout)
	defer cancel()

	ack, err := p.js.PublishMsg(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", msg.Subject, err)
	}

	p.log.Debug().
		Str("subject", msg.Subject).
		Str("correlation_id", correlationID).
		Str("stream", ack.Stream).
		Uint64("seq", ack.Sequence).
		Msg("Publish acknowledged")

	return nil
}

// Respond sends msg over core NATS, used for request/reply subjects outside any stream.
func (p *Publisher) Respond(ctx context.Context, msg *nats.Msg) error {
	if err := p.wait(ctx); err != nil {
		return err
	}

	EnsureCorrelationID(msg)

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to respond on %s: %w", msg.Subject, err)
	}

	return nil
}

// Close stops accepting new messages and waits for outstanding acks up to ctx.
func (p *Publisher) Close(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	default:
		close(p.done)
	}

	select {
	case <-p.js.PublishAsyncComplete():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Publisher) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("publish rate limit: %w", err)
	}

	return nil
}

func (p *Publisher) watchAck(future jetstream.PubAckFuture, subject, correlationID string) {
	timer := time.NewTimer(p.ackTimeout)
	defer timer.Stop()

	select {
	case ack := <-future.Ok():
		p.log.Debug().
			Str("subject", subject).
			Str("correlation_id", correlationID).
			Uint64("seq", ack.Sequence).
			Msg("Publish acknowledged")
	case err := <-future.Err():
		p.log.Error().
			Err(err).
			Str("subject", subject).
			Str("correlation_id", correlationID).
			Msg("Publish not acknowledged")
	case <-timer.C:
		p.log.Warn().
			Str("subject", subject).
			Str("correlation_id", correlationID).
			Dur("timeout", p.ackTimeout).
			Msg("No publish acknowledgement received")
	}
}
