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

package dmfconsumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/fleetradar/pkg/dmf"
	"github.com/carverauto/fleetradar/pkg/dmf/failure"
	"github.com/carverauto/fleetradar/pkg/logger"
)

const (
	defaultPullExpiry = 2 * time.Second
	fetchErrorBackoff = time.Second
)

// handlerFunc processes one message. A nil error acknowledges it.
type handlerFunc func(ctx context.Context, msg *nats.Msg) error

// Consumer pulls from one durable JetStream consumer and settles every message it fetched.
type Consumer struct {
	name     string
	consumer jetstream.Consumer
	batch    int
	policy   *failure.Policy
	log      logger.Logger
}

// NewConsumer binds to a durable consumer created by natsutil.EnsureTopology.
func NewConsumer(
	ctx context.Context, js jetstream.JetStream, stream, durable string, batch int, policy *failure.Policy, log logger.Logger,
) (*Consumer, error) {
	consumer, err := js.Consumer(ctx, stream, durable)
	if err != nil {
		return nil, fmt.Errorf("failed to bind consumer %s on %s: %w", durable, stream, err)
	}

	return &Consumer{name: durable, consumer: consumer, batch: batch, policy: policy, log: log}, nil
}

// ProcessMessages fetches and handles messages until ctx is done.
func (c *Consumer) ProcessMessages(ctx context.Context, handle handlerFunc) {
	c.log.Info().Str("consumer", c.name).Msg("Starting pull consumer")

	for ctx.Err() == nil {
		msgs, err := c.consumer.Fetch(c.batch, jetstream.FetchMaxWait(defaultPullExpiry))
		if err != nil {
			if ctx.Err() != nil {
				break
			}

			c.log.Warn().Err(err).Str("consumer", c.name).Msg("Failed to fetch messages")

			if sleepErr := pause(ctx, fetchErrorBackoff); sleepErr != nil {
				break
			}

			continue
		}

		for msg := range msgs.Messages() {
			c.handleMessage(ctx, msg, handle)
		}

		if fetchErr := msgs.Error(); fetchErr != nil && !errors.Is(fetchErr, nats.ErrTimeout) && ctx.Err() == nil {
			c.log.Debug().Err(fetchErr).Str("consumer", c.name).Msg("Fetch ended with error")
		}
	}

	c.log.Info().Str("consumer", c.name).Msg("Stopped pull consumer")
}

func (c *Consumer) handleMessage(ctx context.Context, msg jetstream.Msg, handle handlerFunc) {
	msgType := dmf.MessageType(msg.Headers().Get(dmf.HeaderType))

	err := handle(ctx, &nats.Msg{Subject: msg.Subject(), Header: msg.Headers(), Data: msg.Data()})
	if err == nil {
		if ackErr := msg.Ack(); ackErr != nil {
			c.log.Warn().Err(ackErr).Str("subject", msg.Subject()).Msg("Failed to acknowledge message")
		}

		dmf.RecordInbound(ctx, msgType, dmf.OutcomeProcessed)

		return
	}

	outcome := dmf.OutcomeTransient
	if c.policy.Classify(err).Fatal {
		outcome = dmf.OutcomeFatal
	}

	dmf.RecordInbound(ctx, msgType, outcome)

	if settleErr := c.policy.Handle(ctx, msg, err); settleErr != nil && ctx.Err() == nil {
		c.log.Error().Err(settleErr).Str("subject", msg.Subject()).Msg("Failed to settle message")
	}
}

func pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
