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

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/carverauto/fleetradar/pkg/dmf"
	"github.com/carverauto/fleetradar/pkg/logger"
	"github.com/carverauto/fleetradar/pkg/models"
	"github.com/carverauto/fleetradar/pkg/tenant"
)

// Subscriber forwards events published by the local node to a Handler. Events of other
// nodes are dropped so that devices are not messaged twice.
type Subscriber struct {
	nc      *nats.Conn
	nodeID  string
	prefix  string
	handler Handler
	log     logger.Logger

	mu     sync.Mutex
	sub    *nats.Subscription
	cancel context.CancelFunc
}

// NewSubscriber returns a subscriber for events under prefix.
func NewSubscriber(nc *nats.Conn, nodeID, prefix string, handler Handler, log logger.Logger) (*Subscriber, error) {
	if nodeID == "" {
		return nil, ErrNodeIDRequired
	}

	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	return &Subscriber{nc: nc, nodeID: nodeID, prefix: prefix, handler: handler, log: log}, nil
}

// Start subscribes to all event kinds. Handlers run with a context derived from ctx.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)

	sub, err := s.nc.Subscribe(s.prefix+".>", func(msg *nats.Msg) {
		if err := s.Handle(ctx, msg.Data); err != nil {
			s.log.Error().Err(err).Str("subject", msg.Subject).Msg("Failed to handle domain event")
		}
	})
	if err != nil {
		cancel()

		return fmt.Errorf("failed to subscribe to %s: %w", s.prefix, err)
	}

	s.sub = sub
	s.cancel = cancel

	s.log.Info().Str("subject", s.prefix+".>").Str("node_id", s.nodeID).Msg("Listening for domain events")

	return nil
}

// Stop drains the subscription.
func (s *Subscriber) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub == nil {
		return nil
	}

	err := s.sub.Drain()
	s.cancel()
	s.sub = nil

	return err
}

// Handle decodes one event and runs its handler.
func (s *Subscriber) Handle(ctx context.Context, data []byte) error {
	var ev models.CloudEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("decode cloud event: %w", err)
	}

	kind := Kind(strings.TrimPrefix(ev.Type, typePrefix))

	if ev.Source != s.nodeID {
		dmf.RecordForeignEventDropped(ctx, string(kind))
		s.log.Debug().Str("source", ev.Source).Str("type", ev.Type).Str("id", ev.ID).Msg("Dropping event of another node")

		return nil
	}

	return tenant.AsSystem(ctx, ev.Subject, func(ctx context.Context) error {
		return s.dispatch(ctx, kind, ev.Data)
	})
}

func (s *Subscriber) dispatch(ctx context.Context, kind Kind, data json.RawMessage) error {
	switch kind {
	case KindAssignment:
		return forward(ctx, data, s.handler.Assign)
	case KindCancel:
		return forward(ctx, data, s.handler.Cancel)
	case KindMultiAction:
		return forward(ctx, data, s.handler.MultiAction)
	case KindAttributesRequest:
		return forward(ctx, data, s.handler.RequestAttributes)
	case KindTargetDeleted:
		return forward(ctx, data, s.handler.TargetDeleted)
	}

	return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

func forward[T any](ctx context.Context, data json.RawMessage, fn func(context.Context, *T) error) error {
	var payload T
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("decode %T: %w", payload, err)
	}

	return fn(ctx, &payload)
}
