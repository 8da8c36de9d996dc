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

// Package events carries domain events between update server nodes as CloudEvents on
// core NATS subjects.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/carverauto/fleetradar/pkg/models"
	"github.com/carverauto/fleetradar/pkg/tenant"
)

const (
	// DefaultSubjectPrefix is the subject namespace of domain events.
	DefaultSubjectPrefix = "fleet.events"

	specVersion = "1.0"
	typePrefix  = "io.fleetradar.dmf."
)

// Kind names a domain event.
type Kind string

const (
	KindAssignment        Kind = "assignment"
	KindCancel            Kind = "cancel"
	KindMultiAction       Kind = "multi_action"
	KindAttributesRequest Kind = "attributes_request"
	KindTargetDeleted     Kind = "target_deleted"
)

// Type returns the CloudEvents type of the kind.
func (k Kind) Type() string {
	return typePrefix + string(k)
}

var (
	ErrNodeIDRequired = errors.New("node id is required")
	ErrUnknownKind    = errors.New("unknown event kind")
)

// Publisher emits domain events stamped with the local node id.
type Publisher struct {
	nc     *nats.Conn
	nodeID string
	prefix string
	now    func() time.Time
}

// NewPublisher returns a publisher for events under prefix.
func NewPublisher(nc *nats.Conn, nodeID, prefix string) (*Publisher, error) {
	if nodeID == "" {
		return nil, ErrNodeIDRequired
	}

	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	return &Publisher{nc: nc, nodeID: nodeID, prefix: prefix, now: time.Now}, nil
}

// Publish sends payload as an event of kind for tenantName.
func (p *Publisher) Publish(ctx context.Context, kind Kind, tenantName string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if tenantName == "" {
		return tenant.ErrTenantRequired
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", kind, err)
	}

	now := p.now().UTC()
	event := models.CloudEvent{
		SpecVersion:     specVersion,
		ID:              uuid.New().String(),
		Source:          p.nodeID,
		Type:            kind.Type(),
		DataContentType: "application/json",
		Subject:         tenantName,
		Time:            &now,
		Data:            data,
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal cloud event: %w", err)
	}

	if err := p.nc.Publish(p.subject(kind), body); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", kind, err)
	}

	return nil
}

func (p *Publisher) subject(kind Kind) string {
	return p.prefix + "." + string(kind)
}

// Assignment publishes an assignment event.
func (p *Publisher) Assignment(ctx context.Context, ev *models.AssignmentEvent) error {
	return p.Publish(ctx, KindAssignment, ev.Tenant, ev)
}

// Cancel publishes a cancellation event.
func (p *Publisher) Cancel(ctx context.Context, ev *models.CancelEvent) error {
	return p.Publish(ctx, KindCancel, ev.Tenant, ev)
}

// MultiAction publishes a multi-action resend event.
func (p *Publisher) MultiAction(ctx context.Context, ev *models.MultiActionEvent) error {
	return p.Publish(ctx, KindMultiAction, ev.Tenant, ev)
}

// AttributesRequest publishes an attribute request event.
func (p *Publisher) AttributesRequest(ctx context.Context, ev *models.AttributesRequestEvent) error {
	return p.Publish(ctx, KindAttributesRequest, ev.Tenant, ev)
}

// TargetDeleted publishes a target deletion event.
func (p *Publisher) TargetDeleted(ctx context.Context, ev *models.TargetDeletedEvent) error {
	return p.Publish(ctx, KindTargetDeleted, ev.Tenant, ev)
}
