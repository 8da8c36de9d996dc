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

// Package inbound routes device-originated DMF messages to their handlers.
package inbound

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/carverauto/fleetradar/pkg/dmf"
	"github.com/carverauto/fleetradar/pkg/dmf/auth"
	"github.com/carverauto/fleetradar/pkg/dmf/status"
	"github.com/carverauto/fleetradar/pkg/logger"
	"github.com/carverauto/fleetradar/pkg/models"
	"github.com/carverauto/fleetradar/pkg/repository"
	"github.com/carverauto/fleetradar/pkg/tenant"
)

// Config tunes the router.
type Config struct {
	// MaxStatusMessages bounds the messages of one status report.
	MaxStatusMessages int `json:"max_status_messages"`
}

// Router dispatches decoded envelopes by type and topic.
type Router struct {
	targets     repository.Targets
	actions     repository.Actions
	auth        Authenticator
	dispatcher  Dispatcher
	pub         dmf.Publisher
	maxMessages int
	now         func() time.Time
	log         logger.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RouterOption {
	return func(r *Router) {
		r.now = now
	}
}

// NewRouter returns a router working on store.
func NewRouter(
	store repository.Store,
	auth Authenticator,
	dispatcher Dispatcher,
	pub dmf.Publisher,
	cfg Config,
	log logger.Logger,
	opts ...RouterOption,
) *Router {
	if cfg.MaxStatusMessages <= 0 {
		cfg.MaxStatusMessages = status.DefaultMaxMessages
	}

	r := &Router{
		targets:     store.Targets,
		actions:     store.Actions,
		auth:        auth,
		dispatcher:  dispatcher,
		pub:         pub,
		maxMessages: cfg.MaxStatusMessages,
		now:         time.Now,
		log:         log,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Route authenticates env and runs its handler under the resulting identity. PING is
// answered without authentication.
func (r *Router) Route(ctx context.Context, env *dmf.Envelope) (err error) {
	ctx, span := dmf.Tracer().Start(ctx, "dmf.inbound."+string(env.Type),
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("dmf.tenant", env.Tenant),
			attribute.String("dmf.thing_id", env.ThingID),
			attribute.String("dmf.topic", string(env.Topic)),
		))

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		span.End()
	}()

	if env.Type == dmf.TypePing {
		return r.ping(ctx, env)
	}

	identity, err := r.auth.Authenticate(ctx, &models.TenantSecurityToken{
		Tenant:       env.Tenant,
		ControllerID: env.ThingID,
		Headers:      env.Headers,
	})
	if err != nil {
		return fmt.Errorf("authenticate %s/%s: %w", env.Tenant, env.ThingID, err)
	}

	if identity.Strategy == auth.StrategyAnonymousDownload {
		return fmt.Errorf("%w: %s/%s: download permission does not cover device messages",
			dmf.ErrUnauthorized, env.Tenant, env.ThingID)
	}

	ctx = tenant.WithContext(ctx, *identity)

	switch env.Type {
	case dmf.TypeThingCreated:
		return r.thingCreated(ctx, env)
	case dmf.TypeThingRemoved:
		return r.thingRemoved(ctx, env)
	case dmf.TypeEvent:
		return r.event(ctx, env)
	case dmf.TypePing, dmf.TypeThingDeleted, dmf.TypePingResponse:
	}

	return fmt.Errorf("%w: %q", dmf.ErrUnknownMessageType, env.Type)
}

func (r *Router) event(ctx context.Context, env *dmf.Envelope) error {
	switch env.Topic {
	case dmf.TopicUpdateActionStatus:
		return r.updateActionStatus(ctx, env)
	case dmf.TopicUpdateAttributes:
		return r.updateAttributes(ctx, env)
	case dmf.TopicUpdateAutoConfirm:
		return r.updateAutoConfirm(ctx, env)
	case dmf.TopicDownload, dmf.TopicDownloadAndInstall, dmf.TopicConfirm, dmf.TopicCancelDownload,
		dmf.TopicBatchDownload, dmf.TopicBatchDownloadAndInstall, dmf.TopicRequestAttributesUpdate,
		dmf.TopicMultiAction:
	}

	return fmt.Errorf("%w: %q", dmf.ErrUnknownTopic, env.Topic)
}

// ping answers on reply_to with the current time in unix milliseconds.
func (r *Router) ping(ctx context.Context, env *dmf.Envelope) error {
	if env.ReplyTo == "" {
		return fmt.Errorf("%w: %s", dmf.ErrMissingHeader, dmf.HeaderReplyTo)
	}

	msg, err := dmf.Encode(dmf.Outbound{
		Subject:       env.ReplyTo,
		Type:          dmf.TypePingResponse,
		Tenant:        env.Tenant,
		CorrelationID: env.CorrelationID,
		ContentType:   dmf.ContentTypeText,
		Raw:           []byte(strconv.FormatInt(r.now().UnixMilli(), 10)),
	})
	if err != nil {
		return err
	}

	if err := r.pub.Respond(ctx, msg); err != nil {
		return fmt.Errorf("respond to ping: %w", err)
	}

	dmf.RecordOutbound(ctx, dmf.Topic(dmf.TypePingResponse))

	return nil
}
