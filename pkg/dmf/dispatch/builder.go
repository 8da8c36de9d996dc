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

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/fleetradar/pkg/dmf"
	"github.com/carverauto/fleetradar/pkg/models"
	"github.com/carverauto/fleetradar/pkg/repository"
	"github.com/carverauto/fleetradar/pkg/tenant"
)

// BatchSubjectToken is the last subject token of batch messages.
const BatchSubjectToken = "batch"

var (
	// ErrNotBatchable is returned when a batch is requested for a non-download topic.
	ErrNotBatchable = errors.New("topic cannot be batched")
	// ErrNoAddress is returned for targets without a broker address.
	ErrNoAddress = errors.New("target has no broker address")
)

// Builder turns actions into outbound messages.
type Builder struct {
	sets     repository.DistributionSets
	urls     ArtifactURLResolver
	multiCap int
	now      func() time.Time
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithMultiAssignmentCap bounds MULTI_ACTION messages.
func WithMultiAssignmentCap(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.multiCap = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		b.now = now
	}
}

// NewBuilder returns a builder reading distribution sets from sets.
func NewBuilder(sets repository.DistributionSets, urls ArtifactURLResolver, opts ...BuilderOption) *Builder {
	b := &Builder{
		sets:     sets,
		urls:     urls,
		multiCap: DefaultMultiAssignmentCap,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Now returns the builder's current time.
func (b *Builder) Now() time.Time {
	return b.now()
}

// Modules returns the device view of the modules of ds. Only target-visible metadata
// is included.
func (b *Builder) Modules(tenantName, controllerID string, ds *models.DistributionSet) []models.DMFSoftwareModule {
	out := make([]models.DMFSoftwareModule, 0, len(ds.Modules))

	for _, m := range ds.Modules {
		mod := models.DMFSoftwareModule{
			ModuleID:      m.ID,
			ModuleType:    m.Type,
			ModuleVersion: m.Version,
			Encrypted:     m.Encrypted,
			Artifacts:     make([]models.DMFArtifact, 0, len(m.Artifacts)),
		}

		for _, a := range m.Artifacts {
			var lastModified int64
			if !a.LastModified.IsZero() {
				lastModified = a.LastModified.UnixMilli()
			}

			mod.Artifacts = append(mod.Artifacts, models.DMFArtifact{
				Filename: a.Filename,
				URLs: b.urls.URLs(URLRequest{
					Tenant:       tenantName,
					ControllerID: controllerID,
					Artifact:     a,
				}),
				Hashes:       models.DMFArtifactHash{SHA1: a.SHA1, MD5: a.MD5, SHA256: a.SHA256},
				Size:         a.Size,
				LastModified: lastModified,
			})
		}

		for _, md := range m.Metadata {
			if md.TargetVisible {
				mod.Metadata = append(mod.Metadata, models.DMFMetadata{Key: md.Key, Value: md.Value})
			}
		}

		out = append(out, mod)
	}

	return out
}

type setCache struct {
	sets repository.DistributionSets
	seen map[int64]*models.DistributionSet
}

func (c *setCache) get(ctx context.Context, id int64) (*models.DistributionSet, error) {
	if ds, ok := c.seen[id]; ok {
		return ds, nil
	}

	ds, err := c.sets.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("distribution set %d: %w", id, err)
	}

	c.seen[id] = ds

	return ds, nil
}

func (b *Builder) cache() *setCache {
	return &setCache{sets: b.sets, seen: make(map[int64]*models.DistributionSet)}
}

func (b *Builder) downloadRequest(
	ctx context.Context, cache *setCache, target *models.Target, action *models.Action,
) (*models.DownloadRequest, error) {
	ds, err := cache.get(ctx, action.DistributionSetID)
	if err != nil {
		return nil, err
	}

	return &models.DownloadRequest{
		ActionID:            action.ID,
		TargetSecurityToken: target.SecurityToken,
		SoftwareModules:     b.Modules(tenant.NameFromContext(ctx), target.ControllerID, ds),
	}, nil
}

func (b *Builder) payload(
	ctx context.Context, cache *setCache, target *models.Target, action *models.Action, topic dmf.Topic,
) (any, error) {
	if topic == dmf.TopicCancelDownload {
		return &models.ActionRequest{ActionID: action.ID}, nil
	}

	return b.downloadRequest(ctx, cache, target, action)
}

func targetMessage(ctx context.Context, target *models.Target, topic dmf.Topic, payload any) (*dmf.Outbound, error) {
	if !target.Address.DMF() {
		return nil, fmt.Errorf("%w: %s", ErrNoAddress, target.ControllerID)
	}

	tenantName := tenant.NameFromContext(ctx)

	return &dmf.Outbound{
		Subject: tenant.Subject(target.Address.Subject, tenantName, target.ControllerID),
		Type:    dmf.TypeEvent,
		Topic:   topic,
		Tenant:  tenantName,
		ThingID: target.ControllerID,
		Payload: payload,
	}, nil
}

// Single builds the message for one action of target.
func (b *Builder) Single(ctx context.Context, target *models.Target, action *models.Action) (*dmf.Outbound, error) {
	topic := TopicFor(action, b.now())

	payload, err := b.payload(ctx, b.cache(), target, action, topic)
	if err != nil {
		return nil, err
	}

	return targetMessage(ctx, target, topic, payload)
}

// Multi packs the active actions of target into one MULTI_ACTION message, highest
// weight first. It returns nil when no action is active.
func (b *Builder) Multi(ctx context.Context, target *models.Target, actions []*models.Action) (*dmf.Outbound, error) {
	selected := SelectMulti(actions, b.multiCap)
	if len(selected) == 0 {
		return nil, nil
	}

	now := b.now()
	cache := b.cache()
	req := &models.MultiActionRequest{Elements: make([]models.MultiActionElement, 0, len(selected))}

	for _, a := range selected {
		topic := TopicFor(a, now)

		payload, err := b.payload(ctx, cache, target, a, topic)
		if err != nil {
			return nil, err
		}

		req.Elements = append(req.Elements, models.MultiActionElement{
			Topic:  string(topic),
			Weight: a.Weight,
			Action: payload,
		})
	}

	return targetMessage(ctx, target, dmf.TopicMultiAction, req)
}

// Next builds what target should receive given its active actions: the highest
// priority action, or all of them when multi is set. It returns nil when nothing
// is pending.
func (b *Builder) Next(ctx context.Context, target *models.Target, actions []*models.Action, multi bool) (*dmf.Outbound, error) {
	if multi {
		return b.Multi(ctx, target, actions)
	}

	next := SelectSingle(actions)
	if next == nil {
		return nil, nil
	}

	return b.Single(ctx, target, next)
}

// BatchEntry is one target of a batch message.
type BatchEntry struct {
	Target *models.Target
	Action *models.Action
}

// Batch builds one message for targets sharing ds. The exchange is taken from the
// first target. topic must be DOWNLOAD or DOWNLOAD_AND_INSTALL.
func (b *Builder) Batch(
	ctx context.Context, topic dmf.Topic, ds *models.DistributionSet, entries []BatchEntry,
) (*dmf.Outbound, error) {
	batchTopic, ok := topic.Batch()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotBatchable, topic)
	}

	if len(entries) == 0 {
		return nil, nil
	}

	exchange := entries[0].Target.Address
	if !exchange.DMF() {
		return nil, fmt.Errorf("%w: %s", ErrNoAddress, entries[0].Target.ControllerID)
	}

	tenantName := tenant.NameFromContext(ctx)

	req := &models.BatchDownloadRequest{
		Timestamp:       b.now().UnixMilli(),
		Targets:         make([]models.BatchTarget, 0, len(entries)),
		SoftwareModules: b.Modules(tenantName, "", ds),
	}

	for _, e := range entries {
		req.Targets = append(req.Targets, models.BatchTarget{
			ControllerID:        e.Target.ControllerID,
			ActionID:            e.Action.ID,
			TargetSecurityToken: e.Target.SecurityToken,
		})
	}

	return &dmf.Outbound{
		Subject: tenant.Subject(exchange.Subject, tenantName, BatchSubjectToken),
		Type:    dmf.TypeEvent,
		Topic:   batchTopic,
		Tenant:  tenantName,
		Payload: req,
	}, nil
}

// AttributesRequest asks target to report its attributes.
func (b *Builder) AttributesRequest(ctx context.Context, target *models.Target) (*dmf.Outbound, error) {
	return targetMessage(ctx, target, dmf.TopicRequestAttributesUpdate, nil)
}

// ThingDeleted tells a device at address that it was removed.
func (*Builder) ThingDeleted(ctx context.Context, controllerID string, address models.Address) (*dmf.Outbound, error) {
	if !address.DMF() {
		return nil, fmt.Errorf("%w: %s", ErrNoAddress, controllerID)
	}

	tenantName := tenant.NameFromContext(ctx)

	return &dmf.Outbound{
		Subject: tenant.Subject(address.Subject, tenantName, controllerID),
		Type:    dmf.TypeThingDeleted,
		Tenant:  tenantName,
		ThingID: controllerID,
	}, nil
}
