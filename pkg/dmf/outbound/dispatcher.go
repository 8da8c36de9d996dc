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

// Package outbound turns domain events into device-bound DMF messages.
package outbound

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/carverauto/fleetradar/pkg/dmf"
	"github.com/carverauto/fleetradar/pkg/dmf/dispatch"
	"github.com/carverauto/fleetradar/pkg/logger"
	"github.com/carverauto/fleetradar/pkg/models"
	"github.com/carverauto/fleetradar/pkg/repository"
	"github.com/carverauto/fleetradar/pkg/tenant"
)

// Config tunes the dispatcher.
type Config struct {
	// PartitionSize bounds the targets handled by one fan-out worker.
	PartitionSize int `json:"partition_size"`
	// Workers bounds concurrent partitions; zero means one goroutine per partition.
	Workers int `json:"workers"`
}

// Dispatcher sends assignments, cancellations and housekeeping messages to devices.
// Every method expects the tenant identity in ctx.
type Dispatcher struct {
	targets repository.Targets
	actions repository.Actions
	sets    repository.DistributionSets
	configs repository.TenantConfigs
	builder *dispatch.Builder
	pub     dmf.Publisher
	cfg     Config
	log     logger.Logger
}

// NewDispatcher wires a dispatcher to the repositories of store.
func NewDispatcher(
	store repository.Store, builder *dispatch.Builder, pub dmf.Publisher, cfg Config, log logger.Logger,
) *Dispatcher {
	if cfg.PartitionSize <= 0 {
		cfg.PartitionSize = DefaultPartitionSize
	}

	return &Dispatcher{
		targets: store.Targets,
		actions: store.Actions,
		sets:    store.DistributionSets,
		configs: store.TenantConfigs,
		builder: builder,
		pub:     pub,
		cfg:     cfg,
		log:     log,
	}
}

func (d *Dispatcher) tenantConfig(ctx context.Context) (*models.TenantConfig, error) {
	name := tenant.NameFromContext(ctx)
	if name == "" {
		return nil, tenant.ErrNoTenantInContext
	}

	cfg, err := d.configs.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("tenant config %s: %w", name, err)
	}

	return cfg, nil
}

// Assign sends a new assignment to its targets. With multi-assignments enabled every
// target receives its full set of active actions; with batching enabled targets sharing
// an exchange and topic receive one message per partition. Targets that are not reached
// over DMF or have a cancellation pending are skipped.
func (d *Dispatcher) Assign(ctx context.Context, ev *models.AssignmentEvent) error {
	cfg, err := d.tenantConfig(ctx)
	if err != nil {
		return err
	}

	parts := Partition(ev.Actions, d.cfg.PartitionSize)
	dmf.RecordPartitions(ctx, len(parts))

	d.log.Debug().
		Str("tenant", tenant.NameFromContext(ctx)).
		Int64("distribution_set_id", ev.DistributionSetID).
		Int("targets", len(ev.Actions)).
		Int("partitions", len(parts)).
		Msg("Dispatching assignment")

	return fanOut(ctx, parts, d.cfg.Workers, func(ctx context.Context, refs []models.ActionRef) error {
		return d.assignPartition(ctx, cfg, ev.DistributionSetID, refs)
	})
}

type batchKey struct {
	exchange string
	topic    dmf.Topic
}

func (d *Dispatcher) assignPartition(
	ctx context.Context, cfg *models.TenantConfig, setID int64, refs []models.ActionRef,
) error {
	targets, err := d.dmfTargets(ctx, refs)
	if err != nil {
		return err
	}

	now := d.builder.Now()

	var (
		groups map[batchKey][]dispatch.BatchEntry
		order  []batchKey
	)

	for _, ref := range refs {
		target, ok := targets[ref.ControllerID]
		if !ok {
			continue
		}

		active, err := d.actions.Active(ctx, target.ControllerID)
		if err != nil {
			return fmt.Errorf("active actions of %s: %w", target.ControllerID, err)
		}

		if dispatch.HasPendingCancellation(active) {
			d.log.Debug().Str("controller_id", target.ControllerID).Msg("Skipping target with pending cancellation")

			continue
		}

		if cfg.MultiAssignmentsEnabled {
			if err := d.sendMulti(ctx, target, active); err != nil {
				return err
			}

			continue
		}

		action := findAction(active, ref.ActionID)
		if action == nil {
			continue
		}

		topic := dispatch.TopicFor(action, now)
		if _, batchable := topic.Batch(); cfg.BatchAssignmentsEnabled && batchable {
			key := batchKey{exchange: target.Address.Subject, topic: topic}
			if groups == nil {
				groups = make(map[batchKey][]dispatch.BatchEntry)
			}

			if _, seen := groups[key]; !seen {
				order = append(order, key)
			}

			groups[key] = append(groups[key], dispatch.BatchEntry{Target: target, Action: action})

			continue
		}

		if err := d.sendSingle(ctx, target, action); err != nil {
			return err
		}
	}

	if len(groups) == 0 {
		return nil
	}

	ds, err := d.sets.Get(ctx, setID)
	if err != nil {
		return fmt.Errorf("distribution set %d: %w", setID, err)
	}

	for _, key := range order {
		out, err := d.builder.Batch(ctx, key.topic, ds, groups[key])
		if err != nil {
			return err
		}

		if err := d.publish(ctx, out); err != nil {
			return err
		}
	}

	return nil
}

// dmfTargets loads the targets referenced by refs that are reached over DMF.
func (d *Dispatcher) dmfTargets(ctx context.Context, refs []models.ActionRef) (map[string]*models.Target, error) {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ControllerID)
	}

	found, err := d.targets.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load targets: %w", err)
	}

	out := make(map[string]*models.Target, len(found))

	for _, t := range found {
		if !t.Address.DMF() {
			continue
		}

		out[t.ControllerID] = t
	}

	return out, nil
}

func findAction(actions []*models.Action, id int64) *models.Action {
	for _, a := range actions {
		if a.ID == id {
			return a
		}
	}

	return nil
}

// Cancel tells targets to abort the canceled actions.
func (d *Dispatcher) Cancel(ctx context.Context, ev *models.CancelEvent) error {
	cfg, err := d.tenantConfig(ctx)
	if err != nil {
		return err
	}

	parts := Partition(ev.Actions, d.cfg.PartitionSize)
	dmf.RecordPartitions(ctx, len(parts))

	return fanOut(ctx, parts, d.cfg.Workers, func(ctx context.Context, refs []models.ActionRef) error {
		targets, err := d.dmfTargets(ctx, refs)
		if err != nil {
			return err
		}

		for _, ref := range refs {
			target, ok := targets[ref.ControllerID]
			if !ok {
				continue
			}

			if cfg.MultiAssignmentsEnabled {
				active, err := d.actions.Active(ctx, target.ControllerID)
				if err != nil {
					return fmt.Errorf("active actions of %s: %w", target.ControllerID, err)
				}

				if err := d.sendMulti(ctx, target, active); err != nil {
					return err
				}

				continue
			}

			action, err := d.actions.Get(ctx, ref.ActionID)
			if err != nil {
				return fmt.Errorf("action %d: %w", ref.ActionID, err)
			}

			if err := d.sendSingle(ctx, target, action); err != nil {
				return err
			}
		}

		return nil
	})
}

// MultiAction resends all active actions to each listed target.
func (d *Dispatcher) MultiAction(ctx context.Context, ev *models.MultiActionEvent) error {
	parts := Partition(ev.ControllerIDs, d.cfg.PartitionSize)

	return fanOut(ctx, parts, d.cfg.Workers, func(ctx context.Context, ids []string) error {
		targets, err := d.targets.GetMany(ctx, ids)
		if err != nil {
			return fmt.Errorf("load targets: %w", err)
		}

		for _, target := range targets {
			if !target.Address.DMF() {
				continue
			}

			active, err := d.actions.Active(ctx, target.ControllerID)
			if err != nil {
				return fmt.Errorf("active actions of %s: %w", target.ControllerID, err)
			}

			if err := d.sendMulti(ctx, target, active); err != nil {
				return err
			}
		}

		return nil
	})
}

// RequestAttributes flags the target for an attribute report and asks the device for it.
func (d *Dispatcher) RequestAttributes(ctx context.Context, ev *models.AttributesRequestEvent) error {
	target, err := d.targets.Get(ctx, ev.ControllerID)
	if err != nil {
		return fmt.Errorf("target %s: %w", ev.ControllerID, err)
	}

	if !target.RequestAttributes {
		target.RequestAttributes = true

		if err := d.targets.Update(ctx, target); err != nil {
			return fmt.Errorf("flag attribute request of %s: %w", ev.ControllerID, err)
		}
	}

	return d.SendAttributesRequest(ctx, target)
}

// SendAttributesRequest sends REQUEST_ATTRIBUTES_UPDATE to target.
func (d *Dispatcher) SendAttributesRequest(ctx context.Context, target *models.Target) error {
	if !target.Address.DMF() {
		return nil
	}

	out, err := d.builder.AttributesRequest(ctx, target)
	if err != nil {
		return err
	}

	return d.publish(ctx, out)
}

// TargetDeleted tells the device that it was removed.
func (d *Dispatcher) TargetDeleted(ctx context.Context, ev *models.TargetDeletedEvent) error {
	addr, err := models.ParseAddress(ev.Address)
	if err != nil {
		return fmt.Errorf("target %s: %w", ev.ControllerID, err)
	}

	if !addr.DMF() {
		return nil
	}

	out, err := d.builder.ThingDeleted(ctx, ev.ControllerID, addr)
	if err != nil {
		return err
	}

	return d.publish(ctx, out)
}

// Redispatch resends what the target should work on next, derived from its persisted
// active actions. Nothing is sent when no action is active.
func (d *Dispatcher) Redispatch(ctx context.Context, controllerID string) error {
	target, err := d.targets.Get(ctx, controllerID)
	if err != nil {
		return fmt.Errorf("target %s: %w", controllerID, err)
	}

	if !target.Address.DMF() {
		return nil
	}

	cfg, err := d.tenantConfig(ctx)
	if err != nil {
		return err
	}

	active, err := d.actions.Active(ctx, controllerID)
	if err != nil {
		return fmt.Errorf("active actions of %s: %w", controllerID, err)
	}

	out, err := d.builder.Next(ctx, target, active, cfg.MultiAssignmentsEnabled)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	dmf.RecordRedispatch(ctx)

	return d.publish(ctx, out)
}

func (d *Dispatcher) sendSingle(ctx context.Context, target *models.Target, action *models.Action) error {
	out, err := d.builder.Single(ctx, target, action)
	if err != nil {
		return err
	}

	return d.publish(ctx, out)
}

func (d *Dispatcher) sendMulti(ctx context.Context, target *models.Target, active []*models.Action) error {
	out, err := d.builder.Multi(ctx, target, active)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	return d.publish(ctx, out)
}

func (d *Dispatcher) publish(ctx context.Context, out *dmf.Outbound) error {
	ctx, span := dmf.Tracer().Start(ctx, "dmf.outbound.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("dmf.topic", string(out.Topic)),
			attribute.String("dmf.tenant", out.Tenant),
			attribute.String("messaging.destination.name", out.Subject),
		))
	defer span.End()

	msg, err := dmf.Encode(*out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return err
	}

	if err := d.pub.Publish(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return fmt.Errorf("publish %s to %s: %w", out.Topic, out.Subject, err)
	}

	topic := out.Topic
	if topic == "" {
		topic = dmf.Topic(out.Type)
	}

	dmf.RecordOutbound(ctx, topic)

	d.log.Debug().
		Str("subject", out.Subject).
		Str("topic", string(out.Topic)).
		Str("thing_id", out.ThingID).
		Msg("Published DMF message")

	return nil
}
