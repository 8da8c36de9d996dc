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

package inbound

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/carverauto/fleetradar/pkg/dmf"
	"github.com/carverauto/fleetradar/pkg/models"
)

const (
	maxAttributeKeyLength   = 128
	maxAttributeValueLength = 128
)

var (
	errUnknownAttributeMode = fmt.Errorf("%w: unknown attribute update mode", dmf.ErrProtocolViolation)
	errAttributeTooLong     = fmt.Errorf("%w: attribute too long", dmf.ErrConstraintViolation)
)

// thingCreated registers the device at its reply_to subject, resends pending work and
// asks for attributes when they were requested.
func (r *Router) thingCreated(ctx context.Context, env *dmf.Envelope) error {
	if env.ReplyTo == "" {
		return fmt.Errorf("%w: %s", dmf.ErrMissingHeader, dmf.HeaderReplyTo)
	}

	var body *models.CreateThing

	if len(env.Body) > 0 {
		decoded, err := dmf.DecodeBody[models.CreateThing](env.Body)
		if err != nil {
			return err
		}

		body = decoded
	}

	candidate := &models.Target{
		ControllerID: env.ThingID,
		Address:      models.Address{Scheme: models.AddressSchemeNATS, Subject: env.ReplyTo},
		LastSeen:     r.now(),
	}

	if body != nil {
		candidate.Name = body.Name
		candidate.Type = body.Type
	}

	target, err := r.targets.Register(ctx, candidate)
	if err != nil {
		return fmt.Errorf("register %s: %w", env.ThingID, err)
	}

	r.log.Debug().
		Str("tenant", env.Tenant).
		Str("thing_id", env.ThingID).
		Str("address", target.Address.String()).
		Msg("Device registered")

	if body != nil && body.AttributeUpdate != nil {
		if err := applyAttributes(target, body.AttributeUpdate); err != nil {
			return err
		}

		target.RequestAttributes = false

		if err := r.targets.Update(ctx, target); err != nil {
			return fmt.Errorf("update attributes of %s: %w", env.ThingID, err)
		}
	}

	if err := r.dispatcher.Redispatch(ctx, target.ControllerID); err != nil {
		return err
	}

	if target.RequestAttributes {
		return r.dispatcher.SendAttributesRequest(ctx, target)
	}

	return nil
}

func (r *Router) thingRemoved(ctx context.Context, env *dmf.Envelope) error {
	if err := r.targets.Delete(ctx, env.ThingID); err != nil {
		return fmt.Errorf("delete %s: %w", env.ThingID, err)
	}

	r.log.Info().Str("tenant", env.Tenant).Str("thing_id", env.ThingID).Msg("Device removed")

	return nil
}

func (r *Router) updateAttributes(ctx context.Context, env *dmf.Envelope) error {
	update, err := dmf.DecodeBody[models.AttributeUpdate](env.Body)
	if err != nil {
		return err
	}

	target, err := r.targets.Get(ctx, env.ThingID)
	if err != nil {
		return fmt.Errorf("target %s: %w", env.ThingID, err)
	}

	if err := applyAttributes(target, update); err != nil {
		return err
	}

	target.RequestAttributes = false

	if err := r.targets.Update(ctx, target); err != nil {
		return fmt.Errorf("update attributes of %s: %w", env.ThingID, err)
	}

	return nil
}

// applyAttributes combines reported attributes with the stored ones. MERGE is the default.
func applyAttributes(target *models.Target, update *models.AttributeUpdate) error {
	if err := validateAttributes(update.Attributes); err != nil {
		return err
	}

	switch update.Mode {
	case models.AttributeUpdateMerge, "":
		if target.Attributes == nil {
			target.Attributes = make(map[string]string, len(update.Attributes))
		}

		maps.Copy(target.Attributes, update.Attributes)
	case models.AttributeUpdateReplace:
		target.Attributes = maps.Clone(update.Attributes)
	case models.AttributeUpdateRemove:
		for k := range update.Attributes {
			delete(target.Attributes, k)
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownAttributeMode, update.Mode)
	}

	return nil
}

func validateAttributes(attrs map[string]string) error {
	var errs []error

	for k, v := range attrs {
		if len(k) > maxAttributeKeyLength {
			errs = append(errs, fmt.Errorf("%w: key of %d bytes exceeds %d", errAttributeTooLong, len(k), maxAttributeKeyLength))
		}

		if len(v) > maxAttributeValueLength {
			errs = append(errs, fmt.Errorf("%w: value of %q exceeds %d bytes", errAttributeTooLong, k, maxAttributeValueLength))
		}
	}

	return errors.Join(errs...)
}
