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

//go:generate mockgen -destination=mock_events.go -package=events github.com/carverauto/fleetradar/pkg/events Handler

package events

import (
	"context"

	"github.com/carverauto/fleetradar/pkg/models"
)

// Handler reacts to domain events. Each call runs under a system identity scoped to the
// event's tenant.
type Handler interface {
	Assign(ctx context.Context, ev *models.AssignmentEvent) error
	Cancel(ctx context.Context, ev *models.CancelEvent) error
	MultiAction(ctx context.Context, ev *models.MultiActionEvent) error
	RequestAttributes(ctx context.Context, ev *models.AttributesRequestEvent) error
	TargetDeleted(ctx context.Context, ev *models.TargetDeletedEvent) error
}
