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

//go:generate mockgen -destination=mock_inbound.go -package=inbound github.com/carverauto/fleetradar/pkg/dmf/inbound Authenticator,Dispatcher

package inbound

import (
	"context"

	"github.com/carverauto/fleetradar/pkg/models"
	"github.com/carverauto/fleetradar/pkg/tenant"
)

// Authenticator establishes the identity behind a request.
type Authenticator interface {
	Authenticate(ctx context.Context, token *models.TenantSecurityToken) (*tenant.Info, error)
}

// Dispatcher sends follow-up messages to devices.
type Dispatcher interface {
	Redispatch(ctx context.Context, controllerID string) error
	SendAttributesRequest(ctx context.Context, target *models.Target) error
}
