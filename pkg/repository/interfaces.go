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

//go:generate mockgen -destination=mock_repository.go -package=repository github.com/carverauto/fleetradar/pkg/repository Targets,Actions,DistributionSets,Artifacts,Tenants,TenantConfigs

// Package repository declares the storage boundary of the protocol engine. Every method
// except the Tenants lookups is scoped to the tenant carried in the context.
package repository

import (
	"context"

	"github.com/carverauto/fleetradar/pkg/models"
)

// Targets stores devices.
type Targets interface {
	// Get returns dmf.ErrEntityNotFound when the controller is unknown.
	Get(ctx context.Context, controllerID string) (*models.Target, error)
	GetByID(ctx context.Context, id int64) (*models.Target, error)
	// GetMany silently omits unknown controllers.
	GetMany(ctx context.Context, controllerIDs []string) ([]*models.Target, error)
	// Register creates the target or updates its address, name, type and last-seen time.
	// New targets are flagged to report their attributes.
	Register(ctx context.Context, target *models.Target) (*models.Target, error)
	Update(ctx context.Context, target *models.Target) error
	Delete(ctx context.Context, controllerID string) error
}

// Actions stores assignments and their status history.
type Actions interface {
	Get(ctx context.Context, id int64) (*models.Action, error)
	// Active returns the active actions of a target in id order.
	Active(ctx context.Context, controllerID string) ([]*models.Action, error)
	// Update persists status, active flag and history. It returns ErrActionClosed when
	// the stored action already reached a terminal status and ErrStaleAction when
	// another update was persisted after action was loaded.
	Update(ctx context.Context, action *models.Action) error
}

// DistributionSets reads software bundles.
type DistributionSets interface {
	Get(ctx context.Context, id int64) (*models.DistributionSet, error)
}

// Artifacts resolves artifacts for download authorization.
type Artifacts interface {
	Get(ctx context.Context, id int64) (*models.Artifact, error)
	FindBySHA1(ctx context.Context, sha1 string) (*models.Artifact, error)
	FindByFilename(ctx context.Context, filename string) (*models.Artifact, error)
	FindByModuleFilename(ctx context.Context, softwareModuleID int64, filename string) (*models.Artifact, error)
	// AssignedTo reports whether any action of the target references a distribution set
	// containing the artifact.
	AssignedTo(ctx context.Context, controllerID string, artifactID int64) (bool, error)
}

// Tenants is the tenant directory. Lookups require a system context.
type Tenants interface {
	ByID(ctx context.Context, id int64) (*models.Tenant, error)
	ByName(ctx context.Context, name string) (*models.Tenant, error)
}

// TenantConfigs reads per-tenant protocol switches.
type TenantConfigs interface {
	// Get returns the zero configuration for tenants without stored settings.
	Get(ctx context.Context, tenantName string) (*models.TenantConfig, error)
}

// Store bundles the repositories one engine instance works with.
type Store struct {
	Targets          Targets
	Actions          Actions
	DistributionSets DistributionSets
	Artifacts        Artifacts
	Tenants          Tenants
	TenantConfigs    TenantConfigs
}
