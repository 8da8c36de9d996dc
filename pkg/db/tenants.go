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

package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/carverauto/fleetradar/pkg/dmf"
	"github.com/carverauto/fleetradar/pkg/models"
	"github.com/carverauto/fleetradar/pkg/tenant"
)

const (
	selectTenantByIDSQL   = `SELECT id, name FROM tenants WHERE id = $1`
	selectTenantByNameSQL = `SELECT id, name FROM tenants WHERE tenant_key = $1`
	selectTenantConfigSQL = `SELECT config FROM tenant_configs WHERE tenant_key = $1`
)

type tenants struct{ s *Store }

func (r *tenants) lookup(ctx context.Context, sql string, key any) (*models.Tenant, error) {
	if !tenant.IsSystem(ctx) {
		return nil, dmf.ErrUnauthorized
	}

	var t models.Tenant

	err := r.s.db.QueryRow(ctx, sql, key).Scan(&t.ID, &t.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %v", dmf.ErrTenantNotExist, key)
	}

	if err != nil {
		return nil, mapError(err, "tenant", key)
	}

	return &t, nil
}

func (r *tenants) ByID(ctx context.Context, id int64) (*models.Tenant, error) {
	return r.lookup(ctx, selectTenantByIDSQL, id)
}

func (r *tenants) ByName(ctx context.Context, name string) (*models.Tenant, error) {
	return r.lookup(ctx, selectTenantByNameSQL, tenantKey(name))
}

type tenantConfigs struct{ s *Store }

// Get returns the zero configuration when the tenant has no stored row.
func (r *tenantConfigs) Get(ctx context.Context, tenantName string) (*models.TenantConfig, error) {
	var cfg models.TenantConfig

	err := r.s.db.QueryRow(ctx, selectTenantConfigSQL, tenantKey(tenantName)).Scan(&cfg)
	if errors.Is(err, pgx.ErrNoRows) {
		return &models.TenantConfig{}, nil
	}

	if err != nil {
		return nil, mapError(err, "tenant configuration", tenantName)
	}

	return &cfg, nil
}
