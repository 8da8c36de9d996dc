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
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carverauto/fleetradar/pkg/repository"
	"github.com/carverauto/fleetradar/pkg/tenant"
)

// querier is the part of pgxpool.Pool the repositories use.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements the repositories on a CNPG pool.
type Store struct {
	db querier
}

// NewStore wraps a pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() repository.Store {
	return repository.Store{
		Targets:          &targets{s},
		Actions:          &actions{s},
		DistributionSets: &distributionSets{s},
		Artifacts:        &artifacts{s},
		Tenants:          &tenants{s},
		TenantConfigs:    &tenantConfigs{s},
	}
}

func tenantKey(name string) string {
	return strings.ToLower(name)
}

// scope returns the normalized tenant of the context.
func scope(ctx context.Context) (string, error) {
	info, err := tenant.FromContext(ctx)
	if err != nil {
		return "", err
	}

	if info.Tenant == "" {
		return "", tenant.ErrTenantRequired
	}

	return tenantKey(info.Tenant), nil
}
