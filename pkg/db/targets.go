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
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/carverauto/fleetradar/pkg/models"
	"github.com/carverauto/fleetradar/pkg/tenant"
)

const targetColumns = `id, tenant, controller_id, name, target_type, address, security_token,
	attributes, request_attributes, auto_confirm, last_seen`

const (
	selectTargetSQL = `SELECT ` + targetColumns + ` FROM targets
WHERE tenant_key = $1 AND controller_id = $2`

	selectTargetByIDSQL = `SELECT ` + targetColumns + ` FROM targets
WHERE tenant_key = $1 AND id = $2`

	selectTargetsSQL = `SELECT ` + targetColumns + ` FROM targets
WHERE tenant_key = $1 AND controller_id = ANY($2)
ORDER BY id`

	registerTargetSQL = `
INSERT INTO targets (
	tenant,
	tenant_key,
	controller_id,
	name,
	target_type,
	address,
	request_attributes,
	last_seen
) VALUES ($1,$2,$3,$4,$5,$6,TRUE,$7)
ON CONFLICT (tenant_key, controller_id) DO UPDATE SET
	address = EXCLUDED.address,
	last_seen = EXCLUDED.last_seen,
	name = COALESCE(NULLIF(EXCLUDED.name, ''), targets.name),
	target_type = COALESCE(NULLIF(EXCLUDED.target_type, ''), targets.target_type)
RETURNING ` + targetColumns

	updateTargetSQL = `
UPDATE targets SET
	name = $3,
	target_type = $4,
	address = $5,
	security_token = $6,
	attributes = $7,
	request_attributes = $8,
	auto_confirm = $9,
	last_seen = $10
WHERE tenant_key = $1 AND controller_id = $2`

	deleteTargetSQL = `DELETE FROM targets WHERE tenant_key = $1 AND controller_id = $2`
)

type targets struct{ s *Store }

func scanTarget(row pgx.Row) (*models.Target, error) {
	var (
		t        models.Target
		address  string
		lastSeen *time.Time
	)

	if err := row.Scan(&t.ID, &t.Tenant, &t.ControllerID, &t.Name, &t.Type, &address, &t.SecurityToken,
		&t.Attributes, &t.RequestAttributes, &t.AutoConfirm, &lastSeen); err != nil {
		return nil, err
	}

	addr, err := models.ParseAddress(address)
	if err != nil {
		return nil, err
	}

	t.Address = addr

	if lastSeen != nil {
		t.LastSeen = *lastSeen
	}

	return &t, nil
}

func collectTarget(row pgx.CollectableRow) (*models.Target, error) {
	return scanTarget(row)
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}

	return &t
}

func (r *targets) Get(ctx context.Context, controllerID string) (*models.Target, error) {
	key, err := scope(ctx)
	if err != nil {
		return nil, err
	}

	t, err := scanTarget(r.s.db.QueryRow(ctx, selectTargetSQL, key, controllerID))

	return t, mapError(err, "target", controllerID)
}

func (r *targets) GetByID(ctx context.Context, id int64) (*models.Target, error) {
	key, err := scope(ctx)
	if err != nil {
		return nil, err
	}

	t, err := scanTarget(r.s.db.QueryRow(ctx, selectTargetByIDSQL, key, id))

	return t, mapError(err, "target", id)
}

func (r *targets) GetMany(ctx context.Context, controllerIDs []string) ([]*models.Target, error) {
	key, err := scope(ctx)
	if err != nil {
		return nil, err
	}

	if len(controllerIDs) == 0 {
		return nil, nil
	}

	rows, err := r.s.db.Query(ctx, selectTargetsSQL, key, controllerIDs)
	if err != nil {
		return nil, mapError(err, "targets", len(controllerIDs))
	}

	out, err := pgx.CollectRows(rows, collectTarget)

	return out, mapError(err, "targets", len(controllerIDs))
}

func (r *targets) Register(ctx context.Context, target *models.Target) (*models.Target, error) {
	key, err := scope(ctx)
	if err != nil {
		return nil, err
	}

	t, err := scanTarget(r.s.db.QueryRow(ctx, registerTargetSQL,
		tenant.NameFromContext(ctx), key, target.ControllerID, target.Name, target.Type,
		target.Address.String(), nullTime(target.LastSeen)))

	return t, mapError(err, "target", target.ControllerID)
}

func (r *targets) Update(ctx context.Context, target *models.Target) error {
	key, err := scope(ctx)
	if err != nil {
		return err
	}

	attributes := target.Attributes
	if attributes == nil {
		attributes = map[string]string{}
	}

	tag, err := r.s.db.Exec(ctx, updateTargetSQL, key, target.ControllerID, target.Name, target.Type,
		target.Address.String(), target.SecurityToken, attributes, target.RequestAttributes,
		target.AutoConfirm, nullTime(target.LastSeen))
	if err != nil {
		return mapError(err, "target", target.ControllerID)
	}

	if tag.RowsAffected() == 0 {
		return mapError(pgx.ErrNoRows, "target", target.ControllerID)
	}

	return nil
}

// Delete removes the target together with its actions.
func (r *targets) Delete(ctx context.Context, controllerID string) error {
	key, err := scope(ctx)
	if err != nil {
		return err
	}

	tag, err := r.s.db.Exec(ctx, deleteTargetSQL, key, controllerID)
	if err != nil {
		return mapError(err, "target", controllerID)
	}

	if tag.RowsAffected() == 0 {
		return mapError(pgx.ErrNoRows, "target", controllerID)
	}

	return nil
}
