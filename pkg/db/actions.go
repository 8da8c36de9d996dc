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

	"github.com/jackc/pgx/v5"

	"github.com/carverauto/fleetradar/pkg/models"
	"github.com/carverauto/fleetradar/pkg/repository"
)

const actionColumns = `id, tenant, controller_id, distribution_set_id, action_type, weight,
	maintenance_window, active, status, created_at`

const (
	selectActionSQL = `SELECT ` + actionColumns + ` FROM actions
WHERE tenant_key = $1 AND id = $2`

	selectActiveActionsSQL = `SELECT ` + actionColumns + ` FROM actions
WHERE tenant_key = $1 AND controller_id = $2 AND active
ORDER BY id`

	selectHistorySQL = `SELECT action_id, status, code, messages, occurred_at FROM action_status
WHERE action_id = ANY($1)
ORDER BY action_id, id`

	lockActionSQL = `SELECT status FROM actions WHERE tenant_key = $1 AND id = $2 FOR UPDATE`

	countHistorySQL = `SELECT count(*) FROM action_status WHERE action_id = $1`

	updateActionSQL = `UPDATE actions SET status = $3, active = $4 WHERE tenant_key = $1 AND id = $2`

	insertStatusSQL = `
INSERT INTO action_status (
	action_id,
	status,
	code,
	messages,
	occurred_at
) VALUES ($1,$2,$3,$4,$5)`
)

type actions struct{ s *Store }

func collectAction(row pgx.CollectableRow) (*models.Action, error) {
	var a models.Action

	err := row.Scan(&a.ID, &a.Tenant, &a.ControllerID, &a.DistributionSetID, &a.Type, &a.Weight,
		&a.MaintenanceWindow, &a.Active, &a.Status, &a.CreatedAt)

	return &a, err
}

func (r *actions) loadHistory(ctx context.Context, list []*models.Action) error {
	if len(list) == 0 {
		return nil
	}

	byID := make(map[int64]*models.Action, len(list))
	ids := make([]int64, 0, len(list))

	for _, a := range list {
		byID[a.ID] = a
		ids = append(ids, a.ID)
	}

	rows, err := r.s.db.Query(ctx, selectHistorySQL, ids)
	if err != nil {
		return err
	}

	var (
		actionID int64
		entry    models.ActionStatus
	)

	_, err = pgx.ForEachRow(rows, []any{&actionID, &entry.Status, &entry.Code, &entry.Messages, &entry.Timestamp},
		func() error {
			a := byID[actionID]
			a.History = append(a.History, entry)
			entry = models.ActionStatus{}

			return nil
		})
	if err != nil {
		return err
	}

	for _, a := range list {
		a.Revision = len(a.History)
	}

	return nil
}

func (r *actions) Get(ctx context.Context, id int64) (*models.Action, error) {
	key, err := scope(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := r.s.db.Query(ctx, selectActionSQL, key, id)
	if err != nil {
		return nil, mapError(err, "action", id)
	}

	a, err := pgx.CollectExactlyOneRow(rows, collectAction)
	if err != nil {
		return nil, mapError(err, "action", id)
	}

	if err := r.loadHistory(ctx, []*models.Action{a}); err != nil {
		return nil, mapError(err, "action history", id)
	}

	return a, nil
}

func (r *actions) Active(ctx context.Context, controllerID string) ([]*models.Action, error) {
	key, err := scope(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := r.s.db.Query(ctx, selectActiveActionsSQL, key, controllerID)
	if err != nil {
		return nil, mapError(err, "actions of", controllerID)
	}

	list, err := pgx.CollectRows(rows, collectAction)
	if err != nil {
		return nil, mapError(err, "actions of", controllerID)
	}

	if err := r.loadHistory(ctx, list); err != nil {
		return nil, mapError(err, "action history of", controllerID)
	}

	return list, nil
}

// Update stores status and active flag and appends the history entries that are not yet
// persisted. History is append-only.
func (r *actions) Update(ctx context.Context, action *models.Action) error {
	key, err := scope(ctx)
	if err != nil {
		return err
	}

	err = pgx.BeginFunc(ctx, r.s.db, func(tx pgx.Tx) error {
		var current models.Status
		if err := tx.QueryRow(ctx, lockActionSQL, key, action.ID).Scan(&current); err != nil {
			return err
		}

		var stored int
		if err := tx.QueryRow(ctx, countHistorySQL, action.ID).Scan(&stored); err != nil {
			return err
		}

		if err := repository.CheckActionUpdate(current, stored, action); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		batch.Queue(updateActionSQL, key, action.ID, action.Status, action.Active)

		for _, entry := range action.History[stored:] {
			messages := entry.Messages
			if messages == nil {
				messages = []string{}
			}

			batch.Queue(insertStatusSQL, action.ID, entry.Status, entry.Code, messages, entry.Timestamp)
		}

		return tx.SendBatch(ctx, batch).Close()
	})
	if errors.Is(err, repository.ErrActionClosed) || errors.Is(err, repository.ErrStaleAction) {
		return err
	}

	if err == nil {
		action.Revision = len(action.History)
	}

	return mapError(err, "action", action.ID)
}
