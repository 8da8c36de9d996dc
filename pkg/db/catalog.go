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

	"github.com/carverauto/fleetradar/pkg/models"
)

const (
	selectDistributionSetSQL = `SELECT id, tenant, name, version FROM distribution_sets
WHERE tenant_key = $1 AND id = $2`

	selectModulesSQL = `SELECT m.id, m.module_type, m.name, m.version, m.encrypted, m.metadata
FROM software_modules m
JOIN distribution_set_modules dsm ON dsm.software_module_id = m.id
WHERE dsm.distribution_set_id = $1
ORDER BY m.id`

	artifactColumns = `a.id, a.software_module_id, a.filename, a.sha1, a.md5, a.sha256, a.size, a.last_modified`

	selectModuleArtifactsSQL = `SELECT ` + artifactColumns + ` FROM artifacts a
WHERE a.software_module_id = ANY($1)
ORDER BY a.id`

	findArtifactSQL = `SELECT ` + artifactColumns + ` FROM artifacts a
JOIN software_modules m ON m.id = a.software_module_id
WHERE m.tenant_key = $1 AND `

	artifactByIDFilter       = `a.id = $2 ORDER BY a.id LIMIT 1`
	artifactBySHA1Filter     = `lower(a.sha1) = $2 ORDER BY a.id LIMIT 1`
	artifactByFilenameFilter = `a.filename = $2 ORDER BY a.id LIMIT 1`
	artifactByModuleFilter   = `a.software_module_id = $2 AND a.filename = $3 ORDER BY a.id LIMIT 1`

	artifactAssignedSQL = `SELECT EXISTS (
	SELECT 1 FROM actions ac
	JOIN distribution_set_modules dsm ON dsm.distribution_set_id = ac.distribution_set_id
	JOIN artifacts a ON a.software_module_id = dsm.software_module_id
	WHERE ac.tenant_key = $1 AND ac.controller_id = $2 AND a.id = $3
)`
)

type distributionSets struct{ s *Store }

func collectArtifact(row pgx.CollectableRow) (*models.Artifact, error) {
	var a models.Artifact

	err := row.Scan(&a.ID, &a.SoftwareModuleID, &a.Filename, &a.SHA1, &a.MD5, &a.SHA256, &a.Size, &a.LastModified)

	return &a, err
}

// Get loads the set with its modules and their artifacts.
func (r *distributionSets) Get(ctx context.Context, id int64) (*models.DistributionSet, error) {
	key, err := scope(ctx)
	if err != nil {
		return nil, err
	}

	ds := &models.DistributionSet{}

	if err := r.s.db.QueryRow(ctx, selectDistributionSetSQL, key, id).
		Scan(&ds.ID, &ds.Tenant, &ds.Name, &ds.Version); err != nil {
		return nil, mapError(err, "distribution set", id)
	}

	rows, err := r.s.db.Query(ctx, selectModulesSQL, id)
	if err != nil {
		return nil, mapError(err, "software modules of", id)
	}

	ds.Modules, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.SoftwareModule, error) {
		var m models.SoftwareModule

		err := row.Scan(&m.ID, &m.Type, &m.Name, &m.Version, &m.Encrypted, &m.Metadata)

		return &m, err
	})
	if err != nil {
		return nil, mapError(err, "software modules of", id)
	}

	if len(ds.Modules) == 0 {
		return ds, nil
	}

	byID := make(map[int64]*models.SoftwareModule, len(ds.Modules))
	ids := make([]int64, 0, len(ds.Modules))

	for _, m := range ds.Modules {
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}

	rows, err = r.s.db.Query(ctx, selectModuleArtifactsSQL, ids)
	if err != nil {
		return nil, mapError(err, "artifacts of", id)
	}

	list, err := pgx.CollectRows(rows, collectArtifact)
	if err != nil {
		return nil, mapError(err, "artifacts of", id)
	}

	for _, a := range list {
		m := byID[a.SoftwareModuleID]
		m.Artifacts = append(m.Artifacts, a)
	}

	return ds, nil
}

type artifacts struct{ s *Store }

func (r *artifacts) find(ctx context.Context, filter string, key any, args ...any) (*models.Artifact, error) {
	tenantKey, err := scope(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := r.s.db.Query(ctx, findArtifactSQL+filter, append([]any{tenantKey}, args...)...)
	if err != nil {
		return nil, mapError(err, "artifact", key)
	}

	a, err := pgx.CollectExactlyOneRow(rows, collectArtifact)

	return a, mapError(err, "artifact", key)
}

func (r *artifacts) Get(ctx context.Context, id int64) (*models.Artifact, error) {
	return r.find(ctx, artifactByIDFilter, id, id)
}

func (r *artifacts) FindBySHA1(ctx context.Context, sha1 string) (*models.Artifact, error) {
	return r.find(ctx, artifactBySHA1Filter, sha1, strings.ToLower(sha1))
}

func (r *artifacts) FindByFilename(ctx context.Context, filename string) (*models.Artifact, error) {
	return r.find(ctx, artifactByFilenameFilter, filename, filename)
}

func (r *artifacts) FindByModuleFilename(ctx context.Context, softwareModuleID int64, filename string) (*models.Artifact, error) {
	return r.find(ctx, artifactByModuleFilter, filename, softwareModuleID, filename)
}

func (r *artifacts) AssignedTo(ctx context.Context, controllerID string, artifactID int64) (bool, error) {
	key, err := scope(ctx)
	if err != nil {
		return false, err
	}

	var assigned bool

	err = r.s.db.QueryRow(ctx, artifactAssignedSQL, key, controllerID, artifactID).Scan(&assigned)

	return assigned, mapError(err, "artifact assignment", artifactID)
}
