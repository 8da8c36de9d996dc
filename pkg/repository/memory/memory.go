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

// Package memory is a goroutine-safe in-process implementation of the repositories.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/fleetradar/pkg/dmf"
	"github.com/carverauto/fleetradar/pkg/models"
	"github.com/carverauto/fleetradar/pkg/repository"
	"github.com/carverauto/fleetradar/pkg/tenant"
)

type targetKey struct {
	tenant       string
	controllerID string
}

// Store holds all entities behind one lock.
type Store struct {
	mu sync.RWMutex

	nextID int64

	tenants   map[string]*models.Tenant
	configs   map[string]*models.TenantConfig
	targets   map[targetKey]*models.Target
	actions   map[int64]*models.Action
	sets      map[int64]*models.DistributionSet
	artifacts map[int64]*models.Artifact

	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		tenants:   make(map[string]*models.Tenant),
		configs:   make(map[string]*models.TenantConfig),
		targets:   make(map[targetKey]*models.Target),
		actions:   make(map[int64]*models.Action),
		sets:      make(map[int64]*models.DistributionSet),
		artifacts: make(map[int64]*models.Artifact),
		now:       time.Now,
	}
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

func (s *Store) id() int64 {
	s.nextID++

	return s.nextID
}

func norm(name string) string {
	return strings.ToLower(name)
}

func scope(ctx context.Context) (string, error) {
	info, err := tenant.FromContext(ctx)
	if err != nil {
		return "", err
	}

	if info.Tenant == "" {
		return "", tenant.ErrTenantRequired
	}

	return norm(info.Tenant), nil
}

func notFound(kind string, key any) error {
	return fmt.Errorf("%w: %s %v", dmf.ErrEntityNotFound, kind, key)
}

// AddTenant creates a tenant and returns it with its id.
func (s *Store) AddTenant(name string) *models.Tenant {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tenants[norm(name)]; ok {
		return t
	}

	t := &models.Tenant{ID: s.id(), Name: name}
	s.tenants[norm(name)] = t

	return t
}

// SetTenantConfig stores the protocol switches of a tenant.
func (s *Store) SetTenantConfig(name string, cfg models.TenantConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.configs[norm(name)] = &cfg
}

// AddTarget stores a target, assigning an id when it has none.
func (s *Store) AddTarget(t *models.Target) *models.Target {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := t.Clone()
	if c.ID == 0 {
		c.ID = s.id()
	}

	s.targets[targetKey{norm(c.Tenant), c.ControllerID}] = c

	return c.Clone()
}

// AddDistributionSet stores a set together with its artifacts.
func (s *Store) AddDistributionSet(ds *models.DistributionSet) *models.DistributionSet {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ds.ID == 0 {
		ds.ID = s.id()
	}

	for _, m := range ds.Modules {
		if m.ID == 0 {
			m.ID = s.id()
		}

		for _, a := range m.Artifacts {
			if a.ID == 0 {
				a.ID = s.id()
			}

			a.SoftwareModuleID = m.ID
			s.artifacts[a.ID] = a
		}
	}

	s.sets[ds.ID] = ds

	return ds
}

// AddAction stores an action, assigning an id and the initial DOWNLOAD history entry.
func (s *Store) AddAction(a *models.Action) *models.Action {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := a.Clone()
	if c.ID == 0 {
		c.ID = s.id()
	}

	if c.Status == "" {
		c.Status = models.StatusDownload
	}

	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}

	if len(c.History) == 0 {
		c.History = []models.ActionStatus{{Status: c.Status, Timestamp: c.CreatedAt}}
	}

	c.Revision = len(c.History)
	s.actions[c.ID] = c

	return c.Clone()
}

// Action returns a copy of an action regardless of tenant, for assertions.
func (s *Store) Action(id int64) *models.Action {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.actions[id].Clone()
}

// Target returns a copy of a target, for assertions.
func (s *Store) Target(tenantName, controllerID string) *models.Target {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.targets[targetKey{norm(tenantName), controllerID}].Clone()
}

type targets struct{ s *Store }

func (r *targets) Get(ctx context.Context, controllerID string) (*models.Target, error) {
	ten, err := scope(ctx)
	if err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.targets[targetKey{ten, controllerID}]
	if !ok {
		return nil, notFound("target", controllerID)
	}

	return t.Clone(), nil
}

func (r *targets) GetByID(ctx context.Context, id int64) (*models.Target, error) {
	ten, err := scope(ctx)
	if err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for k, t := range r.s.targets {
		if k.tenant == ten && t.ID == id {
			return t.Clone(), nil
		}
	}

	return nil, notFound("target", id)
}

func (r *targets) GetMany(ctx context.Context, controllerIDs []string) ([]*models.Target, error) {
	ten, err := scope(ctx)
	if err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*models.Target, 0, len(controllerIDs))

	for _, id := range controllerIDs {
		if t, ok := r.s.targets[targetKey{ten, id}]; ok {
			out = append(out, t.Clone())
		}
	}

	return out, nil
}

func (r *targets) Register(ctx context.Context, target *models.Target) (*models.Target, error) {
	ten, err := scope(ctx)
	if err != nil {
		return nil, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := targetKey{ten, target.ControllerID}

	existing, ok := r.s.targets[key]
	if !ok {
		c := target.Clone()
		c.ID = r.s.id()
		c.Tenant = tenant.NameFromContext(ctx)
		c.RequestAttributes = true
		r.s.targets[key] = c

		return c.Clone(), nil
	}

	existing.Address = target.Address
	existing.LastSeen = target.LastSeen

	if target.Name != "" {
		existing.Name = target.Name
	}

	if target.Type != "" {
		existing.Type = target.Type
	}

	return existing.Clone(), nil
}

func (r *targets) Update(ctx context.Context, target *models.Target) error {
	ten, err := scope(ctx)
	if err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := targetKey{ten, target.ControllerID}
	if _, ok := r.s.targets[key]; !ok {
		return notFound("target", target.ControllerID)
	}

	r.s.targets[key] = target.Clone()

	return nil
}

func (r *targets) Delete(ctx context.Context, controllerID string) error {
	ten, err := scope(ctx)
	if err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := targetKey{ten, controllerID}
	if _, ok := r.s.targets[key]; !ok {
		return notFound("target", controllerID)
	}

	delete(r.s.targets, key)

	for id, a := range r.s.actions {
		if norm(a.Tenant) == ten && a.ControllerID == controllerID {
			delete(r.s.actions, id)
		}
	}

	return nil
}

type actions struct{ s *Store }

func (r *actions) Get(ctx context.Context, id int64) (*models.Action, error) {
	ten, err := scope(ctx)
	if err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.actions[id]
	if !ok || norm(a.Tenant) != ten {
		return nil, notFound("action", id)
	}

	return a.Clone(), nil
}

func (r *actions) Active(ctx context.Context, controllerID string) ([]*models.Action, error) {
	ten, err := scope(ctx)
	if err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Action

	for _, a := range r.s.actions {
		if a.Active && norm(a.Tenant) == ten && a.ControllerID == controllerID {
			out = append(out, a.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (r *actions) Update(ctx context.Context, action *models.Action) error {
	ten, err := scope(ctx)
	if err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.actions[action.ID]
	if !ok || norm(a.Tenant) != ten {
		return notFound("action", action.ID)
	}

	if err := repository.CheckActionUpdate(a.Status, a.Revision, action); err != nil {
		return err
	}

	c := action.Clone()
	c.Revision = len(c.History)
	r.s.actions[action.ID] = c
	action.Revision = c.Revision

	return nil
}

type distributionSets struct{ s *Store }

func (r *distributionSets) Get(ctx context.Context, id int64) (*models.DistributionSet, error) {
	ten, err := scope(ctx)
	if err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ds, ok := r.s.sets[id]
	if !ok || norm(ds.Tenant) != ten {
		return nil, notFound("distribution set", id)
	}

	return ds, nil
}

type artifacts struct{ s *Store }

func (r *artifacts) find(ctx context.Context, key any, match func(*models.Artifact) bool) (*models.Artifact, error) {
	ten, err := scope(ctx)
	if err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ids := make([]int64, 0, len(r.s.artifacts))
	for id := range r.s.artifacts {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		a := r.s.artifacts[id]
		if match(a) && r.s.artifactTenant(a) == ten {
			c := *a

			return &c, nil
		}
	}

	return nil, notFound("artifact", key)
}

func (s *Store) artifactTenant(a *models.Artifact) string {
	for _, ds := range s.sets {
		for _, m := range ds.Modules {
			if m.ID == a.SoftwareModuleID {
				return norm(ds.Tenant)
			}
		}
	}

	return ""
}

func (r *artifacts) Get(ctx context.Context, id int64) (*models.Artifact, error) {
	return r.find(ctx, id, func(a *models.Artifact) bool { return a.ID == id })
}

func (r *artifacts) FindBySHA1(ctx context.Context, sha1 string) (*models.Artifact, error) {
	return r.find(ctx, sha1, func(a *models.Artifact) bool { return strings.EqualFold(a.SHA1, sha1) })
}

func (r *artifacts) FindByFilename(ctx context.Context, filename string) (*models.Artifact, error) {
	return r.find(ctx, filename, func(a *models.Artifact) bool { return a.Filename == filename })
}

func (r *artifacts) FindByModuleFilename(ctx context.Context, softwareModuleID int64, filename string) (*models.Artifact, error) {
	return r.find(ctx, filename, func(a *models.Artifact) bool {
		return a.SoftwareModuleID == softwareModuleID && a.Filename == filename
	})
}

func (r *artifacts) AssignedTo(ctx context.Context, controllerID string, artifactID int64) (bool, error) {
	ten, err := scope(ctx)
	if err != nil {
		return false, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, a := range r.s.actions {
		if norm(a.Tenant) != ten || a.ControllerID != controllerID {
			continue
		}

		ds, ok := r.s.sets[a.DistributionSetID]
		if !ok {
			continue
		}

		for _, m := range ds.Modules {
			for _, art := range m.Artifacts {
				if art.ID == artifactID {
					return true, nil
				}
			}
		}
	}

	return false, nil
}

type tenants struct{ s *Store }

func (r *tenants) ByID(ctx context.Context, id int64) (*models.Tenant, error) {
	if !tenant.IsSystem(ctx) {
		return nil, dmf.ErrUnauthorized
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, t := range r.s.tenants {
		if t.ID == id {
			c := *t

			return &c, nil
		}
	}

	return nil, fmt.Errorf("%w: id %d", dmf.ErrTenantNotExist, id)
}

func (r *tenants) ByName(ctx context.Context, name string) (*models.Tenant, error) {
	if !tenant.IsSystem(ctx) {
		return nil, dmf.ErrUnauthorized
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.tenants[norm(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", dmf.ErrTenantNotExist, name)
	}

	c := *t

	return &c, nil
}

type tenantConfigs struct{ s *Store }

func (r *tenantConfigs) Get(_ context.Context, tenantName string) (*models.TenantConfig, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	cfg, ok := r.s.configs[norm(tenantName)]
	if !ok {
		return &models.TenantConfig{}, nil
	}

	c := *cfg
	c.AuthorizedIssuerHashes = append([]string(nil), cfg.AuthorizedIssuerHashes...)

	return &c, nil
}
