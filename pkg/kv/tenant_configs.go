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

package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/carverauto/fleetradar/pkg/logger"
	"github.com/carverauto/fleetradar/pkg/models"
	"github.com/carverauto/fleetradar/pkg/repository"
	"github.com/carverauto/fleetradar/pkg/tenant"
)

const tenantKeyPrefix = "tenants."

// TenantConfigs serves per-tenant protocol switches from the bucket. Documents are
// cached after the first read and dropped from the cache when they change.
type TenantConfigs struct {
	store *NatsStore
	log   logger.Logger

	mu    sync.RWMutex
	cache map[string]models.TenantConfig
	// generations counts invalidations per key. A read only fills the cache when no
	// invalidation happened while it was in flight.
	generations map[string]uint64
}

// NewTenantConfigs returns a tenant configuration repository over store.
func NewTenantConfigs(store *NatsStore, log logger.Logger) *TenantConfigs {
	return &TenantConfigs{
		store:       store,
		log:         log,
		cache:       make(map[string]models.TenantConfig),
		generations: make(map[string]uint64),
	}
}

// TenantKey returns the bucket key of a tenant's configuration.
func TenantKey(tenantName string) string {
	return tenantKeyPrefix + tenant.Token(strings.ToLower(tenantName))
}

func copyConfig(cfg models.TenantConfig) *models.TenantConfig {
	cfg.AuthorizedIssuerHashes = append([]string(nil), cfg.AuthorizedIssuerHashes...)

	return &cfg
}

// Get implements repository.TenantConfigs.
func (t *TenantConfigs) Get(ctx context.Context, tenantName string) (*models.TenantConfig, error) {
	key := TenantKey(tenantName)

	t.mu.RLock()
	cached, ok := t.cache[key]
	generation := t.generations[key]
	t.mu.RUnlock()

	if ok {
		return copyConfig(cached), nil
	}

	data, found, err := t.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var cfg models.TenantConfig

	if found {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode configuration of tenant %s: %w", tenantName, err)
		}
	}

	t.remember(key, cfg, generation)

	return copyConfig(cfg), nil
}

// remember caches cfg unless key was invalidated after generation was observed.
func (t *TenantConfigs) remember(key string, cfg models.TenantConfig, generation uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.generations[key] != generation {
		return
	}

	t.cache[key] = cfg
}

// Put stores the configuration of a tenant.
func (t *TenantConfigs) Put(ctx context.Context, tenantName string, cfg *models.TenantConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode configuration of tenant %s: %w", tenantName, err)
	}

	key := TenantKey(tenantName)

	if err := t.store.Put(ctx, key, data); err != nil {
		return err
	}

	t.invalidate(key)

	return nil
}

func (t *TenantConfigs) invalidate(key string) {
	t.mu.Lock()
	delete(t.cache, key)
	t.generations[key]++
	t.mu.Unlock()
}

// Watch drops cached documents as they change in the bucket until ctx is done.
func (t *TenantConfigs) Watch(ctx context.Context) error {
	changes, err := t.store.Watch(ctx, tenantKeyPrefix+">")
	if err != nil {
		return err
	}

	go func() {
		for change := range changes {
			t.invalidate(change.Key)
			t.log.Debug().Str("key", change.Key).Msg("Tenant configuration changed")
		}
	}()

	return nil
}

var _ repository.TenantConfigs = (*TenantConfigs)(nil)
