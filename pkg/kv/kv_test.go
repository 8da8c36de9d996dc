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
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleetradar/pkg/logger"
	"github.com/carverauto/fleetradar/pkg/models"
)

func newStore(t *testing.T) *NatsStore {
	t.Helper()

	srv, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	})
	require.NoError(t, err)

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Fatalf("embedded NATS server not ready for connections")
	}

	t.Cleanup(srv.Shutdown)

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	store, err := NewNatsStore(context.Background(), js, "", logger.NewTestLogger())
	require.NoError(t, err)

	return store
}

func TestNatsStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	_, found, err := store.Get(ctx, "config/dmf.json")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Put(ctx, "config/dmf.json", []byte(`{"workers":4}`)))

	value, found, err := store.Get(ctx, "config/dmf.json")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"workers":4}`, string(value))

	require.NoError(t, store.Delete(ctx, "config/dmf.json"))
	require.NoError(t, store.Delete(ctx, "config/missing.json"))

	_, found, err = store.Get(ctx, "config/dmf.json")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTenantKey(t *testing.T) {
	assert.Equal(t, "tenants.acme", TenantKey("ACME"))
	assert.Equal(t, "tenants.acme_eu", TenantKey("Acme.EU"))
}

func TestTenantConfigsDefaultsWhenMissing(t *testing.T) {
	configs := NewTenantConfigs(newStore(t), logger.NewTestLogger())

	cfg, err := configs.Get(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, models.TenantConfig{}, *cfg)
}

func TestTenantConfigsPutInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	configs := NewTenantConfigs(newStore(t), logger.NewTestLogger())

	cfg, err := configs.Get(ctx, "acme")
	require.NoError(t, err)
	assert.False(t, cfg.BatchAssignmentsEnabled)

	require.NoError(t, configs.Put(ctx, "ACME", &models.TenantConfig{
		BatchAssignmentsEnabled: true,
		AuthorizedIssuerHashes:  []string{"ab12"},
	}))

	cfg, err = configs.Get(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, cfg.BatchAssignmentsEnabled)
	assert.Equal(t, []string{"ab12"}, cfg.AuthorizedIssuerHashes)

	cfg.AuthorizedIssuerHashes[0] = "changed"

	again, err := configs.Get(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, []string{"ab12"}, again.AuthorizedIssuerHashes)
}

func TestTenantConfigsDropsReadRacingInvalidation(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	configs := NewTenantConfigs(store, logger.NewTestLogger())
	key := TenantKey("acme")

	configs.mu.RLock()
	generation := configs.generations[key]
	configs.mu.RUnlock()

	// a read fetched the old document, then a writer changed it before the read cached
	require.NoError(t, configs.Put(ctx, "acme", &models.TenantConfig{TargetTokenEnabled: true}))
	configs.remember(key, models.TenantConfig{}, generation)

	cfg, err := configs.Get(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, cfg.TargetTokenEnabled)
}

func TestTenantConfigsWatchSeesOtherWriters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := newStore(t)
	reader := NewTenantConfigs(store, logger.NewTestLogger())
	writer := NewTenantConfigs(store, logger.NewTestLogger())

	require.NoError(t, reader.Watch(ctx))

	cfg, err := reader.Get(ctx, "acme")
	require.NoError(t, err)
	assert.False(t, cfg.MultiAssignmentsEnabled)

	require.NoError(t, writer.Put(ctx, "acme", &models.TenantConfig{MultiAssignmentsEnabled: true}))

	assert.Eventually(t, func() bool {
		cfg, err := reader.Get(ctx, "acme")

		return err == nil && cfg.MultiAssignmentsEnabled
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatchReportsDeletes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := newStore(t)

	changes, err := store.Watch(ctx, "tenants.>")
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "tenants.acme", []byte(`{}`)))
	require.NoError(t, store.Delete(ctx, "tenants.acme"))

	put := <-changes
	assert.Equal(t, "tenants.acme", put.Key)
	assert.Equal(t, []byte(`{}`), put.Value)

	del := <-changes
	assert.Equal(t, "tenants.acme", del.Key)
	assert.Nil(t, del.Value)

	cancel()

	for range changes {
	}
}
