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

package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/fleetradar/pkg/dmf"
	"github.com/carverauto/fleetradar/pkg/logger"
	"github.com/carverauto/fleetradar/pkg/models"
	"github.com/carverauto/fleetradar/pkg/repository"
	"github.com/carverauto/fleetradar/pkg/tenant"
)

type fixture struct {
	tenants *repository.MockTenants
	configs *repository.MockTenantConfigs
	targets *repository.MockTargets
	chain   *Chain
}

func newFixture(t *testing.T, cfg models.TenantConfig, fallback bool) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)

	f := &fixture{
		tenants: repository.NewMockTenants(ctrl),
		configs: repository.NewMockTenantConfigs(ctrl),
		targets: repository.NewMockTargets(ctrl),
	}

	f.tenants.EXPECT().ByName(gomock.Any(), "acme").DoAndReturn(
		func(ctx context.Context, _ string) (*models.Tenant, error) {
			assert.True(t, tenant.IsSystem(ctx), "tenant lookup must run as system")

			return &models.Tenant{ID: 7, Name: "acme"}, nil
		}).AnyTimes()
	f.configs.EXPECT().Get(gomock.Any(), "acme").Return(&cfg, nil).AnyTimes()

	f.chain = NewDefaultChain(Config{AnonymousFallback: fallback}, repository.Store{
		Tenants:       f.tenants,
		TenantConfigs: f.configs,
		Targets:       f.targets,
	}, logger.NewTestLogger())

	return f
}

func token(headers map[string]string) *models.TenantSecurityToken {
	return &models.TenantSecurityToken{Tenant: "acme", ControllerID: "dev1", Headers: headers}
}

func TestGatewayToken(t *testing.T) {
	f := newFixture(t, models.TenantConfig{GatewayTokenEnabled: true, GatewayToken: "secret"}, false)

	id, err := f.chain.Authenticate(context.Background(), token(map[string]string{"authorization": "GatewayToken secret"}))
	require.NoError(t, err)
	assert.Equal(t, tenant.KindGateway, id.Kind)
	assert.Equal(t, "gateway-token", id.Strategy)
	assert.Equal(t, int64(7), id.TenantID)

	_, err = f.chain.Authenticate(context.Background(), token(map[string]string{"Authorization": "GatewayToken wrong"}))
	require.ErrorIs(t, err, dmf.ErrUnauthorized)
}

func TestGatewayTokenDisabled(t *testing.T) {
	f := newFixture(t, models.TenantConfig{GatewayToken: "secret"}, false)

	_, err := f.chain.Authenticate(context.Background(), token(map[string]string{"Authorization": "GatewayToken secret"}))
	require.ErrorIs(t, err, dmf.ErrUnauthorized)
}

func TestSecurityHeader(t *testing.T) {
	f := newFixture(t, models.TenantConfig{CertAuthEnabled: true, AuthorizedIssuerHashes: []string{"ABCDEF"}}, false)

	id, err := f.chain.Authenticate(context.Background(), token(map[string]string{
		"X-Ssl-Client-Cn":     "dev1",
		"X-Ssl-Issuer-Hash-2": "abcdef",
	}))
	require.NoError(t, err)
	assert.Equal(t, tenant.KindController, id.Kind)
	assert.Equal(t, "dev1", id.ControllerID)

	_, err = f.chain.Authenticate(context.Background(), token(map[string]string{
		"X-Ssl-Client-Cn":     "dev2",
		"X-Ssl-Issuer-Hash-1": "abcdef",
	}))
	require.ErrorIs(t, err, dmf.ErrUnauthorized)

	_, err = f.chain.Authenticate(context.Background(), token(map[string]string{
		"X-Ssl-Client-Cn":     "dev1",
		"X-Ssl-Issuer-Hash-1": "other",
	}))
	require.ErrorIs(t, err, dmf.ErrUnauthorized)
}

func TestTargetToken(t *testing.T) {
	f := newFixture(t, models.TenantConfig{TargetTokenEnabled: true}, false)

	f.targets.EXPECT().Get(gomock.Any(), "dev1").DoAndReturn(
		func(ctx context.Context, _ string) (*models.Target, error) {
			info, err := tenant.FromContext(ctx)
			require.NoError(t, err)
			assert.Equal(t, "acme", info.Tenant)
			assert.False(t, tenant.IsSystem(ctx))

			return &models.Target{ControllerID: "dev1", SecurityToken: "t0k"}, nil
		}).Times(2)

	id, err := f.chain.Authenticate(context.Background(), token(map[string]string{"Authorization": "TargetToken t0k"}))
	require.NoError(t, err)
	assert.Equal(t, "target-token", id.Strategy)

	_, err = f.chain.Authenticate(context.Background(), token(map[string]string{"Authorization": "TargetToken nope"}))
	require.ErrorIs(t, err, dmf.ErrUnauthorized)
}

func TestTargetTokenRepositoryFailureIsReturned(t *testing.T) {
	f := newFixture(t, models.TenantConfig{TargetTokenEnabled: true}, true)
	boom := errors.New("db down")

	f.targets.EXPECT().Get(gomock.Any(), "dev1").Return(nil, boom)

	_, err := f.chain.Authenticate(context.Background(), token(map[string]string{"Authorization": "TargetToken t0k"}))
	require.ErrorIs(t, err, boom)
	assert.False(t, dmf.IsFatal(err))
}

func TestFirstMatchWins(t *testing.T) {
	f := newFixture(t, models.TenantConfig{
		GatewayTokenEnabled:      true,
		GatewayToken:             "secret",
		AnonymousDownloadEnabled: true,
	}, true)

	id, err := f.chain.Authenticate(context.Background(), token(map[string]string{"Authorization": "GatewayToken secret"}))
	require.NoError(t, err)
	assert.Equal(t, "gateway-token", id.Strategy)

	download := token(nil)
	download.Purpose = models.PurposeDownload

	id, err = f.chain.Authenticate(context.Background(), download)
	require.NoError(t, err)
	assert.Equal(t, StrategyAnonymousDownload, id.Strategy)
	assert.True(t, id.Anonymous())
}

func TestAnonymousDownloadOnlyAuthorizesDownloads(t *testing.T) {
	f := newFixture(t, models.TenantConfig{AnonymousDownloadEnabled: true}, false)

	_, err := f.chain.Authenticate(context.Background(), token(nil))
	require.ErrorIs(t, err, dmf.ErrUnauthorized)

	download := token(nil)
	download.Purpose = models.PurposeDownload

	id, err := f.chain.Authenticate(context.Background(), download)
	require.NoError(t, err)
	assert.Equal(t, StrategyAnonymousDownload, id.Strategy)
}

func TestAnonymousFallback(t *testing.T) {
	f := newFixture(t, models.TenantConfig{}, true)

	id, err := f.chain.Authenticate(context.Background(), token(nil))
	require.NoError(t, err)
	assert.Equal(t, "anonymous-fallback", id.Strategy)
}

func TestFailsClosed(t *testing.T) {
	f := newFixture(t, models.TenantConfig{}, false)

	_, err := f.chain.Authenticate(context.Background(), token(nil))
	require.ErrorIs(t, err, dmf.ErrUnauthorized)
	assert.True(t, dmf.IsFatal(err))

	_, err = f.chain.Authenticate(context.Background(), nil)
	require.ErrorIs(t, err, dmf.ErrUnauthorized)
}

func TestTenantResolvedByID(t *testing.T) {
	ctrl := gomock.NewController(t)
	tenants := repository.NewMockTenants(ctrl)
	configs := repository.NewMockTenantConfigs(ctrl)

	tenants.EXPECT().ByID(gomock.Any(), int64(7)).DoAndReturn(
		func(ctx context.Context, _ int64) (*models.Tenant, error) {
			assert.True(t, tenant.IsSystem(ctx))

			return &models.Tenant{ID: 7, Name: "acme"}, nil
		})
	tenants.EXPECT().ByID(gomock.Any(), int64(8)).Return(nil, dmf.ErrTenantNotExist)
	configs.EXPECT().Get(gomock.Any(), "acme").Return(&models.TenantConfig{}, nil)

	chain := NewChain(tenants, configs, logger.NewTestLogger(), &AnonymousFallbackStrategy{Enabled: true})

	caller := context.Background()
	id7 := int64(7)

	id, err := chain.Authenticate(caller, &models.TenantSecurityToken{TenantID: &id7, ControllerID: "dev1"})
	require.NoError(t, err)
	assert.Equal(t, "acme", id.Tenant)
	assert.Equal(t, tenant.KindAnonymous, id.Kind)

	_, err = tenant.FromContext(caller)
	require.ErrorIs(t, err, tenant.ErrNoTenantInContext)

	id8 := int64(8)
	_, err = chain.Authenticate(caller, &models.TenantSecurityToken{TenantID: &id8})
	require.ErrorIs(t, err, dmf.ErrTenantNotExist)

	_, err = chain.Authenticate(caller, &models.TenantSecurityToken{})
	require.ErrorIs(t, err, dmf.ErrTenantNotExist)
}
