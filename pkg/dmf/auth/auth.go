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

// Package auth resolves the identity behind a DMF request with an ordered chain of
// credential strategies.
package auth

import (
	"context"
	"fmt"

	"github.com/carverauto/fleetradar/pkg/dmf"
	"github.com/carverauto/fleetradar/pkg/logger"
	"github.com/carverauto/fleetradar/pkg/models"
	"github.com/carverauto/fleetradar/pkg/repository"
	"github.com/carverauto/fleetradar/pkg/tenant"
)

const (
	// DefaultCNHeader carries the client certificate common name set by a TLS-terminating proxy.
	DefaultCNHeader = "X-Ssl-Client-Cn"
	// DefaultIssuerHashHeader is the prefix of the numbered issuer hash headers,
	// e.g. X-Ssl-Issuer-Hash-1.
	DefaultIssuerHashHeader = "X-Ssl-Issuer-Hash"

	// StrategyAnonymousDownload names the identities granted for anonymous downloads.
	StrategyAnonymousDownload = "anonymous-download"

	gatewayTokenScheme = "GatewayToken"
	targetTokenScheme  = "TargetToken"
)

// Config holds the server-level authentication settings.
type Config struct {
	CNHeader         string `json:"cn_header"`
	IssuerHashHeader string `json:"issuer_hash_header"`
	// AnonymousFallback lets requests through that no other strategy accepted.
	AnonymousFallback bool `json:"anonymous_fallback"`
}

// ApplyDefaults fills in the header names.
func (c *Config) ApplyDefaults() {
	if c.CNHeader == "" {
		c.CNHeader = DefaultCNHeader
	}

	if c.IssuerHashHeader == "" {
		c.IssuerHashHeader = DefaultIssuerHashHeader
	}
}

// Strategy is one way of establishing an identity.
type Strategy interface {
	Name() string
	// Applicable reports whether the token carries what the strategy inspects.
	Applicable(ctx context.Context, token *models.TenantSecurityToken, cfg *models.TenantConfig) bool
	// Principal returns the identity, or nil when the credentials are not accepted.
	Principal(ctx context.Context, token *models.TenantSecurityToken, cfg *models.TenantConfig) (*tenant.Info, error)
}

// Chain tries strategies in order and returns the first identity found.
type Chain struct {
	strategies []Strategy
	tenants    repository.Tenants
	configs    repository.TenantConfigs
	log        logger.Logger
}

// NewChain returns a chain over explicit strategies.
func NewChain(tenants repository.Tenants, configs repository.TenantConfigs, log logger.Logger, strategies ...Strategy) *Chain {
	return &Chain{
		strategies: strategies,
		tenants:    tenants,
		configs:    configs,
		log:        log,
	}
}

// NewDefaultChain returns the gateway token, security header, target token, anonymous
// download and anonymous fallback strategies in that order.
func NewDefaultChain(cfg Config, store repository.Store, log logger.Logger) *Chain {
	cfg.ApplyDefaults()

	return NewChain(store.Tenants, store.TenantConfigs, log,
		&GatewayTokenStrategy{},
		&SecurityHeaderStrategy{CNHeader: cfg.CNHeader, IssuerHashHeader: cfg.IssuerHashHeader},
		&TargetTokenStrategy{Targets: store.Targets},
		&AnonymousDownloadStrategy{},
		&AnonymousFallbackStrategy{Enabled: cfg.AnonymousFallback},
	)
}

// Authenticate returns the identity behind token. The tenant is resolved first; failures
// to resolve it return dmf.ErrTenantNotExist. When no strategy accepts the token the
// chain fails closed with dmf.ErrUnauthorized.
func (c *Chain) Authenticate(ctx context.Context, token *models.TenantSecurityToken) (*tenant.Info, error) {
	if token == nil {
		return nil, dmf.ErrUnauthorized
	}

	resolved, err := c.resolveTenant(ctx, token)
	if err != nil {
		return nil, err
	}

	scoped := *token
	scoped.Tenant = resolved.Name

	cfg, err := c.configs.Get(ctx, resolved.Name)
	if err != nil {
		return nil, fmt.Errorf("tenant configuration %s: %w", resolved.Name, err)
	}

	// strategies see the request under the tenant, without any privileges
	reqCtx := tenant.WithContext(ctx, tenant.Info{
		Tenant:       resolved.Name,
		TenantID:     resolved.ID,
		ControllerID: token.ControllerID,
		Kind:         tenant.KindAnonymous,
	})

	for _, s := range c.strategies {
		if !s.Applicable(reqCtx, &scoped, cfg) {
			continue
		}

		identity, err := s.Principal(reqCtx, &scoped, cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name(), err)
		}

		if identity == nil {
			c.log.Debug().
				Str("strategy", s.Name()).
				Str("tenant", resolved.Name).
				Str("controller_id", token.ControllerID).
				Msg("Credentials rejected")

			continue
		}

		identity.Tenant = resolved.Name
		identity.TenantID = resolved.ID
		identity.Strategy = s.Name()

		return identity, nil
	}

	return nil, fmt.Errorf("%w: tenant %s controller %q", dmf.ErrUnauthorized, resolved.Name, token.ControllerID)
}

func (c *Chain) resolveTenant(ctx context.Context, token *models.TenantSecurityToken) (*models.Tenant, error) {
	var resolved *models.Tenant

	scope := token.Tenant
	if scope == "" {
		scope = tenant.SystemTenant
	}

	err := tenant.AsSystem(ctx, scope, func(sysCtx context.Context) error {
		var err error

		switch {
		case token.Tenant != "":
			resolved, err = c.tenants.ByName(sysCtx, token.Tenant)
		case token.TenantID != nil:
			resolved, err = c.tenants.ByID(sysCtx, *token.TenantID)
		default:
			err = fmt.Errorf("%w: no tenant in request", dmf.ErrTenantNotExist)
		}

		return err
	})
	if err != nil {
		return nil, err
	}

	return resolved, nil
}
