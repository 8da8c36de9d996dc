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
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/carverauto/fleetradar/pkg/dmf"
	"github.com/carverauto/fleetradar/pkg/models"
	"github.com/carverauto/fleetradar/pkg/repository"
	"github.com/carverauto/fleetradar/pkg/tenant"
)

const maxIssuerHashHeaders = 10

// credential returns the value of an "Authorization: <scheme> <value>" header.
func credential(token *models.TenantSecurityToken, scheme string) (string, bool) {
	raw := strings.TrimSpace(token.Header(dmf.HeaderAuthorization))

	got, value, ok := strings.Cut(raw, " ")
	if !ok || !strings.EqualFold(got, scheme) {
		return "", false
	}

	value = strings.TrimSpace(value)

	return value, value != ""
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// GatewayTokenStrategy accepts the tenant-wide gateway token.
type GatewayTokenStrategy struct{}

func (*GatewayTokenStrategy) Name() string { return "gateway-token" }

func (*GatewayTokenStrategy) Applicable(_ context.Context, token *models.TenantSecurityToken, cfg *models.TenantConfig) bool {
	_, ok := credential(token, gatewayTokenScheme)

	return ok && cfg.GatewayTokenEnabled
}

func (*GatewayTokenStrategy) Principal(_ context.Context, token *models.TenantSecurityToken, cfg *models.TenantConfig) (*tenant.Info, error) {
	presented, _ := credential(token, gatewayTokenScheme)
	if cfg.GatewayToken == "" || !equal(presented, cfg.GatewayToken) {
		return nil, nil
	}

	return &tenant.Info{ControllerID: token.ControllerID, Kind: tenant.KindGateway}, nil
}

// SecurityHeaderStrategy trusts a reverse proxy that terminated mutual TLS and forwards
// the client certificate common name and issuer hashes as headers.
type SecurityHeaderStrategy struct {
	CNHeader         string
	IssuerHashHeader string
}

func (*SecurityHeaderStrategy) Name() string { return "security-header" }

func (s *SecurityHeaderStrategy) Applicable(_ context.Context, token *models.TenantSecurityToken, cfg *models.TenantConfig) bool {
	return cfg.CertAuthEnabled && token.Header(s.CNHeader) != ""
}

func (s *SecurityHeaderStrategy) Principal(_ context.Context, token *models.TenantSecurityToken, cfg *models.TenantConfig) (*tenant.Info, error) {
	cn := strings.TrimSpace(token.Header(s.CNHeader))
	if cn == "" || (token.ControllerID != "" && cn != token.ControllerID) {
		return nil, nil
	}

	if !s.issuerAuthorized(token, cfg.AuthorizedIssuerHashes) {
		return nil, nil
	}

	return &tenant.Info{ControllerID: cn, Kind: tenant.KindController}, nil
}

func (s *SecurityHeaderStrategy) issuerAuthorized(token *models.TenantSecurityToken, authorized []string) bool {
	for i := 1; i <= maxIssuerHashHeaders; i++ {
		presented := strings.TrimSpace(token.Header(fmt.Sprintf("%s-%d", s.IssuerHashHeader, i)))
		if presented == "" {
			continue
		}

		for _, hash := range authorized {
			if strings.EqualFold(presented, strings.TrimSpace(hash)) {
				return true
			}
		}
	}

	return false
}

// TargetTokenStrategy accepts the per-device security token.
type TargetTokenStrategy struct {
	Targets repository.Targets
}

func (*TargetTokenStrategy) Name() string { return "target-token" }

func (*TargetTokenStrategy) Applicable(_ context.Context, token *models.TenantSecurityToken, cfg *models.TenantConfig) bool {
	_, ok := credential(token, targetTokenScheme)

	return ok && cfg.TargetTokenEnabled && (token.ControllerID != "" || token.TargetID != nil)
}

func (s *TargetTokenStrategy) Principal(ctx context.Context, token *models.TenantSecurityToken, _ *models.TenantConfig) (*tenant.Info, error) {
	presented, _ := credential(token, targetTokenScheme)

	var (
		target *models.Target
		err    error
	)

	if token.ControllerID != "" {
		target, err = s.Targets.Get(ctx, token.ControllerID)
	} else {
		target, err = s.Targets.GetByID(ctx, *token.TargetID)
	}

	if errors.Is(err, dmf.ErrEntityNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	if target.SecurityToken == "" || !equal(presented, target.SecurityToken) {
		return nil, nil
	}

	return &tenant.Info{ControllerID: target.ControllerID, Kind: tenant.KindController}, nil
}

// AnonymousDownloadStrategy lets anyone download when the tenant allows it. It never
// applies to device messages.
type AnonymousDownloadStrategy struct{}

func (*AnonymousDownloadStrategy) Name() string { return StrategyAnonymousDownload }

func (*AnonymousDownloadStrategy) Applicable(_ context.Context, token *models.TenantSecurityToken, cfg *models.TenantConfig) bool {
	return cfg.AnonymousDownloadEnabled && token.Purpose == models.PurposeDownload
}

func (*AnonymousDownloadStrategy) Principal(_ context.Context, token *models.TenantSecurityToken, _ *models.TenantConfig) (*tenant.Info, error) {
	return &tenant.Info{ControllerID: token.ControllerID, Kind: tenant.KindAnonymous}, nil
}

// AnonymousFallbackStrategy lets everything through when enabled server-wide.
type AnonymousFallbackStrategy struct {
	Enabled bool
}

func (*AnonymousFallbackStrategy) Name() string { return "anonymous-fallback" }

func (s *AnonymousFallbackStrategy) Applicable(context.Context, *models.TenantSecurityToken, *models.TenantConfig) bool {
	return s.Enabled
}

func (*AnonymousFallbackStrategy) Principal(_ context.Context, token *models.TenantSecurityToken, _ *models.TenantConfig) (*tenant.Info, error) {
	return &tenant.Info{ControllerID: token.ControllerID, Kind: tenant.KindAnonymous}, nil
}
