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

// Package tenant carries the authenticated identity of a request through a context.
//
// Identity is request scoped. Code that fans work out to goroutines passes a copy of
// the Info into each worker with WithContext rather than sharing the pointer.
//
// This package supports:
//   - Context-based identity propagation
//   - A single, explicit system-privilege scope for tenant resolution
//   - Tenant-scoped NATS subject construction
package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type ctxKey string

const tenantCtxKey ctxKey = "tenant"

// SystemTenant scopes system work that is not bound to one tenant yet, such as
// resolving a tenant from its numeric id.
const SystemTenant = "_system"

// Kind classifies how an identity was established.
type Kind string

const (
	// KindController is a device authenticated with its own credentials.
	KindController Kind = "controller"
	// KindGateway is a gateway acting for devices of one tenant.
	KindGateway Kind = "gateway"
	// KindAnonymous is an unauthenticated caller that was let through.
	KindAnonymous Kind = "anonymous"
	// KindSystem is the server itself, used only to resolve tenants.
	KindSystem Kind = "system"
)

var (
	// ErrNoTenantInContext indicates no tenant info was found in the context.
	ErrNoTenantInContext = errors.New("no tenant info in context")

	// ErrTenantRequired indicates an empty tenant name was supplied.
	ErrTenantRequired = errors.New("tenant is required")
)

// Info is the identity of the caller a piece of work is done for.
type Info struct {
	// Tenant is the tenant name as carried in DMF headers.
	Tenant string `json:"tenant"`

	// TenantID is the resolved numeric tenant id, zero until resolved.
	TenantID int64 `json:"tenant_id,omitempty"`

	// ControllerID is the device identity, empty for gateways and anonymous callers.
	ControllerID string `json:"controller_id,omitempty"`

	Kind Kind `json:"kind"`

	// Strategy names the authentication strategy that produced the identity.
	Strategy string `json:"strategy,omitempty"`
}

// String returns a human-readable representation of the identity.
func (i Info) String() string {
	if i.ControllerID == "" {
		return fmt.Sprintf("%s/%s", i.Tenant, i.Kind)
	}

	return fmt.Sprintf("%s/%s/%s", i.Tenant, i.Kind, i.ControllerID)
}

// Anonymous reports whether the identity carries no device credentials.
func (i Info) Anonymous() bool {
	return i.Kind == KindAnonymous
}

// WithContext returns a new context carrying a copy of info.
func WithContext(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, tenantCtxKey, &info)
}

// FromContext extracts a copy of the identity from a context.
// Returns ErrNoTenantInContext if no tenant info is present.
func FromContext(ctx context.Context) (Info, error) {
	info, ok := ctx.Value(tenantCtxKey).(*Info)
	if !ok || info == nil {
		return Info{}, ErrNoTenantInContext
	}

	return *info, nil
}

// MustFromContext extracts tenant info from a context or panics.
// Use only when tenant presence is guaranteed (e.g., after authentication).
func MustFromContext(ctx context.Context) Info {
	info, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}

	return info
}

// NameFromContext returns the tenant name, or "" if no identity is present.
func NameFromContext(ctx context.Context) string {
	info, err := FromContext(ctx)
	if err != nil {
		return ""
	}

	return info.Tenant
}

// AsSystem runs fn with system privileges scoped to one tenant. The caller's identity
// is restored for everything outside fn because fn receives a derived context.
func AsSystem(ctx context.Context, tenantName string, fn func(ctx context.Context) error) error {
	if tenantName == "" {
		return ErrTenantRequired
	}

	return fn(WithContext(ctx, Info{Tenant: tenantName, Kind: KindSystem}))
}

// IsSystem reports whether ctx runs with system privileges.
func IsSystem(ctx context.Context) bool {
	info, err := FromContext(ctx)

	return err == nil && info.Kind == KindSystem
}

// Token makes s safe for use as a single NATS subject token.
func Token(s string) string {
	if s == "" {
		return "_"
	}

	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		default:
			return r
		}
	}, s)
}

// Subject builds "<base>.<tenant>[.<tokens>...]" with every token sanitized.
func Subject(base, tenantName string, tokens ...string) string {
	var b strings.Builder

	b.WriteString(strings.TrimSuffix(base, "."))
	b.WriteByte('.')
	b.WriteString(Token(strings.ToLower(tenantName)))

	for _, t := range tokens {
		b.WriteByte('.')
		b.WriteString(Token(t))
	}

	return b.String()
}
