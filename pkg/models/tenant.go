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

package models

// Tenant is an isolated customer namespace.
type Tenant struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TenantConfig holds the per-tenant switches read by the protocol engine.
// It is read-only while a message is being processed.
type TenantConfig struct {
	MultiAssignmentsEnabled bool `json:"multi_assignments_enabled"`
	BatchAssignmentsEnabled bool `json:"batch_assignments_enabled"`
	ConfirmationFlowEnabled bool `json:"confirmation_flow_enabled"`

	GatewayTokenEnabled bool   `json:"gateway_token_enabled"`
	GatewayToken        string `json:"gateway_token,omitempty"`

	TargetTokenEnabled bool `json:"target_token_enabled"`

	CertAuthEnabled        bool     `json:"cert_auth_enabled"`
	AuthorizedIssuerHashes []string `json:"authorized_issuer_hashes,omitempty"`

	AnonymousDownloadEnabled bool `json:"anonymous_download_enabled"`
}
