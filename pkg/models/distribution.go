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

import "time"

// DistributionSet is a versioned bundle of software modules assigned as a unit.
type DistributionSet struct {
	ID      int64             `json:"id"`
	Tenant  string            `json:"tenant"`
	Name    string            `json:"name"`
	Version string            `json:"version"`
	Modules []*SoftwareModule `json:"modules"`
}

// SoftwareModule is one installable component of a distribution set.
type SoftwareModule struct {
	ID        int64            `json:"id"`
	Type      string           `json:"type"`
	Name      string           `json:"name,omitempty"`
	Version   string           `json:"version"`
	Encrypted bool             `json:"encrypted"`
	Artifacts []*Artifact      `json:"artifacts,omitempty"`
	Metadata  []ModuleMetadata `json:"metadata,omitempty"`
}

// ModuleMetadata is a key/value attached to a software module.
// Only TargetVisible entries are sent to devices.
type ModuleMetadata struct {
	Key           string `json:"key"`
	Value         string `json:"value"`
	TargetVisible bool   `json:"target_visible"`
}

// Artifact is a binary file that belongs to a software module.
type Artifact struct {
	ID               int64     `json:"id"`
	SoftwareModuleID int64     `json:"software_module_id"`
	Filename         string    `json:"filename"`
	SHA1             string    `json:"sha1"`
	MD5              string    `json:"md5"`
	SHA256           string    `json:"sha256,omitempty"`
	Size             int64     `json:"size"`
	LastModified     time.Time `json:"last_modified"`
}
