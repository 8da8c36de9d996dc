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

import "strings"

// Wire payloads of the device management federation (DMF) protocol.

// ReportedStatus is an outcome code sent by a device.
type ReportedStatus string

const (
	ReportedDownload       ReportedStatus = "DOWNLOAD"
	ReportedDownloaded     ReportedStatus = "DOWNLOADED"
	ReportedRetrieved      ReportedStatus = "RETRIEVED"
	ReportedRunning        ReportedStatus = "RUNNING"
	ReportedFinished       ReportedStatus = "FINISHED"
	ReportedError          ReportedStatus = "ERROR"
	ReportedWarning        ReportedStatus = "WARNING"
	ReportedCanceled       ReportedStatus = "CANCELED"
	ReportedCancelRejected ReportedStatus = "CANCEL_REJECTED"
	ReportedConfirmed      ReportedStatus = "CONFIRMED"
	ReportedDenied         ReportedStatus = "DENIED"
)

// ActionUpdateStatus is the body of EVENT/UPDATE_ACTION_STATUS.
type ActionUpdateStatus struct {
	ActionID         int64          `json:"actionId"`
	SoftwareModuleID *int64         `json:"softwareModuleId,omitempty"`
	ActionStatus     ReportedStatus `json:"actionStatus"`
	Timestamp        int64          `json:"timestamp,omitempty"`
	Messages         []string       `json:"message,omitempty"`
	Code             *int           `json:"code,omitempty"`
}

// CreateThing is the optional body of THING_CREATED.
type CreateThing struct {
	Name            string           `json:"name,omitempty"`
	Type            string           `json:"type,omitempty"`
	AttributeUpdate *AttributeUpdate `json:"attributeUpdate,omitempty"`
}

// AttributeUpdate is the body of EVENT/UPDATE_ATTRIBUTES.
type AttributeUpdate struct {
	Attributes map[string]string   `json:"attributes"`
	Mode       AttributeUpdateMode `json:"mode,omitempty"`
}

// AutoConfirmation is the body of EVENT/UPDATE_AUTO_CONFIRM.
type AutoConfirmation struct {
	Enabled   bool   `json:"enabled"`
	Initiator string `json:"initiator,omitempty"`
	Remark    string `json:"remark,omitempty"`
}

// DownloadRequest is the body of DOWNLOAD and DOWNLOAD_AND_INSTALL.
type DownloadRequest struct {
	ActionID            int64               `json:"actionId"`
	TargetSecurityToken string              `json:"targetSecurityToken,omitempty"`
	SoftwareModules     []DMFSoftwareModule `json:"softwareModules"`
}

// ActionRequest is the body of CANCEL_DOWNLOAD, standalone or inside MULTI_ACTION.
type ActionRequest struct {
	ActionID int64 `json:"actionId"`
}

// DMFSoftwareModule is a software module as seen by a device.
type DMFSoftwareModule struct {
	ModuleID      int64         `json:"moduleId"`
	ModuleType    string        `json:"moduleType"`
	ModuleVersion string        `json:"moduleVersion"`
	Encrypted     bool          `json:"encrypted"`
	Artifacts     []DMFArtifact `json:"artifacts"`
	Metadata      []DMFMetadata `json:"metadata,omitempty"`
}

// DMFArtifact is an artifact with its per-protocol download URLs.
type DMFArtifact struct {
	Filename     string            `json:"filename"`
	URLs         map[string]string `json:"urls"`
	Hashes       DMFArtifactHash   `json:"hashes"`
	Size         int64             `json:"size"`
	LastModified int64             `json:"lastModified,omitempty"`
}

// DMFArtifactHash carries content hashes of an artifact.
type DMFArtifactHash struct {
	SHA1   string `json:"sha1"`
	MD5    string `json:"md5"`
	SHA256 string `json:"sha256,omitempty"`
}

// DMFMetadata is a target-visible key/value of a software module.
type DMFMetadata struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// MultiActionElement is one action inside a MULTI_ACTION envelope.
// Action holds a DownloadRequest or an ActionRequest depending on Topic.
type MultiActionElement struct {
	Topic  string `json:"topic"`
	Weight int    `json:"weight"`
	Action any    `json:"action"`
}

// MultiActionRequest is the body of MULTI_ACTION.
type MultiActionRequest struct {
	Elements []MultiActionElement `json:"elements"`
}

// BatchTarget addresses one device inside a batch assignment.
type BatchTarget struct {
	ControllerID        string `json:"controllerId"`
	ActionID            int64  `json:"actionId"`
	TargetSecurityToken string `json:"targetSecurityToken,omitempty"`
}

// BatchDownloadRequest is the body of BATCH_DOWNLOAD and BATCH_DOWNLOAD_AND_INSTALL.
type BatchDownloadRequest struct {
	Timestamp       int64               `json:"timestamp"`
	Targets         []BatchTarget       `json:"targets"`
	SoftwareModules []DMFSoftwareModule `json:"softwareModules"`
}

// FileResource identifies an artifact in an authentication request.
// Exactly one of the fields is expected to be set.
type FileResource struct {
	SHA1                   string                  `json:"sha1,omitempty"`
	ArtifactID             *int64                  `json:"artifactId,omitempty"`
	Filename               string                  `json:"filename,omitempty"`
	SoftwareModuleFilename *SoftwareModuleFilename `json:"softwareModuleFilenameResource,omitempty"`
}

// SoftwareModuleFilename identifies an artifact by module and filename.
type SoftwareModuleFilename struct {
	SoftwareModuleID int64  `json:"softwareModuleId"`
	Filename         string `json:"filename"`
}

// TokenPurpose tells strategies what an authentication call is for.
type TokenPurpose string

const (
	// PurposeMessage authenticates an inbound device message. It is the zero value.
	PurposeMessage TokenPurpose = ""
	// PurposeDownload authorizes an artifact download.
	PurposeDownload TokenPurpose = "download"
)

// TenantSecurityToken is the credential bundle of one authentication call.
// It lives only for the duration of that call.
type TenantSecurityToken struct {
	// Purpose is set by the server, never decoded from a request.
	Purpose      TokenPurpose      `json:"-"`
	Tenant       string            `json:"tenant,omitempty"`
	TenantID     *int64            `json:"tenantId,omitempty"`
	ControllerID string            `json:"controllerId,omitempty"`
	TargetID     *int64            `json:"targetId,omitempty"`
	FileResource *FileResource     `json:"fileResource,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
}

// Header returns the value of a header, matching the name case-insensitively.
func (t *TenantSecurityToken) Header(name string) string {
	if t == nil {
		return ""
	}

	if v, ok := t.Headers[name]; ok {
		return v
	}

	for k, v := range t.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}

	return ""
}

// DownloadResponse answers an authentication request.
type DownloadResponse struct {
	ResponseCode int               `json:"responseCode"`
	Message      string            `json:"message,omitempty"`
	DownloadURL  string            `json:"downloadUrl,omitempty"`
	Artifact     *DownloadArtifact `json:"artifact,omitempty"`
}

// DownloadArtifact describes the artifact granted by a DownloadResponse.
type DownloadArtifact struct {
	Size         int64           `json:"size"`
	Hashes       DMFArtifactHash `json:"hashes"`
	LastModified int64           `json:"lastModified,omitempty"`
}
