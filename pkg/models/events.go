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

import (
	"encoding/json"
	"time"
)

// CloudEvent is the CloudEvents 1.0 JSON envelope used on the domain event bus.
type CloudEvent struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Source          string          `json:"source"`
	Type            string          `json:"type"`
	DataContentType string          `json:"datacontenttype,omitempty"`
	Subject         string          `json:"subject,omitempty"`
	Time            *time.Time      `json:"time,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
}

// AssignmentEvent announces that a distribution set was assigned to targets.
type AssignmentEvent struct {
	Tenant            string      `json:"tenant"`
	DistributionSetID int64       `json:"distribution_set_id"`
	Actions           []ActionRef `json:"actions"`
}

// CancelEvent announces that actions were moved to CANCELING.
type CancelEvent struct {
	Tenant  string      `json:"tenant"`
	Actions []ActionRef `json:"actions"`
}

// MultiActionEvent asks for the full set of active actions to be resent to targets.
type MultiActionEvent struct {
	Tenant        string   `json:"tenant"`
	ControllerIDs []string `json:"controller_ids"`
}

// AttributesRequestEvent asks a device to report its attributes.
type AttributesRequestEvent struct {
	Tenant       string `json:"tenant"`
	ControllerID string `json:"controller_id"`
}

// TargetDeletedEvent announces the deletion of a target. Address is the last known
// address because the target itself is already gone.
type TargetDeletedEvent struct {
	Tenant       string `json:"tenant"`
	ControllerID string `json:"controller_id"`
	Address      string `json:"address"`
}
