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
	"time"
)

// ActionType controls how urgently a device should apply an assignment.
type ActionType string

const (
	ActionTypeForced       ActionType = "FORCED"
	ActionTypeSoft         ActionType = "SOFT"
	ActionTypeTimeForced   ActionType = "TIMEFORCED"
	ActionTypeDownloadOnly ActionType = "DOWNLOAD_ONLY"
)

// Valid reports whether t is one of the known action types.
func (t ActionType) Valid() bool {
	switch t {
	case ActionTypeForced, ActionTypeSoft, ActionTypeTimeForced, ActionTypeDownloadOnly:
		return true
	}

	return false
}

// Status is the internal state of an action.
type Status string

const (
	StatusDownload            Status = "DOWNLOAD"
	StatusDownloaded          Status = "DOWNLOADED"
	StatusRetrieved           Status = "RETRIEVED"
	StatusRunning             Status = "RUNNING"
	StatusCanceling           Status = "CANCELING"
	StatusCanceled            Status = "CANCELED"
	StatusCancelRejected      Status = "CANCEL_REJECTED"
	StatusFinished            Status = "FINISHED"
	StatusError               Status = "ERROR"
	StatusWarning             Status = "WARNING"
	StatusWaitForConfirmation Status = "WAIT_FOR_CONFIRMATION"
	StatusScheduled           Status = "SCHEDULED"
)

// Terminal reports whether s closes an action for good.
func (s Status) Terminal() bool {
	switch s {
	case StatusFinished, StatusError, StatusCanceled:
		return true
	case StatusDownload, StatusDownloaded, StatusRetrieved, StatusRunning, StatusCanceling,
		StatusCancelRejected, StatusWarning, StatusWaitForConfirmation, StatusScheduled:
		return false
	}

	return false
}

// ActionStatus is one immutable entry in an action's history.
type ActionStatus struct {
	Status    Status    `json:"status"`
	Code      *int      `json:"code,omitempty"`
	Messages  []string  `json:"messages,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Action is the assignment of one distribution set to one target.
type Action struct {
	ID                int64              `json:"id"`
	Tenant            string             `json:"tenant"`
	ControllerID      string             `json:"controller_id"`
	DistributionSetID int64              `json:"distribution_set_id"`
	Type              ActionType         `json:"action_type"`
	Weight            int                `json:"weight"`
	MaintenanceWindow *MaintenanceWindow `json:"maintenance_window,omitempty"`
	Active            bool               `json:"active"`
	Status            Status             `json:"status"`
	History           []ActionStatus     `json:"history,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`

	// Revision is the number of history entries persisted when the action was loaded.
	Revision int `json:"-"`
}

// CancelingOrCanceled reports whether a cancellation is pending or done.
func (a *Action) CancelingOrCanceled() bool {
	return a.Status == StatusCanceling || a.Status == StatusCanceled
}

// WaitingConfirmation reports whether the device must confirm before installing.
func (a *Action) WaitingConfirmation() bool {
	return a.Status == StatusWaitForConfirmation
}

// DownloadOnly reports whether the action must never be installed.
func (a *Action) DownloadOnly() bool {
	return a.Type == ActionTypeDownloadOnly
}

// HasMaintenanceSchedule reports whether the action is bound to a maintenance schedule.
func (a *Action) HasMaintenanceSchedule() bool {
	return a.MaintenanceWindow != nil && a.MaintenanceWindow.Schedule != ""
}

// MaintenanceWindowAvailable reports whether installation may start at now.
// Actions without a schedule are always available.
func (a *Action) MaintenanceWindowAvailable(now time.Time) bool {
	if !a.HasMaintenanceSchedule() {
		return true
	}

	return a.MaintenanceWindow.Open(now)
}

// Clone returns a deep copy of the action.
func (a *Action) Clone() *Action {
	if a == nil {
		return nil
	}

	c := *a

	if a.MaintenanceWindow != nil {
		mw := *a.MaintenanceWindow
		c.MaintenanceWindow = &mw
	}

	if a.History != nil {
		c.History = make([]ActionStatus, len(a.History))
		for i := range a.History {
			c.History[i] = a.History[i].clone()
		}
	}

	return &c
}

func (s ActionStatus) clone() ActionStatus {
	c := s

	if s.Code != nil {
		code := *s.Code
		c.Code = &code
	}

	if s.Messages != nil {
		c.Messages = append([]string(nil), s.Messages...)
	}

	return c
}

// ActionRef addresses one action of one target inside a domain event.
type ActionRef struct {
	ControllerID string `json:"controller_id"`
	ActionID     int64  `json:"action_id"`
}
