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

// Package status maps device-reported outcomes onto the action state machine.
package status

import (
	"fmt"
	"time"

	"github.com/carverauto/fleetradar/pkg/dmf"
	"github.com/carverauto/fleetradar/pkg/models"
)

// DefaultMaxMessages bounds the free-text messages of one status report.
const DefaultMaxMessages = 50

var (
	// ErrUnknownStatus is returned for codes outside the mapping table.
	ErrUnknownStatus = fmt.Errorf("%w: unknown action status", dmf.ErrProtocolViolation)
	// ErrCancelRejectedNotCanceling is returned for CANCEL_REJECTED on an action that is not being canceled.
	ErrCancelRejectedNotCanceling = fmt.Errorf("%w: CANCEL_REJECTED requires a canceling action", dmf.ErrInvalidStatusTransition)
)

// Map converts a reported code into the internal status of action.
func Map(code models.ReportedStatus, action *models.Action) (models.Status, error) {
	switch code {
	case models.ReportedDownload:
		return models.StatusDownload, nil
	case models.ReportedRetrieved:
		return models.StatusRetrieved, nil
	case models.ReportedRunning, models.ReportedConfirmed:
		return models.StatusRunning, nil
	case models.ReportedCanceled:
		return models.StatusCanceled, nil
	case models.ReportedFinished:
		return models.StatusFinished, nil
	case models.ReportedError:
		return models.StatusError, nil
	case models.ReportedWarning:
		return models.StatusWarning, nil
	case models.ReportedDownloaded:
		return models.StatusDownloaded, nil
	case models.ReportedDenied:
		return models.StatusWaitForConfirmation, nil
	case models.ReportedCancelRejected:
		if action == nil || !action.CancelingOrCanceled() {
			return "", ErrCancelRejectedNotCanceling
		}

		return models.StatusCancelRejected, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, code)
}

// Apply records entry on action and moves the action to its successor state.
// It returns false and leaves the action untouched when the action is already terminal.
func Apply(action *models.Action, entry models.ActionStatus) bool {
	if action.Status.Terminal() {
		return false
	}

	action.History = append(action.History, entry)
	action.Status = entry.Status

	switch {
	case entry.Status.Terminal():
		action.Active = false
	case entry.Status == models.StatusDownloaded && action.DownloadOnly():
		action.Status = models.StatusFinished
		action.Active = false
	case entry.Status == models.StatusCancelRejected:
		// a refused cancellation resumes the update
		action.Status = models.StatusRunning
	}

	return true
}

// Confirm applies a CONFIRMED report. The action leaves WAIT_FOR_CONFIRMATION and runs.
func Confirm(action *models.Action, entry models.ActionStatus) bool {
	entry.Status = models.StatusRunning

	return Apply(action, entry)
}

// Deny applies a DENIED report. The action keeps waiting for confirmation.
func Deny(action *models.Action, entry models.ActionStatus) bool {
	entry.Status = models.StatusWaitForConfirmation

	return Apply(action, entry)
}

// ShouldProceed reports whether the target should be sent its next action after a
// status was applied.
func ShouldProceed(action *models.Action, now time.Time) bool {
	return !action.Active || (action.HasMaintenanceSchedule() && action.MaintenanceWindowAvailable(now))
}

// CheckQuota rejects reports carrying more than maxMessages messages.
func CheckQuota(messages []string, maxMessages int) error {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}

	if len(messages) > maxMessages {
		return fmt.Errorf("%w: %d status messages, at most %d allowed", dmf.ErrQuotaExceeded, len(messages), maxMessages)
	}

	return nil
}

// CorrelationMessage is appended to the messages of a report carrying a correlation id.
func CorrelationMessage(correlationID string) string {
	return "Update Server: DMF message correlation-id " + correlationID
}

// Entry builds the history entry of a report. A zero timestamp falls back to now.
func Entry(report *models.ActionUpdateStatus, st models.Status, correlationID string, now time.Time) models.ActionStatus {
	messages := append([]string(nil), report.Messages...)
	if correlationID != "" {
		messages = append(messages, CorrelationMessage(correlationID))
	}

	ts := now
	if report.Timestamp > 0 {
		ts = time.UnixMilli(report.Timestamp)
	}

	var code *int
	if report.Code != nil {
		c := *report.Code
		code = &c
	}

	return models.ActionStatus{
		Status:    st,
		Code:      code,
		Messages:  messages,
		Timestamp: ts,
	}
}
