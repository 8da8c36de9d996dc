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

package inbound

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/carverauto/fleetradar/pkg/dmf"
	"github.com/carverauto/fleetradar/pkg/dmf/status"
	"github.com/carverauto/fleetradar/pkg/models"
	"github.com/carverauto/fleetradar/pkg/repository"
)

const autoConfirmMessage = "Assignment automatically confirmed by initiator %q"

// updateActionStatus applies a device status report and redispatches when the action
// closed, its maintenance window is open or the device confirmed it.
func (r *Router) updateActionStatus(ctx context.Context, env *dmf.Envelope) error {
	report, err := dmf.DecodeBody[models.ActionUpdateStatus](env.Body)
	if err != nil {
		return err
	}

	if err := status.CheckQuota(report.Messages, r.maxMessages); err != nil {
		return fmt.Errorf("action %d: %w", report.ActionID, err)
	}

	action, err := r.actions.Get(ctx, report.ActionID)
	if err != nil {
		return fmt.Errorf("action %d: %w", report.ActionID, err)
	}

	if action.ControllerID != env.ThingID {
		return fmt.Errorf("%w: action %d is not assigned to %s", dmf.ErrEntityNotFound, action.ID, env.ThingID)
	}

	next, err := status.Map(report.ActionStatus, action)
	if err != nil {
		return fmt.Errorf("action %d: %w", action.ID, err)
	}

	now := r.now()
	entry := status.Entry(report, next, env.CorrelationID, now)

	switch {
	case applied(action, entry, env.CorrelationID):
		r.log.Debug().
			Int64("action_id", action.ID).
			Str("correlation_id", env.CorrelationID).
			Msg("Status update already persisted, resuming redispatch")
	case action.Status.Terminal():
		r.ignoreClosed(action, report)

		return nil
	default:
		persisted, err := r.applyStatus(ctx, action, report, entry)
		if err != nil || !persisted {
			return err
		}
	}

	if report.ActionStatus == models.ReportedConfirmed || status.ShouldProceed(action, now) {
		err := r.dispatcher.Redispatch(ctx, env.ThingID)
		if err != nil && env.CorrelationID == "" {
			// Without a correlation id a redelivery cannot be recognised, so the
			// persisted status must not be requeued.
			r.log.Warn().Err(err).
				Int64("action_id", action.ID).
				Str("thing_id", env.ThingID).
				Msg("Redispatch after status update failed")

			return nil
		}

		return err
	}

	return nil
}

// applyStatus records entry on action. It reports false when the action was closed by a
// concurrent update.
func (r *Router) applyStatus(
	ctx context.Context, action *models.Action, report *models.ActionUpdateStatus, entry models.ActionStatus,
) (bool, error) {
	switch report.ActionStatus {
	case models.ReportedConfirmed:
		status.Confirm(action, entry)
	case models.ReportedDenied:
		status.Deny(action, entry)
	case models.ReportedDownload, models.ReportedDownloaded, models.ReportedRetrieved, models.ReportedRunning,
		models.ReportedFinished, models.ReportedError, models.ReportedWarning, models.ReportedCanceled,
		models.ReportedCancelRejected:
		status.Apply(action, entry)
	}

	if err := r.actions.Update(ctx, action); err != nil {
		if errors.Is(err, repository.ErrActionClosed) {
			r.ignoreClosed(action, report)

			return false, nil
		}

		return false, fmt.Errorf("update action %d: %w", action.ID, err)
	}

	r.log.Debug().
		Int64("action_id", action.ID).
		Str("thing_id", action.ControllerID).
		Str("status", string(action.Status)).
		Bool("active", action.Active).
		Msg("Action status updated")

	return true, nil
}

func (r *Router) ignoreClosed(action *models.Action, report *models.ActionUpdateStatus) {
	r.log.Debug().
		Int64("action_id", action.ID).
		Str("status", string(action.Status)).
		Str("reported", string(report.ActionStatus)).
		Msg("Ignoring status update of closed action")
}

// applied reports whether the last history entry of action was written by the same
// delivery as entry.
func applied(action *models.Action, entry models.ActionStatus, correlationID string) bool {
	if correlationID == "" || len(action.History) == 0 {
		return false
	}

	last := action.History[len(action.History)-1]

	return last.Status == entry.Status && slices.Contains(last.Messages, status.CorrelationMessage(correlationID))
}

// updateAutoConfirm switches auto-confirmation of the device. Enabling it confirms
// every action that waits for confirmation.
func (r *Router) updateAutoConfirm(ctx context.Context, env *dmf.Envelope) error {
	body, err := dmf.DecodeBody[models.AutoConfirmation](env.Body)
	if err != nil {
		return err
	}

	target, err := r.targets.Get(ctx, env.ThingID)
	if err != nil {
		return fmt.Errorf("target %s: %w", env.ThingID, err)
	}

	if !body.Enabled {
		target.AutoConfirm = nil

		if err := r.targets.Update(ctx, target); err != nil {
			return fmt.Errorf("disable auto-confirm of %s: %w", env.ThingID, err)
		}

		return nil
	}

	now := r.now()
	target.AutoConfirm = &models.AutoConfirm{Initiator: body.Initiator, Remark: body.Remark, ActivatedAt: now}

	if err := r.targets.Update(ctx, target); err != nil {
		return fmt.Errorf("enable auto-confirm of %s: %w", env.ThingID, err)
	}

	active, err := r.actions.Active(ctx, env.ThingID)
	if err != nil {
		return fmt.Errorf("active actions of %s: %w", env.ThingID, err)
	}

	for _, a := range active {
		if !a.WaitingConfirmation() {
			continue
		}

		status.Confirm(a, models.ActionStatus{
			Messages:  []string{fmt.Sprintf(autoConfirmMessage, body.Initiator)},
			Timestamp: now,
		})

		if err := r.actions.Update(ctx, a); err != nil && !errors.Is(err, repository.ErrActionClosed) {
			return fmt.Errorf("confirm action %d: %w", a.ID, err)
		}
	}

	return r.dispatcher.Redispatch(ctx, env.ThingID)
}
