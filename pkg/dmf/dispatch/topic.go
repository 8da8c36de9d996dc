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

// Package dispatch decides what a device is sent next and builds the payloads.
package dispatch

import (
	"sort"
	"time"

	"github.com/carverauto/fleetradar/pkg/dmf"
	"github.com/carverauto/fleetradar/pkg/models"
)

// DefaultMultiAssignmentCap bounds the actions packed into one MULTI_ACTION message.
const DefaultMultiAssignmentCap = 1000

// Flags are the action properties topic selection depends on.
type Flags struct {
	CancelingOrCanceled bool
	WaitingConfirmation bool
	DownloadOnly        bool
	WindowOpen          bool
}

// FlagsFor derives the flags of an action at now.
func FlagsFor(a *models.Action, now time.Time) Flags {
	return Flags{
		CancelingOrCanceled: a.CancelingOrCanceled(),
		WaitingConfirmation: a.WaitingConfirmation(),
		DownloadOnly:        a.DownloadOnly(),
		WindowOpen:          a.MaintenanceWindowAvailable(now),
	}
}

// Topic selects the outbound topic for an action with the given flags.
func Topic(f Flags) dmf.Topic {
	switch {
	case f.CancelingOrCanceled:
		return dmf.TopicCancelDownload
	case f.WaitingConfirmation:
		return dmf.TopicConfirm
	case f.DownloadOnly || !f.WindowOpen:
		return dmf.TopicDownload
	default:
		return dmf.TopicDownloadAndInstall
	}
}

// TopicFor selects the outbound topic of a at now.
func TopicFor(a *models.Action, now time.Time) dmf.Topic {
	return Topic(FlagsFor(a, now))
}

func byPriority(actions []*models.Action) []*models.Action {
	out := make([]*models.Action, 0, len(actions))

	for _, a := range actions {
		if a != nil && a.Active {
			out = append(out, a)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}

		return out[i].ID < out[j].ID
	})

	return out
}

// SelectSingle returns the active action with the highest weight, ties going to the
// oldest action, or nil when none is active.
func SelectSingle(actions []*models.Action) *models.Action {
	ordered := byPriority(actions)
	if len(ordered) == 0 {
		return nil
	}

	return ordered[0]
}

// SelectMulti returns up to limit active actions, highest weight first.
func SelectMulti(actions []*models.Action, limit int) []*models.Action {
	if limit <= 0 {
		limit = DefaultMultiAssignmentCap
	}

	ordered := byPriority(actions)
	if len(ordered) > limit {
		ordered = ordered[:limit]
	}

	return ordered
}

// HasPendingCancellation reports whether any of the actions is being canceled.
func HasPendingCancellation(actions []*models.Action) bool {
	for _, a := range actions {
		if a.Active && a.Status == models.StatusCanceling {
			return true
		}
	}

	return false
}
