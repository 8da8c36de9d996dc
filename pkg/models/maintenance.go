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
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	ErrMaintenanceScheduleInvalid = errors.New("invalid maintenance schedule")
	ErrMaintenanceDurationInvalid = errors.New("maintenance duration must be positive")
	ErrMaintenanceTimeZoneInvalid = errors.New("invalid maintenance time zone")
)

//nolint:gochecknoglobals // parser is stateless and shared
var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// MaintenanceWindow describes recurring windows in which installation is allowed.
// Schedule is a cron expression for the window start; Duration is how long it stays open.
type MaintenanceWindow struct {
	Schedule string        `json:"schedule"`
	Duration time.Duration `json:"duration"`
	TimeZone string        `json:"time_zone,omitempty"`
}

// Validate checks that the window can be evaluated.
func (w *MaintenanceWindow) Validate() error {
	var errs []error

	if _, err := scheduleParser.Parse(w.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrMaintenanceScheduleInvalid, err))
	}

	if w.Duration <= 0 {
		errs = append(errs, ErrMaintenanceDurationInvalid)
	}

	if _, err := w.location(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Open reports whether now falls into a window [start, start+Duration).
// An invalid window is treated as closed.
func (w *MaintenanceWindow) Open(now time.Time) bool {
	if w == nil || w.Duration <= 0 {
		return false
	}

	schedule, err := scheduleParser.Parse(w.Schedule)
	if err != nil {
		return false
	}

	loc, err := w.location()
	if err != nil {
		return false
	}

	local := now.In(loc)
	start := schedule.Next(local.Add(-w.Duration))

	return !start.After(local)
}

// NextStart returns the next window start strictly after now.
func (w *MaintenanceWindow) NextStart(now time.Time) (time.Time, error) {
	schedule, err := scheduleParser.Parse(w.Schedule)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrMaintenanceScheduleInvalid, err)
	}

	loc, err := w.location()
	if err != nil {
		return time.Time{}, err
	}

	return schedule.Next(now.In(loc)), nil
}

func (w *MaintenanceWindow) location() (*time.Location, error) {
	if w.TimeZone == "" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(w.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrMaintenanceTimeZoneInvalid, w.TimeZone)
	}

	return loc, nil
}
