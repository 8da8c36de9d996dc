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

package repository

import (
	"errors"
	"fmt"

	"github.com/carverauto/fleetradar/pkg/models"
)

var (
	ErrActionClosed = errors.New("action already closed")
	ErrStaleAction  = errors.New("action changed since it was loaded")
)

// CheckActionUpdate rejects an update of an action whose stored row is terminal or has
// moved past the revision the caller loaded. Stores call it with the row locked.
func CheckActionUpdate(stored models.Status, storedRevision int, action *models.Action) error {
	if stored.Terminal() {
		return fmt.Errorf("%w: action %d is %s", ErrActionClosed, action.ID, stored)
	}

	if storedRevision != action.Revision || len(action.History) < storedRevision {
		return fmt.Errorf("%w: action %d at revision %d, loaded %d",
			ErrStaleAction, action.ID, storedRevision, action.Revision)
	}

	return nil
}
