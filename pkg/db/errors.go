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

package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carverauto/fleetradar/pkg/dmf"
)

// PostgreSQL error codes that become constraint violations.
const (
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgStringTooLong       = "22001"
)

// mapError translates driver errors into the protocol's error taxonomy. Anything it
// does not recognise is returned wrapped and stays retryable.
func mapError(err error, kind string, key any) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s %v", dmf.ErrEntityNotFound, kind, key)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgCheckViolation, pgForeignKeyViolation, pgNotNullViolation, pgStringTooLong:
			return fmt.Errorf("%w: %s %v: %s", dmf.ErrConstraintViolation, kind, key, pgErr.Message)
		}
	}

	return fmt.Errorf("cnpg: %s %v: %w", kind, key, err)
}
