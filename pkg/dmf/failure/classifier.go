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

// Package failure decides whether a failed inbound message is dead-lettered or
// requeued, and carries out that decision.
package failure

import (
	"errors"
	"fmt"
	"strings"

	"github.com/carverauto/fleetradar/pkg/dmf"
)

// Categories reported in dead-letter headers and metrics.
const (
	CategoryProtocol     = "protocol_violation"
	CategoryUnauthorized = "unauthorized"
	CategoryNotFound     = "not_found"
	CategoryTenant       = "tenant_not_exist"
	CategoryQuota        = "quota_exceeded"
	CategoryConstraint   = "constraint_violation"
	CategoryConfigured   = "configured"
	CategoryTransient    = "transient"
)

// Decision is the outcome of classifying an error.
type Decision struct {
	Fatal    bool
	Category string
	// Cause is the error in the chain that made the decision fatal.
	Cause error
}

// Classifier separates fatal errors from transient ones.
type Classifier struct {
	names map[string]struct{}
}

// NewClassifier returns a classifier that additionally treats the named error types as
// fatal. Names use the %T form, e.g. "*pgconn.PgError" or "mypkg.ValidationError".
func NewClassifier(fatalTypeNames ...string) *Classifier {
	names := make(map[string]struct{}, len(fatalTypeNames))

	for _, n := range fatalTypeNames {
		if n = strings.TrimSpace(n); n != "" {
			names[n] = struct{}{}
		}
	}

	return &Classifier{names: names}
}

var categories = []struct {
	sentinel error
	category string
}{
	{dmf.ErrProtocolViolation, CategoryProtocol},
	{dmf.ErrUnauthorized, CategoryUnauthorized},
	{dmf.ErrEntityNotFound, CategoryNotFound},
	{dmf.ErrTenantNotExist, CategoryTenant},
	{dmf.ErrQuotaExceeded, CategoryQuota},
	{dmf.ErrConstraintViolation, CategoryConstraint},
}

// Classify walks the whole cause chain of err, including joined errors. Sentinel
// categories take precedence over errors marked fatal by name or by dmf.Fatal.
func (c *Classifier) Classify(err error) Decision {
	if err == nil {
		return Decision{}
	}

	if d, ok := find(err, sentinelCategory); ok {
		return d
	}

	if d, ok := find(err, c.configured); ok {
		return d
	}

	return Decision{Category: CategoryTransient, Cause: err}
}

func find(err error, match func(error) (Decision, bool)) (Decision, bool) {
	var (
		found Decision
		ok    bool
	)

	walk(err, func(e error) bool {
		found, ok = match(e)

		return !ok
	})

	return found, ok
}

func sentinelCategory(e error) (Decision, bool) {
	for _, cat := range categories {
		if e == cat.sentinel { //nolint:errorlint // walk visits every wrapped error
			return Decision{Fatal: true, Category: cat.category, Cause: e}, true
		}
	}

	return Decision{}, false
}

func (c *Classifier) configured(e error) (Decision, bool) {
	if _, ok := c.names[fmt.Sprintf("%T", e)]; ok || dmf.IsMarkedFatal(e) {
		return Decision{Fatal: true, Category: CategoryConfigured, Cause: e}, true
	}

	return Decision{}, false
}

// walk visits err and every error it wraps depth first until visit returns false.
func walk(err error, visit func(error) bool) bool {
	if err == nil {
		return true
	}

	if !visit(err) {
		return false
	}

	switch u := err.(type) { //nolint:errorlint // unwrapping by hand
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if !walk(inner, visit) {
				return false
			}
		}
	case interface{ Unwrap() error }:
		return walk(u.Unwrap(), visit)
	}

	return true
}

// Chain renders every error in the chain of err, outermost first, without duplicates.
func Chain(err error) []string {
	var (
		out  []string
		seen = make(map[string]struct{})
	)

	walk(err, func(e error) bool {
		msg := e.Error()
		if _, ok := seen[msg]; !ok {
			seen[msg] = struct{}{}
			out = append(out, msg)
		}

		return true
	})

	return out
}

// ParseDetail returns the first JSON parse failure detail in the chain of err.
func ParseDetail(err error) string {
	var pe *dmf.ParseError
	if errors.As(err, &pe) {
		return pe.Detail
	}

	return ""
}
