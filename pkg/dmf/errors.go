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

package dmf

import (
	"errors"
	"fmt"
)

// Protocol violations. Each wraps ErrProtocolViolation.
var (
	ErrProtocolViolation       = errors.New("protocol violation")
	ErrMalformedMessage        = fmt.Errorf("%w: malformed message", ErrProtocolViolation)
	ErrUnsupportedContentType  = fmt.Errorf("%w: content type is not JSON", ErrProtocolViolation)
	ErrUnknownMessageType      = fmt.Errorf("%w: unknown message type", ErrProtocolViolation)
	ErrUnknownTopic            = fmt.Errorf("%w: unknown topic", ErrProtocolViolation)
	ErrMissingHeader           = fmt.Errorf("%w: missing header", ErrProtocolViolation)
	ErrInvalidStatusTransition = fmt.Errorf("%w: invalid status transition", ErrProtocolViolation)
)

// Remaining fatal categories.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrEntityNotFound      = errors.New("entity not found")
	ErrTenantNotExist      = errors.New("tenant does not exist")
	ErrQuotaExceeded       = errors.New("quota exceeded")
	ErrConstraintViolation = errors.New("constraint violation")
)

// FatalErrors lists the sentinels that must never be requeued.
func FatalErrors() []error {
	return []error{
		ErrProtocolViolation,
		ErrUnauthorized,
		ErrEntityNotFound,
		ErrTenantNotExist,
		ErrQuotaExceeded,
		ErrConstraintViolation,
	}
}

type fatalError struct {
	err error
}

func (f *fatalError) Error() string { return f.err.Error() }
func (f *fatalError) Unwrap() error { return f.err }

// Fatal marks err so that it is dead-lettered instead of requeued.
func Fatal(err error) error {
	if err == nil {
		return nil
	}

	return &fatalError{err: err}
}

// IsMarkedFatal reports whether err, or anything it wraps, was passed to Fatal.
func IsMarkedFatal(err error) bool {
	var f *fatalError

	return errors.As(err, &f)
}

// IsFatal reports whether err must not be requeued.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	if IsMarkedFatal(err) {
		return true
	}

	for _, sentinel := range FatalErrors() {
		if errors.Is(err, sentinel) {
			return true
		}
	}

	return false
}

// ParseError records why a message body could not be decoded.
type ParseError struct {
	// Detail is the decoder's description of the first failure, including its offset.
	Detail string
	Err    error
}

func (p *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMalformedMessage.Error(), p.Detail)
}

func (p *ParseError) Unwrap() []error {
	return []error{ErrMalformedMessage, p.Err}
}
