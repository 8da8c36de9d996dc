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
	"errors"
	"fmt"
	"time"
)

var (
	errInvalidDuration = errors.New("invalid duration")
	errNATSURLRequired = errors.New("nats url is required")
)

// Duration is a time.Duration that reads "5s" style strings or integer nanoseconds from JSON.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))

		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %w", errInvalidDuration, err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// NATSConfig configures broker connectivity.
type NATSConfig struct {
	URL         string           `json:"url"`
	Domain      string           `json:"domain,omitempty"`
	Security    *SecurityConfig  `json:"security,omitempty"`
	Credentials *NATSCredentials `json:"credentials,omitempty"`
}

// NATSCredentials authenticates against an operator-mode NATS deployment.
// Either CredsFile or the inline UserJWT/Seed pair is used; a Seed alone selects nkey auth.
type NATSCredentials struct {
	CredsFile string `json:"creds_file,omitempty"`
	UserJWT   string `json:"user_jwt,omitempty"`
	Seed      string `json:"seed,omitempty" sensitive:"true"`
}

// Validate ensures the NATS configuration is usable.
func (c *NATSConfig) Validate() error {
	if c.URL == "" {
		return errNATSURLRequired
	}

	return nil
}
