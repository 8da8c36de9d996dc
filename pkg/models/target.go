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
	"strings"
	"time"
)

// AddressSchemeNATS marks targets that talk DMF over the broker.
const AddressSchemeNATS = "nats"

var ErrInvalidAddress = errors.New("invalid target address")

// Address is where outbound messages for a target are routed, e.g. "nats://dmf.out.default".
type Address struct {
	Scheme  string `json:"scheme"`
	Subject string `json:"subject"`
}

// ParseAddress parses "<scheme>://<subject>". An empty string yields the zero address.
func ParseAddress(raw string) (Address, error) {
	if raw == "" {
		return Address{}, nil
	}

	scheme, subject, ok := strings.Cut(raw, "://")
	if !ok || scheme == "" {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
	}

	return Address{Scheme: strings.ToLower(scheme), Subject: subject}, nil
}

// DMF reports whether the address points at the message-broker protocol.
func (a Address) DMF() bool {
	return a.Scheme == AddressSchemeNATS && a.Subject != ""
}

func (a Address) String() string {
	if a.Scheme == "" {
		return ""
	}

	return a.Scheme + "://" + a.Subject
}

// Target is a managed device.
type Target struct {
	ID                int64             `json:"id"`
	Tenant            string            `json:"tenant"`
	ControllerID      string            `json:"controller_id"`
	Name              string            `json:"name,omitempty"`
	Type              string            `json:"type,omitempty"`
	Address           Address           `json:"address"`
	SecurityToken     string            `json:"security_token,omitempty"`
	Attributes        map[string]string `json:"attributes,omitempty"`
	RequestAttributes bool              `json:"request_attributes"`
	AutoConfirm       *AutoConfirm      `json:"auto_confirm,omitempty"`
	LastSeen          time.Time         `json:"last_seen"`
}

// AutoConfirm records that a device confirms every assignment on its own.
type AutoConfirm struct {
	Initiator   string    `json:"initiator,omitempty"`
	Remark      string    `json:"remark,omitempty"`
	ActivatedAt time.Time `json:"activated_at"`
}

// Clone returns a deep copy of the target.
func (t *Target) Clone() *Target {
	if t == nil {
		return nil
	}

	c := *t

	if t.Attributes != nil {
		c.Attributes = make(map[string]string, len(t.Attributes))
		for k, v := range t.Attributes {
			c.Attributes[k] = v
		}
	}

	if t.AutoConfirm != nil {
		ac := *t.AutoConfirm
		c.AutoConfirm = &ac
	}

	return &c
}

// AttributeUpdateMode tells how reported attributes combine with stored ones.
type AttributeUpdateMode string

const (
	AttributeUpdateMerge   AttributeUpdateMode = "MERGE"
	AttributeUpdateReplace AttributeUpdateMode = "REPLACE"
	AttributeUpdateRemove  AttributeUpdateMode = "REMOVE"
)
