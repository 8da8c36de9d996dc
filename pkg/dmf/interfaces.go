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

//go:generate mockgen -destination=mock_dmf.go -package=dmf github.com/carverauto/fleetradar/pkg/dmf Publisher

package dmf

import (
	"context"

	"github.com/nats-io/nats.go"
)

// Publisher sends messages towards devices.
type Publisher interface {
	// Publish stores msg in the outbound or dead-letter stream. It does not wait
	// for the publish acknowledgement.
	Publish(ctx context.Context, msg *nats.Msg) error
	// Respond sends msg on core NATS, used for request/reply style answers.
	Respond(ctx context.Context, msg *nats.Msg) error
}
