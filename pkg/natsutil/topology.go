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

package natsutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/fleetradar/pkg/models"
)

const (
	DefaultOutboundStream   = "DMF_OUTBOUND"
	DefaultInboundStream    = "DMF_INBOUND"
	DefaultAuthStream       = "DMF_AUTH"
	DefaultDeadLetterStream = "DMF_DEADLETTER"

	DefaultOutboundSubject   = "dmf.out"
	DefaultInboundSubject    = "dmf.in"
	DefaultAuthSubject       = "dmf.auth"
	DefaultDeadLetterSubject = "dmf.deadletter"

	DefaultInboundConsumer = "dmf-inbound"
	DefaultAuthConsumer    = "dmf-auth"

	defaultAuthMaxAge       = 30 * time.Second
	defaultAuthMaxMsgs      = 10000
	defaultDeadLetterMaxAge = 21 * 24 * time.Hour
	defaultAckWait          = 30 * time.Second
	defaultMaxDeliver       = 20
)

var errEmptyStreamName = errors.New("stream name is required")

// Topology names the JetStream streams and consumers of the DMF protocol.
//
// Outbound holds device-bound messages, Inbound device-originated messages, Auth
// short-lived authentication requests and DeadLetter fatally rejected messages.
type Topology struct {
	OutboundStream    string          `json:"outbound_stream"`
	OutboundSubject   string          `json:"outbound_subject"`
	InboundStream     string          `json:"inbound_stream"`
	InboundSubject    string          `json:"inbound_subject"`
	InboundConsumer   string          `json:"inbound_consumer"`
	AuthStream        string          `json:"auth_stream"`
	AuthSubject       string          `json:"auth_subject"`
	AuthConsumer      string          `json:"auth_consumer"`
	AuthMaxAge        models.Duration `json:"auth_max_age"`
	AuthMaxMsgs       int64           `json:"auth_max_msgs"`
	DeadLetterStream  string          `json:"dead_letter_stream"`
	DeadLetterSubject string          `json:"dead_letter_subject"`
	DeadLetterMaxAge  models.Duration `json:"dead_letter_max_age"`
	AckWait           models.Duration `json:"ack_wait"`
	MaxDeliver        int             `json:"max_deliver"`
}

// ApplyDefaults fills unset names and limits.
func (t *Topology) ApplyDefaults() {
	setDefault(&t.OutboundStream, DefaultOutboundStream)
	setDefault(&t.OutboundSubject, DefaultOutboundSubject)
	setDefault(&t.InboundStream, DefaultInboundStream)
	setDefault(&t.InboundSubject, DefaultInboundSubject)
	setDefault(&t.InboundConsumer, DefaultInboundConsumer)
	setDefault(&t.AuthStream, DefaultAuthStream)
	setDefault(&t.AuthSubject, DefaultAuthSubject)
	setDefault(&t.AuthConsumer, DefaultAuthConsumer)
	setDefault(&t.DeadLetterStream, DefaultDeadLetterStream)
	setDefault(&t.DeadLetterSubject, DefaultDeadLetterSubject)

	if t.AuthMaxAge <= 0 {
		t.AuthMaxAge = models.Duration(defaultAuthMaxAge)
	}

	if t.AuthMaxMsgs <= 0 {
		t.AuthMaxMsgs = defaultAuthMaxMsgs
	}

	if t.DeadLetterMaxAge <= 0 {
		t.DeadLetterMaxAge = models.Duration(defaultDeadLetterMaxAge)
	}

	if t.AckWait <= 0 {
		t.AckWait = models.Duration(defaultAckWait)
	}

	if t.MaxDeliver == 0 {
		t.MaxDeliver = defaultMaxDeliver
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// DeadLetterSubjectFor returns the dead-letter subject mirroring an original subject.
func (t *Topology) DeadLetterSubjectFor(original string) string {
	return t.DeadLetterSubject + "." + strings.TrimPrefix(original, "$")
}

// StreamConfigs returns the configuration of every DMF stream.
func (t *Topology) StreamConfigs() []jetstream.StreamConfig {
	return []jetstream.StreamConfig{
		{
			Name:      t.OutboundStream,
			Subjects:  []string{t.OutboundSubject + ".>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
		},
		{
			Name:      t.InboundStream,
			Subjects:  []string{t.InboundSubject + ".>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
		},
		{
			// Abandoned authentication requests expire on their own.
			Name:      t.AuthStream,
			Subjects:  []string{t.AuthSubject + ".>"},
			Storage:   jetstream.MemoryStorage,
			Retention: jetstream.WorkQueuePolicy,
			MaxAge:    time.Duration(t.AuthMaxAge),
			MaxMsgs:   t.AuthMaxMsgs,
			Discard:   jetstream.DiscardOld,
		},
		{
			Name:      t.DeadLetterStream,
			Subjects:  []string{t.DeadLetterSubject + ".>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    time.Duration(t.DeadLetterMaxAge),
		},
	}
}

// EnsureTopology creates or updates every DMF stream and the durable pull consumers.
// Existing streams keep subjects they already carry.
func EnsureTopology(ctx context.Context, js jetstream.JetStream, t *Topology) error {
	t.ApplyDefaults()

	for _, cfg := range t.StreamConfigs() {
		if err := ensureStream(ctx, js, cfg); err != nil {
			return err
		}
	}

	consumers := []struct{ stream, durable string }{
		{t.InboundStream, t.InboundConsumer},
		{t.AuthStream, t.AuthConsumer},
	}

	for _, c := range consumers {
		if _, err := js.CreateOrUpdateConsumer(ctx, c.stream, jetstream.ConsumerConfig{
			Durable:    c.durable,
			AckPolicy:  jetstream.AckExplicitPolicy,
			AckWait:    time.Duration(t.AckWait),
			MaxDeliver: t.MaxDeliver,
		}); err != nil {
			return fmt.Errorf("failed to ensure consumer %s on %s: %w", c.durable, c.stream, err)
		}
	}

	return nil
}

func ensureStream(ctx context.Context, js jetstream.JetStream, cfg jetstream.StreamConfig) error {
	if cfg.Name == "" {
		return errEmptyStreamName
	}

	stream, err := js.Stream(ctx, cfg.Name)
	if err != nil && !isStreamMissingErr(err) {
		return fmt.Errorf("failed to look up stream %s: %w", cfg.Name, err)
	}

	if stream != nil {
		existing := stream.CachedInfo().Config.Subjects
		for _, subject := range cfg.Subjects {
			existing = ensureSubjectList(existing, subject)
		}

		cfg.Subjects = existing
	}

	if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
		return fmt.Errorf("failed to create or update stream %s: %w", cfg.Name, err)
	}

	return nil
}

func isStreamMissingErr(err error) bool {
	return errors.Is(err, jetstream.ErrStreamNotFound) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrStreamNotFound) ||
		errors.Is(err, nats.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrNoResponders)
}

// ensureSubjectList appends subject unless a pattern in subjects already covers it.
func ensureSubjectList(subjects []string, subject string) []string {
	for _, existing := range subjects {
		if matchesSubject(existing, subject) {
			return subjects
		}
	}

	return append(subjects, subject)
}

// matchesSubject reports whether pattern covers subject, honoring "*" and ">" wildcards.
func matchesSubject(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")

	for i, p := range pt {
		if p == ">" {
			return i < len(st)
		}

		if i >= len(st) {
			return false
		}

		if p != "*" && p != st[i] {
			return false
		}
	}

	return len(pt) == len(st)
}
