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

// Package deadletter lists and replays messages parked on the DMF dead-letter stream.
package deadletter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/fleetradar/pkg/dmf"
	"github.com/carverauto/fleetradar/pkg/logger"
)

var (
	errNoOriginalSubject = errors.New("dead letter has no original subject")
	errInvalidLimit      = errors.New("limit must be positive")
)

const fetchWait = 500 * time.Millisecond

// Entry is one dead-lettered message.
type Entry struct {
	Sequence        uint64            `json:"sequence"`
	Subject         string            `json:"subject"`
	OriginalSubject string            `json:"original_subject"`
	Reason          string            `json:"reason"`
	RejectedAt      string            `json:"rejected_at"`
	Headers         map[string]string `json:"headers"`
	Data            []byte            `json:"data,omitempty"`
}

// Inspector reads the dead-letter stream.
type Inspector struct {
	js     jetstream.JetStream
	stream string
	log    logger.Logger
}

// NewInspector returns an inspector for the named dead-letter stream.
func NewInspector(js jetstream.JetStream, stream string, log logger.Logger) *Inspector {
	return &Inspector{js: js, stream: stream, log: log}
}

// List returns up to limit entries starting at sequence from. A zero from starts at the
// oldest message.
func (i *Inspector) List(ctx context.Context, from uint64, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, errInvalidLimit
	}

	cfg := jetstream.OrderedConsumerConfig{DeliverPolicy: jetstream.DeliverAllPolicy}
	if from > 0 {
		cfg.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		cfg.OptStartSeq = from
	}

	cons, err := i.js.OrderedConsumer(ctx, i.stream, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", i.stream, err)
	}

	batch, err := cons.Fetch(limit, jetstream.FetchMaxWait(fetchWait))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", i.stream, err)
	}

	entries := make([]Entry, 0, limit)

	for msg := range batch.Messages() {
		meta, err := msg.Metadata()
		if err != nil {
			return nil, fmt.Errorf("dead letter metadata: %w", err)
		}

		entries = append(entries, toEntry(meta.Sequence.Stream, msg.Subject(), msg.Headers(), msg.Data()))
	}

	if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
		return entries, fmt.Errorf("fetch %s: %w", i.stream, err)
	}

	return entries, nil
}

// Get loads a single entry by stream sequence.
func (i *Inspector) Get(ctx context.Context, seq uint64) (*Entry, error) {
	stream, err := i.js.Stream(ctx, i.stream)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", i.stream, err)
	}

	raw, err := stream.GetMsg(ctx, seq)
	if err != nil {
		return nil, fmt.Errorf("get dead letter %d: %w", seq, err)
	}

	entry := toEntry(raw.Sequence, raw.Subject, raw.Header, raw.Data)

	return &entry, nil
}

// Replay republishes a dead letter to its original subject without the dead-letter
// headers. With purge set the entry is removed from the stream afterwards.
func (i *Inspector) Replay(ctx context.Context, seq uint64, purge bool) (*Entry, error) {
	stream, err := i.js.Stream(ctx, i.stream)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", i.stream, err)
	}

	raw, err := stream.GetMsg(ctx, seq)
	if err != nil {
		return nil, fmt.Errorf("get dead letter %d: %w", seq, err)
	}

	original := raw.Header.Get(dmf.HeaderDeadLetterSubject)
	if original == "" {
		return nil, fmt.Errorf("%w: sequence %d", errNoOriginalSubject, seq)
	}

	msg := nats.NewMsg(original)
	msg.Data = raw.Data

	for k, v := range raw.Header {
		if isDeadLetterHeader(k) {
			continue
		}

		msg.Header[k] = append([]string(nil), v...)
	}

	if _, err := i.js.PublishMsg(ctx, msg); err != nil {
		return nil, fmt.Errorf("replay to %s: %w", original, err)
	}

	i.log.Info().Uint64("sequence", seq).Str("subject", original).Msg("Replayed dead letter")

	if purge {
		if err := stream.DeleteMsg(ctx, seq); err != nil {
			return nil, fmt.Errorf("delete dead letter %d: %w", seq, err)
		}
	}

	entry := toEntry(raw.Sequence, raw.Subject, raw.Header, raw.Data)

	return &entry, nil
}

func isDeadLetterHeader(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), "x-dmf-dead-letter-")
}

func toEntry(seq uint64, subject string, h nats.Header, data []byte) Entry {
	return Entry{
		Sequence:        seq,
		Subject:         subject,
		OriginalSubject: h.Get(dmf.HeaderDeadLetterSubject),
		Reason:          h.Get(dmf.HeaderDeadLetterReason),
		RejectedAt:      h.Get(dmf.HeaderDeadLetterTime),
		Headers:         dmf.FlattenHeaders(h),
		Data:            data,
	}
}
