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

//go:generate mockgen -destination=mock_failure.go -package=failure github.com/carverauto/fleetradar/pkg/dmf/failure DeadLetterPublisher

package failure

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nats-io/nats.go"

	"github.com/carverauto/fleetradar/pkg/dmf"
	"github.com/carverauto/fleetradar/pkg/logger"
)

const (
	// DefaultRetryDelay throttles redelivery of transiently failed messages.
	DefaultRetryDelay = 2 * time.Second

	// MaxPayloadDiagnostic bounds the payload excerpt in diagnostics.
	MaxPayloadDiagnostic = 4 << 10

	maxReasonHeader = 1 << 10
)

// Message is the part of a JetStream message the policy needs.
type Message interface {
	Subject() string
	Data() []byte
	Headers() nats.Header
	Term() error
	Nak() error
}

// DeadLetterPublisher stores dead letters. PublishSync returns only after the
// dead-letter stream acknowledged the message.
type DeadLetterPublisher interface {
	PublishSync(ctx context.Context, msg *nats.Msg) error
}

// Policy dead-letters fatal failures and requeues the rest after a delay.
type Policy struct {
	classifier        *Classifier
	pub               DeadLetterPublisher
	deadLetterSubject func(original string) string
	delay             time.Duration
	log               logger.Logger
	now               func() time.Time
}

// NewPolicy returns a policy publishing dead letters through pub to the subject computed
// by deadLetterSubject.
func NewPolicy(
	classifier *Classifier, pub DeadLetterPublisher, deadLetterSubject func(string) string, delay time.Duration, log logger.Logger,
) *Policy {
	if delay < 0 {
		delay = 0
	}

	return &Policy{
		classifier:        classifier,
		pub:               pub,
		deadLetterSubject: deadLetterSubject,
		delay:             delay,
		log:               log,
		now:               time.Now,
	}
}

// Handle settles msg after processing failed with cause. Fatal failures are published to
// the dead-letter stream and terminated once the stream acknowledged the copy; an
// unacknowledged dead letter leaves the message requeued. Transient failures wait for the retry delay and
// are negatively acknowledged. A cancelled ctx cuts the wait short: the message is still
// requeued and ctx.Err() is returned.
func (p *Policy) Handle(ctx context.Context, msg Message, cause error) error {
	decision := p.classifier.Classify(cause)
	if decision.Fatal {
		return p.reject(ctx, msg, cause, decision)
	}

	return p.requeue(ctx, msg, cause)
}

// Classify returns the decision Handle acts on for cause.
func (p *Policy) Classify(cause error) Decision {
	return p.classifier.Classify(cause)
}

func (p *Policy) reject(ctx context.Context, msg Message, cause error, decision Decision) error {
	diag := Compose(cause, msg.Data(), msg.Headers())

	p.log.Warn().
		Str("subject", msg.Subject()).
		Str("tenant", msg.Headers().Get(dmf.HeaderTenant)).
		Str("thing_id", msg.Headers().Get(dmf.HeaderThingID)).
		Str("message_type", msg.Headers().Get(dmf.HeaderType)).
		Str("topic", msg.Headers().Get(dmf.HeaderTopic)).
		Str("reason", decision.Category).
		Str("diagnostic", diag).
		Msg("Rejecting DMF message to dead letter")

	dead := p.deadLetter(msg, cause, decision)

	if err := p.pub.PublishSync(ctx, dead); err != nil {
		p.log.Error().Err(err).Str("subject", msg.Subject()).Msg("Failed to publish dead letter, requeueing")

		if nakErr := msg.Nak(); nakErr != nil {
			return fmt.Errorf("nak after dead letter failure: %w", nakErr)
		}

		return fmt.Errorf("publish dead letter: %w", err)
	}

	dmf.RecordDeadLetter(ctx, decision.Category)

	if err := msg.Term(); err != nil {
		return fmt.Errorf("terminate message: %w", err)
	}

	return nil
}

func (p *Policy) deadLetter(msg Message, cause error, decision Decision) *nats.Msg {
	dead := nats.NewMsg(p.deadLetterSubject(msg.Subject()))

	for k, v := range msg.Headers() {
		dead.Header[k] = append([]string(nil), v...)
	}

	reason := decision.Category + ": " + singleLine(cause.Error())
	if detail := ParseDetail(cause); detail != "" && !strings.Contains(reason, detail) {
		reason += " (" + singleLine(detail) + ")"
	}

	dead.Header.Set(dmf.HeaderDeadLetterReason, truncate(reason, maxReasonHeader))
	dead.Header.Set(dmf.HeaderDeadLetterSubject, msg.Subject())
	dead.Header.Set(dmf.HeaderDeadLetterTime, p.now().UTC().Format(time.RFC3339Nano))
	dead.Data = msg.Data()

	return dead
}

func (p *Policy) requeue(ctx context.Context, msg Message, cause error) error {
	p.log.Error().
		Err(cause).
		Str("subject", msg.Subject()).
		Dur("retry_delay", p.delay).
		Msg("Transient failure processing DMF message, requeueing")

	waitErr := sleep(ctx, p.delay)

	dmf.RecordRequeue(ctx)

	if err := msg.Nak(); err != nil {
		return fmt.Errorf("nak message: %w", err)
	}

	return waitErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Compose renders the diagnostic of a rejected message: the error chain, the first JSON
// parse failure, the payload cut to MaxPayloadDiagnostic bytes and the headers.
func Compose(cause error, payload []byte, headers nats.Header) string {
	var b strings.Builder

	b.WriteString("error: ")
	b.WriteString(strings.Join(Chain(cause), " <- "))

	if detail := ParseDetail(cause); detail != "" {
		b.WriteString("; parse: ")
		b.WriteString(detail)
	}

	b.WriteString("; payload: ")
	b.WriteString(truncate(string(payload), MaxPayloadDiagnostic))

	b.WriteString("; headers: ")
	b.WriteString(dumpHeaders(headers))

	return b.String()
}

func dumpHeaders(h nats.Header) string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+strings.Join(h[k], ","))
	}

	return strings.Join(parts, " ")
}

// truncate cuts s to at most limit bytes on a rune boundary, marking the cut.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut] + "...[truncated]"
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
