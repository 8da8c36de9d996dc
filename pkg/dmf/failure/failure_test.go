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

package failure

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/fleetradar/pkg/dmf"
	"github.com/carverauto/fleetradar/pkg/logger"
)

type validationError struct{ field string }

func (v *validationError) Error() string { return "invalid " + v.field }

var errTimeout = errors.New("repository timeout")

func TestClassify(t *testing.T) {
	c := NewClassifier("*failure.validationError", " ")

	tests := []struct {
		name     string
		err      error
		fatal    bool
		category string
	}{
		{"nil", nil, false, ""},
		{"transient", errTimeout, false, CategoryTransient},
		{"wrapped transient", fmt.Errorf("update action: %w", errTimeout), false, CategoryTransient},
		{"protocol", fmt.Errorf("decode: %w", dmf.ErrMissingHeader), true, CategoryProtocol},
		{"parse error", &dmf.ParseError{Detail: "offset 3", Err: errTimeout}, true, CategoryProtocol},
		{"not found", fmt.Errorf("action 3: %w", dmf.ErrEntityNotFound), true, CategoryNotFound},
		{"tenant", dmf.ErrTenantNotExist, true, CategoryTenant},
		{"quota", fmt.Errorf("x: %w", fmt.Errorf("y: %w", dmf.ErrQuotaExceeded)), true, CategoryQuota},
		{"constraint", dmf.ErrConstraintViolation, true, CategoryConstraint},
		{"unauthorized", dmf.ErrUnauthorized, true, CategoryUnauthorized},
		{"joined", errors.Join(errTimeout, fmt.Errorf("b: %w", dmf.ErrEntityNotFound)), true, CategoryNotFound},
		{"configured type", fmt.Errorf("save: %w", &validationError{field: "name"}), true, CategoryConfigured},
		{"marked", fmt.Errorf("save: %w", dmf.Fatal(errTimeout)), true, CategoryConfigured},
		{"sentinel wins over marker", dmf.Fatal(dmf.ErrQuotaExceeded), true, CategoryQuota},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := c.Classify(tc.err)
			assert.Equal(t, tc.fatal, d.Fatal)
			assert.Equal(t, tc.category, d.Category)
		})
	}
}

func TestChainAndParseDetail(t *testing.T) {
	err := fmt.Errorf("status: %w", &dmf.ParseError{Detail: "bad field", Err: errTimeout})

	chain := Chain(err)
	require.NotEmpty(t, chain)
	assert.True(t, strings.HasPrefix(chain[0], "status: "))
	assert.Contains(t, chain, errTimeout.Error())
	assert.Equal(t, "bad field", ParseDetail(err))
	assert.Empty(t, ParseDetail(errTimeout))
}

func TestCompose(t *testing.T) {
	payload := strings.Repeat("x", MaxPayloadDiagnostic+100)
	h := nats.Header{}
	h.Set(dmf.HeaderType, "EVENT")
	h.Set(dmf.HeaderTenant, "acme")

	diag := Compose(&dmf.ParseError{Detail: "offset 9", Err: errTimeout}, []byte(payload), h)

	assert.Contains(t, diag, "parse: offset 9")
	assert.Contains(t, diag, "...[truncated]")
	assert.Contains(t, diag, "headers: tenant=acme type=EVENT")
	assert.NotContains(t, diag, strings.Repeat("x", MaxPayloadDiagnostic+1))
}

func TestTruncateKeepsRunes(t *testing.T) {
	s := strings.Repeat("é", 10)
	out := truncate(s, 5)

	assert.Equal(t, "éé...[truncated]", out)
	assert.Equal(t, "short", truncate("short", 10))
}

type fakeMsg struct {
	subject string
	data    []byte
	headers nats.Header
	termed  int
	naked   int
	nakErr  error
}

func (m *fakeMsg) Subject() string      { return m.subject }
func (m *fakeMsg) Data() []byte         { return m.data }
func (m *fakeMsg) Headers() nats.Header { return m.headers }
func (m *fakeMsg) Term() error          { m.termed++; return nil }
func (m *fakeMsg) Nak() error           { m.naked++; return m.nakErr }

func newMsg() *fakeMsg {
	h := nats.Header{}
	h.Set(dmf.HeaderType, "EVENT")
	h.Set(dmf.HeaderTenant, "acme")
	h.Set(dmf.HeaderThingID, "dev1")

	return &fakeMsg{subject: "dmf.in.acme.dev1", data: []byte(`{"actionId":1}`), headers: h}
}

func deadLetterSubject(s string) string { return "dmf.deadletter." + s }

func TestPolicyDeadLettersFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := NewMockDeadLetterPublisher(ctrl)

	var published *nats.Msg

	pub.EXPECT().PublishSync(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, m *nats.Msg) error {
		published = m

		return nil
	})

	p := NewPolicy(NewClassifier(), pub, deadLetterSubject, time.Hour, logger.NewTestLogger())
	msg := newMsg()

	cause := fmt.Errorf("status: %w", fmt.Errorf("%w: CANCEL_REJECTED", dmf.ErrInvalidStatusTransition))
	require.NoError(t, p.Handle(context.Background(), msg, cause))

	assert.Equal(t, 1, msg.termed)
	assert.Equal(t, 0, msg.naked)

	require.NotNil(t, published)
	assert.Equal(t, "dmf.deadletter.dmf.in.acme.dev1", published.Subject)
	assert.Equal(t, msg.data, published.Data)
	assert.Equal(t, "dev1", published.Header.Get(dmf.HeaderThingID))
	assert.Equal(t, "dmf.in.acme.dev1", published.Header.Get(dmf.HeaderDeadLetterSubject))
	assert.True(t, strings.HasPrefix(published.Header.Get(dmf.HeaderDeadLetterReason), CategoryProtocol+": "))
	assert.NotEmpty(t, published.Header.Get(dmf.HeaderDeadLetterTime))
}

func TestPolicyRequeuesWhenDeadLetterFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := NewMockDeadLetterPublisher(ctrl)
	pub.EXPECT().PublishSync(gomock.Any(), gomock.Any()).Return(errTimeout)

	p := NewPolicy(NewClassifier(), pub, deadLetterSubject, 0, logger.NewTestLogger())
	msg := newMsg()

	err := p.Handle(context.Background(), msg, dmf.ErrQuotaExceeded)
	require.ErrorIs(t, err, errTimeout)
	assert.Equal(t, 0, msg.termed)
	assert.Equal(t, 1, msg.naked)
}

func TestPolicyRequeuesTransientAfterDelay(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := NewMockDeadLetterPublisher(ctrl)

	delay := 20 * time.Millisecond
	p := NewPolicy(NewClassifier(), pub, deadLetterSubject, delay, logger.NewTestLogger())
	msg := newMsg()

	start := time.Now()
	require.NoError(t, p.Handle(context.Background(), msg, errTimeout))

	assert.GreaterOrEqual(t, time.Since(start), delay)
	assert.Equal(t, 1, msg.naked)
	assert.Equal(t, 0, msg.termed)
}

func TestPolicyCancellationInterruptsDelay(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := NewMockDeadLetterPublisher(ctrl)

	p := NewPolicy(NewClassifier(), pub, deadLetterSubject, time.Hour, logger.NewTestLogger())
	msg := newMsg()

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	done := make(chan error, 1)

	go func() { done <- p.Handle(ctx, msg, errTimeout) }()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("retry delay was not interrupted")
	}

	assert.Equal(t, 1, msg.naked)
}

func TestPolicyReportsNakFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := NewMockDeadLetterPublisher(ctrl)

	p := NewPolicy(NewClassifier(), pub, deadLetterSubject, 0, logger.NewTestLogger())
	msg := newMsg()
	msg.nakErr = nats.ErrConnectionClosed

	require.ErrorIs(t, p.Handle(context.Background(), msg, errTimeout), nats.ErrConnectionClosed)
}
