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

package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/fleetradar/pkg/dmf"
	"github.com/carverauto/fleetradar/pkg/dmf/auth"
	"github.com/carverauto/fleetradar/pkg/dmf/dispatch"
	"github.com/carverauto/fleetradar/pkg/dmf/failure"
	"github.com/carverauto/fleetradar/pkg/dmf/outbound"
	"github.com/carverauto/fleetradar/pkg/dmf/status"
	"github.com/carverauto/fleetradar/pkg/logger"
	"github.com/carverauto/fleetradar/pkg/models"
	"github.com/carverauto/fleetradar/pkg/repository"
	"github.com/carverauto/fleetradar/pkg/repository/memory"
	"github.com/carverauto/fleetradar/pkg/tenant"
)

const (
	testTenant = "acme"
	thing      = "dev1"
	replyTo    = "dmf.out.default"
)

// sent collects published and responded messages.
type sent struct {
	mu        sync.Mutex
	published []*nats.Msg
	responses []*nats.Msg
}

func (s *sent) all() (published, responses []*nats.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*nats.Msg(nil), s.published...), append([]*nats.Msg(nil), s.responses...)
}

type harness struct {
	store  *memory.Store
	router *Router
	sent   *sent
	pub    *dmf.MockPublisher
	ds     *models.DistributionSet
	now    time.Time
}

func newHarness(t *testing.T, cfg models.TenantConfig) *harness {
	t.Helper()

	s := memory.New()
	s.AddTenant(testTenant)
	s.SetTenantConfig(testTenant, cfg)

	ds := s.AddDistributionSet(&models.DistributionSet{
		Tenant:  testTenant,
		Name:    "firmware",
		Version: "1.0",
		Modules: []*models.SoftwareModule{{
			Type:      "os",
			Version:   "1.0",
			Artifacts: []*models.Artifact{{Filename: "os.bin", SHA1: "a1", MD5: "m1", Size: 42}},
		}},
	})

	s.AddTarget(&models.Target{
		Tenant:       testTenant,
		ControllerID: thing,
		Address:      models.Address{Scheme: models.AddressSchemeNATS, Subject: replyTo},
	})

	rec := &sent{}
	pub := dmf.NewMockPublisher(gomock.NewController(t))
	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, m *nats.Msg) error {
		rec.mu.Lock()
		defer rec.mu.Unlock()

		rec.published = append(rec.published, m)

		return nil
	}).AnyTimes()
	pub.EXPECT().Respond(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, m *nats.Msg) error {
		rec.mu.Lock()
		defer rec.mu.Unlock()

		rec.responses = append(rec.responses, m)

		return nil
	}).AnyTimes()

	log := logger.NewTestLogger()
	repos := s.Repositories()
	now := time.Date(2025, 6, 1, 0, 30, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	builder := dispatch.NewBuilder(repos.DistributionSets, dispatch.NewPatternURLResolver(nil), dispatch.WithClock(clock))
	dispatcher := outbound.NewDispatcher(repos, builder, pub, outbound.Config{}, log)
	chain := auth.NewDefaultChain(auth.Config{AnonymousFallback: true}, repos, log)

	return &harness{
		store:  s,
		router: NewRouter(repos, chain, dispatcher, pub, Config{}, log, WithClock(clock)),
		sent:   rec,
		pub:    pub,
		ds:     ds,
		now:    now,
	}
}

func (h *harness) addAction(a models.Action) *models.Action {
	a.Tenant = testTenant
	a.ControllerID = thing
	a.DistributionSetID = h.ds.ID
	a.Active = !a.Status.Terminal()

	if a.Type == "" {
		a.Type = models.ActionTypeForced
	}

	return h.store.AddAction(&a)
}

func message(t *testing.T, typ dmf.MessageType, topic dmf.Topic, body any, headers map[string]string) *nats.Msg {
	t.Helper()

	msg := nats.NewMsg("dmf.in." + testTenant + "." + thing)
	msg.Header.Set(dmf.HeaderType, string(typ))
	msg.Header.Set(dmf.HeaderTenant, testTenant)
	msg.Header.Set(dmf.HeaderThingID, thing)

	if topic != "" {
		msg.Header.Set(dmf.HeaderTopic, string(topic))
	}

	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)

		msg.Data = data
		msg.Header.Set(dmf.HeaderContentType, dmf.ContentTypeJSON)
	}

	for k, v := range headers {
		msg.Header.Set(k, v)
	}

	return msg
}

func envelope(t *testing.T, msg *nats.Msg) *dmf.Envelope {
	t.Helper()

	env, err := dmf.Decode(msg)
	require.NoError(t, err)

	return env
}

func (h *harness) report(t *testing.T, actionID int64, code models.ReportedStatus, headers map[string]string) error {
	t.Helper()

	body := &models.ActionUpdateStatus{ActionID: actionID, ActionStatus: code, Messages: []string{"step"}}

	return h.router.Route(context.Background(), envelope(t, message(t, dmf.TypeEvent, dmf.TopicUpdateActionStatus, body, headers)))
}

func statuses(a *models.Action) []models.Status {
	out := make([]models.Status, 0, len(a.History))
	for _, e := range a.History {
		out = append(out, e.Status)
	}

	return out
}

func TestStatusReportsCloseAction(t *testing.T) {
	h := newHarness(t, models.TenantConfig{})
	a1 := h.addAction(models.Action{})

	require.NoError(t, h.report(t, a1.ID, models.ReportedRetrieved, map[string]string{dmf.HeaderCorrelationID: "c-1"}))
	require.NoError(t, h.report(t, a1.ID, models.ReportedFinished, nil))

	got := h.store.Action(a1.ID)
	assert.Equal(t, []models.Status{models.StatusDownload, models.StatusRetrieved, models.StatusFinished}, statuses(got))
	assert.False(t, got.Active)
	assert.True(t, got.Status.Terminal())
	assert.Contains(t, got.History[1].Messages, status.CorrelationMessage("c-1"))

	require.NoError(t, h.report(t, a1.ID, models.ReportedRunning, nil))
	assert.Len(t, h.store.Action(a1.ID).History, 3)

	published, _ := h.sent.all()
	assert.Empty(t, published)
}

type settled struct {
	msg    *nats.Msg
	termed bool
	naked  bool
}

func (s *settled) Subject() string      { return s.msg.Subject }
func (s *settled) Data() []byte         { return s.msg.Data }
func (s *settled) Headers() nats.Header { return s.msg.Header }
func (s *settled) Term() error          { s.termed = true; return nil }
func (s *settled) Nak() error           { s.naked = true; return nil }

func TestCancelRejectedOnRunningActionIsDeadLettered(t *testing.T) {
	h := newHarness(t, models.TenantConfig{})
	a := h.addAction(models.Action{Status: models.StatusRunning})

	msg := message(t, dmf.TypeEvent, dmf.TopicUpdateActionStatus,
		&models.ActionUpdateStatus{ActionID: a.ID, ActionStatus: models.ReportedCancelRejected}, nil)

	err := h.router.Route(context.Background(), envelope(t, msg))
	require.ErrorIs(t, err, dmf.ErrInvalidStatusTransition)

	var published []*nats.Msg

	deadLetters := failure.NewMockDeadLetterPublisher(gomock.NewController(t))
	deadLetters.EXPECT().PublishSync(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, m *nats.Msg) error {
		published = append(published, m)

		return nil
	})

	topology := func(s string) string { return "dmf.deadletter." + s }
	policy := failure.NewPolicy(failure.NewClassifier(), deadLetters, topology, time.Hour, logger.NewTestLogger())
	delivery := &settled{msg: msg}

	require.NoError(t, policy.Handle(context.Background(), delivery, err))
	assert.True(t, delivery.termed)
	assert.False(t, delivery.naked)

	require.Len(t, published, 1)
	assert.Equal(t, "dmf.deadletter.dmf.in.acme.dev1", published[0].Subject)
	assert.Equal(t, msg.Data, published[0].Data)

	got := h.store.Action(a.ID)
	assert.Equal(t, models.StatusRunning, got.Status)
	assert.Len(t, got.History, 1)
}

func TestCancelRejectedResumesCancelingAction(t *testing.T) {
	h := newHarness(t, models.TenantConfig{})
	a := h.addAction(models.Action{Status: models.StatusCanceling})

	require.NoError(t, h.report(t, a.ID, models.ReportedCancelRejected, nil))

	got := h.store.Action(a.ID)
	assert.Equal(t, models.StatusRunning, got.Status)
	assert.True(t, got.Active)
	assert.Equal(t, []models.Status{models.StatusCanceling, models.StatusCancelRejected}, statuses(got))
}

func TestStatusReportFailures(t *testing.T) {
	tests := []struct {
		name   string
		body   func(actionID int64) any
		target error
	}{
		{
			name:   "unknown code",
			body:   func(id int64) any { return map[string]any{"actionId": id, "actionStatus": "EXPLODED"} },
			target: status.ErrUnknownStatus,
		},
		{
			name: "unknown action",
			body: func(int64) any {
				return &models.ActionUpdateStatus{ActionID: 999, ActionStatus: models.ReportedRunning}
			},
			target: dmf.ErrEntityNotFound,
		},
		{
			name: "too many messages",
			body: func(id int64) any {
				return &models.ActionUpdateStatus{
					ActionID:     id,
					ActionStatus: models.ReportedRunning,
					Messages:     strings.Split(strings.Repeat("m,", status.DefaultMaxMessages), ","),
				}
			},
			target: dmf.ErrQuotaExceeded,
		},
		{
			name:   "malformed body",
			body:   func(int64) any { return map[string]any{"actionId": "one"} },
			target: dmf.ErrMalformedMessage,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, models.TenantConfig{})
			a := h.addAction(models.Action{})

			msg := message(t, dmf.TypeEvent, dmf.TopicUpdateActionStatus, tc.body(a.ID), nil)
			err := h.router.Route(context.Background(), envelope(t, msg))

			require.ErrorIs(t, err, tc.target)
			assert.True(t, failure.NewClassifier().Classify(err).Fatal)
			assert.Len(t, h.store.Action(a.ID).History, 1)
		})
	}
}

func TestStatusReportForOtherDevice(t *testing.T) {
	h := newHarness(t, models.TenantConfig{})
	other := h.store.AddAction(&models.Action{
		Tenant:            testTenant,
		ControllerID:      "dev2",
		DistributionSetID: h.ds.ID,
		Active:            true,
	})

	require.ErrorIs(t, h.report(t, other.ID, models.ReportedRunning, nil), dmf.ErrEntityNotFound)
}

func TestConfirmationFlow(t *testing.T) {
	h := newHarness(t, models.TenantConfig{ConfirmationFlowEnabled: true})
	a := h.addAction(models.Action{Status: models.StatusWaitForConfirmation})

	require.NoError(t, h.report(t, a.ID, models.ReportedDenied, nil))
	assert.Equal(t, models.StatusWaitForConfirmation, h.store.Action(a.ID).Status)

	published, _ := h.sent.all()
	assert.Empty(t, published)

	require.NoError(t, h.report(t, a.ID, models.ReportedConfirmed, nil))

	got := h.store.Action(a.ID)
	assert.Equal(t, models.StatusRunning, got.Status)
	assert.Equal(t, []models.Status{
		models.StatusWaitForConfirmation, models.StatusWaitForConfirmation, models.StatusRunning,
	}, statuses(got))

	published, _ = h.sent.all()
	require.Len(t, published, 1)
	assert.Equal(t, string(dmf.TopicDownloadAndInstall), published[0].Header.Get(dmf.HeaderTopic))
}

func TestDownloadOnlyFinishesOnDownloaded(t *testing.T) {
	h := newHarness(t, models.TenantConfig{})
	a := h.addAction(models.Action{Type: models.ActionTypeDownloadOnly})

	require.NoError(t, h.report(t, a.ID, models.ReportedDownloaded, nil))

	got := h.store.Action(a.ID)
	assert.Equal(t, models.StatusFinished, got.Status)
	assert.False(t, got.Active)
	assert.Equal(t, models.StatusDownloaded, got.History[len(got.History)-1].Status)
}

func TestOpenMaintenanceWindowRedispatches(t *testing.T) {
	h := newHarness(t, models.TenantConfig{})
	a := h.addAction(models.Action{
		Type:              models.ActionTypeTimeForced,
		MaintenanceWindow: &models.MaintenanceWindow{Schedule: "0 0 * * *", Duration: time.Hour},
	})

	require.NoError(t, h.report(t, a.ID, models.ReportedRunning, nil))

	published, _ := h.sent.all()
	require.Len(t, published, 1)
	assert.Equal(t, string(dmf.TopicDownloadAndInstall), published[0].Header.Get(dmf.HeaderTopic))
	assert.Equal(t, "dmf.out.default.acme.dev1", published[0].Subject)
}

func TestThingCreated(t *testing.T) {
	h := newHarness(t, models.TenantConfig{})
	h.addAction(models.Action{})

	target := h.store.Target(testTenant, thing)
	target.Address = models.Address{}
	target.RequestAttributes = true
	h.store.AddTarget(target)

	msg := message(t, dmf.TypeThingCreated, "", &models.CreateThing{Name: "Device 1", Type: "gateway"},
		map[string]string{dmf.HeaderReplyTo: "dmf.out.site-a"})
	require.NoError(t, h.router.Route(context.Background(), envelope(t, msg)))

	got := h.store.Target(testTenant, thing)
	assert.Equal(t, "nats://dmf.out.site-a", got.Address.String())
	assert.Equal(t, "Device 1", got.Name)
	assert.Equal(t, h.now, got.LastSeen)

	published, _ := h.sent.all()
	require.Len(t, published, 2)
	assert.Equal(t, string(dmf.TopicDownloadAndInstall), published[0].Header.Get(dmf.HeaderTopic))
	assert.Equal(t, string(dmf.TopicRequestAttributesUpdate), published[1].Header.Get(dmf.HeaderTopic))
	assert.Equal(t, "dmf.out.site-a.acme.dev1", published[1].Subject)
}

func TestThingCreatedWithAttributesSkipsRequest(t *testing.T) {
	h := newHarness(t, models.TenantConfig{})

	target := h.store.Target(testTenant, thing)
	target.RequestAttributes = true
	h.store.AddTarget(target)

	body := &models.CreateThing{AttributeUpdate: &models.AttributeUpdate{Attributes: map[string]string{"hw": "rev2"}}}
	msg := message(t, dmf.TypeThingCreated, "", body, map[string]string{dmf.HeaderReplyTo: replyTo})
	require.NoError(t, h.router.Route(context.Background(), envelope(t, msg)))

	got := h.store.Target(testTenant, thing)
	assert.Equal(t, map[string]string{"hw": "rev2"}, got.Attributes)
	assert.False(t, got.RequestAttributes)

	published, _ := h.sent.all()
	assert.Empty(t, published)
}

func TestThingCreatedRequiresReplyTo(t *testing.T) {
	h := newHarness(t, models.TenantConfig{})

	err := h.router.Route(context.Background(), envelope(t, message(t, dmf.TypeThingCreated, "", nil, nil)))
	require.ErrorIs(t, err, dmf.ErrMissingHeader)
}

func TestThingRemoved(t *testing.T) {
	h := newHarness(t, models.TenantConfig{})
	a := h.addAction(models.Action{})

	require.NoError(t, h.router.Route(context.Background(), envelope(t, message(t, dmf.TypeThingRemoved, "", nil, nil))))
	assert.Nil(t, h.store.Target(testTenant, thing))
	assert.Nil(t, h.store.Action(a.ID))

	err := h.router.Route(context.Background(), envelope(t, message(t, dmf.TypeThingRemoved, "", nil, nil)))
	require.ErrorIs(t, err, dmf.ErrEntityNotFound)
}

func TestUpdateAttributes(t *testing.T) {
	h := newHarness(t, models.TenantConfig{})

	target := h.store.Target(testTenant, thing)
	target.Attributes = map[string]string{"a": "1", "b": "2"}
	target.RequestAttributes = true
	h.store.AddTarget(target)

	update := func(mode models.AttributeUpdateMode, attrs map[string]string) error {
		msg := message(t, dmf.TypeEvent, dmf.TopicUpdateAttributes, &models.AttributeUpdate{Attributes: attrs, Mode: mode}, nil)

		return h.router.Route(context.Background(), envelope(t, msg))
	}

	require.NoError(t, update("", map[string]string{"b": "3", "c": "4"}))
	assert.Equal(t, map[string]string{"a": "1", "b": "3", "c": "4"}, h.store.Target(testTenant, thing).Attributes)
	assert.False(t, h.store.Target(testTenant, thing).RequestAttributes)

	require.NoError(t, update(models.AttributeUpdateRemove, map[string]string{"a": ""}))
	assert.Equal(t, map[string]string{"b": "3", "c": "4"}, h.store.Target(testTenant, thing).Attributes)

	require.NoError(t, update(models.AttributeUpdateReplace, map[string]string{"z": "9"}))
	assert.Equal(t, map[string]string{"z": "9"}, h.store.Target(testTenant, thing).Attributes)

	require.ErrorIs(t, update("APPEND", map[string]string{"x": "1"}), dmf.ErrProtocolViolation)
	require.ErrorIs(t, update("", map[string]string{strings.Repeat("k", 200): "1"}), dmf.ErrConstraintViolation)
	assert.Equal(t, map[string]string{"z": "9"}, h.store.Target(testTenant, thing).Attributes)
}

func TestUpdateAutoConfirm(t *testing.T) {
	h := newHarness(t, models.TenantConfig{ConfirmationFlowEnabled: true})
	a := h.addAction(models.Action{Status: models.StatusWaitForConfirmation})

	msg := message(t, dmf.TypeEvent, dmf.TopicUpdateAutoConfirm,
		&models.AutoConfirmation{Enabled: true, Initiator: "ops", Remark: "fleet rollout"}, nil)
	require.NoError(t, h.router.Route(context.Background(), envelope(t, msg)))

	target := h.store.Target(testTenant, thing)
	require.NotNil(t, target.AutoConfirm)
	assert.Equal(t, "ops", target.AutoConfirm.Initiator)

	got := h.store.Action(a.ID)
	assert.Equal(t, models.StatusRunning, got.Status)
	assert.Contains(t, got.History[len(got.History)-1].Messages[0], `"ops"`)

	published, _ := h.sent.all()
	require.Len(t, published, 1)
	assert.Equal(t, string(dmf.TopicDownloadAndInstall), published[0].Header.Get(dmf.HeaderTopic))

	msg = message(t, dmf.TypeEvent, dmf.TopicUpdateAutoConfirm, &models.AutoConfirmation{}, nil)
	require.NoError(t, h.router.Route(context.Background(), envelope(t, msg)))
	assert.Nil(t, h.store.Target(testTenant, thing).AutoConfirm)
}

func TestPing(t *testing.T) {
	h := newHarness(t, models.TenantConfig{})

	msg := nats.NewMsg("dmf.in.acme.ping")
	msg.Header.Set(dmf.HeaderType, string(dmf.TypePing))
	msg.Header.Set(dmf.HeaderTenant, "unknown-tenant")
	msg.Header.Set(dmf.HeaderCorrelationID, "ping-7")
	msg.Header.Set(dmf.HeaderReplyTo, "dmf.out.replies")

	require.NoError(t, h.router.Route(context.Background(), envelope(t, msg)))

	_, responses := h.sent.all()
	require.Len(t, responses, 1)

	resp := responses[0]
	assert.Equal(t, "dmf.out.replies", resp.Subject)
	assert.Equal(t, string(dmf.TypePingResponse), resp.Header.Get(dmf.HeaderType))
	assert.Equal(t, "ping-7", resp.Header.Get(dmf.HeaderCorrelationID))
	assert.Equal(t, dmf.ContentTypeText, resp.Header.Get(dmf.HeaderContentType))
	assert.Equal(t, strconv.FormatInt(h.now.UnixMilli(), 10), string(resp.Data))
}

func TestRouteRequiresAuthentication(t *testing.T) {
	ctrl := gomock.NewController(t)
	authn := NewMockAuthenticator(ctrl)
	dispatcher := NewMockDispatcher(ctrl)

	authn.EXPECT().Authenticate(gomock.Any(), gomock.Any()).Return(nil, dmf.ErrUnauthorized)

	s := memory.New()
	r := NewRouter(s.Repositories(), authn, dispatcher, dmf.NewMockPublisher(ctrl), Config{}, logger.NewTestLogger())

	err := r.Route(context.Background(), envelope(t, message(t, dmf.TypeThingRemoved, "", nil, nil)))
	require.ErrorIs(t, err, dmf.ErrUnauthorized)
}

func TestRouteRunsUnderAuthenticatedIdentity(t *testing.T) {
	ctrl := gomock.NewController(t)
	authn := NewMockAuthenticator(ctrl)
	dispatcher := NewMockDispatcher(ctrl)
	errBroker := errors.New("broker unavailable")

	authn.EXPECT().Authenticate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, token *models.TenantSecurityToken) (*tenant.Info, error) {
			assert.Equal(t, testTenant, token.Tenant)
			assert.Equal(t, thing, token.ControllerID)

			return &tenant.Info{Tenant: testTenant, ControllerID: thing, Kind: tenant.KindController}, nil
		})
	dispatcher.EXPECT().Redispatch(gomock.Any(), thing).
		DoAndReturn(func(ctx context.Context, _ string) error {
			info, err := tenant.FromContext(ctx)
			require.NoError(t, err)
			assert.Equal(t, tenant.KindController, info.Kind)

			return errBroker
		})

	s := memory.New()
	r := NewRouter(s.Repositories(), authn, dispatcher, dmf.NewMockPublisher(ctrl), Config{}, logger.NewTestLogger())

	msg := message(t, dmf.TypeThingCreated, "", nil, map[string]string{dmf.HeaderReplyTo: replyTo})
	err := r.Route(context.Background(), envelope(t, msg))

	require.ErrorIs(t, err, errBroker)
	assert.False(t, failure.NewClassifier().Classify(err).Fatal)
	assert.NotNil(t, s.Target(testTenant, thing))
}

func TestAnonymousDownloadDoesNotAuthorizeDeviceMessages(t *testing.T) {
	h := newHarness(t, models.TenantConfig{AnonymousDownloadEnabled: true, TargetTokenEnabled: true})

	log := logger.NewTestLogger()
	repos := h.store.Repositories()
	builder := dispatch.NewBuilder(repos.DistributionSets, dispatch.NewPatternURLResolver(nil))
	dispatcher := outbound.NewDispatcher(repos, builder, h.pub, outbound.Config{}, log)
	router := NewRouter(repos, auth.NewDefaultChain(auth.Config{}, repos, log), dispatcher, h.pub, Config{}, log)

	err := router.Route(context.Background(), envelope(t, message(t, dmf.TypeThingRemoved, "", nil, nil)))
	require.ErrorIs(t, err, dmf.ErrUnauthorized)
	assert.True(t, failure.NewClassifier().Classify(err).Fatal)
	assert.NotNil(t, h.store.Target(testTenant, thing))
}

func TestRouteRejectsDownloadOnlyIdentity(t *testing.T) {
	ctrl := gomock.NewController(t)
	authn := NewMockAuthenticator(ctrl)

	authn.EXPECT().Authenticate(gomock.Any(), gomock.Any()).Return(&tenant.Info{
		Tenant:   testTenant,
		Kind:     tenant.KindAnonymous,
		Strategy: auth.StrategyAnonymousDownload,
	}, nil)

	s := memory.New()
	r := NewRouter(s.Repositories(), authn, NewMockDispatcher(ctrl), dmf.NewMockPublisher(ctrl), Config{}, logger.NewTestLogger())

	err := r.Route(context.Background(), envelope(t, message(t, dmf.TypeThingRemoved, "", nil, nil)))
	require.ErrorIs(t, err, dmf.ErrUnauthorized)
}

// routerWith builds a router over repos that redispatches through dispatcher.
func (h *harness) routerWith(repos repository.Store, dispatcher Dispatcher) *Router {
	log := logger.NewTestLogger()
	chain := auth.NewDefaultChain(auth.Config{AnonymousFallback: true}, repos, log)

	return NewRouter(repos, chain, dispatcher, h.pub, Config{}, log, WithClock(func() time.Time { return h.now }))
}

// closingActions finishes an action right after the router loaded it, as a concurrent
// consumer would.
type closingActions struct {
	repository.Actions
	once sync.Once
}

func (c *closingActions) Get(ctx context.Context, id int64) (*models.Action, error) {
	a, err := c.Actions.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	c.once.Do(func() {
		done := a.Clone()
		status.Apply(done, models.ActionStatus{Status: models.StatusFinished, Timestamp: time.Now()})
		err = c.Actions.Update(ctx, done)
	})

	return a, err
}

func TestConcurrentlyClosedActionIsNotReopened(t *testing.T) {
	h := newHarness(t, models.TenantConfig{})
	a1 := h.addAction(models.Action{})

	repos := h.store.Repositories()
	repos.Actions = &closingActions{Actions: repos.Actions}

	router := h.routerWith(repos, NewMockDispatcher(gomock.NewController(t)))

	body := &models.ActionUpdateStatus{ActionID: a1.ID, ActionStatus: models.ReportedRunning}
	err := router.Route(context.Background(), envelope(t, message(t, dmf.TypeEvent, dmf.TopicUpdateActionStatus, body, nil)))
	require.NoError(t, err)

	got := h.store.Action(a1.ID)
	assert.Equal(t, models.StatusFinished, got.Status)
	assert.False(t, got.Active)
	assert.Equal(t, []models.Status{models.StatusDownload, models.StatusFinished}, statuses(got))
}

func TestRedeliveredReportRetriesRedispatchWithoutDuplicatingHistory(t *testing.T) {
	h := newHarness(t, models.TenantConfig{})
	a1 := h.addAction(models.Action{})

	errBroker := errors.New("broker unavailable")
	dispatcher := NewMockDispatcher(gomock.NewController(t))
	gomock.InOrder(
		dispatcher.EXPECT().Redispatch(gomock.Any(), thing).Return(errBroker),
		dispatcher.EXPECT().Redispatch(gomock.Any(), thing).Return(nil),
	)

	router := h.routerWith(h.store.Repositories(), dispatcher)
	body := &models.ActionUpdateStatus{ActionID: a1.ID, ActionStatus: models.ReportedFinished}
	headers := map[string]string{dmf.HeaderCorrelationID: "c-9"}

	err := router.Route(context.Background(), envelope(t, message(t, dmf.TypeEvent, dmf.TopicUpdateActionStatus, body, headers)))
	require.ErrorIs(t, err, errBroker)
	assert.False(t, failure.NewClassifier().Classify(err).Fatal)

	err = router.Route(context.Background(), envelope(t, message(t, dmf.TypeEvent, dmf.TopicUpdateActionStatus, body, headers)))
	require.NoError(t, err)

	assert.Equal(t, []models.Status{models.StatusDownload, models.StatusFinished}, statuses(h.store.Action(a1.ID)))
}

func TestRedispatchFailureWithoutCorrelationIDIsNotRequeued(t *testing.T) {
	h := newHarness(t, models.TenantConfig{})
	a1 := h.addAction(models.Action{})

	dispatcher := NewMockDispatcher(gomock.NewController(t))
	dispatcher.EXPECT().Redispatch(gomock.Any(), thing).Return(errors.New("broker unavailable"))

	router := h.routerWith(h.store.Repositories(), dispatcher)
	body := &models.ActionUpdateStatus{ActionID: a1.ID, ActionStatus: models.ReportedFinished}

	err := router.Route(context.Background(), envelope(t, message(t, dmf.TypeEvent, dmf.TopicUpdateActionStatus, body, nil)))
	require.NoError(t, err)

	assert.Equal(t, []models.Status{models.StatusDownload, models.StatusFinished}, statuses(h.store.Action(a1.ID)))
}
