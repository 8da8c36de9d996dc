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

package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/fleetradar/pkg/logger"
	"github.com/carverauto/fleetradar/pkg/models"
	"github.com/carverauto/fleetradar/pkg/tenant"
)

func runServer(t *testing.T) *server.Server {
	t.Helper()

	srv, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1})
	require.NoError(t, err)

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Fatalf("embedded NATS server not ready for connections")
	}

	t.Cleanup(srv.Shutdown)

	return srv
}

func cloudEvent(t *testing.T, source string, kind Kind, tenantName string, payload any) []byte {
	t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	body, err := json.Marshal(models.CloudEvent{
		SpecVersion: specVersion,
		ID:          "evt-1",
		Source:      source,
		Type:        kind.Type(),
		Subject:     tenantName,
		Data:        data,
	})
	require.NoError(t, err)

	return body
}

func TestHandleForwardsLocalEvents(t *testing.T) {
	handler := NewMockHandler(gomock.NewController(t))
	sub, err := NewSubscriber(nil, "node-a", "", handler, logger.NewTestLogger())
	require.NoError(t, err)

	handler.EXPECT().TargetDeleted(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, ev *models.TargetDeletedEvent) error {
			info, err := tenant.FromContext(ctx)
			require.NoError(t, err)
			assert.Equal(t, "acme", info.Tenant)
			assert.True(t, tenant.IsSystem(ctx))
			assert.Equal(t, "dev1", ev.ControllerID)
			assert.Equal(t, "nats://dmf.out.default", ev.Address)

			return nil
		})

	payload := &models.TargetDeletedEvent{Tenant: "acme", ControllerID: "dev1", Address: "nats://dmf.out.default"}
	require.NoError(t, sub.Handle(context.Background(), cloudEvent(t, "node-a", KindTargetDeleted, "acme", payload)))
}

func TestHandleDropsForeignEvents(t *testing.T) {
	handler := NewMockHandler(gomock.NewController(t))
	sub, err := NewSubscriber(nil, "node-a", "", handler, logger.NewTestLogger())
	require.NoError(t, err)

	payload := &models.AssignmentEvent{Tenant: "acme", DistributionSetID: 1}
	require.NoError(t, sub.Handle(context.Background(), cloudEvent(t, "node-b", KindAssignment, "acme", payload)))
}

func TestHandleRejectsBadEvents(t *testing.T) {
	handler := NewMockHandler(gomock.NewController(t))
	sub, err := NewSubscriber(nil, "node-a", "", handler, logger.NewTestLogger())
	require.NoError(t, err)

	ctx := context.Background()

	require.ErrorIs(t, sub.Handle(ctx, cloudEvent(t, "node-a", "rollout", "acme", struct{}{})), ErrUnknownKind)
	require.ErrorIs(t, sub.Handle(ctx, cloudEvent(t, "node-a", KindCancel, "", struct{}{})), tenant.ErrTenantRequired)
	require.Error(t, sub.Handle(ctx, []byte("not json")))
	require.Error(t, sub.Handle(ctx, cloudEvent(t, "node-a", KindCancel, "acme", []int{1})))
}

func TestNodeIDRequired(t *testing.T) {
	_, err := NewPublisher(nil, "", "")
	require.ErrorIs(t, err, ErrNodeIDRequired)

	_, err = NewSubscriber(nil, "", "", nil, logger.NewTestLogger())
	require.ErrorIs(t, err, ErrNodeIDRequired)
}

func TestPublishAndSubscribe(t *testing.T) {
	srv := runServer(t)

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)

	defer nc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	received := make(chan *models.AssignmentEvent, 1)
	handler := NewMockHandler(gomock.NewController(t))
	handler.EXPECT().Assign(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ev *models.AssignmentEvent) error {
			received <- ev

			return nil
		})

	sub, err := NewSubscriber(nc, "node-a", "test.events", handler, logger.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, sub.Start(ctx))

	defer func() { _ = sub.Stop() }()

	require.NoError(t, nc.Flush())

	local, err := NewPublisher(nc, "node-a", "test.events")
	require.NoError(t, err)

	foreign, err := NewPublisher(nc, "node-b", "test.events")
	require.NoError(t, err)

	ev := &models.AssignmentEvent{
		Tenant:            "acme",
		DistributionSetID: 9,
		Actions:           []models.ActionRef{{ControllerID: "dev1", ActionID: 3}},
	}

	require.NoError(t, foreign.Assignment(ctx, ev))
	require.NoError(t, local.Assignment(ctx, ev))

	select {
	case got := <-received:
		assert.Equal(t, ev, got)
	case <-ctx.Done():
		t.Fatal("assignment event not delivered")
	}
}
