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

package dmfconsumer

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleetradar/pkg/dmf"
	"github.com/carverauto/fleetradar/pkg/dmf/dispatch"
	"github.com/carverauto/fleetradar/pkg/logger"
	"github.com/carverauto/fleetradar/pkg/models"
	"github.com/carverauto/fleetradar/pkg/repository/memory"
)

const testTenant = "acme"

func runJetStreamServer(t *testing.T) *server.Server {
	t.Helper()

	srv, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	})
	require.NoError(t, err)

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Fatalf("embedded NATS server not ready for connections")
	}

	t.Cleanup(srv.Shutdown)

	return srv
}

func validConfig() *Config {
	return &Config{
		ListenAddr: "127.0.0.1:0",
		NodeID:     "node-a",
		NATSURL:    "nats://127.0.0.1:4222",
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, defaultWorkers, cfg.Workers)
	assert.Equal(t, defaultPartitionSize, cfg.PartitionSize)
	assert.Equal(t, defaultMultiAssignmentCap, cfg.MultiAssignmentCap)
	assert.Equal(t, defaultMaxStatusMessages, cfg.MaxStatusMessages)
	assert.Equal(t, StorageMemory, cfg.Storage.Type)
	assert.Equal(t, "DMF_INBOUND", cfg.Streams.InboundStream)
	assert.Equal(t, "dmf-inbound", cfg.Streams.InboundConsumer)
	assert.Equal(t, models.Duration(defaultRetryDelay), cfg.RetryDelay)
}

func TestConfigValidateReportsAllProblems(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{Type: StorageCNPG}, PublishRate: -1}
	cfg.ApplyDefaults()

	err := cfg.Validate()
	require.Error(t, err)

	for _, want := range []error{ErrMissingListenAddr, ErrMissingNodeID, ErrMissingNATSURL, ErrMissingCNPGConfig, ErrInvalidPublishRate} {
		assert.ErrorIs(t, err, want)
	}

	cfg = validConfig()
	cfg.Storage.Type = "sqlite"
	cfg.ApplyDefaults()
	require.ErrorIs(t, cfg.Validate(), ErrUnknownStorage)
}

func TestConfigUnmarshal(t *testing.T) {
	raw := `{
		"listen_addr": ":50090",
		"node_id": "node-a",
		"nats_url": "nats://nats:4222",
		"retry_delay": "2s",
		"fatal_errors": ["*inbound.validationError"],
		"auth": {"anonymous_fallback": true},
		"storage": {"type": "cnpg", "cnpg": {"host": "cnpg-rw", "database": "fleetradar"}},
		"tenant_config": {"kv_bucket": "tenants"}
	}`

	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	cfg.ApplyDefaults()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, models.Duration(2*time.Second), cfg.RetryDelay)
	assert.True(t, cfg.Auth.AnonymousFallback)
	assert.Equal(t, "cnpg-rw", cfg.Storage.CNPG.Host)
	assert.Equal(t, "tenants", cfg.TenantConfig.KVBucket)
	assert.Equal(t, "nats://nats:4222", cfg.NATS().URL)
}

type harness struct {
	svc   *Service
	nc    *nats.Conn
	js    jetstream.JetStream
	store *memory.Store
}

func startService(t *testing.T) *harness {
	t.Helper()

	srv := runJetStreamServer(t)

	store := memory.New()
	store.AddTenant(testTenant)

	cfg := validConfig()
	cfg.NATSURL = srv.ClientURL()
	cfg.Workers = 1
	cfg.RetryDelay = models.Duration(10 * time.Millisecond)
	cfg.ArtifactURLs = []dispatch.URLPattern{{
		Name:     "HTTPS",
		Protocol: "https",
		Hostname: "files.example.com",
		Pattern:  "{protocol}://{hostname}/{tenant}/{softwareModuleId}/{artifactFileName}",
	}}

	svc, err := NewService(cfg, logger.NewTestLogger(), WithStore(store.Repositories()))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, svc.Start(ctx))

	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		assert.NoError(t, svc.Stop(stopCtx))
	})

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	return &harness{svc: svc, nc: nc, js: js, store: store}
}

func (h *harness) publishInbound(t *testing.T, headers map[string]string, body []byte) {
	t.Helper()

	msg := nats.NewMsg("dmf.in." + testTenant)
	for k, v := range headers {
		msg.Header.Set(k, v)
	}

	msg.Data = body

	_, err := h.js.PublishMsg(context.Background(), msg)
	require.NoError(t, err)
}

func (h *harness) lastMessage(t *testing.T, stream, subject string) *jetstream.RawStreamMsg {
	t.Helper()

	s, err := h.js.Stream(context.Background(), stream)
	require.NoError(t, err)

	var found *jetstream.RawStreamMsg

	require.Eventually(t, func() bool {
		msg, err := s.GetLastMsgForSubject(context.Background(), subject)
		if err != nil {
			return false
		}

		found = msg

		return true
	}, 10*time.Second, 20*time.Millisecond)

	return found
}

func TestServiceAnswersPing(t *testing.T) {
	h := startService(t)

	replies, err := h.nc.SubscribeSync("dev.replies.dev1")
	require.NoError(t, err)

	h.publishInbound(t, map[string]string{
		dmf.HeaderType:          string(dmf.TypePing),
		dmf.HeaderTenant:        testTenant,
		dmf.HeaderReplyTo:       "dev.replies.dev1",
		dmf.HeaderCorrelationID: "c-1",
	}, nil)

	reply, err := replies.NextMsg(10 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, string(dmf.TypePingResponse), reply.Header.Get(dmf.HeaderType))
	assert.Equal(t, "c-1", reply.Header.Get(dmf.HeaderCorrelationID))
	assert.Equal(t, dmf.ContentTypeText, reply.Header.Get(dmf.HeaderContentType))
	assert.NotEmpty(t, reply.Data)
}

func TestServiceDeadLettersMalformedMessages(t *testing.T) {
	h := startService(t)

	h.publishInbound(t, map[string]string{
		dmf.HeaderTenant:  testTenant,
		dmf.HeaderThingID: "dev1",
	}, []byte(`{"actionId":1}`))

	dead := h.lastMessage(t, "DMF_DEADLETTER", "dmf.deadletter.dmf.in."+testTenant)
	assert.Contains(t, dead.Header.Get(dmf.HeaderDeadLetterReason), "missing header")
	assert.Equal(t, "dmf.in."+testTenant, dead.Header.Get(dmf.HeaderDeadLetterSubject))
	assert.JSONEq(t, `{"actionId":1}`, string(dead.Data))
}

func TestServiceDispatchesAssignmentEvents(t *testing.T) {
	h := startService(t)

	ds := h.store.AddDistributionSet(&models.DistributionSet{
		Tenant:  testTenant,
		Name:    "firmware",
		Version: "2.0",
		Modules: []*models.SoftwareModule{
			{Type: "os", Version: "2.0", Artifacts: []*models.Artifact{{Filename: "os.bin", SHA1: "a1", MD5: "m1", Size: 10}}},
		},
	})
	h.store.AddTarget(&models.Target{
		Tenant:       testTenant,
		ControllerID: "dev1",
		Address:      models.Address{Scheme: models.AddressSchemeNATS, Subject: "dmf.out.default"},
	})
	action := h.store.AddAction(&models.Action{
		Tenant:            testTenant,
		ControllerID:      "dev1",
		DistributionSetID: ds.ID,
		Type:              models.ActionTypeForced,
		Active:            true,
	})

	pub, err := h.svc.Events()
	require.NoError(t, err)

	require.NoError(t, pub.Assignment(context.Background(), &models.AssignmentEvent{
		Tenant:            testTenant,
		DistributionSetID: ds.ID,
		Actions:           []models.ActionRef{{ControllerID: "dev1", ActionID: action.ID}},
	}))

	msg := h.lastMessage(t, "DMF_OUTBOUND", "dmf.out.default."+testTenant+".dev1")
	assert.Equal(t, string(dmf.TopicDownloadAndInstall), msg.Header.Get(dmf.HeaderTopic))

	var req models.DownloadRequest
	require.NoError(t, json.Unmarshal(msg.Data, &req))
	assert.Equal(t, action.ID, req.ActionID)
	require.Len(t, req.SoftwareModules, 1)
	assert.Equal(t, "https://files.example.com/acme/"+
		strconv.FormatInt(ds.Modules[0].ID, 10)+"/os.bin", req.SoftwareModules[0].Artifacts[0].URLs["HTTPS"])
}

func TestEventsRequireStart(t *testing.T) {
	svc, err := NewService(validConfig(), logger.NewTestLogger())
	require.NoError(t, err)

	_, err = svc.Events()
	require.ErrorIs(t, err, errNotStarted)
}
