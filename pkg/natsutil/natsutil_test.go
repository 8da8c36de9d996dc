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
	"testing"
	"time"

	"github.com/nats-io/jwt/v2"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/nats-io/nkeys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleetradar/pkg/logger"
	"github.com/carverauto/fleetradar/pkg/models"
)

var errTestFixture = errors.New("fixture")

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

func TestEnsureSubjectList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		subjects []string
		subject  string
		want     []string
	}{
		{name: "adds subject when list empty", subject: "dmf.in.>", want: []string{"dmf.in.>"}},
		{name: "keeps list when wildcard covers", subjects: []string{"dmf.>"}, subject: "dmf.in.>", want: []string{"dmf.>"}},
		{name: "keeps list when identical", subjects: []string{"dmf.in.>"}, subject: "dmf.in.>", want: []string{"dmf.in.>"}},
		{name: "appends when unmatched", subjects: []string{"legacy.dmf.*"}, subject: "dmf.in.>", want: []string{"legacy.dmf.*", "dmf.in.>"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, ensureSubjectList(append([]string(nil), tc.subjects...), tc.subject))
		})
	}
}

func TestMatchesSubject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pattern  string
		subject  string
		expected bool
	}{
		{"exact match", "dmf.out.default.acme.dev1", "dmf.out.default.acme.dev1", true},
		{"single wildcard", "dmf.out.*.acme.dev1", "dmf.out.default.acme.dev1", true},
		{"greater wildcard", "dmf.out.>", "dmf.out.default.acme.dev1", true},
		{"greater wildcard needs a token", "dmf.out.>", "dmf.out", false},
		{"no match length", "dmf.out.*", "dmf.out.default.acme", false},
		{"no match tokens", "dmf.in.*", "dmf.out.default", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, matchesSubject(tc.pattern, tc.subject))
		})
	}
}

func TestIsStreamMissingErr(t *testing.T) {
	t.Parallel()

	assert.True(t, isStreamMissingErr(jetstream.ErrStreamNotFound))
	assert.True(t, isStreamMissingErr(nats.ErrNoResponders))
	assert.False(t, isStreamMissingErr(errTestFixture))
}

func TestEnsureTopologyCreatesStreams(t *testing.T) {
	srv := runJetStreamServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	nc, err := Connect(ctx, &models.NATSConfig{URL: srv.ClientURL()}, ConnectOptions{}, logger.NewTestLogger())
	require.NoError(t, err)

	defer nc.Close()

	js, err := JetStream(nc, "")
	require.NoError(t, err)

	topo := &Topology{}
	require.NoError(t, EnsureTopology(ctx, js, topo))

	// idempotent
	require.NoError(t, EnsureTopology(ctx, js, topo))

	auth, err := js.Stream(ctx, DefaultAuthStream)
	require.NoError(t, err)

	info := auth.CachedInfo()
	assert.Equal(t, jetstream.MemoryStorage, info.Config.Storage)
	assert.Equal(t, 30*time.Second, info.Config.MaxAge)
	assert.Equal(t, jetstream.DiscardOld, info.Config.Discard)

	dead, err := js.Stream(ctx, DefaultDeadLetterStream)
	require.NoError(t, err)
	assert.Equal(t, 21*24*time.Hour, dead.CachedInfo().Config.MaxAge)

	_, err = js.Consumer(ctx, DefaultInboundStream, DefaultInboundConsumer)
	require.NoError(t, err)

	assert.Equal(t, "dmf.deadletter.dmf.in.acme.dev1", topo.DeadLetterSubjectFor("dmf.in.acme.dev1"))
}

func TestPublisherPublishesWithCorrelationID(t *testing.T) {
	srv := runJetStreamServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	nc, err := Connect(ctx, &models.NATSConfig{URL: srv.ClientURL()}, ConnectOptions{}, logger.NewTestLogger())
	require.NoError(t, err)

	defer nc.Close()

	js, err := JetStream(nc, "")
	require.NoError(t, err)
	require.NoError(t, EnsureTopology(ctx, js, &Topology{}))

	pub := NewPublisher(nc, js, logger.NewTestLogger(), WithRateLimit(1000, 10))

	msg := nats.NewMsg("dmf.out.default.acme.dev1")
	msg.Data = []byte(`{"actionId":1}`)

	require.NoError(t, pub.Publish(ctx, msg))
	require.NoError(t, pub.Close(ctx))

	stored, err := js.Stream(ctx, DefaultOutboundStream)
	require.NoError(t, err)

	raw, err := stored.GetLastMsgForSubject(ctx, "dmf.out.default.acme.dev1")
	require.NoError(t, err)
	assert.NotEmpty(t, raw.Header.Get(CorrelationHeader))
	assert.JSONEq(t, `{"actionId":1}`, string(raw.Data))

	require.ErrorIs(t, pub.Publish(ctx, nats.NewMsg("dmf.out.default.acme.dev1")), errPublisherClosed)
}

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	msg := nats.NewMsg("x")
	msg.Header.Set(CorrelationHeader, "abc")

	assert.Equal(t, "abc", EnsureCorrelationID(msg))

	fresh := &nats.Msg{Subject: "y"}
	assert.NotEmpty(t, EnsureCorrelationID(fresh))
}

func TestCredentialOptions(t *testing.T) {
	user, err := nkeys.CreateUser()
	require.NoError(t, err)

	seed, err := user.Seed()
	require.NoError(t, err)

	pub, err := user.PublicKey()
	require.NoError(t, err)

	account, err := nkeys.CreateAccount()
	require.NoError(t, err)

	now := time.Now()

	signJWT := func(t *testing.T, subject string, expires time.Time) string {
		t.Helper()

		claims := jwt.NewUserClaims(subject)
		claims.Expires = expires.Unix()

		token, err := claims.Encode(account)
		require.NoError(t, err)

		return token
	}

	t.Run("none", func(t *testing.T) {
		opts, err := CredentialOptions(nil, now)
		require.NoError(t, err)
		assert.Empty(t, opts)
	})

	t.Run("creds file", func(t *testing.T) {
		opts, err := CredentialOptions(&models.NATSCredentials{CredsFile: "/etc/nats/user.creds"}, now)
		require.NoError(t, err)
		assert.Len(t, opts, 1)
	})

	t.Run("creds file conflicts with inline", func(t *testing.T) {
		_, err := CredentialOptions(&models.NATSCredentials{CredsFile: "x", Seed: string(seed)}, now)
		require.ErrorIs(t, err, errCredentialsConflict)
	})

	t.Run("nkey only", func(t *testing.T) {
		opts, err := CredentialOptions(&models.NATSCredentials{Seed: string(seed)}, now)
		require.NoError(t, err)
		assert.Len(t, opts, 1)
	})

	t.Run("jwt and seed", func(t *testing.T) {
		token := signJWT(t, pub, now.Add(time.Hour))

		opts, err := CredentialOptions(&models.NATSCredentials{UserJWT: token, Seed: string(seed)}, now)
		require.NoError(t, err)
		assert.Len(t, opts, 1)
	})

	t.Run("expired jwt", func(t *testing.T) {
		token := signJWT(t, pub, now.Add(-time.Minute))

		_, err := CredentialOptions(&models.NATSCredentials{UserJWT: token, Seed: string(seed)}, now)
		require.ErrorIs(t, err, errUserJWTExpired)
	})

	t.Run("jwt for another user", func(t *testing.T) {
		other, err := nkeys.CreateUser()
		require.NoError(t, err)

		otherPub, err := other.PublicKey()
		require.NoError(t, err)

		token := signJWT(t, otherPub, now.Add(time.Hour))

		_, err = CredentialOptions(&models.NATSCredentials{UserJWT: token, Seed: string(seed)}, now)
		require.ErrorIs(t, err, errSeedMismatch)
	})

	t.Run("jwt without seed", func(t *testing.T) {
		_, err := CredentialOptions(&models.NATSCredentials{UserJWT: "x"}, now)
		require.ErrorIs(t, err, errJWTWithoutSeed)
	})

	t.Run("account seed rejected", func(t *testing.T) {
		accountSeed, err := account.Seed()
		require.NoError(t, err)

		_, err = CredentialOptions(&models.NATSCredentials{Seed: string(accountSeed)}, now)
		require.ErrorIs(t, err, errSeedNotUser)
	})
}
