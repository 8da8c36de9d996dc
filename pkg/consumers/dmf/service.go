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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/fleetradar/pkg/db"
	"github.com/carverauto/fleetradar/pkg/dmf"
	"github.com/carverauto/fleetradar/pkg/dmf/auth"
	"github.com/carverauto/fleetradar/pkg/dmf/dispatch"
	"github.com/carverauto/fleetradar/pkg/dmf/failure"
	"github.com/carverauto/fleetradar/pkg/dmf/inbound"
	"github.com/carverauto/fleetradar/pkg/dmf/outbound"
	"github.com/carverauto/fleetradar/pkg/events"
	"github.com/carverauto/fleetradar/pkg/kv"
	"github.com/carverauto/fleetradar/pkg/lifecycle"
	"github.com/carverauto/fleetradar/pkg/logger"
	"github.com/carverauto/fleetradar/pkg/natsutil"
	"github.com/carverauto/fleetradar/pkg/repository"
	"github.com/carverauto/fleetradar/pkg/repository/memory"
)

var errNotStarted = errors.New("service is not started")

// Service implements lifecycle.Service for the DMF protocol engine.
type Service struct {
	cfg   *Config
	log   logger.Logger
	store *repository.Store

	nc         *nats.Conn
	js         jetstream.JetStream
	pool       *pgxpool.Pool
	publisher  *natsutil.Publisher
	dispatcher *outbound.Dispatcher
	subscriber *events.Subscriber
	events     *events.Publisher

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithStore replaces the configured storage backend.
func WithStore(store repository.Store) ServiceOption {
	return func(s *Service) {
		s.store = &store
	}
}

// NewService validates cfg and prepares the service. Connections are opened by Start.
func NewService(cfg *Config, log logger.Logger, opts ...ServiceOption) (*Service, error) {
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{cfg: cfg, log: log}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Start connects to NATS, provisions the streams and launches the consumers.
func (s *Service) Start(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			s.close()
		}
	}()

	s.nc, err = natsutil.Connect(ctx, s.cfg.NATS(), natsutil.ConnectOptions{Name: "fleetradar-dmf-" + s.cfg.NodeID}, s.log)
	if err != nil {
		return err
	}

	s.js, err = natsutil.JetStream(s.nc, s.cfg.NATSDomain)
	if err != nil {
		return err
	}

	if err = natsutil.EnsureTopology(ctx, s.js, &s.cfg.Streams); err != nil {
		return err
	}

	store, err := s.openStore(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	if s.cfg.TenantConfig.KVBucket != "" {
		kvStore, kvErr := kv.NewNatsStore(ctx, s.js, s.cfg.TenantConfig.KVBucket, s.log)
		if kvErr != nil {
			return kvErr
		}

		configs := kv.NewTenantConfigs(kvStore, s.log)
		if err = configs.Watch(runCtx); err != nil {
			return err
		}

		store.TenantConfigs = configs
	}

	var pubOpts []natsutil.PublisherOption
	if s.cfg.PublishRate > 0 {
		pubOpts = append(pubOpts, natsutil.WithRateLimit(s.cfg.PublishRate, max(1, int(s.cfg.PublishRate))))
	}

	s.publisher = natsutil.NewPublisher(s.nc, s.js, s.log, pubOpts...)

	urls := dispatch.NewPatternURLResolver(s.cfg.ArtifactURLs)
	builder := dispatch.NewBuilder(store.DistributionSets, urls, dispatch.WithMultiAssignmentCap(s.cfg.MultiAssignmentCap))
	s.dispatcher = outbound.NewDispatcher(store, builder, s.publisher,
		outbound.Config{PartitionSize: s.cfg.PartitionSize, Workers: s.cfg.Workers}, s.log)

	authn := auth.NewDefaultChain(s.cfg.Auth, store, s.log)
	router := inbound.NewRouter(store, authn, s.dispatcher, s.publisher,
		inbound.Config{MaxStatusMessages: s.cfg.MaxStatusMessages}, s.log)
	authRequests := inbound.NewAuthRequestHandler(authn, store.Artifacts, urls, s.publisher,
		s.cfg.PreferredDownloadURL, s.log)

	policy := failure.NewPolicy(failure.NewClassifier(s.cfg.FatalErrors...), s.publisher,
		s.cfg.Streams.DeadLetterSubjectFor, time.Duration(s.cfg.RetryDelay), s.log)

	inboundConsumer, err := NewConsumer(ctx, s.js, s.cfg.Streams.InboundStream, s.cfg.Streams.InboundConsumer,
		s.cfg.FetchBatch, policy, s.log)
	if err != nil {
		return err
	}

	authConsumer, err := NewConsumer(ctx, s.js, s.cfg.Streams.AuthStream, s.cfg.Streams.AuthConsumer,
		s.cfg.FetchBatch, policy, s.log)
	if err != nil {
		return err
	}

	s.subscriber, err = events.NewSubscriber(s.nc, s.cfg.NodeID, s.cfg.EventPrefix, s.dispatcher, s.log)
	if err != nil {
		return err
	}

	if err = s.subscriber.Start(runCtx); err != nil {
		return err
	}

	s.events, err = events.NewPublisher(s.nc, s.cfg.NodeID, s.cfg.EventPrefix)
	if err != nil {
		return err
	}

	route := func(ctx context.Context, msg *nats.Msg) error {
		env, err := dmf.Decode(msg)
		if err != nil {
			return err
		}

		return router.Route(ctx, env)
	}

	for range s.cfg.Workers {
		s.run(runCtx, inboundConsumer, route)
		s.run(runCtx, authConsumer, authRequests.Handle)
	}

	s.log.Info().
		Str("node_id", s.cfg.NodeID).
		Int("workers", s.cfg.Workers).
		Str("storage", s.cfg.Storage.Type).
		Msg("DMF service started")

	return nil
}

func (s *Service) run(ctx context.Context, c *Consumer, handle handlerFunc) {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		c.ProcessMessages(ctx, handle)
	}()
}

func (s *Service) openStore(ctx context.Context) (repository.Store, error) {
	if s.store != nil {
		return *s.store, nil
	}

	if s.cfg.Storage.Type == StorageMemory {
		s.log.Warn().Msg("Using in-memory storage, state is lost on restart")

		return memory.New().Repositories(), nil
	}

	pool, err := db.NewPool(ctx, s.cfg.Storage.CNPG, s.log)
	if err != nil {
		return repository.Store{}, err
	}

	s.pool = pool

	if err := db.RunMigrations(ctx, pool, s.log); err != nil {
		return repository.Store{}, err
	}

	return db.NewStore(pool).Repositories(), nil
}

// Events publishes domain events from this node. It is nil until Start succeeded.
func (s *Service) Events() (*events.Publisher, error) {
	if s.events == nil {
		return nil, errNotStarted
	}

	return s.events, nil
}

// Stop ends the consumers, flushes pending publishes and closes the connections.
func (s *Service) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})

	go func() {
		s.wg.Wait()
		close(done)
	}()

	var errs []error

	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for consumers: %w", ctx.Err()))
	}

	if s.subscriber != nil {
		if err := s.subscriber.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flushing publishes: %w", err))
		}
	}

	s.close()

	s.log.Info().Msg("DMF service stopped")

	return errors.Join(errs...)
}

func (s *Service) close() {
	if s.cancel != nil {
		s.cancel()
	}

	if s.nc != nil {
		s.nc.Close()
	}

	if s.pool != nil {
		s.pool.Close()
	}
}

var _ lifecycle.Service = (*Service)(nil)
