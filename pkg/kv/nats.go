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

// Package kv stores configuration documents in a NATS JetStream key/value bucket.
package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/fleetradar/pkg/config"
	"github.com/carverauto/fleetradar/pkg/logger"
)

// DefaultBucket holds tenant configuration documents.
const DefaultBucket = "fleetradar-config"

// Change is one update seen by a watcher. Value is nil for deletions.
type Change struct {
	Key   string
	Value []byte
}

// NatsStore is a key/value store backed by a JetStream bucket.
type NatsStore struct {
	kv  jetstream.KeyValue
	log logger.Logger
}

// NewNatsStore opens bucket, creating it when it does not exist.
func NewNatsStore(ctx context.Context, js jetstream.JetStream, bucket string, log logger.Logger) (*NatsStore, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "fleetradar configuration",
		History:     5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open KV bucket %s: %w", bucket, err)
	}

	return &NatsStore{kv: kv, log: log}, nil
}

func (n *NatsStore) Get(ctx context.Context, key string) (value []byte, found bool, err error) {
	entry, err := n.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	return entry.Value(), true, nil
}

func (n *NatsStore) Put(ctx context.Context, key string, value []byte) error {
	if _, err := n.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("failed to put key %s: %w", key, err)
	}

	return nil
}

func (n *NatsStore) Delete(ctx context.Context, key string) error {
	err := n.kv.Delete(ctx, key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}

	return nil
}

// Watch reports changes of keys matching pattern made after the call. The channel is
// closed when ctx is done.
func (n *NatsStore) Watch(ctx context.Context, pattern string) (<-chan Change, error) {
	watcher, err := n.kv.Watch(ctx, pattern, jetstream.UpdatesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", pattern, err)
	}

	ch := make(chan Change, 1)

	go n.handleWatchUpdates(ctx, pattern, watcher, ch)

	return ch, nil
}

func (n *NatsStore) handleWatchUpdates(ctx context.Context, pattern string, watcher jetstream.KeyWatcher, ch chan<- Change) {
	defer func() {
		if err := watcher.Stop(); err != nil {
			n.log.Warn().Err(err).Str("pattern", pattern).Msg("Failed to stop KV watcher")
		}

		close(ch)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-watcher.Updates():
			if !ok {
				return
			}

			if entry == nil {
				continue
			}

			change := Change{Key: entry.Key()}
			if entry.Operation() == jetstream.KeyValuePut {
				change.Value = entry.Value()
			}

			select {
			case ch <- change:
			case <-ctx.Done():
				return
			}
		}
	}
}

var _ config.KVStore = (*NatsStore)(nil)
