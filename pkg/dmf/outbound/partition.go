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

package outbound

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/carverauto/fleetradar/pkg/tenant"
)

// DefaultPartitionSize bounds the targets one worker handles during a fan-out.
const DefaultPartitionSize = 1000

// Partition splits items into consecutive chunks of at most size entries.
func Partition[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultPartitionSize
	}

	if len(items) == 0 {
		return nil
	}

	parts := make([][]T, 0, (len(items)+size-1)/size)

	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		parts = append(parts, items[start:end:end])
	}

	return parts
}

// fanOut runs fn for every partition in parallel. Each worker gets its own copy of the
// caller's identity; the first error cancels the remaining workers.
func fanOut[T any](ctx context.Context, parts [][]T, limit int, fn func(ctx context.Context, part []T) error) error {
	info, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for _, part := range parts {
		workerCtx := tenant.WithContext(gctx, info)

		g.Go(func() error {
			return fn(workerCtx, part)
		})
	}

	return g.Wait()
}
