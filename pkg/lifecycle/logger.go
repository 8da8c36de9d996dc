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

package lifecycle

import (
	"context"
	"fmt"

	"github.com/carverauto/fleetradar/pkg/logger"
)

// InitializeLogger initializes the global logger used by cmd bootstrap code.
// If config is nil, it uses the default configuration.
func InitializeLogger(ctx context.Context, config *logger.Config) error {
	if err := logger.Init(ctx, config); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	return nil
}

// CreateLogger creates a logger that can be injected into services.
func CreateLogger(ctx context.Context, config *logger.Config) (logger.Logger, error) {
	l, err := logger.Build(ctx, config)
	if err != nil {
		return nil, err
	}

	return logger.New(l), nil
}

// CreateComponentLogger creates a logger for a specific component.
func CreateComponentLogger(ctx context.Context, component string, config *logger.Config) (logger.Logger, error) {
	l, err := logger.Build(ctx, config)
	if err != nil {
		return nil, err
	}

	return logger.New(l.With().Str("component", component).Logger()), nil
}

// ShutdownLogger flushes any pending OTLP logs and metrics.
func ShutdownLogger() error {
	return logger.Shutdown()
}
