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
	"errors"
	"fmt"

	"github.com/carverauto/fleetradar/pkg/logger"
)

// InitializeTelemetry installs the tracer and meter providers described by the OTel section
// of cfg. Tracing always runs in-process; spans and metrics are exported only when OTel is
// enabled with an endpoint. The returned function flushes the tracer provider.
func InitializeTelemetry(
	ctx context.Context, serviceName, serviceVersion string, cfg *logger.Config, log logger.Logger,
) (func(context.Context) error, error) {
	if cfg == nil {
		cfg = logger.DefaultConfig()
	}

	otelCfg := cfg.OTel

	tp, err := logger.InitializeTracing(ctx, logger.TracingConfig{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Logger:         log,
		OTel:           &otelCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	_, err = logger.InitializeMetrics(ctx, logger.MetricsConfig{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		OTel:           &otelCfg,
	})

	switch {
	case errors.Is(err, logger.ErrOTelMetricsDisabled):
		log.Debug().Msg("OTLP metrics export disabled")
	case err != nil:
		_ = tp.Shutdown(ctx)

		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return tp.Shutdown, nil
}
