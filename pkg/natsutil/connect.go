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

// Package natsutil connects to NATS and manages the JetStream topology of the DMF protocol.
package natsutil

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/fleetradar/pkg/logger"
	"github.com/carverauto/fleetradar/pkg/models"
)

const (
	defaultConnectTimeout = 2 * time.Minute
	defaultClientName     = "fleetradar"
)

// ConnectOptions tunes Connect.
type ConnectOptions struct {
	// Name is reported to the server as the client name.
	Name string
	// MaxElapsed bounds the initial connect retries. Zero uses two minutes.
	MaxElapsed time.Duration
	// Extra options are appended after the security and credential options.
	Extra []nats.Option
}

// Connect dials NATS with mTLS and credentials from cfg, retrying the initial connection
// with exponential backoff until ctx ends or MaxElapsed passes.
func Connect(ctx context.Context, cfg *models.NATSConfig, opts ConnectOptions, log logger.Logger) (*nats.Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	natsOpts, err := connectOptions(cfg, opts, log)
	if err != nil {
		return nil, err
	}

	maxElapsed := opts.MaxElapsed
	if maxElapsed <= 0 {
		maxElapsed = defaultConnectTimeout
	}

	nc, err := backoff.Retry(ctx, func() (*nats.Conn, error) {
		return nats.Connect(cfg.URL, natsOpts...)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(maxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Str("url", cfg.URL).Dur("retry_in", next).Msg("NATS connect failed, retrying")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return nc, nil
}

func connectOptions(cfg *models.NATSConfig, opts ConnectOptions, log logger.Logger) ([]nats.Option, error) {
	name := opts.Name
	if name == "" {
		name = defaultClientName
	}

	natsOpts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			ev := log.Error().Err(err)
			if sub != nil {
				ev = ev.Str("subject", sub.Subject)
			}

			ev.Msg("NATS async error")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	if cfg.Security != nil && cfg.Security.Mode == models.SecurityModeMTLS {
		tlsConf, err := TLSConfig(cfg.Security)
		if err != nil {
			return nil, fmt.Errorf("failed to build NATS TLS config: %w", err)
		}

		natsOpts = append(natsOpts, nats.Secure(tlsConf))
	}

	credOpts, err := CredentialOptions(cfg.Credentials, time.Now())
	if err != nil {
		return nil, err
	}

	natsOpts = append(natsOpts, credOpts...)

	return append(natsOpts, opts.Extra...), nil
}

// JetStream creates a JetStream context, scoped to domain when set.
func JetStream(nc *nats.Conn, domain string) (jetstream.JetStream, error) {
	if domain == "" {
		js, err := jetstream.New(nc)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}

		return js, nil
	}

	js, err := jetstream.NewWithDomain(nc, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context with domain %s: %w", domain, err)
	}

	return js, nil
}
