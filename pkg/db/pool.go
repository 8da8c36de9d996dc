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

// Package db stores targets, actions and the software catalog in a CloudNativePG cluster.
package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carverauto/fleetradar/pkg/logger"
	"github.com/carverauto/fleetradar/pkg/models"
)

const defaultPort = 5432

var (
	ErrCNPGConfigRequired = errors.New("cnpg: database configuration is required")
	ErrCNPGTLSDisabled    = errors.New("cnpg: tls is configured but sslmode is disable")
	ErrCNPGTLSIncomplete  = errors.New("cnpg tls: cert_file, key_file, and ca_file are required")
	errUnknownSSLMode     = errors.New("cnpg: unknown sslmode")
)

//nolint:gochecknoglobals // read-only lookup table
var sslModes = map[string]struct{}{
	"disable": {}, "allow": {}, "prefer": {}, "require": {}, "verify-ca": {}, "verify-full": {},
}

// NewPool dials the configured CNPG cluster.
func NewPool(ctx context.Context, cfg *models.CNPGDatabase, log logger.Logger) (*pgxpool.Pool, error) {
	connURL, err := buildConnURL(cfg)
	if err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(connURL.String())
	if err != nil {
		return nil, fmt.Errorf("cnpg: failed to parse connection string: %w", err)
	}

	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = cfg.MaxConnections
	}

	if cfg.MinConnections > 0 {
		poolConfig.MinConns = cfg.MinConnections
	}

	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = time.Duration(cfg.MaxConnLifetime)
	}

	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = time.Duration(cfg.HealthCheckPeriod)
	}

	if cfg.StatementTimeout > 0 {
		ms := time.Duration(cfg.StatementTimeout).Milliseconds()
		poolConfig.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", ms)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("cnpg: failed to initialize pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("cnpg: ping: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int32("max_conns", poolConfig.MaxConns).
		Msg("Connected to CNPG cluster")

	return pool, nil
}

func buildConnURL(cfg *models.CNPGDatabase) (*url.URL, error) {
	if cfg == nil || cfg.Host == "" {
		return nil, ErrCNPGConfigRequired
	}

	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	connURL := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, port),
		Path:   "/" + cfg.Database,
	}

	switch {
	case cfg.Username != "" && cfg.Password != "":
		connURL.User = url.UserPassword(cfg.Username, cfg.Password)
	case cfg.Username != "":
		connURL.User = url.User(cfg.Username)
	}

	query := connURL.Query()

	for k, v := range cfg.ExtraRuntimeParams {
		if k == "" || strings.EqualFold(k, "sslmode") {
			continue
		}

		query.Set(k, v)
	}

	sslMode, err := resolveSSLMode(cfg)
	if err != nil {
		return nil, err
	}

	query.Set("sslmode", sslMode)

	if cfg.ApplicationName != "" {
		query.Set("application_name", cfg.ApplicationName)
	}

	if cfg.TLS != nil {
		certFile, keyFile, caFile := resolveTLSPath(cfg, cfg.TLS.CertFile), resolveTLSPath(cfg, cfg.TLS.KeyFile),
			resolveTLSPath(cfg, cfg.TLS.CAFile)

		if certFile == "" || keyFile == "" || caFile == "" {
			return nil, ErrCNPGTLSIncomplete
		}

		query.Set("sslcert", certFile)
		query.Set("sslkey", keyFile)
		query.Set("sslrootcert", caFile)
	}

	connURL.RawQuery = query.Encode()

	return connURL, nil
}

// resolveSSLMode prefers ssl_mode, then an sslmode runtime parameter. Without either it is
// verify-full when TLS files are configured and disable otherwise.
func resolveSSLMode(cfg *models.CNPGDatabase) (string, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.SSLMode))

	if mode == "" {
		for k, v := range cfg.ExtraRuntimeParams {
			if strings.EqualFold(k, "sslmode") {
				mode = strings.ToLower(strings.TrimSpace(v))
			}
		}
	}

	if mode == "" {
		if cfg.TLS != nil {
			return "verify-full", nil
		}

		return "disable", nil
	}

	if _, ok := sslModes[mode]; !ok {
		return "", fmt.Errorf("%w: %q", errUnknownSSLMode, mode)
	}

	if mode == "disable" && cfg.TLS != nil {
		return "", ErrCNPGTLSDisabled
	}

	return mode, nil
}

func resolveTLSPath(cfg *models.CNPGDatabase, path string) string {
	if path == "" || filepath.IsAbs(path) || cfg.CertDir == "" {
		return path
	}

	return filepath.Join(cfg.CertDir, path)
}
