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

// Package config loads service configuration from files, environment variables or a KV bucket.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/rs/zerolog"

	"github.com/carverauto/fleetradar/pkg/logger"
	"github.com/carverauto/fleetradar/pkg/models"
)

var (
	errKVStoreNotSet       = errors.New("KV store not initialized for CONFIG_SOURCE=kv; call SetKVStore first")
	errInvalidConfigSource = errors.New("invalid CONFIG_SOURCE value")
	errLoadConfigFailed    = errors.New("failed to load configuration")
	errInvalidConfigPtr    = errors.New("config must be a non-nil pointer")
)

const (
	configSourceKV   = "kv"
	configSourceFile = "file"
	configSourceEnv  = "env"

	defaultEnvPrefix = "FLEETRADAR_"
)

// ConfigLoader reads a configuration document into dst.
type ConfigLoader interface {
	Load(ctx context.Context, path string, dst interface{}) error
}

// Validator is implemented by configurations that can check themselves.
type Validator interface {
	Validate() error
}

// Defaulter is implemented by configurations that fill unset fields before validation.
type Defaulter interface {
	ApplyDefaults()
}

// Config holds the configuration loading dependencies.
type Config struct {
	kvStore       KVStore
	defaultLoader ConfigLoader
	logger        logger.Logger
}

// NewConfig initializes a Config with a file loader. A nil logger logs warnings to stderr.
func NewConfig(log logger.Logger) *Config {
	if log == nil {
		log = logger.New(zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger())
	}

	return &Config{
		defaultLoader: &FileConfigLoader{},
		logger:        log,
	}
}

// SetKVStore sets the KV store to be used when CONFIG_SOURCE=kv.
func (c *Config) SetKVStore(store KVStore) {
	c.kvStore = store
}

// ValidateConfig validates a configuration if it implements Validator.
func ValidateConfig(cfg interface{}) error {
	v, ok := cfg.(Validator)
	if !ok {
		return nil
	}

	return v.Validate()
}

// LoadAndValidate loads a configuration, applies defaults, normalizes SecurityConfig paths and validates it.
func (c *Config) LoadAndValidate(ctx context.Context, path string, cfg interface{}) error {
	if err := c.load(ctx, path, cfg); err != nil {
		return err
	}

	if d, ok := cfg.(Defaulter); ok {
		d.ApplyDefaults()
	}

	if err := c.normalizeSecurityConfig(cfg); err != nil {
		return fmt.Errorf("failed to normalize SecurityConfig: %w", err)
	}

	return ValidateConfig(cfg)
}

func (c *Config) load(ctx context.Context, path string, cfg interface{}) error {
	source := strings.ToLower(os.Getenv("CONFIG_SOURCE"))

	var loader ConfigLoader

	switch source {
	case configSourceKV:
		if c.kvStore == nil {
			return errKVStoreNotSet
		}

		loader = NewKVConfigLoader(c.kvStore)
	case configSourceEnv:
		prefix := os.Getenv("CONFIG_ENV_PREFIX")
		if prefix == "" {
			prefix = defaultEnvPrefix
		}

		loader = NewEnvConfigLoader(c.logger, prefix)
	case configSourceFile, "":
		loader = c.defaultLoader
	default:
		return fmt.Errorf("%w: %s (expected '%s', '%s', or '%s')",
			errInvalidConfigSource, source, configSourceFile, configSourceKV, configSourceEnv)
	}

	err := loader.Load(ctx, path, cfg)
	if err == nil || source != configSourceKV {
		return err
	}

	c.logger.Warn().Err(err).Str("path", path).Msg("KV configuration unavailable, falling back to file")

	if fileErr := c.defaultLoader.Load(ctx, path, cfg); fileErr != nil {
		return fmt.Errorf("%w from KV: %w, and from fallback file: %w", errLoadConfigFailed, err, fileErr)
	}

	return nil
}

// normalizeSecurityConfig resolves TLS paths of every top-level *models.SecurityConfig field.
func (c *Config) normalizeSecurityConfig(cfg interface{}) error {
	v := reflect.ValueOf(cfg)

	if v.Kind() != reflect.Ptr || v.IsNil() {
		return errInvalidConfigPtr
	}

	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return nil
	}

	secType := reflect.TypeOf((*models.SecurityConfig)(nil))

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if field.Type() != secType || field.IsNil() {
			continue
		}

		sec := field.Interface().(*models.SecurityConfig)
		c.normalizeTLSPaths(&sec.TLS, sec.CertDir)
	}

	return nil
}

func (c *Config) normalizeTLSPaths(tls *models.TLSConfig, certDir string) {
	NormalizeTLSPaths(tls, certDir)

	c.logger.Debug().
		Str("cert_file", tls.CertFile).
		Str("key_file", tls.KeyFile).
		Str("ca_file", tls.CAFile).
		Str("client_ca_file", tls.ClientCAFile).
		Msg("Normalized TLS paths")
}

// NormalizeTLSPaths joins relative TLS paths onto certDir. ClientCAFile falls back to CAFile.
func NormalizeTLSPaths(tls *models.TLSConfig, certDir string) {
	join := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}

		return filepath.Join(certDir, p)
	}

	tls.CertFile = join(tls.CertFile)
	tls.KeyFile = join(tls.KeyFile)
	tls.CAFile = join(tls.CAFile)

	if tls.ClientCAFile == "" {
		tls.ClientCAFile = tls.CAFile
	} else {
		tls.ClientCAFile = join(tls.ClientCAFile)
	}
}
