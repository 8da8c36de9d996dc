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

// Package dmfconsumer runs the DMF protocol engine on NATS JetStream: it consumes device
// messages and authentication requests, and turns domain events into device messages.
package dmfconsumer

import (
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/fleetradar/pkg/dmf/auth"
	"github.com/carverauto/fleetradar/pkg/dmf/dispatch"
	"github.com/carverauto/fleetradar/pkg/logger"
	"github.com/carverauto/fleetradar/pkg/models"
	"github.com/carverauto/fleetradar/pkg/natsutil"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageCNPG   = "cnpg"
)

const (
	defaultWorkers            = 4
	defaultFetchBatch         = 20
	defaultRetryDelay         = 5 * time.Second
	defaultMultiAssignmentCap = 1000
	defaultPartitionSize      = 1000
	defaultMaxStatusMessages  = 50
	defaultEventPrefix        = "fleet.events"
)

var (
	ErrMissingListenAddr   = errors.New("listen_addr is required")
	ErrMissingNodeID       = errors.New("node_id is required")
	ErrMissingNATSURL      = errors.New("nats_url is required")
	ErrUnknownStorage      = errors.New("unknown storage type")
	ErrMissingCNPGConfig   = errors.New("storage.cnpg is required for cnpg storage")
	ErrInvalidWorkers      = errors.New("workers must be positive")
	ErrInvalidPublishRate  = errors.New("publish_rate must not be negative")
	ErrInvalidPartitioning = errors.New("partition_size and multi_assignment_cap must be positive")
)

// StorageConfig selects where targets and actions live.
type StorageConfig struct {
	Type string               `json:"type"`
	CNPG *models.CNPGDatabase `json:"cnpg,omitempty"`
}

// TenantConfigSource points at the KV bucket holding tenant switches. Without a bucket the
// storage backend serves them.
type TenantConfigSource struct {
	KVBucket string `json:"kv_bucket"`
}

// Config is the configuration of the DMF service.
type Config struct {
	ListenAddr  string                  `json:"listen_addr"`
	NodeID      string                  `json:"node_id"`
	NATSURL     string                  `json:"nats_url"`
	NATSDomain  string                  `json:"nats_domain"`
	Security    *models.SecurityConfig  `json:"security"`
	Credentials *models.NATSCredentials `json:"credentials,omitempty"`
	Streams     natsutil.Topology       `json:"streams"`
	EventPrefix string                  `json:"event_prefix"`

	Workers    int             `json:"workers"`
	FetchBatch int             `json:"fetch_batch"`
	RetryDelay models.Duration `json:"retry_delay"`
	// FatalErrors names extra error types, as printed by %T, that are never requeued.
	FatalErrors []string `json:"fatal_errors"`

	MultiAssignmentCap int     `json:"multi_assignment_cap"`
	PartitionSize      int     `json:"partition_size"`
	MaxStatusMessages  int     `json:"max_status_messages"`
	PublishRate        float64 `json:"publish_rate"`

	Auth         auth.Config           `json:"auth"`
	ArtifactURLs []dispatch.URLPattern `json:"artifact_urls"`
	// PreferredDownloadURL names the artifact URL returned by authentication responses.
	PreferredDownloadURL string `json:"preferred_download_url"`

	Storage      StorageConfig      `json:"storage"`
	TenantConfig TenantConfigSource `json:"tenant_config"`
	Logging      *logger.Config     `json:"logging,omitempty"`
}

// ApplyDefaults fills unset tuning knobs.
func (c *Config) ApplyDefaults() {
	c.Streams.ApplyDefaults()
	c.Auth.ApplyDefaults()

	if c.EventPrefix == "" {
		c.EventPrefix = defaultEventPrefix
	}

	if c.Workers == 0 {
		c.Workers = defaultWorkers
	}

	if c.FetchBatch <= 0 {
		c.FetchBatch = defaultFetchBatch
	}

	if c.RetryDelay == 0 {
		c.RetryDelay = models.Duration(defaultRetryDelay)
	}

	if c.MultiAssignmentCap == 0 {
		c.MultiAssignmentCap = defaultMultiAssignmentCap
	}

	if c.PartitionSize == 0 {
		c.PartitionSize = defaultPartitionSize
	}

	if c.MaxStatusMessages <= 0 {
		c.MaxStatusMessages = defaultMaxStatusMessages
	}

	if c.Storage.Type == "" {
		c.Storage.Type = StorageMemory
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.ListenAddr == "" {
		errs = append(errs, ErrMissingListenAddr)
	}

	if c.NodeID == "" {
		errs = append(errs, ErrMissingNodeID)
	}

	if c.NATSURL == "" {
		errs = append(errs, ErrMissingNATSURL)
	}

	if c.Workers <= 0 {
		errs = append(errs, ErrInvalidWorkers)
	}

	if c.PublishRate < 0 {
		errs = append(errs, ErrInvalidPublishRate)
	}

	if c.PartitionSize <= 0 || c.MultiAssignmentCap <= 0 {
		errs = append(errs, ErrInvalidPartitioning)
	}

	switch c.Storage.Type {
	case StorageMemory:
	case StorageCNPG:
		if c.Storage.CNPG == nil {
			errs = append(errs, ErrMissingCNPGConfig)
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownStorage, c.Storage.Type))
	}

	for _, p := range c.ArtifactURLs {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// NATS returns the broker connection settings.
func (c *Config) NATS() *models.NATSConfig {
	return &models.NATSConfig{
		URL:         c.NATSURL,
		Domain:      c.NATSDomain,
		Security:    c.Security,
		Credentials: c.Credentials,
	}
}
