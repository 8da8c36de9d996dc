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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/carverauto/fleetradar/pkg/config"
	dmfconsumer "github.com/carverauto/fleetradar/pkg/consumers/dmf"
	"github.com/carverauto/fleetradar/pkg/kv"
	"github.com/carverauto/fleetradar/pkg/lifecycle"
	"github.com/carverauto/fleetradar/pkg/logger"
	"github.com/carverauto/fleetradar/pkg/models"
	"github.com/carverauto/fleetradar/pkg/natsutil"
	"github.com/carverauto/fleetradar/pkg/version"
)

var (
	ErrCNPGPasswordRequired = errors.New("CNPG password is required; set it in config or provide CNPG_PASSWORD_FILE from a mounted secret")
	ErrCNPGPasswordEmpty    = errors.New("CNPG password file is empty")
)

func main() {
	configPath := flag.String("config", "/etc/fleetradar/dmf-server.json", "Path to config file")
	showVersion := flag.Bool("version", false, "Print the build version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		return
	}

	ctx := context.Background()

	loader := config.NewConfig(nil)

	var closeStore func()

	if strings.EqualFold(os.Getenv("CONFIG_SOURCE"), "kv") {
		store, closeFn, err := configKVStore(ctx)
		if err != nil {
			log.Fatalf("Failed to open configuration bucket: %v", err)
		}

		closeStore = closeFn
		loader.SetKVStore(store)
	}

	var cfg dmfconsumer.Config

	loadErr := loader.LoadAndValidate(ctx, *configPath, &cfg)

	if closeStore != nil {
		closeStore()
	}

	if loadErr != nil {
		log.Fatalf("Failed to load configuration: %v", loadErr)
	}

	if err := applyCNPGPassword(&cfg); err != nil {
		log.Fatalf("DMF server config validation failed: %v", err)
	}

	loggerConfig := cfg.Logging
	if loggerConfig == nil {
		loggerConfig = logger.DefaultConfig()
	}

	serviceLogger, err := lifecycle.CreateComponentLogger(ctx, "dmf-server", loggerConfig)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	shutdownTelemetry, err := lifecycle.InitializeTelemetry(ctx, "dmf-server", version.Get().Version, loggerConfig, serviceLogger)
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}

	serviceLogger.Info().Str("version", version.Get().String()).Interface("config", config.Redacted(&cfg)).Msg("Loaded DMF server configuration")

	svc, err := dmfconsumer.NewService(&cfg, serviceLogger)
	if err != nil {
		log.Fatalf("Failed to initialize DMF service: %v", err)
	}

	opts := &lifecycle.ServerOptions{
		ListenAddr:        cfg.ListenAddr,
		ServiceName:       "dmf-server",
		Service:           svc,
		EnableHealthCheck: true,
		Security:          cfg.Security,
		Logger:            serviceLogger,
	}

	runErr := lifecycle.RunServer(ctx, opts)

	if err := shutdownTelemetry(context.Background()); err != nil {
		log.Printf("Failed to flush traces: %v", err)
	}

	if err := lifecycle.ShutdownLogger(); err != nil {
		log.Printf("Failed to flush logs: %v", err)
	}

	if runErr != nil {
		log.Fatalf("Server failed: %v", runErr)
	}
}

// configKVStore opens the bucket holding "config/<file>" documents when CONFIG_SOURCE=kv.
// NATS_URL, NATS_CREDS_FILE and CONFIG_KV_BUCKET locate it.
func configKVStore(ctx context.Context) (*kv.NatsStore, func(), error) {
	natsCfg := &models.NATSConfig{URL: os.Getenv("NATS_URL")}
	if creds := os.Getenv("NATS_CREDS_FILE"); creds != "" {
		natsCfg.Credentials = &models.NATSCredentials{CredsFile: creds}
	}

	bootstrapLog := logger.New(zerolog.New(os.Stderr).With().Timestamp().Str("component", "config-kv").Logger())

	nc, err := natsutil.Connect(ctx, natsCfg, natsutil.ConnectOptions{Name: "dmf-server-config"}, bootstrapLog)
	if err != nil {
		return nil, nil, err
	}

	js, err := natsutil.JetStream(nc, os.Getenv("NATS_JS_DOMAIN"))
	if err != nil {
		nc.Close()
		return nil, nil, err
	}

	store, err := kv.NewNatsStore(ctx, js, os.Getenv("CONFIG_KV_BUCKET"), bootstrapLog)
	if err != nil {
		nc.Close()
		return nil, nil, err
	}

	return store, nc.Close, nil
}

// applyCNPGPassword sources the CNPG password from a mounted secret file when the config
// leaves it empty.
func applyCNPGPassword(cfg *dmfconsumer.Config) error {
	if cfg == nil || cfg.Storage.Type != dmfconsumer.StorageCNPG || cfg.Storage.CNPG == nil {
		return nil
	}

	if cfg.Storage.CNPG.Password != "" {
		return nil
	}

	pwPath := os.Getenv("CNPG_PASSWORD_FILE")
	if pwPath == "" {
		return ErrCNPGPasswordRequired
	}

	data, err := os.ReadFile(pwPath)
	if err != nil {
		return fmt.Errorf("read CNPG password file: %w", err)
	}

	pwd := strings.TrimSpace(string(data))
	if pwd == "" {
		return fmt.Errorf("%w: %s", ErrCNPGPasswordEmpty, pwPath)
	}

	cfg.Storage.CNPG.Password = pwd

	return nil
}
