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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dmfconsumer "github.com/carverauto/fleetradar/pkg/consumers/dmf"
	"github.com/carverauto/fleetradar/pkg/models"
)

func cnpgConfig(password string) *dmfconsumer.Config {
	return &dmfconsumer.Config{Storage: dmfconsumer.StorageConfig{
		Type: dmfconsumer.StorageCNPG,
		CNPG: &models.CNPGDatabase{Password: password},
	}}
}

func TestApplyCNPGPasswordReadsSecretFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "password")
	require.NoError(t, os.WriteFile(path, []byte("s3cret\n"), 0o600))
	t.Setenv("CNPG_PASSWORD_FILE", path)

	cfg := cnpgConfig("")
	require.NoError(t, applyCNPGPassword(cfg))
	assert.Equal(t, "s3cret", cfg.Storage.CNPG.Password)
}

func TestApplyCNPGPasswordKeepsConfiguredPassword(t *testing.T) {
	t.Setenv("CNPG_PASSWORD_FILE", "")

	cfg := cnpgConfig("inline")
	require.NoError(t, applyCNPGPassword(cfg))
	assert.Equal(t, "inline", cfg.Storage.CNPG.Password)
}

func TestApplyCNPGPasswordErrors(t *testing.T) {
	t.Setenv("CNPG_PASSWORD_FILE", "")
	require.ErrorIs(t, applyCNPGPassword(cnpgConfig("")), ErrCNPGPasswordRequired)

	empty := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o600))
	t.Setenv("CNPG_PASSWORD_FILE", empty)
	require.ErrorIs(t, applyCNPGPassword(cnpgConfig("")), ErrCNPGPasswordEmpty)
}

func TestApplyCNPGPasswordIgnoresMemoryStorage(t *testing.T) {
	t.Setenv("CNPG_PASSWORD_FILE", "")

	require.NoError(t, applyCNPGPassword(&dmfconsumer.Config{}))
}
