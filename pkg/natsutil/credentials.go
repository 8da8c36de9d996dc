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

package natsutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/jwt/v2"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nkeys"

	"github.com/carverauto/fleetradar/pkg/models"
)

var (
	errCredentialsConflict = errors.New("creds_file cannot be combined with user_jwt or seed")
	errJWTWithoutSeed      = errors.New("user_jwt requires seed")
	errUserJWTExpired      = errors.New("user JWT has expired")
	errSeedMismatch        = errors.New("seed does not match the JWT subject")
	errSeedNotUser         = errors.New("seed is not a user nkey")
)

// CredentialOptions turns configured credentials into NATS connect options.
// A nil or empty configuration yields no options.
func CredentialOptions(creds *models.NATSCredentials, now time.Time) ([]nats.Option, error) {
	if creds == nil {
		return nil, nil
	}

	if creds.CredsFile != "" {
		if creds.UserJWT != "" || creds.Seed != "" {
			return nil, errCredentialsConflict
		}

		return []nats.Option{nats.UserCredentials(creds.CredsFile)}, nil
	}

	if creds.Seed == "" {
		if creds.UserJWT != "" {
			return nil, errJWTWithoutSeed
		}

		return nil, nil
	}

	kp, err := nkeys.FromSeed([]byte(creds.Seed))
	if err != nil {
		return nil, fmt.Errorf("invalid nkey seed: %w", err)
	}

	pub, err := kp.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}

	if !nkeys.IsValidPublicUserKey(pub) {
		return nil, errSeedNotUser
	}

	sign := func(nonce []byte) ([]byte, error) { return kp.Sign(nonce) }

	if creds.UserJWT == "" {
		return []nats.Option{nats.Nkey(pub, sign)}, nil
	}

	claims, err := jwt.DecodeUserClaims(creds.UserJWT)
	if err != nil {
		return nil, fmt.Errorf("invalid user JWT: %w", err)
	}

	if claims.Subject != pub {
		return nil, errSeedMismatch
	}

	if claims.Expires > 0 && now.Unix() >= claims.Expires {
		return nil, fmt.Errorf("%w at %s", errUserJWTExpired, time.Unix(claims.Expires, 0).UTC().Format(time.RFC3339))
	}

	userJWT := creds.UserJWT

	return []nats.Option{nats.UserJWT(func() (string, error) { return userJWT, nil }, sign)}, nil
}
