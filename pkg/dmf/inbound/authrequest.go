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

package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/nats-io/nats.go"

	"github.com/carverauto/fleetradar/pkg/dmf"
	"github.com/carverauto/fleetradar/pkg/dmf/dispatch"
	"github.com/carverauto/fleetradar/pkg/logger"
	"github.com/carverauto/fleetradar/pkg/models"
	"github.com/carverauto/fleetradar/pkg/repository"
	"github.com/carverauto/fleetradar/pkg/tenant"
)

var errNoFileResource = errors.New("no file resource in request")

// AuthRequestHandler answers download authorization requests of artifact servers.
type AuthRequestHandler struct {
	auth      Authenticator
	artifacts repository.Artifacts
	urls      dispatch.ArtifactURLResolver
	pub       dmf.Publisher
	preferred string
	log       logger.Logger
}

// NewAuthRequestHandler returns a handler. preferred names the URL returned as
// downloadUrl; the alphabetically first URL is used when it is not resolved.
func NewAuthRequestHandler(
	auth Authenticator,
	artifacts repository.Artifacts,
	urls dispatch.ArtifactURLResolver,
	pub dmf.Publisher,
	preferred string,
	log logger.Logger,
) *AuthRequestHandler {
	return &AuthRequestHandler{
		auth:      auth,
		artifacts: artifacts,
		urls:      urls,
		pub:       pub,
		preferred: preferred,
		log:       log,
	}
}

// Handle decodes the request in msg and publishes the response to its reply_to subject.
// Requests that cannot be answered are protocol violations.
func (h *AuthRequestHandler) Handle(ctx context.Context, msg *nats.Msg) error {
	replyTo := msg.Header.Get(dmf.HeaderReplyTo)
	if replyTo == "" {
		replyTo = msg.Reply
	}

	if replyTo == "" {
		return fmt.Errorf("%w: %s", dmf.ErrMissingHeader, dmf.HeaderReplyTo)
	}

	token, err := dmf.DecodeBody[models.TenantSecurityToken](msg.Data)
	if err != nil {
		return err
	}

	if token.Tenant == "" {
		token.Tenant = msg.Header.Get(dmf.HeaderTenant)
	}

	token.Purpose = models.PurposeDownload

	resp := h.authorize(ctx, token)

	h.log.Debug().
		Str("tenant", token.Tenant).
		Str("controller_id", token.ControllerID).
		Int("response_code", resp.ResponseCode).
		Msg("Answered download authorization")

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode authorization response: %w", err)
	}

	out := nats.NewMsg(replyTo)
	out.Header.Set(dmf.HeaderContentType, dmf.ContentTypeJSON)
	out.Header.Set(dmf.HeaderTenant, token.Tenant)

	if id := msg.Header.Get(dmf.HeaderCorrelationID); id != "" {
		out.Header.Set(dmf.HeaderCorrelationID, id)
	}

	out.Data = data

	if err := h.pub.Respond(ctx, out); err != nil {
		return fmt.Errorf("respond to authorization request: %w", err)
	}

	return nil
}

func deny(code int, err error) *models.DownloadResponse {
	return &models.DownloadResponse{ResponseCode: code, Message: err.Error()}
}

func (h *AuthRequestHandler) authorize(ctx context.Context, token *models.TenantSecurityToken) *models.DownloadResponse {
	identity, err := h.auth.Authenticate(ctx, token)

	switch {
	case errors.Is(err, dmf.ErrUnauthorized), errors.Is(err, dmf.ErrTenantNotExist):
		return deny(http.StatusUnauthorized, err)
	case err != nil:
		h.log.Error().Err(err).Str("tenant", token.Tenant).Msg("Authentication failed")

		return deny(http.StatusInternalServerError, err)
	}

	ctx = tenant.WithContext(ctx, *identity)

	artifact, err := h.findArtifact(ctx, token.FileResource)

	switch {
	case errors.Is(err, dmf.ErrEntityNotFound), errors.Is(err, errNoFileResource):
		return deny(http.StatusNotFound, err)
	case err != nil:
		return deny(http.StatusInternalServerError, err)
	}

	if !identity.Anonymous() && identity.ControllerID != "" {
		assigned, err := h.artifacts.AssignedTo(ctx, identity.ControllerID, artifact.ID)
		if err != nil {
			return deny(http.StatusInternalServerError, err)
		}

		if !assigned {
			return deny(http.StatusForbidden,
				fmt.Errorf("artifact %d is not assigned to %s", artifact.ID, identity.ControllerID))
		}
	}

	var lastModified int64
	if !artifact.LastModified.IsZero() {
		lastModified = artifact.LastModified.UnixMilli()
	}

	return &models.DownloadResponse{
		ResponseCode: http.StatusOK,
		DownloadURL: h.downloadURL(h.urls.URLs(dispatch.URLRequest{
			Tenant:       identity.Tenant,
			ControllerID: identity.ControllerID,
			Artifact:     artifact,
		})),
		Artifact: &models.DownloadArtifact{
			Size:         artifact.Size,
			Hashes:       models.DMFArtifactHash{SHA1: artifact.SHA1, MD5: artifact.MD5, SHA256: artifact.SHA256},
			LastModified: lastModified,
		},
	}
}

func (h *AuthRequestHandler) findArtifact(ctx context.Context, res *models.FileResource) (*models.Artifact, error) {
	switch {
	case res == nil:
		return nil, errNoFileResource
	case res.SHA1 != "":
		return h.artifacts.FindBySHA1(ctx, res.SHA1)
	case res.ArtifactID != nil:
		return h.artifacts.Get(ctx, *res.ArtifactID)
	case res.SoftwareModuleFilename != nil:
		return h.artifacts.FindByModuleFilename(ctx, res.SoftwareModuleFilename.SoftwareModuleID, res.SoftwareModuleFilename.Filename)
	case res.Filename != "":
		return h.artifacts.FindByFilename(ctx, res.Filename)
	}

	return nil, errNoFileResource
}

func (h *AuthRequestHandler) downloadURL(urls map[string]string) string {
	if u, ok := urls[h.preferred]; ok {
		return u
	}

	names := make([]string, 0, len(urls))
	for name := range urls {
		names = append(names, name)
	}

	if len(names) == 0 {
		return ""
	}

	sort.Strings(names)

	return urls[names[0]]
}
