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

package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/fleetradar/pkg/dmf"
	"github.com/carverauto/fleetradar/pkg/models"
	"github.com/carverauto/fleetradar/pkg/repository"
	"github.com/carverauto/fleetradar/pkg/tenant"
)

func TestTopicAllCombinations(t *testing.T) {
	const (
		cancel   = dmf.TopicCancelDownload
		confirm  = dmf.TopicConfirm
		download = dmf.TopicDownload
		install  = dmf.TopicDownloadAndInstall
	)

	tests := []struct {
		canceling, waiting, downloadOnly, windowOpen bool
		want                                         dmf.Topic
	}{
		{false, false, false, false, download},
		{false, false, false, true, install},
		{false, false, true, false, download},
		{false, false, true, true, download},
		{false, true, false, false, confirm},
		{false, true, false, true, confirm},
		{false, true, true, false, confirm},
		{false, true, true, true, confirm},
		{true, false, false, false, cancel},
		{true, false, false, true, cancel},
		{true, false, true, false, cancel},
		{true, false, true, true, cancel},
		{true, true, false, false, cancel},
		{true, true, false, true, cancel},
		{true, true, true, false, cancel},
		{true, true, true, true, cancel},
	}

	for _, tt := range tests {
		f := Flags{
			CancelingOrCanceled: tt.canceling,
			WaitingConfirmation: tt.waiting,
			DownloadOnly:        tt.downloadOnly,
			WindowOpen:          tt.windowOpen,
		}

		t.Run(fmt.Sprintf("%+v", f), func(t *testing.T) {
			assert.Equal(t, tt.want, Topic(f))
		})
	}
}

func TestTopicFor(t *testing.T) {
	now := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	closed := &models.MaintenanceWindow{Schedule: "0 2 * * *", Duration: time.Hour}

	tests := []struct {
		name   string
		action *models.Action
		want   dmf.Topic
	}{
		{"forced", &models.Action{Type: models.ActionTypeForced, Status: models.StatusRunning}, dmf.TopicDownloadAndInstall},
		{"canceled", &models.Action{Status: models.StatusCanceled}, dmf.TopicCancelDownload},
		{"canceling download only", &models.Action{Type: models.ActionTypeDownloadOnly, Status: models.StatusCanceling}, dmf.TopicCancelDownload},
		{"waiting", &models.Action{Status: models.StatusWaitForConfirmation}, dmf.TopicConfirm},
		{"download only", &models.Action{Type: models.ActionTypeDownloadOnly}, dmf.TopicDownload},
		{"window closed", &models.Action{Type: models.ActionTypeSoft, MaintenanceWindow: closed}, dmf.TopicDownload},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TopicFor(tc.action, now))
		})
	}
}

func TestSelection(t *testing.T) {
	actions := []*models.Action{
		{ID: 1, Weight: 5, Active: true},
		{ID: 2, Weight: 10, Active: true},
		{ID: 3, Weight: 10, Active: true},
		{ID: 4, Weight: 100, Active: false},
		{ID: 5, Weight: 1, Active: true},
	}

	assert.Equal(t, int64(2), SelectSingle(actions).ID)
	assert.Nil(t, SelectSingle(nil))

	multi := SelectMulti(actions, 0)
	ids := make([]int64, 0, len(multi))

	for _, a := range multi {
		ids = append(ids, a.ID)
	}

	assert.Equal(t, []int64{2, 3, 1, 5}, ids)
	assert.Len(t, SelectMulti(actions, 2), 2)

	assert.False(t, HasPendingCancellation(actions))
	assert.True(t, HasPendingCancellation([]*models.Action{{Active: true, Status: models.StatusCanceling}}))
}

func TestPatternURLResolver(t *testing.T) {
	r := NewPatternURLResolver([]URLPattern{
		{
			Name: "HTTPS", Protocol: "https", Hostname: "dl.example.com", Port: 8443,
			Pattern: "{protocol}://{hostname}:{port}/{tenant}/controller/v1/{controllerId}/softwaremodules/{softwareModuleId}/artifacts/{artifactFileName}",
		},
		{
			Name: "HTTP", Protocol: "http", Hostname: "cdn.example.com",
			Pattern: "{protocol}://{hostname}/{tenant}/{artifactSHA1}",
		},
	})

	art := &models.Artifact{SoftwareModuleID: 7, Filename: "os.bin", SHA1: "abc"}

	urls := r.URLs(URLRequest{Tenant: "acme", ControllerID: "dev1", Artifact: art})
	assert.Equal(t, "https://dl.example.com:8443/acme/controller/v1/dev1/softwaremodules/7/artifacts/os.bin", urls["HTTPS"])
	assert.Equal(t, "http://cdn.example.com/acme/abc", urls["HTTP"])

	batch := r.URLs(URLRequest{Tenant: "acme", Artifact: art})
	assert.NotContains(t, batch, "HTTPS")
	assert.Contains(t, batch, "HTTP")

	require.Error(t, URLPattern{}.Validate())
	require.NoError(t, URLPattern{Name: "HTTP", Pattern: "x"}.Validate())
}

func testDistributionSet() *models.DistributionSet {
	return &models.DistributionSet{
		ID:     11,
		Tenant: "acme",
		Modules: []*models.SoftwareModule{{
			ID: 21, Type: "os", Version: "1.0",
			Artifacts: []*models.Artifact{{ID: 31, SoftwareModuleID: 21, Filename: "os.bin", SHA1: "s1", MD5: "m1", Size: 42}},
			Metadata: []models.ModuleMetadata{
				{Key: "visible", Value: "yes", TargetVisible: true},
				{Key: "hidden", Value: "no"},
			},
		}},
	}
}

func testTarget(id string) *models.Target {
	return &models.Target{
		ControllerID:  id,
		SecurityToken: "tok-" + id,
		Address:       models.Address{Scheme: models.AddressSchemeNATS, Subject: "dmf.out.default"},
	}
}

func acmeCtx() context.Context {
	return tenant.WithContext(context.Background(), tenant.Info{Tenant: "ACME", Kind: tenant.KindSystem})
}

func newTestBuilder(t *testing.T, sets repository.DistributionSets) *Builder {
	t.Helper()

	resolver := NewPatternURLResolver([]URLPattern{
		{Name: "HTTP", Protocol: "http", Hostname: "h", Pattern: "{protocol}://{hostname}/{tenant}/{controllerId}/{artifactFileName}"},
		{Name: "SHA", Protocol: "http", Hostname: "h", Pattern: "{protocol}://{hostname}/{artifactSHA1}"},
	})

	return NewBuilder(sets, resolver, WithClock(func() time.Time { return time.UnixMilli(1_700_000_000_000) }))
}

func TestBuilderSingle(t *testing.T) {
	ctrl := gomock.NewController(t)
	sets := repository.NewMockDistributionSets(ctrl)
	sets.EXPECT().Get(gomock.Any(), int64(11)).Return(testDistributionSet(), nil)

	b := newTestBuilder(t, sets)
	target := testTarget("dev.1")

	out, err := b.Single(acmeCtx(), target, &models.Action{ID: 5, DistributionSetID: 11, Type: models.ActionTypeForced, Active: true})
	require.NoError(t, err)

	assert.Equal(t, "dmf.out.default.acme.dev_1", out.Subject)
	assert.Equal(t, dmf.TopicDownloadAndInstall, out.Topic)
	assert.Equal(t, "ACME", out.Tenant)

	req, ok := out.Payload.(*models.DownloadRequest)
	require.True(t, ok)
	assert.Equal(t, int64(5), req.ActionID)
	assert.Equal(t, "tok-dev.1", req.TargetSecurityToken)
	require.Len(t, req.SoftwareModules, 1)

	mod := req.SoftwareModules[0]
	assert.Equal(t, []models.DMFMetadata{{Key: "visible", Value: "yes"}}, mod.Metadata)
	require.Len(t, mod.Artifacts, 1)
	assert.Equal(t, "http://h/ACME/dev.1/os.bin", mod.Artifacts[0].URLs["HTTP"])
	assert.Equal(t, int64(42), mod.Artifacts[0].Size)
}

func TestBuilderCancelHasNoModules(t *testing.T) {
	ctrl := gomock.NewController(t)
	sets := repository.NewMockDistributionSets(ctrl)

	b := newTestBuilder(t, sets)

	out, err := b.Single(acmeCtx(), testTarget("dev1"), &models.Action{ID: 9, Status: models.StatusCanceling, Active: true})
	require.NoError(t, err)
	assert.Equal(t, dmf.TopicCancelDownload, out.Topic)

	data, err := json.Marshal(out.Payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"actionId":9}`, string(data))
}

func TestBuilderMultiOrdersByWeight(t *testing.T) {
	ctrl := gomock.NewController(t)
	sets := repository.NewMockDistributionSets(ctrl)
	sets.EXPECT().Get(gomock.Any(), int64(11)).Return(testDistributionSet(), nil).Times(1)

	b := newTestBuilder(t, sets)

	actions := []*models.Action{
		{ID: 1, Weight: 1, DistributionSetID: 11, Active: true},
		{ID: 2, Weight: 10, DistributionSetID: 11, Active: true},
		{ID: 3, Weight: 5, Status: models.StatusCanceling, Active: true},
	}

	out, err := b.Next(acmeCtx(), testTarget("dev1"), actions, true)
	require.NoError(t, err)
	assert.Equal(t, dmf.TopicMultiAction, out.Topic)

	req, ok := out.Payload.(*models.MultiActionRequest)
	require.True(t, ok)
	require.Len(t, req.Elements, 3)
	assert.Equal(t, []int{10, 5, 1}, []int{req.Elements[0].Weight, req.Elements[1].Weight, req.Elements[2].Weight})
	assert.Equal(t, string(dmf.TopicCancelDownload), req.Elements[1].Topic)

	none, err := b.Next(acmeCtx(), testTarget("dev1"), nil, true)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestBuilderBatch(t *testing.T) {
	b := newTestBuilder(t, nil)
	ds := testDistributionSet()

	entries := []BatchEntry{
		{Target: testTarget("dev1"), Action: &models.Action{ID: 1}},
		{Target: testTarget("dev2"), Action: &models.Action{ID: 2}},
	}

	out, err := b.Batch(acmeCtx(), dmf.TopicDownload, ds, entries)
	require.NoError(t, err)

	assert.Equal(t, "dmf.out.default.acme.batch", out.Subject)
	assert.Equal(t, dmf.TopicBatchDownload, out.Topic)
	assert.Empty(t, out.ThingID)

	req, ok := out.Payload.(*models.BatchDownloadRequest)
	require.True(t, ok)
	assert.Len(t, req.Targets, 2)
	assert.Equal(t, "tok-dev2", req.Targets[1].TargetSecurityToken)
	assert.Equal(t, int64(1_700_000_000_000), req.Timestamp)

	urls := req.SoftwareModules[0].Artifacts[0].URLs
	assert.NotContains(t, urls, "HTTP")
	assert.Equal(t, "http://h/s1", urls["SHA"])

	_, err = b.Batch(acmeCtx(), dmf.TopicConfirm, ds, entries)
	require.ErrorIs(t, err, ErrNotBatchable)
}

func TestBuilderRequiresBrokerAddress(t *testing.T) {
	b := newTestBuilder(t, nil)

	_, err := b.AttributesRequest(acmeCtx(), &models.Target{ControllerID: "dev1"})
	require.ErrorIs(t, err, ErrNoAddress)

	out, err := b.ThingDeleted(acmeCtx(), "dev1", testTarget("dev1").Address)
	require.NoError(t, err)
	assert.Equal(t, dmf.TypeThingDeleted, out.Type)
}
