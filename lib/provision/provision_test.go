/*
Copyright 2025 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package provision

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gravitational/dashboard-automation/lib/dashboards"
	"github.com/gravitational/dashboard-automation/lib/httplib"
	"github.com/gravitational/dashboard-automation/lib/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDomain    = "data-source-demo"
	testWorkspace = "workspace-demo"
	testSourceID  = "ds-1"
)

type nopSigner struct{}

func (nopSigner) Sign(req *http.Request, body []byte) error { return nil }

func newTestProvisioner(t *testing.T, endpoint string) *Provisioner {
	httpClient, err := httplib.New(httplib.Config{
		Signer:          nopSigner{},
		MaxAttempts:     2,
		InitialInterval: time.Millisecond,
	})
	require.NoError(t, err)
	client, err := dashboards.New(dashboards.Config{
		Endpoint: endpoint,
		Client:   httpClient,
	})
	require.NoError(t, err)
	provisioner, err := New(Config{
		Client:        client,
		DomainName:    testDomain,
		WorkspaceName: testWorkspace,
	})
	require.NoError(t, err)
	return provisioner
}

func newReadyFake() *testutils.FakeUI {
	fake := testutils.NewFakeUI()
	fake.AddDataSource(testSourceID, testDomain)
	return fake
}

func TestCreateBuildsObjectGraph(t *testing.T) {
	fake := newReadyFake()
	server := httptest.NewServer(fake.Handler())
	defer server.Close()

	provisioner := newTestProvisioner(t, server.URL)
	result, err := provisioner.Create(context.Background(), testSourceID)
	require.NoError(t, err)
	assert.Equal(t, WorkspaceID(testDomain, testWorkspace), result.WorkspaceID)
	assert.Equal(t, ObjectID(testDomain, testWorkspace, dashboards.TypeDashboard), result.DashboardID)

	workspace, exists := fake.WorkspaceByName(testWorkspace)
	require.True(t, exists)
	assert.Equal(t, []string{testSourceID}, workspace.DataSources)

	patterns := fake.Objects(workspace.ID, "index-pattern")
	require.Len(t, patterns, 1)
	assert.Equal(t, "application-metrics-*", patterns[0].Attributes["title"])

	visualizations := fake.Objects(workspace.ID, "visualization")
	require.Len(t, visualizations, 1)
	meta := visualizations[0].Attributes["kibanaSavedObjectMeta"].(map[string]interface{})
	assert.Contains(t, meta["searchSourceJSON"], patterns[0].ID)

	boards := fake.Objects(workspace.ID, "dashboard")
	require.Len(t, boards, 1)
	require.Len(t, boards[0].References, 1)
	assert.Equal(t, visualizations[0].ID, boards[0].References[0]["id"])
	assert.Equal(t, "panel_0", boards[0].References[0]["name"])
}

func TestCreateIsIdempotent(t *testing.T) {
	fake := newReadyFake()
	server := httptest.NewServer(fake.Handler())
	defer server.Close()

	provisioner := newTestProvisioner(t, server.URL)
	first, err := provisioner.Create(context.Background(), testSourceID)
	require.NoError(t, err)
	second, err := provisioner.Create(context.Background(), testSourceID)
	require.NoError(t, err)

	assert.Equal(t, first.WorkspaceID, second.WorkspaceID)
	assert.Equal(t, first.DashboardID, second.DashboardID)
	assert.Len(t, fake.Workspaces(), 1)
	assert.Len(t, fake.Objects(first.WorkspaceID, "index-pattern"), 1)
	assert.Len(t, fake.Objects(first.WorkspaceID, "visualization"), 1)
	assert.Len(t, fake.Objects(first.WorkspaceID, "dashboard"), 1)
}

// A failed later stage leaves earlier stages in place and a retry resumes
// from the failed stage.
func TestCreateResumesAfterStageFailure(t *testing.T) {
	fake := newReadyFake()
	fake.Hook = func(r *http.Request) (int, string) {
		if r.Method == http.MethodPost && strings.Contains(r.URL.Path, "/saved_objects/visualization/") {
			return http.StatusBadRequest, "malformed visualization"
		}
		return 0, ""
	}
	server := httptest.NewServer(fake.Handler())
	defer server.Close()

	provisioner := newTestProvisioner(t, server.URL)
	_, err := provisioner.Create(context.Background(), testSourceID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "visualization")

	// Earlier stages are committed, nothing was rolled back
	workspace, exists := fake.WorkspaceByName(testWorkspace)
	require.True(t, exists)
	assert.Len(t, fake.Objects(workspace.ID, "index-pattern"), 1)
	assert.Empty(t, fake.Objects(workspace.ID, "dashboard"))

	fake.Hook = nil
	result, err := provisioner.Create(context.Background(), testSourceID)
	require.NoError(t, err)
	assert.Equal(t, workspace.ID, result.WorkspaceID)
	assert.Len(t, fake.Objects(workspace.ID, "visualization"), 1)
	assert.Len(t, fake.Objects(workspace.ID, "dashboard"), 1)
}

func TestDeleteTearsDownGraph(t *testing.T) {
	fake := newReadyFake()
	server := httptest.NewServer(fake.Handler())
	defer server.Close()

	provisioner := newTestProvisioner(t, server.URL)
	_, err := provisioner.Create(context.Background(), testSourceID)
	require.NoError(t, err)

	require.NoError(t, provisioner.Delete(context.Background()))
	assert.Empty(t, fake.Workspaces())
}

func TestDeleteOfAbsentGraphSucceeds(t *testing.T) {
	fake := newReadyFake()
	server := httptest.NewServer(fake.Handler())
	defer server.Close()

	provisioner := newTestProvisioner(t, server.URL)
	// Nothing was ever provisioned
	require.NoError(t, provisioner.Delete(context.Background()))

	// Deleting twice is also fine
	_, err := provisioner.Create(context.Background(), testSourceID)
	require.NoError(t, err)
	require.NoError(t, provisioner.Delete(context.Background()))
	require.NoError(t, provisioner.Delete(context.Background()))
}

func TestObjectIDIsDeterministic(t *testing.T) {
	first := ObjectID(testDomain, testWorkspace, dashboards.TypeDashboard)
	second := ObjectID(testDomain, testWorkspace, dashboards.TypeDashboard)
	assert.Equal(t, first, second)

	assert.NotEqual(t, first, ObjectID(testDomain, testWorkspace, dashboards.TypeVisualization))
	assert.NotEqual(t, first, ObjectID("other-domain", testWorkspace, dashboards.TypeDashboard))
	assert.Equal(t, WorkspaceID(testDomain, testWorkspace), WorkspaceID(testDomain, testWorkspace))
}
