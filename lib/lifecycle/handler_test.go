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

package lifecycle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gravitational/dashboard-automation/lib/provision"
	"github.com/gravitational/dashboard-automation/lib/testutils"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDomain    = "data-source-demo"
	testWorkspace = "workspace-demo"
	testSourceID  = "ds-1"
)

func newTestHandler(t *testing.T) *Handler {
	handler, err := NewHandler(Config{
		Credentials:          credentials.NewStaticCredentials("AKID", "SECRET", ""),
		ReadinessInterval:    time.Millisecond,
		ReadinessTimeout:     time.Second,
		RetryMaxAttempts:     2,
		RetryInitialInterval: time.Millisecond,
	})
	require.NoError(t, err)
	return handler
}

func newTestEvent(requestType cfn.RequestType, endpoint string) Event {
	return Event{
		RequestType: requestType,
		RequestID:   "req-1",
		Properties: Properties{
			UIEndpoint:    endpoint,
			DomainName:    testDomain,
			WorkspaceName: testWorkspace,
			Region:        "us-west-2",
		},
	}
}

func TestCreateProvisionsEndToEnd(t *testing.T) {
	fake := testutils.NewFakeUI()
	fake.AddDataSource(testSourceID, testDomain)
	server := httptest.NewServer(fake.Handler())
	defer server.Close()

	handler := newTestHandler(t)
	response := handler.Handle(context.Background(), newTestEvent(cfn.RequestCreate, server.URL))

	require.Equal(t, StatusSuccess, response.Status, "reason: %v", response.Reason)
	assert.Equal(t, provision.WorkspaceID(testDomain, testWorkspace), response.PhysicalResourceID)
	assert.Equal(t, response.PhysicalResourceID, response.Data["WorkspaceId"])
	assert.NotEmpty(t, response.Data["DashboardId"])

	workspace, exists := fake.WorkspaceByName(testWorkspace)
	require.True(t, exists)
	assert.Len(t, fake.Objects(workspace.ID, "dashboard"), 1)
}

func TestCreateWaitsForReadiness(t *testing.T) {
	fake := testutils.NewFakeUI()
	var ready, wroteBeforeReady atomic.Bool
	var polls int32
	fake.Hook = func(r *http.Request) (int, string) {
		if r.URL.Path == "/api/saved_objects/_find" {
			if atomic.AddInt32(&polls, 1) == 3 {
				fake.AddDataSource(testSourceID, testDomain)
				ready.Store(true)
			}
			return 0, ""
		}
		if r.Method == http.MethodPost && !ready.Load() {
			wroteBeforeReady.Store(true)
		}
		return 0, ""
	}
	server := httptest.NewServer(fake.Handler())
	defer server.Close()

	handler := newTestHandler(t)
	response := handler.Handle(context.Background(), newTestEvent(cfn.RequestCreate, server.URL))

	require.Equal(t, StatusSuccess, response.Status, "reason: %v", response.Reason)
	assert.False(t, wroteBeforeReady.Load(), "first write must happen strictly after readiness")
	assert.GreaterOrEqual(t, atomic.LoadInt32(&polls), int32(3))
}

func TestCreateTimesOutWhenNeverReady(t *testing.T) {
	fake := testutils.NewFakeUI()
	server := httptest.NewServer(fake.Handler())
	defer server.Close()

	handler, err := NewHandler(Config{
		Credentials:          credentials.NewStaticCredentials("AKID", "SECRET", ""),
		ReadinessInterval:    time.Millisecond,
		ReadinessTimeout:     5 * time.Millisecond,
		RetryMaxAttempts:     2,
		RetryInitialInterval: time.Millisecond,
	})
	require.NoError(t, err)

	response := handler.Handle(context.Background(), newTestEvent(cfn.RequestCreate, server.URL))
	require.Equal(t, StatusFailed, response.Status)
	assert.Contains(t, response.Reason, "did not become ready")
	assert.Empty(t, fake.Workspaces())
}

// Create followed by Update followed by a retried Create converges on one
// consistent object graph.
func TestRepeatedInvocationsConverge(t *testing.T) {
	fake := testutils.NewFakeUI()
	fake.AddDataSource(testSourceID, testDomain)
	server := httptest.NewServer(fake.Handler())
	defer server.Close()

	handler := newTestHandler(t)
	create := handler.Handle(context.Background(), newTestEvent(cfn.RequestCreate, server.URL))
	require.Equal(t, StatusSuccess, create.Status, "reason: %v", create.Reason)

	update := newTestEvent(cfn.RequestUpdate, server.URL)
	update.PhysicalResourceID = create.PhysicalResourceID
	updated := handler.Handle(context.Background(), update)
	require.Equal(t, StatusSuccess, updated.Status, "reason: %v", updated.Reason)

	retried := handler.Handle(context.Background(), newTestEvent(cfn.RequestCreate, server.URL))
	require.Equal(t, StatusSuccess, retried.Status, "reason: %v", retried.Reason)

	assert.Equal(t, create.Data, updated.Data)
	assert.Equal(t, create.Data, retried.Data)
	require.Len(t, fake.Workspaces(), 1)
	workspace := fake.Workspaces()[0]
	assert.Len(t, fake.Objects(workspace.ID, "index-pattern"), 1)
	assert.Len(t, fake.Objects(workspace.ID, "visualization"), 1)
	assert.Len(t, fake.Objects(workspace.ID, "dashboard"), 1)
}

func TestDeleteTearsDownAndIsIdempotent(t *testing.T) {
	fake := testutils.NewFakeUI()
	fake.AddDataSource(testSourceID, testDomain)
	server := httptest.NewServer(fake.Handler())
	defer server.Close()

	handler := newTestHandler(t)
	create := handler.Handle(context.Background(), newTestEvent(cfn.RequestCreate, server.URL))
	require.Equal(t, StatusSuccess, create.Status, "reason: %v", create.Reason)

	deleteEvent := newTestEvent(cfn.RequestDelete, server.URL)
	deleteEvent.PhysicalResourceID = create.PhysicalResourceID
	deleted := handler.Handle(context.Background(), deleteEvent)
	require.Equal(t, StatusSuccess, deleted.Status, "reason: %v", deleted.Reason)
	assert.Equal(t, create.PhysicalResourceID, deleted.PhysicalResourceID)
	assert.Empty(t, fake.Workspaces())

	// Deleting the already-absent graph still succeeds
	again := handler.Handle(context.Background(), deleteEvent)
	require.Equal(t, StatusSuccess, again.Status, "reason: %v", again.Reason)
}

func TestPermanentFailureIsReported(t *testing.T) {
	fake := testutils.NewFakeUI()
	fake.Hook = func(r *http.Request) (int, string) {
		return http.StatusForbidden, "signature mismatch"
	}
	server := httptest.NewServer(fake.Handler())
	defer server.Close()

	handler := newTestHandler(t)
	response := handler.Handle(context.Background(), newTestEvent(cfn.RequestCreate, server.URL))
	require.Equal(t, StatusFailed, response.Status)
	assert.NotEmpty(t, response.Reason)
	assert.NotEmpty(t, response.PhysicalResourceID)
}

func TestInvalidPropertiesAreReported(t *testing.T) {
	handler := newTestHandler(t)
	event := newTestEvent(cfn.RequestCreate, "ui.example.com")
	event.Properties.WorkspaceName = ""

	response := handler.Handle(context.Background(), event)
	require.Equal(t, StatusFailed, response.Status)
	assert.Contains(t, response.Reason, "workspaceName")
}

func TestFromCFN(t *testing.T) {
	event, err := FromCFN(cfn.Event{
		RequestType:        cfn.RequestUpdate,
		RequestID:          "req-9",
		PhysicalResourceID: "phys-1",
		ResourceProperties: map[string]interface{}{
			"opensearchUIEndpoint": "ui.example.com",
			"domainName":           testDomain,
			"domainEndpoint":       "search-demo.example.com",
			"workspaceName":        testWorkspace,
			"region":               "us-west-2",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, cfn.RequestUpdate, event.RequestType)
	assert.Equal(t, "req-9", event.RequestID)
	assert.Equal(t, "phys-1", event.PhysicalResourceID)
	assert.Equal(t, Properties{
		UIEndpoint:     "ui.example.com",
		DomainName:     testDomain,
		DomainEndpoint: "search-demo.example.com",
		WorkspaceName:  testWorkspace,
		Region:         "us-west-2",
	}, event.Properties)
}
