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

package httplib

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gravitational/dashboard-automation/lib/signer"

	"github.com/gravitational/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nopSigner stands in for the SigV4 signer in transport tests
type nopSigner struct{}

func (nopSigner) Sign(req *http.Request, body []byte) error { return nil }

// deniedSigner simulates an empty ambient credential chain
type deniedSigner struct{}

func (deniedSigner) Sign(req *http.Request, body []byte) error {
	return trace.AccessDenied("ambient credentials unavailable")
}

func newTestClient(t *testing.T, s signer.Signer) *Client {
	client, err := New(Config{
		Signer:          s,
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

func TestReturnsResponseOnSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := newTestClient(t, nopSigner{})
	resp, err := client.Do(context.Background(), http.MethodGet, server.URL, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"ok":true}`, string(resp.Body))
}

func TestRetriesServerErrorsUntilExhausted(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, nopSigner{})
	_, err := client.Do(context.Background(), http.MethodGet, server.URL, nil, nil)
	require.Error(t, err)
	assert.True(t, trace.IsLimitExceeded(err), "expected limit exceeded, got %v", err)
	assert.Equal(t, 3, attempts)
}

func TestRecoversAfterTransientError(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "throttled", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`ok`))
	}))
	defer server.Close()

	client := newTestClient(t, nopSigner{})
	resp, err := client.Do(context.Background(), http.MethodGet, server.URL, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, `ok`, string(resp.Body))
}

func TestPermanentFailureIsNotRetried(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	client := newTestClient(t, nopSigner{})
	_, err := client.Do(context.Background(), http.MethodGet, server.URL, nil, nil)
	require.Error(t, err)
	assert.False(t, trace.IsLimitExceeded(err))
	status, ok := StatusCode(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, 1, attempts)
}

func TestAuthErrorIsNotRetried(t *testing.T) {
	var reached bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))
	defer server.Close()

	client := newTestClient(t, deniedSigner{})
	_, err := client.Do(context.Background(), http.MethodGet, server.URL, nil, nil)
	require.Error(t, err)
	assert.True(t, trace.IsAccessDenied(err), "expected access denied, got %v", err)
	assert.False(t, reached, "unsigned request must never reach the server")
}

func TestRetriesConnectionErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	// Nothing is listening on the address anymore
	server.Close()

	client := newTestClient(t, nopSigner{})
	_, err := client.Do(context.Background(), http.MethodGet, url, nil, nil)
	require.Error(t, err)
	assert.True(t, trace.IsLimitExceeded(err), "expected limit exceeded, got %v", err)
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		status   int
		decision Decision
	}{
		{status: http.StatusOK, decision: DecisionSucceed},
		{status: http.StatusCreated, decision: DecisionSucceed},
		{status: http.StatusConflict, decision: DecisionRetry},
		{status: http.StatusTooEarly, decision: DecisionRetry},
		{status: http.StatusTooManyRequests, decision: DecisionRetry},
		{status: http.StatusInternalServerError, decision: DecisionRetry},
		{status: http.StatusServiceUnavailable, decision: DecisionRetry},
		{status: http.StatusBadRequest, decision: DecisionAbort},
		{status: http.StatusForbidden, decision: DecisionAbort},
		{status: http.StatusNotFound, decision: DecisionAbort},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.decision, Classify(tc.status), "status %v", tc.status)
	}
}
