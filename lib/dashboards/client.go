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

// Package dashboards implements a client for the OpenSearch UI REST
// surface: the workspaces API and the workspace-scoped saved objects API.
package dashboards

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gravitational/dashboard-automation/lib/defaults"
	"github.com/gravitational/dashboard-automation/lib/httplib"

	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
)

// Config defines the dashboards client configuration
type Config struct {
	// Endpoint is the base URL of the OpenSearch UI application;
	// a bare host is assumed to be HTTPS
	Endpoint string
	// Client issues the signed HTTP calls
	Client *httplib.Client
	// FieldLogger is the logger API calls are reported to
	FieldLogger log.FieldLogger
}

// CheckAndSetDefaults validates the config and fills in defaults
func (c *Config) CheckAndSetDefaults() error {
	if c.Endpoint == "" {
		return trace.BadParameter("missing parameter Endpoint")
	}
	if c.Client == nil {
		return trace.BadParameter("missing parameter Client")
	}
	if !strings.Contains(c.Endpoint, "://") {
		c.Endpoint = "https://" + c.Endpoint
	}
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")
	if c.FieldLogger == nil {
		c.FieldLogger = log.WithField(trace.Component, "dashboards")
	}
	return nil
}

// New returns a new dashboards API client
func New(config Config) (*Client, error) {
	if err := config.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Client{config: config}, nil
}

// Client talks to the OpenSearch UI API
type Client struct {
	config Config
}

// FindDataSource looks up the id of the data source the UI created for the
// given domain. Returns a not found error if no data source matches.
func (c *Client) FindDataSource(ctx context.Context, domainName string) (string, error) {
	target := fmt.Sprintf("%v/api/saved_objects/_find?type=data-source&per_page=100", c.config.Endpoint)
	resp, err := c.config.Client.Do(ctx, http.MethodGet, target, commonHeaders(), nil)
	if err != nil {
		return "", trace.Wrap(err)
	}
	var result struct {
		SavedObjects []struct {
			ID         string `json:"id"`
			Attributes struct {
				Title string `json:"title"`
			} `json:"attributes"`
		} `json:"saved_objects"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return "", trace.Wrap(err)
	}
	for _, object := range result.SavedObjects {
		if object.Attributes.Title == domainName || strings.Contains(object.Attributes.Title, domainName) {
			return object.ID, nil
		}
	}
	return "", trace.NotFound("no data source found for domain %q", domainName)
}

// FindWorkspace looks up a workspace by name. Returns a not found error if
// no workspace has that name.
func (c *Client) FindWorkspace(ctx context.Context, name string) (*Workspace, error) {
	target := fmt.Sprintf("%v/api/workspaces/_list", c.config.Endpoint)
	resp, err := c.config.Client.Do(ctx, http.MethodPost, target, commonHeaders(), []byte(`{}`))
	if err != nil {
		return nil, trace.Wrap(err)
	}
	var result struct {
		Success bool `json:"success"`
		Result  struct {
			Workspaces []Workspace `json:"workspaces"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, trace.Wrap(err)
	}
	if !result.Success {
		return nil, trace.BadParameter("workspace list request was rejected: %s", resp.Body)
	}
	for _, workspace := range result.Result.Workspaces {
		if workspace.Name == name {
			return &workspace, nil
		}
	}
	return nil, trace.NotFound("no workspace named %q", name)
}

// CreateWorkspace creates a new workspace and returns its id
func (c *Client) CreateWorkspace(ctx context.Context, req WorkspaceRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", trace.Wrap(err)
	}
	target := fmt.Sprintf("%v/api/workspaces", c.config.Endpoint)
	resp, err := c.config.Client.Do(ctx, http.MethodPost, target, commonHeaders(), body)
	if err != nil {
		return "", trace.Wrap(err)
	}
	var result struct {
		Success bool `json:"success"`
		Result  struct {
			ID string `json:"id"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return "", trace.Wrap(err)
	}
	if !result.Success || result.Result.ID == "" {
		return "", trace.BadParameter("workspace creation was rejected: %s", resp.Body)
	}
	c.config.FieldLogger.WithField("workspace", result.Result.ID).Info("Workspace created.")
	return result.Result.ID, nil
}

// UpdateWorkspace updates an existing workspace in place
func (c *Client) UpdateWorkspace(ctx context.Context, id string, req WorkspaceRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return trace.Wrap(err)
	}
	target := fmt.Sprintf("%v/api/workspaces/%v", c.config.Endpoint, id)
	resp, err := c.config.Client.Do(ctx, http.MethodPut, target, commonHeaders(), body)
	if err != nil {
		return trace.Wrap(convertNotFound(err, "workspace %v not found", id))
	}
	var result struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return trace.Wrap(err)
	}
	if !result.Success {
		return trace.BadParameter("workspace update was rejected: %s", resp.Body)
	}
	return nil
}

// DeleteWorkspace removes the workspace. Returns a not found error if the
// workspace does not exist.
func (c *Client) DeleteWorkspace(ctx context.Context, id string) error {
	target := fmt.Sprintf("%v/api/workspaces/%v", c.config.Endpoint, id)
	_, err := c.config.Client.Do(ctx, http.MethodDelete, target, commonHeaders(), nil)
	if err != nil {
		return trace.Wrap(convertNotFound(err, "workspace %v not found", id))
	}
	c.config.FieldLogger.WithField("workspace", id).Info("Workspace deleted.")
	return nil
}

// UpsertSavedObject creates or overwrites the saved object under its
// deterministic id within the given workspace. Repeated calls with the
// same object converge on one stored copy.
func (c *Client) UpsertSavedObject(ctx context.Context, workspaceID string, object SavedObject) (string, error) {
	payload := struct {
		Attributes map[string]interface{} `json:"attributes"`
		References []Reference            `json:"references,omitempty"`
	}{Attributes: object.Attributes, References: object.References}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", trace.Wrap(err)
	}
	target := fmt.Sprintf("%v/w/%v/api/saved_objects/%v/%v?overwrite=true",
		c.config.Endpoint, workspaceID, object.Type, url.PathEscape(object.ID))
	resp, err := c.config.Client.Do(ctx, http.MethodPost, target, commonHeaders(), body)
	if err != nil {
		return "", trace.Wrap(err)
	}
	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return "", trace.Wrap(err)
	}
	if result.ID == "" {
		result.ID = object.ID
	}
	c.config.FieldLogger.WithFields(log.Fields{
		"type": object.Type,
		"id":   result.ID,
	}).Info("Saved object upserted.")
	return result.ID, nil
}

// DeleteSavedObject removes the saved object from the workspace. Returns a
// not found error if the object does not exist.
func (c *Client) DeleteSavedObject(ctx context.Context, workspaceID string, objectType SavedObjectType, id string) error {
	target := fmt.Sprintf("%v/w/%v/api/saved_objects/%v/%v",
		c.config.Endpoint, workspaceID, objectType, url.PathEscape(id))
	_, err := c.config.Client.Do(ctx, http.MethodDelete, target, commonHeaders(), nil)
	if err != nil {
		return trace.Wrap(convertNotFound(err, "%v %v not found", objectType, id))
	}
	return nil
}

// commonHeaders returns the headers every UI API request carries
func commonHeaders() http.Header {
	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")
	headers.Set(defaults.OSDXSRFHeader, defaults.OSDXSRFValue)
	headers.Set("osd-version", defaults.OSDVersion)
	return headers
}

// convertNotFound maps an upstream 404 to a not found error so callers can
// treat "already absent" as success on teardown
func convertNotFound(err error, format string, args ...interface{}) error {
	if status, ok := httplib.StatusCode(err); ok && status == http.StatusNotFound {
		return trace.NotFound(format, args...)
	}
	return err
}
