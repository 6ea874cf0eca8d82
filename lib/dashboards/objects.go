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

package dashboards

// SavedObjectType identifies the type of a saved object
type SavedObjectType string

const (
	// TypeDataSource is the saved object linking the UI to a domain
	TypeDataSource SavedObjectType = "data-source"
	// TypeIndexPattern describes which indices a visualization may query
	TypeIndexPattern SavedObjectType = "index-pattern"
	// TypeVisualization is a single chart definition
	TypeVisualization SavedObjectType = "visualization"
	// TypeDashboard is a panel layout over visualizations
	TypeDashboard SavedObjectType = "dashboard"
)

// Reference points at a saved object this object depends on
type Reference struct {
	// ID is the referenced object id
	ID string `json:"id"`
	// Type is the referenced object type
	Type SavedObjectType `json:"type"`
	// Name is the reference slot name, e.g. "panel_0"
	Name string `json:"name"`
}

// SavedObject is a typed, referenceable configuration entity stored by the
// dashboards API. References form a DAG: dashboard -> visualization ->
// index pattern -> data source.
type SavedObject struct {
	// Type is the saved object type
	Type SavedObjectType
	// ID is the deterministic object id
	ID string
	// Attributes holds the type-specific payload
	Attributes map[string]interface{}
	// References lists the objects this one depends on, in order
	References []Reference
}

// WorkspaceAttributes describes a workspace
type WorkspaceAttributes struct {
	// ID pins the workspace id on creation, empty to let the API choose
	ID string `json:"id,omitempty"`
	// Name is the workspace name, the logical key for get-or-create
	Name string `json:"name"`
	// Color is the workspace accent color
	Color string `json:"color,omitempty"`
	// Features lists the use cases the workspace is scoped to
	Features []string `json:"features,omitempty"`
}

// Permission grants an operation to a set of users
type Permission struct {
	// Users lists user names, "*" for everyone
	Users []string `json:"users"`
}

// WorkspaceSettings carries workspace data source links and permissions
type WorkspaceSettings struct {
	// DataSources lists linked data source ids
	DataSources []string `json:"dataSources"`
	// DataConnections lists linked direct query connections
	DataConnections []string `json:"dataConnections"`
	// Permissions maps operation name to the granted principals
	Permissions map[string]Permission `json:"permissions,omitempty"`
}

// WorkspaceRequest is the create/update payload of the workspaces API
type WorkspaceRequest struct {
	// Attributes describes the workspace
	Attributes WorkspaceAttributes `json:"attributes"`
	// Settings carries data source links and permissions
	Settings WorkspaceSettings `json:"settings"`
}

// Workspace is a workspace as reported by the list API
type Workspace struct {
	// ID is the workspace id
	ID string `json:"id"`
	// Name is the workspace name
	Name string `json:"name"`
}
