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
	"encoding/json"

	"github.com/gravitational/dashboard-automation/lib/dashboards"
	"github.com/gravitational/dashboard-automation/lib/defaults"

	"github.com/gravitational/trace"
)

// graphState accumulates the identifiers stages produce; later stages
// close over identifiers of earlier ones
type graphState struct {
	dataSourceID    string
	workspaceID     string
	indexPatternID  string
	visualizationID string
	dashboardID     string
}

// stage is one node of the saved object graph. Forward and reverse
// traversal share this list, so create and delete order cannot drift
// out of sync.
type stage struct {
	name   string
	create func(ctx context.Context, state *graphState) error
	delete func(ctx context.Context, state *graphState) error
}

// stages returns the graph stages in dependency order
func (p *Provisioner) stages() []stage {
	return []stage{
		{name: "workspace", create: p.createWorkspace, delete: p.deleteWorkspace},
		{name: "data-source-link", create: p.linkDataSource, delete: p.unlinkDataSource},
		{name: "index-pattern", create: p.createIndexPattern, delete: p.deleteIndexPattern},
		{name: "visualization", create: p.createVisualization, delete: p.deleteVisualization},
		{name: "dashboard", create: p.createDashboard, delete: p.deleteDashboard},
	}
}

// objectID returns the deterministic id for the object type
func (p *Provisioner) objectID(objectType dashboards.SavedObjectType) string {
	return ObjectID(p.config.DomainName, p.config.WorkspaceName, objectType)
}

// createWorkspace gets or creates the workspace by name. The name is the
// logical key: an existing workspace is reused whatever its id, a new one
// is pinned to the deterministic id.
func (p *Provisioner) createWorkspace(ctx context.Context, state *graphState) error {
	workspace, err := p.config.Client.FindWorkspace(ctx, p.config.WorkspaceName)
	if err == nil {
		p.config.FieldLogger.WithField("workspace", workspace.ID).Info("Reusing existing workspace.")
		state.workspaceID = workspace.ID
		return nil
	}
	if !trace.IsNotFound(err) {
		return trace.Wrap(err)
	}
	workspaceID, err := p.config.Client.CreateWorkspace(ctx, p.workspaceRequest(WorkspaceID(
		p.config.DomainName, p.config.WorkspaceName), state.dataSourceID))
	if err != nil {
		return trace.Wrap(err)
	}
	state.workspaceID = workspaceID
	return nil
}

func (p *Provisioner) deleteWorkspace(ctx context.Context, state *graphState) error {
	return trace.Wrap(p.config.Client.DeleteWorkspace(ctx, state.workspaceID))
}

// linkDataSource makes sure the workspace settings carry the domain's data
// source. A no-op when the link is already in place, which makes the stage
// safe to repeat on the update path.
func (p *Provisioner) linkDataSource(ctx context.Context, state *graphState) error {
	return trace.Wrap(p.config.Client.UpdateWorkspace(ctx, state.workspaceID,
		p.workspaceRequest("", state.dataSourceID)))
}

func (p *Provisioner) unlinkDataSource(ctx context.Context, state *graphState) error {
	return trace.Wrap(p.config.Client.UpdateWorkspace(ctx, state.workspaceID,
		p.workspaceRequest("", "")))
}

// workspaceRequest builds the workspace create/update payload. id pins the
// workspace id on creation, dataSourceID links the domain's data source;
// either may be empty.
func (p *Provisioner) workspaceRequest(id, dataSourceID string) dashboards.WorkspaceRequest {
	dataSources := []string{}
	if dataSourceID != "" {
		dataSources = append(dataSources, dataSourceID)
	}
	return dashboards.WorkspaceRequest{
		Attributes: dashboards.WorkspaceAttributes{
			ID:       id,
			Name:     p.config.WorkspaceName,
			Color:    defaults.WorkspaceColor,
			Features: []string{defaults.WorkspaceFeature},
		},
		Settings: dashboards.WorkspaceSettings{
			DataSources:     dataSources,
			DataConnections: []string{},
			Permissions: map[string]dashboards.Permission{
				"library_write": {Users: []string{"*"}},
				"write":         {Users: []string{"*"}},
			},
		},
	}
}

func (p *Provisioner) createIndexPattern(ctx context.Context, state *graphState) error {
	indexPatternID, err := p.config.Client.UpsertSavedObject(ctx, state.workspaceID, dashboards.SavedObject{
		Type: dashboards.TypeIndexPattern,
		ID:   p.objectID(dashboards.TypeIndexPattern),
		Attributes: map[string]interface{}{
			"title":         defaults.IndexPatternTitle,
			"timeFieldName": defaults.TimeFieldName,
		},
		References: []dashboards.Reference{{
			ID:   state.dataSourceID,
			Type: dashboards.TypeDataSource,
			Name: "dataSource",
		}},
	})
	if err != nil {
		return trace.Wrap(err)
	}
	state.indexPatternID = indexPatternID
	return nil
}

func (p *Provisioner) deleteIndexPattern(ctx context.Context, state *graphState) error {
	return trace.Wrap(p.config.Client.DeleteSavedObject(ctx, state.workspaceID,
		dashboards.TypeIndexPattern, p.objectID(dashboards.TypeIndexPattern)))
}

// createVisualization upserts the pie chart of status code distribution
// over the sample metrics index pattern
func (p *Provisioner) createVisualization(ctx context.Context, state *graphState) error {
	visState, err := json.Marshal(map[string]interface{}{
		"title": defaults.VisualizationTitle,
		"type":  "pie",
		"params": map[string]interface{}{
			"type":           "pie",
			"addTooltip":     true,
			"addLegend":      true,
			"legendPosition": "right",
			"isDonut":        false,
			"labels": map[string]interface{}{
				"show":       true,
				"values":     true,
				"last_level": true,
				"truncate":   100,
			},
		},
		"aggs": []map[string]interface{}{
			{
				"id":      "1",
				"enabled": true,
				"type":    "count",
				"schema":  "metric",
				"params":  map[string]interface{}{},
			},
			{
				"id":      "2",
				"enabled": true,
				"type":    "terms",
				"schema":  "segment",
				"params": map[string]interface{}{
					"field":   "status_code",
					"size":    10,
					"order":   "desc",
					"orderBy": "1",
				},
			},
		},
	})
	if err != nil {
		return trace.Wrap(err)
	}
	searchSource, err := json.Marshal(map[string]interface{}{
		"index":  state.indexPatternID,
		"query":  map[string]string{"query": "", "language": "kuery"},
		"filter": []interface{}{},
	})
	if err != nil {
		return trace.Wrap(err)
	}
	visualizationID, err := p.config.Client.UpsertSavedObject(ctx, state.workspaceID, dashboards.SavedObject{
		Type: dashboards.TypeVisualization,
		ID:   p.objectID(dashboards.TypeVisualization),
		Attributes: map[string]interface{}{
			"title":       defaults.VisualizationTitle,
			"visState":    string(visState),
			"uiStateJSON": "{}",
			"description": "Pie chart showing distribution of HTTP status codes",
			"version":     1,
			"kibanaSavedObjectMeta": map[string]interface{}{
				"searchSourceJSON": string(searchSource),
			},
		},
	})
	if err != nil {
		return trace.Wrap(err)
	}
	state.visualizationID = visualizationID
	return nil
}

func (p *Provisioner) deleteVisualization(ctx context.Context, state *graphState) error {
	return trace.Wrap(p.config.Client.DeleteSavedObject(ctx, state.workspaceID,
		dashboards.TypeVisualization, p.objectID(dashboards.TypeVisualization)))
}

// createDashboard upserts the dashboard with the visualization as its
// single panel
func (p *Provisioner) createDashboard(ctx context.Context, state *graphState) error {
	panels, err := json.Marshal([]map[string]interface{}{
		{
			"version":          defaults.DashboardPanelVersion,
			"gridData":         map[string]interface{}{"x": 0, "y": 0, "w": 24, "h": 15, "i": "1"},
			"panelIndex":       "1",
			"embeddableConfig": map[string]interface{}{},
			"panelRefName":     "panel_0",
		},
	})
	if err != nil {
		return trace.Wrap(err)
	}
	options, err := json.Marshal(map[string]interface{}{
		"useMargins":      true,
		"hidePanelTitles": false,
	})
	if err != nil {
		return trace.Wrap(err)
	}
	searchSource, err := json.Marshal(map[string]interface{}{
		"query":  map[string]string{"query": "", "language": "kuery"},
		"filter": []interface{}{},
	})
	if err != nil {
		return trace.Wrap(err)
	}
	dashboardID, err := p.config.Client.UpsertSavedObject(ctx, state.workspaceID, dashboards.SavedObject{
		Type: dashboards.TypeDashboard,
		ID:   p.objectID(dashboards.TypeDashboard),
		Attributes: map[string]interface{}{
			"title":       defaults.DashboardTitle,
			"hits":        0,
			"description": "Simple dashboard showing API metrics",
			"panelsJSON":  string(panels),
			"optionsJSON": string(options),
			"version":     1,
			"timeRestore": false,
			"kibanaSavedObjectMeta": map[string]interface{}{
				"searchSourceJSON": string(searchSource),
			},
		},
		References: []dashboards.Reference{{
			ID:   state.visualizationID,
			Type: dashboards.TypeVisualization,
			Name: "panel_0",
		}},
	})
	if err != nil {
		return trace.Wrap(err)
	}
	state.dashboardID = dashboardID
	return nil
}

func (p *Provisioner) deleteDashboard(ctx context.Context, state *graphState) error {
	return trace.Wrap(p.config.Client.DeleteSavedObject(ctx, state.workspaceID,
		dashboards.TypeDashboard, p.objectID(dashboards.TypeDashboard)))
}
