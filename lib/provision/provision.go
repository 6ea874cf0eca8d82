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

// Package provision builds and tears down the demo saved object graph:
// workspace -> data source link -> index pattern -> visualization ->
// dashboard.
//
// Every write is an idempotent upsert keyed on a deterministic id, so a
// repeated lifecycle event resumes where the previous one stopped instead
// of erroring or duplicating objects. Nothing is rolled back on failure:
// earlier stages are no-ops on repeat and harmless to leave in place.
package provision

import (
	"context"

	"github.com/gravitational/dashboard-automation/lib/dashboards"

	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
)

// Config defines the provisioner configuration
type Config struct {
	// Client is the dashboards API client
	Client *dashboards.Client
	// DomainName is the managed domain backing the workspace
	DomainName string
	// WorkspaceName is the name of the workspace to provision
	WorkspaceName string
	// FieldLogger is the logger stage progress is reported to
	FieldLogger log.FieldLogger
}

// CheckAndSetDefaults validates the config and fills in defaults
func (c *Config) CheckAndSetDefaults() error {
	if c.Client == nil {
		return trace.BadParameter("missing parameter Client")
	}
	if c.DomainName == "" {
		return trace.BadParameter("missing parameter DomainName")
	}
	if c.WorkspaceName == "" {
		return trace.BadParameter("missing parameter WorkspaceName")
	}
	if c.FieldLogger == nil {
		c.FieldLogger = log.WithField(trace.Component, "provision")
	}
	return nil
}

// New returns a new saved object graph provisioner
func New(config Config) (*Provisioner, error) {
	if err := config.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Provisioner{config: config}, nil
}

// Provisioner drives the saved object graph through its stages
type Provisioner struct {
	config Config
}

// Result reports the identifiers of the provisioned graph
type Result struct {
	// WorkspaceID is the id of the workspace
	WorkspaceID string
	// DashboardID is the id of the dashboard
	DashboardID string
}

// Create walks the stages in dependency order, upserting each object.
// dataSourceID is the data source resolved by the readiness gate. A failed
// stage aborts the pass without rolling back earlier stages; a later retry
// resumes from the failed stage because completed stages are no-ops.
func (p *Provisioner) Create(ctx context.Context, dataSourceID string) (*Result, error) {
	state := &graphState{dataSourceID: dataSourceID}
	for _, stage := range p.stages() {
		p.config.FieldLogger.WithField("stage", stage.name).Info("Provisioning stage.")
		if err := stage.create(ctx, state); err != nil {
			return nil, trace.Wrap(err, "provisioning stage %q failed", stage.name)
		}
	}
	return &Result{
		WorkspaceID: state.workspaceID,
		DashboardID: state.dashboardID,
	}, nil
}

// Delete walks the stages in reverse dependency order, removing each
// object. Objects that are already absent count as deleted, so deleting a
// partially provisioned or already deleted graph succeeds.
func (p *Provisioner) Delete(ctx context.Context) error {
	workspace, err := p.config.Client.FindWorkspace(ctx, p.config.WorkspaceName)
	if err != nil {
		if trace.IsNotFound(err) {
			p.config.FieldLogger.Info("Workspace already absent, nothing to delete.")
			return nil
		}
		return trace.Wrap(err)
	}
	state := &graphState{workspaceID: workspace.ID}
	stages := p.stages()
	for i := len(stages) - 1; i >= 0; i-- {
		stage := stages[i]
		p.config.FieldLogger.WithField("stage", stage.name).Info("Tearing down stage.")
		if err := stage.delete(ctx, state); err != nil && !trace.IsNotFound(err) {
			return trace.Wrap(err, "teardown stage %q failed", stage.name)
		}
	}
	return nil
}
