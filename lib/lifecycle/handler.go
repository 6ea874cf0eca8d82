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

// Package lifecycle adapts CloudFormation custom resource events to the
// dashboard provisioner and shapes the response the orchestrator expects.
//
// Every failure is caught at this boundary and reported as a structured
// FAILED response with a human-readable reason; nothing propagates to the
// invoking orchestration system as an unhandled fault.
package lifecycle

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gravitational/dashboard-automation/lib/checks"
	"github.com/gravitational/dashboard-automation/lib/dashboards"
	"github.com/gravitational/dashboard-automation/lib/defaults"
	"github.com/gravitational/dashboard-automation/lib/httplib"
	"github.com/gravitational/dashboard-automation/lib/provision"
	"github.com/gravitational/dashboard-automation/lib/sampledata"
	"github.com/gravitational/dashboard-automation/lib/signer"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// Status reports the outcome of a lifecycle invocation
type Status string

const (
	// StatusSuccess indicates the requested transition completed
	StatusSuccess Status = "SUCCESS"
	// StatusFailed indicates the transition failed; Reason carries detail
	StatusFailed Status = "FAILED"
)

// Properties are the resource properties the orchestrator supplies
type Properties struct {
	// UIEndpoint is the OpenSearch UI application endpoint
	UIEndpoint string `json:"opensearchUIEndpoint"`
	// DomainName is the managed domain name
	DomainName string `json:"domainName"`
	// DomainEndpoint is the domain endpoint for sample data ingest,
	// optional - ingest is skipped when empty
	DomainEndpoint string `json:"domainEndpoint"`
	// WorkspaceName is the workspace to provision
	WorkspaceName string `json:"workspaceName"`
	// Region is the AWS region used for request signing
	Region string `json:"region"`
}

// Check validates the properties
func (p Properties) Check() error {
	if p.UIEndpoint == "" {
		return trace.BadParameter("missing resource property opensearchUIEndpoint")
	}
	if p.DomainName == "" {
		return trace.BadParameter("missing resource property domainName")
	}
	if p.WorkspaceName == "" {
		return trace.BadParameter("missing resource property workspaceName")
	}
	if p.Region == "" {
		return trace.BadParameter("missing resource property region")
	}
	return nil
}

// Event is one inbound lifecycle event
type Event struct {
	// RequestType is the requested transition: create, update or delete
	RequestType cfn.RequestType
	// RequestID correlates log records of this invocation
	RequestID string
	// PhysicalResourceID identifies the logical resource on update/delete
	PhysicalResourceID string
	// Properties are the supplied resource properties
	Properties Properties
}

// FromCFN converts a raw CloudFormation event into a lifecycle event
func FromCFN(event cfn.Event) (Event, error) {
	raw, err := json.Marshal(event.ResourceProperties)
	if err != nil {
		return Event{}, trace.Wrap(err)
	}
	var properties Properties
	if err := json.Unmarshal(raw, &properties); err != nil {
		return Event{}, trace.Wrap(err)
	}
	return Event{
		RequestType:        event.RequestType,
		RequestID:          event.RequestID,
		PhysicalResourceID: event.PhysicalResourceID,
		Properties:         properties,
	}, nil
}

// Response is the outcome reported back to the orchestrator
type Response struct {
	// PhysicalResourceID correlates repeated invocations for the same
	// logical resource
	PhysicalResourceID string
	// Status is SUCCESS or FAILED
	Status Status
	// Reason carries the failure detail on FAILED
	Reason string
	// Data carries the output attributes, e.g. WorkspaceId, DashboardId
	Data map[string]string
}

// Config defines the handler configuration
type Config struct {
	// Credentials is the ambient AWS credential provider chain
	Credentials *credentials.Credentials
	// Clock drives readiness polling, overridden in tests
	Clock clockwork.Clock
	// ReadinessInterval is the delay between readiness probes
	ReadinessInterval time.Duration
	// ReadinessTimeout bounds the readiness wait
	ReadinessTimeout time.Duration
	// RetryMaxAttempts bounds attempts of a single HTTP call
	RetryMaxAttempts int
	// RetryInitialInterval is the starting backoff delay
	RetryInitialInterval time.Duration
	// FieldLogger is the logger invocations are reported to
	FieldLogger log.FieldLogger
}

// CheckAndSetDefaults validates the config and fills in defaults
func (c *Config) CheckAndSetDefaults() error {
	if c.Credentials == nil {
		return trace.BadParameter("missing parameter Credentials")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.ReadinessInterval == 0 {
		c.ReadinessInterval = defaults.ReadinessPollInterval
	}
	if c.ReadinessTimeout == 0 {
		c.ReadinessTimeout = defaults.ReadinessTimeout
	}
	if c.RetryMaxAttempts == 0 {
		c.RetryMaxAttempts = defaults.RetryMaxAttempts
	}
	if c.RetryInitialInterval == 0 {
		c.RetryInitialInterval = defaults.RetryInitialInterval
	}
	if c.FieldLogger == nil {
		c.FieldLogger = log.WithField(trace.Component, "lifecycle")
	}
	return nil
}

// NewHandler returns a new lifecycle event handler
func NewHandler(config Config) (*Handler, error) {
	if err := config.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Handler{config: config}, nil
}

// Handler handles lifecycle events
type Handler struct {
	config Config
}

// Handle runs one lifecycle event to completion and reports the outcome.
// It never returns an error or panics past this boundary: the orchestrator
// blocks on a bounded response, so every failure becomes a FAILED response
// with a reason.
func (h *Handler) Handle(ctx context.Context, event Event) (response Response) {
	logger := h.config.FieldLogger.WithFields(log.Fields{
		"request-id": event.RequestID,
		"request":    event.RequestType,
		"workspace":  event.Properties.WorkspaceName,
	})
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Handler panicked: %v.", r)
			response = h.failure(event, trace.BadParameter("internal error: %v", r))
		}
	}()
	logger.Info("Handling lifecycle event.")
	result, err := h.handle(ctx, event, logger)
	if err != nil {
		logger.Error(trace.DebugReport(err))
		return h.failure(event, err)
	}
	logger.WithFields(log.Fields{
		"workspace-id": result.WorkspaceID,
		"dashboard-id": result.DashboardID,
	}).Info("Lifecycle event completed.")
	return Response{
		PhysicalResourceID: h.physicalResourceID(event),
		Status:             StatusSuccess,
		Data: map[string]string{
			"WorkspaceId": result.WorkspaceID,
			"DashboardId": result.DashboardID,
		},
	}
}

func (h *Handler) handle(ctx context.Context, event Event, logger log.FieldLogger) (*provision.Result, error) {
	if err := event.Properties.Check(); err != nil {
		return nil, trace.Wrap(err)
	}
	provisioner, client, err := h.newProvisioner(event.Properties, logger)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	switch event.RequestType {
	case cfn.RequestCreate, cfn.RequestUpdate:
		return h.provision(ctx, event, provisioner, client, logger)
	case cfn.RequestDelete:
		if err := provisioner.Delete(ctx); err != nil {
			return nil, trace.Wrap(err)
		}
		return &provision.Result{}, nil
	}
	return nil, trace.BadParameter("unexpected request type %q", event.RequestType)
}

// provision runs the forward path: wait for readiness, seed sample data,
// then build the object graph
func (h *Handler) provision(ctx context.Context, event Event, provisioner *provision.Provisioner, client *dashboards.Client, logger log.FieldLogger) (*provision.Result, error) {
	dataSourceID, err := checks.WaitForDataSource(ctx, checks.Config{
		Client:      client,
		DomainName:  event.Properties.DomainName,
		Interval:    h.config.ReadinessInterval,
		Timeout:     h.config.ReadinessTimeout,
		Clock:       h.config.Clock,
		FieldLogger: logger,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	h.seedSampleData(ctx, event.Properties, logger)
	result, err := provisioner.Create(ctx, dataSourceID)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return result, nil
}

// seedSampleData ingests demo metrics if a domain endpoint was supplied.
// Seeding is best effort and never fails the invocation.
func (h *Handler) seedSampleData(ctx context.Context, properties Properties, logger log.FieldLogger) {
	if properties.DomainEndpoint == "" {
		logger.Warn("Domain endpoint not provided, skipping sample data ingest.")
		return
	}
	client, err := h.newHTTPClient(defaults.DomainServiceName, properties.Region, logger)
	if err != nil {
		logger.WithError(err).Warn("Skipping sample data ingest.")
		return
	}
	documents := sampledata.Generate(defaults.SampleDocumentCount, h.config.Clock.Now(), properties.Region)
	err = sampledata.Ingest(ctx, sampledata.IngestConfig{
		DomainEndpoint: properties.DomainEndpoint,
		Client:         client,
		Index:          sampledata.IndexName(h.config.Clock.Now()),
		FieldLogger:    logger,
	}, documents)
	if err != nil {
		logger.WithError(err).Warn("Sample data ingest failed, continuing.")
	}
}

func (h *Handler) newProvisioner(properties Properties, logger log.FieldLogger) (*provision.Provisioner, *dashboards.Client, error) {
	httpClient, err := h.newHTTPClient(defaults.UIServiceName, properties.Region, logger)
	if err != nil {
		return nil, nil, trace.Wrap(err)
	}
	client, err := dashboards.New(dashboards.Config{
		Endpoint:    properties.UIEndpoint,
		Client:      httpClient,
		FieldLogger: logger,
	})
	if err != nil {
		return nil, nil, trace.Wrap(err)
	}
	provisioner, err := provision.New(provision.Config{
		Client:        client,
		DomainName:    properties.DomainName,
		WorkspaceName: properties.WorkspaceName,
		FieldLogger:   logger,
	})
	if err != nil {
		return nil, nil, trace.Wrap(err)
	}
	return provisioner, client, nil
}

func (h *Handler) newHTTPClient(service, region string, logger log.FieldLogger) (*httplib.Client, error) {
	requestSigner, err := signer.New(signer.Config{
		Credentials: h.config.Credentials,
		Service:     service,
		Region:      region,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	client, err := httplib.New(httplib.Config{
		Signer:          requestSigner,
		MaxAttempts:     h.config.RetryMaxAttempts,
		InitialInterval: h.config.RetryInitialInterval,
		FieldLogger:     logger,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return client, nil
}

// physicalResourceID returns the stable identifier correlating repeated
// invocations for the same logical resource: the deterministic workspace
// id, or the id the orchestrator already recorded
func (h *Handler) physicalResourceID(event Event) string {
	if event.PhysicalResourceID != "" {
		return event.PhysicalResourceID
	}
	return provision.WorkspaceID(event.Properties.DomainName, event.Properties.WorkspaceName)
}

func (h *Handler) failure(event Event, err error) Response {
	return Response{
		PhysicalResourceID: h.physicalResourceID(event),
		Status:             StatusFailed,
		Reason:             trace.UserMessage(err),
	}
}
