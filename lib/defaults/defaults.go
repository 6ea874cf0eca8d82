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

package defaults

import "time"

const (
	// UIServiceName is the SigV4 service name for OpenSearch UI API requests
	UIServiceName = "opensearch"

	// DomainServiceName is the SigV4 service name for requests made directly
	// against the OpenSearch domain, e.g. bulk document ingest
	DomainServiceName = "es"

	// OSDVersion is the OpenSearch Dashboards API version the client speaks
	OSDVersion = "3.1.0"

	// OSDXSRFHeader is the CSRF protection header required by the UI API
	OSDXSRFHeader = "osd-xsrf"

	// OSDXSRFValue is the value the UI API expects in the CSRF header
	OSDXSRFValue = "osd-fetch"

	// ContentHashHeader carries the hex SHA-256 of the request payload
	ContentHashHeader = "x-amz-content-sha256"

	// RetryInitialInterval is the starting delay between HTTP retry attempts
	RetryInitialInterval = 500 * time.Millisecond

	// RetryMaxInterval caps the delay between HTTP retry attempts
	RetryMaxInterval = 10 * time.Second

	// RetryMaxAttempts bounds the number of attempts for a single HTTP call
	RetryMaxAttempts = 5

	// HTTPRequestTimeout bounds a single HTTP round trip
	HTTPRequestTimeout = 30 * time.Second

	// ReadinessPollInterval is the delay between data source readiness probes
	ReadinessPollInterval = 5 * time.Second

	// ReadinessTimeout bounds the total wait for the data source to become
	// queryable; chosen to stay well inside the Lambda execution budget
	ReadinessTimeout = 5 * time.Minute

	// WorkspaceColor is the accent color assigned to the demo workspace
	WorkspaceColor = "#54B399"

	// WorkspaceFeature is the use case the demo workspace is scoped to
	WorkspaceFeature = "use-case-observability"

	// MetricsIndexPrefix is the prefix of daily sample metrics indices
	MetricsIndexPrefix = "application-metrics"

	// IndexPatternTitle matches all daily sample metrics indices
	IndexPatternTitle = "application-metrics-*"

	// TimeFieldName is the time field of the sample metrics documents
	TimeFieldName = "@timestamp"

	// VisualizationTitle is the title of the demo visualization
	VisualizationTitle = "HTTP Status Code Distribution"

	// DashboardTitle is the title of the demo dashboard
	DashboardTitle = "Application Metrics"

	// DashboardPanelVersion is the saved object version recorded in the
	// dashboard panel layout
	DashboardPanelVersion = "2.11.0"

	// SampleDocumentCount is the number of demo metrics documents to seed
	SampleDocumentCount = 50
)

// IDNamespace is the UUID namespace deterministic saved object ids are
// derived in. Changing it changes every computed id, so it is fixed forever.
const IDNamespace = "0bf17e46-4ec1-4b07-9349-5f771cbd68ba"
