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

// Package sampledata seeds the domain with demo API request metrics so the
// provisioned dashboard has something to show.
package sampledata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gravitational/dashboard-automation/lib/defaults"
	"github.com/gravitational/dashboard-automation/lib/httplib"

	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
)

// Document is one sample API request metric
type Document struct {
	// Timestamp is the request time
	Timestamp string `json:"@timestamp"`
	// Service is the emitting service name
	Service string `json:"service"`
	// Endpoint is the requested API path
	Endpoint string `json:"endpoint"`
	// HTTPMethod is the request method
	HTTPMethod string `json:"http_method"`
	// StatusCode is the response status
	StatusCode int `json:"status_code"`
	// ResponseTimeMillis is the request latency
	ResponseTimeMillis int `json:"response_time_ms"`
	// Region is the serving region
	Region string `json:"region"`
	// Success indicates a non-error response
	Success bool `json:"success"`
}

var sampleEndpoints = []string{
	"/api/users",
	"/api/products",
	"/api/orders",
	"/api/auth/login",
	"/api/health",
}

var sampleMethods = []string{"GET", "POST", "PUT", "DELETE"}

// weighted status distribution: most requests succeed
var sampleStatuses = []struct {
	code   int
	weight int
}{
	{code: 200, weight: 70},
	{code: 201, weight: 15},
	{code: 400, weight: 8},
	{code: 404, weight: 5},
	{code: 500, weight: 2},
}

// Generate returns count demo documents spread over the 24 hours before
// now, sorted oldest first
func Generate(count int, now time.Time, region string) []Document {
	documents := make([]Document, 0, count)
	for i := 0; i < count; i++ {
		timestamp := now.Add(-time.Duration(rand.Int63n(int64(24 * time.Hour))))
		status := pickStatus()
		// Errors fail fast, successful requests do real work
		responseTime := 20 + rand.Intn(480)
		if status >= 400 {
			responseTime = 10 + rand.Intn(90)
		}
		documents = append(documents, Document{
			Timestamp:          timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
			Service:            "api-gateway",
			Endpoint:           sampleEndpoints[rand.Intn(len(sampleEndpoints))],
			HTTPMethod:         sampleMethods[rand.Intn(len(sampleMethods))],
			StatusCode:         status,
			ResponseTimeMillis: responseTime,
			Region:             region,
			Success:            status < 400,
		})
	}
	sort.Slice(documents, func(i, j int) bool {
		return documents[i].Timestamp < documents[j].Timestamp
	})
	return documents
}

func pickStatus() int {
	total := 0
	for _, status := range sampleStatuses {
		total += status.weight
	}
	pick := rand.Intn(total)
	for _, status := range sampleStatuses {
		pick -= status.weight
		if pick < 0 {
			return status.code
		}
	}
	return sampleStatuses[0].code
}

// IndexName returns the daily metrics index documents are ingested into
func IndexName(now time.Time) string {
	return fmt.Sprintf("%v-%v", defaults.MetricsIndexPrefix, now.UTC().Format("2006.01.02"))
}

// IngestConfig defines the bulk ingest configuration
type IngestConfig struct {
	// DomainEndpoint is the base URL of the OpenSearch domain;
	// a bare host is assumed to be HTTPS
	DomainEndpoint string
	// Client issues the signed HTTP calls; it must be signed for the
	// domain ("es"), not for the UI API
	Client *httplib.Client
	// Index is the target index, defaults to the daily metrics index
	Index string
	// FieldLogger is the logger ingest outcomes are reported to
	FieldLogger log.FieldLogger
}

// CheckAndSetDefaults validates the config and fills in defaults
func (c *IngestConfig) CheckAndSetDefaults() error {
	if c.DomainEndpoint == "" {
		return trace.BadParameter("missing parameter DomainEndpoint")
	}
	if c.Client == nil {
		return trace.BadParameter("missing parameter Client")
	}
	if !strings.Contains(c.DomainEndpoint, "://") {
		c.DomainEndpoint = "https://" + c.DomainEndpoint
	}
	if c.Index == "" {
		c.Index = IndexName(time.Now())
	}
	if c.FieldLogger == nil {
		c.FieldLogger = log.WithField(trace.Component, "sampledata")
	}
	return nil
}

// Ingest bulk-writes the documents into the daily metrics index. Ingest is
// best effort: item-level failures in the bulk response are logged and do
// not fail the call, since sample data is demo seeding rather than part of
// the provisioning contract.
func Ingest(ctx context.Context, config IngestConfig, documents []Document) error {
	if err := config.CheckAndSetDefaults(); err != nil {
		return trace.Wrap(err)
	}
	var body bytes.Buffer
	encoder := json.NewEncoder(&body)
	for _, document := range documents {
		if err := encoder.Encode(map[string]interface{}{
			"index": map[string]string{"_index": config.Index},
		}); err != nil {
			return trace.Wrap(err)
		}
		if err := encoder.Encode(document); err != nil {
			return trace.Wrap(err)
		}
	}
	headers := make(http.Header)
	headers.Set("Content-Type", "application/x-ndjson")
	resp, err := config.Client.Do(ctx, http.MethodPost,
		config.DomainEndpoint+"/_bulk", headers, body.Bytes())
	if err != nil {
		return trace.Wrap(err)
	}
	var result struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Error interface{} `json:"error"`
		} `json:"items"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return trace.Wrap(err)
	}
	if result.Errors {
		failed := 0
		for _, item := range result.Items {
			if action, exists := item["index"]; exists && action.Error != nil {
				failed++
			}
		}
		config.FieldLogger.Warnf("Bulk ingest completed with %v item failures out of %v documents.",
			failed, len(documents))
		return nil
	}
	config.FieldLogger.Infof("Ingested %v documents into %v.", len(documents), config.Index)
	return nil
}
