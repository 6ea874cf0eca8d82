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

// Package checks gates provisioning on the readiness of the managed
// domain's data source link.
//
// The domain and the UI application report created independently before
// the link between them is actually query-capable; writing saved objects
// before that point fails with domain-not-ready errors. The gate polls
// until the UI reports a data source for the domain, bounded by a
// deadline so it can never loop forever.
package checks

import (
	"context"
	"time"

	"github.com/gravitational/dashboard-automation/lib/dashboards"
	"github.com/gravitational/dashboard-automation/lib/defaults"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// Config defines the readiness gate configuration
type Config struct {
	// Client is the dashboards API client used for probes
	Client *dashboards.Client
	// DomainName identifies the domain whose data source is awaited
	DomainName string
	// Interval is the delay between probes
	Interval time.Duration
	// Timeout bounds the total wait
	Timeout time.Duration
	// Clock drives the polling loop, overridden in tests
	Clock clockwork.Clock
	// FieldLogger is the logger probe outcomes are reported to
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
	if c.Interval == 0 {
		c.Interval = defaults.ReadinessPollInterval
	}
	if c.Timeout == 0 {
		c.Timeout = defaults.ReadinessTimeout
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.FieldLogger == nil {
		c.FieldLogger = log.WithField(trace.Component, "readiness")
	}
	return nil
}

// WaitForDataSource polls until the UI reports a data source for the
// configured domain and returns its id. If already ready, the first probe
// returns immediately, which makes repeated calls cheap. Exceeding the
// deadline returns a connection problem error so callers can tell a
// readiness timeout from an exhausted retry budget.
func WaitForDataSource(ctx context.Context, config Config) (string, error) {
	if err := config.CheckAndSetDefaults(); err != nil {
		return "", trace.Wrap(err)
	}
	deadline := config.Clock.Now().Add(config.Timeout)
	for {
		dataSourceID, err := config.Client.FindDataSource(ctx, config.DomainName)
		if err == nil {
			config.FieldLogger.WithField("data-source", dataSourceID).Info("Data source is ready.")
			return dataSourceID, nil
		}
		if !isPending(err) {
			return "", trace.Wrap(err)
		}
		if !config.Clock.Now().Add(config.Interval).Before(deadline) {
			return "", trace.ConnectionProblem(err, "data source for domain %q did not become ready in %v",
				config.DomainName, config.Timeout)
		}
		config.FieldLogger.WithError(err).Debugf("Data source not ready, next probe in %v.", config.Interval)
		select {
		case <-config.Clock.After(config.Interval):
		case <-ctx.Done():
			return "", trace.Wrap(ctx.Err())
		}
	}
}

// isPending reports whether the probe failure can heal with more waiting:
// the data source not existing yet, sustained server errors, or the
// endpoint not accepting connections. Anything else, e.g. access denied,
// will not improve and aborts the wait.
func isPending(err error) bool {
	return trace.IsNotFound(err) || trace.IsLimitExceeded(err) || trace.IsConnectionProblem(err)
}
