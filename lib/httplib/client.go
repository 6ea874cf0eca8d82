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

// Package httplib implements the signed HTTP client used for all calls
// against the OpenSearch APIs. Transient upstream failures are retried
// with capped exponential backoff, permanent failures surface immediately
// with the upstream status and body for diagnostics.
package httplib

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gravitational/dashboard-automation/lib/defaults"
	"github.com/gravitational/dashboard-automation/lib/signer"

	"github.com/cenkalti/backoff/v4"
	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
)

// Response is the result of a successful exchange
type Response struct {
	// StatusCode is the upstream HTTP status
	StatusCode int
	// Body is the complete response payload
	Body []byte
}

// Config defines the client configuration
type Config struct {
	// Signer signs every outbound request
	Signer signer.Signer
	// HTTPClient is the underlying transport, defaults to a client with
	// a bounded request timeout
	HTTPClient *http.Client
	// MaxAttempts bounds the number of attempts for a single call
	MaxAttempts int
	// InitialInterval is the starting backoff delay
	InitialInterval time.Duration
	// MaxInterval caps the backoff delay
	MaxInterval time.Duration
	// FieldLogger is the logger retry attempts are reported to
	FieldLogger log.FieldLogger
}

// CheckAndSetDefaults validates the config and fills in defaults
func (c *Config) CheckAndSetDefaults() error {
	if c.Signer == nil {
		return trace.BadParameter("missing parameter Signer")
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: defaults.HTTPRequestTimeout}
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = defaults.RetryMaxAttempts
	}
	if c.InitialInterval == 0 {
		c.InitialInterval = defaults.RetryInitialInterval
	}
	if c.MaxInterval == 0 {
		c.MaxInterval = defaults.RetryMaxInterval
	}
	if c.FieldLogger == nil {
		c.FieldLogger = log.WithField(trace.Component, "httplib")
	}
	return nil
}

// New returns a new retrying client
func New(config Config) (*Client, error) {
	if err := config.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Client{config: config}, nil
}

// Client issues signed requests with bounded retries. It keeps no state
// between calls.
type Client struct {
	config Config
}

// Do issues the request, signing every attempt anew, and retries transient
// failures with exponential backoff. Exhausting the attempt budget returns
// a limit exceeded error wrapping the last failure; non-retryable statuses
// return immediately as a StatusError.
func (c *Client) Do(ctx context.Context, method, url string, headers http.Header, body []byte) (*Response, error) {
	var resp *Response
	var permanent bool
	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.config.MaxAttempts-1)), ctx)
	err := backoff.RetryNotify(func() error {
		r, err := c.roundTrip(ctx, method, url, headers, body)
		if err != nil {
			if trace.IsAccessDenied(err) {
				// Missing ambient credentials will not heal within
				// this invocation
				permanent = true
				return backoff.Permanent(trace.Wrap(err))
			}
			return trace.ConnectionProblem(err, "request %v %v failed", method, url)
		}
		switch Classify(r.StatusCode) {
		case DecisionSucceed:
			resp = r
			return nil
		case DecisionRetry:
			return trace.Wrap(&StatusError{Status: r.StatusCode, Body: r.Body})
		default:
			permanent = true
			return backoff.Permanent(trace.Wrap(&StatusError{Status: r.StatusCode, Body: r.Body}))
		}
	}, b, func(err error, delay time.Duration) {
		c.config.FieldLogger.WithError(err).Warnf("Request %v %v failed, retrying in %v.",
			method, url, delay)
	})
	if err != nil {
		if permanent {
			return nil, trace.Wrap(err)
		}
		return nil, trace.LimitExceeded("retry attempts exhausted for %v %v: %v",
			method, url, trace.UserMessage(err))
	}
	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, method, url string, headers http.Header, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, trace.Wrap(err)
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if err := c.config.Signer.Sign(req, body); err != nil {
		return nil, trace.Wrap(err)
	}
	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: payload}, nil
}

func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.InitialInterval
	b.MaxInterval = c.config.MaxInterval
	// The attempt budget, not elapsed time, bounds the retries
	b.MaxElapsedTime = 0
	return b
}
