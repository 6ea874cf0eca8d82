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
	"errors"
	"fmt"
	"net/http"
)

// Decision is the next action of the retry state machine
type Decision int

const (
	// DecisionSucceed accepts the response and stops
	DecisionSucceed Decision = iota
	// DecisionRetry retries the request after a backoff delay
	DecisionRetry
	// DecisionAbort surfaces the response as a permanent failure
	DecisionAbort
)

// Classify maps an upstream HTTP status to the next retry action.
// Conflicts, too-early, throttling and server errors are transient;
// any other non-2xx status will not heal on its own.
func Classify(status int) Decision {
	switch {
	case status >= 200 && status < 300:
		return DecisionSucceed
	case status == http.StatusConflict,
		status == http.StatusTooEarly,
		status == http.StatusTooManyRequests,
		status >= 500:
		return DecisionRetry
	}
	return DecisionAbort
}

// StatusError captures a non-2xx upstream response
type StatusError struct {
	// Status is the upstream HTTP status
	Status int
	// Body is the upstream response payload
	Body []byte
}

// Error returns the error string representation
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %v: %s", e.Status, e.Body)
}

// StatusCode extracts the upstream HTTP status from the error, if the
// error chain carries one
func StatusCode(err error) (int, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status, true
	}
	return 0, false
}
