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
	"fmt"

	"github.com/gravitational/dashboard-automation/lib/dashboards"
	"github.com/gravitational/dashboard-automation/lib/defaults"

	"github.com/google/uuid"
)

// ObjectID derives the deterministic id of a saved object from the domain
// name, the workspace name and the object type. Repeated provisioning with
// the same inputs resolves to the same ids, in any process - this is the
// invariant that makes retried lifecycle events converge instead of
// duplicating objects.
func ObjectID(domainName, workspaceName string, objectType dashboards.SavedObjectType) string {
	name := fmt.Sprintf("%v/%v/%v", domainName, workspaceName, objectType)
	return uuid.NewSHA1(uuid.MustParse(defaults.IDNamespace), []byte(name)).String()
}

// WorkspaceID derives the deterministic workspace id for the given inputs
func WorkspaceID(domainName, workspaceName string) string {
	return ObjectID(domainName, workspaceName, "workspace")
}
