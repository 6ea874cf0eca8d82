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

// Package testutils provides in-memory fakes of the OpenSearch UI API
// for tests.
package testutils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// DataSource is a data source the fake UI reports
type DataSource struct {
	ID    string
	Title string
}

// WorkspaceRecord is a workspace stored by the fake UI
type WorkspaceRecord struct {
	ID          string
	Name        string
	DataSources []string
}

// ObjectRecord is a saved object stored by the fake UI
type ObjectRecord struct {
	Type       string
	ID         string
	Attributes map[string]interface{}
	References []map[string]interface{}
}

// FakeUI is an in-memory OpenSearch UI API server state. Use Handler to
// serve it over httptest.
type FakeUI struct {
	mu sync.Mutex
	// Hook, when set, inspects every request before normal handling and
	// may short-circuit it by returning a non-zero status
	Hook func(r *http.Request) (status int, body string)

	dataSources []DataSource
	workspaces  map[string]*WorkspaceRecord
	objects     map[string]map[string]ObjectRecord
	counter     int
}

// NewFakeUI returns an empty fake UI
func NewFakeUI() *FakeUI {
	return &FakeUI{
		workspaces: make(map[string]*WorkspaceRecord),
		objects:    make(map[string]map[string]ObjectRecord),
	}
}

// AddDataSource makes the fake report a data source, i.e. become "ready"
func (f *FakeUI) AddDataSource(id, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dataSources = append(f.dataSources, DataSource{ID: id, Title: title})
}

// Workspaces returns all stored workspaces
func (f *FakeUI) Workspaces() []WorkspaceRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []WorkspaceRecord
	for _, workspace := range f.workspaces {
		out = append(out, *workspace)
	}
	return out
}

// WorkspaceByName returns the stored workspace with the given name
func (f *FakeUI) WorkspaceByName(name string) (WorkspaceRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, workspace := range f.workspaces {
		if workspace.Name == name {
			return *workspace, true
		}
	}
	return WorkspaceRecord{}, false
}

// Objects returns the saved objects of the given type in the workspace
func (f *FakeUI) Objects(workspaceID, objectType string) []ObjectRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ObjectRecord
	for _, object := range f.objects[workspaceID] {
		if object.Type == objectType {
			out = append(out, object)
		}
	}
	return out
}

// Handler serves the fake UI API
func (f *FakeUI) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.Hook != nil {
			if status, body := f.Hook(r); status != 0 {
				http.Error(w, body, status)
				return
			}
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/saved_objects/_find":
			f.handleFind(w)
		case r.Method == http.MethodPost && r.URL.Path == "/api/workspaces/_list":
			f.handleListWorkspaces(w)
		case r.Method == http.MethodPost && r.URL.Path == "/api/workspaces":
			f.handleCreateWorkspace(w, r)
		case strings.HasPrefix(r.URL.Path, "/api/workspaces/"):
			f.handleWorkspace(w, r, strings.TrimPrefix(r.URL.Path, "/api/workspaces/"))
		case strings.HasPrefix(r.URL.Path, "/w/"):
			f.handleSavedObject(w, r)
		default:
			http.Error(w, fmt.Sprintf("unexpected request %v %v", r.Method, r.URL.Path), http.StatusNotFound)
		}
	})
}

func (f *FakeUI) handleFind(w http.ResponseWriter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	objects := []map[string]interface{}{}
	for _, source := range f.dataSources {
		objects = append(objects, map[string]interface{}{
			"id":         source.ID,
			"attributes": map[string]interface{}{"title": source.Title},
		})
	}
	writeJSON(w, map[string]interface{}{"saved_objects": objects})
}

func (f *FakeUI) handleListWorkspaces(w http.ResponseWriter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	workspaces := []map[string]interface{}{}
	for _, workspace := range f.workspaces {
		workspaces = append(workspaces, map[string]interface{}{
			"id":   workspace.ID,
			"name": workspace.Name,
		})
	}
	writeJSON(w, map[string]interface{}{
		"success": true,
		"result":  map[string]interface{}{"workspaces": workspaces},
	})
}

func (f *FakeUI) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Attributes struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"attributes"`
		Settings struct {
			DataSources []string `json:"dataSources"`
		} `json:"settings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := req.Attributes.ID
	if id == "" {
		f.counter++
		id = fmt.Sprintf("workspace-%v", f.counter)
	}
	f.workspaces[id] = &WorkspaceRecord{
		ID:          id,
		Name:        req.Attributes.Name,
		DataSources: req.Settings.DataSources,
	}
	writeJSON(w, map[string]interface{}{
		"success": true,
		"result":  map[string]interface{}{"id": id},
	})
}

func (f *FakeUI) handleWorkspace(w http.ResponseWriter, r *http.Request, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	workspace, exists := f.workspaces[id]
	if !exists {
		http.Error(w, "workspace not found", http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var req struct {
			Settings struct {
				DataSources []string `json:"dataSources"`
			} `json:"settings"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		workspace.DataSources = req.Settings.DataSources
		writeJSON(w, map[string]interface{}{"success": true})
	case http.MethodDelete:
		delete(f.workspaces, id)
		delete(f.objects, id)
		writeJSON(w, map[string]interface{}{"success": true})
	default:
		http.Error(w, "unexpected method", http.StatusMethodNotAllowed)
	}
}

func (f *FakeUI) handleSavedObject(w http.ResponseWriter, r *http.Request) {
	// /w/{workspace}/api/saved_objects/{type}/{id}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/w/"), "/")
	if len(parts) != 5 || parts[1] != "api" || parts[2] != "saved_objects" {
		http.Error(w, "unexpected saved objects path", http.StatusNotFound)
		return
	}
	workspaceID, objectType, objectID := parts[0], parts[3], parts[4]
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.workspaces[workspaceID]; !exists {
		http.Error(w, "workspace not found", http.StatusNotFound)
		return
	}
	key := objectType + "/" + objectID
	switch r.Method {
	case http.MethodPost:
		var req struct {
			Attributes map[string]interface{}   `json:"attributes"`
			References []map[string]interface{} `json:"references"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if f.objects[workspaceID] == nil {
			f.objects[workspaceID] = make(map[string]ObjectRecord)
		}
		if _, exists := f.objects[workspaceID][key]; exists && r.URL.Query().Get("overwrite") != "true" {
			http.Error(w, "object exists", http.StatusConflict)
			return
		}
		f.objects[workspaceID][key] = ObjectRecord{
			Type:       objectType,
			ID:         objectID,
			Attributes: req.Attributes,
			References: req.References,
		}
		writeJSON(w, map[string]interface{}{"id": objectID, "type": objectType})
	case http.MethodDelete:
		if _, exists := f.objects[workspaceID][key]; !exists {
			http.Error(w, "object not found", http.StatusNotFound)
			return
		}
		delete(f.objects[workspaceID], key)
		writeJSON(w, map[string]interface{}{})
	default:
		http.Error(w, "unexpected method", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}
