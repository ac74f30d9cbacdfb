// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	json "github.com/goccy/go-json"
)

// SnapshotVersion tags the snapshot wire format. Snapshots carrying a
// different version are treated as absent on load.
const SnapshotVersion = 2

// Route is the serializable projection of a registered route. It carries
// everything the dispatcher needs to rebuild matching state without
// recompiling templates: the expanded regex source, the ordered parameter
// names and the per-parameter constraint spellings.
type Route struct {
	Method      string            `json:"method"`
	Template    string            `json:"template"`
	HandlerID   string            `json:"handler_id"`
	Pattern     string            `json:"pattern"`
	ParamNames  []string          `json:"param_names,omitempty"`
	Constraints map[string]string `json:"constraints,omitempty"`
	IsStatic    bool              `json:"is_static"`
	Subdomain   string            `json:"subdomain,omitempty"`
	Name        string            `json:"name,omitempty"`
	Middleware  []string          `json:"middleware,omitempty"`
	Options     map[string]any    `json:"options,omitempty"`
}

// Snapshot is the versioned, checksummed projection of a route table.
type Snapshot struct {
	Version    int     `json:"version"`
	CreatedAt  int64   `json:"created_at"`
	RouteCount int     `json:"route_count"`
	Routes     []Route `json:"routes"`
	Checksum   string  `json:"checksum"`
}

// checksumRoutes computes the keyed checksum over the serialized route data.
// HMAC-SHA256 keyed by the per-store secret, so a snapshot copied from
// another machine (or regenerated with a different key) fails verification.
func checksumRoutes(key []byte, routes []Route) (string, error) {
	payload, err := json.Marshal(routes)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// verifyChecksum recomputes the route checksum and compares it in constant
// time against the stored value.
func verifyChecksum(key []byte, s *Snapshot) bool {
	want, err := hex.DecodeString(s.Checksum)
	if err != nil {
		return false
	}
	got, err := checksumRoutes(key, s.Routes)
	if err != nil {
		return false
	}
	gotRaw, err := hex.DecodeString(got)
	if err != nil {
		return false
	}
	return hmac.Equal(want, gotRaw)
}

// newSnapshot builds a checksummed snapshot from the given routes.
func newSnapshot(key []byte, routes []Route, now time.Time) (*Snapshot, error) {
	sum, err := checksumRoutes(key, routes)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Version:    SnapshotVersion,
		CreatedAt:  now.Unix(),
		RouteCount: len(routes),
		Routes:     routes,
		Checksum:   sum,
	}, nil
}

// SortDynamic orders a method's dynamic routes for dispatch: ascending
// parameter count first, subdomain-constrained routes before unconstrained
// ones, then ascending template length. This is a latency heuristic only —
// first-match-wins semantics are preserved by the ordered scan, and a
// different order never changes which set of routes can match.
func SortDynamic(routes []Route) {
	sort.SliceStable(routes, func(i, j int) bool {
		a, b := routes[i], routes[j]
		if len(a.ParamNames) != len(b.ParamNames) {
			return len(a.ParamNames) < len(b.ParamNames)
		}
		if (a.Subdomain != "") != (b.Subdomain != "") {
			return a.Subdomain != ""
		}
		return len(a.Template) < len(b.Template)
	})
}
