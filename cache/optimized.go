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
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// StaticKey builds the exact-match lookup key for a static route:
// "{subdomain}:{path}" when a subdomain constraint applies, the bare path
// otherwise.
func StaticKey(subdomain, path string) string {
	if subdomain == "" {
		return path
	}
	return subdomain + ":" + path
}

// DynamicRoute is one entry of the ordered dynamic list in the optimized
// artifact.
type DynamicRoute struct {
	Pattern     string            `json:"pattern"`
	HandlerID   string            `json:"handler_id"`
	ParamNames  []string          `json:"params,omitempty"`
	Constraints map[string]string `json:"constraints,omitempty"`
	Subdomain   string            `json:"subdomain,omitempty"`
	Template    string            `json:"template"`
}

// OptimizedMeta describes how and when the artifact was generated.
type OptimizedMeta struct {
	Version      int   `json:"version"`
	GeneratedAt  int64 `json:"generated_at"`
	StaticCount  int   `json:"static_count"`
	DynamicCount int   `json:"dynamic_count"`
}

// Optimized is the precompiled dispatch artifact: a static exact-match index
// and per-method ordered dynamic lists, directly loadable by the dispatcher
// without touching the verified snapshot path.
type Optimized struct {
	Static  map[string]map[string]string `json:"static"`  // method -> key -> handler ID
	Dynamic map[string][]DynamicRoute    `json:"dynamic"` // method -> ordered entries
	Meta    OptimizedMeta                `json:"meta"`
}

// buildOptimized partitions routes into the static index and the sorted
// dynamic lists.
func buildOptimized(routes []Route, generatedAt int64) *Optimized {
	opt := &Optimized{
		Static:  make(map[string]map[string]string),
		Dynamic: make(map[string][]DynamicRoute),
	}

	perMethod := make(map[string][]Route)
	for _, rt := range routes {
		if rt.IsStatic {
			byKey := opt.Static[rt.Method]
			if byKey == nil {
				byKey = make(map[string]string)
				opt.Static[rt.Method] = byKey
			}
			key := StaticKey(rt.Subdomain, rt.Template)
			if _, taken := byKey[key]; !taken { // first registration wins
				byKey[key] = rt.HandlerID
				opt.Meta.StaticCount++
			}
			continue
		}
		perMethod[rt.Method] = append(perMethod[rt.Method], rt)
	}

	for method, dyn := range perMethod {
		SortDynamic(dyn)
		list := make([]DynamicRoute, 0, len(dyn))
		for _, rt := range dyn {
			list = append(list, DynamicRoute{
				Pattern:     rt.Pattern,
				HandlerID:   rt.HandlerID,
				ParamNames:  rt.ParamNames,
				Constraints: rt.Constraints,
				Subdomain:   rt.Subdomain,
				Template:    rt.Template,
			})
		}
		opt.Dynamic[method] = list
		opt.Meta.DynamicCount += len(list)
	}

	opt.Meta.Version = SnapshotVersion
	opt.Meta.GeneratedAt = generatedAt
	return opt
}

// writeOptimized builds and atomically persists the optimized artifact and
// its integrity sidecar.
func (s *Store) writeOptimized(routes []Route) error {
	opt := buildOptimized(routes, s.now().Unix())
	data, err := json.Marshal(opt)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(filepath.Join(s.dir, optimizedFileName), data); err != nil {
		return err
	}
	return s.writeIntegrity(optimizedIntegrityFileName, data)
}

// LoadOptimized reads the precompiled dispatch artifact. Like Load, it is
// fail-closed but non-fatal: any read, sidecar, parse or version problem
// yields (nil, nil) so the caller rebuilds from the route table instead.
func (s *Store) LoadOptimized() (*Optimized, error) {
	path := filepath.Join(s.dir, optimizedFileName)

	info, err := os.Stat(path)
	if err != nil {
		return nil, nil
	}
	if info.Size() > s.maxSize {
		s.logger.Warn("optimized artifact exceeds size limit, ignoring", "size", info.Size())
		return nil, nil
	}
	if s.now().Sub(info.ModTime()) > s.ttl {
		s.logger.Warn("optimized artifact expired, ignoring", "age", s.now().Sub(info.ModTime()).String())
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("optimized artifact unreadable, ignoring", "error", err)
		return nil, nil
	}

	if !s.verifyIntegrity(optimizedIntegrityFileName, data) {
		s.logger.Warn("optimized artifact integrity mismatch, ignoring")
		return nil, nil
	}

	var opt Optimized
	if err := json.Unmarshal(data, &opt); err != nil {
		s.logger.Warn("optimized artifact corrupt, ignoring", "error", err)
		return nil, nil
	}
	if opt.Meta.Version != SnapshotVersion {
		s.logger.Warn("optimized artifact version skew, ignoring",
			"got", opt.Meta.Version, "want", SnapshotVersion)
		return nil, nil
	}
	return &opt, nil
}
