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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticKey(t *testing.T) {
	assert.Equal(t, "/users", StaticKey("", "/users"))
	assert.Equal(t, "api:/users", StaticKey("api", "/users"))
}

func TestBuildOptimizedPartition(t *testing.T) {
	opt := buildOptimized(sampleRoutes(), 1700000000)

	require.Contains(t, opt.Static, "GET")
	assert.Equal(t, "users.index", opt.Static["GET"]["/users"])
	require.Contains(t, opt.Static, "POST")
	assert.Equal(t, "users.create", opt.Static["POST"]["api:/users"])

	require.Len(t, opt.Dynamic["GET"], 1)
	assert.Equal(t, "users.show", opt.Dynamic["GET"][0].HandlerID)

	assert.Equal(t, 2, opt.Meta.StaticCount)
	assert.Equal(t, 1, opt.Meta.DynamicCount)
	assert.Equal(t, SnapshotVersion, opt.Meta.Version)
}

func TestBuildOptimizedStaticCollisionFirstWins(t *testing.T) {
	routes := []Route{
		{Method: "GET", Template: "/health", HandlerID: "health.v1", Pattern: `^/health$`, IsStatic: true},
		{Method: "GET", Template: "/health", HandlerID: "health.v2", Pattern: `^/health$`, IsStatic: true},
	}
	opt := buildOptimized(routes, 0)
	assert.Equal(t, "health.v1", opt.Static["GET"]["/health"])
}

func TestSortDynamic(t *testing.T) {
	routes := []Route{
		{Template: "/a/{x}/{y}/{z}", ParamNames: []string{"x", "y", "z"}},
		{Template: "/long/prefix/{x}", ParamNames: []string{"x"}},
		{Template: "/b/{x}", ParamNames: []string{"x"}},
		{Template: "/b/{x}", ParamNames: []string{"x"}, Subdomain: "api"},
		{Template: "/a/{x}/{y}", ParamNames: []string{"x", "y"}},
	}
	SortDynamic(routes)

	// Fewer params first; among equals, subdomain-constrained first, then
	// shorter templates.
	assert.Equal(t, "api", routes[0].Subdomain)
	assert.Equal(t, "/b/{x}", routes[1].Template)
	assert.Equal(t, "/long/prefix/{x}", routes[2].Template)
	assert.Equal(t, "/a/{x}/{y}", routes[3].Template)
	assert.Equal(t, "/a/{x}/{y}/{z}", routes[4].Template)
}

func TestLoadOptimizedRoundTrip(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Store(sampleRoutes()))

	opt, err := s.LoadOptimized()
	require.NoError(t, err)
	require.NotNil(t, opt)
	assert.Equal(t, 2, opt.Meta.StaticCount)
	assert.Equal(t, 1, opt.Meta.DynamicCount)
}

func TestLoadOptimizedCorruptIsNonFatal(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Store(sampleRoutes()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "routes.optimized.json"), []byte("{"), 0o600))

	opt, err := s.LoadOptimized()
	require.NoError(t, err)
	assert.Nil(t, opt)
}

func TestLoadOptimizedTamperedIsNonFatal(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Store(sampleRoutes()))

	path := filepath.Join(dir, "routes.optimized.json")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)/2] ^= 0x01
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	opt, err := s.LoadOptimized()
	require.NoError(t, err)
	assert.Nil(t, opt)

	// The verified snapshot is untouched.
	routes, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, routes, 3)
}

func TestLoadOptimizedMissingIsCold(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	opt, err := s.LoadOptimized()
	require.NoError(t, err)
	assert.Nil(t, opt)
}
