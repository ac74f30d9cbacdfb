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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRoutes() []Route {
	return []Route{
		{
			Method:    "GET",
			Template:  "/users",
			HandlerID: "users.index",
			Pattern:   `^/users$`,
			IsStatic:  true,
			Name:      "users.index",
		},
		{
			Method:      "GET",
			Template:    "/users/{id:int}",
			HandlerID:   "users.show",
			Pattern:     `^/users/(\d+)$`,
			ParamNames:  []string{"id"},
			Constraints: map[string]string{"id": "int"},
			Middleware:  []string{"auth"},
			Options:     map[string]any{"priority": float64(5)},
		},
		{
			Method:    "POST",
			Template:  "/users",
			HandlerID: "users.create",
			Pattern:   `^/users$`,
			IsStatic:  true,
			Subdomain: "api",
		},
	}
}

func TestStoreLoadRoundTrip(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	routes := sampleRoutes()
	require.NoError(t, s.Store(routes))

	got, err := s.Load()
	require.NoError(t, err)
	require.Len(t, got, len(routes))

	for i, want := range routes {
		assert.Equal(t, want.Method, got[i].Method)
		assert.Equal(t, want.Template, got[i].Template)
		assert.Equal(t, want.HandlerID, got[i].HandlerID)
		assert.Equal(t, want.Pattern, got[i].Pattern)
		assert.Equal(t, want.ParamNames, got[i].ParamNames)
		assert.Equal(t, want.Constraints, got[i].Constraints)
		assert.Equal(t, want.IsStatic, got[i].IsStatic)
		assert.Equal(t, want.Subdomain, got[i].Subdomain)
		assert.Equal(t, want.Middleware, got[i].Middleware)
	}
}

func TestStoreRejectsEmptyRouteSet(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	assert.ErrorIs(t, s.Store(nil), ErrEmptyRouteSet)
	assert.ErrorIs(t, s.Store([]Route{}), ErrEmptyRouteSet)
}

func TestLoadColdCache(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	got, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoadTamperedSnapshotFailsClosed(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Store(sampleRoutes()))

	path := filepath.Join(dir, "routes.snapshot")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	// Flip one byte in the middle of the file.
	raw[len(raw)/2] ^= 0x01
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, got)

	// Fail-closed clears every artifact.
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(dir, "routes.snapshot.integrity"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(dir, "routes.optimized.json"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(dir, "routes.optimized.integrity"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestLoadRetriesIntegrityMismatchOnce(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Store(sampleRoutes()))

	sidecar := filepath.Join(dir, "routes.snapshot.integrity")
	good, err := os.ReadFile(sidecar)
	require.NoError(t, err)

	// Simulate a reader racing Store between its two renames: the sidecar
	// seen first does not match the snapshot, but a re-read does.
	require.NoError(t, os.WriteFile(sidecar, []byte(`{"algorithm":"sha256","hash":"00","size":1}`), 0o600))
	s.beforeRetry = func() {
		require.NoError(t, os.WriteFile(sidecar, good, 0o600))
	}

	got, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, got, 3)

	// The freshly written cache survived instead of being cleared.
	_, statErr := os.Stat(filepath.Join(dir, "routes.snapshot"))
	assert.NoError(t, statErr)
}

func TestLoadMissingIntegrityRecordFailsClosed(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Store(sampleRoutes()))

	require.NoError(t, os.Remove(filepath.Join(dir, "routes.snapshot.integrity")))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoadExpiredSnapshot(t *testing.T) {
	dir := t.TempDir()

	now := time.Now()
	s, err := NewStore(dir, WithTTL(time.Minute), withClock(func() time.Time { return now }))
	require.NoError(t, err)
	require.NoError(t, s.Store(sampleRoutes()))

	// Fresh snapshot loads.
	got, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, got, 3)

	// Re-store, then advance the clock past the TTL. The mtime check uses
	// the file clock, so backdate the file as well.
	require.NoError(t, s.Store(sampleRoutes()))
	past := now.Add(-2 * time.Minute)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "routes.snapshot"), past, past))

	got, err = s.Load()
	require.NoError(t, err)
	assert.Nil(t, got)

	// The expired snapshot was cleared.
	_, statErr := os.Stat(filepath.Join(dir, "routes.snapshot"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestStoreCompressionRoundTrip(t *testing.T) {
	s, err := NewStore(t.TempDir(), WithCompression(true))
	require.NoError(t, err)

	require.NoError(t, s.Store(sampleRoutes()))
	got, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestStoreEncryptionRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, WithEncryption(true))
	require.NoError(t, err)

	require.NoError(t, s.Store(sampleRoutes()))

	// The snapshot payload must not contain plaintext handler IDs.
	raw, err := os.ReadFile(filepath.Join(dir, "routes.snapshot"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "users.show")

	got, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestStoreEncryptionCompressionCombined(t *testing.T) {
	s, err := NewStore(t.TempDir(), WithCompression(true), WithEncryption(true))
	require.NoError(t, err)

	require.NoError(t, s.Store(sampleRoutes()))
	got, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestKeyFilePermissions(t *testing.T) {
	dir := t.TempDir()
	_, err := NewStore(dir, WithEncryption(true))
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, ".routes.key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadAcrossStoreInstances(t *testing.T) {
	dir := t.TempDir()

	first, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.Store(sampleRoutes()))

	// A second store over the same directory shares the key file and reads
	// the snapshot back.
	second, err := NewStore(dir)
	require.NoError(t, err)
	got, err := second.Load()
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestClearIsIdempotent(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	s.Clear()
	require.NoError(t, s.Store(sampleRoutes()))
	s.Clear()
	s.Clear()

	got, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}
