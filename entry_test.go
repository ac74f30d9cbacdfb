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

package routing

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivaas.dev/routing/compiler"
)

func mustEntry(t *testing.T, method, template string, opts ...RouteOption) *Entry {
	t.Helper()
	e, err := MustNew().Handle(method, template, "handler", opts...)
	require.NoError(t, err)
	return e
}

func TestEntryMatches(t *testing.T) {
	e := mustEntry(t, http.MethodGet, "/users/{id:int}")

	assert.True(t, e.Matches(http.MethodGet, "/users/42", ""))
	assert.False(t, e.Matches(http.MethodPost, "/users/42", ""))
	assert.False(t, e.Matches(http.MethodGet, "/users/abc", ""))
	assert.False(t, e.Matches(http.MethodGet, "/users/42", "api"))
}

func TestEntryParams(t *testing.T) {
	e := mustEntry(t, http.MethodGet, "/teams/{team:slug}/members/{id:int}")

	params, err := e.Params("/teams/core-infra/members/7")
	require.NoError(t, err)
	assert.Equal(t, "core-infra", params.Get("team"))
	assert.Equal(t, "7", params.Get("id"))
}

func TestEntryParamsNormalizesUUID(t *testing.T) {
	e := mustEntry(t, http.MethodGet, "/orders/{ref:uuid}")

	params, err := e.Params("/orders/550E8400-E29B-41D4-A716-446655440000")
	require.NoError(t, err)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", params.Get("ref"))
}

func TestEntryParamsEscapesUnconstrained(t *testing.T) {
	e := mustEntry(t, http.MethodGet, "/search/{term}")

	params, err := e.Params("/search/<b>x</b>")
	require.NoError(t, err)
	assert.Equal(t, "&lt;b&gt;x&lt;/b&gt;", params.Get("term"))
}

func TestEntryParamsConstraintViolation(t *testing.T) {
	e := mustEntry(t, http.MethodGet, "/users/{id:int}")

	_, err := e.Params("/users/abc")
	assert.ErrorIs(t, err, compiler.ErrParameter)
}

func TestEntryURL(t *testing.T) {
	e := mustEntry(t, http.MethodGet, "/users/{id:int}/posts/{slug}")

	url, err := e.URL(map[string]string{"id": "42", "slug": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "/users/42/posts/hello", url)

	_, err = e.URL(map[string]string{"id": "42"})
	assert.ErrorIs(t, err, ErrMissingParameter)
}

func TestEntryURLStatic(t *testing.T) {
	e := mustEntry(t, http.MethodGet, "/about")

	url, err := e.URL(nil)
	require.NoError(t, err)
	assert.Equal(t, "/about", url)
}

func TestEntryImmutableViews(t *testing.T) {
	e := mustEntry(t, http.MethodGet, "/users/{id}", WithMiddleware("auth", "rate"))

	mw := e.Middleware()
	mw[0] = "tampered"
	assert.Equal(t, []string{"auth", "rate"}, e.Middleware())

	names := e.ParamNames()
	names[0] = "tampered"
	assert.Equal(t, []string{"id"}, e.ParamNames())
}

func TestOptionsAccessors(t *testing.T) {
	o := Options{
		OptionPriority:     "7",
		OptionDeprecated:   true,
		OptionCacheTTL:     "30s",
		OptionAuthRequired: 1,
		OptionDescription:  "list users",
	}

	assert.Equal(t, 7, o.Priority())
	assert.True(t, o.Deprecated())
	assert.Equal(t, 30*time.Second, o.CacheTTL())
	assert.True(t, o.AuthRequired())
	assert.Equal(t, "list users", o.Description())

	var empty Options
	assert.Zero(t, empty.Priority())
	assert.False(t, empty.Deprecated())
}
