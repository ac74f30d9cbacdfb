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

package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileStatic(t *testing.T) {
	c := New(0)

	p, err := c.Compile("/users")
	require.NoError(t, err)
	assert.True(t, p.IsStatic)
	assert.Empty(t, p.ParamNames)
	assert.True(t, p.Regex.MatchString("/users"))
	assert.False(t, p.Regex.MatchString("/users/42"))
}

func TestCompileStaticEscapesMetacharacters(t *testing.T) {
	c := New(0)

	p, err := c.Compile("/files/report.v1")
	require.NoError(t, err)
	assert.True(t, p.Regex.MatchString("/files/report.v1"))
	// The dot must be literal, not a regex wildcard.
	assert.False(t, p.Regex.MatchString("/files/reportXv1"))
}

func TestCompileDynamic(t *testing.T) {
	tests := []struct {
		name       string
		template   string
		params     []string
		matches    []string
		mismatches []string
	}{
		{
			name:       "single param",
			template:   "/users/{id}",
			params:     []string{"id"},
			matches:    []string{"/users/42", "/users/alice"},
			mismatches: []string{"/users", "/users/", "/users/42/posts"},
		},
		{
			name:       "int constraint",
			template:   "/users/{id:int}",
			params:     []string{"id"},
			matches:    []string{"/users/42"},
			mismatches: []string{"/users/alice", "/users/4x2"},
		},
		{
			name:       "uuid constraint",
			template:   "/orders/{ref:uuid}",
			params:     []string{"ref"},
			matches:    []string{"/orders/550e8400-e29b-41d4-a716-446655440000"},
			mismatches: []string{"/orders/not-a-uuid"},
		},
		{
			name:       "slug constraint",
			template:   "/posts/{slug:slug}",
			params:     []string{"slug"},
			matches:    []string{"/posts/hello-world", "/posts/a1"},
			mismatches: []string{"/posts/Hello-World", "/posts/hello_world"},
		},
		{
			name:       "multiple params",
			template:   "/teams/{team:alpha}/members/{id:int}",
			params:     []string{"team", "id"},
			matches:    []string{"/teams/core/members/7"},
			mismatches: []string{"/teams/core7/members/7", "/teams/core/members/x"},
		},
		{
			name:       "literal dot next to param",
			template:   "/files/{name}.json",
			params:     []string{"name"},
			matches:    []string{"/files/report.json"},
			mismatches: []string{"/files/reportXjson"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(0)
			p, err := c.Compile(tt.template)
			require.NoError(t, err)

			assert.False(t, p.IsStatic)
			assert.Equal(t, tt.params, p.ParamNames)
			for _, path := range tt.matches {
				assert.True(t, p.Regex.MatchString(path), "expected %q to match", path)
			}
			for _, path := range tt.mismatches {
				assert.False(t, p.Regex.MatchString(path), "expected %q not to match", path)
			}
		})
	}
}

func TestCompileCaptureOrder(t *testing.T) {
	c := New(0)

	p, err := c.Compile("/a/{first}/b/{second:int}")
	require.NoError(t, err)

	m := p.Regex.FindStringSubmatch("/a/x/b/9")
	require.Len(t, m, 3)
	assert.Equal(t, "x", m[1])
	assert.Equal(t, "9", m[2])
	assert.Equal(t, KindAny, p.Constraints["first"])
	assert.Equal(t, KindInt, p.Constraints["second"])
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name     string
		template string
		wantErr  error
	}{
		{"empty", "", ErrEmptyTemplate},
		{"not rooted", "users/{id}", ErrTemplateNotRooted},
		{"unclosed brace", "/users/{id", ErrMalformedTemplate},
		{"empty param name", "/users/{}", ErrMalformedTemplate},
		{"unknown constraint", "/users/{id:integer}", ErrUnknownConstraint},
		{"duplicate param", "/users/{id}/posts/{id}", ErrDuplicateParam},
		{"bad param name", "/users/{user id}", ErrMalformedTemplate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(0).Compile(tt.template)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCompileTemplateTooLong(t *testing.T) {
	template := "/" + strings.Repeat("a", MaxTemplateLength)
	_, err := New(0).Compile(template)
	assert.ErrorIs(t, err, ErrTemplateTooLong)
}

func TestCompileTooManyParams(t *testing.T) {
	var b strings.Builder
	for i := 0; i < MaxParams+1; i++ {
		b.WriteString("/{p")
		b.WriteByte(byte('a' + i))
		b.WriteString("}")
	}
	_, err := New(0).Compile(b.String())
	assert.ErrorIs(t, err, ErrTooManyParams)
}

func TestCompileMemoization(t *testing.T) {
	c := New(8)

	first, err := c.Compile("/users/{id:int}")
	require.NoError(t, err)
	second, err := c.Compile("/users/{id:int}")
	require.NoError(t, err)

	// Identical templates share the cached Pattern.
	assert.Same(t, first, second)
}

func TestCompileMemoEviction(t *testing.T) {
	c := New(2)

	a, err := c.Compile("/a/{x}")
	require.NoError(t, err)
	_, err = c.Compile("/b/{x}")
	require.NoError(t, err)
	_, err = c.Compile("/c/{x}")
	require.NoError(t, err)

	// "/a/{x}" was evicted; recompiling yields an equivalent pattern even
	// though the pointer differs.
	again, err := c.Compile("/a/{x}")
	require.NoError(t, err)
	assert.NotSame(t, a, again)
	assert.Equal(t, a.Regex.String(), again.Regex.String())
	assert.Equal(t, a.ParamNames, again.ParamNames)
}

func TestParseKind(t *testing.T) {
	for _, name := range []string{"", "int", "uuid", "slug", "alpha", "alnum"} {
		kind, err := ParseKind(name)
		require.NoError(t, err)
		assert.Equal(t, name, kind.String())
	}

	_, err := ParseKind("numeric")
	assert.ErrorIs(t, err, ErrUnknownConstraint)
}
