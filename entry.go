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
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cast"

	"rivaas.dev/routing/compiler"
)

// MaxMiddleware caps the middleware list of a single route.
const MaxMiddleware = 10

// Params holds extracted, validated route parameters.
type Params map[string]string

// Get returns the value for name, or "" when absent.
func (p Params) Get(name string) string { return p[name] }

// Options is the open string-keyed option bag attached to a route. Values
// are read through cast-based typed accessors, so manifests and code can set
// them as strings, numbers or booleans interchangeably.
type Options map[string]any

// Well-known option keys.
const (
	OptionPriority     = "priority"
	OptionDeprecated   = "deprecated"
	OptionCacheTTL     = "cache_ttl"
	OptionAuthRequired = "auth_required"
	OptionDescription  = "description"
)

// Priority returns the route priority, 0 when unset.
func (o Options) Priority() int { return cast.ToInt(o[OptionPriority]) }

// Deprecated reports whether the route is flagged deprecated.
func (o Options) Deprecated() bool { return cast.ToBool(o[OptionDeprecated]) }

// CacheTTL returns the per-route response cache TTL, 0 when unset.
func (o Options) CacheTTL() time.Duration { return cast.ToDuration(o[OptionCacheTTL]) }

// AuthRequired reports whether the route requires authentication.
func (o Options) AuthRequired() bool { return cast.ToBool(o[OptionAuthRequired]) }

// Description returns the human-readable route description.
func (o Options) Description() string { return cast.ToString(o[OptionDescription]) }

// Entry binds an HTTP method and path template to a handler identifier,
// together with middleware names, an optional unique name, an optional
// subdomain constraint and an option bag.
//
// Entries are immutable: they are fully constructed at registration time and
// never mutated afterwards, which is what makes sharing them across request
// goroutines safe without locks.
type Entry struct {
	method     string
	template   string
	handlerID  string
	middleware []string
	name       string
	subdomain  string
	options    Options
	pattern    *compiler.Pattern
}

// Method returns the HTTP method.
func (e *Entry) Method() string { return e.method }

// Template returns the path template.
func (e *Entry) Template() string { return e.template }

// HandlerID returns the opaque handler identifier.
func (e *Entry) HandlerID() string { return e.handlerID }

// Name returns the route name, "" when unnamed.
func (e *Entry) Name() string { return e.name }

// Subdomain returns the subdomain constraint, "" when unconstrained.
func (e *Entry) Subdomain() string { return e.subdomain }

// IsStatic reports whether the template has no placeholders.
func (e *Entry) IsStatic() bool { return e.pattern.IsStatic }

// ParamNames returns the parameter names in capture order.
func (e *Entry) ParamNames() []string { return slices.Clone(e.pattern.ParamNames) }

// Middleware returns a copy of the middleware names in execution order.
func (e *Entry) Middleware() []string { return slices.Clone(e.middleware) }

// Options returns the route's option bag. The returned map must not be
// mutated.
func (e *Entry) Options() Options { return e.options }

// Matches reports whether the entry matches the given request coordinates.
// Method and subdomain must match exactly (an unconstrained entry only
// matches requests without a subdomain); static templates compare by string
// equality, dynamic ones by anchored regex.
func (e *Entry) Matches(method, path, subdomain string) bool {
	if method != e.method {
		return false
	}
	return e.matchesPath(path, subdomain)
}

// matchesPath is Matches without the method check, used for 405 detection.
func (e *Entry) matchesPath(path, subdomain string) bool {
	if subdomain != e.subdomain {
		return false
	}
	if e.pattern.IsStatic {
		return path == e.template
	}
	return e.pattern.Regex.MatchString(path)
}

// Params re-matches the path and returns validated, normalized parameter
// values. A value that violates its constraint (or the generic length/NUL
// rules) fails the whole extraction with compiler.ErrParameter — callers
// treat that as "this entry does not match", never as a partial result.
func (e *Entry) Params(path string) (Params, error) {
	if e.pattern.IsStatic {
		if path != e.template {
			return nil, fmt.Errorf("%w: path does not match", compiler.ErrParameter)
		}
		return Params{}, nil
	}

	m := e.pattern.Regex.FindStringSubmatch(path)
	if m == nil {
		return nil, fmt.Errorf("%w: path does not match", compiler.ErrParameter)
	}

	params := make(Params, len(e.pattern.ParamNames))
	for i, name := range e.pattern.ParamNames {
		value, err := compiler.ValidateParam(e.pattern.Constraints[name], m[i+1])
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		params[name] = value
	}
	return params, nil
}

// URL substitutes the template's placeholders with percent-encoded values.
// Every placeholder must be covered: a leftover placeholder fails with
// ErrMissingParameter.
func (e *Entry) URL(params map[string]string) (string, error) {
	if e.pattern.IsStatic {
		return e.template, nil
	}

	var sb strings.Builder
	t := e.template
	for {
		open := strings.IndexByte(t, '{')
		if open < 0 {
			sb.WriteString(t)
			return sb.String(), nil
		}
		close := strings.IndexByte(t[open:], '}')
		if close < 0 {
			sb.WriteString(t)
			return sb.String(), nil
		}
		close += open

		sb.WriteString(t[:open])
		name := t[open+1 : close]
		if colon := strings.IndexByte(name, ':'); colon >= 0 {
			name = name[:colon]
		}
		value, ok := params[name]
		if !ok {
			return "", fmt.Errorf("%w: %q in %s", ErrMissingParameter, name, e.template)
		}
		sb.WriteString(url.PathEscape(value))
		t = t[close+1:]
	}
}
