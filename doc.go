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

// Package routing is an HTTP routing core built around compiled route
// templates, a persistent verified route cache, and a two-tier dispatcher.
//
// Routes bind an HTTP method and a path template to an opaque handler
// identifier that is resolved through a caller-supplied Resolver at dispatch
// time:
//
//	r := routing.MustNew(
//	    routing.WithResolver(myLocator),
//	    routing.WithBaseDomain("example.com"),
//	)
//	r.GET("/users/{id:int}", "users.show", routing.WithName("user.show"))
//	http.ListenAndServe(":8080", r)
//
// Templates use {name} and {name:constraint} placeholders with the int,
// uuid, slug, alpha and alnum constraints (see package compiler). A template
// without placeholders is a static route matched by exact string equality;
// everything else is dynamic and matched by anchored regular expression.
//
// # Matching policy
//
// Router.Lookup is the debug path: it scans the method's entries in
// registration order and returns the first structural match
// (first-match-wins, not best-match). ServeHTTP is the production path: it
// probes an O(1) static table keyed by "{subdomain}:{path}" before scanning
// the ordered dynamic list. The two paths are deliberately distinct policies
// — when a static and a dynamic route can both match a concrete path, the
// production path prefers the static one regardless of registration order.
// Both policies are stable and documented; see Router.Lookup and
// Router.ServeHTTP.
//
// # Route cache
//
// When constructed with WithCacheStore, the dispatcher loads its precompiled
// matching state from a cache.Store artifact once per process, and persists a
// verified snapshot after building from a cold table. Cache failures of any
// kind degrade to the cold path; they are never required for correctness.
//
// # Concurrency
//
// Registration is a single-threaded bootstrap concern: register every route,
// then serve. The dispatch program is built once and shared immutably across
// request goroutines; re-registration invalidates it and the next request
// rebuilds.
package routing
