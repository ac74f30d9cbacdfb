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
	"log/slog"
	"time"

	"rivaas.dev/routing/cache"
)

// Option configures a Router at construction time.
type Option func(*Router)

// WithLogger sets the structured logger. Without it the router is silent.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithResolver sets the handler resolver used by ServeHTTP. A router without
// a resolver can register, look up, and generate URLs, but serving requests
// produces 500 responses.
func WithResolver(resolver Resolver) Option {
	return func(r *Router) { r.resolver = resolver }
}

// WithResolverFunc is WithResolver for a plain function.
func WithResolverFunc(fn func(handlerID string) (Handler, error)) Option {
	return func(r *Router) { r.resolver = ResolverFunc(fn) }
}

// WithCacheStore attaches a route cache store. On the first request the
// router tries the store's optimized artifact before building dispatch state
// from the live table, and persists a fresh snapshot after a live build.
func WithCacheStore(store *cache.Store) Option {
	return func(r *Router) { r.store = store }
}

// WithBaseDomain sets the domain used to derive request subdomains and to
// qualify generated URLs for subdomain-constrained routes.
func WithBaseDomain(domain string) Option {
	return func(r *Router) { r.baseDomain = domain }
}

// WithObservabilityRecorder attaches a request lifecycle recorder, typically
// the metrics package's Recorder.
func WithObservabilityRecorder(rec ObservabilityRecorder) Option {
	return func(r *Router) { r.observability = rec }
}

// WithCompilerCacheSize bounds the template compilation memo. Zero or
// negative keeps the default.
func WithCompilerCacheSize(size int) Option {
	return func(r *Router) { r.compilerCacheSize = size }
}

// WithH2C enables cleartext HTTP/2 on Serve. ServeTLS always negotiates
// HTTP/2 via ALPN and ignores this setting.
func WithH2C() Option {
	return func(r *Router) { r.enableH2C = true }
}

// serverTimeouts carries the http.Server timeout knobs for Serve/ServeTLS.
type serverTimeouts struct {
	readHeader time.Duration
	read       time.Duration
	write      time.Duration
	idle       time.Duration
}

// WithServerTimeouts overrides the default server timeouts used by Serve and
// ServeTLS. Zero values fall back to the defaults, not to "no timeout".
func WithServerTimeouts(readHeader, read, write, idle time.Duration) Option {
	return func(r *Router) {
		r.serverTimeouts = &serverTimeouts{
			readHeader: readHeader,
			read:       read,
			write:      write,
			idle:       idle,
		}
	}
}
