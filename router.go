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
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"

	"rivaas.dev/routing/cache"
	"rivaas.dev/routing/compiler"
)

// standardMethods is the supported HTTP method set, in the order used for
// iteration and Allow headers.
var standardMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodPatch,
	http.MethodHead,
	http.MethodOptions,
}

// methodEntries holds per-method ordered entry slices. A switch on the
// method string avoids map hashing on the hot path.
type methodEntries struct {
	get, post, put, del, patch, head, options []*Entry
}

// list returns the entries for method, nil for unsupported methods.
func (m *methodEntries) list(method string) []*Entry {
	switch method {
	case http.MethodGet:
		return m.get
	case http.MethodPost:
		return m.post
	case http.MethodPut:
		return m.put
	case http.MethodDelete:
		return m.del
	case http.MethodPatch:
		return m.patch
	case http.MethodHead:
		return m.head
	case http.MethodOptions:
		return m.options
	default:
		return nil
	}
}

// add appends an entry to its method's sequence.
func (m *methodEntries) add(e *Entry) {
	switch e.method {
	case http.MethodGet:
		m.get = append(m.get, e)
	case http.MethodPost:
		m.post = append(m.post, e)
	case http.MethodPut:
		m.put = append(m.put, e)
	case http.MethodDelete:
		m.del = append(m.del, e)
	case http.MethodPatch:
		m.patch = append(m.patch, e)
	case http.MethodHead:
		m.head = append(m.head, e)
	case http.MethodOptions:
		m.options = append(m.options, e)
	}
}

// Resolver maps opaque handler identifiers to invocable handlers. It is the
// boundary to the application's service locator.
type Resolver interface {
	Resolve(handlerID string) (Handler, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(handlerID string) (Handler, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(handlerID string) (Handler, error) { return f(handlerID) }

// Handler is the invocable unit of application logic bound to a route. The
// returned value is coerced into an HTTP response per the rules documented on
// Response.
type Handler func(req *http.Request, params Params) (any, error)

// Router is the route table and dispatcher.
//
// Registration (Handle and the method helpers) belongs to the bootstrap
// phase: register everything, then serve. Dispatch state is built lazily on
// first request and shared immutably; registering after serving invalidates
// it and the next request rebuilds it, but concurrent register-while-serving
// is not a supported pattern.
type Router struct {
	compiler *compiler.Compiler

	mu      sync.RWMutex
	entries methodEntries
	named   map[string]*Entry
	total   int

	baseDomain    string
	logger        *slog.Logger
	store         *cache.Store
	resolver      Resolver
	observability ObservabilityRecorder

	compilerCacheSize int
	serverTimeouts    *serverTimeouts
	enableH2C         bool

	program atomic.Pointer[program]
	buildMu sync.Mutex

	serverMu sync.Mutex
	server   *http.Server
}

// New creates a Router with the given options.
func New(opts ...Option) (*Router, error) {
	r := &Router{
		named:  make(map[string]*Entry),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.compiler = compiler.New(r.compilerCacheSize)
	return r, nil
}

// MustNew is New but panics on configuration errors. Convenient at program
// startup where a bad configuration should abort immediately.
func MustNew(opts ...Option) *Router {
	r, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("routing.MustNew: %v", err))
	}
	return r
}

// RouteOption configures a single route at registration time.
type RouteOption func(*routeConfig)

type routeConfig struct {
	middleware []string
	name       string
	subdomain  string
	options    Options
}

// WithName assigns a globally unique route name for reverse routing.
func WithName(name string) RouteOption {
	return func(c *routeConfig) { c.name = name }
}

// WithMiddleware attaches middleware names in execution order.
func WithMiddleware(names ...string) RouteOption {
	return func(c *routeConfig) { c.middleware = append(c.middleware, names...) }
}

// WithSubdomain constrains the route to a subdomain (a single DNS label).
func WithSubdomain(label string) RouteOption {
	return func(c *routeConfig) { c.subdomain = label }
}

// WithRouteOptions attaches the open option bag (priority, deprecated,
// cache_ttl, auth_required, description, or anything app-specific).
func WithRouteOptions(options Options) RouteOption {
	return func(c *routeConfig) { c.options = options }
}

// Handle registers a route. All validation happens here, synchronously:
// unknown methods, template compilation failures (including unknown
// constraints and duplicate parameters), oversized middleware lists,
// malformed or duplicate names, and invalid subdomains are rejected with a
// *RegistrationError before the route is visible anywhere.
func (r *Router) Handle(method, template, handlerID string, opts ...RouteOption) (*Entry, error) {
	var cfg routeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if !slices.Contains(standardMethods, method) {
		return nil, registrationErr(method, template, fmt.Errorf("%w: %q", ErrInvalidMethod, method))
	}
	if handlerID == "" {
		return nil, registrationErr(method, template, ErrEmptyHandlerID)
	}
	if len(cfg.middleware) > MaxMiddleware {
		return nil, registrationErr(method, template,
			fmt.Errorf("%w: %d > %d", ErrTooMuchMiddleware, len(cfg.middleware), MaxMiddleware))
	}
	if cfg.name != "" && !isRouteName(cfg.name) {
		return nil, registrationErr(method, template, fmt.Errorf("%w: %q", ErrInvalidRouteName, cfg.name))
	}
	if cfg.subdomain != "" && !isDNSLabel(cfg.subdomain) {
		return nil, registrationErr(method, template, fmt.Errorf("%w: %q", ErrInvalidSubdomain, cfg.subdomain))
	}

	pattern, err := r.compiler.Compile(template)
	if err != nil {
		return nil, registrationErr(method, template, err)
	}

	e := &Entry{
		method:     method,
		template:   template,
		handlerID:  handlerID,
		middleware: slices.Clone(cfg.middleware),
		name:       cfg.name,
		subdomain:  cfg.subdomain,
		options:    cfg.options,
		pattern:    pattern,
	}

	r.mu.Lock()
	if e.name != "" {
		if _, taken := r.named[e.name]; taken {
			r.mu.Unlock()
			return nil, registrationErr(method, template, fmt.Errorf("%w: %q", ErrDuplicateName, e.name))
		}
		r.named[e.name] = e
	}
	r.entries.add(e)
	r.total++
	r.mu.Unlock()

	// Any previously built dispatch state no longer covers this route.
	r.program.Store(nil)

	return e, nil
}

// GET registers a GET route.
func (r *Router) GET(template, handlerID string, opts ...RouteOption) (*Entry, error) {
	return r.Handle(http.MethodGet, template, handlerID, opts...)
}

// POST registers a POST route.
func (r *Router) POST(template, handlerID string, opts ...RouteOption) (*Entry, error) {
	return r.Handle(http.MethodPost, template, handlerID, opts...)
}

// PUT registers a PUT route.
func (r *Router) PUT(template, handlerID string, opts ...RouteOption) (*Entry, error) {
	return r.Handle(http.MethodPut, template, handlerID, opts...)
}

// DELETE registers a DELETE route.
func (r *Router) DELETE(template, handlerID string, opts ...RouteOption) (*Entry, error) {
	return r.Handle(http.MethodDelete, template, handlerID, opts...)
}

// PATCH registers a PATCH route.
func (r *Router) PATCH(template, handlerID string, opts ...RouteOption) (*Entry, error) {
	return r.Handle(http.MethodPatch, template, handlerID, opts...)
}

// HEAD registers a HEAD route.
func (r *Router) HEAD(template, handlerID string, opts ...RouteOption) (*Entry, error) {
	return r.Handle(http.MethodHead, template, handlerID, opts...)
}

// OPTIONS registers an OPTIONS route.
func (r *Router) OPTIONS(template, handlerID string, opts ...RouteOption) (*Entry, error) {
	return r.Handle(http.MethodOptions, template, handlerID, opts...)
}

// Lookup scans the method's entries in registration order and returns the
// first matching entry together with its extracted parameters.
//
// This is the first-match-wins debug path: registration order decides, never
// specificity. An entry whose parameters fail constraint validation is
// skipped as if it did not match. See the package documentation for how this
// relates to ServeHTTP's static-table fast path.
func (r *Router) Lookup(method, path, subdomain string) (*Entry, Params, bool) {
	r.mu.RLock()
	entries := r.entries.list(method)
	r.mu.RUnlock()

	for _, e := range entries {
		if !e.matchesPath(path, subdomain) {
			continue
		}
		params, err := e.Params(path)
		if err != nil {
			continue // constraint failure is a match failure
		}
		return e, params, true
	}
	return nil, nil, false
}

// HasRoute reports whether any entry is registered for the exact method and
// template.
func (r *Router) HasRoute(method, template string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries.list(method) {
		if e.template == template {
			return true
		}
	}
	return false
}

// URLFor generates a URL for the named route. When the route (or the
// subdomain argument) carries a subdomain and a base domain is configured,
// the result is prefixed with "//{subdomain}.{baseDomain}".
func (r *Router) URLFor(name string, params map[string]string, subdomain string) (string, error) {
	r.mu.RLock()
	e, ok := r.named[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrRouteNotFound, name)
	}

	path, err := e.URL(params)
	if err != nil {
		return "", err
	}

	sub := subdomain
	if sub == "" {
		sub = e.subdomain
	}
	if sub != "" && r.baseDomain != "" {
		return "//" + sub + "." + r.baseDomain + path, nil
	}
	return path, nil
}

// AllowedMethods returns every HTTP method with an entry that structurally
// matches the path and subdomain, regardless of the method a request
// actually used. Used to produce 405 responses with a correct Allow set.
func (r *Router) AllowedMethods(path, subdomain string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var allowed []string
	for _, method := range standardMethods {
		for _, e := range r.entries.list(method) {
			if e.matchesPath(path, subdomain) {
				allowed = append(allowed, method)
				break
			}
		}
	}
	return allowed
}

// Stats summarizes the route table.
type Stats struct {
	Total     int
	Static    int
	Dynamic   int
	Named     int
	PerMethod map[string]int
}

// Stats returns counts over the current table.
func (r *Router) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{PerMethod: make(map[string]int, len(standardMethods))}
	for _, method := range standardMethods {
		entries := r.entries.list(method)
		if len(entries) == 0 {
			continue
		}
		s.PerMethod[method] = len(entries)
		s.Total += len(entries)
		for _, e := range entries {
			if e.pattern.IsStatic {
				s.Static++
			} else {
				s.Dynamic++
			}
		}
	}
	s.Named = len(r.named)
	return s
}

// snapshotRoutes projects the table into cache records, preserving
// per-method registration order.
func (r *Router) snapshotRoutes() []cache.Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make([]cache.Route, 0, r.total)
	for _, method := range standardMethods {
		for _, e := range r.entries.list(method) {
			routes = append(routes, toCacheRoute(e))
		}
	}
	return routes
}

// toCacheRoute converts an Entry into its serializable projection.
func toCacheRoute(e *Entry) cache.Route {
	var constraints map[string]string
	for name, kind := range e.pattern.Constraints {
		if kind == compiler.KindAny {
			continue
		}
		if constraints == nil {
			constraints = make(map[string]string)
		}
		constraints[name] = kind.String()
	}
	return cache.Route{
		Method:      e.method,
		Template:    e.template,
		HandlerID:   e.handlerID,
		Pattern:     e.pattern.Regex.String(),
		ParamNames:  slices.Clone(e.pattern.ParamNames),
		Constraints: constraints,
		IsStatic:    e.pattern.IsStatic,
		Subdomain:   e.subdomain,
		Name:        e.name,
		Middleware:  slices.Clone(e.middleware),
		Options:     e.options,
	}
}

// SaveCache persists the current table through the configured cache store.
// Unlike the best-effort persistence that happens during warmup, an explicit
// save surfaces its error.
func (r *Router) SaveCache() error {
	if r.store == nil {
		return fmt.Errorf("no cache store configured")
	}
	return r.store.Store(r.snapshotRoutes())
}

// RestoreFromCache replaces nothing and registers every route found in the
// configured store's verified snapshot. It returns the number of routes
// restored; a cold or unverifiable cache restores zero routes and is not an
// error. Individual records that no longer pass registration validation are
// skipped and logged.
func (r *Router) RestoreFromCache() (int, error) {
	if r.store == nil {
		return 0, fmt.Errorf("no cache store configured")
	}
	routes, err := r.store.Load()
	if err != nil || routes == nil {
		return 0, err
	}

	restored := 0
	for _, rt := range routes {
		opts := []RouteOption{}
		if rt.Name != "" {
			opts = append(opts, WithName(rt.Name))
		}
		if rt.Subdomain != "" {
			opts = append(opts, WithSubdomain(rt.Subdomain))
		}
		if len(rt.Middleware) > 0 {
			opts = append(opts, WithMiddleware(rt.Middleware...))
		}
		if len(rt.Options) > 0 {
			opts = append(opts, WithRouteOptions(Options(rt.Options)))
		}
		if _, err := r.Handle(rt.Method, rt.Template, rt.HandlerID, opts...); err != nil {
			r.logger.Warn("skipping cached route", "method", rt.Method, "template", rt.Template, "error", err)
			continue
		}
		restored++
	}
	return restored, nil
}

// isRouteName reports whether s matches [a-zA-Z0-9._-]+.
func isRouteName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}
