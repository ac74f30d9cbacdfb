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
	"regexp"
	"sort"
	"strings"

	"rivaas.dev/routing/cache"
	"rivaas.dev/routing/compiler"
)

// staticTarget is a fully resolved static route: a map probe away from its
// handler.
type staticTarget struct {
	handlerID string
	template  string
}

// dynamicTarget is a parameterized route prepared for scanning: compiled
// regex plus the per-parameter validation kinds aligned with its capture
// groups.
type dynamicTarget struct {
	regex     *regexp.Regexp
	names     []string
	kinds     []compiler.Kind
	handlerID string
	template  string
	subdomain string
}

// program is the immutable dispatch state shared by all requests. Static
// routes live in per-method hash maps keyed by "{subdomain}:{path}" (bare
// path when unconstrained); dynamic routes are per-method ordered scan
// lists.
type program struct {
	static  map[string]map[string]staticTarget
	dynamic map[string][]dynamicTarget
	routes  int
}

// loadProgram returns the current dispatch program, building it on first
// use. Registration clears the pointer, so a stale program never serves a
// request issued after Handle returns.
//
// The build prefers the cache store's optimized artifact when its route
// count matches the live table; otherwise it compiles the table directly and
// persists a fresh snapshot best-effort.
func (r *Router) loadProgram() *program {
	if p := r.program.Load(); p != nil {
		return p
	}

	r.buildMu.Lock()
	defer r.buildMu.Unlock()
	if p := r.program.Load(); p != nil {
		return p
	}

	var p *program
	if r.store != nil {
		if opt, err := r.store.LoadOptimized(); err == nil && opt != nil {
			p = r.programFromOptimized(opt)
		}
	}
	if p == nil {
		p = r.buildProgram()
		if r.store != nil && p.routes > 0 {
			if err := r.store.Store(r.snapshotRoutes()); err != nil {
				r.logger.Warn("route cache write failed", "error", err)
			}
		}
	}

	r.program.Store(p)
	return p
}

// programFromOptimized rebuilds dispatch state from a cached artifact. Any
// defect (a malformed static key, a regex that no longer compiles, an
// unknown constraint name, a route count that disagrees with the live table)
// rejects the whole artifact and falls back to a live build.
func (r *Router) programFromOptimized(opt *cache.Optimized) *program {
	r.mu.RLock()
	total := r.total
	r.mu.RUnlock()
	if opt.Meta.StaticCount+opt.Meta.DynamicCount != total {
		r.logger.Warn("route cache stale, rebuilding",
			"cached", opt.Meta.StaticCount+opt.Meta.DynamicCount, "live", total)
		return nil
	}

	p := &program{
		static:  make(map[string]map[string]staticTarget, len(opt.Static)),
		dynamic: make(map[string][]dynamicTarget, len(opt.Dynamic)),
		routes:  total,
	}

	for method, keys := range opt.Static {
		targets := make(map[string]staticTarget, len(keys))
		for key, handlerID := range keys {
			// Keys are "{subdomain}:{path}" or a bare path; paths always
			// start with '/'. The artifact comes from disk, so a malformed
			// key rejects it instead of crashing the dispatcher.
			path := key
			if path == "" || path[0] != '/' {
				i := strings.IndexByte(key, ':')
				if i <= 0 || i+1 >= len(key) || key[i+1] != '/' {
					r.logger.Warn("route cache rejected", "key", key)
					return nil
				}
				path = key[i+1:]
			}
			if handlerID == "" {
				r.logger.Warn("route cache rejected", "key", key)
				return nil
			}
			targets[key] = staticTarget{handlerID: handlerID, template: path}
		}
		p.static[method] = targets
	}

	for method, routes := range opt.Dynamic {
		targets := make([]dynamicTarget, 0, len(routes))
		for _, rt := range routes {
			re, err := regexp.Compile(rt.Pattern)
			if err != nil {
				r.logger.Warn("route cache rejected", "template", rt.Template, "error", err)
				return nil
			}
			kinds := make([]compiler.Kind, len(rt.ParamNames))
			for i, name := range rt.ParamNames {
				kind, err := compiler.ParseKind(rt.Constraints[name])
				if err != nil {
					r.logger.Warn("route cache rejected", "template", rt.Template, "error", err)
					return nil
				}
				kinds[i] = kind
			}
			targets = append(targets, dynamicTarget{
				regex:     re,
				names:     rt.ParamNames,
				kinds:     kinds,
				handlerID: rt.HandlerID,
				template:  rt.Template,
				subdomain: rt.Subdomain,
			})
		}
		p.dynamic[method] = targets
	}

	return p
}

// buildProgram compiles the live table into dispatch state. Dynamic routes
// are ordered by specificity: fewer parameters first, subdomain-constrained
// before unconstrained, shorter templates first.
func (r *Router) buildProgram() *program {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p := &program{
		static:  make(map[string]map[string]staticTarget),
		dynamic: make(map[string][]dynamicTarget),
		routes:  r.total,
	}

	for _, method := range standardMethods {
		entries := r.entries.list(method)
		if len(entries) == 0 {
			continue
		}

		var dynamic []*Entry
		for _, e := range entries {
			if e.pattern.IsStatic {
				key := cache.StaticKey(e.subdomain, e.template)
				if p.static[method] == nil {
					p.static[method] = make(map[string]staticTarget)
				}
				if _, taken := p.static[method][key]; !taken {
					p.static[method][key] = staticTarget{handlerID: e.handlerID, template: e.template}
				}
				continue
			}
			dynamic = append(dynamic, e)
		}

		// Same ordering as cache.SortDynamic, so live and cache-restored
		// programs scan identically.
		sort.SliceStable(dynamic, func(i, j int) bool {
			a, b := dynamic[i], dynamic[j]
			if len(a.pattern.ParamNames) != len(b.pattern.ParamNames) {
				return len(a.pattern.ParamNames) < len(b.pattern.ParamNames)
			}
			if (a.subdomain != "") != (b.subdomain != "") {
				return a.subdomain != ""
			}
			return len(a.template) < len(b.template)
		})

		targets := make([]dynamicTarget, 0, len(dynamic))
		for _, e := range dynamic {
			kinds := make([]compiler.Kind, len(e.pattern.ParamNames))
			for i, name := range e.pattern.ParamNames {
				kinds[i] = e.pattern.Constraints[name]
			}
			targets = append(targets, dynamicTarget{
				regex:     e.pattern.Regex,
				names:     e.pattern.ParamNames,
				kinds:     kinds,
				handlerID: e.handlerID,
				template:  e.template,
				subdomain: e.subdomain,
			})
		}
		if len(targets) > 0 {
			p.dynamic[method] = targets
		}
	}

	return p
}

// match resolves a normalized path against the program: static probe first,
// then the ordered dynamic scan. Dynamic captures are validated per
// parameter kind; a validation failure skips the target and the scan
// continues.
func (p *program) match(method, path, subdomain string) (handlerID, template string, params Params, ok bool) {
	if targets := p.static[method]; targets != nil {
		if t, hit := targets[cache.StaticKey(subdomain, path)]; hit {
			return t.handlerID, t.template, Params{}, true
		}
	}

scan:
	for _, t := range p.dynamic[method] {
		if t.subdomain != subdomain {
			continue
		}
		m := t.regex.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		params = make(Params, len(t.names))
		for i, name := range t.names {
			value, err := compiler.ValidateParam(t.kinds[i], m[i+1])
			if err != nil {
				continue scan
			}
			params[name] = value
		}
		return t.handlerID, t.template, params, true
	}
	return "", "", nil, false
}

// allowed returns the methods (other than the one given) whose targets match
// the path, for the 405 Allow header.
func (p *program) allowed(exclude, path, subdomain string) []string {
	var methods []string
	for _, method := range standardMethods {
		if method == exclude {
			continue
		}
		if _, _, _, ok := p.match(method, path, subdomain); ok {
			methods = append(methods, method)
		}
	}
	return methods
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	var obsState any
	if r.observability != nil {
		ctx, obsState = r.observability.OnRequestStart(ctx, req)
		req = req.WithContext(ctx)
		if obsState != nil {
			w = r.observability.WrapResponseWriter(w, obsState)
		}
	}

	template := unmatchedTemplate
	defer func() {
		if r.observability != nil && obsState != nil {
			r.observability.OnRequestEnd(ctx, obsState, w, template)
		}
	}()

	path, err := normalizePath(req.URL.Path)
	if err != nil {
		writeProblem(w, req, http.StatusBadRequest, "invalid request path")
		return
	}
	subdomain := deriveSubdomain(req.Host, r.baseDomain)

	p := r.loadProgram()
	handlerID, matched, params, ok := p.match(req.Method, path, subdomain)
	if !ok {
		if allowed := p.allowed(req.Method, path, subdomain); len(allowed) > 0 {
			w.Header().Set("Allow", strings.Join(allowed, ", "))
			writeProblem(w, req, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeProblem(w, req, http.StatusNotFound, "route not found")
		return
	}
	template = matched

	if r.resolver == nil {
		r.logger.Error("dispatch failed", "handler", handlerID, "error", ErrNoResolver)
		writeProblem(w, req, http.StatusInternalServerError, "handler resolution unavailable")
		return
	}
	handler, err := r.resolver.Resolve(handlerID)
	if err != nil {
		r.logger.Error("handler resolution failed", "handler", handlerID, "error", err)
		writeProblem(w, req, http.StatusInternalServerError, "handler resolution failed")
		return
	}

	result, err := handler(req, params)
	if err != nil {
		r.logger.Error("handler failed", "handler", handlerID, "template", matched, "error", err)
		writeProblem(w, req, http.StatusInternalServerError, "internal error")
		return
	}
	writeResult(w, result, r.logger)
}
