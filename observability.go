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
	"context"
	"net/http"
)

// ObservabilityRecorder provides request lifecycle hooks for metrics,
// tracing, and access logging. The metrics package ships the standard
// implementation; custom recorders only need these three methods.
//
// Lifecycle:
//  1. The router calls OnRequestStart(ctx, req) before routing begins and
//     always adopts the returned context for the rest of the request.
//  2. If the returned state is non-nil, the router wraps the ResponseWriter
//     via WrapResponseWriter and calls OnRequestEnd after the handler runs.
//  3. A nil state excludes the request from recording (useful for /health
//     or /metrics) while keeping the context enrichment from step 1.
//
// OnRequestEnd receives the matched route template (for example
// "/users/{id:int}") rather than the raw path, so recorded label sets stay
// bounded. Unmatched requests are reported with the "_unmatched" sentinel.
//
// All methods must be safe for concurrent use.
type ObservabilityRecorder interface {
	// OnRequestStart returns an enriched context and an opaque state token.
	// Returning a nil state excludes the request from recording.
	OnRequestStart(ctx context.Context, req *http.Request) (context.Context, any)

	// WrapResponseWriter wraps w to capture response metadata. The wrapped
	// writer should implement ResponseInfo. When state is nil the original
	// writer must be returned unchanged.
	WrapResponseWriter(w http.ResponseWriter, state any) http.ResponseWriter

	// OnRequestEnd completes the lifecycle. writer is the (possibly
	// wrapped) ResponseWriter; implementations type-assert it to
	// ResponseInfo to read status and size.
	OnRequestEnd(ctx context.Context, state any, writer http.ResponseWriter, routeTemplate string)
}

// ResponseInfo is implemented by response writers that track response
// metadata, letting OnRequestEnd extract the status code and body size.
type ResponseInfo interface {
	StatusCode() int
	Size() int64
}

// unmatchedTemplate is the route label reported for requests that resolved
// to no route (404 and 405 responses).
const unmatchedTemplate = "_unmatched"
