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

package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivaas.dev/routing"
)

func newTestRouter(t *testing.T, rec *Recorder) *routing.Router {
	t.Helper()
	return routing.MustNew(
		routing.WithObservabilityRecorder(rec),
		routing.WithResolverFunc(func(handlerID string) (routing.Handler, error) {
			return func(req *http.Request, params routing.Params) (any, error) {
				return map[string]string{"handler": handlerID}, nil
			}, nil
		}),
	)
}

func TestRecorderExportsRequestMetrics(t *testing.T) {
	rec := MustNew(WithServiceName("test-service"))
	r := newTestRouter(t, rec)
	_, err := r.GET("/users/{id:int}", "users.show")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/42", nil))
	require.Equal(t, http.StatusOK, w.Code)

	scrape := httptest.NewRecorder()
	rec.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := scrape.Body.String()

	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, "http_request_duration_seconds")
	// Labels use the route template, never the raw path.
	assert.Contains(t, body, "/users/{id:int}")
	assert.NotContains(t, body, "/users/42")
}

func TestRecorderLabelsUnmatchedRequests(t *testing.T) {
	rec := MustNew()
	r := newTestRouter(t, rec)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	scrape := httptest.NewRecorder()
	rec.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, scrape.Body.String(), "_unmatched")
}

func TestRecorderExcludesPaths(t *testing.T) {
	rec := MustNew(WithExcludePaths("/health"))
	r := newTestRouter(t, rec)
	_, err := r.GET("/health", "health")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	scrape := httptest.NewRecorder()
	rec.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.NotContains(t, scrape.Body.String(), "/health")
}

func TestRecorderCountsServerErrors(t *testing.T) {
	rec := MustNew()
	r := routing.MustNew(
		routing.WithObservabilityRecorder(rec),
		routing.WithResolverFunc(func(handlerID string) (routing.Handler, error) {
			return func(req *http.Request, params routing.Params) (any, error) {
				return nil, assert.AnError
			}, nil
		}),
	)
	_, err := r.GET("/boom", "boom")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	scrape := httptest.NewRecorder()
	rec.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, scrape.Body.String(), "http_errors_total")
}

func TestResponseWriterCapturesStatusAndSize(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}

	// Status defaults to 200 when the handler writes without WriteHeader.
	n, err := rw.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, http.StatusOK, rw.StatusCode())
	assert.Equal(t, int64(5), rw.Size())

	// Later WriteHeader calls are ignored.
	rw.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusOK, rw.StatusCode())
}

func TestRecorderShutdown(t *testing.T) {
	rec := MustNew()
	assert.NoError(t, rec.Shutdown(context.Background()))
}

func TestRecorderImplementsInterface(t *testing.T) {
	var _ routing.ObservabilityRecorder = MustNew()
}
