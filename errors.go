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
	"errors"
	"fmt"
)

var (
	// ErrRouteNotFound indicates a reverse lookup by a name that was never
	// registered.
	ErrRouteNotFound = errors.New("route not found")

	// ErrMissingParameter indicates URL generation with an unsubstituted
	// placeholder.
	ErrMissingParameter = errors.New("missing required parameter")

	// ErrDuplicateName indicates a route name that is already taken. Names
	// are unique across the whole table.
	ErrDuplicateName = errors.New("duplicate route name")

	// ErrInvalidMethod indicates an HTTP method outside the supported set.
	ErrInvalidMethod = errors.New("invalid HTTP method")

	// ErrInvalidRouteName indicates a route name with characters outside
	// [a-zA-Z0-9._-].
	ErrInvalidRouteName = errors.New("invalid route name")

	// ErrInvalidSubdomain indicates a subdomain that is not a valid DNS label.
	ErrInvalidSubdomain = errors.New("invalid subdomain")

	// ErrTooMuchMiddleware indicates a middleware list longer than
	// MaxMiddleware.
	ErrTooMuchMiddleware = errors.New("too many middleware entries")

	// ErrEmptyHandlerID indicates registration without a handler identifier.
	ErrEmptyHandlerID = errors.New("handler identifier is required")

	// ErrNoResolver indicates dispatch without a configured handler resolver.
	ErrNoResolver = errors.New("no handler resolver configured")

	// ErrInvalidPath indicates a request path rejected by normalization.
	ErrInvalidPath = errors.New("invalid request path")
)

// RegistrationError wraps a route registration failure with the method and
// template being registered. It is always surfaced to the caller of Handle —
// never logged-and-dropped.
type RegistrationError struct {
	Method   string
	Template string
	Err      error
}

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registering %s %s: %v", e.Method, e.Template, e.Err)
}

// Unwrap returns the underlying cause so errors.Is/As work through the wrapper.
func (e *RegistrationError) Unwrap() error { return e.Err }

// registrationErr builds a RegistrationError.
func registrationErr(method, template string, err error) error {
	return &RegistrationError{Method: method, Template: template, Err: err}
}
