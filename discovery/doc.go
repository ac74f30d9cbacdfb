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

// Package discovery registers routes from manifest files found on disk.
//
// A scanner walks one or more root directories for YAML or TOML manifests
// and registers every declared route on a routing.Router. Manifests declare
// routes by handler identifier, so route declarations can live next to the
// modules that implement them:
//
//	defaults:
//	  subdomain: api
//	  middleware: [auth]
//	routes:
//	  - method: GET
//	    path: /users/{id:int}
//	    handler: users.show
//	    name: user.show
//	  - method: POST
//	    path: /users
//	    handler: users.create
//
// Per-route fields override manifest defaults; list and map defaults merge
// into routes that leave them unset. Files over 1 MiB, hidden files, and
// symlinks are skipped. A manifest that fails to parse fails the scan; a
// route that fails registration is reported in the scan result without
// aborting the remaining routes.
package discovery
