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

// Package compiler turns route templates into anchored regular expressions
// with ordered parameter metadata.
//
// A template is a path such as /users/{id:int}/posts/{slug}. Placeholders use
// the {name} or {name:constraint} syntax, where constraint is one of int,
// uuid, slug, alpha or alnum. A template without placeholders compiles to a
// static pattern that is matched by exact string equality.
//
// Compilation is memoized per Compiler instance in a bounded FIFO cache, so
// compiling the same template twice is cheap and yields byte-identical
// results:
//
//	c := compiler.New(0)
//	p, err := c.Compile("/users/{id:int}")
//	if err != nil {
//	    // unknown constraint, duplicate parameter, malformed template...
//	}
//	p.IsStatic      // false
//	p.ParamNames    // ["id"]
//	p.Regex.String() // ^/users/(\d+)$
//
// The package also owns post-match parameter validation (ValidateParam),
// which normalizes captured values and enforces per-constraint rules that go
// beyond what the capture groups express, such as slug hyphen placement and
// the 255-character limit on unconstrained values.
package compiler
