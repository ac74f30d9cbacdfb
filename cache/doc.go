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

// Package cache persists verified route table snapshots to disk.
//
// A Store writes three artifacts into its directory:
//
//   - routes.snapshot: the serialized snapshot (optionally zstd-compressed
//     and AEAD-encrypted), written atomically via temp-file + fsync + rename
//   - routes.snapshot.integrity: a sidecar with the SHA-256 hash and size of
//     the snapshot file, verified in constant time on load
//   - routes.optimized.json: a precompiled dispatch artifact holding the
//     static exact-match index and the ordered dynamic route list
//
// Loading is fail-closed: a snapshot that is missing, oversized, expired,
// tampered with, version-skewed, or checksum-inconsistent is treated as
// absent, and the on-disk files are cleared. Caching is strictly an
// optimization — callers must operate correctly with a cold cache, so Store
// logs I/O failures instead of propagating them where the contract allows.
package cache
