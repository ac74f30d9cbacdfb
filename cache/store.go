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

package cache

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

const (
	snapshotFileName           = "routes.snapshot"
	integrityFileName          = "routes.snapshot.integrity"
	optimizedFileName          = "routes.optimized.json"
	optimizedIntegrityFileName = "routes.optimized.integrity"

	// DefaultTTL is the snapshot expiry window measured from write time.
	DefaultTTL = time.Hour

	// DefaultMaxSize caps how large a snapshot file Load will read.
	DefaultMaxSize = 16 << 20 // 16 MiB

	payloadEncodingAEAD   = "aead"
	payloadEncodingBase64 = "base64"
)

var (
	// ErrEmptyRouteSet indicates an attempt to store a snapshot with no routes.
	ErrEmptyRouteSet = errors.New("refusing to store empty route set")
)

// envelope wraps the snapshot payload with the transformations applied to it.
// The envelope itself is plaintext JSON; tampering anywhere in the file is
// caught by the integrity sidecar before the envelope is even parsed.
type envelope struct {
	Version    int    `json:"version"`
	Compressed bool   `json:"compressed"`
	Encrypted  bool   `json:"encrypted"`
	Encoding   string `json:"encoding,omitempty"`
	Payload    []byte `json:"payload"`
}

// integrityRecord is the sidecar written next to the snapshot file.
type integrityRecord struct {
	Algorithm string `json:"algorithm"`
	Hash      string `json:"hash"`
	Size      int64  `json:"size"`
	CreatedAt int64  `json:"created_at"`
}

// Store persists route table snapshots to a directory.
//
// All methods are safe for concurrent use by multiple goroutines; writes are
// atomic with respect to concurrent readers (temp file + rename).
type Store struct {
	dir      string
	ttl      time.Duration
	maxSize  int64
	compress bool
	encrypt  bool
	logger   *slog.Logger

	key []byte
	// keyless is set when encryption was requested but the key could not be
	// persisted; payloads then use the reversible fallback encoding.
	keyless bool

	now func() time.Time
	// beforeRetry runs before Load re-reads a mismatched snapshot. Test hook.
	beforeRetry func()
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithTTL sets the snapshot expiry window. Snapshots older than the TTL are
// cleared and treated as absent on load. Non-positive values select the
// default.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithCompression toggles zstd compression of the snapshot payload.
func WithCompression(enabled bool) StoreOption {
	return func(s *Store) { s.compress = enabled }
}

// WithEncryption toggles AEAD encryption of the snapshot payload. Route
// tables are rarely secret, so this is off by default; the integrity
// guarantee does not depend on it.
func WithEncryption(enabled bool) StoreOption {
	return func(s *Store) { s.encrypt = enabled }
}

// WithMaxSize caps the snapshot file size Load is willing to read.
func WithMaxSize(n int64) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// WithLogger sets the logger used for degraded-path reporting. Cache
// failures are logged here and never propagated where the contract allows
// graceful degradation.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// withClock overrides the time source. Test hook.
func withClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store rooted at dir, creating the directory if needed.
func NewStore(dir string, opts ...StoreOption) (*Store, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	s := &Store{
		dir:     dir,
		ttl:     DefaultTTL,
		maxSize: DefaultMaxSize,
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	key, err := loadOrCreateKey(dir)
	if err != nil {
		if s.encrypt {
			// Per contract: fall back to a reversible encoding rather than
			// failing construction. Integrity still holds via the sidecar.
			s.logger.Warn("cache key unavailable, using fallback encoding", "error", err)
			s.keyless = true
		} else {
			return nil, err
		}
	}
	s.key = key

	return s, nil
}

// Dir returns the directory the store writes into.
func (s *Store) Dir() string { return s.dir }

// Store serializes the routes into a verified snapshot and persists it,
// together with the integrity sidecar and the optimized dispatch artifact.
// Empty route sets are rejected: an empty snapshot is indistinguishable from
// a broken discovery run, so callers must clear the cache explicitly instead.
func (s *Store) Store(routes []Route) error {
	if len(routes) == 0 {
		return ErrEmptyRouteSet
	}

	snap, err := newSnapshot(s.checksumKey(), routes, s.now())
	if err != nil {
		return fmt.Errorf("building snapshot: %w", err)
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("serializing snapshot: %w", err)
	}

	env := envelope{Version: SnapshotVersion}

	if s.compress {
		payload, err = compressPayload(payload)
		if err != nil {
			return fmt.Errorf("compressing snapshot: %w", err)
		}
		env.Compressed = true
	}

	if s.encrypt {
		if s.keyless {
			payload = encodeFallback(payload)
			env.Encoding = payloadEncodingBase64
		} else {
			payload, err = seal(s.key, payload)
			if err != nil {
				return fmt.Errorf("encrypting snapshot: %w", err)
			}
			env.Encoding = payloadEncodingAEAD
		}
		env.Encrypted = true
	}
	env.Payload = payload

	raw, err := json.Marshal(&env)
	if err != nil {
		return fmt.Errorf("serializing envelope: %w", err)
	}

	if err := writeFileAtomic(filepath.Join(s.dir, snapshotFileName), raw); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	if err := s.writeIntegrity(integrityFileName, raw); err != nil {
		return fmt.Errorf("writing integrity record: %w", err)
	}

	if err := s.writeOptimized(routes); err != nil {
		// The optimized artifact is a pure dispatch accelerator; the verified
		// snapshot is already durable, so only log.
		s.logger.Warn("writing optimized artifact failed", "error", err)
	}

	s.logger.Debug("route cache stored",
		"routes", len(routes),
		"compressed", s.compress,
		"encrypted", s.encrypt,
	)
	return nil
}

// Load reads back a stored snapshot. The policy is fail-closed: on any
// verification failure — missing or oversized file, expired TTL, sidecar
// hash mismatch, envelope or snapshot version skew, checksum mismatch,
// decryption or decompression failure — Load clears the cache and returns
// (nil, nil). A nil error with nil routes means "cold cache, proceed
// without".
func (s *Store) Load() ([]Route, error) {
	path := filepath.Join(s.dir, snapshotFileName)

	info, err := os.Stat(path)
	if err != nil {
		return nil, nil // no snapshot
	}
	if info.Size() > s.maxSize {
		s.failClosed("snapshot exceeds size limit", "size", info.Size(), "limit", s.maxSize)
		return nil, nil
	}
	if s.now().Sub(info.ModTime()) > s.ttl {
		s.failClosed("snapshot expired", "age", s.now().Sub(info.ModTime()).String(), "ttl", s.ttl.String())
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		s.failClosed("snapshot unreadable", "error", err)
		return nil, nil
	}

	if !s.verifyIntegrity(integrityFileName, raw) {
		// Store renames the snapshot and its sidecar separately, so a reader
		// can catch a fresh snapshot alongside the previous sidecar. Re-read
		// once before treating the mismatch as corruption.
		if s.beforeRetry != nil {
			s.beforeRetry()
		}
		raw, err = os.ReadFile(path)
		if err != nil || !s.verifyIntegrity(integrityFileName, raw) {
			s.failClosed("integrity record mismatch")
			return nil, nil
		}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.failClosed("envelope corrupt", "error", err)
		return nil, nil
	}
	if env.Version != SnapshotVersion {
		s.failClosed("envelope version skew", "got", env.Version, "want", SnapshotVersion)
		return nil, nil
	}

	payload := env.Payload
	if env.Encrypted {
		switch env.Encoding {
		case payloadEncodingAEAD:
			if s.keyless {
				s.failClosed("encrypted snapshot without key")
				return nil, nil
			}
			payload, err = open(s.key, payload)
		case payloadEncodingBase64:
			payload, err = decodeFallback(payload)
		default:
			err = fmt.Errorf("unknown payload encoding %q", env.Encoding)
		}
		if err != nil {
			s.failClosed("payload decode failed", "error", err)
			return nil, nil
		}
	}
	if env.Compressed {
		payload, err = decompressPayload(payload, s.maxSize)
		if err != nil {
			s.failClosed("decompression failed", "error", err)
			return nil, nil
		}
	}

	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		s.failClosed("snapshot corrupt", "error", err)
		return nil, nil
	}
	if snap.Version != SnapshotVersion {
		s.failClosed("snapshot version skew", "got", snap.Version, "want", SnapshotVersion)
		return nil, nil
	}
	if snap.RouteCount != len(snap.Routes) {
		s.failClosed("route count mismatch", "declared", snap.RouteCount, "actual", len(snap.Routes))
		return nil, nil
	}
	if !verifyChecksum(s.checksumKey(), &snap) {
		s.failClosed("checksum mismatch")
		return nil, nil
	}

	s.logger.Debug("route cache loaded", "routes", len(snap.Routes))
	return snap.Routes, nil
}

// Clear deletes the snapshot, the optimized artifact and their integrity
// records. Missing files are not an error.
func (s *Store) Clear() {
	for _, name := range []string{snapshotFileName, integrityFileName, optimizedFileName, optimizedIntegrityFileName} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("clearing cache file failed", "file", name, "error", err)
		}
	}
}

// checksumKey returns the key used for the snapshot checksum. When no key
// could be persisted, a fixed key keeps the checksum a plain (unkeyed-
// equivalent) corruption check instead of disabling it entirely.
func (s *Store) checksumKey() []byte {
	if s.key != nil {
		return s.key
	}
	return []byte("routing-cache-fallback")
}

// failClosed logs a verification failure and clears the cache.
func (s *Store) failClosed(msg string, args ...any) {
	s.logger.Warn("route cache "+msg+", clearing", args...)
	s.Clear()
}

// writeIntegrity writes the sidecar named name describing the raw file bytes.
func (s *Store) writeIntegrity(name string, raw []byte) error {
	sum := sha256.Sum256(raw)
	rec := integrityRecord{
		Algorithm: "sha256",
		Hash:      hex.EncodeToString(sum[:]),
		Size:      int64(len(raw)),
		CreatedAt: s.now().Unix(),
	}
	data, err := json.Marshal(&rec)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.dir, name), data)
}

// verifyIntegrity recomputes the file hash and compares it in constant time
// against the sidecar named name.
func (s *Store) verifyIntegrity(name string, raw []byte) bool {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return false
	}
	var rec integrityRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return false
	}
	if rec.Algorithm != "sha256" || rec.Size != int64(len(raw)) {
		return false
	}
	want, err := hex.DecodeString(rec.Hash)
	if err != nil {
		return false
	}
	sum := sha256.Sum256(raw)
	return hmac.Equal(want, sum[:])
}

// writeFileAtomic writes data to path with the temp-file + fsync + rename
// discipline so concurrent readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after successful rename

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// compressPayload applies zstd at the default level.
func compressPayload(payload []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(payload, make([]byte, 0, len(payload)/2)), nil
}

// decompressPayload reverses compressPayload, bounding the decoded size so a
// corrupt frame cannot balloon memory.
func decompressPayload(payload []byte, limit int64) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(limit)))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	out, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > limit {
		return nil, io.ErrShortBuffer
	}
	return out, nil
}
