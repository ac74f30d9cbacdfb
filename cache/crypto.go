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
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
)

const keyFileName = ".routes.key"

var (
	// ErrCiphertextTooShort indicates an encrypted payload shorter than the
	// AEAD nonce.
	ErrCiphertextTooShort = errors.New("ciphertext shorter than nonce")
)

// loadOrCreateKey returns the per-store secret, generating and persisting it
// with restrictive permissions on first use. The key feeds both the snapshot
// checksum (directly) and the AEAD cipher (via derivation).
func loadOrCreateKey(dir string) ([]byte, error) {
	path := filepath.Join(dir, keyFileName)

	key, err := os.ReadFile(path)
	if err == nil && len(key) == chacha20poly1305.KeySize {
		return key, nil
	}

	key = make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating cache key: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("persisting cache key: %w", err)
	}
	return key, nil
}

// aeadKey derives the encryption key from the store secret. A distinct label
// keeps the checksum key and the cipher key independent.
func aeadKey(key []byte) []byte {
	sum := sha256.Sum256(append([]byte("routing-cache-aead:"), key...))
	return sum[:]
}

// seal encrypts plaintext with ChaCha20-Poly1305 under a random nonce.
// The nonce is prepended to the returned ciphertext.
func seal(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(aeadKey(key))
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// open decrypts a payload produced by seal.
func open(key, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(aeadKey(key))
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, ErrCiphertextTooShort
	}
	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	return aead.Open(nil, nonce, sealed, nil)
}

// encodeFallback is the reversible encoding used when encryption is requested
// but no key could be persisted. It provides no confidentiality; integrity is
// still guaranteed by the sidecar hash and the snapshot checksum.
func encodeFallback(plaintext []byte) []byte {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(plaintext)))
	base64.StdEncoding.Encode(out, plaintext)
	return out
}

// decodeFallback reverses encodeFallback.
func decodeFallback(encoded []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.DecodedLen(len(encoded)))
	n, err := base64.StdEncoding.Decode(out, encoded)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}
