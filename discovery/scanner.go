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

package discovery

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"rivaas.dev/routing"
)

// MaxManifestSize bounds manifest files; larger files are skipped.
const MaxManifestSize = 1 << 20

// Scanner discovers route manifests under a set of root directories and
// registers their routes.
type Scanner struct {
	roots  []string
	logger *slog.Logger
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithLogger sets the scanner's structured logger.
func WithLogger(logger *slog.Logger) ScannerOption {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScanner creates a scanner over the given root directories.
func NewScanner(roots []string, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		roots:  roots,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result summarizes a scan.
type Result struct {
	Manifests  int
	Registered int
	Skipped    []string // per-route registration failures, human readable
}

// Scan walks every root, parses each manifest, and registers its routes on
// r. Walk errors and malformed manifests abort the scan; individual route
// registration failures are collected in Result.Skipped and the scan
// continues.
func (s *Scanner) Scan(r *routing.Router) (*Result, error) {
	res := &Result{}
	for _, root := range s.roots {
		if err := s.scanRoot(root, r, res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (s *Scanner) scanRoot(root string, r *routing.Router, res *Result) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		name := d.Name()
		if strings.HasPrefix(name, ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			s.logger.Debug("skipping symlink", "path", path)
			return nil
		}
		if !isManifestFile(name) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() > MaxManifestSize {
			s.logger.Warn("skipping oversized manifest", "path", path, "size", info.Size())
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		manifest, err := ParseManifest(path, data)
		if err != nil {
			return err
		}
		res.Manifests++

		for _, decl := range manifest.Routes {
			if err := register(r, decl); err != nil {
				s.logger.Warn("route registration failed",
					"manifest", path, "method", decl.Method, "path", decl.Path, "error", err)
				res.Skipped = append(res.Skipped, fmt.Sprintf("%s: %s %s: %v", path, decl.Method, decl.Path, err))
				continue
			}
			res.Registered++
		}
		return nil
	})
}

// register translates a declaration into a Router.Handle call.
func register(r *routing.Router, decl RouteDecl) error {
	var opts []routing.RouteOption
	if decl.Name != "" {
		opts = append(opts, routing.WithName(decl.Name))
	}
	if decl.Subdomain != "" {
		opts = append(opts, routing.WithSubdomain(decl.Subdomain))
	}
	if len(decl.Middleware) > 0 {
		opts = append(opts, routing.WithMiddleware(decl.Middleware...))
	}
	if len(decl.Options) > 0 {
		opts = append(opts, routing.WithRouteOptions(routing.Options(decl.Options)))
	}
	_, err := r.Handle(strings.ToUpper(decl.Method), decl.Path, decl.Handler, opts...)
	return err
}

// isManifestFile reports whether name has a manifest extension.
func isManifestFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".toml":
		return true
	default:
		return false
	}
}
