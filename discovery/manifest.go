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
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
)

var (
	// ErrUnsupportedFormat is returned for manifest files with an extension
	// other than .yaml, .yml, or .toml.
	ErrUnsupportedFormat = errors.New("discovery: unsupported manifest format")

	// ErrMalformedManifest wraps parse and decode failures.
	ErrMalformedManifest = errors.New("discovery: malformed manifest")
)

// RouteDecl is a single route declaration in a manifest.
type RouteDecl struct {
	Method     string         `mapstructure:"method"`
	Path       string         `mapstructure:"path"`
	Handler    string         `mapstructure:"handler"`
	Name       string         `mapstructure:"name"`
	Subdomain  string         `mapstructure:"subdomain"`
	Middleware []string       `mapstructure:"middleware"`
	Options    map[string]any `mapstructure:"options"`
}

// Defaults are manifest-wide values merged into each route that leaves the
// corresponding field unset.
type Defaults struct {
	Subdomain  string         `mapstructure:"subdomain"`
	Middleware []string       `mapstructure:"middleware"`
	Options    map[string]any `mapstructure:"options"`
}

// Manifest is a parsed route manifest file.
type Manifest struct {
	Defaults Defaults    `mapstructure:"defaults"`
	Routes   []RouteDecl `mapstructure:"routes"`
}

// ParseManifest decodes manifest bytes according to the file extension.
// Both formats decode through a generic map so field handling is identical.
func ParseManifest(path string, data []byte) (*Manifest, error) {
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, fmt.Errorf("%w: %s: binary content", ErrMalformedManifest, path)
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedManifest, path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedManifest, path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	var m Manifest
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &m,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedManifest, path, err)
	}

	if err := m.applyDefaults(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedManifest, path, err)
	}
	return &m, nil
}

// applyDefaults merges manifest defaults into every route. Scalar fields
// keep the route's value when set; middleware lists append the defaults
// after the route's own entries; option maps merge without overriding
// route-level keys.
func (m *Manifest) applyDefaults() error {
	for i := range m.Routes {
		rt := &m.Routes[i]

		base := RouteDecl{
			Subdomain:  m.Defaults.Subdomain,
			Middleware: m.Defaults.Middleware,
			Options:    m.Defaults.Options,
		}
		if err := mergo.Merge(rt, base, mergo.WithAppendSlice); err != nil {
			return err
		}
	}
	return nil
}
