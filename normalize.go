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
	"net"
	"strings"
)

// maxRequestPathLength bounds incoming paths before any other processing.
const maxRequestPathLength = 2048

// traversalSequences are removed from request paths until a fixed point is
// reached. Single-pass stripping is not enough: "..%2f/" collapses into a
// fresh "../" after one pass.
var traversalSequences = []string{
	"../",
	"..\\",
	"%2e%2e%2f",
	"%2e%2e/",
	"..%2f",
	"%2e%2e%5c",
	"%2e%2e\\",
	"..%5c",
	"%252e%252e%255c",
	"..%255c",
}

// normalizePath sanitizes a raw request path for matching. It returns the
// cleaned path, or "" with ErrInvalidPath when the input cannot be made safe
// (oversized, NUL bytes, or a Windows drive reference).
func normalizePath(raw string) (string, error) {
	if len(raw) > maxRequestPathLength {
		return "", ErrInvalidPath
	}
	if strings.IndexByte(raw, 0) >= 0 || strings.Contains(raw, "%00") {
		return "", ErrInvalidPath
	}

	p := raw

	// Strip traversal sequences to a fixed point, case-insensitively for
	// the percent-encoded forms.
	for {
		before := p
		lower := strings.ToLower(p)
		for _, seq := range traversalSequences {
			for {
				i := strings.Index(lower, seq)
				if i < 0 {
					break
				}
				p = p[:i] + p[i+len(seq):]
				lower = lower[:i] + lower[i+len(seq):]
			}
		}
		if p == before {
			break
		}
	}

	p = strings.ReplaceAll(p, "\\", "/")

	// Bare ".." segments survive the sequence pass when not followed by a
	// separator.
	for {
		switch {
		case p == "..", p == ".":
			p = "/"
		case strings.HasSuffix(p, "/.."):
			p = p[:len(p)-3]
			continue
		case strings.HasSuffix(p, "/."):
			p = p[:len(p)-2]
			continue
		}
		break
	}

	// Reject Windows drive references such as "C:/" anywhere in the path.
	if i := strings.IndexByte(p, ':'); i > 0 && i+1 < len(p) && p[i+1] == '/' && isASCIIAlpha(p[i-1]) {
		if i == 1 || p[i-2] == '/' {
			return "", ErrInvalidPath
		}
	}

	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}

	if p == "" || p[0] != '/' {
		p = "/" + p
	}
	return p, nil
}

// deriveSubdomain extracts the first host label when the host carries one
// beyond the registrable domain. Ports are ignored. Plain hosts, IP
// addresses, localhost, and the .local/.localhost development suffixes yield
// no subdomain.
func deriveSubdomain(host, baseDomain string) string {
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))

	if host == "localhost" || net.ParseIP(host) != nil {
		return ""
	}
	if strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
		host = host[:strings.LastIndexByte(host, '.')]
		if !strings.Contains(host, ".") {
			return ""
		}
	}

	if baseDomain != "" {
		base := strings.ToLower(baseDomain)
		if host == base {
			return ""
		}
		if strings.HasSuffix(host, "."+base) {
			label := host[:len(host)-len(base)-1]
			if !strings.Contains(label, ".") && isDNSLabel(label) {
				return label
			}
			return ""
		}
	}

	// Without a configured base domain, require at least three labels so
	// "example.com" keeps its bare form.
	labels := strings.Split(host, ".")
	if len(labels) < 3 {
		return ""
	}
	if isDNSLabel(labels[0]) {
		return labels[0]
	}
	return ""
}

// isDNSLabel reports whether s is a valid lowercase DNS label: 1 to 63
// characters of [a-z0-9-], not starting or ending with a hyphen.
func isDNSLabel(s string) bool {
	if len(s) == 0 || len(s) > 63 {
		return false
	}
	if s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
			return false
		}
	}
	return true
}

func isASCIIAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
