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

package compiler

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/google/uuid"
)

// MaxParamValueLength caps the length of any extracted parameter value.
const MaxParamValueLength = 255

// ErrParameter indicates an extracted parameter value that violates its
// constraint. Callers treat it as "this route does not match", not as a
// fatal dispatch error.
var ErrParameter = errors.New("parameter constraint violation")

// ValidateParam validates and normalizes a captured parameter value according
// to its constraint kind. The returned string is the value to expose to
// handlers; it may differ from the input (UUIDs are lower-cased,
// unconstrained values are HTML-escaped).
//
// Validation is independent of the capture groups: even though the regex
// already restricts what can be captured, each rule is enforced again here so
// routes restored from a cache artifact get identical behavior.
func ValidateParam(kind Kind, value string) (string, error) {
	if len(value) > MaxParamValueLength {
		return "", fmt.Errorf("%w: value exceeds %d characters", ErrParameter, MaxParamValueLength)
	}
	if strings.IndexByte(value, 0) >= 0 {
		return "", fmt.Errorf("%w: value contains NUL byte", ErrParameter)
	}

	switch kind {
	case KindInt:
		if value == "" || !isDigits(value) {
			return "", fmt.Errorf("%w: %q is not an integer", ErrParameter, value)
		}
		return value, nil

	case KindUUID:
		u, err := uuid.Parse(value)
		if err != nil || len(value) != 36 {
			return "", fmt.Errorf("%w: %q is not a canonical UUID", ErrParameter, value)
		}
		return u.String(), nil

	case KindSlug:
		if !isSlug(value) {
			return "", fmt.Errorf("%w: %q is not a valid slug", ErrParameter, value)
		}
		return value, nil

	case KindAlpha:
		if value == "" || !isAlpha(value) {
			return "", fmt.Errorf("%w: %q is not alphabetic", ErrParameter, value)
		}
		return value, nil

	case KindAlnum:
		if value == "" || !isAlnum(value) {
			return "", fmt.Errorf("%w: %q is not alphanumeric", ErrParameter, value)
		}
		return value, nil

	default:
		if value == "" {
			return "", fmt.Errorf("%w: empty value", ErrParameter)
		}
		return html.EscapeString(value), nil
	}
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// isSlug enforces the full slug rule: lowercase alphanumerics and hyphens,
// no leading, trailing or doubled hyphen.
func isSlug(s string) bool {
	if s == "" || s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}
	prevHyphen := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			prevHyphen = false
		case c == '-':
			if prevHyphen {
				return false
			}
			prevHyphen = true
		default:
			return false
		}
	}
	return true
}

func isAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}

func isAlnum(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
