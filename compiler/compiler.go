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
	"regexp"
	"strings"
	"sync"
)

const (
	// MaxTemplateLength is the maximum accepted length of a route template.
	MaxTemplateLength = 2048

	// MaxParams is the maximum number of placeholders in a single template.
	MaxParams = 16

	// defaultCacheSize bounds the memoization cache when no explicit size is
	// given to New.
	defaultCacheSize = 1024
)

var (
	// ErrEmptyTemplate indicates an empty route template.
	ErrEmptyTemplate = errors.New("template is empty")

	// ErrTemplateNotRooted indicates a template that does not begin with '/'.
	ErrTemplateNotRooted = errors.New("template must begin with '/'")

	// ErrTemplateTooLong indicates a template exceeding MaxTemplateLength.
	ErrTemplateTooLong = errors.New("template exceeds maximum length")

	// ErrTooManyParams indicates a template with more than MaxParams placeholders.
	ErrTooManyParams = errors.New("template has too many parameters")

	// ErrUnknownConstraint indicates a placeholder with a constraint name
	// outside the supported set.
	ErrUnknownConstraint = errors.New("unknown parameter constraint")

	// ErrDuplicateParam indicates the same parameter name appearing twice in
	// one template.
	ErrDuplicateParam = errors.New("duplicate parameter name")

	// ErrMalformedTemplate indicates an unclosed or empty placeholder.
	ErrMalformedTemplate = errors.New("malformed template")
)

// Kind identifies the validation rule attached to a route parameter.
type Kind uint8

const (
	// KindAny matches any non-slash sequence (the default).
	KindAny Kind = iota
	// KindInt matches one or more decimal digits.
	KindInt
	// KindUUID matches the canonical 8-4-4-4-12 hex UUID form.
	KindUUID
	// KindSlug matches lowercase letters, digits and hyphens.
	KindSlug
	// KindAlpha matches ASCII letters only.
	KindAlpha
	// KindAlnum matches ASCII letters and digits.
	KindAlnum
)

// kindGroups maps each kind to its capture group. The groups are part of the
// template contract and must not change between releases: cached route
// artifacts persist the expanded regex source.
var kindGroups = [...]string{
	KindAny:   `([^/]+)`,
	KindInt:   `(\d+)`,
	KindUUID:  `([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})`,
	KindSlug:  `([a-z0-9-]+)`,
	KindAlpha: `([a-zA-Z]+)`,
	KindAlnum: `([a-zA-Z0-9]+)`,
}

// kindNames holds the constraint spellings accepted in templates.
var kindNames = [...]string{
	KindAny:   "",
	KindInt:   "int",
	KindUUID:  "uuid",
	KindSlug:  "slug",
	KindAlpha: "alpha",
	KindAlnum: "alnum",
}

// String returns the template spelling of the kind ("" for KindAny).
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return ""
}

// ParseKind maps a constraint spelling to its Kind. The empty string maps to
// KindAny. Unknown spellings return ErrUnknownConstraint.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "":
		return KindAny, nil
	case "int":
		return KindInt, nil
	case "uuid":
		return KindUUID, nil
	case "slug":
		return KindSlug, nil
	case "alpha":
		return KindAlpha, nil
	case "alnum":
		return KindAlnum, nil
	default:
		return KindAny, fmt.Errorf("%w: %q", ErrUnknownConstraint, name)
	}
}

// Pattern is the compiled form of a route template.
//
// Pattern values are immutable after compilation and safe to share across
// goroutines. IsStatic is true exactly when the template contains no
// placeholder, in which case Regex is an anchored literal and matching should
// prefer plain string equality.
type Pattern struct {
	// Source is the original template string.
	Source string

	// Regex is the anchored (^...$) expression derived from the template.
	Regex *regexp.Regexp

	// ParamNames holds parameter names in capture-group order.
	ParamNames []string

	// Constraints maps each parameter name to its validation kind.
	Constraints map[string]Kind

	// IsStatic reports whether the template has no placeholders.
	IsStatic bool
}

// Compiler compiles templates and memoizes the results.
//
// The memo cache is an explicit, bounded FIFO owned by the Compiler: when the
// cache is full the oldest entry is evicted. A zero-size argument to New
// selects the default capacity.
type Compiler struct {
	mu    sync.Mutex
	memo  map[string]*Pattern
	order []string
	cap   int
}

// New creates a Compiler with a memo cache of the given capacity.
// Sizes below 1 select the default capacity.
func New(size int) *Compiler {
	if size < 1 {
		size = defaultCacheSize
	}
	return &Compiler{
		memo: make(map[string]*Pattern, size),
		cap:  size,
	}
}

// Compile turns a template into a Pattern. It is a pure function of its
// input: compiling the same template twice yields an identical regex source
// and parameter list. Results are memoized.
//
// Compile rejects templates that are empty, not rooted at '/', longer than
// MaxTemplateLength, carry more than MaxParams placeholders, repeat a
// parameter name, or name an unknown constraint. Rejection happens here, at
// registration time, never silently at match time.
func (c *Compiler) Compile(template string) (*Pattern, error) {
	c.mu.Lock()
	if p, ok := c.memo[template]; ok {
		c.mu.Unlock()
		return p, nil
	}
	c.mu.Unlock()

	p, err := compile(template)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	// Re-check under lock: a concurrent Compile may have stored the same
	// template. Keep the first stored value so callers share one Pattern.
	if existing, ok := c.memo[template]; ok {
		c.mu.Unlock()
		return existing, nil
	}
	if len(c.order) >= c.cap {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.memo, oldest)
	}
	c.memo[template] = p
	c.order = append(c.order, template)
	c.mu.Unlock()

	return p, nil
}

// Size returns the number of memoized patterns.
func (c *Compiler) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.memo)
}

// compile performs the actual template expansion.
func compile(template string) (*Pattern, error) {
	if template == "" {
		return nil, ErrEmptyTemplate
	}
	if template[0] != '/' {
		return nil, fmt.Errorf("%w: %q", ErrTemplateNotRooted, template)
	}
	if len(template) > MaxTemplateLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrTemplateTooLong, len(template))
	}

	// Fast path: no placeholders means an anchored literal.
	if !strings.Contains(template, "{") {
		re, err := regexp.Compile("^" + regexp.QuoteMeta(template) + "$")
		if err != nil {
			return nil, fmt.Errorf("compiling static template %q: %w", template, err)
		}
		return &Pattern{
			Source:      template,
			Regex:       re,
			Constraints: map[string]Kind{},
			IsStatic:    true,
		}, nil
	}

	var (
		sb          strings.Builder
		names       []string
		constraints = make(map[string]Kind)
		lit         = 0 // start of the current literal run
	)
	sb.WriteString("^")

	for i := 0; i < len(template); {
		if template[i] != '{' {
			i++
			continue
		}

		// Escape the literal text before the placeholder. Only text outside
		// placeholder groups is escaped; escaping the whole expanded string
		// would corrupt the substituted groups.
		sb.WriteString(regexp.QuoteMeta(template[lit:i]))

		end := strings.IndexByte(template[i:], '}')
		if end < 0 {
			return nil, fmt.Errorf("%w: unclosed placeholder in %q", ErrMalformedTemplate, template)
		}
		end += i

		name := template[i+1 : end]
		constraint := ""
		if colon := strings.IndexByte(name, ':'); colon >= 0 {
			constraint = name[colon+1:]
			name = name[:colon]
		}
		if name == "" {
			return nil, fmt.Errorf("%w: empty parameter name in %q", ErrMalformedTemplate, template)
		}
		if !isParamName(name) {
			return nil, fmt.Errorf("%w: invalid parameter name %q", ErrMalformedTemplate, name)
		}
		if _, dup := constraints[name]; dup {
			return nil, fmt.Errorf("%w: %q in %q", ErrDuplicateParam, name, template)
		}

		kind, err := ParseKind(constraint)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}

		if len(names) >= MaxParams {
			return nil, fmt.Errorf("%w: more than %d", ErrTooManyParams, MaxParams)
		}

		sb.WriteString(kindGroups[kind])
		names = append(names, name)
		constraints[name] = kind

		i = end + 1
		lit = i
	}
	sb.WriteString(regexp.QuoteMeta(template[lit:]))
	sb.WriteString("$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("compiling template %q: %w", template, err)
	}

	return &Pattern{
		Source:      template,
		Regex:       re,
		ParamNames:  names,
		Constraints: constraints,
		IsStatic:    false,
	}, nil
}

// isParamName reports whether s is a valid placeholder name:
// a letter or underscore followed by letters, digits or underscores.
func isParamName(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return len(s) > 0
}
