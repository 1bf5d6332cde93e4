package router

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrInvalidTemplate   = errors.New("invalid route template")
	ErrInconsistentRoute = errors.New("route capture groups do not match placeholders")
)

// segmentPattern matches one path segment for a {name} placeholder
const segmentPattern = `([^/]+)`

// RouteAddress is a URI template compiled once at registration.
//
// The regexp and the placeholder names are stored together: capture group
// i+1 always belongs to names[i].
type RouteAddress struct {
	template string
	pattern  *regexp.Regexp
	names    []string
}

// Compile turns a template such as /users/{id}/posts/{post} into an
// anchored RouteAddress. Literal text matches verbatim.
func Compile(template string) (*RouteAddress, error) {
	if template == "" || template[0] != '/' {
		return nil, fmt.Errorf("%w %q: must begin with '/'", ErrInvalidTemplate, template)
	}

	var (
		expr    strings.Builder
		literal strings.Builder
		names   []string
		seen    = make(map[string]bool)
	)
	expr.WriteByte('^')

	rest := template
	for rest != "" {
		open := strings.IndexAny(rest, "{}")
		if open == -1 {
			literal.WriteString(rest)
			break
		}
		if rest[open] == '}' {
			return nil, fmt.Errorf("%w %q: unexpected '}'", ErrInvalidTemplate, template)
		}

		literal.WriteString(rest[:open])
		rest = rest[open+1:]

		end := strings.IndexAny(rest, "{}")
		if end == -1 || rest[end] != '}' {
			return nil, fmt.Errorf("%w %q: unterminated placeholder", ErrInvalidTemplate, template)
		}
		name := rest[:end]
		rest = rest[end+1:]

		if name == "" || strings.Contains(name, "/") {
			return nil, fmt.Errorf("%w %q: bad placeholder name %q", ErrInvalidTemplate, template, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w %q: duplicate placeholder %q", ErrInvalidTemplate, template, name)
		}
		seen[name] = true
		names = append(names, name)

		expr.WriteString(regexp.QuoteMeta(literal.String()))
		literal.Reset()
		expr.WriteString(segmentPattern)
	}

	expr.WriteString(regexp.QuoteMeta(literal.String()))
	expr.WriteByte('$')

	pattern, err := regexp.Compile(expr.String())
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidTemplate, template, err)
	}
	if pattern.NumSubexp() != len(names) {
		return nil, fmt.Errorf("%w: %q", ErrInconsistentRoute, template)
	}

	return &RouteAddress{
		template: template,
		pattern:  pattern,
		names:    names,
	}, nil
}

// MustCompile is like Compile but panics on error
func MustCompile(template string) *RouteAddress {
	a, err := Compile(template)
	if err != nil {
		panic(err)
	}
	return a
}

// Template returns the source template
func (a *RouteAddress) Template() string {
	return a.template
}

// Names returns the placeholder names in template order
func (a *RouteAddress) Names() []string {
	return append([]string(nil), a.names...)
}

// Match reports whether path matches the whole template
func (a *RouteAddress) Match(path string) bool {
	return a.pattern.MatchString(path)
}

// Extract maps each placeholder name to the segment it captured.
func (a *RouteAddress) Extract(path string) (map[string]string, error) {
	groups := a.pattern.FindStringSubmatch(path)
	if groups == nil {
		return nil, fmt.Errorf("path %q does not match %q", path, a.template)
	}
	if len(groups)-1 != len(a.names) {
		return nil, fmt.Errorf("%w: %q has %d groups for %d names", ErrInconsistentRoute, a.template, len(groups)-1, len(a.names))
	}

	params := make(map[string]string, len(a.names))
	for i, name := range a.names {
		params[name] = groups[i+1]
	}
	return params, nil
}
