package http

import (
	"strings"

	"github.com/searchktools/rawhttp/core/codec"
)

// Method is an HTTP request method
type Method string

// Supported methods
const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
)

// Version is an HTTP protocol version
type Version string

// Supported versions
const (
	Version10 Version = "HTTP/1.0"
	Version11 Version = "HTTP/1.1"
)

func parseMethod(s string) (Method, bool) {
	switch m := Method(s); m {
	case MethodGet, MethodPost, MethodPut, MethodDelete:
		return m, true
	}
	return "", false
}

func parseVersion(s string) (Version, bool) {
	switch v := Version(s); v {
	case Version10, Version11:
		return v, true
	}
	return "", false
}

// Header is a single name/value pair. Order and duplicates are preserved.
type Header struct {
	Name  string
	Value string
}

// Request is a decoded HTTP request.
//
// A Request is produced once per connection by the parser and is not
// modified after the router attaches Params.
type Request struct {
	Method   Method
	Path     string
	RawQuery string
	Version  Version

	Headers []Header

	// Query parameters; last value wins on duplicate keys
	Query map[string]string

	// Path parameters extracted by the router
	Params map[string]string

	Body []byte
}

// Header returns the value of the first header named exactly name.
func (r *Request) Header(name string) string {
	for _, h := range r.Headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}

// Param gets a path parameter
func (r *Request) Param(name string) string {
	return r.Params[name]
}

// QueryValue gets a query parameter
func (r *Request) QueryValue(name string) string {
	return r.Query[name]
}

// RequestURI returns the path followed by the raw query, if any.
func (r *Request) RequestURI() string {
	if r.RawQuery == "" {
		return r.Path
	}
	return r.Path + "?" + r.RawQuery
}

// Bind decodes a JSON body into v
func (r *Request) Bind(v any) error {
	return r.Decode(codec.JSON, v)
}

// Decode decodes the body into v with the given codec
func (r *Request) Decode(c codec.Codec, v any) error {
	return c.Decode(r.Body, v)
}

// WithParams returns a shallow copy of r carrying params.
func (r *Request) WithParams(params map[string]string) *Request {
	r2 := *r
	r2.Params = params
	return &r2
}

// String re-serializes the request in wire form.
func (r *Request) String() string {
	var b strings.Builder
	b.WriteString(string(r.Method))
	b.WriteByte(' ')
	b.WriteString(r.RequestURI())
	b.WriteByte(' ')
	b.WriteString(string(r.Version))
	b.WriteString("\r\n")
	for _, h := range r.Headers {
		b.WriteString(h.Name)
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	b.Write(r.Body)
	return b.String()
}
