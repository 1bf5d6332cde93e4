package router

import (
	"errors"
	"fmt"

	"github.com/searchktools/rawhttp/core/http"
)

var (
	ErrNotFound         = errors.New("no route matches path")
	ErrMethodNotAllowed = errors.New("method not allowed for path")
)

// Route binds a compiled address and a method to a handler
type Route struct {
	Method  http.Method
	Address *RouteAddress
	Handler http.Handler
}

// Name identifies the route in logs and metrics, e.g. "GET /users/{id}"
func (r *Route) Name() string {
	return string(r.Method) + " " + r.Address.Template()
}

// Table is an ordered list of routes. It is filled before the server
// starts and only read afterwards, so lookups need no locking.
type Table struct {
	routes []*Route
}

// NewTable creates an empty route table
func NewTable() *Table {
	return &Table{}
}

// Add compiles template and appends the route
func (t *Table) Add(method http.Method, template string, handler http.Handler) error {
	if handler == nil {
		return fmt.Errorf("nil handler for %s %s", method, template)
	}

	addr, err := Compile(template)
	if err != nil {
		return err
	}

	t.AddRoute(&Route{
		Method:  method,
		Address: addr,
		Handler: handler,
	})
	return nil
}

// AddRoute appends an already compiled route
func (t *Table) AddRoute(route *Route) {
	t.routes = append(t.routes, route)
}

// Len returns the number of registered routes
func (t *Table) Len() int {
	return len(t.routes)
}

// Routes returns the registered routes in order
func (t *Table) Routes() []*Route {
	return append([]*Route(nil), t.routes...)
}

// Match finds the first route, in registration order, whose address
// matches path and whose method equals method. ErrNotFound means no
// address matched; ErrMethodNotAllowed means some did, with other methods.
func (t *Table) Match(method http.Method, path string) (*Route, map[string]string, error) {
	pathMatched := false

	for _, route := range t.routes {
		if !route.Address.Match(path) {
			continue
		}
		pathMatched = true

		if route.Method != method {
			continue
		}

		params, err := route.Address.Extract(path)
		if err != nil {
			return nil, nil, err
		}
		return route, params, nil
	}

	if pathMatched {
		return nil, nil, ErrMethodNotAllowed
	}
	return nil, nil, ErrNotFound
}
