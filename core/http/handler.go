package http

// Handler turns a request into a response. A single Handler value is
// shared by every dispatch of its route and must be safe for concurrent use.
type Handler interface {
	Serve(req *Request) *Response
}

// HandlerFunc adapts an ordinary function to Handler
type HandlerFunc func(req *Request) *Response

// Serve calls f(req)
func (f HandlerFunc) Serve(req *Request) *Response {
	return f(req)
}
