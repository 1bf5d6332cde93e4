package http

import (
	"io"
	"strconv"

	"github.com/searchktools/rawhttp/core/codec"
	"github.com/searchktools/rawhttp/core/pools"
	"google.golang.org/protobuf/proto"
)

// Response is built by a handler and encoded exactly once.
type Response struct {
	Status  int
	Headers []Header
	Body    []byte
}

// NewResponse creates an empty response with the given status
func NewResponse(status int) *Response {
	return &Response{Status: status}
}

// AddHeader appends a header; existing headers with the same name are kept.
func (r *Response) AddHeader(name, value string) *Response {
	r.Headers = append(r.Headers, Header{Name: name, Value: value})
	return r
}

// Header returns the first response header named exactly name
func (r *Response) Header(name string) string {
	for _, h := range r.Headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}

// SetBody sets a raw body without touching headers
func (r *Response) SetBody(body []byte) *Response {
	r.Body = body
	return r
}

// Encode serializes v with c as the body. On encode failure the status
// becomes 500 and the body is dropped. Content-Length is only added for a
// non-empty body.
func (r *Response) Encode(c codec.Codec, v any) *Response {
	r.AddHeader(HeaderContentType, c.ContentType())

	data, err := c.Encode(v)
	if err != nil {
		r.Status = StatusInternalServerError
		r.Body = nil
	} else {
		r.Body = data
	}

	if len(r.Body) > 0 {
		r.AddHeader(HeaderContentLength, strconv.Itoa(len(r.Body)))
	}
	return r
}

// JSON sends v as a JSON body
func (r *Response) JSON(v any) *Response {
	return r.Encode(codec.JSON, v)
}

// Proto sends msg as a protobuf body
func (r *Response) Proto(msg proto.Message) *Response {
	return r.Encode(codec.Protobuf, msg)
}

// WriteTo writes the status line, headers and body to w.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	buf := pools.AcquireBuffer(r.estimateSize())
	defer pools.ReleaseBuffer(buf)

	*buf = r.appendTo(*buf)
	n, err := w.Write(*buf)
	return int64(n), err
}

// Bytes returns the wire encoding of the response
func (r *Response) Bytes() []byte {
	return r.appendTo(make([]byte, 0, r.estimateSize()))
}

func (r *Response) estimateSize() int {
	n := 32 + len(r.Body)
	for _, h := range r.Headers {
		n += len(h.Name) + len(h.Value) + 4
	}
	return n
}

func (r *Response) appendTo(b []byte) []byte {
	b = append(b, "HTTP/1.1 "...)
	b = appendInt(b, r.Status)
	b = append(b, ' ')
	b = append(b, StatusText(r.Status)...)
	b = append(b, "\r\n"...)

	for _, h := range r.Headers {
		b = append(b, h.Name...)
		b = append(b, ": "...)
		b = append(b, h.Value...)
		b = append(b, "\r\n"...)
	}

	b = append(b, "\r\n"...)
	return append(b, r.Body...)
}

// appendInt appends a non-negative integer to a byte slice
func appendInt(b []byte, i int) []byte {
	if i <= 0 {
		return append(b, '0')
	}

	var digits [20]byte
	n := 0
	for i > 0 {
		digits[n] = byte('0' + i%10)
		i /= 10
		n++
	}

	for n > 0 {
		n--
		b = append(b, digits[n])
	}

	return b
}
