package http

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// DefaultMaxBodyBytes caps Content-Length unless a Parser says otherwise.
const DefaultMaxBodyBytes = 10 << 20

// maxBodyPrealloc caps the body buffer allocated before any byte arrives
const maxBodyPrealloc = 64 << 10

// Decode error kinds. Every error returned by the parser matches exactly
// one of them with errors.Is.
var (
	ErrRequestLine = errors.New("invalid request line")
	ErrMethod      = errors.New("invalid method")
	ErrVersion     = errors.New("invalid version")
	ErrURI         = errors.New("invalid uri")
	ErrHeaders     = errors.New("invalid headers")
	ErrBody        = errors.New("invalid body")
)

// ParseError reports why a request could not be decoded.
type ParseError struct {
	Kind error  // one of the Err* kinds above
	Err  error  // underlying cause, may be nil
	Text string // offending input, may be empty
}

func (e *ParseError) Error() string {
	msg := e.Kind.Error()
	if e.Text != "" {
		msg += fmt.Sprintf(" %q", e.Text)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func parseErr(kind error, text string, cause error) *ParseError {
	return &ParseError{Kind: kind, Err: cause, Text: text}
}

// reserved characters rejected anywhere in the request target
const invalidURIChars = "\"<>[]\\^`{|}"

// Parser decodes one request from a byte stream.
type Parser struct {
	// MaxBodyBytes rejects larger Content-Length values; 0 disables the check.
	MaxBodyBytes int64
}

// NewParser creates a parser with default limits
func NewParser() *Parser {
	return &Parser{MaxBodyBytes: DefaultMaxBodyBytes}
}

var defaultParser = NewParser()

// ReadRequest decodes a request with the default parser.
func ReadRequest(r io.Reader) (*Request, error) {
	return defaultParser.Parse(r)
}

// Parse reads a request line, headers and a Content-Length framed body.
// The reader is consumed up to the end of the body; with an empty body
// nothing after the header block is read by the caller-visible request.
func (p *Parser) Parse(r io.Reader) (*Request, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}

	line, err := br.ReadString('\n')
	if err != nil && line == "" {
		return nil, parseErr(ErrRequestLine, "", err)
	}

	req, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}

	contentLength, err := p.parseHeaders(br, req)
	if err != nil {
		return nil, err
	}

	if contentLength == 0 {
		return req, nil
	}
	if p.MaxBodyBytes > 0 && contentLength > uint64(p.MaxBodyBytes) {
		return nil, parseErr(ErrBody, "", fmt.Errorf("content length %d exceeds limit %d", contentLength, p.MaxBodyBytes))
	}

	// Memory follows the bytes received, not the declared length
	var body bytes.Buffer
	body.Grow(int(min(contentLength, maxBodyPrealloc)))
	if n, err := io.CopyN(&body, br, int64(contentLength)); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, parseErr(ErrBody, "", fmt.Errorf("read %d of %d bytes: %w", n, contentLength, err))
	}
	if !utf8.Valid(body.Bytes()) {
		return nil, parseErr(ErrBody, "", errors.New("body is not valid utf-8"))
	}
	req.Body = body.Bytes()

	return req, nil
}

// parseRequestLine parses METHOD TARGET VERSION
func parseRequestLine(line string) (*Request, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, parseErr(ErrMethod, "", nil)
	}
	if len(fields) < 2 {
		return nil, parseErr(ErrURI, "", nil)
	}

	target := fields[1]
	if strings.ContainsAny(target, invalidURIChars) || target[0] != '/' {
		return nil, parseErr(ErrURI, target, nil)
	}

	if len(fields) < 3 {
		return nil, parseErr(ErrVersion, "", nil)
	}
	if len(fields) > 3 {
		return nil, parseErr(ErrRequestLine, strings.TrimSpace(line), nil)
	}

	method, ok := parseMethod(fields[0])
	if !ok {
		return nil, parseErr(ErrMethod, fields[0], nil)
	}
	version, ok := parseVersion(fields[2])
	if !ok {
		return nil, parseErr(ErrVersion, fields[2], nil)
	}

	req := &Request{
		Method:  method,
		Version: version,
	}
	req.Path, req.RawQuery, _ = strings.Cut(target, "?")
	req.Query = parseQuery(req.RawQuery)

	return req, nil
}

// parseHeaders reads header lines up to the blank line and returns the
// numeric Content-Length, or 0.
func (p *Parser) parseHeaders(br *bufio.Reader, req *Request) (uint64, error) {
	var contentLength uint64

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return 0, parseErr(ErrHeaders, "", err)
		}
		if line == "\r\n" {
			break
		}

		name, value, ok := strings.Cut(strings.TrimRight(line, " \t\r\n"), ": ")
		if !ok {
			return 0, parseErr(ErrHeaders, strings.TrimSpace(line), nil)
		}

		if name == HeaderContentLength {
			if n, err := strconv.ParseUint(value, 10, 63); err == nil {
				contentLength = n
			}
		}

		req.Headers = append(req.Headers, Header{Name: name, Value: value})
	}

	return contentLength, nil
}

// parseQuery parses query parameters
func parseQuery(raw string) map[string]string {
	query := make(map[string]string)
	if raw == "" {
		return query
	}

	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		query[key] = value
	}

	return query
}
