package http

import (
	"bytes"
	"errors"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestResponseEncodeEmpty(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{StatusOK, "HTTP/1.1 200 OK\r\n\r\n"},
		{StatusBadRequest, "HTTP/1.1 400 Bad Request\r\n\r\n"},
		{StatusNotFound, "HTTP/1.1 404 Not Found\r\n\r\n"},
		{StatusMethodNotAllowed, "HTTP/1.1 405 Method Not Allowed\r\n\r\n"},
		{StatusInternalServerError, "HTTP/1.1 500 Internal Server Error\r\n\r\n"},
		{599, "HTTP/1.1 599 Unknown\r\n\r\n"},
	}

	for _, tt := range tests {
		if got := string(NewResponse(tt.status).Bytes()); got != tt.want {
			t.Errorf("status %d: expected %q, got %q", tt.status, tt.want, got)
		}
	}
}

func TestResponseHeaderOrder(t *testing.T) {
	resp := NewResponse(StatusCreated).
		AddHeader("X-B", "2").
		AddHeader("X-A", "1").
		AddHeader("X-B", "3").
		SetBody([]byte("done"))

	want := "HTTP/1.1 201 Created\r\nX-B: 2\r\nX-A: 1\r\nX-B: 3\r\n\r\ndone"

	var buf bytes.Buffer
	n, err := resp.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if buf.String() != want {
		t.Errorf("Expected %q, got %q", want, buf.String())
	}
	if n != int64(len(want)) {
		t.Errorf("Expected %d bytes written, got %d", len(want), n)
	}
	if string(resp.Bytes()) != want {
		t.Errorf("Bytes and WriteTo disagree: %q", resp.Bytes())
	}
	if resp.Header("X-B") != "2" {
		t.Errorf("Header should return the first value, got %q", resp.Header("X-B"))
	}
}

func TestResponseJSON(t *testing.T) {
	resp := NewResponse(StatusOK).JSON(map[string]string{"name": "Dog"})

	want := "HTTP/1.1 200 OK\r\n" +
		"Content-Type: application/json; charset=utf-8\r\n" +
		"Content-Length: 14\r\n" +
		"\r\n" +
		`{"name":"Dog"}`
	if got := string(resp.Bytes()); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestResponseJSONFailure(t *testing.T) {
	resp := NewResponse(StatusOK).SetBody([]byte("stale")).JSON(func() {})

	if resp.Status != StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", resp.Status)
	}
	if len(resp.Body) != 0 {
		t.Errorf("Expected body dropped, got %q", resp.Body)
	}
	if resp.Header(HeaderContentLength) != "" {
		t.Error("Content-Length must not be set for an empty body")
	}
	if resp.Header(HeaderContentType) == "" {
		t.Error("Content-Type should still be set")
	}
}

func TestResponseProto(t *testing.T) {
	msg, err := structpb.NewStruct(map[string]any{"name": "Cat"})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}

	resp := NewResponse(StatusOK).Proto(msg)
	if resp.Header(HeaderContentType) != "application/x-protobuf" {
		t.Errorf("Unexpected content type %q", resp.Header(HeaderContentType))
	}

	decoded := &structpb.Struct{}
	if err := proto.Unmarshal(resp.Body, decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !proto.Equal(decoded, msg) {
		t.Errorf("Expected %v, got %v", msg, decoded)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestResponseWriteError(t *testing.T) {
	if _, err := NewResponse(StatusOK).WriteTo(failingWriter{}); err == nil {
		t.Error("Expected write error to propagate")
	}
}

func TestHandlerFunc(t *testing.T) {
	var h Handler = HandlerFunc(func(req *Request) *Response {
		return NewResponse(StatusOK).SetBody([]byte(req.Path))
	})

	resp := h.Serve(&Request{Path: "/echo"})
	if string(resp.Body) != "/echo" {
		t.Errorf("Expected /echo, got %q", resp.Body)
	}
}

func BenchmarkResponseJSON(b *testing.B) {
	data := map[string]string{"name": "Dog"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		NewResponse(StatusOK).JSON(data).WriteTo(&bytes.Buffer{})
	}
}
