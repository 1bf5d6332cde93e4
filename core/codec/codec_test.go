package codec

import (
	"errors"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestJSONCodec(t *testing.T) {
	type animal struct {
		Name string `json:"name"`
		ID   int    `json:"id"`
	}

	original := &animal{Name: "Dog", ID: 1}

	data, err := JSON.Encode(original)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if string(data) != `{"name":"Dog","id":1}` {
		t.Errorf("Unexpected encoding %s", data)
	}

	decoded := &animal{}
	if err := JSON.Decode(data, decoded); err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if *decoded != *original {
		t.Errorf("Mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestJSONCodecUnsupportedValue(t *testing.T) {
	if _, err := JSON.Encode(make(chan int)); err == nil {
		t.Error("Expected error encoding a channel")
	}
}

func TestProtobufCodec(t *testing.T) {
	original := wrapperspb.Int32(42)

	data, err := Protobuf.Encode(original)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}

	decoded := &wrapperspb.Int32Value{}
	if err := Protobuf.Decode(data, decoded); err != nil {
		t.Fatalf("Decode error: %v", err)
	}

	if !proto.Equal(decoded, original) {
		t.Errorf("Mismatch: got %d, want %d", decoded.Value, original.Value)
	}
}

func TestProtobufCodecInvalidType(t *testing.T) {
	if _, err := Protobuf.Encode("not a proto message"); err == nil {
		t.Error("Expected error for non-proto message")
	}
	if err := Protobuf.Decode(nil, &struct{}{}); err == nil {
		t.Error("Expected error decoding into non-proto value")
	}
}

func TestForContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        Codec
		wantErr     error
	}{
		{"application/json", JSON, nil},
		{"application/json; charset=utf-8", JSON, nil},
		{"application/x-protobuf", Protobuf, nil},
		{"application/protobuf", Protobuf, nil},
		{"text/plain", nil, ErrUnsupportedCodec},
		{"", nil, ErrUnsupportedCodec},
	}

	for _, tt := range tests {
		got, err := ForContentType(tt.contentType)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%q: expected error %v, got %v", tt.contentType, tt.wantErr, err)
		}
		if got != tt.want {
			t.Errorf("%q: expected codec %v, got %v", tt.contentType, tt.want, got)
		}
	}
}

func BenchmarkJSONEncode(b *testing.B) {
	data := map[string]any{
		"name": "Dog",
		"id":   1,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = JSON.Encode(data)
	}
}

func BenchmarkProtobufEncode(b *testing.B) {
	msg := wrapperspb.String("Dog")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Protobuf.Encode(msg)
	}
}
