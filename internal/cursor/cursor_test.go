package cursor

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := NewCodec("test-secret")
	ts := time.Date(2025, 6, 1, 12, 30, 45, 123456000, time.UTC)

	token := codec.Encode(ts, "item-abc")

	gotTS, gotID, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("Decode() unexpected error: %v", err)
	}
	if !gotTS.Equal(ts) {
		t.Errorf("Decode() ts = %v, want %v", gotTS, ts)
	}
	if gotID != "item-abc" {
		t.Errorf("Decode() id = %q, want %q", gotID, "item-abc")
	}
}

func TestDecodeEmptyItemID(t *testing.T) {
	codec := NewCodec("test-secret")
	ts := time.Now().UTC().Truncate(time.Microsecond)

	gotTS, gotID, err := codec.Decode(codec.Encode(ts, ""))
	if err != nil {
		t.Fatalf("Decode() unexpected error: %v", err)
	}
	if !gotTS.Equal(ts) || gotID != "" {
		t.Errorf("Decode() = (%v, %q), want (%v, %q)", gotTS, gotID, ts, "")
	}
}

func TestDecodeMalformedBase64(t *testing.T) {
	codec := NewCodec("test-secret")

	_, _, err := codec.Decode("not%%%base64")
	if !errors.Is(err, ErrInvalidCursor) {
		t.Errorf("Decode() error = %v, want ErrInvalidCursor", err)
	}
}

func TestDecodeTruncatedToken(t *testing.T) {
	codec := NewCodec("test-secret")

	short := base64.RawURLEncoding.EncodeToString([]byte("tiny"))
	_, _, err := codec.Decode(short)
	if !errors.Is(err, ErrInvalidCursor) {
		t.Errorf("Decode() error = %v, want ErrInvalidCursor", err)
	}
}

func TestDecodeTamperedToken(t *testing.T) {
	codec := NewCodec("test-secret")
	token := codec.Encode(time.Now().UTC(), "item-abc")

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("decoding token: %v", err)
	}
	raw[9] ^= 0xff // flip a bit inside the item id
	tampered := base64.RawURLEncoding.EncodeToString(raw)

	_, _, err = codec.Decode(tampered)
	if !errors.Is(err, ErrInvalidCursor) {
		t.Errorf("Decode() error = %v, want ErrInvalidCursor", err)
	}
}

func TestDecodeWrongSecret(t *testing.T) {
	token := NewCodec("secret-one").Encode(time.Now().UTC(), "item-abc")

	_, _, err := NewCodec("secret-two").Decode(token)
	if !errors.Is(err, ErrInvalidCursor) {
		t.Errorf("Decode() error = %v, want ErrInvalidCursor", err)
	}
}
