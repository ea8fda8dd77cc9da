package crypto

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func testKey() string {
	return base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
}

func TestSealOpen(t *testing.T) {
	s, err := NewSealer(testKey())
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}

	a, err := s.Seal("ya29.token")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	b, _ := s.Seal("ya29.token")
	if a == b {
		t.Error("expected distinct ciphertexts for the same plaintext")
	}

	got, err := s.Open(a)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != "ya29.token" {
		t.Errorf("got %q", got)
	}
}

func TestSealEmpty(t *testing.T) {
	s, _ := NewSealer(testKey())
	if out, _ := s.Seal(""); out != "" {
		t.Errorf("expected empty output, got %q", out)
	}
	if out, _ := s.Open(""); out != "" {
		t.Errorf("expected empty output, got %q", out)
	}
}

func TestParseKey(t *testing.T) {
	if _, err := ParseKey(""); err == nil {
		t.Error("expected error for empty key")
	}
	if _, err := ParseKey(base64.StdEncoding.EncodeToString([]byte("short"))); err == nil {
		t.Error("expected error for short key")
	}
	if _, err := ParseKey("%%%"); err == nil {
		t.Error("expected error for invalid base64")
	}
}

func TestOpenShort(t *testing.T) {
	s, _ := NewSealer(testKey())
	_, err := s.Open(base64.StdEncoding.EncodeToString([]byte{1, 2}))
	if !errors.Is(err, ErrShortCiphertext) {
		t.Errorf("expected ErrShortCiphertext, got %v", err)
	}
}
