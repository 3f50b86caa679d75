package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	addr, err := NewAddress(GiftPrefix, raw)
	if err != nil {
		t.Fatalf("new address: %v", err)
	}
	encoded := addr.String()
	if !strings.HasPrefix(encoded, string(GiftPrefix)+"1") {
		t.Fatalf("encoded address %q missing %q prefix", encoded, GiftPrefix)
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Prefix() != GiftPrefix {
		t.Fatalf("decoded prefix %q", decoded.Prefix())
	}
	if !bytes.Equal(decoded.Bytes(), raw) {
		t.Fatalf("decoded payload mismatch: %x", decoded.Bytes())
	}
}

func TestNewAddressRejectsBadLength(t *testing.T) {
	if _, err := NewAddress(GiftPrefix, make([]byte, 19)); err == nil {
		t.Fatal("expected length error for 19 bytes")
	}
	if _, err := NewAddress(GiftPrefix, nil); err == nil {
		t.Fatal("expected length error for nil payload")
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "gft1", "not-bech32", "gft1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqzzzzzz"} {
		if _, err := DecodeAddress(input); err == nil {
			t.Fatalf("expected decode error for %q", input)
		}
	}
}

func TestIsZero(t *testing.T) {
	zero := MustNewAddress(GiftPrefix, make([]byte, 20))
	if !zero.IsZero() {
		t.Fatal("all-zero payload must report IsZero")
	}
	raw := make([]byte, 20)
	raw[19] = 0x01
	if MustNewAddress(GiftPrefix, raw).IsZero() {
		t.Fatal("non-zero payload must not report IsZero")
	}
	if !(Address{}).IsZero() {
		t.Fatal("zero-value Address must report IsZero")
	}
}
