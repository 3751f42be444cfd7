package id

import (
	"encoding/base32"
	"strings"
	"testing"
)

func TestNewIDIsLowercaseBase32UUIDv4(t *testing.T) {
	seen := map[string]bool{}
	for range 50 {
		id, err := NewID()
		if err != nil {
			t.Fatalf("new id: %v", err)
		}
		if len(id) != 26 || id != strings.ToLower(id) {
			t.Fatalf("id = %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true

		raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(id))
		if err != nil || len(raw) != 16 {
			t.Fatalf("decode %q: %d bytes, %v", id, len(raw), err)
		}
		if raw[6]>>4 != 4 || raw[8]&0xC0 != 0x80 {
			t.Fatalf("id %q is not a version 4 UUID", id)
		}
	}
}

func TestSequenceIsDeterministic(t *testing.T) {
	next := Sequence("eff")
	first, _ := next()
	second, _ := next()
	if first != "eff-1" || second != "eff-2" {
		t.Fatalf("sequence = %q, %q", first, second)
	}
	if other, _ := Sequence("eff")(); other != "eff-1" {
		t.Fatalf("fresh sequence = %q", other)
	}
}
