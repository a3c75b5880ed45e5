package session

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"
)

func TestDecodeExpiry(t *testing.T) {
	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	got, err := DecodeExpiry(mustToken(t, exp))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !got.Equal(exp) {
		t.Fatalf("expected %s, got %s", exp, got)
	}
}

func TestDecodeExpiryUnsignedPayload(t *testing.T) {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"exp":1}`))
	got, err := DecodeExpiry(header + "." + payload + ".")
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if got.Unix() != 1 {
		t.Fatalf("expected exp 1, got %d", got.Unix())
	}
}

func TestDecodeExpiryErrors(t *testing.T) {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256"}`))
	noExp := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"x"}`))
	cases := map[string]string{
		"empty":       "",
		"one segment": "abc",
		"bad base64":  header + ".%%%.sig",
		"not json":    header + "." + base64.RawURLEncoding.EncodeToString([]byte("nope")) + ".sig",
		"missing exp": header + "." + noExp + ".sig",
	}
	for name, token := range cases {
		_, err := DecodeExpiry(token)
		var decodeErr *DecodeError
		if !errors.As(err, &decodeErr) {
			t.Fatalf("%s: expected DecodeError, got %v", name, err)
		}
		if !Expired(token, time.Now()) {
			t.Fatalf("%s: expected undecodable token to count as expired", name)
		}
	}
}

func TestExpiredBoundary(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	if Expired(mustToken(t, now), now) {
		t.Fatalf("expected token expiring now to still be valid")
	}
	if !Expired(mustToken(t, now.Add(-time.Second)), now) {
		t.Fatalf("expected past token to be expired")
	}
	if Expired(mustToken(t, now.Add(time.Minute)), now) {
		t.Fatalf("expected future token to be valid")
	}
}

func TestRoleGate(t *testing.T) {
	if !RoleAdmin.CanSignIn() || !RoleTeacher.CanSignIn() {
		t.Fatalf("expected admin and teacher to sign in")
	}
	if RoleStudent.CanSignIn() || Role("dev").CanSignIn() {
		t.Fatalf("expected other roles to be rejected")
	}
	if RoleTeacher.Label() != "Profesor" {
		t.Fatalf("unexpected label %s", RoleTeacher.Label())
	}
}
