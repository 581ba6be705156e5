package auth_test

import (
	"testing"
	"time"

	"reqdesk/core/auth"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	ph, err := auth.HashPassword("correct horse battery", "pepper")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	ok, err := auth.VerifyPassword("correct horse battery", "pepper", ph)
	if err != nil || !ok {
		t.Fatalf("verify: ok=%v err=%v", ok, err)
	}
	ok, err = auth.VerifyPassword("wrong", "pepper", ph)
	if err != nil || ok {
		t.Fatalf("wrong password verified")
	}
	ok, err = auth.VerifyPassword("correct horse battery", "other-pepper", ph)
	if err != nil || ok {
		t.Fatalf("pepper ignored")
	}
}

func TestPasswordHashUniquePerSalt(t *testing.T) {
	a, _ := auth.HashPassword("same input", "pepper")
	b, _ := auth.HashPassword("same input", "pepper")
	if a.Hash == b.Hash || a.Salt == b.Salt {
		t.Fatalf("two hashes of the same input share salt or digest")
	}
}

func TestParsePasswordHashRejectsEmpty(t *testing.T) {
	if _, err := auth.ParsePasswordHash("", "salt"); err == nil {
		t.Fatalf("empty hash accepted")
	}
	if _, err := auth.ParsePasswordHash("hash", ""); err == nil {
		t.Fatalf("empty salt accepted")
	}
}

func TestCSRFTokenRoundTrip(t *testing.T) {
	token, err := auth.GenerateCSRF("secret", "session-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if ok, err := auth.VerifyCSRF("secret", token, time.Hour); err != nil || !ok {
		t.Fatalf("fresh token rejected: ok=%v err=%v", ok, err)
	}
	if ok, _ := auth.VerifyCSRF("other-secret", token, time.Hour); ok {
		t.Fatalf("token verified under wrong secret")
	}
	if ok, _ := auth.VerifyCSRF("secret", token+"x", time.Hour); ok {
		t.Fatalf("tampered token verified")
	}
}
