package auth

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCheckPassword(t *testing.T) {
	BcryptCost = bcrypt.MinCost
	t.Cleanup(func() { BcryptCost = 12 })

	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if !CheckPassword(hash, "correct horse battery") {
		t.Fatal("expected password to match")
	}
	if CheckPassword(hash, "wrong password") {
		t.Fatal("expected mismatch")
	}
	if CheckPassword("not-a-hash", "correct horse battery") {
		t.Fatal("expected malformed hash to fail")
	}
}

func TestHashPasswordTooShort(t *testing.T) {
	if _, err := HashPassword("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
}

func TestNormalizeRole(t *testing.T) {
	cases := map[string]Role{
		"admin":   RoleAdmin,
		" ADMIN ": RoleAdmin,
		"user":    RoleUser,
		"editor":  RoleUser,
		"":        RoleUser,
	}
	for input, want := range cases {
		if got := NormalizeRole(input); got != want {
			t.Fatalf("NormalizeRole(%q) = %q, want %q", input, got, want)
		}
	}
	if !IsAdmin("admin") || !IsAdmin(" Admin") || IsAdmin("user") || IsAdmin("root") {
		t.Fatal("IsAdmin mismatch")
	}
	if !RoleAdmin.AtLeast(RoleUser) || RoleUser.AtLeast(RoleAdmin) {
		t.Fatal("AtLeast mismatch")
	}
}
