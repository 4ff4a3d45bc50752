package auth

import (
	"errors"
	"testing"
	"time"
)

func TestJWTGenerateValidate(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, 24*time.Hour, "issuer")
	jwtToken, issued, err := manager.Generate(42, "admin", TokenTypeAccess)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := manager.Validate(jwtToken, TokenTypeAccess)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Subject != "42" || claims.Role != "admin" || claims.ID != issued.ID {
		t.Fatalf("unexpected claims: %#v", claims)
	}
	userID, err := claims.UserID()
	if err != nil || userID != 42 {
		t.Fatalf("expected user id 42, got %d err %v", userID, err)
	}
}

func TestJWTTokenTypeMismatch(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, 24*time.Hour, "issuer")
	pair, err := manager.GeneratePair(7, "user")
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}
	if pair.TokenType != BearerTokenType {
		t.Fatalf("expected bearer token type, got %q", pair.TokenType)
	}
	if _, err := manager.Validate(pair.RefreshToken, TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token accepted as access token: %v", err)
	}
	if _, err := manager.Validate(pair.AccessToken, TokenTypeRefresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token accepted as refresh token: %v", err)
	}
	if !pair.RefreshExpiresAt.After(pair.AccessExpiresAt) {
		t.Fatalf("refresh token should outlive access token")
	}
}

func TestJWTUniqueIDs(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, 24*time.Hour, "issuer")
	_, first, _ := manager.Generate(1, "user", TokenTypeAccess)
	_, second, _ := manager.Generate(1, "user", TokenTypeAccess)
	if first.ID == second.ID {
		t.Fatalf("expected distinct jti values, got %s twice", first.ID)
	}
}

func TestJWTExpired(t *testing.T) {
	manager := NewJWTManager("secret", time.Minute, time.Hour, "issuer")
	manager.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	token, _, err := manager.Generate(1, "user", TokenTypeAccess)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	manager.now = time.Now
	if _, err := manager.Validate(token, TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestJWTWrongSecretOrIssuer(t *testing.T) {
	issuer := NewJWTManager("secret", time.Hour, time.Hour, "issuer")
	token, _, err := issuer.Generate(1, "user", TokenTypeAccess)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := NewJWTManager("other", time.Hour, time.Hour, "issuer").Validate(token, TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected wrong secret to fail, got %v", err)
	}
	if _, err := NewJWTManager("secret", time.Hour, time.Hour, "elsewhere").Validate(token, TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected wrong issuer to fail, got %v", err)
	}
}

func TestJWTGenerateInvalid(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, time.Hour, "issuer")
	if _, _, err := manager.Generate(0, "admin", TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
	if _, _, err := manager.Generate(1, "admin", "session"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token error for unknown type, got %v", err)
	}
}

func TestJWTValidateMissing(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, time.Hour, "issuer")
	if _, err := manager.Validate("", TokenTypeAccess); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestTokenFromHeader(t *testing.T) {
	if _, err := TokenFromHeader("nope"); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
	if token, err := TokenFromHeader("Bearer token"); err != nil || token != "token" {
		t.Fatalf("expected token, got %s err %v", token, err)
	}
}
