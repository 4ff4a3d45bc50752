// Command gentoken mints a JWT for local testing, signed with JWT_SECRET_KEY.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/unisphere-campus/server/internal/auth"
)

func main() {
	userID := flag.Int64("user-id", 1, "subject user id")
	role := flag.String("role", string(auth.RoleAdmin), "role claim (admin or user)")
	tokenType := flag.String("type", auth.TokenTypeAccess, "token type (access or refresh)")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	issuer := flag.String("issuer", "unisphere", "issuer claim")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET_KEY")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "Error: JWT_SECRET_KEY must be set")
		os.Exit(1)
	}

	manager := auth.NewJWTManager(secret, *ttl, *ttl, *issuer)
	token, claims, err := manager.Generate(*userID, *role, *tokenType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("JWT Token:")
	fmt.Println(token)
	fmt.Printf("\nExpires: %s\n", claims.ExpiresAt.Time.Format(time.RFC3339))
	fmt.Println("\nTest with:")
	fmt.Printf("curl -H 'Authorization: Bearer %s' http://localhost:8080/api/v1/auth/profile\n", token)
}
