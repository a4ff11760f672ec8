// Test program to generate access tokens for local API calls
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/relayworks/server/internal/auth"
	"github.com/relayworks/server/internal/tenant"
)

func main() {
	userID := flag.String("user", "dev-user", "user id claim")
	tenantID := flag.String("tenant", "dev-tenant", "tenant id claim")
	role := flag.String("role", tenant.RoleOwner, "role claim")
	email := flag.String("email", "dev@localhost", "email claim")
	expiry := flag.Duration("expiry", time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "Error: JWT_SECRET is not set")
		os.Exit(1)
	}

	manager := auth.NewJWTManager(secret, *expiry, "relayworks")
	token, err := manager.Generate(*userID, *tenantID, *role, *email)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Access token:")
	fmt.Println(token)
	fmt.Println("\nTest with:")
	fmt.Printf("curl -H 'Authorization: Bearer %s' http://localhost:8080/api/v1/projects\n", token)
}
