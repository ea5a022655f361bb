// Command portaltoken mints HS256 bearer tokens accepted by the portal API.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"finitefield.org/portal/internal/portal/config"
	"finitefield.org/portal/internal/portal/httpserver/middleware"
)

func main() {
	var (
		subject string
		email   string
		name    string
		roles   string
		ttl     time.Duration
	)
	flag.StringVar(&subject, "sub", "", "user ID placed in the token subject (required)")
	flag.StringVar(&email, "email", "", "email claim")
	flag.StringVar(&name, "name", "", "display name claim")
	flag.StringVar(&roles, "roles", "member", "comma-separated roles")
	flag.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fail("load config: %v", err)
	}
	if cfg.Auth.JWTSecret == "" {
		fail("PORTAL_JWT_SECRET is not set")
	}
	if strings.TrimSpace(subject) == "" {
		flag.Usage()
		os.Exit(2)
	}

	signer, err := middleware.NewJWTAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	if err != nil {
		fail("jwt: %v", err)
	}
	token, err := signer.Sign(middleware.User{
		UID:   subject,
		Email: email,
		Name:  name,
		Roles: splitRoles(roles),
	}, ttl)
	if err != nil {
		fail("sign: %v", err)
	}
	fmt.Println(token)
}

func splitRoles(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "portaltoken: "+format+"\n", args...)
	os.Exit(1)
}
