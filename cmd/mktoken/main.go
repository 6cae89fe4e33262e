package main

import (
	"flag"
	"fmt"
	"os"

	jwttoken "custos/internal/jwt_token"
	"custos/internal/platform/config"
	"custos/pkg/domain"
)

// mktoken signs a bearer token for one authority principal using the same
// configuration the server reads. Meant for smoke tests and local
// development; production tokens come from the platform identity provider.
func main() {
	principal := flag.String("principal", "", "authority key (UUID) the token identifies")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	key, err := domain.ParseAuthorityKey(*principal)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid -principal:", err)
		os.Exit(2)
	}

	svc := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	token, err := svc.GenerateAccessToken(key, cfg.JWTTTL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign token:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
