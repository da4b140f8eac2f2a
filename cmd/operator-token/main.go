package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"campaign-payments/internal/config"
	"campaign-payments/internal/middleware"
)

// operator-token mints a bearer token for the operator API
func main() {
	operatorID := flag.String("operator", "", "operator ID (campaign owner)")
	role := flag.String("role", "", "operator role, \"admin\" to sweep every campaign")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *operatorID == "" {
		log.Fatal("-operator is required")
	}

	if err := config.InitConfig(); err != nil {
		log.Fatal("Failed to initialize config:", err)
	}

	token, err := middleware.IssueOperatorToken(config.AppConfig.OperatorJWTSecret, *operatorID, *role, *ttl)
	if err != nil {
		log.Fatal("Failed to issue token:", err)
	}
	fmt.Println(token)
}
