// Package main provides a one-shot utility for session-grant key generation.
//
// It emits the asymmetric keypair used to sign and verify session grants.
package main

import (
	"log"
	"os"

	"github.com/squadforge/squadforge/internal/tools/sessiongrant"
)

func main() {
	if err := sessiongrant.Run(os.Stdout, nil); err != nil {
		log.Fatalf("generate session grant key: %v", err)
	}
}
