package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateSecret generates a cryptographically secure random secret
func GenerateSecret(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ServiceSecrets are the secrets a fresh deployment needs
type ServiceSecrets struct {
	JWTSecret     string // verifies bearer tokens from the auth service
	SandboxSecret string // signs sandbox checkout callbacks
}

// GenerateServiceSecrets generates independent 256-bit secrets
func GenerateServiceSecrets() (*ServiceSecrets, error) {
	jwtSecret, err := GenerateSecret(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
	}

	sandboxSecret, err := GenerateSecret(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate sandbox secret: %w", err)
	}

	return &ServiceSecrets{JWTSecret: jwtSecret, SandboxSecret: sandboxSecret}, nil
}
