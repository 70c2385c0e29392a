package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrEmptyRef indicates a gateway reference is empty
	ErrEmptyRef = errors.New("gateway reference cannot be empty")

	// ErrRefTooLong indicates a gateway reference exceeds MaxRefLength
	ErrRefTooLong = errors.New("gateway reference is too long")

	// ErrInvalidRefFormat indicates a gateway reference contains invalid characters
	ErrInvalidRefFormat = errors.New("gateway reference can only contain letters, digits and underscores")

	// ErrInvalidSignature indicates a signature is not a hex SHA-256 digest
	ErrInvalidSignature = errors.New("signature must be 64 hexadecimal characters")
)

// MaxRefLength bounds order and payment ids accepted from clients
const MaxRefLength = 64

// RefKind is the type of id the payment provider hands out
type RefKind string

const (
	RefOrder   RefKind = "order"
	RefPayment RefKind = "payment"
)

var (
	refRegex       = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	signatureRegex = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

// GatewayRefValidator checks the ids and signature a checkout client echoes back
type GatewayRefValidator struct{}

// NewGatewayRefValidator creates a new validator instance
func NewGatewayRefValidator() *GatewayRefValidator {
	return &GatewayRefValidator{}
}

// Validate sanitizes and checks an order or payment id.
// Returns the trimmed value, or an error wrapping one of the Err* values.
func (v *GatewayRefValidator) Validate(kind RefKind, ref string) (string, error) {
	sanitized := v.Sanitize(ref)
	if sanitized == "" {
		return "", fmt.Errorf("%s id: %w", kind, ErrEmptyRef)
	}
	if len(sanitized) > MaxRefLength {
		return "", fmt.Errorf("%s id: %w", kind, ErrRefTooLong)
	}
	if !refRegex.MatchString(sanitized) {
		return "", fmt.Errorf("%s id: %w", kind, ErrInvalidRefFormat)
	}
	return sanitized, nil
}

// ValidateSignature lower-cases and checks a callback signature
func (v *GatewayRefValidator) ValidateSignature(signature string) (string, error) {
	sanitized := strings.ToLower(v.Sanitize(signature))
	if sanitized == "" {
		return "", fmt.Errorf("signature: %w", ErrEmptyRef)
	}
	if !signatureRegex.MatchString(sanitized) {
		return "", ErrInvalidSignature
	}
	return sanitized, nil
}

// Sanitize removes surrounding whitespace and quotes
func (v *GatewayRefValidator) Sanitize(ref string) string {
	return strings.Trim(strings.TrimSpace(ref), `"'`)
}

// IsValid is a convenience wrapper around Validate
func (v *GatewayRefValidator) IsValid(kind RefKind, ref string) bool {
	_, err := v.Validate(kind, ref)
	return err == nil
}
