package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGatewayRefValidator(t *testing.T) {
	assert.NotNil(t, NewGatewayRefValidator())
}

func TestValidate_ValidRefs(t *testing.T) {
	v := NewGatewayRefValidator()

	tests := []struct {
		name     string
		kind     RefKind
		input    string
		expected string
	}{
		{"Razorpay order", RefOrder, "order_NfQ2xkL8abc123", "order_NfQ2xkL8abc123"},
		{"Sandbox order", RefOrder, "order_sbx_1a2b3c4d5e6f7a", "order_sbx_1a2b3c4d5e6f7a"},
		{"Payment id", RefPayment, "pay_29QQoUBi66xm2f", "pay_29QQoUBi66xm2f"},
		{"Surrounding whitespace", RefPayment, "  pay_abc  ", "pay_abc"},
		{"Quoted", RefOrder, `"order_abc"`, "order_abc"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := v.Validate(tc.kind, tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestValidate_InvalidRefs(t *testing.T) {
	v := NewGatewayRefValidator()

	tests := []struct {
		name        string
		input       string
		expectedErr error
	}{
		{"Empty", "", ErrEmptyRef},
		{"Whitespace only", "   ", ErrEmptyRef},
		{"Too long", "order_" + strings.Repeat("a", MaxRefLength), ErrRefTooLong},
		{"Dash", "order-abc", ErrInvalidRefFormat},
		{"SQL", "order_1'; DROP TABLE payments;--", ErrInvalidRefFormat},
		{"Space inside", "order abc", ErrInvalidRefFormat},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Validate(RefOrder, tc.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.expectedErr)
			assert.Contains(t, err.Error(), "order id")
		})
	}
}

func TestValidateSignature(t *testing.T) {
	v := NewGatewayRefValidator()
	valid := strings.Repeat("ab", 32)

	got, err := v.ValidateSignature(strings.ToUpper(valid))
	require.NoError(t, err)
	assert.Equal(t, valid, got)

	_, err = v.ValidateSignature("")
	assert.ErrorIs(t, err, ErrEmptyRef)

	_, err = v.ValidateSignature("not-hex")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = v.ValidateSignature(strings.Repeat("a", 63))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestIsValid(t *testing.T) {
	v := NewGatewayRefValidator()
	assert.True(t, v.IsValid(RefPayment, "pay_123"))
	assert.False(t, v.IsValid(RefPayment, "pay-123"))
}
