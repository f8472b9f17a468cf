package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhoneService_Normalize(t *testing.T) {
	svc := NewPhoneService("91")

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain 10-digit mobile", "9876543210", "919876543210"},
		{"formatted with country code", "+91 98765 43210", "919876543210"},
		{"dashes and spaces", "98765-432 10", "919876543210"},
		{"leading trunk zero", "09876543210", "919876543210"},
		{"already canonical 12-digit", "919876543210", "919876543210"},
		{"mobile prefix 6", "6876543210", "916876543210"},
		{"landline prefix rejected", "2876543210", ""},
		{"too short", "123", ""},
		{"too long", "98765432109876", ""},
		{"12-digit wrong country code", "449876543210", ""},
		{"12-digit bad subscriber prefix", "912876543210", ""},
		{"empty", "", ""},
		{"letters only", "not-a-phone", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.Normalize(tt.raw))
		})
	}
}

func TestPhoneService_NormalizeLenientRegion(t *testing.T) {
	// Calling codes without a known mobile-prefix table accept any
	// 10-15 digit number as-is.
	svc := NewPhoneService("44")

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"10 digits accepted", "2076543210", "2076543210"},
		{"full international form", "+44 20 7654 3210", "442076543210"},
		{"15 digits accepted", "123456789012345", "123456789012345"},
		{"9 digits rejected", "123456789", ""},
		{"16 digits rejected", "1234567890123456", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.Normalize(tt.raw))
		})
	}
}

func TestPhoneService_IsDuplicate(t *testing.T) {
	svc := NewPhoneService("91")

	assert.True(t, svc.IsDuplicate("9876543210", "+91 98765 43210"))
	assert.True(t, svc.IsDuplicate("09876543210", "919876543210"))
	assert.False(t, svc.IsDuplicate("9876543210", "9876543211"))
	// Invalid numbers are never duplicates, not even of themselves.
	assert.False(t, svc.IsDuplicate("123", "123"))
}
