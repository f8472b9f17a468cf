package service

import "strings"

// mobilePrefixes lists, per calling code, the digits a 10-digit
// subscriber number may start with. Calling codes without an entry fall
// back to the lenient length-only rule.
var mobilePrefixes = map[string]string{
	"91": "6789",
}

// PhoneService validates and canonicalizes raw contact numbers
type PhoneService struct {
	defaultCountryCode string
}

// NewPhoneService creates a new phone service for the given default
// calling code (digits only, e.g. "91")
func NewPhoneService(defaultCountryCode string) *PhoneService {
	return &PhoneService{defaultCountryCode: defaultCountryCode}
}

// Normalize converts a raw contact number into its canonical addressable
// form. It returns an empty string if the number cannot be normalized;
// the caller treats that as "invalid phone, exclude recipient".
func (s *PhoneService) Normalize(raw string) string {
	digits := stripNonDigits(raw)
	if digits == "" {
		return ""
	}

	cc := s.defaultCountryCode
	prefixes, strict := mobilePrefixes[cc]
	if !strict {
		// Lenient rule for regions without a known prefix table.
		if len(digits) >= 10 && len(digits) <= 15 {
			return digits
		}
		return ""
	}

	// A single leading trunk zero is dropped before validation.
	if len(digits) == 11 && digits[0] == '0' {
		digits = digits[1:]
	}

	switch len(digits) {
	case 10:
		if strings.IndexByte(prefixes, digits[0]) < 0 {
			return ""
		}
		return cc + digits
	case 12:
		if !strings.HasPrefix(digits, cc) {
			return ""
		}
		subscriber := digits[len(cc):]
		if len(subscriber) != 10 || strings.IndexByte(prefixes, subscriber[0]) < 0 {
			return ""
		}
		return digits
	}

	return ""
}

// IsDuplicate reports whether two raw numbers address the same contact,
// i.e. their normalized forms are equal and valid
func (s *PhoneService) IsDuplicate(a, b string) bool {
	na := s.Normalize(a)
	nb := s.Normalize(b)
	return na != "" && na == nb
}

func stripNonDigits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
