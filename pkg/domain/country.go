package domain

import (
	"strings"

	dErrors "custos/pkg/domain-errors"
)

// CountryCode is a two-letter ISO 3166-1 code validated against the fixed
// whitelist of supported jurisdictions.
//
// Usage: construct via ParseCountryCode at trust boundaries to enforce the
// whitelist; direct casting bypasses validation.
type CountryCode string

// Named validation errors for country handling. Services return these
// unmodified so callers can branch with errors.Is.
var (
	ErrInvalidCountryCode = dErrors.New(dErrors.CodeValidation, "country code must be exactly two letters")
	ErrUnsupportedCountry = dErrors.New(dErrors.CodeValidation, "country is not in the supported jurisdictions")
)

// supportedCountries is the single source of truth for jurisdictions the
// token may be issued into: the EU-27 member states.
var supportedCountries = []CountryCode{
	"AT", "BE", "BG", "HR", "CY", "CZ", "DK", "EE", "FI", "FR",
	"DE", "GR", "HU", "IE", "IT", "LV", "LT", "LU", "MT", "NL",
	"PL", "PT", "RO", "SK", "SI", "ES", "SE",
}

var supportedCountrySet = func() map[CountryCode]bool {
	set := make(map[CountryCode]bool, len(supportedCountries))
	for _, c := range supportedCountries {
		set[c] = true
	}
	return set
}()

// ParseCountryCode constructs a CountryCode from external input. Input is
// upper-cased before the whitelist check so "de" and "DE" are equivalent;
// the canonical stored form is upper case.
//
// Errors: ErrInvalidCountryCode when the length is not two characters,
// ErrUnsupportedCountry when the code is not whitelisted.
func ParseCountryCode(s string) (CountryCode, error) {
	if len(s) != 2 {
		return "", ErrInvalidCountryCode
	}
	c := CountryCode(strings.ToUpper(s))
	if !c.IsSupported() {
		return "", ErrUnsupportedCountry
	}
	return c, nil
}

// IsSupported reports whether the code belongs to a supported jurisdiction.
func (c CountryCode) IsSupported() bool {
	return supportedCountrySet[c]
}

// String returns the string representation of the code.
func (c CountryCode) String() string {
	return string(c)
}

// SupportedCountries returns a copy of the jurisdiction whitelist, in the
// canonical order.
func SupportedCountries() []CountryCode {
	out := make([]CountryCode, len(supportedCountries))
	copy(out, supportedCountries)
	return out
}
