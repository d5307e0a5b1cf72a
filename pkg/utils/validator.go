package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// gstinRegex matches the 15-character Indian GST identification number:
// state code, PAN, entity number, the literal Z and a checksum character.
var gstinRegex = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)

// ValidateGSTIN validates a dealer GSTIN.
func ValidateGSTIN(gstin string) error {
	gstin = strings.ToUpper(strings.TrimSpace(gstin))
	if len(gstin) != 15 {
		return fmt.Errorf("GSTIN must be 15 characters: %s", gstin)
	}
	if !gstinRegex.MatchString(gstin) {
		return fmt.Errorf("invalid GSTIN format: %s", gstin)
	}
	return nil
}

// SanitizeString removes control characters from extracted text fields.
func SanitizeString(s string) string {
	return regexp.MustCompile(`[\x00-\x1f\x7f]`).ReplaceAllString(s, "")
}
