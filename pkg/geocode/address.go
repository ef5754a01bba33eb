package geocode

import "strings"

// FormatOneLine formats an address as a single comma-separated line.
func FormatOneLine(addr AddressInput) string {
	parts := []string{addr.Street, addr.City, addr.State, addr.ZipCode}
	var nonEmpty []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}

// NormalizeKey returns the lookup key for an address: lowercase, trimmed, with
// runs of whitespace collapsed to one space.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
