package pipeline

import (
	"strings"
)

// abbrToState maps lowercase state abbreviations to lowercase full names.
var abbrToState = map[string]string{
	"al": "alabama", "ak": "alaska", "az": "arizona", "ar": "arkansas",
	"ca": "california", "co": "colorado", "ct": "connecticut", "de": "delaware",
	"fl": "florida", "ga": "georgia", "hi": "hawaii", "id": "idaho",
	"il": "illinois", "in": "indiana", "ia": "iowa", "ks": "kansas",
	"ky": "kentucky", "la": "louisiana", "me": "maine", "md": "maryland",
	"ma": "massachusetts", "mi": "michigan", "mn": "minnesota", "ms": "mississippi",
	"mo": "missouri", "mt": "montana", "ne": "nebraska", "nv": "nevada",
	"nh": "new hampshire", "nj": "new jersey", "nm": "new mexico", "ny": "new york",
	"nc": "north carolina", "nd": "north dakota", "oh": "ohio", "ok": "oklahoma",
	"or": "oregon", "pa": "pennsylvania", "ri": "rhode island", "sc": "south carolina",
	"sd": "south dakota", "tn": "tennessee", "tx": "texas", "ut": "utah",
	"vt": "vermont", "va": "virginia", "wa": "washington", "wv": "west virginia",
	"wi": "wisconsin", "wy": "wyoming", "dc": "district of columbia",
}

// stateVariants returns both the abbreviation and full name forms for a state.
func stateVariants(state string) []string {
	lower := strings.ToLower(strings.TrimSpace(state))
	if lower == "" {
		return nil
	}
	if full, ok := abbrToState[lower]; ok {
		return []string{lower, full}
	}
	for abbr, full := range abbrToState {
		if full == lower {
			return []string{abbr, full}
		}
	}
	return []string{lower}
}

// containsWord reports whether phrase occurs in s delimited by non-letters.
func containsWord(s, phrase string) bool {
	s = strings.ToLower(s)
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" {
		return false
	}
	for i := 0; ; {
		j := strings.Index(s[i:], phrase)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(phrase)
		if (start == 0 || !isLetter(s[start-1])) && (end == len(s) || !isLetter(s[end])) {
			return true
		}
		i = start + 1
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// ComposeAddress builds the geocoder query for a listing row. The city and
// state are appended unless the fragment already names them.
func ComposeAddress(fragment, city, state string) string {
	addr := strings.Join(strings.Fields(fragment), " ")
	addr = strings.TrimRight(addr, ", ")
	if addr == "" {
		return ""
	}

	hasCity := containsWord(addr, city)
	hasState := false
	if hasCity {
		for _, v := range stateVariants(state) {
			if containsWord(addr, v) {
				hasState = true
				break
			}
		}
	}

	parts := []string{addr}
	if !hasCity && strings.TrimSpace(city) != "" {
		parts = append(parts, strings.TrimSpace(city))
	}
	if !hasState && strings.TrimSpace(state) != "" {
		parts = append(parts, strings.TrimSpace(state))
	}
	return strings.Join(parts, ", ")
}
