// Package risk maps inspection status text and violation counts to a map color.
package risk

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/inspection-map/internal/model"
)

const (
	redCriticalThreshold     = 3
	yellowNonCriticalCeiling = 5
)

var (
	// A count directly before "critical". "3 non-critical" never matches since
	// the digits must be followed by "critical" itself.
	criticalCountRe    = regexp.MustCompile(`(?i)(?:^|\D)(\d+)\s*critical`)
	nonCriticalCountRe = regexp.MustCompile(`(?i)\b(\d+)\s*non[\s-]?critical`)
)

// Classify returns the risk color for a status and explicit violation counts.
// It is deterministic and defined for every input.
func Classify(status string, critical, nonCritical int) model.RiskColor {
	if strings.Contains(strings.ToLower(status), "failed") || critical >= redCriticalThreshold {
		return model.RiskRed
	}
	if critical >= 1 || nonCritical > yellowNonCriticalCeiling {
		return model.RiskYellow
	}
	return model.RiskGreen
}

// ClassifyRow classifies a row whose counts may be missing. A missing count is
// read from the status text when it carries one (e.g. "Passed - 2 Critical"),
// otherwise it is zero.
func ClassifyRow(status string, critical, nonCritical *int) model.RiskColor {
	c := 0
	if critical != nil {
		c = *critical
	} else if n, ok := CountFromStatus(status); ok {
		c = n
	}

	nc := 0
	if nonCritical != nil {
		nc = *nonCritical
	} else if n, ok := NonCriticalFromStatus(status); ok {
		nc = n
	}

	return Classify(status, c, nc)
}

// CountFromStatus extracts the integer immediately preceding "critical".
func CountFromStatus(status string) (int, bool) {
	return firstInt(criticalCountRe, status)
}

// NonCriticalFromStatus extracts the integer immediately preceding "non-critical".
func NonCriticalFromStatus(status string) (int, bool) {
	return firstInt(nonCriticalCountRe, status)
}

func firstInt(re *regexp.Regexp, s string) (int, bool) {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
