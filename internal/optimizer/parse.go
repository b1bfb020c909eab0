package optimizer

import (
	"math"
	"strconv"
	"strings"
)

// The Spark configuration map stringifies booleans, integers, and memory
// sizes alike. These helpers centralize the lenient parsing every analyzer
// needs: a false second return means "skip the check", never an error.

// parseBool parses a stringified boolean, case-insensitively.
func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// parseInt parses a stringified integer.
func parseInt(s string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseMemoryGB converts a JVM-style memory size ("4g", "8192m", "512k") to
// gigabytes. A bare number is assumed to be bytes.
func parseMemoryGB(s string) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}

	unit := 1.0 / (1024 * 1024 * 1024)
	switch s[len(s)-1] {
	case 'g':
		unit = 1
		s = s[:len(s)-1]
	case 'm':
		unit = 1.0 / 1024
		s = s[:len(s)-1]
	case 'k':
		unit = 1.0 / (1024 * 1024)
		s = s[:len(s)-1]
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v * unit, true
}

// round1 and round2 round to one and two decimal places; savings percentages
// and efficiency scores are reported at fixed precision.
func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
