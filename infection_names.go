package quantas

import (
	"strconv"
	"strings"
)

// parseEquivocatePercent parses names of the form "equivocate00".."equivocate100"
// into the probability they name (e.g. "equivocate50" -> 0.5).
func parseEquivocatePercent(name string) (float64, bool) {
	const prefix = "equivocate"
	if !strings.HasPrefix(name, prefix) {
		return 0, false
	}
	suffix := strings.TrimPrefix(name, prefix)
	if suffix == "" {
		return 0, false
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 0 || n > 100 {
		return 0, false
	}
	return float64(n) / 100.0, true
}
