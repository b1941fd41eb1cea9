package feed

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/navaids/internal/model"
)

var leadingNumber = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)

// parseLeadingFloat reads the numeric prefix of s ("12345.1", "37 ft") and
// returns nil when there is none.
func parseLeadingFloat(s string) *float64 {
	m := leadingNumber.FindString(strings.TrimSpace(s))
	if m == "" {
		return nil
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return model.Float(f)
}

func text(s string) *string {
	return model.String(strings.TrimSpace(s))
}

// withLocation drops any point that ended up without a location.
func withLocation(points []model.Point) []model.Point {
	out := points[:0]
	for _, p := range points {
		if p.Location != nil {
			out = append(out, p)
		}
	}
	return out
}
