package analytics

import (
	"strings"

	"go-damage-sync/pkg/models"

	"github.com/arbovm/levenshtein"
)

// maxSeverityDistance tolerates small typos in backend-supplied severity
// strings ("sever", "moderte") without letting unrelated values slip into a
// named bucket.
const maxSeverityDistance = 2

// NormalizeSeverity maps an arbitrary severity string into the fixed
// five-bucket domain. Matching is case-insensitive and tolerant of small
// edit distances; anything else lands in the unknown bucket.
func NormalizeSeverity(raw string) models.Severity {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return models.SeverityUnknown
	}

	best := models.SeverityUnknown
	bestDistance := maxSeverityDistance + 1
	for _, s := range models.Severities {
		d := levenshtein.Distance(value, string(s))
		if d == 0 {
			return s
		}
		if d < bestDistance {
			best = s
			bestDistance = d
		}
	}
	if bestDistance <= maxSeverityDistance {
		return best
	}
	return models.SeverityUnknown
}
