package dispute

import (
	"fmt"
	"slices"
	"strings"
)

// TransitionPolicy decides whether a dispute may move between two statuses.
// Both codes are already known to exist in the catalog.
type TransitionPolicy interface {
	Allow(from, to string) bool
}

// AllowAll permits any catalog status to follow any other, including
// regressions such as RESOLVED -> PENDING.
type AllowAll struct{}

func (AllowAll) Allow(string, string) bool { return true }

// TransitionTable lists the statuses reachable from each status. A status
// missing from the table is terminal.
type TransitionTable map[string][]string

func (t TransitionTable) Allow(from, to string) bool {
	return slices.Contains(t[from], to)
}

// DefaultTransitionTable is the review workflow offered to dispute admins.
func DefaultTransitionTable() TransitionTable {
	return TransitionTable{
		"PENDING":      {"UNDER_REVIEW", "CANCELLED"},
		"UNDER_REVIEW": {"RESOLVED", "REJECTED", "PENDING"},
		"RESOLVED":     {},
		"REJECTED":     {},
		"CANCELLED":    {},
	}
}

// ParseTransitionTable normalises codes to upper case and rejects empty codes.
func ParseTransitionTable(raw map[string][]string) (TransitionTable, error) {
	out := make(TransitionTable, len(raw))
	for from, tos := range raw {
		f := strings.ToUpper(strings.TrimSpace(from))
		if f == "" {
			return nil, fmt.Errorf("dispute: transition table has empty source status")
		}
		targets := make([]string, 0, len(tos))
		for _, to := range tos {
			t := strings.ToUpper(strings.TrimSpace(to))
			if t == "" {
				return nil, fmt.Errorf("dispute: transition table has empty target for %s", f)
			}
			targets = append(targets, t)
		}
		out[f] = targets
	}
	return out, nil
}
