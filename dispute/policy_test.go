package dispute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTransitionTable(t *testing.T) {
	table := DefaultTransitionTable()
	cases := []struct {
		from, to string
		want     bool
	}{
		{"PENDING", "UNDER_REVIEW", true},
		{"PENDING", "CANCELLED", true},
		{"PENDING", "RESOLVED", false},
		{"UNDER_REVIEW", "RESOLVED", true},
		{"UNDER_REVIEW", "PENDING", true},
		{"RESOLVED", "PENDING", false},
		{"REJECTED", "UNDER_REVIEW", false},
		{"UNKNOWN", "PENDING", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, table.Allow(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
	assert.True(t, AllowAll{}.Allow("RESOLVED", "PENDING"))
}

func TestParseTransitionTable(t *testing.T) {
	table, err := ParseTransitionTable(map[string][]string{
		" pending ": {"under_review", "CANCELLED"},
		"resolved":  {},
	})
	require.NoError(t, err)
	assert.True(t, table.Allow("PENDING", "UNDER_REVIEW"))
	assert.True(t, table.Allow("PENDING", "CANCELLED"))
	assert.False(t, table.Allow("RESOLVED", "PENDING"))

	_, err = ParseTransitionTable(map[string][]string{"": {"PENDING"}})
	require.Error(t, err)
	_, err = ParseTransitionTable(map[string][]string{"PENDING": {" "}})
	require.Error(t, err)
}
