package comparator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	c := New()

	tests := []struct {
		name     string
		actual   any
		expected any
		op       Operator
		want     bool
	}{
		{"equals case insensitive", "Gold", "gold", Equals, true},
		{"equals trims", " gold ", "gold", Equals, true},
		{"equals numeric coercion", 18.0, "18", Equals, true},
		{"equals numeric string", "18.0", "18", Equals, true},
		{"equals bool literal", true, "TRUE", Equals, true},
		{"equals bool mismatch", false, "true", Equals, false},
		{"not equals", "gold", "silver", NotEquals, true},
		{"contains substring", "Premium plan", "plan", Contains, true},
		{"contains in list", []any{"vip", "beta"}, "VIP", Contains, true},
		{"contains in string list", []string{"vip", "beta"}, "alpha", Contains, false},
		{"not contains", "hello", "bye", NotContains, true},
		{"starts with", "ORD-123", "ord-", StartsWith, true},
		{"ends with", "invoice.pdf", ".PDF", EndsWith, true},
		{"greater than", 15.0, "18", GreaterThan, false},
		{"greater than numeric strings", "20", "18", GreaterThan, true},
		{"less than", 15, "18", LessThan, true},
		{"less than dates", "2024-01-01", "2024-06-01", LessThan, true},
		{"greater than non comparable", "abc", "18", GreaterThan, false},
		{"less than non comparable", "abc", "18", LessThan, false},
		{"greater than nil", nil, "18", GreaterThan, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Compare(tt.actual, tt.expected, tt.op))
		})
	}
}

func TestCompare_UnknownOperatorFailsClosed(t *testing.T) {
	c := New()

	assert.False(t, c.Compare("a", "a", Operator("matchesRegex")))
	assert.False(t, c.Compare(nil, nil, Operator("")))
}

func TestCompare_DaysAgo(t *testing.T) {
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	c := NewWithClock(func() time.Time { return now })

	signedUp := now.Add(-10 * 24 * time.Hour)

	assert.True(t, c.Compare(signedUp, "7", MoreThanDaysAgo))
	assert.False(t, c.Compare(signedUp, "30", MoreThanDaysAgo))
	assert.True(t, c.Compare(signedUp, "30", LessThanDaysAgo))
	assert.True(t, c.Compare(signedUp, 10, ExactlyDaysAgo))
	assert.True(t, c.Compare("2024-06-20T12:00:00Z", "10", ExactlyDaysAgo))

	assert.False(t, c.Compare("not a date", "10", ExactlyDaysAgo))
	assert.False(t, c.Compare(signedUp, "ten", ExactlyDaysAgo))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, GreaterThan, Normalize(">"))
	assert.Equal(t, NotEquals, Normalize("!="))
	assert.Equal(t, Contains, Normalize("contains"))
	assert.Equal(t, Operator("weird"), Normalize("weird"))
}
