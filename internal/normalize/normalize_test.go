package normalize_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"parcel-audit/internal/normalize"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"$1,234.56", "1234.56"},
		{"(45.00)", "-45"},
		{"", "0"},
		{"-", "0"},
		{".", "0"},
		{"12.5", "12.5"},
		{" $ 99.10 ", "99.1"},
		{"USD 7.25", "7.25"},
		{"(1,000)", "-1000"},
		{"-3.20", "-3.2"},
		{"free", "0"},
	}

	for _, c := range cases {
		got := normalize.ParseMoney(c.raw)
		assert.True(t, got.Equal(decimal.RequireFromString(c.want)),
			"ParseMoney(%q) = %s, want %s", c.raw, got, c.want)
	}
}

func TestParseDate(t *testing.T) {
	d, ok := normalize.ParseDate("1/2/2024")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), d)

	d, ok = normalize.ParseDate("03/15/2024")
	assert.True(t, ok)
	assert.Equal(t, time.March, d.Month())
	assert.Equal(t, 15, d.Day())

	d, ok = normalize.ParseDate("2024-06-30")
	assert.True(t, ok)
	assert.Equal(t, 30, d.Day())

	d, ok = normalize.ParseDate("2024/06/30")
	assert.True(t, ok)
	assert.Equal(t, time.June, d.Month())

	// General fallback layouts
	_, ok = normalize.ParseDate("Jan 2, 2024")
	assert.True(t, ok)

	_, ok = normalize.ParseDate("not a date")
	assert.False(t, ok)

	_, ok = normalize.ParseDate("")
	assert.False(t, ok)
}

func TestCombineDateTime(t *testing.T) {
	date := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	at := normalize.CombineDateTime(date, "14:32")
	assert.Equal(t, 14, at.Hour())
	assert.Equal(t, 32, at.Minute())
	assert.Equal(t, 0, at.Second())

	at = normalize.CombineDateTime(date, "9:05:07")
	assert.Equal(t, 9, at.Hour())
	assert.Equal(t, 7, at.Second())

	// Stray characters are dropped before parsing
	at = normalize.CombineDateTime(date, " 08:15 hrs ")
	assert.Equal(t, 8, at.Hour())
	assert.Equal(t, 15, at.Minute())

	// Missing or unusable time stamps the end of the day
	for _, raw := range []string{"", "garbage", "99:99"} {
		at = normalize.CombineDateTime(date, raw)
		assert.Equal(t, 23, at.Hour(), "raw %q", raw)
		assert.Equal(t, 59, at.Minute(), "raw %q", raw)
		assert.Equal(t, 59, at.Second(), "raw %q", raw)
	}
}

func TestParseClock(t *testing.T) {
	h, m, s, ok := normalize.ParseClock("1430")
	assert.True(t, ok)
	assert.Equal(t, []int{14, 30, 0}, []int{h, m, s})

	h, m, s, ok = normalize.ParseClock("143059")
	assert.True(t, ok)
	assert.Equal(t, []int{14, 30, 59}, []int{h, m, s})

	_, _, _, ok = normalize.ParseClock("25:00")
	assert.False(t, ok)

	_, _, _, ok = normalize.ParseClock("123")
	assert.False(t, ok)
}

func TestParseBool(t *testing.T) {
	assert.True(t, normalize.ParseBool("true"))
	assert.True(t, normalize.ParseBool("YES"))
	assert.True(t, normalize.ParseBool(" 1 "))
	assert.False(t, normalize.ParseBool("no"))
	assert.False(t, normalize.ParseBool("0"))
	assert.False(t, normalize.ParseBool(""))
}

func TestParseResidential(t *testing.T) {
	assert.True(t, normalize.ParseResidential("Residential"))
	assert.True(t, normalize.ParseResidential("RES"))
	assert.True(t, normalize.ParseResidential("yes"))
	assert.False(t, normalize.ParseResidential("Business"))
	assert.False(t, normalize.ParseResidential("Commercial"))
	assert.False(t, normalize.ParseResidential("no"))
	assert.False(t, normalize.ParseResidential(""))
}
