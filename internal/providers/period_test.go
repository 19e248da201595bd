package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapPeriod_BoundaryTable(t *testing.T) {
	cases := []struct {
		days     int
		wantType PeriodType
		wantVal  int
	}{
		{30, PeriodMonth, 1},
		{31, PeriodMonth, 2},
		{60, PeriodMonth, 2},
		{90, PeriodMonth, 3},
		{180, PeriodMonth, 6},
		{365, PeriodYear, 1},
		{730, PeriodYear, 2},
		{1825, PeriodYear, 5},
		{3650, PeriodYear, 10},
	}

	for _, c := range cases {
		gotType, gotVal := MapPeriod(c.days)
		assert.Equal(t, c.wantType, gotType, "days=%d", c.days)
		assert.Equal(t, c.wantVal, gotVal, "days=%d", c.days)
	}
}

func TestRetryableStatus(t *testing.T) {
	for _, s := range []int{429, 502, 503, 504} {
		assert.True(t, RetryableStatus(s))
	}
	for _, s := range []int{200, 400, 401, 404, 500} {
		assert.False(t, RetryableStatus(s))
	}
}
