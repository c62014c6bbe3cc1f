package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// cronSpec is a parsed 5-field cron expression: minute, hour, day of month,
// month, day of week. Each field accepts "*", "*/n", "a-b", "a-b/n" and
// comma-separated lists of those.
type cronSpec [5]map[int]bool

var cronRanges = [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 6}}

func parseCron(expr string) (cronSpec, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return cronSpec{}, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}
	var spec cronSpec
	for i, f := range fields {
		set, err := parseCronField(f, cronRanges[i][0], cronRanges[i][1])
		if err != nil {
			return cronSpec{}, fmt.Errorf("cron field %d %q: %w", i+1, f, err)
		}
		spec[i] = set
	}
	return spec, nil
}

func parseCronField(field string, lo, hi int) (map[int]bool, error) {
	set := make(map[int]bool)
	for _, part := range strings.Split(field, ",") {
		rng, stepStr, hasStep := strings.Cut(part, "/")
		step := 1
		if hasStep {
			n, err := strconv.Atoi(stepStr)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("invalid step %q", stepStr)
			}
			step = n
		}

		from, to := lo, hi
		if rng != "*" {
			a, b, isRange := strings.Cut(rng, "-")
			n, err := strconv.Atoi(a)
			if err != nil {
				return nil, fmt.Errorf("invalid value %q", a)
			}
			from, to = n, n
			if isRange {
				if to, err = strconv.Atoi(b); err != nil {
					return nil, fmt.Errorf("invalid value %q", b)
				}
			} else if hasStep {
				to = hi
			}
		}
		if from < lo || to > hi || from > to {
			return nil, fmt.Errorf("%d-%d outside %d-%d", from, to, lo, hi)
		}
		for v := from; v <= to; v += step {
			set[v] = true
		}
	}
	return set, nil
}

func (c cronSpec) matches(t time.Time) bool {
	return c[0][t.Minute()] &&
		c[1][t.Hour()] &&
		c[2][t.Day()] &&
		c[3][int(t.Month())] &&
		c[4][int(t.Weekday())]
}

// next returns the first minute strictly after 'after' that matches, searching
// up to one year ahead.
func (c cronSpec) next(after time.Time) (time.Time, error) {
	candidate := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.Add(366 * 24 * time.Hour)
	for candidate.Before(limit) {
		if c.matches(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}
	return time.Time{}, fmt.Errorf("no matching cron time within one year")
}
