// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package ldapconfig

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

var ErrInvalidDuration = errors.New("invalid duration")

var durationPattern = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*([a-zA-Z]+)\s*$`)

var durationUnits = map[string]time.Duration{
	"ns": time.Nanosecond,
	"us": time.Microsecond,
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  24 * time.Hour,
}

// formatUnits is ordered largest first.
var formatUnits = []struct {
	suffix string
	unit   time.Duration
}{
	{"d", 24 * time.Hour},
	{"h", time.Hour},
	{"m", time.Minute},
	{"s", time.Second},
	{"ms", time.Millisecond},
	{"us", time.Microsecond},
	{"ns", time.Nanosecond},
}

// ParseDuration parses a compact duration literal: a decimal magnitude
// followed by one unit suffix (ns, us, ms, s, m, h, d), e.g. "2m" or "1.5h".
func ParseDuration(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	unit, ok := durationUnits[m[2]]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit %q in %q", ErrInvalidDuration, m[2], s)
	}
	magnitude, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidDuration, s, err)
	}
	nanos := math.Round(magnitude * float64(unit))
	if nanos >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidDuration, s)
	}
	return time.Duration(nanos), nil
}

// FormatDuration renders d in the largest unit that keeps the magnitude a
// whole number, so that ParseDuration(FormatDuration(d)) == d.
func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	for _, u := range formatUnits {
		if d%u.unit == 0 {
			return strconv.FormatInt(int64(d/u.unit), 10) + u.suffix
		}
	}
	return strconv.FormatInt(int64(d), 10) + "ns"
}
