// Package timestamp provides standardized Unix timestamp handling utilities.
//
// The framework stores timestamps as int64 milliseconds since the Unix epoch
// (UTC). The wire profile for symbol timestamps is RFC3339; Profile and
// ParseProfile are the single source of truth for that format.
//
// Zero value semantics: a timestamp of 0 means "not set".
package timestamp

import (
	"fmt"
	"strconv"
	"time"
)

// Profile is the fixed ISO profile used for symbol timestamps on the wire.
const Profile = time.RFC3339

// Now returns the current time as Unix milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}

// ToUnixMs converts a time.Time to Unix milliseconds.
func ToUnixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromUnixMs converts Unix milliseconds to time.Time.
// Returns zero time if timestamp is 0.
func FromUnixMs(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Format converts Unix milliseconds to the wire profile string for display.
// Returns empty string if timestamp is 0.
func Format(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(Profile)
}

// ParseProfile parses a string strictly under the wire profile.
// Unlike Parse it does not fall back to other representations.
func ParseProfile(s string) (int64, error) {
	t, err := time.Parse(Profile, s)
	if err != nil {
		return 0, fmt.Errorf("parse %q under profile %s: %w", s, Profile, err)
	}
	return ToUnixMs(t), nil
}

// Parse converts various timestamp representations to Unix milliseconds.
// Supports int64/float64 (milliseconds if > 1e12, otherwise seconds),
// profile or numeric strings, and time.Time. Returns 0 for invalid input.
func Parse(input any) int64 {
	if input == nil {
		return 0
	}

	switch v := input.(type) {
	case int64:
		if v == 0 {
			return 0
		}
		if v > 1e12 {
			return v
		}
		return v * 1000

	case float64:
		if v == 0 {
			return 0
		}
		if v > 1e12 {
			return int64(v)
		}
		return int64(v * 1000)

	case int:
		return Parse(int64(v))

	case string:
		if v == "" {
			return 0
		}
		if ms, err := ParseProfile(v); err == nil {
			return ms
		}
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			return Parse(ts)
		}
		if ts, err := strconv.ParseFloat(v, 64); err == nil {
			return Parse(ts)
		}
		return 0

	case time.Time:
		return ToUnixMs(v)

	default:
		return 0
	}
}

// IsZero checks if a timestamp is unset (zero).
func IsZero(ms int64) bool {
	return ms == 0
}

// Since returns the duration since the given timestamp.
// Returns 0 if timestamp is zero.
func Since(ms int64) time.Duration {
	if ms == 0 {
		return 0
	}
	return time.Since(time.UnixMilli(ms))
}

// Between returns the duration between two timestamps.
// Returns 0 if either timestamp is zero.
func Between(start, end int64) time.Duration {
	if start == 0 || end == 0 {
		return 0
	}
	return time.UnixMilli(end).Sub(time.UnixMilli(start))
}
