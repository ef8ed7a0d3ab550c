// Package dateutil handles the two date-string conventions used at the
// system boundary: DD-MM-YYYY when talking to the remote data provider,
// and YYYY-MM-DD for persisted metadata and configuration.
package dateutil

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	// ISO is the YYYY-MM-DD layout used for persisted metadata and config.
	ISO = "2006-01-02"
	// DMY is the DD-MM-YYYY layout expected by the remote data provider.
	DMY = "02-01-2006"

	// FloorDate is the global earliest date below which no price data is
	// assumed to exist absent contrary evidence.
	FloorDate = "2015-01-01"
)

// Parse parses s with the given layout. An empty string means "absent" and
// returns the zero time with no error; a malformed string returns an error.
func Parse(s, layout string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// FormatISO formats t as YYYY-MM-DD.
func FormatISO(t time.Time) string {
	return t.Format(ISO)
}

// FormatDMY formats t as DD-MM-YYYY for the provider boundary.
func FormatDMY(t time.Time) string {
	return t.Format(DMY)
}

// ResolveOrDefault parses s as YYYY-MM-DD, falling back to the fallback
// date when s is absent or malformed. Parse failures never propagate past
// this function; a fallback that itself fails to parse yields the zero
// time. The fallback is expected to be a trusted constant.
func ResolveOrDefault(s, fallback string, logger zerolog.Logger) time.Time {
	t, err := Parse(s, ISO)
	if err == nil && !t.IsZero() {
		return t
	}
	logger.Warn().Str("date", s).Str("fallback", fallback).Msg("invalid or missing date, using fallback")
	ft, err := time.Parse(ISO, fallback)
	if err != nil {
		logger.Error().Str("fallback", fallback).Msg("fallback date is not a valid YYYY-MM-DD date")
		return time.Time{}
	}
	return ft
}

// Min returns the earlier of a and b.
func Min(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// Max returns the later of a and b.
func Max(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
