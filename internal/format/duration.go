// Package format renders detection metadata for human-readable output and
// file names: duration formatting with a small directive set and file-name
// templates with event placeholders.
package format

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTimeFormat is wrapped by errors about unknown duration directives.
var ErrTimeFormat = errors.New("format: unknown time format directive")

// DurationFormatter renders a duration in seconds as a string.
type DurationFormatter func(seconds float64) string

// MakeDurationFormatter compiles a duration format into a formatter.
// Accepted directives:
//
//   - %S — absolute seconds with 3 decimals; use alone.
//   - %I — absolute milliseconds; use alone.
//   - %h, %m, %s, %i — hours, minutes, seconds and milliseconds; specify all
//     four, placed anywhere in the string.
func MakeDurationFormatter(fmtStr string) (DurationFormatter, error) {
	switch fmtStr {
	case "%S":
		return func(seconds float64) string {
			return fmt.Sprintf("%.3f", seconds)
		}, nil
	case "%I":
		return func(seconds float64) string {
			return fmt.Sprintf("%d", int(seconds*1000))
		}, nil
	}

	expanded := strings.NewReplacer(
		"%h", "{hrs}",
		"%m", "{mins}",
		"%s", "{secs}",
		"%i", "{millis}",
	).Replace(fmtStr)
	if i := strings.Index(expanded, "%"); i >= 0 {
		end := i + 2
		if end > len(expanded) {
			end = len(expanded)
		}
		return nil, fmt.Errorf("%w: %q", ErrTimeFormat, expanded[i:end])
	}

	return func(seconds float64) string {
		millis := int(seconds * 1000)
		hrs, millis := millis/3600000, millis%3600000
		mins, millis := millis/60000, millis%60000
		secs, millis := millis/1000, millis%1000
		return strings.NewReplacer(
			"{hrs}", fmt.Sprintf("%02d", hrs),
			"{mins}", fmt.Sprintf("%02d", mins),
			"{secs}", fmt.Sprintf("%02d", secs),
			"{millis}", fmt.Sprintf("%03d", millis),
		).Replace(expanded)
	}, nil
}
