package format

import (
	"fmt"
	"strings"
)

// EventMeta carries the per-detection values available to templates.
type EventMeta struct {
	// ID is the 1-based detection number.
	ID int

	// Start and End are the detection boundaries in seconds.
	Start float64
	End   float64

	// Duration is the detection length in seconds.
	Duration float64
}

// ExpandTemplate substitutes the {id}, {start}, {end} and {duration}
// placeholders of template with the detection's values. Times are rendered
// with three decimals; unknown placeholders are left untouched.
func ExpandTemplate(template string, meta EventMeta) string {
	return strings.NewReplacer(
		"{id}", fmt.Sprintf("%d", meta.ID),
		"{start}", fmt.Sprintf("%.3f", meta.Start),
		"{end}", fmt.Sprintf("%.3f", meta.End),
		"{duration}", fmt.Sprintf("%.3f", meta.Duration),
	).Replace(template)
}

// ExpandTemplateTimes is like [ExpandTemplate] but renders the time values
// with the given formatter, for print lines with a configured time format.
func ExpandTemplateTimes(template string, meta EventMeta, f DurationFormatter) string {
	return strings.NewReplacer(
		"{id}", fmt.Sprintf("%d", meta.ID),
		"{start}", f(meta.Start),
		"{end}", f(meta.End),
		"{duration}", f(meta.Duration),
	).Replace(template)
}
