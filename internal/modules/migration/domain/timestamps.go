package domain

import "time"

// timeFields names every document key that decodes into a time value.
var timeFields = map[string]struct{}{
	"start_date":            {},
	"last_session":          {},
	"last_transfer_project": {},
	"last_adjusted":         {},
	"last_gate_trigger":     {},
	"last_updated":          {},
	"last_migration":        {},
	"next_interleaving":     {},
	"next_calibration":      {},
	"next_synthesis":        {},
	"next_project_due":      {},
	"start_time":            {},
	"end_time":              {},
	"last_activity":         {},
	"state_entered_at":      {},
	"timestamp":             {},
	"identified_at":         {},
	"resolved_at":           {},
}

// Layouts for timestamps written without a zone. A fractional second is accepted after
// the seconds field even though the layouts do not spell one out.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// normalizeTimestamps rewrites zoneless timestamps under known time keys as RFC 3339 UTC.
func normalizeTimestamps(doc Document) Document {
	normalizeValue(doc)
	return doc
}

func normalizeValue(v any) {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if s, ok := val.(string); ok {
				if _, timed := timeFields[k]; timed {
					if fixed, ok := asUTC(s); ok {
						t[k] = fixed
					}
				}
				continue
			}
			normalizeValue(val)
		}
	case []any:
		for _, val := range t {
			normalizeValue(val)
		}
	}
}

func asUTC(s string) (string, bool) {
	if _, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return "", false
	}
	for _, layout := range naiveLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts.Format(time.RFC3339Nano), true
		}
	}
	return "", false
}
