package reconcile

import (
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/sells-group/company-directory/internal/model"
)

// placeholders are values enrichment jobs emit when they found nothing.
// Entries are stored case-folded.
var placeholders = map[string]struct{}{
	"":        {},
	"unknown": {},
	"n/a":     {},
	"na":      {},
	"none":    {},
}

// IsMeaningful reports whether s carries real data, i.e. it is not blank and
// not one of the placeholder values (compared case-insensitively).
func IsMeaningful(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	_, placeholder := placeholders[cases.Fold().String(s)]
	return !placeholder
}

// PreferString returns the trimmed incoming value if meaningful, else the
// trimmed existing value if meaningful, else whichever trimmed side is
// non-empty (incoming first).
func PreferString(incoming, existing model.Text) model.Text {
	inc, ex := incoming.Trim(), existing.Trim()
	switch {
	case IsMeaningful(inc):
		return model.Text(inc)
	case IsMeaningful(ex):
		return model.Text(ex)
	case inc != "":
		return model.Text(inc)
	default:
		return model.Text(ex)
	}
}

// PreferArray returns the first non-empty list, incoming first. When neither
// side has elements the result is an empty, non-nil list.
func PreferArray(incoming, existing model.List) model.List {
	switch {
	case len(incoming) > 0:
		return incoming.Clone()
	case len(existing) > 0:
		return existing.Clone()
	default:
		return model.List{}
	}
}

// PreferNonZeroNumber returns the first finite value greater than zero,
// incoming first, then any finite value, else zero.
func PreferNonZeroNumber(incoming, existing model.Number) model.Number {
	inc, incOK := incoming.Float()
	ex, exOK := existing.Float()
	switch {
	case incOK && inc > 0:
		return incoming
	case exOK && ex > 0:
		return existing
	case incOK:
		return incoming
	case exOK:
		return existing
	default:
		return model.Num(0)
	}
}

// PreferFinite returns the first finite value, incoming first. The result is
// invalid when neither side is finite; callers treat that as unknown.
func PreferFinite(incoming, existing model.Number) model.Number {
	if incoming.Valid() {
		return incoming
	}
	return existing
}

// PreferObjectByRecency picks the more recently touched of two objects.
// If only one side is an object it wins outright. Ties favour incoming.
func PreferObjectByRecency(incoming, existing model.Object) model.Object {
	if incoming == nil {
		return existing.Clone()
	}
	if existing == nil {
		return incoming.Clone()
	}
	if recency(incoming) >= recency(existing) {
		return incoming.Clone()
	}
	return existing.Clone()
}

// recency reads last_attempt_at, then last_success_at, falling back to
// updated_at when the primary stamp is missing or unparseable.
func recency(o model.Object) int64 {
	primary := o.Text("last_attempt_at")
	if primary == "" {
		primary = o.Text("last_success_at")
	}
	if ts := parseMillis(primary); ts != 0 {
		return ts
	}
	return parseMillis(o.Text("updated_at"))
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// parseMillis returns s as Unix milliseconds, or 0 when it does not parse.
func parseMillis(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}
