// Package stars computes the 0-5 company star score and its explanation.
package stars

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/sells-group/company-directory/internal/model"
)

// OverrideMode pins one auto-star lane regardless of the underlying data.
type OverrideMode int

// Override modes. OverrideNone passes the eligibility signal through.
const (
	OverrideNone OverrideMode = iota
	OverrideForce
	OverrideSuppress
)

// ParseOverrideMode maps "force" and "suppress"; anything else is OverrideNone.
func ParseOverrideMode(s string) OverrideMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "force":
		return OverrideForce
	case "suppress":
		return OverrideSuppress
	default:
		return OverrideNone
	}
}

// String returns the wire name, or "" for OverrideNone.
func (m OverrideMode) String() string {
	switch m {
	case OverrideForce:
		return "force"
	case OverrideSuppress:
		return "suppress"
	default:
		return ""
	}
}

// MarshalJSON encodes OverrideNone as null.
func (m OverrideMode) MarshalJSON() ([]byte, error) {
	if m == OverrideNone {
		return []byte("null"), nil
	}
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts null, "force" or "suppress". Unknown values decode to
// OverrideNone.
func (m *OverrideMode) UnmarshalJSON(b []byte) error {
	var t model.Text
	_ = t.UnmarshalJSON(b)
	*m = ParseOverrideMode(string(t))
	return nil
}

func (m OverrideMode) apply(eligible bool) int {
	switch m {
	case OverrideForce:
		return 1
	case OverrideSuppress:
		return 0
	}
	if eligible {
		return 1
	}
	return 0
}

// Overrides holds one mode per auto lane. All three keys are always emitted.
type Overrides struct {
	HQ            OverrideMode `json:"hq"`
	Manufacturing OverrideMode `json:"manufacturing"`
	Review        OverrideMode `json:"review"`
}

// Note is an admin note attached to a company's stars.
type Note struct {
	Text   string `json:"text"`
	Public bool   `json:"public"`
	By     string `json:"by,omitempty"`
	At     string `json:"at,omitempty"`
}

// Signals are the inputs to Calc.
type Signals struct {
	HQEligible               bool         `json:"hqEligible"`
	ManufacturingEligible    bool         `json:"manufacturingEligible"`
	ApprovedUserReviews      float64      `json:"approvedUserReviews" validate:"gte=0"`
	ApprovedEditorialReviews float64      `json:"approvedEditorialReviews" validate:"gte=0"`
	Overrides                Overrides    `json:"overrides"`
	ManualExtra              model.Number `json:"manualExtra"`
	Notes                    []Note       `json:"notes"`
}

// Bundle is the computed score.
type Bundle struct {
	AutoSubtotal float64   `json:"autoSubtotal"`
	ManualExtra  float64   `json:"manualExtra"`
	Final        float64   `json:"final"`
	Reasons      []string  `json:"reasons"`
	Overrides    Overrides `json:"overrides"`
}

// Reason keys for the auto lanes.
const (
	ReasonHQ            = "hq"
	ReasonManufacturing = "manufacturing"
	ReasonReview        = "review"
)

// Calc scores up to three auto points (HQ, manufacturing, reviews, each
// subject to its override) plus up to two admin points, capped at five.
func Calc(s Signals) Bundle {
	reviewEligible := s.ApprovedUserReviews+s.ApprovedEditorialReviews >= 1

	hq := s.Overrides.HQ.apply(s.HQEligible)
	mfg := s.Overrides.Manufacturing.apply(s.ManufacturingEligible)
	review := s.Overrides.Review.apply(reviewEligible)

	b := Bundle{
		AutoSubtotal: clamp(float64(hq+mfg+review), 0, 3),
		ManualExtra:  clamp(s.ManualExtra.Or(0), 0, 2),
		Reasons:      []string{},
		Overrides:    s.Overrides,
	}
	b.Final = clamp(b.AutoSubtotal+b.ManualExtra, 0, 5)

	if hq == 1 {
		b.Reasons = append(b.Reasons, ReasonHQ)
	}
	if mfg == 1 {
		b.Reasons = append(b.Reasons, ReasonManufacturing)
	}
	if review == 1 {
		b.Reasons = append(b.Reasons, ReasonReview)
	}
	for _, n := range s.Notes {
		if text := strings.TrimSpace(n.Text); text != "" {
			b.Reasons = append(b.Reasons, "admin: "+text)
		}
	}
	return b
}

// BuildTooltipLines renders the end-user tooltip: one line per auto lane and
// then the public notes. Private notes never appear here.
func BuildTooltipLines(b Bundle, notes []Note) []string {
	awarded := make(map[string]bool, 3)
	for _, r := range b.Reasons {
		awarded[r] = true
	}
	lines := []string{
		mark(awarded[ReasonHQ]) + " HQ",
		mark(awarded[ReasonManufacturing]) + " Manufacturing",
		mark(awarded[ReasonReview]) + " Reviews",
	}
	for _, n := range notes {
		if text := strings.TrimSpace(n.Text); n.Public && text != "" {
			lines = append(lines, text)
		}
	}
	return lines
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
