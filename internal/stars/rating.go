package stars

import (
	"encoding/json"
	"math"

	"github.com/sells-group/company-directory/internal/model"
	"github.com/sells-group/company-directory/internal/reconcile"
)

// Slots are the five rating keys in display order.
var Slots = []string{"star1", "star2", "star3", "star4", "star5"}

// Eligibility is the set of data-derived auto-star signals.
type Eligibility struct {
	HQ            bool `json:"hq"`
	Manufacturing bool `json:"manufacturing"`
	Reviews       bool `json:"reviews"`
}

// EligibilityFromRecord derives the auto-star signals from a stored record.
func EligibilityFromRecord(r *model.Record) Eligibility {
	return Eligibility{
		HQ:            r.HasHeadquarters(),
		Manufacturing: r.HasManufacturing(),
		Reviews:       reconcile.ComputeHasAnyReviews(r),
	}
}

// InitialRating seeds a five-slot rating for a new company: star1 tracks
// manufacturing, star2 headquarters, star3 reviews. star4 and star5 are
// admin-only and start at zero.
func InitialRating(e Eligibility) model.Object {
	values := []bool{e.Manufacturing, e.HQ, e.Reviews, false, false}
	rating := model.Object{}
	for i, slot := range Slots {
		rating = rating.With(slot, slotObject(boolValue(values[i]), nil))
	}
	return rating
}

// ClampStarValue bounds a slot value to [0,1] rounded to two decimals.
// Non-finite input is zero.
func ClampStarValue(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	v = math.Max(0, math.Min(1, v))
	return math.Round(v*100) / 100
}

// NormalizeRating returns a rating with all five slots present, every value
// clamped and every notes field an array. Other slot keys are kept.
func NormalizeRating(rating model.Object) model.Object {
	out := rating.Clone()
	if out == nil {
		out = model.Object{}
	}
	for _, slot := range Slots {
		s := rating.Object(slot)
		if s == nil {
			s = model.Object{}
		}
		s = s.With("value", ClampStarValue(s.Number("value").Or(0)))
		if !isArray(s["notes"]) {
			s = s.With("notes", []any{})
		}
		out = out.With(slot, s)
	}
	return out
}

// TotalScore sums the five slot values, clamped to [0,5].
func TotalScore(rating model.Object) float64 {
	total := 0.0
	for _, slot := range Slots {
		total += ClampStarValue(rating.Object(slot).Number("value").Or(0))
	}
	return clamp(total, 0, 5)
}

// SignalsFromRecord builds Calc inputs from a stored record, including the
// admin overrides, bonus and notes saved on it.
func SignalsFromRecord(r *model.Record) Signals {
	if r == nil {
		r = &model.Record{}
	}
	e := EligibilityFromRecord(r)
	s := Signals{
		HQEligible:               e.HQ,
		ManufacturingEligible:    e.Manufacturing,
		ApprovedUserReviews:      r.ReviewCountApproved.Or(0),
		ApprovedEditorialReviews: r.EditorialReviewCount.Or(0),
		Overrides: Overrides{
			HQ:            ParseOverrideMode(r.StarOverrides.Text("hq")),
			Manufacturing: ParseOverrideMode(r.StarOverrides.Text("manufacturing")),
			Review:        ParseOverrideMode(r.StarOverrides.Text("review")),
		},
		ManualExtra: r.AdminManualExtra,
	}
	for _, el := range r.StarNotes {
		var n Note
		if err := json.Unmarshal(el, &n); err != nil {
			continue
		}
		s.Notes = append(s.Notes, n)
	}
	return s
}

func slotObject(value float64, notes []any) model.Object {
	if notes == nil {
		notes = []any{}
	}
	return model.Object{}.With("value", value).With("notes", notes)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func isArray(b json.RawMessage) bool {
	var l []json.RawMessage
	return len(b) > 0 && json.Unmarshal(b, &l) == nil && l != nil
}
