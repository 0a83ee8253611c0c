package reconcile

import (
	"math"

	"github.com/sells-group/company-directory/internal/model"
)

// ReviewsStarState is the resolved review-derived star (rating slot star3).
type ReviewsStarState struct {
	AutoValue  float64          `json:"auto_value"`
	NextSource model.StarSource `json:"next_source"`
	NextValue  float64          `json:"next_value"`
	NextRating model.Object     `json:"next_rating"`
}

// ComputeHasAnyReviews reports whether any canonical or legacy review signal
// is present on the record.
func ComputeHasAnyReviews(doc *model.Record) bool {
	if doc == nil {
		return false
	}
	if doc.CuratedReviews.CountObjects() >= 1 {
		return true
	}
	if len(doc.Reviews) >= 1 {
		return true
	}
	for _, n := range []model.Number{
		doc.ReviewCount,
		doc.ReviewCountApproved,
		doc.EditorialReviewCount,
		doc.AmazonReviewCount,
	} {
		if nonNegativeInt(n) >= 1 {
			return true
		}
	}
	return nonNegativeInt(doc.PublicReviewCount)+nonNegativeInt(doc.PrivateReviewCount) >= 1
}

// ComputeAutoReviewsStarValue is 1 when the record has any reviews, else 0.
func ComputeAutoReviewsStarValue(doc *model.Record) float64 {
	if ComputeHasAnyReviews(doc) {
		return 1
	}
	return 0
}

// ResolveReviewsStarState applies the precedence manual pin, then auto value,
// then none.
func ResolveReviewsStarState(doc *model.Record) ReviewsStarState {
	if doc == nil {
		doc = &model.Record{}
	}
	auto := ComputeAutoReviewsStarValue(doc)

	state := ReviewsStarState{AutoValue: auto}
	switch {
	case doc.ReviewsStarSource == model.StarSourceManual:
		state.NextSource = model.StarSourceManual
		state.NextValue = pinnedValue(doc)
	case auto > 0:
		state.NextSource = model.StarSourceAuto
		state.NextValue = auto
	default:
		state.NextSource = model.StarSourceNone
		state.NextValue = 0
	}
	state.NextRating = withStar3(doc.Rating, state.NextValue)
	return state
}

// ApplyReviewsStarState returns a copy of doc carrying the resolved source,
// value and rating.
func ApplyReviewsStarState(doc *model.Record) *model.Record {
	out := doc.Clone()
	state := ResolveReviewsStarState(out)
	out.ReviewsStarSource = state.NextSource
	out.ReviewsStarValue = model.Num(state.NextValue)
	out.Rating = state.NextRating
	return out
}

// pinnedValue is the stored manual value: reviews_star_value, else
// rating.star3.value, else 0.
func pinnedValue(doc *model.Record) float64 {
	if v, ok := doc.ReviewsStarValue.Float(); ok {
		return clamp01(v)
	}
	if v, ok := doc.Rating.Object("star3").Number("value").Float(); ok {
		return clamp01(v)
	}
	return 0
}

// withStar3 rebuilds only star3.value; other star3 keys and rating slots are kept.
func withStar3(rating model.Object, value float64) model.Object {
	star3 := rating.Object("star3").With("value", clamp01(value))
	return rating.With("star3", star3)
}

func nonNegativeInt(n model.Number) int64 {
	v, ok := n.Float()
	if !ok {
		return 0
	}
	return int64(math.Max(0, math.Trunc(v)))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
